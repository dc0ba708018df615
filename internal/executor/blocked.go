package executor

import (
	"regexp"
	"strings"
)

// BlockResponse is returned verbatim for any command matching the deletion
// block list.
const BlockResponse = "🚫 File deletion commands are blocked by security policy. Moving files is allowed."

// blockedPatterns catch file-deletion attempts on the raw command text. A
// second layer lives in the system prompt so the executor itself refuses
// deletion requests phrased in natural language.
var blockedPatterns = []string{
	`\brm\s`,
	`\brm$`,
	`\brmdir\b`,
	`\bunlink\b`,
	`\btrash\b`,
	`move\s+to\s+trash`,
	`shutil\.rmtree`,
	`os\.remove`,
	`os\.unlink`,
	`os\.rmdir`,
	`pathlib.*\.unlink`,
	`\bdelete\b.*file`,
	`find\s+.*-delete`,
	`>\s*/dev/null`,
	`\btruncate\b`,
}

var blockedRE = regexp.MustCompile(`(?i)` + strings.Join(blockedPatterns, "|"))

// IsBlocked reports whether text matches any deletion-blocking pattern.
func IsBlocked(text string) bool {
	return blockedRE.MatchString(text)
}
