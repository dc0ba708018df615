package executor

import (
	"errors"
	"fmt"
)

// Typed executor failures. Every one of them renders to a short user-facing
// line via Render; none propagates a raw stack trace or internal detail.
var (
	// ErrToolMissing means the claude binary is not on PATH.
	ErrToolMissing = errors.New("claude command not found")
	// ErrTimeout means the invocation exceeded its deadline.
	ErrTimeout = errors.New("executor timeout")
	// ErrEmptyOutput means the tool exited cleanly but produced nothing.
	ErrEmptyOutput = errors.New("empty executor output")
)

// ExitError reports a non-zero exit from the executor tool.
type ExitError struct {
	Code   int
	Detail string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("executor exited with code %d: %s", e.Code, e.Detail)
}

// MalformedOutputError reports output that could not be interpreted.
type MalformedOutputError struct {
	Detail string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed executor output: %s", e.Detail)
}

// Render converts an executor failure into the short error line delivered to
// the sender.
func Render(err error, timeoutSeconds int) string {
	var exitErr *ExitError
	var malErr *MalformedOutputError
	switch {
	case errors.Is(err, ErrToolMissing):
		return "❌ 'claude' command not found. Check that Claude Code is installed and on PATH."
	case errors.Is(err, ErrTimeout):
		return fmt.Sprintf("❌ Claude Code timeout (>%ds)", timeoutSeconds)
	case errors.Is(err, ErrEmptyOutput):
		return "❌ Claude Code returned an empty response."
	case errors.As(err, &exitErr):
		return fmt.Sprintf("❌ Claude Code error: %s", truncate(exitErr.Detail, 500))
	case errors.As(err, &malErr):
		return fmt.Sprintf("❌ Claude Code error: %s", truncate(malErr.Detail, 500))
	default:
		return fmt.Sprintf("❌ Error: %v", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
