// Package directive executes bracketed side-effect directives embedded in
// executor output and replaces each with a short status string.
//
// Recognised directives:
//
//	[SEND_SCREENSHOT]          capture full screen and send
//	[SEND_SCREENSHOT:AppName]  activate AppName, capture, and send
//	[SEND_FILE:/abs/path]      send the file at the given path
//
// [NEED_INPUT:...] is a state-machine concern and is extracted before this
// package ever sees the text.
package directive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Effects resolves directive side effects for one sender on one channel.
type Effects interface {
	// SendFile transfers the file at path to the sender.
	SendFile(ctx context.Context, path string) error
	// Screenshot captures the screen (optionally activating appName first)
	// and returns the captured file's path.
	Screenshot(ctx context.Context, appName string) (string, error)
}

const (
	sendFilePrefix   = "[SEND_FILE:"
	screenshotPlain  = "[SEND_SCREENSHOT]"
	screenshotPrefix = "[SEND_SCREENSHOT:"
)

// token is one piece of the scanned response: literal text or a directive.
type token struct {
	literal string

	isFile   bool
	filePath string

	isShot  bool
	appName string
}

// tokenize splits text into literal and directive tokens in a single
// left-to-right pass. Unrecognised bracketed text stays literal.
func tokenize(text string) []token {
	var tokens []token
	for len(text) > 0 {
		i := strings.IndexByte(text, '[')
		if i < 0 {
			tokens = append(tokens, token{literal: text})
			break
		}
		rest := text[i:]

		var tok token
		var tagLen int
		switch {
		case strings.HasPrefix(rest, screenshotPlain):
			tok = token{isShot: true}
			tagLen = len(screenshotPlain)
		case strings.HasPrefix(rest, screenshotPrefix):
			end := strings.IndexByte(rest[len(screenshotPrefix):], ']')
			if end < 0 {
				break
			}
			tok = token{isShot: true, appName: strings.TrimSpace(rest[len(screenshotPrefix) : len(screenshotPrefix)+end])}
			tagLen = len(screenshotPrefix) + end + 1
		case strings.HasPrefix(rest, sendFilePrefix):
			end := strings.IndexByte(rest[len(sendFilePrefix):], ']')
			if end < 0 {
				break
			}
			tok = token{isFile: true, filePath: strings.TrimSpace(rest[len(sendFilePrefix) : len(sendFilePrefix)+end])}
			tagLen = len(sendFilePrefix) + end + 1
		}

		if tagLen == 0 {
			// Not a directive: emit up to and including this '[' as literal.
			tokens = append(tokens, token{literal: text[:i+1]})
			text = text[i+1:]
			continue
		}

		if i > 0 {
			tokens = append(tokens, token{literal: text[:i]})
		}
		tokens = append(tokens, tok)
		text = text[i+tagLen:]
	}
	return tokens
}

// Process scans text for SEND_FILE and SEND_SCREENSHOT directives, executes
// each exactly once in order, and replaces it inline with a status string.
// It never fails: every side-effect error degrades to an inline marker, and a
// failure in one directive does not abort the others. Returns the rewritten
// text and the basenames of files actually sent.
func Process(ctx context.Context, text string, fx Effects) (string, []string) {
	var b strings.Builder
	var sent []string

	for _, tok := range tokenize(text) {
		switch {
		case tok.isShot:
			status, name := runScreenshot(ctx, fx, tok.appName)
			b.WriteString(status)
			if name != "" {
				sent = append(sent, name)
			}
		case tok.isFile:
			status, name := runSendFile(ctx, fx, tok.filePath)
			b.WriteString(status)
			if name != "" {
				sent = append(sent, name)
			}
		default:
			b.WriteString(tok.literal)
		}
	}
	return b.String(), sent
}

func runScreenshot(ctx context.Context, fx Effects, appName string) (status, sentName string) {
	path, err := fx.Screenshot(ctx, appName)
	if err != nil || path == "" {
		slog.Warn("screenshot capture failed", "app", appName, "error", err)
		return "⚠️ Screenshot capture failed", ""
	}
	if err := fx.SendFile(ctx, path); err != nil {
		slog.Warn("screenshot send failed", "path", path, "error", err)
		return fmt.Sprintf("⚠️ Screenshot send failed: %v", err), ""
	}
	slog.Info("screenshot sent", "app", appName, "path", path)
	return "📸 Screenshot sent", filepath.Base(path)
}

func runSendFile(ctx context.Context, fx Effects, rawPath string) (status, sentName string) {
	path := expandHome(rawPath)
	if _, err := os.Stat(path); err != nil {
		return fmt.Sprintf("⚠️ File not found: %s", rawPath), ""
	}
	if err := fx.SendFile(ctx, path); err != nil {
		slog.Warn("file send failed", "path", path, "error", err)
		return fmt.Sprintf("⚠️ File send failed: %v", err), ""
	}
	slog.Info("file sent", "path", path)
	return fmt.Sprintf("📎 %s sent", filepath.Base(path)), filepath.Base(path)
}

func expandHome(path string) string {
	if len(path) >= 2 && path[0] == '~' && path[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
