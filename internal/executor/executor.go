// Package executor turns a fully-formed prompt into response text by driving
// the Claude Code CLI in non-interactive mode, and runs direct shell commands
// for the "!" escape.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Runner is the executor contract consumed by the dispatcher.
type Runner interface {
	// Invoke sends promptText (with an optional conversation-context prefix)
	// to the backend and returns its plain-text response or a typed failure.
	Invoke(ctx context.Context, promptText, contextPrefix string) (string, error)
	// Execute routes one command string (everything after the trigger
	// prefix): "!" shell escape, deletion guard, or Invoke. The returned
	// string is always user-deliverable; errors have been rendered.
	Execute(ctx context.Context, command, contextPrefix string) string
}

// CLI invokes `claude -p` as a subprocess.
type CLI struct {
	Binary       string // defaults to "claude"
	SystemPrompt string
	Timeout      time.Duration // one invocation
	ShellTimeout time.Duration // direct "!" commands
}

// NewCLI returns a CLI executor with the given timeouts.
func NewCLI(systemPrompt string, timeout, shellTimeout time.Duration) *CLI {
	return &CLI{
		Binary:       "claude",
		SystemPrompt: systemPrompt,
		Timeout:      timeout,
		ShellTimeout: shellTimeout,
	}
}

// Invoke runs the CLI with the prompt and parses its JSON output.
func (c *CLI) Invoke(ctx context.Context, promptText, contextPrefix string) (string, error) {
	fullPrompt := promptText
	if contextPrefix != "" {
		fullPrompt = fmt.Sprintf("%s\n\n[Current request:]\n%s", contextPrefix, promptText)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	args := []string{
		"-p", fullPrompt,
		"--allowedTools", "Bash,Read,Write,Edit,MultiEdit",
		"--output-format", "json",
	}
	if c.SystemPrompt != "" {
		args = append(args, "--system-prompt", c.SystemPrompt)
	}

	slog.Info("invoking claude code", "prompt", truncate(promptText, 80), "timeout", c.Timeout)

	cmd := exec.CommandContext(ctx, c.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", ErrTimeout
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return "", ErrToolMissing
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			detail := strings.TrimSpace(stderr.String())
			slog.Error("claude code failed", "code", exitErr.ExitCode(), "stderr", truncate(detail, 300))
			return "", &ExitError{Code: exitErr.ExitCode(), Detail: detail}
		}
		return "", err
	}

	raw := strings.TrimSpace(stdout.String())
	slog.Info("claude code finished", "stdout", len(stdout.String()), "stderr", len(stderr.String()))
	if raw == "" {
		return "", ErrEmptyOutput
	}
	return extractText(raw)
}

// extractText pulls the response text out of the CLI's JSON output. Plain
// non-JSON output is passed through as-is (the CLI's text fallback mode).
func extractText(raw string) (string, error) {
	if !gjson.Valid(raw) {
		return raw, nil
	}
	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return raw, nil
	}

	if res := doc.Get("result"); res.Exists() {
		return res.String(), nil
	}
	if content := doc.Get("content"); content.Exists() {
		if content.IsArray() {
			var parts []string
			for _, block := range content.Array() {
				if block.Get("type").String() == "text" {
					parts = append(parts, block.Get("text").String())
				}
			}
			return strings.Join(parts, "\n"), nil
		}
		return content.String(), nil
	}
	return "", &MalformedOutputError{Detail: "no result or content field in output"}
}

// Execute routes a command string. The result is always deliverable text.
func (c *CLI) Execute(ctx context.Context, command, contextPrefix string) string {
	command = strings.TrimSpace(command)

	if strings.HasPrefix(command, "!") {
		shellCmd := strings.TrimSpace(command[1:])
		if shellCmd == "" {
			return "❌ Empty shell command."
		}
		if IsBlocked(shellCmd) {
			slog.Warn("blocked shell command", "command", truncate(shellCmd, 120))
			return BlockResponse
		}
		slog.Info("shell exec", "command", truncate(shellCmd, 120))
		return fmt.Sprintf("```\n%s\n```", c.runShell(ctx, shellCmd))
	}

	if IsBlocked(command) {
		slog.Warn("blocked command", "command", truncate(command, 120))
		return BlockResponse
	}

	out, err := c.Invoke(ctx, command, contextPrefix)
	if err != nil {
		return Render(err, int(c.Timeout/time.Second))
	}
	return out
}

// runShell executes a shell command and returns combined stdout+stderr, with
// the exit code prefixed when non-zero.
func (c *CLI) runShell(ctx context.Context, command string) string {
	ctx, cancel := context.WithTimeout(ctx, c.ShellTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("❌ Command timeout (>%ds)", int(c.ShellTimeout/time.Second))
	}

	var parts []string
	if s := strings.TrimSpace(stdout.String()); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(stderr.String()); s != "" {
		parts = append(parts, "[stderr]\n"+s)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		parts = append([]string{fmt.Sprintf("[exit code: %d]", exitErr.ExitCode())}, parts...)
	} else if err != nil {
		return fmt.Sprintf("❌ Execution error: %v", err)
	}
	if len(parts) == 0 {
		return "(no output)"
	}
	return strings.Join(parts, "\n")
}
