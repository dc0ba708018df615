package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "result field",
			raw:  `{"type":"result","result":"✅ Done. Created 3 files."}`,
			want: "✅ Done. Created 3 files.",
		},
		{
			name: "content block array",
			raw:  `{"content":[{"type":"text","text":"first"},{"type":"tool_use","id":"x"},{"type":"text","text":"second"}]}`,
			want: "first\nsecond",
		},
		{
			name: "content string",
			raw:  `{"content":"plain"}`,
			want: "plain",
		},
		{
			name: "non-json passthrough",
			raw:  "just plain text output",
			want: "just plain text output",
		},
		{
			name: "json array passthrough",
			raw:  `["not","an","object"]`,
			want: `["not","an","object"]`,
		},
		{
			name:    "object without known fields",
			raw:     `{"type":"system","session_id":"abc"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractText(tt.raw)
			if tt.wantErr {
				var malErr *MalformedOutputError
				if !errors.As(err, &malErr) {
					t.Fatalf("err = %v, want MalformedOutputError", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"missing tool", ErrToolMissing, "❌ 'claude' command not found. Check that Claude Code is installed and on PATH."},
		{"timeout", ErrTimeout, "❌ Claude Code timeout (>600s)"},
		{"empty", ErrEmptyOutput, "❌ Claude Code returned an empty response."},
		{"exit error", &ExitError{Code: 1, Detail: "boom"}, "❌ Claude Code error: boom"},
		{"malformed", &MalformedOutputError{Detail: "bad json"}, "❌ Claude Code error: bad json"},
		{"other", errors.New("weird"), "❌ Error: weird"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.err, 600); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsBlocked(t *testing.T) {
	blocked := []string{
		"rm -rf /tmp/stuff",
		"!rm notes.txt",
		"RM important.doc",
		"rmdir old",
		"please delete the file report.pdf",
		"mv junk && move to trash",
		"find . -name '*.log' -delete",
		"python -c 'import shutil; shutil.rmtree(\"/tmp/x\")'",
		"truncate -s 0 big.log",
	}
	for _, cmd := range blocked {
		if !IsBlocked(cmd) {
			t.Errorf("IsBlocked(%q) = false, want true", cmd)
		}
	}

	allowed := []string{
		"list files in ~/docs",
		"mv old.txt archive/old.txt",
		"remove the duplicates from this list", // no file involved
		"cp -r src dst",
		"informative message",
	}
	for _, cmd := range allowed {
		if IsBlocked(cmd) {
			t.Errorf("IsBlocked(%q) = true, want false", cmd)
		}
	}
}

func testCLI() *CLI {
	return NewCLI("", 5*time.Second, 5*time.Second)
}

func TestExecuteShellEscape(t *testing.T) {
	out := testCLI().Execute(context.Background(), "!echo hello", "")
	want := "```\nhello\n```"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestExecuteShellEscapeEmpty(t *testing.T) {
	if out := testCLI().Execute(context.Background(), "!   ", ""); out != "❌ Empty shell command." {
		t.Errorf("got %q", out)
	}
}

func TestExecuteShellNonZeroExit(t *testing.T) {
	out := testCLI().Execute(context.Background(), "!sh -c 'echo oops >&2; exit 3'", "")
	if !strings.Contains(out, "[exit code: 3]") {
		t.Errorf("missing exit code marker: %q", out)
	}
	if !strings.Contains(out, "[stderr]\noops") {
		t.Errorf("missing stderr section: %q", out)
	}
}

func TestExecuteShellNoOutput(t *testing.T) {
	out := testCLI().Execute(context.Background(), "!true", "")
	if out != "```\n(no output)\n```" {
		t.Errorf("got %q", out)
	}
}

func TestExecuteShellTimeout(t *testing.T) {
	c := NewCLI("", 5*time.Second, 100*time.Millisecond)
	out := c.Execute(context.Background(), "!sleep 5", "")
	if !strings.Contains(out, "❌ Command timeout") {
		t.Errorf("got %q", out)
	}
}

func TestExecuteBlockedCommand(t *testing.T) {
	c := testCLI()
	for _, cmd := range []string{"!rm -rf /", "delete the file notes.txt"} {
		if out := c.Execute(context.Background(), cmd, ""); out != BlockResponse {
			t.Errorf("Execute(%q) = %q, want block response", cmd, out)
		}
	}
}

func TestInvokeMissingBinary(t *testing.T) {
	c := testCLI()
	c.Binary = "definitely-not-a-real-binary-xyz"
	_, err := c.Invoke(context.Background(), "hello", "")
	if !errors.Is(err, ErrToolMissing) {
		t.Fatalf("err = %v, want ErrToolMissing", err)
	}
}

func TestExecuteRendersInvokeErrors(t *testing.T) {
	c := testCLI()
	c.Binary = "definitely-not-a-real-binary-xyz"
	out := c.Execute(context.Background(), "list files", "")
	if !strings.Contains(out, "❌ 'claude' command not found") {
		t.Errorf("got %q", out)
	}
}
