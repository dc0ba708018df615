package files

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/coopco/hostagent/internal/msg"
)

// Analyzer describes an image and answers a prompt about it. Implemented by
// the vision package; nil disables image analysis.
type Analyzer interface {
	Analyze(ctx context.Context, imagePath, prompt string) (string, error)
}

// Invoker is the subset of the executor used for attachment prompts.
type Invoker interface {
	Invoke(ctx context.Context, promptText, contextPrefix string) (string, error)
}

// Processor turns incoming attachments into response text.
type Processor struct {
	Dirs     Dirs
	Vision   Analyzer // nil when disabled
	Executor Invoker

	MaxFileMB  int
	MaxImageMB int
}

// Process handles each attachment of a file command in order and returns the
// combined response text. Per-attachment failures degrade to notices; the
// other attachments are still processed.
func (p *Processor) Process(ctx context.Context, attachments []msg.Attachment, userText string) string {
	if len(attachments) == 0 {
		return "⚠️ No attachments found."
	}

	var results []string
	for _, att := range attachments {
		results = append(results, p.processOne(ctx, att, userText))
	}
	if len(results) == 0 {
		return "⚠️ No files were processed."
	}
	return strings.Join(results, "\n\n")
}

func (p *Processor) processOne(ctx context.Context, att msg.Attachment, userText string) string {
	name := att.Name
	if name == "" {
		name = filepath.Base(att.Path)
	}

	if att.Size > 0 && att.Size > int64(p.MaxFileMB)*1024*1024 {
		return fmt.Sprintf("⚠️ File too large: %s (%.1f MB > %d MB limit)",
			name, float64(att.Size)/1024/1024, p.MaxFileMB)
	}

	local, err := p.Dirs.CopyToInbox(att.Path)
	if err != nil {
		slog.Warn("could not access attachment", "name", name, "error", err)
		return fmt.Sprintf("⚠️ Could not access attachment: %s", name)
	}

	kind := Classify(local)
	slog.Info("incoming file", "name", name, "kind", kind, "local", local)

	switch kind {
	case KindImage:
		return p.processImage(ctx, local, userText)
	case KindText, KindDocument:
		prompt := fmt.Sprintf(
			"The user sent a file.\nFile path: %s\nUser message: %s\n\nRead the file and process the user's request.",
			local, orDefault(userText, "(analyze the file)"),
		)
		out, err := p.Executor.Invoke(ctx, prompt, "")
		if err != nil {
			return fmt.Sprintf("📎 File received: %s\n⚠️ Processing failed: %v", filepath.Base(local), err)
		}
		return out
	default:
		mime := att.MIME
		if mime == "" {
			mime = "unknown type"
		}
		return fmt.Sprintf("📎 File received: %s (%s)", filepath.Base(local), mime)
	}
}

func (p *Processor) processImage(ctx context.Context, local, userText string) string {
	if info, err := os.Stat(local); err == nil {
		sizeMB := float64(info.Size()) / 1024 / 1024
		if sizeMB > float64(p.MaxImageMB) {
			return fmt.Sprintf("⚠️ Image too large: %s (%.1f MB > %d MB)",
				filepath.Base(local), sizeMB, p.MaxImageMB)
		}
	}

	if p.Vision == nil {
		return fmt.Sprintf("📎 Image received: %s\n⚠️ Image analysis disabled. Set anthropic_api_key in config.json to enable.",
			filepath.Base(local))
	}

	prompt := orDefault(userText, "Describe this image in detail.")
	analysis, err := p.Vision.Analyze(ctx, local, prompt)
	if err != nil {
		slog.Warn("vision analysis failed", "path", local, "error", err)
		return fmt.Sprintf("📎 Image received: %s\n⚠️ Image analysis failed: %v", filepath.Base(local), err)
	}
	return fmt.Sprintf("🖼️ Image analysis:\n%s", analysis)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
