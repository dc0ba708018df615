// Package files handles attachment intake (inbox copy, classification, size
// guards) and outbound artifacts (screenshots, outbox archival).
package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Kind buckets a file by what the agent can do with it.
type Kind string

const (
	KindImage    Kind = "image"
	KindText     Kind = "text"
	KindDocument Kind = "document"
	KindBinary   Kind = "binary"
)

var extKinds = map[string]Kind{
	".png": KindImage, ".jpg": KindImage, ".jpeg": KindImage, ".gif": KindImage,
	".webp": KindImage, ".bmp": KindImage, ".heic": KindImage, ".tiff": KindImage,

	".txt": KindText, ".md": KindText, ".log": KindText, ".csv": KindText,
	".json": KindText, ".yaml": KindText, ".yml": KindText, ".xml": KindText,
	".py": KindText, ".go": KindText, ".js": KindText, ".sh": KindText,

	".pdf": KindDocument, ".doc": KindDocument, ".docx": KindDocument,
	".pages": KindDocument, ".rtf": KindDocument,
}

// Classify buckets a file by its extension.
func Classify(path string) Kind {
	if k, ok := extKinds[strings.ToLower(filepath.Ext(path))]; ok {
		return k
	}
	return KindBinary
}

// IsImageExt reports whether path has an image extension. Used by channels to
// decide between photo and document sends.
func IsImageExt(path string) bool {
	return Classify(path) == KindImage
}

// Dirs locates the inbox and outbox under the agent state dir.
type Dirs struct {
	StateDir string
}

func (d Dirs) Inbox() string  { return filepath.Join(d.StateDir, "inbox") }
func (d Dirs) Outbox() string { return filepath.Join(d.StateDir, "outbox") }

// CopyToInbox copies a received attachment into the inbox, adding a numeric
// suffix on name collisions. Returns the local path.
func (d Dirs) CopyToInbox(srcPath string) (string, error) {
	if err := os.MkdirAll(d.Inbox(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create inbox: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open attachment: %w", err)
	}
	defer src.Close()

	dstPath := d.uniquePath(filepath.Base(srcPath))
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create inbox file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to copy attachment: %w", err)
	}
	slog.Info("attachment copied to inbox", "src", srcPath, "dst", dstPath)
	return dstPath, nil
}

// ReservePath returns a collision-free inbox path for a file about to be
// downloaded directly (push channels write downloads straight to the inbox).
func (d Dirs) ReservePath(name string) (string, error) {
	if err := os.MkdirAll(d.Inbox(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create inbox: %w", err)
	}
	return d.uniquePath(name), nil
}

func (d Dirs) uniquePath(name string) string {
	path := filepath.Join(d.Inbox(), name)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(d.Inbox(), fmt.Sprintf("%s_%d%s", base, counter, ext))
	}
}
