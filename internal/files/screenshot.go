package files

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Screenshotter captures the screen into the outbox using the macOS
// screencapture tool, optionally bringing an app to the foreground first.
type Screenshotter struct {
	Dirs Dirs
}

// Capture takes a screenshot and returns the saved file path. When appName is
// non-empty the app is activated before capture.
func (s *Screenshotter) Capture(ctx context.Context, appName string) (string, error) {
	if err := os.MkdirAll(s.Dirs.Outbox(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create outbox: %w", err)
	}
	path := filepath.Join(s.Dirs.Outbox(),
		fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405")))

	if appName != "" {
		script := fmt.Sprintf("tell application %q to activate\ndelay 0.5", appName)
		actCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if out, err := exec.CommandContext(actCtx, "osascript", "-e", script).CombinedOutput(); err != nil {
			slog.Warn("failed to activate app", "app", appName, "error", err, "output", string(out))
		}
		cancel()
	}

	capCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if out, err := exec.CommandContext(capCtx, "screencapture", "-x", path).CombinedOutput(); err != nil {
		slog.Warn("screencapture failed", "error", err, "output", string(out))
	}

	if _, err := os.Stat(path); err != nil {
		// Missing file usually means the Screen Recording permission is absent.
		return "", fmt.Errorf("screencapture produced no file")
	}
	return path, nil
}

// SweepOutbox moves outbox files older than maxAge into outbox/archive.
// Files are never deleted, only archived.
func SweepOutbox(dirs Dirs, maxAge time.Duration) error {
	outbox := dirs.Outbox()
	entries, err := os.ReadDir(outbox)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	archiveDir := filepath.Join(outbox, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Rename(filepath.Join(outbox, entry.Name()), filepath.Join(archiveDir, entry.Name())); err != nil {
				slog.Warn("failed to archive outbox file", "name", entry.Name(), "error", err)
				continue
			}
			slog.Debug("archived outbox file", "name", entry.Name())
		}
	}
	return nil
}
