package channels

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FileCursor persists a channel's last-consumed sequence number in a plain
// text file so a restart does not reprocess old messages.
type FileCursor struct {
	path string
}

// NewFileCursor returns a cursor backed by the file at path.
func NewFileCursor(path string) *FileCursor {
	return &FileCursor{path: path}
}

// Load reads the persisted cursor, returning 0 when none exists yet.
func (c *FileCursor) Load() (int64, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read cursor file: %w", err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, nil // unreadable cursor restarts from zero
	}
	return v, nil
}

// Store persists the cursor. Values never go backwards: a smaller value than
// the one on disk is ignored.
func (c *FileCursor) Store(v int64) error {
	current, err := c.Load()
	if err == nil && v < current {
		return nil
	}
	if err := os.WriteFile(c.path, []byte(strconv.FormatInt(v, 10)), 0o644); err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}
