package channels

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/coopco/hostagent/internal/deliver"
	"github.com/coopco/hostagent/internal/msg"
)

// IMessage reads inbound messages from the on-device Messages store
// (chat.db) in read-only mode and sends replies through AppleScript. It
// implements both PullAdapter and the dispatcher's Transport.
type IMessage struct {
	db             *sql.DB
	allowedHandles []string
	cursor         *FileCursor
	chunkLimit     int

	// runScript is swapped in tests; defaults to osascript.
	runScript func(ctx context.Context, script string) (string, error)
}

// NewIMessage opens chat.db read-only. allowedHandles are the phone numbers
// or iCloud emails messages are accepted from; cursorPath persists the
// last-consumed ROWID.
func NewIMessage(dbPath string, allowedHandles []string, cursorPath string, chunkLimit int) (*IMessage, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open chat.db: %w", err)
	}
	return &IMessage{
		db:             db,
		allowedHandles: allowedHandles,
		cursor:         NewFileCursor(cursorPath),
		chunkLimit:     chunkLimit,
		runScript:      runOsascript,
	}, nil
}

func (c *IMessage) Name() string { return "imessage" }

// Close closes the underlying database.
func (c *IMessage) Close() error { return c.db.Close() }

// Cursor returns the persisted last-consumed ROWID.
func (c *IMessage) Cursor() (int64, error) { return c.cursor.Load() }

// Commit persists the new cursor.
func (c *IMessage) Commit(cursor int64) error { return c.cursor.Store(cursor) }

// Fetch returns messages with ROWID > cursor from the allowed handles, in
// ROWID order, one Inbound per logical message with its attachments grouped.
// Permission failures are reported as ErrNotAccessible.
func (c *IMessage) Fetch(ctx context.Context, cursor int64) ([]msg.Inbound, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(c.allowedHandles)), ",")
	query := fmt.Sprintf(`
		SELECT
			message.ROWID,
			message.text,
			handle.id                AS sender,
			attachment.filename      AS attachment_path,
			attachment.mime_type     AS attachment_type,
			attachment.transfer_name AS attachment_name,
			attachment.total_bytes   AS attachment_size,
			message.is_from_me
		FROM message
		LEFT JOIN handle
			ON message.handle_id = handle.ROWID
		LEFT JOIN message_attachment_join
			ON message.ROWID = message_attachment_join.message_id
		LEFT JOIN attachment
			ON message_attachment_join.attachment_id = attachment.ROWID
		WHERE message.ROWID > ?
		  AND handle.id IN (%s)
		  AND (message.text IS NOT NULL OR attachment.ROWID IS NOT NULL)
		ORDER BY message.ROWID ASC
	`, placeholders)

	args := make([]any, 0, len(c.allowedHandles)+1)
	args = append(args, cursor)
	for _, h := range c.allowedHandles {
		args = append(args, h)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyDBError(err)
	}
	defer rows.Close()

	// One message may produce multiple rows when it has several attachments;
	// group by ROWID preserving order.
	var out []msg.Inbound
	index := make(map[int64]int)
	for rows.Next() {
		var (
			rowid    int64
			text     sql.NullString
			sender   sql.NullString
			attPath  sql.NullString
			attType  sql.NullString
			attName  sql.NullString
			attSize  sql.NullInt64
			isFromMe int
		)
		if err := rows.Scan(&rowid, &text, &sender, &attPath, &attType, &attName, &attSize, &isFromMe); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}

		i, ok := index[rowid]
		if !ok {
			out = append(out, msg.Inbound{
				Seq:      rowid,
				Sender:   sender.String,
				Text:     text.String,
				FromSelf: isFromMe != 0,
			})
			i = len(out) - 1
			index[rowid] = i
		}
		if attPath.Valid && attPath.String != "" {
			out[i].Attachments = append(out[i].Attachments, msg.Attachment{
				Path: expandHome(attPath.String),
				MIME: attType.String,
				Name: attName.String,
				Size: attSize.Int64,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, classifyDBError(err)
	}
	return out, nil
}

func classifyDBError(err error) error {
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "unable to open") || strings.Contains(s, "permission") || strings.Contains(s, "disk") {
		return fmt.Errorf("%w: %v (check Full Disk Access permission)", ErrNotAccessible, err)
	}
	return err
}

// SendText delivers text to the handle, chunked with retries.
func (c *IMessage) SendText(ctx context.Context, sender, text string) error {
	s := deliver.NewSender(c.chunkLimit, func(ctx context.Context, chunk string) error {
		return c.sendChunk(ctx, sender, chunk)
	})
	return s.Deliver(ctx, text)
}

func (c *IMessage) sendChunk(ctx context.Context, handle, chunk string) error {
	script := fmt.Sprintf(
		"tell application \"Messages\"\n"+
			"    set targetBuddy to \"%s\"\n"+
			"    set targetService to 1st account whose service type = iMessage\n"+
			"    send \"%s\" to participant targetBuddy of targetService\n"+
			"end tell",
		escapeAppleScript(handle), escapeAppleScript(chunk),
	)
	if stderr, err := c.runScript(ctx, script); err != nil {
		return fmt.Errorf("imessage send failed: %w (%s)", err, firstLine(stderr))
	}
	return nil
}

// SendFile transfers a file to the handle through Messages.app.
func (c *IMessage) SendFile(ctx context.Context, sender, path string) error {
	escapedPath := strings.ReplaceAll(strings.ReplaceAll(path, `\`, `\\`), `"`, `\"`)
	script := fmt.Sprintf(
		"tell application \"Messages\"\n"+
			"    set targetService to 1st account whose service type = iMessage\n"+
			"    set targetBuddy to participant \"%s\" of targetService\n"+
			"    send POSIX file \"%s\" to targetBuddy\n"+
			"end tell",
		escapeAppleScript(sender), escapedPath,
	)
	stderr, err := c.runScript(ctx, script)
	if err != nil {
		return fmt.Errorf("imessage file send failed: %w", err)
	}
	if stderr != "" {
		return fmt.Errorf("imessage file send failed: %s", firstLine(stderr))
	}
	slog.Info("imessage file sent", "path", path, "to", sender)
	return nil
}

// escapeAppleScript escapes a string for an AppleScript double-quoted
// literal. The backslash must be handled first.
func escapeAppleScript(text string) string {
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, `"`, `\"`)
	text = strings.ReplaceAll(text, "\r\n", `\r`)
	text = strings.ReplaceAll(text, "\n", `\n`)
	text = strings.ReplaceAll(text, "\r", `\r`)
	return text
}

func runOsascript(ctx context.Context, script string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stderr.String()), err
}

// expandHome resolves the ~-prefixed paths chat.db stores for attachments.
func expandHome(path string) string {
	if len(path) >= 2 && path[0] == '~' && path[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
