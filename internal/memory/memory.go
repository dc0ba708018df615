// Package memory persists conversation history per sender: a live table of
// today's turns, daily summaries of older days, and a full archive that is
// never deleted.
package memory

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// Summarizer condenses one day's conversation into a few sentences. The
// production implementation calls the executor; tests inject a stub.
type Summarizer func(ctx context.Context, conversationText string) (string, error)

// Store is the conversation memory database.
type Store struct {
	db        *sql.DB
	summarize Summarizer
}

// Open opens (and initialises) the memory database at path.
func Open(path string, summarize Summarizer) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init memory schema: %w", err)
	}
	slog.Info("memory db opened", "path", path)
	return &Store{db: db, summarize: summarize}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveMessage appends one turn to the live conversation table.
func (s *Store) SaveMessage(sender, role, content string) error {
	_, err := s.db.Exec(
		"INSERT INTO conversations (sender, role, content) VALUES (?, ?, ?)",
		sender, role, content,
	)
	return err
}

type summaryRow struct {
	date    string
	summary string
}

type turnRow struct {
	role    string
	content string
}

func (s *Store) summaries(sender string) ([]summaryRow, error) {
	rows, err := s.db.Query(
		"SELECT summary_date, summary FROM daily_summaries WHERE sender = ? ORDER BY summary_date ASC",
		sender,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []summaryRow
	for rows.Next() {
		var r summaryRow
		if err := rows.Scan(&r.date, &r.summary); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) todayMessages(sender string, now time.Time) ([]turnRow, error) {
	cutoff := now.Format("2006-01-02") + " 00:00:00"
	rows, err := s.db.Query(
		"SELECT role, content FROM conversations WHERE sender = ? AND created_at >= ? ORDER BY id ASC",
		sender, cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []turnRow
	for rows.Next() {
		var r turnRow
		if err := rows.Scan(&r.role, &r.content); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const snippetLimit = 600

// ContextPrefix builds the prior-conversation block prepended to executor
// prompts. Returns an empty string when the sender has no history.
func (s *Store) ContextPrefix(sender string) string {
	sums, err := s.summaries(sender)
	if err != nil {
		slog.Warn("failed to read summaries", "sender", sender, "error", err)
		return ""
	}
	today, err := s.todayMessages(sender, time.Now())
	if err != nil {
		slog.Warn("failed to read today's messages", "sender", sender, "error", err)
		return ""
	}
	if len(sums) == 0 && len(today) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("[Conversation history with this user:]\n")
	if len(sums) > 0 {
		b.WriteString("--- Past summaries ---\n")
		for _, r := range sums {
			fmt.Fprintf(&b, "%s: %s\n", r.date, r.summary)
		}
	}
	if len(today) > 0 {
		b.WriteString("--- Today's conversation (so far) ---\n")
		for _, m := range today {
			label := "Agent"
			if m.role == "user" {
				label = "User"
			}
			snippet := m.content
			if len(snippet) > snippetLimit {
				snippet = snippet[:snippetLimit] + "…"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, snippet)
		}
	}
	b.WriteString("--- End of history ---\n")
	return b.String()
}
