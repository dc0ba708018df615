package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type archivedRow struct {
	id        int64
	role      string
	content   string
	createdAt string // "YYYY-MM-DD HH:MM:SS"
}

// RunDailyMaintenance archives the sender's conversations older than today
// and stores one summary per calendar day. Safe to call repeatedly — it exits
// immediately when there is nothing to do.
func (s *Store) RunDailyMaintenance(ctx context.Context, sender string) error {
	cutoff := time.Now().Format("2006-01-02") + " 00:00:00"

	rows, err := s.db.Query(
		"SELECT id, role, content, created_at FROM conversations WHERE sender = ? AND created_at < ? ORDER BY id ASC",
		sender, cutoff,
	)
	if err != nil {
		return fmt.Errorf("failed to read old conversations: %w", err)
	}
	var old []archivedRow
	for rows.Next() {
		var r archivedRow
		if err := rows.Scan(&r.id, &r.role, &r.content, &r.createdAt); err != nil {
			rows.Close()
			return err
		}
		old = append(old, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(old) == 0 {
		return nil
	}

	slog.Info("memory maintenance", "sender", sender, "oldMessages", len(old))

	// Group by calendar day, preserving day order of first appearance.
	byDay := make(map[string][]archivedRow)
	var days []string
	for _, r := range old {
		day := r.createdAt[:10]
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], r)
	}

	for _, day := range days {
		if err := s.archiveDay(ctx, sender, day, byDay[day]); err != nil {
			return fmt.Errorf("failed to archive %s: %w", day, err)
		}
	}

	ids := make([]string, len(old))
	args := make([]any, len(old))
	for i, r := range old {
		ids[i] = "?"
		args[i] = r.id
	}
	if _, err := s.db.Exec(
		"DELETE FROM conversations WHERE id IN ("+strings.Join(ids, ",")+")", args...,
	); err != nil {
		return fmt.Errorf("failed to prune live conversations: %w", err)
	}

	slog.Info("memory archived", "sender", sender, "messages", len(old), "days", len(days))
	return nil
}

// archiveDay summarises one day and writes the summary plus the full rows to
// the archive.
func (s *Store) archiveDay(ctx context.Context, sender, day string, rowsForDay []archivedRow) error {
	var lines []string
	for _, r := range rowsForDay {
		label := "Agent"
		if r.role == "user" {
			label = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, r.content))
	}
	conversationText := strings.Join(lines, "\n")

	summary := s.summarizeOrTruncate(ctx, conversationText)
	slog.Info("memory summary", "sender", sender, "day", day, "summary", firstN(summary, 80))

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO daily_summaries (sender, summary_date, summary) VALUES (?, ?, ?)",
		sender, day, summary,
	); err != nil {
		return err
	}
	for _, r := range rowsForDay {
		origDate := r.createdAt[:10]
		origTime := "00:00:00"
		if len(r.createdAt) >= 19 {
			origTime = r.createdAt[11:19]
		}
		if _, err := tx.Exec(
			"INSERT INTO conversation_archive (sender, role, content, original_date, original_time) VALUES (?, ?, ?, ?, ?)",
			sender, r.role, r.content, origDate, origTime,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const summaryInputLimit = 4000

func (s *Store) summarizeOrTruncate(ctx context.Context, conversationText string) string {
	if s.summarize != nil {
		input := firstN(conversationText, summaryInputLimit)
		prompt := "Summarise the following conversation in 2-3 concise sentences. " +
			"Focus on what was requested and what was accomplished. " +
			"Do not include greetings or filler.\n\n" + input
		if summary, err := s.summarize(ctx, prompt); err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary)
		} else if err != nil {
			slog.Warn("summarisation failed, using truncation", "error", err)
		}
	}
	if len(conversationText) > 300 {
		return conversationText[:300] + "…"
	}
	return conversationText
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
