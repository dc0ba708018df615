// Package deliver splits long outbound text into channel-sized chunks and
// sends them with bounded retries. Partial delivery is preferred over total
// silence: a chunk that exhausts its retries is logged and skipped.
package deliver

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
	// Pause between consecutive chunks so channels without intrinsic
	// ordering guarantees deliver them in order.
	DefaultChunkPause = 500 * time.Millisecond
)

// Chunks splits text into pieces of at most max characters, preferring a
// newline boundary, then a space boundary, then a hard cut. Leading "\n "
// characters are stripped from each remainder.
func Chunks(text string, max int) []string {
	if text == "" {
		return nil
	}
	if max <= 0 {
		return []string{text}
	}

	var chunks []string
	for len(text) > max {
		splitAt := strings.LastIndex(text[:max], "\n")
		if splitAt <= 0 {
			splitAt = strings.LastIndex(text[:max], " ")
		}
		if splitAt <= 0 {
			splitAt = max
		}
		chunks = append(chunks, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], "\n ")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// SendFunc sends one chunk over the underlying transport.
type SendFunc func(ctx context.Context, chunk string) error

// Sender chunks and delivers outbound text.
type Sender struct {
	Send       SendFunc
	MaxChunk   int
	MaxRetries int
	RetryDelay time.Duration
	ChunkPause time.Duration
}

// NewSender returns a Sender with the default retry policy.
func NewSender(maxChunk int, send SendFunc) *Sender {
	return &Sender{
		Send:       send,
		MaxChunk:   maxChunk,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		ChunkPause: DefaultChunkPause,
	}
}

// Deliver sends text in order, one chunk at a time. Each chunk is retried up
// to MaxRetries times; a failed chunk never blocks later chunks. Returns early
// only when ctx is cancelled.
func (s *Sender) Deliver(ctx context.Context, text string) error {
	chunks := Chunks(text, s.MaxChunk)
	total := len(chunks)

	for i, chunk := range chunks {
		if total > 1 {
			slog.Info("sending chunk", "index", i+1, "total", total, "chars", len(chunk))
		}

		if err := s.sendWithRetry(ctx, chunk); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("chunk failed after all retries", "index", i+1, "total", total, "error", err)
		}

		if i < total-1 {
			select {
			case <-time.After(s.ChunkPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

func (s *Sender) sendWithRetry(ctx context.Context, chunk string) error {
	var lastErr error
	for attempt := 1; attempt <= s.MaxRetries; attempt++ {
		lastErr = s.Send(ctx, chunk)
		if lastErr == nil {
			return nil
		}
		slog.Warn("send failed", "attempt", attempt, "maxRetries", s.MaxRetries, "error", lastErr)
		if attempt < s.MaxRetries {
			select {
			case <-time.After(s.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}
