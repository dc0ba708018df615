package channels

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/coopco/hostagent/internal/msg"
)

// DispatchFunc hands one message to the dispatch engine and returns when its
// outcome is finalized (reply sent or error reported).
type DispatchFunc func(ctx context.Context, m msg.Inbound)

// Poller drives a PullAdapter on a fixed interval. Within a batch, messages
// are grouped by sender and each sender's slice runs on its own worker in
// order, so one slow execution does not stall the other senders while
// per-sender ordering is preserved. The cursor is committed in global
// sequence order as each message finalizes, which keeps committed values
// monotonic and never ahead of an unfinished message.
type Poller struct {
	Adapter  PullAdapter
	Dispatch DispatchFunc
	Interval time.Duration
}

// Run polls until ctx is cancelled, finishing the in-flight batch first.
func (p *Poller) Run(ctx context.Context) error {
	cursor, err := p.Adapter.Cursor()
	if err != nil {
		return err
	}
	slog.Info("poller started", "cursor", cursor, "interval", p.Interval)

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		batch, err := p.Adapter.Fetch(ctx, cursor)
		switch {
		case errors.Is(err, ErrNotAccessible):
			slog.Error("message store not accessible", "error", err)
		case err != nil && ctx.Err() == nil:
			slog.Error("message fetch error", "error", err)
		case err == nil:
			cursor = p.processBatch(ctx, cursor, batch)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			slog.Info("poller stopped", "cursor", cursor)
			return ctx.Err()
		}
	}
}

// processBatch dispatches one fetched batch and returns the new cursor.
func (p *Poller) processBatch(ctx context.Context, cursor int64, batch []msg.Inbound) int64 {
	if len(batch) == 0 {
		return cursor
	}

	done := make([]chan struct{}, len(batch))
	for i := range batch {
		done[i] = make(chan struct{})
	}

	bySender := make(map[string][]int)
	var senders []string
	for i, m := range batch {
		if _, ok := bySender[m.Sender]; !ok {
			senders = append(senders, m.Sender)
		}
		bySender[m.Sender] = append(bySender[m.Sender], i)
	}

	var wg sync.WaitGroup
	for _, sender := range senders {
		indexes := bySender[sender]
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, i := range indexes {
				p.Dispatch(ctx, batch[i])
				close(done[i])
			}
		}()
	}

	// Commit in sequence order as messages finalize. A message whose
	// processing failed is still committed: errors are reported to the
	// sender, not retried.
	for i, m := range batch {
		<-done[i]
		cursor = m.Seq
		if err := p.Adapter.Commit(cursor); err != nil {
			slog.Error("failed to commit cursor", "cursor", cursor, "error", err)
		}
	}
	wg.Wait()
	return cursor
}
