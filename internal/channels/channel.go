// Package channels contains the transport adapters. Two shapes exist: a
// pull adapter polled on a fixed interval against a persisted cursor, and
// push adapters driven by their transport's own event loop. Both hand every
// message to the shared dispatcher.
package channels

import (
	"context"
	"errors"

	"github.com/coopco/hostagent/internal/msg"
)

// ErrNotAccessible reports a permission or configuration failure reaching the
// underlying message store. The poller backs off and retries on the next
// tick; no message is lost because the cursor does not advance.
var ErrNotAccessible = errors.New("message store not accessible")

// PullAdapter is the polled channel contract. Fetch must return messages
// with sequence numbers strictly greater than cursor, in order, and must be
// safe to call repeatedly with the same cursor until Commit advances it.
type PullAdapter interface {
	Fetch(ctx context.Context, cursor int64) ([]msg.Inbound, error)
	Commit(cursor int64) error
	Cursor() (int64, error)
}

// PushChannel is the event-driven channel contract. Start installs the
// message handler and returns; Stop tells the transport to stop accepting
// new work and drains in-flight handlers.
type PushChannel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}
