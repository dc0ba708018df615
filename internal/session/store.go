package session

import "sync"

// entry is the per-sender record. Its mutex serializes every read-modify-write
// against that sender's session; distinct senders never contend. The
// maintenance flag lives here, not on the Session, so it survives session
// replacement for the process lifetime.
type entry struct {
	mu              sync.Mutex
	sess            *Session
	maintenanceDone bool
}

// Store is a concurrency-safe mapping from sender identity to Session. It is
// the only owner of sessions: callers interact through With and never retain
// a *Session across calls.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Handle gives fn scoped access to one sender's state while the sender's
// lock is held.
type Handle struct {
	e *entry
}

// Session returns the sender's current session, creating an Idle one lazily.
func (h *Handle) Session() *Session {
	if h.e.sess == nil {
		h.e.sess = New()
	}
	return h.e.sess
}

// Replace swaps in a brand-new session, discarding the old one.
func (h *Handle) Replace(s *Session) {
	h.e.sess = s
}

// MarkMaintenance reports true exactly once per sender per process lifetime,
// for first-contact maintenance that must not run twice.
func (h *Handle) MarkMaintenance() bool {
	if h.e.maintenanceDone {
		return false
	}
	h.e.maintenanceDone = true
	return true
}

// With runs fn under the sender's exclusive lock. Two messages from the same
// sender are fully serialized; messages from different senders proceed in
// parallel.
func (st *Store) With(sender string, fn func(h *Handle)) {
	st.mu.Lock()
	e, ok := st.entries[sender]
	if !ok {
		e = &entry{}
		st.entries[sender] = e
	}
	st.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&Handle{e: e})
}

// Snapshot returns a copy of the sender's session for inspection without
// holding the lock. Intended for tests and status reporting.
func (st *Store) Snapshot(sender string) Session {
	var out Session
	st.With(sender, func(h *Handle) {
		s := h.Session()
		out = *s
		out.History = append([]Turn(nil), s.History...)
	})
	return out
}
