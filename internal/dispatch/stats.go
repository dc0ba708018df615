package dispatch

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Stats tracks dispatch counters. Safe for concurrent use from the polling
// loop and the push handlers.
type Stats struct {
	mu          sync.Mutex
	start       time.Time
	processed   int
	lastCommand string
	lastTime    time.Time
}

// NewStats starts the uptime clock.
func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

// Record counts one processed command.
func (s *Stats) Record(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	s.lastCommand = command
	s.lastTime = time.Now()
}

// Processed returns the number of commands recorded so far.
func (s *Stats) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

// StatusMessage renders the built-in "status" command reply.
func (s *Stats) StatusMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	uptime := now.Sub(s.start)
	hours := int(uptime.Hours())
	minutes := int(uptime.Minutes()) % 60

	var b strings.Builder
	b.WriteString("🤖 Agent Status\n")
	fmt.Fprintf(&b, "Uptime: %dh %dm\n", hours, minutes)
	fmt.Fprintf(&b, "Commands processed: %d\n", s.processed)

	if s.lastCommand != "" {
		preview := s.lastCommand
		if len(preview) > 50 {
			preview = preview[:50] + "…"
		}
		elapsed := int(now.Sub(s.lastTime).Minutes())
		fmt.Fprintf(&b, "Last command: %s (%dm ago)", preview, elapsed)
	} else {
		b.WriteString("Last command: none")
	}
	return b.String()
}
