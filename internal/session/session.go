// Package session tracks per-sender conversational state. A session is Idle
// until the executor poses a [NEED_INPUT:...] question, at which point it
// waits for the sender's next message until a deadline elapses.
package session

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// State is the session's position in the interactive exchange.
type State int

const (
	Idle State = iota
	AwaitingReply
)

func (s State) String() string {
	if s == AwaitingReply {
		return "awaiting_reply"
	}
	return "idle"
}

// Roles of a conversation turn.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Turn is one entry in a session's conversation history.
type Turn struct {
	Role    string
	Content string
}

// Session holds one sender's multi-turn conversation state. Callers never
// mutate a session field-by-field across messages; on reset or preemption the
// store entry is replaced wholesale with New().
type Session struct {
	State          State
	OriginalPrompt string
	History        []Turn
	Deadline       time.Time // set only while AwaitingReply
}

// New returns a fresh Idle session.
func New() *Session {
	return &Session{}
}

// NewWithPrompt returns a fresh session seeded with a command as its original
// prompt, as happens when a trigger-prefixed command starts a new exchange.
func NewWithPrompt(prompt string) *Session {
	return &Session{OriginalPrompt: prompt}
}

var needInputRE = regexp.MustCompile(`(?s)\[NEED_INPUT:(.*?)\]`)

// ExtractQuestion scans executor output for [NEED_INPUT:question]. It returns
// the text with all NEED_INPUT tags removed, the first question found, and
// whether a question was present.
func ExtractQuestion(response string) (clean, question string, ok bool) {
	if response == "" {
		return response, "", false
	}
	m := needInputRE.FindStringSubmatch(response)
	if m == nil {
		return response, "", false
	}
	question = strings.TrimSpace(m[1])
	clean = strings.TrimSpace(needInputRE.ReplaceAllString(response, ""))
	return clean, question, true
}

// RecordAgentTurn saves an agent turn to history. Called before StartWaiting
// so the posed question's surrounding response is part of the follow-up context.
func (s *Session) RecordAgentTurn(content string) {
	s.History = append(s.History, Turn{Role: RoleAgent, Content: content})
}

// StartWaiting marks the session as waiting for the sender's next reply.
func (s *Session) StartWaiting(now time.Time, timeout time.Duration) {
	s.State = AwaitingReply
	s.Deadline = now.Add(timeout)
}

// TimedOut reports whether the wait deadline has elapsed.
func (s *Session) TimedOut(now time.Time) bool {
	return s.State == AwaitingReply && now.After(s.Deadline)
}

// BuildFollowup appends the sender's reply to history, clears the waiting
// state and renders the follow-up prompt embedding the original request and
// the full conversation so far.
func (s *Session) BuildFollowup(reply string) string {
	s.History = append(s.History, Turn{Role: RoleUser, Content: reply})
	s.State = Idle
	s.Deadline = time.Time{}

	var b strings.Builder
	fmt.Fprintf(&b, "Original request: %s\n", s.OriginalPrompt)
	b.WriteString("Conversation history:\n")
	for _, t := range s.History {
		fmt.Fprintf(&b, "  %s: %s\n", t.Role, t.Content)
	}
	fmt.Fprintf(&b, "\nThe user replied: '%s'. Continue the task.", reply)
	return b.String()
}
