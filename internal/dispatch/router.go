package dispatch

import (
	"strings"

	"github.com/coopco/hostagent/internal/msg"
	"github.com/coopco/hostagent/internal/session"
)

// Action is the routing outcome for one inbound message.
type Action int

const (
	// Ignore drops the message: self-echo, attachment without a trigger, or
	// plain chatter while no question is pending.
	Ignore Action = iota
	// NewCommand starts a fresh exchange from a trigger-prefixed command.
	NewCommand
	// NewFileCommand starts a fresh exchange from a command with attachments.
	NewFileCommand
	// InteractiveReply feeds the message into the pending question.
	InteractiveReply
	// TimeoutNotice reports an expired wait and resets the session.
	TimeoutNotice
)

func (a Action) String() string {
	switch a {
	case NewCommand:
		return "new_command"
	case NewFileCommand:
		return "new_file_command"
	case InteractiveReply:
		return "interactive_reply"
	case TimeoutNotice:
		return "timeout_notice"
	default:
		return "ignore"
	}
}

// Decision is the routing result. Command holds the text after the trigger
// prefix for commands, or the cleaned reply text for InteractiveReply.
type Decision struct {
	Action  Action
	Command string
}

// CleanText strips U+FFFC object replacement characters (inserted by some
// channels as inline-attachment placeholders) and surrounding whitespace.
func CleanText(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "￼", ""))
}

// Route classifies one message against the sender's session state. Pure
// function; precedence:
//
//  1. self-originated without the trigger prefix → Ignore
//  2. trigger prefix + attachments → NewFileCommand (preempts any pending question)
//  3. trigger prefix → NewCommand (preempts any pending question)
//  4. awaiting a reply, no trigger → InteractiveReply, or TimeoutNotice past the deadline
//  5. attachments without trigger → Ignore (or NewFileCommand when the
//     channel treats every message as a command)
//  6. otherwise → Ignore (or NewCommand on trigger-optional channels)
//
// Explicit commands outrank interactive continuation: a fresh instruction is
// never folded into a stale conversation.
func Route(m msg.Inbound, state session.State, expired bool, trigger string, triggerOptional bool) Decision {
	text := CleanText(m.Text)
	hasTrigger := strings.HasPrefix(text, trigger)

	if m.FromSelf && !hasTrigger {
		return Decision{Action: Ignore}
	}

	command := text
	if hasTrigger {
		command = strings.TrimSpace(text[len(trigger):])
	}

	if hasTrigger {
		if len(m.Attachments) > 0 {
			return Decision{Action: NewFileCommand, Command: command}
		}
		return Decision{Action: NewCommand, Command: command}
	}

	if state == session.AwaitingReply {
		if expired {
			return Decision{Action: TimeoutNotice}
		}
		return Decision{Action: InteractiveReply, Command: text}
	}

	if triggerOptional {
		if len(m.Attachments) > 0 {
			return Decision{Action: NewFileCommand, Command: command}
		}
		if command != "" {
			return Decision{Action: NewCommand, Command: command}
		}
	}

	return Decision{Action: Ignore}
}
