package dispatch

import (
	"testing"

	"github.com/coopco/hostagent/internal/msg"
	"github.com/coopco/hostagent/internal/session"
)

const trigger = "/c "

func TestRouteDecisionTable(t *testing.T) {
	att := []msg.Attachment{{Path: "/tmp/a.png", Name: "a.png"}}

	tests := []struct {
		name            string
		m               msg.Inbound
		state           session.State
		expired         bool
		triggerOptional bool
		wantAction      Action
		wantCommand     string
	}{
		{
			name:       "plain text idle ignored",
			m:          msg.Inbound{Text: "hello"},
			state:      session.Idle,
			wantAction: Ignore,
		},
		{
			name:        "trigger command",
			m:           msg.Inbound{Text: "/c list files"},
			state:       session.Idle,
			wantAction:  NewCommand,
			wantCommand: "list files",
		},
		{
			name:        "trigger with attachments",
			m:           msg.Inbound{Text: "/c summarize", Attachments: att},
			state:       session.Idle,
			wantAction:  NewFileCommand,
			wantCommand: "summarize",
		},
		{
			name:       "attachment without trigger ignored",
			m:          msg.Inbound{Text: "", Attachments: att},
			state:      session.Idle,
			wantAction: Ignore,
		},
		{
			name:        "awaiting reply consumes plain text",
			m:           msg.Inbound{Text: "yes"},
			state:       session.AwaitingReply,
			wantAction:  InteractiveReply,
			wantCommand: "yes",
		},
		{
			name:        "trigger preempts awaiting reply",
			m:           msg.Inbound{Text: "/c status"},
			state:       session.AwaitingReply,
			wantAction:  NewCommand,
			wantCommand: "status",
		},
		{
			name:       "expired wait yields timeout notice",
			m:          msg.Inbound{Text: "yes"},
			state:      session.AwaitingReply,
			expired:    true,
			wantAction: TimeoutNotice,
		},
		{
			name:       "self message without trigger ignored",
			m:          msg.Inbound{Text: "hello", FromSelf: true},
			state:      session.Idle,
			wantAction: Ignore,
		},
		{
			name:        "self message with trigger is a command",
			m:           msg.Inbound{Text: "/c uptime", FromSelf: true},
			state:       session.Idle,
			wantAction:  NewCommand,
			wantCommand: "uptime",
		},
		{
			name:       "self message ignored even while awaiting",
			m:          msg.Inbound{Text: "yes", FromSelf: true},
			state:      session.AwaitingReply,
			wantAction: Ignore,
		},
		{
			name:            "trigger optional plain text is a command",
			m:               msg.Inbound{Text: "list files"},
			state:           session.Idle,
			triggerOptional: true,
			wantAction:      NewCommand,
			wantCommand:     "list files",
		},
		{
			name:            "trigger optional attachments become file command",
			m:               msg.Inbound{Text: "", Attachments: att},
			state:           session.Idle,
			triggerOptional: true,
			wantAction:      NewFileCommand,
		},
		{
			name:            "trigger optional empty message ignored",
			m:               msg.Inbound{Text: "  "},
			state:           session.Idle,
			triggerOptional: true,
			wantAction:      Ignore,
		},
		{
			name:            "trigger optional awaiting reply still a reply",
			m:               msg.Inbound{Text: "option 2"},
			state:           session.AwaitingReply,
			triggerOptional: true,
			wantAction:      InteractiveReply,
			wantCommand:     "option 2",
		},
		{
			name:        "object replacement chars stripped",
			m:           msg.Inbound{Text: "￼/c read it", Attachments: att},
			state:       session.Idle,
			wantAction:  NewFileCommand,
			wantCommand: "read it",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := Route(tt.m, tt.state, tt.expired, trigger, tt.triggerOptional)
			if dec.Action != tt.wantAction {
				t.Fatalf("action = %v, want %v", dec.Action, tt.wantAction)
			}
			if tt.wantCommand != "" && dec.Command != tt.wantCommand {
				t.Errorf("command = %q, want %q", dec.Command, tt.wantCommand)
			}
		})
	}
}

func TestRoutePrecedenceCommandOverReply(t *testing.T) {
	// A fresh command must never be folded into a stale conversation, even
	// when the deadline has also expired.
	dec := Route(msg.Inbound{Text: "/c status"}, session.AwaitingReply, true, trigger, false)
	if dec.Action != NewCommand {
		t.Fatalf("action = %v, want NewCommand", dec.Action)
	}
	if dec.Command != "status" {
		t.Errorf("command = %q, want %q", dec.Command, "status")
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := SanitizeForLog("hunter2!aB9"); got != "[REDACTED_CREDENTIAL]" {
		t.Errorf("credential not masked: %q", got)
	}
	if got := SanitizeForLog("yes"); got != "yes" {
		t.Errorf("short reply mangled: %q", got)
	}
	if got := SanitizeForLog("list all files please"); got != "list all files please" {
		t.Errorf("plain sentence mangled: %q", got)
	}
}
