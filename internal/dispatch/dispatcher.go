// Package dispatch is the multi-channel command dispatch engine: it routes
// inbound messages against per-sender session state, drives the executor,
// post-processes side-effect directives and delivers replies, all under a
// per-sender exclusive region so concurrent channels cannot corrupt a
// conversation.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/coopco/hostagent/internal/directive"
	"github.com/coopco/hostagent/internal/executor"
	"github.com/coopco/hostagent/internal/files"
	"github.com/coopco/hostagent/internal/msg"
	"github.com/coopco/hostagent/internal/session"
)

// TimeoutNoticeText is sent once when a pending question expires.
const TimeoutNoticeText = "⏰ Response timeout. Interactive session ended."

// Transport sends outbound traffic to one sender on one channel. SendText is
// expected to chunk and retry internally.
type Transport interface {
	Name() string
	SendText(ctx context.Context, sender, text string) error
	SendFile(ctx context.Context, sender, path string) error
}

// Memory is the conversation-context collaborator.
type Memory interface {
	SaveMessage(sender, role, content string) error
	ContextPrefix(sender string) string
	RunDailyMaintenance(ctx context.Context, sender string) error
}

// Capturer takes screenshots for [SEND_SCREENSHOT] directives.
type Capturer interface {
	Capture(ctx context.Context, appName string) (string, error)
}

// Dispatcher owns the per-message pipeline shared by every channel.
type Dispatcher struct {
	Store    *session.Store
	Exec     executor.Runner
	Memory   Memory
	Files    *files.Processor
	Shots    Capturer
	Stats    *Stats
	FileDirs files.Dirs

	Trigger        string
	SessionTimeout time.Duration
	ExecTimeout    time.Duration
}

// Handle processes one inbound message end to end. The sender's store lock is
// held for the whole pipeline, so two messages from one sender are fully
// serialized while other senders proceed in parallel. It never returns an
// error: every failure is logged and surfaced to the sender as a short reply.
func (d *Dispatcher) Handle(ctx context.Context, t Transport, m msg.Inbound, triggerOptional bool) {
	d.Store.With(m.Sender, func(h *session.Handle) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("dispatch panic", "channel", t.Name(), "sender", m.Sender, "seq", m.Seq, "panic", r)
				d.sendText(ctx, t, m.Sender, fmt.Sprintf("❌ Error: %v", r))
			}
		}()
		d.handleLocked(ctx, t, m, h, triggerOptional)
	})
}

func (d *Dispatcher) handleLocked(ctx context.Context, t Transport, m msg.Inbound, h *session.Handle, triggerOptional bool) {
	sender := m.Sender

	// First-contact maintenance, once per sender per process lifetime.
	if h.MarkMaintenance() {
		if err := d.Memory.RunDailyMaintenance(ctx, sender); err != nil {
			slog.Warn("memory maintenance error", "sender", sender, "error", err)
		}
	}

	sess := h.Session()
	now := time.Now()
	dec := Route(m, sess.State, sess.TimedOut(now), d.Trigger, triggerOptional)

	switch dec.Action {
	case Ignore:
		slog.Debug("ignoring message", "channel", t.Name(), "sender", sender, "seq", m.Seq)
		return

	case TimeoutNotice:
		slog.Info("interactive session timed out", "sender", sender)
		d.sendText(ctx, t, sender, TimeoutNoticeText)
		h.Replace(session.New())
		return
	}

	var raw string
	switch dec.Action {
	case NewCommand, NewFileCommand:
		if sess.State == session.AwaitingReply {
			slog.Info("new command preempts interactive session", "sender", sender)
		}
		sess = session.NewWithPrompt(dec.Command)
		h.Replace(sess)

		if dec.Action == NewFileCommand {
			slog.Info("processing file command", "sender", sender,
				"command", preview(dec.Command, 80), "attachments", len(m.Attachments))
			raw = d.Files.Process(ctx, m.Attachments, dec.Command)
		} else {
			d.Stats.Record(dec.Command)
			if strings.EqualFold(strings.TrimSpace(dec.Command), "status") {
				raw = d.Stats.StatusMessage()
				break
			}
			slog.Info("processing command", "sender", sender, "command", preview(dec.Command, 120))
			if err := d.Memory.SaveMessage(sender, "user", dec.Command); err != nil {
				slog.Warn("memory save error", "sender", sender, "error", err)
			}
			raw = d.Exec.Execute(ctx, dec.Command, d.Memory.ContextPrefix(sender))
		}

	case InteractiveReply:
		raw = d.handleReply(ctx, sess, sender, dec.Command, m.Attachments)
	}

	response, question, hasQuestion := session.ExtractQuestion(raw)

	if response != "" {
		effects := &transportEffects{t: t, sender: sender, shots: d.Shots}
		var sent []string
		response, sent = directive.Process(ctx, response, effects)
		if len(sent) > 0 {
			slog.Info("files sent", "sender", sender, "files", sent)
		}
	}

	if response != "" {
		if err := d.Memory.SaveMessage(sender, "assistant", response); err != nil {
			slog.Warn("memory save error", "sender", sender, "error", err)
		}
	}

	slog.Info("response ready", "sender", sender, "len", len(response), "question", hasQuestion)

	if hasQuestion {
		sess.RecordAgentTurn(response)
		sess.StartWaiting(time.Now(), d.SessionTimeout)
		full := "❓ " + question
		if response != "" {
			full = response + "\n\n❓ " + question
		}
		d.sendText(ctx, t, sender, full)
		return
	}

	if response == "" {
		response = "⚠️ No response received."
	}
	d.sendText(ctx, t, sender, response)
	h.Replace(session.New())
}

// handleReply feeds the sender's answer into the pending question. Attached
// files are copied to the inbox and referenced in the reply content.
func (d *Dispatcher) handleReply(ctx context.Context, sess *session.Session, sender, text string, attachments []msg.Attachment) string {
	slog.Info("interactive reply", "sender", sender,
		"text", preview(SanitizeForLog(text), 80), "attachments", len(attachments))

	replyContent := text
	if len(attachments) > 0 {
		var inboxPaths []string
		for _, att := range attachments {
			local, err := d.FileDirs.CopyToInbox(att.Path)
			if err != nil {
				slog.Warn("could not copy reply attachment", "sender", sender, "error", err)
				continue
			}
			inboxPaths = append(inboxPaths, local)
		}
		if len(inboxPaths) > 0 {
			fileList := strings.Join(inboxPaths, ", ")
			if text != "" {
				replyContent = fmt.Sprintf("%s\n[Attached files: %s]", text, fileList)
			} else {
				replyContent = fmt.Sprintf("[Attached files: %s]", fileList)
			}
		}
	}

	followup := sess.BuildFollowup(replyContent)
	out, err := d.Exec.Invoke(ctx, followup, d.Memory.ContextPrefix(sender))
	if err != nil {
		return executor.Render(err, int(d.ExecTimeout/time.Second))
	}
	return out
}

func (d *Dispatcher) sendText(ctx context.Context, t Transport, sender, text string) {
	if err := t.SendText(ctx, sender, text); err != nil {
		slog.Error("failed to send message", "channel", t.Name(), "sender", sender, "error", err)
	}
}

// transportEffects binds directive side effects to one sender on one channel.
type transportEffects struct {
	t      Transport
	sender string
	shots  Capturer
}

func (e *transportEffects) SendFile(ctx context.Context, path string) error {
	return e.t.SendFile(ctx, e.sender, path)
}

func (e *transportEffects) Screenshot(ctx context.Context, appName string) (string, error) {
	if e.shots == nil {
		return "", fmt.Errorf("screenshot capture not available")
	}
	return e.shots.Capture(ctx, appName)
}

// SanitizeForLog masks strings that look like credentials (8+ chars mixing
// letters, digits and symbols) before they reach the log.
func SanitizeForLog(text string) string {
	t := strings.TrimSpace(text)
	if len(t) < 8 {
		return text
	}
	var hasLetter, hasDigit, hasOther bool
	for _, r := range t {
		switch {
		case ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z'):
			hasLetter = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasOther = true
		}
	}
	if hasLetter && hasDigit && hasOther && !strings.ContainsAny(t, " \n") {
		return "[REDACTED_CREDENTIAL]"
	}
	return text
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
