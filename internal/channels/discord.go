package channels

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/coopco/hostagent/internal/deliver"
	"github.com/coopco/hostagent/internal/dispatch"
	"github.com/coopco/hostagent/internal/files"
	"github.com/coopco/hostagent/internal/msg"
)

// DiscordChannel is the second push-based channel. Like Telegram, the
// trigger prefix is optional and each message is handled on the gateway's
// own event goroutine.
type DiscordChannel struct {
	session      *discordgo.Session
	dispatcher   *dispatch.Dispatcher
	allowedUsers map[string]bool
	identity     map[string]string
	dirs         files.Dirs
	chunkLimit   int

	mu       sync.Mutex
	channels map[string]string // canonical sender -> discord channel id
	seq      int64

	wg sync.WaitGroup
}

// NewDiscord creates the Discord channel.
func NewDiscord(token string, allowedUsers []string, identity map[string]string, d *dispatch.Dispatcher, dirs files.Dirs, chunkLimit int) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	allowed := make(map[string]bool, len(allowedUsers))
	for _, u := range allowedUsers {
		allowed[u] = true
	}
	return &DiscordChannel{
		session:      session,
		dispatcher:   d,
		allowedUsers: allowed,
		identity:     identity,
		dirs:         dirs,
		chunkLimit:   chunkLimit,
		channels:     make(map[string]string),
	}, nil
}

func (c *DiscordChannel) Name() string { return "discord" }

func (c *DiscordChannel) canonicalSender(userID string) string {
	if mapped, ok := c.identity[userID]; ok {
		return mapped
	}
	return "discord:" + userID
}

// Start opens the gateway connection and installs the message handler.
func (c *DiscordChannel) Start(ctx context.Context) error {
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		if !c.allowedUsers[m.Author.ID] {
			slog.Info("discord: unauthorized user", "userID", m.Author.ID)
			return
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.handleMessage(ctx, m)
		}()
	})
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: failed to open gateway: %w", err)
	}
	slog.Info("discord bot started", "allowedUsers", len(c.allowedUsers))
	return nil
}

// Stop closes the gateway and drains in-flight handlers.
func (c *DiscordChannel) Stop() error {
	err := c.session.Close()
	c.wg.Wait()
	return err
}

func (c *DiscordChannel) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	sender := c.canonicalSender(m.Author.ID)
	c.mu.Lock()
	c.channels[sender] = m.ChannelID
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	var attachments []msg.Attachment
	for _, att := range m.Attachments {
		if local := c.downloadAttachment(att); local != "" {
			attachments = append(attachments, msg.Attachment{
				Path: local,
				MIME: att.ContentType,
				Name: att.Filename,
				Size: int64(att.Size),
			})
		}
	}

	slog.Info("discord message", "sender", sender,
		"text", dispatch.SanitizeForLog(m.Content), "attachments", len(attachments))

	c.dispatcher.Handle(ctx, c, msg.Inbound{
		Seq:         seq,
		Sender:      sender,
		Text:        m.Content,
		Attachments: attachments,
	}, true)
}

func (c *DiscordChannel) downloadAttachment(att *discordgo.MessageAttachment) string {
	local, err := c.dirs.ReservePath(att.Filename)
	if err != nil {
		slog.Error("discord download error", "name", att.Filename, "error", err)
		return ""
	}
	resp, err := http.Get(att.URL)
	if err != nil {
		slog.Error("discord download error", "name", att.Filename, "error", err)
		return ""
	}
	defer resp.Body.Close()

	out, err := os.Create(local)
	if err != nil {
		slog.Error("discord download error", "name", att.Filename, "error", err)
		return ""
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		slog.Error("discord download error", "name", att.Filename, "error", err)
		return ""
	}
	slog.Info("discord file downloaded", "path", local)
	return local
}

func (c *DiscordChannel) channelFor(sender string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.channels[sender]
	if !ok {
		return "", fmt.Errorf("discord: no known channel for sender %q", sender)
	}
	return id, nil
}

// SendText delivers text to the sender's channel, chunked with retries.
func (c *DiscordChannel) SendText(ctx context.Context, sender, text string) error {
	channelID, err := c.channelFor(sender)
	if err != nil {
		return err
	}
	s := deliver.NewSender(c.chunkLimit, func(ctx context.Context, chunk string) error {
		_, err := c.session.ChannelMessageSend(channelID, chunk)
		return err
	})
	return s.Deliver(ctx, text)
}

// SendFile uploads a file to the sender's channel.
func (c *DiscordChannel) SendFile(ctx context.Context, sender, path string) error {
	channelID, err := c.channelFor(sender)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("discord file send failed: %w", err)
	}
	defer f.Close()
	if _, err := c.session.ChannelFileSend(channelID, filepath.Base(path), f); err != nil {
		return fmt.Errorf("discord file send failed: %w", err)
	}
	return nil
}
