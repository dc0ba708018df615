package channels

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/coopco/hostagent/internal/deliver"
	"github.com/coopco/hostagent/internal/dispatch"
	"github.com/coopco/hostagent/internal/files"
	"github.com/coopco/hostagent/internal/msg"
)

// TelegramChannel is the push-based bot channel. Every update is handled on
// its own goroutine; the dispatcher's per-sender lock provides the required
// serialization. The trigger prefix is optional here — on a dedicated bot
// chat every message is a command.
type TelegramChannel struct {
	bot        *tgbotapi.BotAPI
	dispatcher *dispatch.Dispatcher
	allowedIDs map[int64]bool
	identity   map[string]string
	dirs       files.Dirs
	chunkLimit int

	mu    sync.Mutex
	chats map[string]int64 // canonical sender -> chat id

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewTelegram creates the Telegram channel.
func NewTelegram(token string, allowedIDs []int64, identity map[string]string, d *dispatch.Dispatcher, dirs files.Dirs, chunkLimit int) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	allowed := make(map[int64]bool, len(allowedIDs))
	for _, id := range allowedIDs {
		allowed[id] = true
	}
	return &TelegramChannel{
		bot:        bot,
		dispatcher: d,
		allowedIDs: allowed,
		identity:   identity,
		dirs:       dirs,
		chunkLimit: chunkLimit,
		chats:      make(map[string]int64),
		stopCh:     make(chan struct{}),
	}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

// canonicalSender maps a Telegram user id to the identity memory is keyed on.
func (c *TelegramChannel) canonicalSender(userID int64) string {
	uid := strconv.FormatInt(userID, 10)
	if mapped, ok := c.identity[uid]; ok {
		return mapped
	}
	return "telegram:" + uid
}

// Start begins long-polling for updates. Disallowed users are ignored; an
// empty allow list denies everyone.
func (c *TelegramChannel) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)
	slog.Info("telegram bot polling started", "allowedIDs", len(c.allowedIDs))

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil {
					continue
				}
				c.wg.Add(1)
				go func(update tgbotapi.Update) {
					defer c.wg.Done()
					c.handleUpdate(ctx, update)
				}(update)
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case <-c.stopCh:
				c.bot.StopReceivingUpdates()
				return
			}
		}
	}()
	return nil
}

// Stop ends update polling and drains in-flight handlers.
func (c *TelegramChannel) Stop() error {
	close(c.stopCh)
	c.wg.Wait()
	return nil
}

func (c *TelegramChannel) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	m := update.Message
	if m.From == nil {
		return
	}
	if !c.allowedIDs[m.From.ID] {
		slog.Info("telegram: unauthorized user", "userID", m.From.ID, "username", m.From.UserName)
		return
	}

	sender := c.canonicalSender(m.From.ID)
	c.mu.Lock()
	c.chats[sender] = m.Chat.ID
	c.mu.Unlock()

	text := m.Text
	if text == "" {
		text = m.Caption
	}

	attachments := c.downloadAttachments(m)

	slog.Info("telegram message", "sender", sender, "userID", m.From.ID,
		"text", dispatch.SanitizeForLog(text), "attachments", len(attachments))

	// Typing indicator while the command runs.
	typingCtx, stopTyping := context.WithCancel(ctx)
	defer stopTyping()
	go c.typeWhileProcessing(typingCtx, m.Chat.ID)

	c.dispatcher.Handle(ctx, c, msg.Inbound{
		Seq:         int64(update.UpdateID),
		Sender:      sender,
		Text:        text,
		Attachments: attachments,
	}, true)
}

func (c *TelegramChannel) typeWhileProcessing(ctx context.Context, chatID int64) {
	ticker := time.NewTicker(4 * time.Second)
	defer ticker.Stop()
	for {
		if _, err := c.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// downloadAttachments pulls photos and documents into the inbox.
func (c *TelegramChannel) downloadAttachments(m *tgbotapi.Message) []msg.Attachment {
	var out []msg.Attachment

	if len(m.Photo) > 0 {
		photo := m.Photo[len(m.Photo)-1] // largest size
		name := fmt.Sprintf("photo_%s.jpg", photo.FileUniqueID)
		if local := c.downloadFile(photo.FileID, name); local != "" {
			out = append(out, msg.Attachment{
				Path: local,
				MIME: "image/jpeg",
				Name: name,
				Size: int64(photo.FileSize),
			})
		}
	}
	if m.Document != nil {
		doc := m.Document
		name := doc.FileName
		if name == "" {
			name = "file"
		}
		if local := c.downloadFile(doc.FileID, name); local != "" {
			out = append(out, msg.Attachment{
				Path: local,
				MIME: doc.MimeType,
				Name: name,
				Size: int64(doc.FileSize),
			})
		}
	}
	return out
}

func (c *TelegramChannel) downloadFile(fileID, name string) string {
	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		slog.Error("telegram file lookup error", "fileID", fileID, "error", err)
		return ""
	}
	local, err := c.dirs.ReservePath(name)
	if err != nil {
		slog.Error("telegram download error", "name", name, "error", err)
		return ""
	}

	resp, err := http.Get(file.Link(c.bot.Token))
	if err != nil {
		slog.Error("telegram download error", "name", name, "error", err)
		return ""
	}
	defer resp.Body.Close()

	out, err := os.Create(local)
	if err != nil {
		slog.Error("telegram download error", "name", name, "error", err)
		return ""
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		slog.Error("telegram download error", "name", name, "error", err)
		return ""
	}
	slog.Info("telegram file downloaded", "path", local)
	return local
}

func (c *TelegramChannel) chatFor(sender string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	chatID, ok := c.chats[sender]
	if !ok {
		return 0, fmt.Errorf("telegram: no known chat for sender %q", sender)
	}
	return chatID, nil
}

// SendText delivers text to the sender's chat, chunked with retries.
func (c *TelegramChannel) SendText(ctx context.Context, sender, text string) error {
	chatID, err := c.chatFor(sender)
	if err != nil {
		return err
	}
	s := deliver.NewSender(c.chunkLimit, func(ctx context.Context, chunk string) error {
		_, err := c.bot.Send(tgbotapi.NewMessage(chatID, chunk))
		return err
	})
	return s.Deliver(ctx, text)
}

// SendFile sends a file as a photo or document depending on its extension.
func (c *TelegramChannel) SendFile(ctx context.Context, sender, path string) error {
	chatID, err := c.chatFor(sender)
	if err != nil {
		return err
	}
	if files.IsImageExt(path) {
		_, err = c.bot.Send(tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path)))
	} else {
		_, err = c.bot.Send(tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path)))
	}
	if err != nil {
		return fmt.Errorf("telegram file send failed: %w", err)
	}
	return nil
}
