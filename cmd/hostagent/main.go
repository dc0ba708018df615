// Command hostagent runs the messaging-driven host control agent: it watches
// the configured channels for operator commands, executes them through Claude
// Code, and replies on the channel the command came from.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coopco/hostagent/internal/channels"
	"github.com/coopco/hostagent/internal/config"
	"github.com/coopco/hostagent/internal/dispatch"
	"github.com/coopco/hostagent/internal/executor"
	"github.com/coopco/hostagent/internal/files"
	"github.com/coopco/hostagent/internal/memory"
	"github.com/coopco/hostagent/internal/msg"
	"github.com/coopco/hostagent/internal/session"
	"github.com/coopco/hostagent/internal/vision"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "hostagent",
		Short: "Drive host automation over iMessage, Telegram and Discord",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.hostagent/config.json)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func run(cfg *config.Config) error {
	if err := setupLogging(cfg.LogFile); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	slog.Info("=== hostagent started ===",
		"handles", len(cfg.AllowedHandles), "trigger", cfg.TriggerPrefix, "pollInterval", cfg.PollInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec := executor.NewCLI(executor.SystemPrompt,
		time.Duration(cfg.ClaudeTimeout)*time.Second,
		time.Duration(cfg.ShellTimeout)*time.Second)

	// The summarizer runs on a shorter leash and without the agent rules.
	summaryCLI := executor.NewCLI("", 60*time.Second, time.Minute)
	mem, err := memory.Open(filepath.Join(cfg.StateDir, "memory.db"),
		func(ctx context.Context, conversationText string) (string, error) {
			return summaryCLI.Invoke(ctx, conversationText, "")
		})
	if err != nil {
		return err
	}
	defer mem.Close()

	dirs := files.Dirs{StateDir: cfg.StateDir}

	var analyzer files.Analyzer
	if cfg.VisionEnabled {
		if client := vision.NewClient(cfg.AnthropicAPIKey, cfg.VisionModel); client != nil {
			analyzer = client
		}
	}

	dispatcher := &dispatch.Dispatcher{
		Store:  session.NewStore(),
		Exec:   exec,
		Memory: mem,
		Files: &files.Processor{
			Dirs:       dirs,
			Vision:     analyzer,
			Executor:   exec,
			MaxFileMB:  cfg.MaxFileSizeMB,
			MaxImageMB: cfg.MaxImageSizeMB,
		},
		Shots:          &files.Screenshotter{Dirs: dirs},
		Stats:          dispatch.NewStats(),
		FileDirs:       dirs,
		Trigger:        cfg.TriggerPrefix,
		SessionTimeout: time.Duration(cfg.SessionTimeout) * time.Second,
		ExecTimeout:    time.Duration(cfg.ClaudeTimeout) * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	if len(cfg.AllowedHandles) > 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		imsg, err := channels.NewIMessage(
			filepath.Join(home, "Library", "Messages", "chat.db"),
			cfg.AllowedHandles,
			filepath.Join(cfg.StateDir, "last_rowid"),
			cfg.IMessageChunkLimit,
		)
		if err != nil {
			return err
		}
		defer imsg.Close()

		poller := &channels.Poller{
			Adapter: imsg,
			Dispatch: func(ctx context.Context, m msg.Inbound) {
				dispatcher.Handle(ctx, imsg, m, false)
			},
			Interval: time.Duration(cfg.PollInterval) * time.Second,
		}
		g.Go(func() error { return ignoreCancel(poller.Run(ctx)) })
	}

	var push []channels.PushChannel
	if cfg.TelegramBotToken != "" {
		tg, err := channels.NewTelegram(cfg.TelegramBotToken, cfg.AllowedTelegramID,
			cfg.SenderIdentityMap, dispatcher, dirs, cfg.TelegramChunkLimit)
		if err != nil {
			slog.Error("failed to start telegram bot", "error", err)
		} else {
			push = append(push, tg)
		}
	}
	if cfg.DiscordBotToken != "" {
		dc, err := channels.NewDiscord(cfg.DiscordBotToken, cfg.AllowedDiscordID,
			cfg.SenderIdentityMap, dispatcher, dirs, cfg.DiscordChunkLimit)
		if err != nil {
			slog.Error("failed to start discord bot", "error", err)
		} else {
			push = append(push, dc)
		}
	}
	for _, ch := range push {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("failed to start channel %q: %w", ch.Name(), err)
		}
	}

	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@daily", func() {
		if err := files.SweepOutbox(dirs, 24*time.Hour); err != nil {
			slog.Warn("outbox sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule outbox sweep: %w", err)
	}
	sweeper.Start()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining")

	sweeper.Stop()
	for _, ch := range push {
		if err := ch.Stop(); err != nil {
			slog.Error("failed to stop channel", "channel", ch.Name(), "error", err)
		}
	}
	err = g.Wait()

	slog.Info("=== hostagent stopped ===")
	return ignoreCancel(err)
}

func ignoreCancel(err error) error {
	if err == context.Canceled {
		return nil
	}
	return err
}

func setupLogging(logFile string) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return fmt.Errorf("failed to create log dir: %w", err)
		}
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(f, os.Stdout)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, nil)))
	return nil
}
