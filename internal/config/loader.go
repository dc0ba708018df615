package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultPath returns the default config file location (~/.hostagent/config.json).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".hostagent", "config.json"), nil
}

// Load loads config from the default path.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFromFile(path)
}

// LoadFromFile loads config from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader loads config from an io.Reader, applying defaults and env overrides.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	if err := json.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	expandStateDir(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the agent cannot start with.
func (c *Config) Validate() error {
	if len(c.AllowedHandles) == 0 && c.TelegramBotToken == "" && c.DiscordBotToken == "" {
		return fmt.Errorf("no channels configured: set allowed_handles, telegram_bot_token or discord_bot_token")
	}
	if c.TriggerPrefix == "" {
		return fmt.Errorf("trigger_prefix must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	return nil
}

// applyEnvOverrides applies HOSTAGENT_-prefixed environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	envMap := map[string]*string{
		"HOSTAGENT_TELEGRAM_BOT_TOKEN": &cfg.TelegramBotToken,
		"HOSTAGENT_DISCORD_BOT_TOKEN":  &cfg.DiscordBotToken,
		"HOSTAGENT_ANTHROPIC_API_KEY":  &cfg.AnthropicAPIKey,
		"HOSTAGENT_STATE_DIR":          &cfg.StateDir,
	}

	for env, ptr := range envMap {
		if val := os.Getenv(env); val != "" {
			*ptr = val
		}
	}
}

// expandStateDir expands a leading ~ in the state dir path.
func expandStateDir(cfg *Config) {
	dir := cfg.StateDir
	if len(dir) >= 2 && dir[0] == '~' && dir[1] == '/' {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.StateDir = filepath.Join(home, dir[2:])
		}
	}
}
