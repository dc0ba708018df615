package config

// Config is the top-level configuration
type Config struct {
	AllowedHandles []string `json:"allowed_handles"` // iMessage handles (phone numbers or iCloud emails)
	TriggerPrefix  string   `json:"trigger_prefix"`

	PollInterval   int `json:"poll_interval"`   // seconds between chat.db polls
	SessionTimeout int `json:"session_timeout"` // seconds before an unanswered question is abandoned
	ClaudeTimeout  int `json:"claude_timeout"`  // seconds for one executor invocation
	ShellTimeout   int `json:"shell_timeout"`   // seconds for direct shell commands

	IMessageChunkLimit int `json:"imessage_chunk_limit"`
	TelegramChunkLimit int `json:"telegram_chunk_limit"`
	DiscordChunkLimit  int `json:"discord_chunk_limit"`

	TelegramBotToken  string  `json:"telegram_bot_token"`
	AllowedTelegramID []int64 `json:"allowed_telegram_ids"`

	DiscordBotToken  string   `json:"discord_bot_token"`
	AllowedDiscordID []string `json:"allowed_discord_ids"`

	// SenderIdentityMap maps a channel-local id (e.g. a Telegram user id) to a
	// canonical sender identity so memory is shared across channels.
	SenderIdentityMap map[string]string `json:"sender_identity_map"`

	AnthropicAPIKey string `json:"anthropic_api_key"`
	VisionEnabled   bool   `json:"vision_enabled"`
	VisionModel     string `json:"vision_model"`

	MaxImageSizeMB int `json:"max_image_size_mb"`
	MaxFileSizeMB  int `json:"max_file_size_mb"`

	StateDir string `json:"state_dir"` // cursor file, memory db, inbox and outbox live here
	LogFile  string `json:"log_file"`
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		TriggerPrefix:      "/c ",
		PollInterval:       3,
		SessionTimeout:     300,
		ClaudeTimeout:      300,
		ShellTimeout:       60,
		IMessageChunkLimit: 1500,
		TelegramChunkLimit: 4000,
		DiscordChunkLimit:  2000,
		VisionEnabled:      true,
		VisionModel:        "claude-sonnet-4-20250514",
		MaxImageSizeMB:     20,
		MaxFileSizeMB:      100,
		StateDir:           "~/.hostagent",
	}
}
