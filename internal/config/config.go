package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

const (
	configPathEnv      = "SANDWICH_AGENT_CONFIG"
	databaseDSNEnv     = "DATABASE_DSN"
	llmAPIKeyEnv       = "LLM_API_KEY"
	llmModelEnv        = "LLM_MODEL"
	embeddingAPIKeyEnv = "EMBEDDING_API_KEY"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	LLM           LLMConfig          `yaml:"llm"`
	Embedding     EmbeddingConfig    `yaml:"embedding"`
	Foraging      ForagingConfig     `yaml:"foraging"`
	Selection     SelectionConfig    `yaml:"selection"`
	Session       SessionConfig      `yaml:"session"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LLMConfig defines how to contact the chat-completions API.
type LLMConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// EmbeddingConfig describes the embedding service integration.
type EmbeddingConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// ForagingConfig tunes source tiers and promotion hysteresis.
type ForagingConfig struct {
	SuccessesToPromote int            `yaml:"successesToPromote"`
	FailuresToDemote   int            `yaml:"failuresToDemote"`
	MinContentLength   int            `yaml:"minContentLength"`
	Sources            []SourceConfig `yaml:"sources"`
}

// SourceConfig describes one content source with its tier and rate limit.
type SourceConfig struct {
	Name         string `yaml:"name"`
	Tier         int    `yaml:"tier"`
	MaxPerMinute int    `yaml:"maxPerMinute"`
}

// SelectionConfig tunes candidate scoring.
type SelectionConfig struct {
	MinConfidence   float64 `yaml:"minConfidence"`
	NoveltyWeight   float64 `yaml:"noveltyWeight"`
	DiversityWeight float64 `yaml:"diversityWeight"`
}

// SessionConfig caps a session run and sets the recurring-run period.
type SessionConfig struct {
	MaxSandwiches int      `yaml:"maxSandwiches"`
	MaxDuration   Duration `yaml:"maxDuration"`
	Interval      Duration `yaml:"interval"`
	CheckpointTTL Duration `yaml:"checkpointTtl"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("config: loaded .env")
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Foraging.Sources) == 0 {
		cfg.Foraging.Sources = defaultConfig().Foraging.Sources
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(llmAPIKeyEnv); v != "" {
		c.LLM.APIKey = v
	}

	if v := os.Getenv(llmModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(embeddingAPIKeyEnv); v != "" {
		c.Embedding.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}

	if override.Embedding.Endpoint != "" {
		base.Embedding.Endpoint = override.Embedding.Endpoint
	}
	if override.Embedding.Model != "" {
		base.Embedding.Model = override.Embedding.Model
	}
	if override.Embedding.APIKey != "" {
		base.Embedding.APIKey = override.Embedding.APIKey
	}

	if override.Foraging.SuccessesToPromote > 0 {
		base.Foraging.SuccessesToPromote = override.Foraging.SuccessesToPromote
	}
	if override.Foraging.FailuresToDemote > 0 {
		base.Foraging.FailuresToDemote = override.Foraging.FailuresToDemote
	}
	if override.Foraging.MinContentLength > 0 {
		base.Foraging.MinContentLength = override.Foraging.MinContentLength
	}
	if len(override.Foraging.Sources) > 0 {
		base.Foraging.Sources = override.Foraging.Sources
	}

	if override.Selection.MinConfidence > 0 {
		base.Selection.MinConfidence = override.Selection.MinConfidence
	}
	if override.Selection.NoveltyWeight > 0 {
		base.Selection.NoveltyWeight = override.Selection.NoveltyWeight
	}
	if override.Selection.DiversityWeight > 0 {
		base.Selection.DiversityWeight = override.Selection.DiversityWeight
	}

	if override.Session.MaxSandwiches > 0 {
		base.Session.MaxSandwiches = override.Session.MaxSandwiches
	}
	if override.Session.MaxDuration > 0 {
		base.Session.MaxDuration = override.Session.MaxDuration
	}
	if override.Session.Interval > 0 {
		base.Session.Interval = override.Session.Interval
	}
	if override.Session.CheckpointTTL > 0 {
		base.Session.CheckpointTTL = override.Session.CheckpointTTL
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: ""},
		LLM: LLMConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
			APIKey:   "",
		},
		Embedding: EmbeddingConfig{
			Endpoint: "https://api.openai.com/v1/embeddings",
			Model:    "text-embedding-3-small",
			APIKey:   "",
		},
		Foraging: ForagingConfig{
			SuccessesToPromote: 5,
			FailuresToDemote:   3,
			MinContentLength:   200,
			Sources: []SourceConfig{
				{Name: "wikipedia", Tier: 1, MaxPerMinute: 30},
				{Name: "web_search", Tier: 2, MaxPerMinute: 10},
			},
		},
		Selection: SelectionConfig{
			MinConfidence:   0.4,
			NoveltyWeight:   0.3,
			DiversityWeight: 0.2,
		},
		Session: SessionConfig{
			MaxSandwiches: 5,
			MaxDuration:   Duration(30 * time.Minute),
			Interval:      Duration(6 * time.Hour),
			CheckpointTTL: Duration(time.Hour),
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
	}
}
