package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type AuthConfig struct {
	Enabled         bool   `yaml:"enabled"`
	InitialAdminKey string `yaml:"initialAdminKey"`
}

type RateLimitConfig struct {
	DefaultPerMinute int `yaml:"defaultPerMinute"`
}

// AgentEndpointConfig describes one external agent: where to dispatch
// work and the agent identifier it reports back in webhook callbacks.
type AgentEndpointConfig struct {
	WebhookURL string `yaml:"webhookURL"`
	AgentID    string `yaml:"agentID"`
}

// AgentConfig configures the outbound connection to the external job
// runner that generates pre-sales reports and slide decks.
type AgentConfig struct {
	Secret          string              `yaml:"secret"`
	CallbackBaseURL string              `yaml:"callbackBaseURL"`
	TimeoutMs       int                 `yaml:"timeoutMs"`
	Report          AgentEndpointConfig `yaml:"report"`
	Slides          AgentEndpointConfig `yaml:"slides"`
}

// WebhookConfig controls inbound callback verification. Signatures are
// verified whenever the header is present; requireSignature controls
// whether deliveries without a signature header are rejected outright
// or merely logged.
type WebhookConfig struct {
	Secret           string `yaml:"secret"`
	RequireSignature *bool  `yaml:"requireSignature"`
}

// SignatureRequired reports whether unsigned webhook deliveries must be
// rejected. Defaults to true; set requireSignature: false to tolerate
// misconfigured senders.
func (w WebhookConfig) SignatureRequired() bool {
	if w.RequireSignature == nil {
		return true
	}
	return *w.RequireSignature
}

// TabularConfig points at the external tabular record store consulted as
// a fallback status source.
type TabularConfig struct {
	BaseURL   string `yaml:"baseURL"`
	Token     string `yaml:"token"`
	TimeoutMs int    `yaml:"timeoutMs"`
}

// StorageConfig configures the S3-compatible object store used for
// synthesized report documents and uploaded files. Endpoint is optional;
// when set, path-style addressing is used (MinIO and friends).
type StorageConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	PublicBaseURL   string `yaml:"publicBaseURL"`
}

// JobsConfig holds the single staleness constant shared by the sweeper,
// the trigger precondition, and the client poller budget, plus sweep
// cadence and usage-row retention.
type JobsConfig struct {
	StaleAfterMinutes  int `yaml:"staleAfterMinutes"`
	SweepIntervalSecs  int `yaml:"sweepIntervalSeconds"`
	PollIntervalSecs   int `yaml:"pollIntervalSeconds"`
	UsageRetentionDays int `yaml:"usageRetentionDays"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Agent     AgentConfig     `yaml:"agent"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Tabular   TabularConfig   `yaml:"tabular"`
	Storage   StorageConfig   `yaml:"storage"`
	Jobs      JobsConfig      `yaml:"jobs"`
}

func Load(path string) *Config {
	// Secrets may live in a .env alongside the YAML; a missing file is fine.
	_ = godotenv.Load()

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	cfg.applyEnvOverrides()
	return &cfg
}

// applyEnvOverrides lets deployment environments supply secrets without
// writing them into the YAML file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("AGENT_SECRET"); v != "" {
		c.Agent.Secret = v
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		c.Webhook.Secret = v
	}
	if v := os.Getenv("TABULAR_TOKEN"); v != "" {
		c.Tabular.Token = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY_ID"); v != "" {
		c.Storage.AccessKeyID = v
	}
	if v := os.Getenv("STORAGE_SECRET_ACCESS_KEY"); v != "" {
		c.Storage.SecretAccessKey = v
	}
}
