package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Users     []User          `yaml:"users"`
	Generator GeneratorConfig `yaml:"generator"`
	Sources   SourcesConfig   `yaml:"sources"`
	Chat      ChatConfig      `yaml:"chat"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Store     StoreConfig     `yaml:"store"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	UserID   string `yaml:"user_id"`
}

// GeneratorConfig configures the document-generation webhook backend.
type GeneratorConfig struct {
	WebhookURL     string `yaml:"webhook_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CallbackURL    string `yaml:"callback_url"`
	Seed           string `yaml:"seed"`
}

// SourcesConfig configures the two context data sources.
type SourcesConfig struct {
	SessionURL       string `yaml:"session_url"`
	QuickContractURL string `yaml:"quick_contract_url"`
	APIToken         string `yaml:"api_token"`
}

// ChatConfig configures the chat reply source. An empty webhook URL
// enables the canned-reply stub.
type ChatConfig struct {
	WebhookURL  string `yaml:"webhook_url"`
	APIToken    string `yaml:"api_token"`
	StubDelayMS int    `yaml:"stub_delay_ms"`
	StubReply   string `yaml:"stub_reply"`
}

// ArchiveConfig configures the object-storage mirror for generated
// documents. An empty endpoint disables archiving.
type ArchiveConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type StoreConfig struct {
	MaxWorkspaces int `yaml:"max_workspaces"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Generator.TimeoutSeconds == 0 {
		cfg.Generator.TimeoutSeconds = 60
	}
	if cfg.Archive.ExpireDays == 0 {
		cfg.Archive.ExpireDays = 7
	}
	if cfg.Chat.StubDelayMS == 0 {
		cfg.Chat.StubDelayMS = 800
	}
	if cfg.Chat.StubReply == "" {
		cfg.Chat.StubReply = "I'm reviewing your negotiation now. Ask me about any clause or document."
	}
	if cfg.Store.MaxWorkspaces == 0 {
		cfg.Store.MaxWorkspaces = 100
	}

	return &cfg, nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
