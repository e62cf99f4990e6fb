// Package config loads gmail-agent settings: defaults, then an optional TOML
// file, then an optional env file, then the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvClientID     = "OAUTH_GOOGLE_CLIENT_ID"
	EnvClientSecret = "OAUTH_GOOGLE_CLIENT_SECRET"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvChatModel    = "GMAIL_AGENT_CHAT_MODEL"
	EnvEmbedModel   = "GMAIL_AGENT_EMBED_MODEL"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	OAuth     OAuthConfig     `toml:"oauth"`
	Gmail     GmailConfig     `toml:"gmail"`
	LLM       LLMConfig       `toml:"llm"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Decoder   DecoderConfig   `toml:"decoder"`
}

type ServerConfig struct {
	HTTPAddr string `toml:"http_addr"`
	LogFile  string `toml:"log_file"`
}

type OAuthConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	// RedirectURL defaults to http://<listen addr>/oauth.
	RedirectURL string `toml:"redirect_url"`
	TokenFile   string `toml:"token_file"`
}

type GmailConfig struct {
	RequestTimeout time.Duration `toml:"request_timeout"`
	QuotaPerSecond int           `toml:"quota_per_second"`
	BreakerTimeout time.Duration `toml:"breaker_timeout"`
}

type LLMConfig struct {
	Host       string        `toml:"host"`
	ChatModel  string        `toml:"chat_model"`
	EmbedModel string        `toml:"embed_model"`
	Timeout    time.Duration `toml:"timeout"`
}

type RetrievalConfig struct {
	MaxResults   int           `toml:"max_results"`
	PageSize     int           `toml:"page_size"`
	Concurrency  int           `toml:"concurrency"`
	QueryTimeout time.Duration `toml:"query_timeout"`
	ChunkSize    int           `toml:"chunk_size"`
	TopK         int           `toml:"top_k"`
}

type DecoderConfig struct {
	PreferPlainText bool `toml:"prefer_plain_text"`
	KeepLinks       bool `toml:"keep_links"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: "localhost:0",
		},
		OAuth: OAuthConfig{
			TokenFile: "./data/gmail-agent-token.json",
		},
		Gmail: GmailConfig{
			RequestTimeout: 30 * time.Second,
			QuotaPerSecond: 250,
			BreakerTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Host:       "http://localhost:11434",
			ChatModel:  "llama3.1",
			EmbedModel: "nomic-embed-text",
			Timeout:    2 * time.Minute,
		},
		Retrieval: RetrievalConfig{
			MaxResults:   20,
			PageSize:     20,
			Concurrency:  8,
			QueryTimeout: time.Minute,
			ChunkSize:    1024,
			TopK:         4,
		},
		Decoder: DecoderConfig{
			PreferPlainText: true,
		},
	}
}

// Load builds the configuration. Both paths are optional; a path that is
// given must exist.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("toml.DecodeFile failed: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("godotenv.Load failed: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.OAuth.TokenFile = expandPath(cfg.OAuth.TokenFile)
	cfg.Server.LogFile = expandPath(cfg.Server.LogFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.OAuth.ClientID, EnvClientID)
	set(&c.OAuth.ClientSecret, EnvClientSecret)
	set(&c.LLM.Host, EnvOllamaHost)
	set(&c.LLM.ChatModel, EnvChatModel)
	set(&c.LLM.EmbedModel, EnvEmbedModel)
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "":
		return fmt.Errorf("%s and %s must be set", EnvClientID, EnvClientSecret)
	case c.OAuth.TokenFile == "":
		return errors.New("oauth.token_file must be set")
	case c.LLM.Host == "":
		return errors.New("llm.host must be set")
	case c.LLM.ChatModel == "" || c.LLM.EmbedModel == "":
		return errors.New("llm.chat_model and llm.embed_model must be set")
	case c.Retrieval.MaxResults <= 0:
		return errors.New("retrieval.max_results must be positive")
	case c.Retrieval.PageSize <= 0:
		return errors.New("retrieval.page_size must be positive")
	case c.Retrieval.Concurrency <= 0:
		return errors.New("retrieval.concurrency must be positive")
	case c.Gmail.QuotaPerSecond <= 0:
		return errors.New("gmail.quota_per_second must be positive")
	}

	return nil
}

func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
