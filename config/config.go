// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (account + signing secrets), use Validate; the generation
// collaborators are optional and gated by ValidateBotReady / ValidateSpeechReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Account (single-tenant; matched by a static credential)
	ClientName   string
	ClientID     uint64
	PasswordHash string // BLAKE2b-512 hex digest of the salted password
	ClientSalt   string // returned by the salt endpoint for the known account
	ServerSalt   string // 5 hyphen-delimited segments

	// Token signing
	JWTSecret        string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	// OpenAI chat collaborator
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	// Azure TTS collaborator
	AzureTTSKey    string
	AzureTTSRegion string

	// Storage for synthesized audio and static assets
	AssetsDir string

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail if collaborator
// credentials are missing; use ValidateBotReady/ValidateSpeechReady when you require them.
// Missing optional variables disable features (e.g., speech synthesis).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ClientName = os.Getenv("CLIENT_NAME")
	if v := os.Getenv("CLIENT_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CLIENT_ID (uint64): %w", err)
		}
		cfg.ClientID = id
	}
	cfg.PasswordHash = os.Getenv("CLIENT_PASSWORD")
	cfg.ClientSalt = os.Getenv("CLIENT_SALT")
	cfg.ServerSalt = os.Getenv("SERVER_SALT")

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.JWTRefreshSecret = os.Getenv("JWT_REFRESH_SECRET")

	cfg.AccessTokenTTL = durationEnv("ACCESS_TOKEN_TTL", time.Hour)
	cfg.RefreshTokenTTL = durationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour)

	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = os.Getenv("OPENAI_MODEL")
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-3.5-turbo"
	}
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")

	cfg.AzureTTSKey = os.Getenv("AZURE_TTS_KEY")
	cfg.AzureTTSRegion = os.Getenv("AZURE_TTS_REGION")

	cfg.AssetsDir = os.Getenv("ASSETS_DIR")
	if cfg.AssetsDir == "" {
		cfg.AssetsDir = "assets"
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":3000"
	}

	return cfg, nil
}

// Validate checks the fields the relay cannot run without: the configured account
// and the two independent signing secrets.
func (c *Config) Validate() error {
	var missing []string
	if c.ClientName == "" {
		missing = append(missing, "CLIENT_NAME")
	}
	if c.ClientID == 0 {
		missing = append(missing, "CLIENT_ID")
	}
	if c.PasswordHash == "" {
		missing = append(missing, "CLIENT_PASSWORD")
	}
	if c.ServerSalt == "" {
		missing = append(missing, "SERVER_SALT")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.JWTRefreshSecret == "" {
		missing = append(missing, "JWT_REFRESH_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ValidateBotReady checks required fields for the text generation collaborator.
func (c *Config) ValidateBotReady() error {
	if c.OpenAIKey == "" {
		return fmt.Errorf("missing openai env: require OPENAI_API_KEY")
	}
	return nil
}

// ValidateSpeechReady checks required fields for the speech synthesis collaborator.
func (c *Config) ValidateSpeechReady() error {
	if c.AzureTTSKey == "" || c.AzureTTSRegion == "" {
		return fmt.Errorf("missing azure tts env: require AZURE_TTS_KEY, AZURE_TTS_REGION")
	}
	return nil
}

// durationEnv parses a duration env var, returning def when unset or invalid.
func durationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
