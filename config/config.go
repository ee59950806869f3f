package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LLMProvider    string // github, openai, anthropic, ollama
	GitHubToken    string // GitHub Models token
	AnthropicKey   string // API key (X-Api-Key header)
	AnthropicToken string // OAuth token (Authorization: Bearer header)
	OpenAIKey      string
	LLMModel       string
	LLMBaseURL     string
	FallbackModels string // comma separated, tried in order

	RateLimitMax     int
	RateLimitWindow  time.Duration
	RetryMaxWait     time.Duration
	SessionCapacity  int
	MaxContextTokens int

	HTTPAddr       string
	DatabasePath   string
	TickInterval   time.Duration
	DiscordToken   string
	DiscordWebhook string
	DefaultLang    string
}

// ConfigDir is where the installed service keeps its config and database.
func ConfigDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tasky")
}

func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config")
}

// Load reads .env in the working directory, then ~/.tasky/config. Values
// already in the environment win over both.
func Load() *Config {
	_ = godotenv.Load()             // ignore error if no .env
	_ = godotenv.Load(ConfigFile()) // ignore error if not installed

	return &Config{
		LLMProvider:    envOr("LLM_PROVIDER", "github"),
		GitHubToken:    os.Getenv("GITHUB_MODELS_TOKEN"),
		AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicToken: os.Getenv("ANTHROPIC_AUTH_TOKEN"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		LLMModel:       envOr("LLM_MODEL", "gpt-4o-mini"),
		LLMBaseURL:     os.Getenv("LLM_BASE_URL"),
		FallbackModels: os.Getenv("LLM_FALLBACK_MODELS"),

		RateLimitMax:     envInt("RATE_LIMIT_MAX", 2),
		RateLimitWindow:  envDuration("RATE_LIMIT_WINDOW", time.Minute),
		RetryMaxWait:     envDuration("RETRY_MAX_WAIT", 8*time.Second),
		SessionCapacity:  envInt("SESSION_CAPACITY", 4096),
		MaxContextTokens: envInt("MAX_CONTEXT_TOKENS", 16000),

		HTTPAddr:       envOr("HTTP_ADDR", ":4000"),
		DatabasePath:   envOr("DATABASE_PATH", "./tasky.db"),
		TickInterval:   envDuration("TICK_INTERVAL", time.Minute),
		DiscordToken:   os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordWebhook: os.Getenv("DISCORD_WEBHOOK_URL"),
		DefaultLang:    os.Getenv("DEFAULT_LANG"),
	}
}

// APIKey picks the credential for the configured provider.
func (c *Config) APIKey() string {
	switch c.LLMProvider {
	case "github":
		return c.GitHubToken
	case "openai":
		return c.OpenAIKey
	case "anthropic":
		return c.AnthropicKey
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("config: ignoring %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

// envDuration accepts Go durations ("90s", "2m") or a bare number of
// seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	log.Printf("config: ignoring %s=%q, using %s", key, v, fallback)
	return fallback
}
