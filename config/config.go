package config

import (
	"strings"
	"time"

	"github.com/pitabwire/frame/config"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
)

// BotConfig holds the configuration of the bot service.
type BotConfig struct {
	config.ConfigurationDefault

	// State
	StateBackend string        `envDefault:"memory"         env:"STATE_BACKEND"`
	RedisAddr    string        `envDefault:"localhost:6379" env:"REDIS_ADDR"`
	RedisPrefix  string        `envDefault:"botkit"         env:"REDIS_PREFIX"`
	StateTTL     time.Duration `envDefault:"24h"            env:"STATE_TTL"`
	SQLitePath   string        `envDefault:""               env:"SQLITE_PATH"`

	// Dialogs
	DialogDir     string `envDefault:"./dialogs" env:"DIALOG_DIR"`
	HotReload     bool   `envDefault:"true"      env:"DIALOG_HOT_RELOAD"`
	MaxStackDepth int    `envDefault:"64"        env:"MAX_STACK_DEPTH"`
	DefaultBot    string `envDefault:"menu"      env:"DEFAULT_BOT"`

	// Chat-model recognizer; disabled without an API key.
	LLMAPIKey  string `envDefault:""                          env:"LLM_API_KEY"`
	LLMBaseURL string `envDefault:"https://api.openai.com/v1" env:"LLM_BASE_URL"`
	LLMModel   string `envDefault:"gpt-4o-mini"               env:"LLM_MODEL"`

	// Hooks
	AllowPrivateHooks bool `envDefault:"false" env:"ALLOW_PRIVATE_HOOK_URLS"`

	// Webhooks
	WebhookURLs       string `envDefault:""    env:"WEBHOOK_URLS"`
	WebhookSecret     string `envDefault:""    env:"WEBHOOK_SECRET"`
	WebhookMaxRetries int    `envDefault:"5"   env:"WEBHOOK_MAX_RETRIES"`
	WebhookTimeoutSec int    `envDefault:"10"  env:"WEBHOOK_TIMEOUT_SEC"`
	WebhookBackoffSec int    `envDefault:"1"   env:"WEBHOOK_BACKOFF_INITIAL_SEC"`
	WebhookBackoffMax int    `envDefault:"300" env:"WEBHOOK_BACKOFF_MAX_SEC"`
	CBFailThreshold   int    `envDefault:"5"   env:"CB_FAILURE_THRESHOLD"`
	CBResetTimeoutSec int    `envDefault:"60"  env:"CB_RESET_TIMEOUT_SEC"`
}

// WebhookTargets splits WEBHOOK_URLS on commas.
func (c *BotConfig) WebhookTargets() []string {
	if strings.TrimSpace(c.WebhookURLs) == "" {
		return nil
	}
	return strings.Split(c.WebhookURLs, ",")
}

// LLMEnabled reports whether a chat-model recognizer is configured.
func (c *BotConfig) LLMEnabled() bool {
	return c.LLMAPIKey != ""
}
