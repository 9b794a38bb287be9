package ai

import (
	"context"
	"fmt"
	"io"
	"strings"

	"log/slog"

	"github.com/eleron96/bimbot/core/logger"
)

func svcLog() *slog.Logger {
	if logger.SVCAI != nil {
		return logger.SVCAI
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Message is one turn of a completion conversation.
type Message struct {
	Role    string
	Content string
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client produces a completion for a conversation history.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	Model() string
}

// Config selects and configures a completion provider.
type Config struct {
	Provider     string `yaml:"provider" envconfig:"AI_PROVIDER"`
	APIKey       string `yaml:"api_key" envconfig:"AI_API_KEY"`
	Model        string `yaml:"model" envconfig:"AI_MODEL"`
	BaseURL      string `yaml:"base_url" envconfig:"AI_BASE_URL"`
	SystemPrompt string `yaml:"system_prompt" envconfig:"AI_SYSTEM_PROMPT"`
	MaxTokens    int    `yaml:"max_tokens" envconfig:"AI_MAX_TOKENS"`
}

// Provider names accepted by New.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// New builds a completion client for the configured provider.
func New(cfg Config) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("ai: api key is required")
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}
	switch provider {
	case ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("ai: unknown provider %q (supported: openai, anthropic)", cfg.Provider)
	}
}
