package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/eleron96/bimbot/core/logger"
)

const defaultOpenAIModel = "gpt-4o-mini"

type openAIClient struct {
	client *openai.Client
	model  string
	system string
}

func newOpenAIClient(cfg Config) *openAIClient {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openAIClient{
		client: openai.NewClientWithConfig(config),
		model:  model,
		system: cfg.SystemPrompt,
	}
}

func (c *openAIClient) Model() string { return c.model }

func (c *openAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if c.system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.system,
		})
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
	})
	took := time.Since(start)
	if err != nil {
		svcLog().Error("completion failed",
			slog.String("event", "ai.complete"),
			slog.String("provider", ProviderOpenAI),
			slog.String("model", c.model),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty choices")
	}
	svcLog().Debug("completion ok",
		slog.String("event", "ai.complete"),
		slog.String("provider", ProviderOpenAI),
		slog.String("model", c.model),
		slog.Int("messages", len(msgs)),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
