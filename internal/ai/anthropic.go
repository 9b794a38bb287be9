package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/eleron96/bimbot/core/logger"
)

const (
	defaultAnthropicModel     = "claude-3-5-haiku-latest"
	defaultAnthropicMaxTokens = 1024
)

type anthropicClient struct {
	client    *anthropic.Client
	model     string
	system    string
	maxTokens int
}

func newAnthropicClient(cfg Config) *anthropicClient {
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &anthropicClient{
		client:    anthropic.NewClient(cfg.APIKey),
		model:     model,
		system:    cfg.SystemPrompt,
		maxTokens: maxTokens,
	}
}

func (c *anthropicClient) Model() string { return c.model }

func (c *anthropicClient) Complete(ctx context.Context, messages []Message) (string, error) {
	msgs := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		role := anthropic.RoleUser
		if m.Role == RoleAssistant {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
		})
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		Messages:  msgs,
		MaxTokens: c.maxTokens,
	}
	if c.system != "" {
		req.System = c.system
	}

	start := time.Now()
	resp, err := c.client.CreateMessages(ctx, req)
	took := time.Since(start)
	if err != nil {
		svcLog().Error("completion failed",
			slog.String("event", "ai.complete"),
			slog.String("provider", ProviderAnthropic),
			slog.String("model", c.model),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			out.WriteString(*block.Text)
		}
	}
	svcLog().Debug("completion ok",
		slog.String("event", "ai.complete"),
		slog.String("provider", ProviderAnthropic),
		slog.String("model", c.model),
		slog.Int("messages", len(msgs)),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return strings.TrimSpace(out.String()), nil
}
