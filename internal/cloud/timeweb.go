package cloud

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/eleron96/bimbot/core/logger"
)

const defaultBaseURL = "https://api.timeweb.cloud/api/v1"

// Config holds hosting-provider API credentials.
type Config struct {
	BaseURL  string `yaml:"base_url" envconfig:"CLOUD_BASE_URL"`
	Token    string `yaml:"token" envconfig:"CLOUD_TOKEN"`
	ServerID int64  `yaml:"server_id" envconfig:"CLOUD_SERVER_ID"`
}

// Client reboots the host through the provider's control API.
type Client struct {
	base     string
	token    string
	serverID int64
	http     *http.Client
}

// NewClient builds a cloud-control client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("cloud: token is required")
	}
	if cfg.ServerID == 0 {
		return nil, fmt.Errorf("cloud: server id is required")
	}
	return &Client{
		base:     base,
		token:    cfg.Token,
		serverID: cfg.ServerID,
		http:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Reboot asks the provider to restart the configured server.
func (c *Client) Reboot(ctx context.Context) error {
	url := fmt.Sprintf("%s/servers/%d/reboot", c.base, c.serverID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.http.Do(req)
	took := time.Since(start)
	if err != nil {
		c.logger().Error("reboot request failed",
			slog.String("event", "cloud.reboot"),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("cloud: reboot: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger().Error("reboot rejected",
			slog.String("event", "cloud.reboot"),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("cloud: reboot: unexpected status %s", resp.Status)
	}
	c.logger().Info("reboot accepted",
		slog.String("event", "cloud.reboot"),
		slog.Int64("server_id", c.serverID),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}

func (c *Client) logger() *slog.Logger {
	if logger.SVCCloud != nil {
		return logger.SVCCloud
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
