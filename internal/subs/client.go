package subs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"log/slog"

	"github.com/eleron96/bimbot/core/logger"
)

// Config points at the metrics aggregator and names the tracked accounts.
type Config struct {
	BaseURL         string `yaml:"base_url" envconfig:"SUBS_BASE_URL"`
	LinkedInProfile string `yaml:"linkedin_profile" envconfig:"SUBS_LINKEDIN_PROFILE"`
	YouTubeChannel  string `yaml:"youtube_channel" envconfig:"SUBS_YOUTUBE_CHANNEL"`
	MediumUser      string `yaml:"medium_user" envconfig:"SUBS_MEDIUM_USER"`
}

// Latest is the newest follower count recorded for an account.
type Latest struct {
	Count int64     `json:"count"`
	At    time.Time `json:"recorded_at"`
}

// Statistics holds percentage deltas over common windows.
type Statistics struct {
	Day   *float64 `json:"24h"`
	Week  *float64 `json:"week"`
	Month *float64 `json:"month"`
}

// PlatformReport pairs the latest count with its deltas.
type PlatformReport struct {
	Platform string
	Account  string
	Latest   *Latest
	Stats    Statistics
}

// Client talks to the follower-metrics aggregator service.
type Client struct {
	base     string
	accounts Config
	http     *http.Client
}

// NewClient builds a metrics client for the configured accounts.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("subs: base url is required")
	}
	return &Client{
		base:     base,
		accounts: cfg,
		http:     &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// platform descriptors: endpoint prefix + query parameter name.
type platform struct {
	name    string
	prefix  string
	param   string
	account func(Config) string
}

var platforms = []platform{
	{"LinkedIn", "linkedin", "profile_id", func(c Config) string { return c.LinkedInProfile }},
	{"YouTube", "youtube", "channel_id", func(c Config) string { return c.YouTubeChannel }},
	{"Medium", "medium", "username", func(c Config) string { return c.MediumUser }},
}

// Report collects latest counts and deltas for every configured account.
// Platforms without a configured account are skipped.
func (c *Client) Report(ctx context.Context) ([]PlatformReport, error) {
	var out []PlatformReport
	for _, p := range platforms {
		account := p.account(c.accounts)
		if account == "" {
			continue
		}
		report := PlatformReport{Platform: p.name, Account: account}

		var latest struct {
			LatestData *Latest `json:"latest_data"`
		}
		if err := c.get(ctx, p.prefix+"/latest", p.param, account, &latest); err != nil {
			return nil, fmt.Errorf("subs: %s latest: %w", p.prefix, err)
		}
		report.Latest = latest.LatestData

		var stats struct {
			Statistics Statistics `json:"statistics"`
		}
		if err := c.get(ctx, p.prefix+"/statistics", p.param, account, &stats); err != nil {
			return nil, fmt.Errorf("subs: %s statistics: %w", p.prefix, err)
		}
		report.Stats = stats.Statistics

		out = append(out, report)
	}
	c.logger().Debug("report collected",
		slog.String("event", "subs.report"),
		slog.Int("platforms", len(out)),
	)
	return out, nil
}

func (c *Client) get(ctx context.Context, path, param, value string, out any) error {
	u := fmt.Sprintf("%s/%s?%s=%s", c.base, path, param, url.QueryEscape(value))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	took := time.Since(start)
	if err != nil {
		c.logger().Error("request failed",
			slog.String("event", "subs.request"),
			slog.String("path", path),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		c.logger().Error("bad status",
			slog.String("event", "subs.request"),
			slog.String("path", path),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// FormatReport renders the platform reports as a Markdown message.
func FormatReport(reports []PlatformReport) string {
	var b strings.Builder
	b.WriteString("*📊 Followers by platform:*\n")
	for _, r := range reports {
		b.WriteString("\n*")
		b.WriteString(r.Platform)
		b.WriteString("*:\n")
		fmt.Fprintf(&b, "- Followers: %s\n", formatCount(r.Latest))
		switch r.Platform {
		case "LinkedIn":
			fmt.Fprintf(&b, "- Change over a day: %s\n", formatDelta(r.Stats.Day))
		default:
			fmt.Fprintf(&b, "- Change over a month: %s\n", formatDelta(r.Stats.Month))
		}
	}
	return b.String()
}

func formatCount(latest *Latest) string {
	if latest == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", latest.Count)
}

func formatDelta(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", *v)
}

func (c *Client) logger() *slog.Logger {
	if logger.SVCSubs != nil {
		return logger.SVCSubs
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
