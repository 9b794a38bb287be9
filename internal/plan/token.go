package plan

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/eleron96/bimbot/core/logger"
)

// tokenExpirySlack is subtracted from expires_in so a token is refreshed
// before it actually lapses mid-request.
const tokenExpirySlack = 60 * time.Second

// TokenSource hands out a valid OAuth access token, refreshing it with
// the stored refresh token when the cached one expires.
type TokenSource struct {
	mu           sync.Mutex
	base         string
	clientID     string
	clientSecret string
	redirectURI  string
	refreshToken string
	accessToken  string
	expiresAt    time.Time
	http         *http.Client
	now          func() time.Time
}

// NewTokenSource builds a token source from the client credentials. A
// pre-seeded access token from config is used until its first expiry.
func NewTokenSource(cfg Config, httpClient *http.Client) *TokenSource {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	ts := &TokenSource{
		base:         base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		refreshToken: cfg.RefreshToken,
		accessToken:  cfg.AccessToken,
		http:         httpClient,
		now:          time.Now,
	}
	if ts.accessToken != "" {
		// Unknown lifetime; assume it is fresh for a while.
		ts.expiresAt = ts.now().Add(30 * time.Minute)
	}
	return ts
}

// Token returns a valid access token, refreshing it if needed.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.accessToken != "" && ts.now().Before(ts.expiresAt) {
		return ts.accessToken, nil
	}
	if ts.refreshToken == "" {
		if ts.accessToken != "" {
			return ts.accessToken, nil
		}
		return "", fmt.Errorf("plan: no access token and no refresh token configured")
	}
	if err := ts.refresh(ctx); err != nil {
		return "", err
	}
	return ts.accessToken, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// refresh exchanges the refresh token for a new token pair. Caller holds mu.
func (ts *TokenSource) refresh(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", ts.refreshToken)
	if ts.redirectURI != "" {
		form.Set("redirect_uri", ts.redirectURI)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		ts.base+"/authenticate/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	creds := base64.StdEncoding.EncodeToString([]byte(ts.clientID + ":" + ts.clientSecret))
	req.Header.Set("Authorization", "Basic "+creds)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := ts.http.Do(req)
	took := time.Since(start)
	if err != nil {
		ts.logger().Error("token refresh failed",
			slog.String("event", "plan.token"),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("plan: refresh token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		ts.logger().Error("token refresh rejected",
			slog.String("event", "plan.token"),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("plan: refresh token: unexpected status %s", resp.Status)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return fmt.Errorf("plan: refresh token: decode response: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("plan: refresh token: empty access token in response")
	}

	ts.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		ts.refreshToken = tok.RefreshToken
	}
	lifetime := time.Duration(tok.ExpiresIn) * time.Second
	if lifetime > tokenExpirySlack {
		lifetime -= tokenExpirySlack
	}
	ts.expiresAt = ts.now().Add(lifetime)

	ts.logger().Info("token refreshed",
		slog.String("event", "plan.token"),
		slog.Duration("duration", logger.RoundMS(took)),
		slog.Time("expires_at", ts.expiresAt),
	)
	return nil
}

func (ts *TokenSource) logger() *slog.Logger {
	if logger.SVCPlan != nil {
		return logger.SVCPlan
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
