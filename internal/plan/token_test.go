package plan

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTokenSourceUsesSeededToken(t *testing.T) {
	ts := NewTokenSource(Config{AccessToken: "seeded"}, nil)
	tok, err := ts.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "seeded" {
		t.Fatalf("token = %q", tok)
	}
}

func TestTokenSourceRefreshes(t *testing.T) {
	refreshes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/authenticate/token" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("cid:secret"))
		if got := r.Header.Get("Authorization"); got != wantAuth {
			t.Errorf("auth header = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "r1" {
			t.Errorf("refresh_token = %q", got)
		}
		refreshes++
		_, _ = w.Write([]byte(`{"access_token":"a1","refresh_token":"r2","expires_in":3600}`))
	}))
	defer srv.Close()

	ts := NewTokenSource(Config{
		BaseURL:      srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		RefreshToken: "r1",
	}, nil)

	tok, err := ts.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "a1" {
		t.Fatalf("token = %q", tok)
	}
	if refreshes != 1 {
		t.Fatalf("refreshes = %d", refreshes)
	}
	if ts.refreshToken != "r2" {
		t.Fatalf("rotated refresh token not stored: %q", ts.refreshToken)
	}

	// Second call within the lifetime must not hit the endpoint again.
	if _, err := ts.Token(context.Background()); err != nil {
		t.Fatalf("second token: %v", err)
	}
	if refreshes != 1 {
		t.Fatalf("refreshes after cached call = %d", refreshes)
	}
}

func TestTokenSourceRefreshesOnExpiry(t *testing.T) {
	refreshes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshes++
		_, _ = w.Write([]byte(`{"access_token":"a2","expires_in":3600}`))
	}))
	defer srv.Close()

	ts := NewTokenSource(Config{
		BaseURL:      srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		RefreshToken: "r1",
		AccessToken:  "stale",
	}, nil)
	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return base }
	ts.expiresAt = base.Add(-time.Minute)

	tok, err := ts.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if tok != "a2" || refreshes != 1 {
		t.Fatalf("token = %q, refreshes = %d", tok, refreshes)
	}
	// Original refresh token stays when the response omits a new one.
	if ts.refreshToken != "r1" {
		t.Fatalf("refresh token = %q", ts.refreshToken)
	}
}

func TestTokenSourceRejectedRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	ts := NewTokenSource(Config{
		BaseURL:      srv.URL,
		ClientID:     "cid",
		ClientSecret: "secret",
		RefreshToken: "bad",
	}, nil)
	if _, err := ts.Token(context.Background()); err == nil {
		t.Fatal("expected error on rejected refresh")
	}
}

func TestTokenSourceNoCredentials(t *testing.T) {
	ts := NewTokenSource(Config{}, nil)
	if _, err := ts.Token(context.Background()); err == nil {
		t.Fatal("expected error with no tokens configured")
	}
}
