package config

import (
	"strings"
	"testing"
)

func baseConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := baseConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
	if cfg.Dialog.ScanIntervalSeconds != 60 {
		t.Fatalf("scan_interval = %d, want 60", cfg.Dialog.ScanIntervalSeconds)
	}
	if cfg.Dialog.IdleTimeoutSeconds != 300 {
		t.Fatalf("idle_timeout = %d, want 300", cfg.Dialog.IdleTimeoutSeconds)
	}
}

func TestNormalizeRequiresToken(t *testing.T) {
	cfg := &Config{}
	err := Normalize(cfg)
	if err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestNormalizeWebhookValidation(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for webhook mode without url")
	}

	cfg = baseConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	cfg.Webhook = WebhookConfig{URL: "https://bot.example.com", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize webhook: %v", err)
	}
}

func TestNormalizeRunModeAlias(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = "polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("alias not applied: %q", cfg.Telegram.RunMode)
	}
}

func TestNormalizeRejectsBadExclusion(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"sticker"}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown exclude_updates value")
	}
}

func TestNormalizeRejectsNegativeDialogValues(t *testing.T) {
	cfg := baseConfig()
	cfg.Dialog.ScanIntervalSeconds = -1
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for negative scan interval")
	}
}
