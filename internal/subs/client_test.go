package subs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty base url")
	}
}

func TestReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/linkedin/latest":
			if got := r.URL.Query().Get("profile_id"); got != "gams" {
				t.Errorf("profile_id = %q", got)
			}
			_, _ = w.Write([]byte(`{"latest_data":{"count":1200,"recorded_at":"2026-08-28T10:00:00Z"}}`))
		case "/linkedin/statistics":
			_, _ = w.Write([]byte(`{"statistics":{"24h":1.5,"month":4.2}}`))
		case "/youtube/latest":
			if got := r.URL.Query().Get("channel_id"); got != "UCabc" {
				t.Errorf("channel_id = %q", got)
			}
			_, _ = w.Write([]byte(`{"latest_data":{"count":560}}`))
		case "/youtube/statistics":
			_, _ = w.Write([]byte(`{"statistics":{"month":-0.8}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Config{
		BaseURL:         srv.URL,
		LinkedInProfile: "gams",
		YouTubeChannel:  "UCabc",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	reports, err := c.Report(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("unexpected reports %+v", reports)
	}
	if reports[0].Platform != "LinkedIn" || reports[0].Latest == nil || reports[0].Latest.Count != 1200 {
		t.Fatalf("linkedin report %+v", reports[0])
	}
	if reports[1].Stats.Month == nil || *reports[1].Stats.Month != -0.8 {
		t.Fatalf("youtube stats %+v", reports[1].Stats)
	}
}

func TestReportSkipsUnconfiguredPlatforms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/medium/") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if strings.HasSuffix(r.URL.Path, "/latest") {
			_, _ = w.Write([]byte(`{"latest_data":{"count":42}}`))
			return
		}
		_, _ = w.Write([]byte(`{"statistics":{}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, MediumUser: "Eleron"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	reports, err := c.Report(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(reports) != 1 || reports[0].Platform != "Medium" {
		t.Fatalf("unexpected reports %+v", reports)
	}
}

func TestFormatReport(t *testing.T) {
	day := 1.5
	month := -0.8
	text := FormatReport([]PlatformReport{
		{Platform: "LinkedIn", Latest: &Latest{Count: 1200}, Stats: Statistics{Day: &day}},
		{Platform: "YouTube", Stats: Statistics{Month: &month}},
	})
	for _, want := range []string{
		"*LinkedIn*:",
		"Followers: 1200",
		"Change over a day: 1.50%",
		"*YouTube*:",
		"Followers: N/A",
		"Change over a month: -0.80%",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}
