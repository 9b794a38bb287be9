package cloud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{ServerID: 1}); err == nil {
		t.Fatal("expected error for missing token")
	}
	if _, err := NewClient(Config{Token: "t"}); err == nil {
		t.Fatal("expected error for missing server id")
	}
}

func TestReboot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/servers/3109085/reboot" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Token: "tok", ServerID: 3109085})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Reboot(context.Background()); err != nil {
		t.Fatalf("reboot: %v", err)
	}
}

func TestRebootRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Token: "tok", ServerID: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.Reboot(context.Background()); err == nil {
		t.Fatal("expected error on 403")
	}
}
