package speckle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty host")
	}
}

func TestProjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		var req struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !strings.Contains(req.Query, "streams") {
			t.Errorf("unexpected query %q", req.Query)
		}
		_, _ = w.Write([]byte(`{"data":{"streams":{"items":[{"id":"abc","name":"Tower A"},{"id":"def","name":"Tower B"}]}}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Host: srv.URL + "/", Token: "tok"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	projects, err := c.Projects(context.Background())
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	if len(projects) != 2 || projects[0].Name != "Tower A" {
		t.Fatalf("unexpected projects %+v", projects)
	}
}

func TestModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Variables["id"] != "abc" {
			t.Errorf("variables = %+v", req.Variables)
		}
		_, _ = w.Write([]byte(`{"data":{"stream":{"branches":{"items":[
			{"name":"main","commits":{"items":[{"id":"c1","message":"01.02.24"}]}},
			{"name":"mep","commits":{"items":[]}}
		]}}}}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Host: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	models, err := c.Models(context.Background(), "abc")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("unexpected models %+v", models)
	}
	if !models[0].HasCommits() || models[0].LatestCommitID != "c1" {
		t.Fatalf("first model %+v", models[0])
	}
	if models[1].HasCommits() {
		t.Fatalf("second model should have no commits: %+v", models[1])
	}
}

func TestGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"stream not found"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{Host: srv.URL})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Models(context.Background(), "missing"); err == nil || !strings.Contains(err.Error(), "stream not found") {
		t.Fatalf("expected graphql error, got %v", err)
	}
}

func TestCommitURL(t *testing.T) {
	c, err := NewClient(Config{Host: "https://speckle.example.com/"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got := c.CommitURL("abc", "c1")
	want := "https://speckle.example.com/streams/abc/commits/c1"
	if got != want {
		t.Fatalf("commit url = %s, want %s", got, want)
	}
}
