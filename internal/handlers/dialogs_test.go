package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eleron96/bimbot/core/dialog"
	"github.com/eleron96/bimbot/internal/ai"
	"github.com/eleron96/bimbot/internal/speckle"
)

type scriptedAI struct {
	answer string
	err    error
	seen   []ai.Message
}

func (s *scriptedAI) Complete(_ context.Context, messages []ai.Message) (string, error) {
	s.seen = messages
	return s.answer, s.err
}

func (s *scriptedAI) Model() string { return "scripted" }

func newEngine(t *testing.T, dialogs ...*dialog.Dialog) *dialog.Engine {
	t.Helper()
	engine := dialog.NewEngine(dialog.NewStore(), dialog.EngineConfig{})
	for _, d := range dialogs {
		if err := engine.Register(d); err != nil {
			t.Fatalf("register %s: %v", d.Name, err)
		}
	}
	return engine
}

func TestAssistantDialogCarriesHistory(t *testing.T) {
	client := &scriptedAI{answer: "42"}
	engine := newEngine(t, AssistantDialog(client))
	ctx := context.Background()

	reply, err := engine.Start(ctx, 1, AssistantDialogName)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(reply.Text, "Assistant") {
		t.Fatalf("greeting = %q", reply.Text)
	}

	reply, err = engine.Dispatch(ctx, 1, dialog.Input{Text: "meaning of life?"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if reply.Text != "42" {
		t.Fatalf("reply = %q", reply.Text)
	}

	if _, err = engine.Dispatch(ctx, 1, dialog.Input{Text: "again please"}); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	// The second completion sees the first exchange plus the new question.
	if len(client.seen) != 3 {
		t.Fatalf("messages sent = %d, want 3: %+v", len(client.seen), client.seen)
	}
	if client.seen[0].Content != "meaning of life?" || client.seen[1].Role != ai.RoleAssistant {
		t.Fatalf("history order wrong: %+v", client.seen)
	}
}

func TestAssistantDialogExitPhrase(t *testing.T) {
	engine := newEngine(t, AssistantDialog(&scriptedAI{answer: "hi"}))
	ctx := context.Background()

	if _, err := engine.Start(ctx, 1, AssistantDialogName); err != nil {
		t.Fatalf("start: %v", err)
	}
	reply, err := engine.Dispatch(ctx, 1, dialog.Input{Text: "Bye"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(reply.Text, "closed") {
		t.Fatalf("exit reply = %q", reply.Text)
	}
	if engine.Active(1) {
		t.Fatal("session should be gone after exit phrase")
	}
}

func TestAssistantDialogProviderFailureKeepsSession(t *testing.T) {
	client := &scriptedAI{err: errors.New("rate limited")}
	engine := newEngine(t, AssistantDialog(client))
	ctx := context.Background()

	if _, err := engine.Start(ctx, 1, AssistantDialogName); err != nil {
		t.Fatalf("start: %v", err)
	}
	reply, err := engine.Dispatch(ctx, 1, dialog.Input{Text: "hello"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(reply.Text, "unavailable") {
		t.Fatalf("failure reply = %q", reply.Text)
	}
	if !engine.Active(1) {
		t.Fatal("session should survive a provider failure")
	}
}

func TestAssistantDialogRejectsReentry(t *testing.T) {
	engine := newEngine(t, AssistantDialog(&scriptedAI{answer: "hi"}))
	ctx := context.Background()

	if _, err := engine.Start(ctx, 1, AssistantDialogName); err != nil {
		t.Fatalf("start: %v", err)
	}
	reply, err := engine.Start(ctx, 1, AssistantDialogName)
	if !errors.Is(err, dialog.ErrAlreadyActive) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(reply.Text, "already running") {
		t.Fatalf("reject reply = %q", reply.Text)
	}
}

func speckleTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if strings.Contains(req.Query, "streams") {
			_, _ = w.Write([]byte(`{"data":{"streams":{"items":[
				{"id":"p1","name":"Tower A"},
				{"id":"p2","name":"Tower B"}
			]}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"stream":{"branches":{"items":[
			{"name":"main","commits":{"items":[{"id":"c1","message":"facade update"}]}},
			{"name":"mep","commits":{"items":[]}}
		]}}}}`))
	}))
}

func TestProjectsDialogFlow(t *testing.T) {
	srv := speckleTestServer(t)
	defer srv.Close()
	client, err := speckle.NewClient(speckle.Config{Host: srv.URL})
	if err != nil {
		t.Fatalf("speckle client: %v", err)
	}
	engine := newEngine(t, ProjectsDialog(client))
	ctx := context.Background()

	reply, err := engine.Start(ctx, 7, ProjectsDialogName)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(reply.Buttons) != 2 || reply.Buttons[0][0].Label != "Tower A" {
		t.Fatalf("project buttons = %+v", reply.Buttons)
	}

	reply, err = engine.Dispatch(ctx, 7, dialog.Input{CallbackKey: cbProject, CallbackData: "p1"})
	if err != nil {
		t.Fatalf("pick project: %v", err)
	}
	if !strings.Contains(reply.Text, "Tower A") || !strings.Contains(reply.Text, "facade update") {
		t.Fatalf("models reply = %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "no commits") {
		t.Fatalf("empty branch not mentioned: %q", reply.Text)
	}
	if len(reply.Buttons) != 1 || reply.Buttons[0][0].URL == "" {
		t.Fatalf("commit link buttons = %+v", reply.Buttons)
	}

	// Switching projects from the showing state works without restarting.
	reply, err = engine.Dispatch(ctx, 7, dialog.Input{CallbackKey: cbProject, CallbackData: "p2"})
	if err != nil {
		t.Fatalf("switch project: %v", err)
	}
	if !strings.Contains(reply.Text, "Tower B") {
		t.Fatalf("switched reply = %q", reply.Text)
	}

	// Stray text gets a hint instead of breaking the dialogue.
	reply, err = engine.Dispatch(ctx, 7, dialog.Input{Text: "what"})
	if err != nil {
		t.Fatalf("stray text: %v", err)
	}
	if !strings.Contains(reply.Text, "/exit") {
		t.Fatalf("hint reply = %q", reply.Text)
	}

	reply, err = engine.Dispatch(ctx, 7, dialog.Input{Text: "/exit"})
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if engine.Active(7) {
		t.Fatal("session should be gone after /exit")
	}
}

func TestProjectsDialogNoProjectsEndsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"streams":{"items":[]}}}`))
	}))
	defer srv.Close()
	client, err := speckle.NewClient(speckle.Config{Host: srv.URL})
	if err != nil {
		t.Fatalf("speckle client: %v", err)
	}
	engine := newEngine(t, ProjectsDialog(client))

	reply, err := engine.Start(context.Background(), 7, ProjectsDialogName)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.Contains(reply.Text, "No projects") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if engine.Active(7) {
		t.Fatal("session should end when nothing is browsable")
	}
}
