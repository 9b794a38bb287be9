package plan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:     srv.URL,
		WorkspaceID: 880544,
		AccessToken: "tok",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return c
}

func TestNewClientRequiresWorkspace(t *testing.T) {
	if _, err := NewClient(Config{AccessToken: "tok"}); err == nil {
		t.Fatal("expected error for missing workspace id")
	}
}

func TestMembers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/880544/members" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		_, _ = w.Write([]byte(`[
			{"id":1,"membership_id":11,"name":"Alice"},
			{"id":2,"membership_id":22,"name":"Bob"}
		]`))
	}))
	defer srv.Close()

	members, err := testClient(t, srv).Members(context.Background())
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 || members[0].MembershipID != 11 {
		t.Fatalf("unexpected members %+v", members)
	}
}

func TestTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/880544/tasks" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[
			{"id":101,"name":"facade model","created_at":"2026-08-20T10:00:00Z"},
			{"id":102,"name":"old task","created_at":"2026-01-01T10:00:00Z"}
		]`))
	}))
	defer srv.Close()

	tasks, err := testClient(t, srv).Tasks(context.Background())
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != 101 {
		t.Fatalf("unexpected tasks %+v", tasks)
	}
	if tasks[0].CreatedAt.IsZero() {
		t.Fatal("created_at not parsed")
	}
}

func TestTaskDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/880544/tasks/101" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"id":101,
			"name":"facade model",
			"workspace_members":[11,22],
			"project":{"name":"Tower A"},
			"plan_status":{"name":"Done"}
		}`))
	}))
	defer srv.Close()

	detail, err := testClient(t, srv).TaskDetail(context.Background(), 101)
	if err != nil {
		t.Fatalf("task detail: %v", err)
	}
	if detail.PlanStatus.Name != StatusDone || len(detail.WorkspaceMembers) != 2 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if detail.Project.Name != "Tower A" {
		t.Fatalf("project = %q", detail.Project.Name)
	}
}

func TestBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := testClient(t, srv).Members(context.Background()); err == nil {
		t.Fatal("expected error on 403")
	}
}

func TestProgressBar(t *testing.T) {
	cases := []struct {
		done, total int
		want        string
	}{
		{0, 0, "🟨🟨🟨🟨🟨"},
		{0, 4, "🟨🟨🟨🟨🟨"},
		{2, 4, "🟩🟩🟨🟨🟨"},
		{4, 4, "🟩🟩🟩🟩🟩"},
		{3, 4, "🟩🟩🟩🟨🟨"},
	}
	for _, tc := range cases {
		if got := progressBar(tc.done, tc.total); got != tc.want {
			t.Errorf("progressBar(%d, %d) = %s, want %s", tc.done, tc.total, got, tc.want)
		}
	}
}

func TestKeycapNumber(t *testing.T) {
	if got := keycapNumber(3); got != "3️⃣" {
		t.Errorf("keycapNumber(3) = %s", got)
	}
	if got := keycapNumber(12); got != "1️⃣2️⃣" {
		t.Errorf("keycapNumber(12) = %s", got)
	}
}

func TestShortName(t *testing.T) {
	if got := shortName("Bob"); got != "Bob" {
		t.Errorf("short name changed: %s", got)
	}
	if got := shortName("Alexander Hamilton"); got != "Alexan H." {
		t.Errorf("long name = %s", got)
	}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[int64]TaskDetail
	puts    int
}

func (m *memoryCache) Get(_ context.Context, taskID int64) (TaskDetail, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.entries[taskID]
	return d, ok, nil
}

func (m *memoryCache) Put(_ context.Context, d TaskDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[d.ID] = d
	m.puts++
	return nil
}

func TestStatsByMemberUsesCache(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	detailHits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/880544/members":
			_, _ = w.Write([]byte(`[
				{"id":1,"membership_id":11,"name":"Alice"},
				{"id":2,"membership_id":22,"name":"Bob"}
			]`))
		case "/880544/tasks":
			_, _ = w.Write([]byte(`[
				{"id":101,"name":"recent a","created_at":"2026-08-20T10:00:00Z"},
				{"id":102,"name":"recent b","created_at":"2026-08-25T10:00:00Z"},
				{"id":103,"name":"stale","created_at":"2026-02-01T10:00:00Z"}
			]`))
		case "/880544/tasks/102":
			detailHits++
			_, _ = w.Write([]byte(`{
				"id":102,
				"workspace_members":[11,22],
				"plan_status":{"name":"In progress"}
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cache := &memoryCache{entries: map[int64]TaskDetail{
		101: {
			ID:               101,
			WorkspaceMembers: []int64{11},
			PlanStatus:       TaskStatus{Name: StatusDone},
		},
	}}
	stats, err := NewStats(testClient(t, srv), cache).ByMember(context.Background(), now)
	if err != nil {
		t.Fatalf("by member: %v", err)
	}
	if detailHits != 1 {
		t.Fatalf("detail hits = %d, want 1 (cached task refetched?)", detailHits)
	}
	if cache.puts != 1 {
		t.Fatalf("cache puts = %d, want 1", cache.puts)
	}

	byName := map[string]MemberStat{}
	for _, st := range stats {
		byName[st.Member.Name] = st
	}
	if st := byName["Alice"]; st.Total != 2 || st.Done != 1 {
		t.Fatalf("alice stat = %+v", st)
	}
	if st := byName["Bob"]; st.Total != 1 || st.Done != 0 {
		t.Fatalf("bob stat = %+v", st)
	}
}

func TestStatsByProjectOrdersUnknownLast(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/880544/tasks":
			_, _ = w.Write([]byte(`[
				{"id":1,"created_at":"2026-08-20T10:00:00Z"},
				{"id":2,"created_at":"2026-08-21T10:00:00Z"},
				{"id":3,"created_at":"2026-08-22T10:00:00Z"}
			]`))
		case "/880544/tasks/1":
			_, _ = w.Write([]byte(`{"id":1,"project":{"name":"Tower A"},"plan_status":{"name":"Done"}}`))
		case "/880544/tasks/2":
			_, _ = w.Write([]byte(`{"id":2,"project":{"name":"Tower A"},"plan_status":{"name":"Blocked"}}`))
		case "/880544/tasks/3":
			_, _ = w.Write([]byte(`{"id":3,"plan_status":{"name":"In progress"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	stats, err := NewStats(testClient(t, srv), nil).ByProject(context.Background(), now)
	if err != nil {
		t.Fatalf("by project: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats[0].Name != "Tower A" || stats[0].Total != 2 || stats[0].Done != 1 || stats[0].Blocked != 1 {
		t.Fatalf("first project %+v", stats[0])
	}
	if stats[1].Name != "Unknown" {
		t.Fatalf("last project %+v", stats[1])
	}
}
