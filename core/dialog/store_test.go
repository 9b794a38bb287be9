package dialog

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestStoreCreateAndGet(t *testing.T) {
	st := NewStore()
	s, err := st.Create(42, "projects", "selecting_project", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.ChatID != 42 || s.Dialog != "projects" || s.State != "selecting_project" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.StartedAt.IsZero() || s.LastActivity.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	got, err := st.Get(42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Dialog != "projects" {
		t.Fatalf("get returned %+v", got)
	}
}

func TestStoreCreateAlreadyActive(t *testing.T) {
	st := NewStore()
	if _, err := st.Create(1, "a", "s", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.Create(1, "b", "s", false); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	s, err := st.Create(1, "b", "s2", true)
	if err != nil {
		t.Fatalf("replace create: %v", err)
	}
	if s.Dialog != "b" || s.State != "s2" {
		t.Fatalf("replace produced %+v", s)
	}
}

func TestStoreConcurrentCreateSingleWinner(t *testing.T) {
	st := NewStore()
	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.Create(7, "race", "s", false); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)
	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one successful create, got %d", count)
	}
	if st.Len() != 1 {
		t.Fatalf("expected one session, got %d", st.Len())
	}
}

func TestStoreUpdateStampsActivity(t *testing.T) {
	st := NewStore()
	s, err := st.Create(5, "d", "s", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before := s.LastActivity

	base := before
	st.now = func() time.Time { return base.Add(time.Second) }
	updated, err := st.Update(5, func(cur *Session) { cur.State = "next" })
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.LastActivity.After(before) {
		t.Fatalf("last activity did not advance: %v -> %v", before, updated.LastActivity)
	}
	if updated.State != "next" {
		t.Fatalf("mutator not applied: %+v", updated)
	}

	// Clock going backwards must not rewind LastActivity.
	st.now = func() time.Time { return base.Add(-time.Hour) }
	rewound, err := st.Update(5, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if rewound.LastActivity.Before(updated.LastActivity) {
		t.Fatalf("last activity rewound: %v -> %v", updated.LastActivity, rewound.LastActivity)
	}
}

func TestStoreUpdateMissing(t *testing.T) {
	st := NewStore()
	if _, err := st.Update(99, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRemoveIdempotent(t *testing.T) {
	st := NewStore()
	if _, err := st.Create(3, "d", "s", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	st.Remove(3)
	st.Remove(3)
	if _, err := st.Get(3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestStoreExpireConditional(t *testing.T) {
	st := NewStore()
	s, err := st.Create(8, "d", "s", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Fresh session is not past the cutoff.
	if _, ok := st.Expire(8, s.LastActivity.Add(-time.Minute)); ok {
		t.Fatal("expire removed a fresh session")
	}
	if _, err := st.Get(8); err != nil {
		t.Fatalf("session should survive: %v", err)
	}

	snap, ok := st.Expire(8, s.LastActivity)
	if !ok {
		t.Fatal("expire should remove an idle session")
	}
	if snap.ChatID != 8 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	// Second expire finds nothing.
	if _, ok := st.Expire(8, time.Now().Add(time.Hour)); ok {
		t.Fatal("double expire must not succeed")
	}
}

func TestStoreSnapshotsAreCopies(t *testing.T) {
	st := NewStore()
	if _, err := st.Create(11, "d", "s", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := st.Update(11, func(cur *Session) {
		cur.Data = map[string]string{"k": "v"}
		cur.History = append(cur.History, Turn{Role: RoleUser, Content: "hi"})
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got.Data["k"] = "mutated"
	got.History[0].Content = "mutated"

	fresh, err := st.Get(11)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh.Data["k"] != "v" || fresh.History[0].Content != "hi" {
		t.Fatalf("store internals were aliased: %+v", fresh)
	}
}

func TestStoreAll(t *testing.T) {
	st := NewStore()
	for i := int64(1); i <= 3; i++ {
		if _, err := st.Create(i, "d", "s", false); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	all := st.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
}
