package dialog

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestReaperScanExpiresIdleSessions(t *testing.T) {
	e := NewEngine(NewStore(), EngineConfig{DefaultTimeout: 5 * time.Minute})
	if err := e.Register(echoDialog("echo")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := e.Start(context.Background(), 1, "echo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.Start(context.Background(), 2, "echo"); err != nil {
		t.Fatalf("start: %v", err)
	}

	var mu sync.Mutex
	notices := map[int64]int{}
	r := NewReaper(e, time.Minute, func(chatID int64, reply Reply) {
		mu.Lock()
		defer mu.Unlock()
		notices[chatID]++
		if reply.Text != "session expired" {
			t.Errorf("unexpected expiry notice %q", reply.Text)
		}
	})

	// Nothing is idle yet.
	if n := r.ScanOnce(time.Now()); n != 0 {
		t.Fatalf("fresh sessions expired: %d", n)
	}

	// Refresh chat 2 and jump past the timeout relative to chat 1 only.
	s1, _ := e.Store().Get(1)
	future := s1.LastActivity.Add(6 * time.Minute)
	e.Store().mu.Lock()
	e.Store().sessions[2].LastActivity = future
	e.Store().mu.Unlock()

	if n := r.ScanOnce(future); n != 1 {
		t.Fatalf("expected one expiry, got %d", n)
	}
	if e.Active(1) {
		t.Fatal("idle session must be removed")
	}
	if !e.Active(2) {
		t.Fatal("active session must survive the scan")
	}
	if notices[1] != 1 {
		t.Fatalf("expected exactly one notice for chat 1, got %d", notices[1])
	}

	// Re-scanning never re-notifies.
	if n := r.ScanOnce(future.Add(time.Hour)); n != 0 {
		// chat 2 may legitimately expire this far out; only chat 1 matters
		_ = n
	}
	if notices[1] != 1 {
		t.Fatalf("duplicate notice for chat 1: %d", notices[1])
	}
}

func TestReaperPerDialogTimeout(t *testing.T) {
	e := NewEngine(NewStore(), EngineConfig{DefaultTimeout: 10 * time.Minute})
	short := echoDialog("short")
	short.Timeout = time.Minute
	long := echoDialog("long")
	if err := e.Register(short); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := e.Register(long); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := e.Start(context.Background(), 1, "short"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.Start(context.Background(), 2, "long"); err != nil {
		t.Fatalf("start: %v", err)
	}

	r := NewReaper(e, time.Minute, nil)
	s1, _ := e.Store().Get(1)
	if n := r.ScanOnce(s1.LastActivity.Add(2 * time.Minute)); n != 1 {
		t.Fatalf("expected only the short dialogue to expire, got %d", n)
	}
	if e.Active(1) || !e.Active(2) {
		t.Fatal("wrong session expired")
	}
}

func TestReaperScanRaceSingleNotice(t *testing.T) {
	e := NewEngine(NewStore(), EngineConfig{DefaultTimeout: time.Minute})
	if err := e.Register(echoDialog("echo")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := e.Start(context.Background(), 5, "echo"); err != nil {
		t.Fatalf("start: %v", err)
	}
	s, _ := e.Store().Get(5)
	deadline := s.LastActivity.Add(time.Hour)

	var mu sync.Mutex
	total := 0
	r := NewReaper(e, time.Minute, func(int64, Reply) {
		mu.Lock()
		total++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.ScanOnce(deadline)
		}()
	}
	wg.Wait()
	if total != 1 {
		t.Fatalf("expected exactly one termination notice, got %d", total)
	}
}

func TestReaperRunStopsOnCancel(t *testing.T) {
	e := NewEngine(NewStore(), EngineConfig{})
	r := NewReaper(e, time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
