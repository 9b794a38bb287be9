package sysmon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeProc(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func fixtureSampler(t *testing.T) (*Sampler, string) {
	t.Helper()
	root := t.TempDir()
	writeProc(t, root, "uptime", "93784.50 180000.00\n")
	writeProc(t, root, "meminfo", strings.Join([]string{
		"MemTotal:       16000000 kB",
		"MemFree:         2000000 kB",
		"MemAvailable:    4000000 kB",
		"",
	}, "\n"))
	writeProc(t, root, "stat", "cpu  100 0 100 800 0 0 0 0 0 0\ncpu0 50 0 50 400 0 0 0 0 0 0\n")
	writeProc(t, root, "net/dev", strings.Join([]string{
		"Inter-|   Receive                                                |  Transmit",
		" face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed",
		"    lo: 9999999     100    0    0    0     0          0         0  9999999     100    0    0    0     0       0          0",
		"  eth0: 1048576    1000    0    0    0     0          0         0  2097152    2000    0    0    0     0       0          0",
		"",
	}, "\n"))

	s := &Sampler{
		procRoot: root,
		diskPath: "/",
		freeDisk: func(string) (uint64, error) { return 50 << 30, nil },
	}
	return s, root
}

func TestSample(t *testing.T) {
	s, root := fixtureSampler(t)
	s.sleep = func(ctx context.Context, d time.Duration) error {
		// Simulate 50% busy CPU and 5120 B/s in each direction over the window.
		writeProc(t, root, "stat", "cpu  200 0 200 1000 0 0 0 0 0 0\n")
		writeProc(t, root, "net/dev", strings.Join([]string{
			"Inter-|   Receive |  Transmit",
			" face |bytes ... |bytes ...",
			"  eth0: 1074176    1005    0    0    0     0          0         0  2122752    2005    0    0    0     0       0          0",
			"",
		}, "\n"))
		return nil
	}

	st, err := s.Sample(context.Background(), 5*time.Second)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if st.Uptime != 93784*time.Second {
		t.Errorf("uptime = %s", st.Uptime)
	}
	if st.RAMPercent != 75 {
		t.Errorf("ram = %.1f", st.RAMPercent)
	}
	if st.FreeDiskGB != 50 {
		t.Errorf("disk = %.1f", st.FreeDiskGB)
	}
	if st.CPUPercent != 50 {
		t.Errorf("cpu = %.1f", st.CPUPercent)
	}
	if st.RecvKBps != 5 || st.SentKBps != 5 {
		t.Errorf("net = %.2f up, %.2f down", st.SentKBps, st.RecvKBps)
	}
	if st.SentMB < 2.0 || st.SentMB > 2.1 {
		t.Errorf("sent total = %.2f MB", st.SentMB)
	}
}

func TestSampleIgnoresLoopback(t *testing.T) {
	s, _ := fixtureSampler(t)
	totals, err := s.readNetDev()
	if err != nil {
		t.Fatalf("net dev: %v", err)
	}
	if totals.recv != 1048576 || totals.sent != 2097152 {
		t.Fatalf("totals = %+v", totals)
	}
}

func TestSampleCanceled(t *testing.T) {
	s, _ := fixtureSampler(t)
	s.sleep = sleepCtx
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Sample(ctx, time.Minute); err == nil {
		t.Fatal("expected context error")
	}
}

func TestFormatStatus(t *testing.T) {
	text := FormatStatus(Status{
		Hostname:   "bim-host",
		Uptime:     26*time.Hour + 3*time.Minute + 4*time.Second,
		CPUPercent: 12.5,
		RAMPercent: 63.2,
		FreeDiskGB: 41.7,
	})
	for _, want := range []string{
		"💻 Server: bim-host",
		"⏱ Uptime: 1d 02:03:04",
		"🔥 CPU: 12.5%",
		"💾 RAM: 63.2%",
		"💽 Free disk: 41.70 GB",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("status missing %q:\n%s", want, text)
		}
	}
}
