package sysmon

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/eleron96/bimbot/core/logger"
)

// Status is a point-in-time picture of the host.
type Status struct {
	Hostname   string
	Uptime     time.Duration
	CPUPercent float64
	RAMPercent float64
	FreeDiskGB float64
	SentKBps   float64
	RecvKBps   float64
	SentMB     float64
	RecvMB     float64
}

// Sampler reads host metrics from the proc filesystem. The roots are
// swappable so parsing can be exercised against fixtures.
type Sampler struct {
	procRoot string
	diskPath string
	sleep    func(ctx context.Context, d time.Duration) error
	freeDisk func(path string) (uint64, error)
}

// NewSampler builds a sampler over the live /proc tree.
func NewSampler() *Sampler {
	return &Sampler{
		procRoot: "/proc",
		diskPath: "/",
		sleep:    sleepCtx,
		freeDisk: freeDiskBytes,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func freeDiskBytes(path string) (uint64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}

// Sample collects host status, measuring CPU load and network throughput
// over the given interval.
func (s *Sampler) Sample(ctx context.Context, interval time.Duration) (Status, error) {
	var out Status

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	out.Hostname = host

	uptime, err := s.readUptime()
	if err != nil {
		return out, fmt.Errorf("sysmon: uptime: %w", err)
	}
	out.Uptime = uptime

	ramPct, err := s.readMemUsage()
	if err != nil {
		return out, fmt.Errorf("sysmon: meminfo: %w", err)
	}
	out.RAMPercent = ramPct

	free, err := s.freeDisk(s.diskPath)
	if err != nil {
		return out, fmt.Errorf("sysmon: disk: %w", err)
	}
	out.FreeDiskGB = float64(free) / (1 << 30)

	cpu1, err := s.readCPUStat()
	if err != nil {
		return out, fmt.Errorf("sysmon: cpu: %w", err)
	}
	net1, err := s.readNetDev()
	if err != nil {
		return out, fmt.Errorf("sysmon: net: %w", err)
	}

	if err := s.sleep(ctx, interval); err != nil {
		return out, err
	}

	cpu2, err := s.readCPUStat()
	if err != nil {
		return out, fmt.Errorf("sysmon: cpu: %w", err)
	}
	net2, err := s.readNetDev()
	if err != nil {
		return out, fmt.Errorf("sysmon: net: %w", err)
	}

	out.CPUPercent = cpuPercent(cpu1, cpu2)
	seconds := interval.Seconds()
	if seconds > 0 {
		out.SentKBps = float64(net2.sent-net1.sent) / seconds / 1024
		out.RecvKBps = float64(net2.recv-net1.recv) / seconds / 1024
	}
	out.SentMB = float64(net2.sent) / (1 << 20)
	out.RecvMB = float64(net2.recv) / (1 << 20)

	s.logger().Debug("host sampled",
		slog.String("event", "sysmon.sample"),
		slog.Duration("duration", logger.RoundMS(interval)),
		slog.String("host", out.Hostname),
	)
	return out, nil
}

func (s *Sampler) readUptime() (time.Duration, error) {
	data, err := os.ReadFile(filepath.Join(s.procRoot, "uptime"))
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty uptime file")
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)).Truncate(time.Second), nil
}

func (s *Sampler) readMemUsage() (float64, error) {
	data, err := os.ReadFile(filepath.Join(s.procRoot, "meminfo"))
	if err != nil {
		return 0, err
	}
	var total, available float64
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = v
		case "MemAvailable:":
			available = v
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("MemTotal not found")
	}
	return (total - available) / total * 100, nil
}

type cpuTimes struct {
	idle  uint64
	total uint64
}

func (s *Sampler) readCPUStat() (cpuTimes, error) {
	data, err := os.ReadFile(filepath.Join(s.procRoot, "stat"))
	if err != nil {
		return cpuTimes{}, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		var t cpuTimes
		for i, f := range fields[1:] {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return cpuTimes{}, err
			}
			t.total += v
			// idle + iowait
			if i == 3 || i == 4 {
				t.idle += v
			}
		}
		return t, nil
	}
	return cpuTimes{}, fmt.Errorf("cpu line not found")
}

func cpuPercent(a, b cpuTimes) float64 {
	totalDelta := float64(b.total - a.total)
	if totalDelta <= 0 {
		return 0
	}
	idleDelta := float64(b.idle - a.idle)
	return (1 - idleDelta/totalDelta) * 100
}

type netTotals struct {
	recv uint64
	sent uint64
}

func (s *Sampler) readNetDev() (netTotals, error) {
	data, err := os.ReadFile(filepath.Join(s.procRoot, "net/dev"))
	if err != nil {
		return netTotals{}, err
	}
	var out netTotals
	for _, line := range strings.Split(string(data), "\n") {
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		iface := strings.TrimSpace(line[:idx])
		if iface == "lo" {
			continue
		}
		fields := strings.Fields(line[idx+1:])
		if len(fields) < 9 {
			continue
		}
		recv, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		sent, err := strconv.ParseUint(fields[8], 10, 64)
		if err != nil {
			continue
		}
		out.recv += recv
		out.sent += sent
	}
	return out, nil
}

// FormatStatus renders the host picture as the /server reply text.
func FormatStatus(st Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💻 Server: %s\n", st.Hostname)
	fmt.Fprintf(&b, "⏱ Uptime: %s\n", formatUptime(st.Uptime))
	fmt.Fprintf(&b, "🔥 CPU: %.1f%%\n", st.CPUPercent)
	fmt.Fprintf(&b, "💾 RAM: %.1f%%\n", st.RAMPercent)
	fmt.Fprintf(&b, "💽 Free disk: %.2f GB\n", st.FreeDiskGB)
	fmt.Fprintf(&b, "🔼 Avg upload: %.2f KB/s\n", st.SentKBps)
	fmt.Fprintf(&b, "🔽 Avg download: %.2f KB/s\n", st.RecvKBps)
	fmt.Fprintf(&b, "📤 Sent: %.2f MB\n", st.SentMB)
	fmt.Fprintf(&b, "📥 Received: %.2f MB", st.RecvMB)
	return b.String()
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d:%02d", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

func (s *Sampler) logger() *slog.Logger {
	if logger.SVCSysmon != nil {
		return logger.SVCSysmon
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
