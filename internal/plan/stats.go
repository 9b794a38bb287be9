package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"log/slog"

	"golang.org/x/sync/errgroup"
)

// recentWindow bounds reports to tasks created within the last month.
const recentWindow = 30 * 24 * time.Hour

// detailFetchWorkers caps concurrent task-detail requests against the API.
const detailFetchWorkers = 8

// TaskCache stores fetched task details so repeated reports do not
// re-query the API for the same task.
type TaskCache interface {
	Get(ctx context.Context, taskID int64) (TaskDetail, bool, error)
	Put(ctx context.Context, detail TaskDetail) error
}

// Stats builds workspace reports from the Plan API, going through the
// task cache when one is configured.
type Stats struct {
	client *Client
	cache  TaskCache
}

// NewStats wires the report builder. cache may be nil; details are then
// fetched from the API every time.
func NewStats(client *Client, cache TaskCache) *Stats {
	return &Stats{client: client, cache: cache}
}

// MemberStat is a per-member task tally over the recent window.
type MemberStat struct {
	Member Member
	Total  int
	Done   int
}

// ProjectStat is a per-project task tally over the recent window.
type ProjectStat struct {
	Name    string
	Total   int
	Done    int
	Blocked int
}

// recentDetails lists task details for tasks created within the window,
// preferring cached copies over API calls.
func (s *Stats) recentDetails(ctx context.Context, now time.Time) ([]TaskDetail, error) {
	tasks, err := s.client.Tasks(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-recentWindow)
	recent := tasks[:0]
	for _, t := range tasks {
		if !t.CreatedAt.Before(cutoff) {
			recent = append(recent, t)
		}
	}

	var (
		mu      sync.Mutex
		details = make([]TaskDetail, 0, len(recent))
		cached  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailFetchWorkers)
	for _, t := range recent {
		t := t
		g.Go(func() error {
			if s.cache != nil {
				if d, ok, err := s.cache.Get(gctx, t.ID); err == nil && ok {
					mu.Lock()
					details = append(details, d)
					cached++
					mu.Unlock()
					return nil
				}
			}
			d, err := s.client.TaskDetail(gctx, t.ID)
			if err != nil {
				return err
			}
			if s.cache != nil {
				if err := s.cache.Put(gctx, d); err != nil {
					s.client.logger().Warn("cache write failed",
						slog.String("event", "plan.cache"),
						slog.Int64("task_id", d.ID),
						slog.String("err", err.Error()),
					)
				}
			}
			mu.Lock()
			details = append(details, d)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.client.logger().Debug("details collected",
		slog.String("event", "plan.details"),
		slog.Int("recent", len(recent)),
		slog.Int("cached", cached),
	)
	return details, nil
}

// ByMember tallies recent tasks per workspace member.
func (s *Stats) ByMember(ctx context.Context, now time.Time) ([]MemberStat, error) {
	members, err := s.client.Members(ctx)
	if err != nil {
		return nil, err
	}
	details, err := s.recentDetails(ctx, now)
	if err != nil {
		return nil, err
	}

	byMembership := make(map[int64]int, len(members))
	stats := make([]MemberStat, len(members))
	for i, m := range members {
		byMembership[m.MembershipID] = i
		stats[i] = MemberStat{Member: m}
	}

	for _, d := range details {
		for _, membershipID := range d.WorkspaceMembers {
			i, ok := byMembership[membershipID]
			if !ok {
				continue
			}
			stats[i].Total++
			if d.PlanStatus.Name == StatusDone {
				stats[i].Done++
			}
		}
	}
	return stats, nil
}

// ByProject tallies recent tasks per project, sorted by task count with
// the unnamed bucket last.
func (s *Stats) ByProject(ctx context.Context, now time.Time) ([]ProjectStat, error) {
	details, err := s.recentDetails(ctx, now)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var stats []ProjectStat
	for _, d := range details {
		name := d.Project.Name
		if name == "" {
			name = "Unknown"
		}
		i, ok := index[name]
		if !ok {
			i = len(stats)
			index[name] = i
			stats = append(stats, ProjectStat{Name: name})
		}
		stats[i].Total++
		switch d.PlanStatus.Name {
		case StatusDone:
			stats[i].Done++
		case StatusBlocked:
			stats[i].Blocked++
		}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if (stats[i].Name == "Unknown") != (stats[j].Name == "Unknown") {
			return stats[j].Name == "Unknown"
		}
		return stats[i].Total > stats[j].Total
	})
	return stats, nil
}

// progressBar renders a five-segment done bar for a member row.
func progressBar(done, total int) string {
	ratio := 0.0
	if total > 0 {
		ratio = float64(done) / float64(total)
	}
	filled := int(ratio * 5)
	return strings.Repeat("🟩", filled) + strings.Repeat("🟨", 5-filled)
}

// weights skew the ten-segment project bar so finished work reads
// slightly narrower and remaining work slightly wider.
const (
	weightDone      = 0.8
	weightBlocked   = 1.0
	weightRemaining = 1.2
)

// projectBar renders a ten-segment done/blocked/remaining bar.
func projectBar(st ProjectStat) string {
	pctDone, pctBlocked, pctRemaining := 0.0, 0.0, 1.0
	if st.Total > 0 {
		pctDone = float64(st.Done) / float64(st.Total)
		pctBlocked = float64(st.Blocked) / float64(st.Total)
		pctRemaining = 1 - pctDone - pctBlocked
	}
	adjDone := pctDone * weightDone
	adjBlocked := pctBlocked * weightBlocked
	adjRemaining := pctRemaining * weightRemaining
	total := adjDone + adjBlocked + adjRemaining

	const segments = 10
	numDone := int(adjDone/total*segments + 0.5)
	numBlocked := int(adjBlocked/total*segments + 0.5)
	numRemaining := segments - numDone - numBlocked
	if numRemaining < 0 {
		numRemaining = 0
	}
	return strings.Repeat("🟩", numDone) + strings.Repeat("🟥", numBlocked) + strings.Repeat("🟨", numRemaining)
}

var digitKeycaps = []string{"0️⃣", "1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣"}

func keycapNumber(n int) string {
	if n < 10 {
		return digitKeycaps[n]
	}
	return digitKeycaps[n/10] + digitKeycaps[n%10]
}

// shortName compresses long member names to fit the fixed table column.
func shortName(name string) string {
	runes := []rune(name)
	if len(runes) <= 8 {
		return name
	}
	if fields := strings.Fields(name); len(fields) > 1 {
		first := []rune(fields[0])
		if len(first) > 6 {
			first = first[:6]
		}
		return string(first) + " " + string([]rune(fields[1])[:1]) + "."
	}
	return string(runes[:7]) + "."
}

// FormatMemberTable renders the per-member tallies as a monospace table
// meant for a Markdown code block.
func FormatMemberTable(stats []MemberStat) string {
	var b strings.Builder
	header := fmt.Sprintf("%-7s |%-12s|%-2s|%-2s|%-2s", "Name", "Tasks", "✅", "🚧", "🗂️")
	b.WriteString(header)
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("-", len([]rune(header))))
	b.WriteByte('\n')
	for _, st := range stats {
		fmt.Fprintf(&b, "%-8s|%-6s|%-3d|%-3d|%-3d\n",
			shortName(st.Member.Name),
			progressBar(st.Done, st.Total),
			st.Done,
			st.Total-st.Done,
			st.Total,
		)
	}
	return b.String()
}

// FormatProjectReport renders the per-project tallies as a numbered list
// with weighted progress bars, meant for a Markdown code block.
func FormatProjectReport(stats []ProjectStat) string {
	var b strings.Builder
	for i, st := range stats {
		fmt.Fprintf(&b, "%s %s\n", keycapNumber(i+1), st.Name)
		fmt.Fprintf(&b, "├%s\n", projectBar(st))
		fmt.Fprintf(&b, "├✅Done - %d\n", st.Done)
		fmt.Fprintf(&b, "├🛑Blocked - %d\n", st.Blocked)
		fmt.Fprintf(&b, "├🚧To-do - %d\n", st.Total-st.Done-st.Blocked)
		fmt.Fprintf(&b, "└🗂Total - %d\n\n", st.Total)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
