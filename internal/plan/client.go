package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/eleron96/bimbot/core/logger"
)

const defaultBaseURL = "https://api.plan.toggl.com/api/v5"

// Config holds Toggl Plan API credentials and workspace settings.
type Config struct {
	BaseURL      string `yaml:"base_url" envconfig:"PLAN_BASE_URL"`
	WorkspaceID  int64  `yaml:"workspace_id" envconfig:"PLAN_WORKSPACE_ID"`
	ClientID     string `yaml:"client_id" envconfig:"PLAN_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" envconfig:"PLAN_CLIENT_SECRET"`
	RefreshToken string `yaml:"refresh_token" envconfig:"PLAN_REFRESH_TOKEN"`
	AccessToken  string `yaml:"access_token" envconfig:"PLAN_ACCESS_TOKEN"`
	RedirectURI  string `yaml:"redirect_uri" envconfig:"PLAN_REDIRECT_URI"`
}

// Member is a workspace participant.
type Member struct {
	ID           int64  `json:"id"`
	MembershipID int64  `json:"membership_id"`
	Name         string `json:"name"`
}

// Task is a summary entry from the workspace task list.
type Task struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectRef names the project a task belongs to.
type ProjectRef struct {
	Name string `json:"name"`
}

// TaskStatus names the plan status of a task.
type TaskStatus struct {
	Name string `json:"name"`
}

// TaskDetail carries the assignment and status fields of a single task.
type TaskDetail struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	WorkspaceMembers []int64    `json:"workspace_members"`
	Project          ProjectRef `json:"project"`
	PlanStatus       TaskStatus `json:"plan_status"`
}

// StatusDone marks a finished task in Plan's status taxonomy.
const (
	StatusDone    = "Done"
	StatusBlocked = "Blocked"
)

// Client talks to the Toggl Plan REST API.
type Client struct {
	base      string
	workspace int64
	tokens    *TokenSource
	http      *http.Client
}

// NewClient builds a Plan client for the configured workspace.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if cfg.WorkspaceID == 0 {
		return nil, fmt.Errorf("plan: workspace id is required")
	}
	httpClient := &http.Client{Timeout: 20 * time.Second}
	return &Client{
		base:      base,
		workspace: cfg.WorkspaceID,
		tokens:    NewTokenSource(cfg, httpClient),
		http:      httpClient,
	}, nil
}

// WorkspaceID returns the configured workspace identifier.
func (c *Client) WorkspaceID() int64 { return c.workspace }

// Members lists the members of the workspace.
func (c *Client) Members(ctx context.Context) ([]Member, error) {
	var members []Member
	url := fmt.Sprintf("%s/%d/members", c.base, c.workspace)
	if err := c.get(ctx, url, &members); err != nil {
		return nil, fmt.Errorf("plan: list members: %w", err)
	}
	c.logger().Debug("members listed",
		slog.String("event", "plan.members"),
		slog.Int("count", len(members)),
	)
	return members, nil
}

// Tasks lists all tasks of the workspace.
func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	var tasks []Task
	url := fmt.Sprintf("%s/%d/tasks", c.base, c.workspace)
	if err := c.get(ctx, url, &tasks); err != nil {
		return nil, fmt.Errorf("plan: list tasks: %w", err)
	}
	c.logger().Debug("tasks listed",
		slog.String("event", "plan.tasks"),
		slog.Int("count", len(tasks)),
	)
	return tasks, nil
}

// TaskDetail fetches a single task with its assignees and status.
func (c *Client) TaskDetail(ctx context.Context, taskID int64) (TaskDetail, error) {
	var detail TaskDetail
	url := fmt.Sprintf("%s/%d/tasks/%d", c.base, c.workspace, taskID)
	if err := c.get(ctx, url, &detail); err != nil {
		return TaskDetail{}, fmt.Errorf("plan: task %d: %w", taskID, err)
	}
	return detail, nil
}

func (c *Client) get(ctx context.Context, url string, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	rid := uuid.NewString()
	req.Header.Set("X-Request-Id", rid)

	start := time.Now()
	resp, err := c.http.Do(req)
	took := time.Since(start)
	if err != nil {
		c.logger().Error("request failed",
			slog.String("event", "plan.request"),
			slog.String("rid", rid),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		c.logger().Error("bad status",
			slog.String("event", "plan.request"),
			slog.String("rid", rid),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) logger() *slog.Logger {
	if logger.SVCPlan != nil {
		return logger.SVCPlan
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
