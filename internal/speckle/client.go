package speckle

import (
	"bytes"
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

// Config holds Speckle server connection settings.
type Config struct {
	Host  string `yaml:"host" envconfig:"SPECKLE_HOST"`
	Token string `yaml:"token" envconfig:"SPECKLE_TOKEN"`
}

// Project is a Speckle stream visible to the account.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Model is a branch of a stream annotated with its latest commit.
type Model struct {
	Name                string
	LatestCommitID      string
	LatestCommitMessage string
}

// HasCommits reports whether the model carries at least one commit.
func (m Model) HasCommits() bool { return m.LatestCommitID != "" }

// Client talks to the Speckle GraphQL API.
type Client struct {
	host   string
	token  string
	http   *http.Client
	log    *slog.Logger
	logSet bool
}

// NewClient builds a Speckle client for the given server.
func NewClient(cfg Config) (*Client, error) {
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		return nil, fmt.Errorf("speckle: host is required")
	}
	return &Client{
		host:  host,
		token: cfg.Token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Host returns the normalized server base URL.
func (c *Client) Host() string { return c.host }

// CommitURL builds the public link to a commit of a stream.
func (c *Client) CommitURL(projectID, commitID string) string {
	return fmt.Sprintf("%s/streams/%s/commits/%s", c.host, projectID, commitID)
}

// Projects lists the streams available to the account.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	const query = `query { streams { items { id name } } }`
	var out struct {
		Streams struct {
			Items []Project `json:"items"`
		} `json:"streams"`
	}
	if err := c.do(ctx, query, nil, &out); err != nil {
		return nil, fmt.Errorf("speckle: list projects: %w", err)
	}
	c.logger().Debug("projects listed",
		slog.String("event", "speckle.projects"),
		slog.Int("count", len(out.Streams.Items)),
	)
	return out.Streams.Items, nil
}

// Models lists the branches of a stream together with each branch's latest commit.
func (c *Client) Models(ctx context.Context, projectID string) ([]Model, error) {
	const query = `query($id: String!) {
  stream(id: $id) {
    branches {
      items {
        name
        commits(limit: 1) {
          items { id message }
        }
      }
    }
  }
}`
	var out struct {
		Stream struct {
			Branches struct {
				Items []struct {
					Name    string `json:"name"`
					Commits struct {
						Items []struct {
							ID      string `json:"id"`
							Message string `json:"message"`
						} `json:"items"`
					} `json:"commits"`
				} `json:"items"`
			} `json:"branches"`
		} `json:"stream"`
	}
	vars := map[string]any{"id": projectID}
	if err := c.do(ctx, query, vars, &out); err != nil {
		return nil, fmt.Errorf("speckle: list models: %w", err)
	}

	models := make([]Model, 0, len(out.Stream.Branches.Items))
	for _, branch := range out.Stream.Branches.Items {
		m := Model{Name: branch.Name}
		if len(branch.Commits.Items) > 0 {
			m.LatestCommitID = branch.Commits.Items[0].ID
			m.LatestCommitMessage = branch.Commits.Items[0].Message
		}
		models = append(models, m)
	}
	c.logger().Debug("models listed",
		slog.String("event", "speckle.models"),
		slog.String("project_id", projectID),
		slog.Int("count", len(models)),
	)
	return models, nil
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	payload, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/graphql", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rid := uuid.NewString()
	req.Header.Set("X-Request-Id", rid)

	start := time.Now()
	resp, err := c.http.Do(req)
	took := time.Since(start)
	if err != nil {
		c.logger().Error("request failed",
			slog.String("event", "speckle.request"),
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
			slog.String("event", "speckle.request"),
			slog.String("rid", rid),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) logger() *slog.Logger {
	if logger.SVCSpeckle != nil {
		return logger.SVCSpeckle
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
