package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/eleron96/bimbot/core/logger"
	"github.com/eleron96/bimbot/internal/plan"
)

// TaskCache persists fetched project-tracker task details so repeated
// reports skip the remote API.
type TaskCache struct {
	db *sqlx.DB
}

// NewTaskCache wires the cache over an open database handle.
func NewTaskCache(db *sqlx.DB) *TaskCache {
	return &TaskCache{db: db}
}

type taskRow struct {
	TaskID      int64     `db:"task_id"`
	Name        string    `db:"name"`
	ProjectName string    `db:"project_name"`
	Status      string    `db:"status"`
	Members     []byte    `db:"members"`
	FetchedAt   time.Time `db:"fetched_at"`
}

// Get looks a task detail up by id. The second return is false when the
// task has not been cached yet.
func (c *TaskCache) Get(ctx context.Context, taskID int64) (plan.TaskDetail, bool, error) {
	var row taskRow
	err := c.db.GetContext(ctx, &row,
		`SELECT task_id, name, project_name, status, members, fetched_at
		   FROM plan_task_cache WHERE task_id = $1`, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return plan.TaskDetail{}, false, nil
	}
	if err != nil {
		return plan.TaskDetail{}, false, fmt.Errorf("task cache: get %d: %w", taskID, err)
	}

	detail := plan.TaskDetail{
		ID:         row.TaskID,
		Name:       row.Name,
		Project:    plan.ProjectRef{Name: row.ProjectName},
		PlanStatus: plan.TaskStatus{Name: row.Status},
	}
	if len(row.Members) > 0 {
		if err := json.Unmarshal(row.Members, &detail.WorkspaceMembers); err != nil {
			return plan.TaskDetail{}, false, fmt.Errorf("task cache: decode members for %d: %w", taskID, err)
		}
	}
	return detail, true, nil
}

// Put stores or refreshes a task detail.
func (c *TaskCache) Put(ctx context.Context, detail plan.TaskDetail) error {
	members, err := json.Marshal(detail.WorkspaceMembers)
	if err != nil {
		return fmt.Errorf("task cache: encode members for %d: %w", detail.ID, err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO plan_task_cache (task_id, name, project_name, status, members, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (task_id) DO UPDATE
		    SET name = EXCLUDED.name,
		        project_name = EXCLUDED.project_name,
		        status = EXCLUDED.status,
		        members = EXCLUDED.members,
		        fetched_at = EXCLUDED.fetched_at`,
		detail.ID, detail.Name, detail.Project.Name, detail.PlanStatus.Name, members)
	if err != nil {
		return fmt.Errorf("task cache: put %d: %w", detail.ID, err)
	}
	c.logger().Debug("task cached",
		slog.String("event", "storage.task_cache"),
		slog.Int64("task_id", detail.ID),
	)
	return nil
}

// Prune drops cache entries fetched before the cutoff.
func (c *TaskCache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM plan_task_cache WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("task cache: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if n > 0 {
		c.logger().Info("task cache pruned",
			slog.String("event", "storage.task_cache"),
			slog.Int64("removed", n),
		)
	}
	return n, nil
}

func (c *TaskCache) logger() *slog.Logger {
	if logger.DB != nil {
		return logger.DB
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
