package dialog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/eleron96/bimbot/core/logger"
)

// NotifyFunc delivers the termination notice for an expired session.
type NotifyFunc func(chatID int64, reply Reply)

// Reaper periodically removes sessions whose idle time exceeded their
// dialogue's timeout. Removal happens before notification, and the store's
// conditional Expire guarantees at most one notice per expired session even
// when a scan races a dispatch.
type Reaper struct {
	engine   *Engine
	interval time.Duration
	notify   NotifyFunc
	cron     *cron.Cron
	now      func() time.Time
	log      *slog.Logger
}

// NewReaper builds a reaper scanning at the given interval.
func NewReaper(engine *Engine, interval time.Duration, notify NotifyFunc) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{
		engine:   engine,
		interval: interval,
		notify:   notify,
		now:      time.Now,
		log:      dialogLogger(),
	}
}

// Run schedules the periodic scan and blocks until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) error {
	c := cron.New()
	spec := fmt.Sprintf("@every %s", r.interval)
	if _, err := c.AddFunc(spec, func() { r.ScanOnce(r.now()) }); err != nil {
		return fmt.Errorf("dialog: reaper schedule: %w", err)
	}
	r.cron = c
	c.Start()
	r.log.Info("reaper started",
		slog.String("event", "dialog.reaper"),
		slog.String("interval", r.interval.String()),
	)

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	r.log.Info("reaper stopped",
		slog.String("event", "dialog.reaper"),
	)
	return ctx.Err()
}

// ScanOnce expires every session idle past its dialogue timeout as of now
// and returns the number of sessions terminated.
func (r *Reaper) ScanOnce(now time.Time) int {
	store := r.engine.Store()
	sessions := store.All()
	expired := 0
	for _, s := range sessions {
		cutoff := now.Add(-r.engine.TimeoutFor(s.Dialog))
		snapshot, ok := store.Expire(s.ChatID, cutoff)
		if !ok {
			continue
		}
		expired++
		r.log.Info("dialog expired",
			slog.String("event", "dialog.expire"),
			slog.String("dialog", snapshot.Dialog),
			slog.String("state", string(snapshot.State)),
			slog.Int64("chat_id", snapshot.ChatID),
			slog.Duration("idle", logger.RoundMS(now.Sub(snapshot.LastActivity))),
		)
		if r.notify != nil {
			r.notify(snapshot.ChatID, r.engine.ExpiredReplyFor(snapshot.Dialog))
		}
	}
	if expired > 0 {
		r.log.Info("reaper scan",
			slog.String("event", "dialog.reap"),
			slog.Int("sessions", len(sessions)),
			slog.Int("expired", expired),
		)
	}
	return expired
}
