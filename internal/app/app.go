package app

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/eleron96/bimbot/core/bootstrap"
	"github.com/eleron96/bimbot/core/dialog"
	"github.com/eleron96/bimbot/core/logger"
	coretelegram "github.com/eleron96/bimbot/core/telegram"
	"github.com/eleron96/bimbot/core/telegram/router"
	"github.com/eleron96/bimbot/internal/ai"
	"github.com/eleron96/bimbot/internal/cloud"
	"github.com/eleron96/bimbot/internal/handlers"
	"github.com/eleron96/bimbot/internal/plan"
	"github.com/eleron96/bimbot/internal/speckle"
	"github.com/eleron96/bimbot/internal/storage"
	"github.com/eleron96/bimbot/internal/subs"
	"github.com/eleron96/bimbot/internal/sysmon"
)

// App is the assembled bot: engine, reaper, registry, and collaborators.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	engine   *dialog.Engine
	reaper   *dialog.Reaper
	gateway  *handlers.Gateway
	registry *coretelegram.Registry

	reaperCancel context.CancelFunc
	reaperDone   chan struct{}
}

// Bootstrap initializes logging and storage, builds the configured
// collaborators, and wires the dialogue engine and handler registry.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	infra, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	engine := dialog.NewEngine(dialog.NewStore(), dialog.EngineConfig{
		DefaultTimeout: time.Duration(cfg.Core.Dialog.IdleTimeoutSeconds) * time.Second,
		HistoryLimit:   cfg.Core.Dialog.HistoryLimit,
	})

	deps := handlers.Deps{
		Engine:        engine,
		Sampler:       sysmon.NewSampler(),
		SubsAllowlist: cfg.Subs.Allowlist,
	}

	if cfg.AI.APIKey != "" {
		client, err := ai.New(cfg.AI)
		if err != nil {
			return nil, fmt.Errorf("app: ai client: %w", err)
		}
		deps.AI = client
	}
	if cfg.Speckle.Host != "" {
		client, err := speckle.NewClient(cfg.Speckle)
		if err != nil {
			return nil, fmt.Errorf("app: speckle client: %w", err)
		}
		deps.Speckle = client
	}
	if cfg.Plan.WorkspaceID != 0 {
		client, err := plan.NewClient(cfg.Plan)
		if err != nil {
			return nil, fmt.Errorf("app: plan client: %w", err)
		}
		var cache plan.TaskCache
		if infra.DB != nil {
			cache = storage.NewTaskCache(infra.DB)
		}
		deps.Stats = plan.NewStats(client, cache)
	}
	if cfg.Subs.BaseURL != "" {
		client, err := subs.NewClient(cfg.Subs.Config)
		if err != nil {
			return nil, fmt.Errorf("app: subs client: %w", err)
		}
		deps.Subs = client
	}
	if cfg.Cloud.Token != "" && cfg.Cloud.ServerID != 0 {
		client, err := cloud.NewClient(cfg.Cloud)
		if err != nil {
			return nil, fmt.Errorf("app: cloud client: %w", err)
		}
		deps.Cloud = client
	}

	registry := coretelegram.NewRegistry()
	gateway, err := handlers.Register(registry, deps)
	if err != nil {
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}

	return &App{
		cfg:      cfg,
		db:       infra.DB,
		engine:   engine,
		gateway:  gateway,
		registry: registry,
	}, nil
}

// TelegramRunOptions assembles the runtime options for the bot loop.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := &a.cfg.Core

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(a.gateway, a.registry, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(a.gateway, a.registry, router.CallbackOptions{}))

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

// onStart launches the idle reaper with a notifier that delivers
// termination notices through the async sender.
func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	notify := func(chatID int64, reply dialog.Reply) {
		if reply.Text == "" {
			return
		}
		run := func() error {
			var opts *tele.SendOptions
			if reply.Markdown {
				opts = &tele.SendOptions{ParseMode: tele.ModeMarkdown}
			}
			var err error
			if opts != nil {
				_, err = rt.Bot.Send(tele.ChatID(chatID), reply.Text, opts)
			} else {
				_, err = rt.Bot.Send(tele.ChatID(chatID), reply.Text)
			}
			return err
		}
		if rt.Dispatcher != nil {
			if err := rt.Dispatcher.Enqueue(context.Background(), "dialog.expire", "sendMessage", run); err == nil {
				return
			}
		}
		if err := run(); err != nil {
			logger.DLG.Warn("expiry notice failed",
				slog.String("event", "dialog.expire"),
				slog.Int64("chat_id", chatID),
				slog.String("err", err.Error()),
			)
		}
	}

	interval := time.Duration(a.cfg.Core.Dialog.ScanIntervalSeconds) * time.Second
	a.reaper = dialog.NewReaper(a.engine, interval, notify)

	reaperCtx, cancel := context.WithCancel(context.Background())
	a.reaperCancel = cancel
	a.reaperDone = make(chan struct{})
	go func() {
		defer close(a.reaperDone)
		_ = a.reaper.Run(reaperCtx)
	}()
	return nil
}

// onStop winds the reaper down and releases storage.
func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.reaperCancel != nil {
		a.reaperCancel()
		select {
		case <-a.reaperDone:
		case <-time.After(5 * time.Second):
		}
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
