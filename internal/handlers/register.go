package handlers

import (
	"fmt"

	"github.com/eleron96/bimbot/core/dialog"
	tg "github.com/eleron96/bimbot/core/telegram"
	"github.com/eleron96/bimbot/core/telegram/commands"
	"github.com/eleron96/bimbot/core/telegram/helpers"
	"github.com/eleron96/bimbot/core/telegram/middleware"
	"github.com/eleron96/bimbot/internal/ai"
	"github.com/eleron96/bimbot/internal/cloud"
	"github.com/eleron96/bimbot/internal/plan"
	"github.com/eleron96/bimbot/internal/speckle"
	"github.com/eleron96/bimbot/internal/subs"
	"github.com/eleron96/bimbot/internal/sysmon"

	tele "gopkg.in/telebot.v4"
)

// Deps carries the collaborators the handlers are built around. Nil
// collaborators keep their commands unregistered so a partially
// configured bot still runs.
type Deps struct {
	Engine  *dialog.Engine
	AI      ai.Client
	Speckle *speckle.Client
	Stats   *plan.Stats
	Subs    *subs.Client
	Cloud   *cloud.Client
	Sampler *sysmon.Sampler

	// SubsAllowlist restricts /subs to the listed user IDs.
	SubsAllowlist []int64
}

// Register wires commands, callbacks, and dialogues into the registry
// and returns the gateway that routes updates into active dialogues.
func Register(reg *tg.Registry, deps Deps) (*Gateway, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("handlers: dialogue engine is required")
	}
	gw := NewGateway(deps.Engine)

	reg.RegisterCommand("/start", commands.Command{
		Handler:     Start,
		Description: "Greeting and quick tour",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     Help,
		Description: "List available commands",
	})
	reg.RegisterCommand("/version", commands.Command{
		Handler:     Version,
		Description: "Show build information",
		Hidden:      true,
	})

	if deps.AI != nil {
		d := AssistantDialog(deps.AI)
		if err := deps.Engine.Register(d); err != nil {
			return nil, err
		}
		reg.RegisterCommand("/ask", commands.Command{
			Handler: func(c tele.Context) error {
				return gw.StartDialog(c, AssistantDialogName)
			},
			Description: "Chat with the assistant",
			Aliases:     []string{"gpt"},
		})
	}

	if deps.Speckle != nil {
		d := ProjectsDialog(deps.Speckle)
		if err := deps.Engine.Register(d); err != nil {
			return nil, err
		}
		reg.RegisterCommand("/projects", commands.Command{
			Handler: func(c tele.Context) error {
				return gw.StartDialog(c, ProjectsDialogName)
			},
			Description: "Browse 3D models",
		})
	}

	if deps.Stats != nil {
		menu := NewPlanMenu(deps.Stats)
		reg.RegisterCommand("/plan", commands.Command{
			Handler:     menu.Menu,
			Description: "Project tracker reports",
			Aliases:     []string{"toggl_menu"},
		})
		if err := reg.RegisterCallback(cbStatByUser, menu.StatByUser); err != nil {
			return nil, err
		}
		if err := reg.RegisterCallback(cbStatByProjects, menu.StatByProjects); err != nil {
			return nil, err
		}
		if err := reg.RegisterCallback(cbPlanBack, menu.Back); err != nil {
			return nil, err
		}
	}

	if deps.Sampler != nil {
		reg.RegisterCommand("/server", commands.Command{
			Handler:     ServerStatus(deps.Sampler),
			Description: "Host status",
		})
	}

	if deps.Cloud != nil {
		reg.RegisterCommand("/restart", commands.Command{
			Handler:     ServerRestart(deps.Cloud),
			Description: "Reboot the server",
			AdminOnly:   true,
		})
	}

	if deps.Subs != nil {
		allow := middleware.AllowlistMiddleware(middleware.AllowlistOptions{
			UserIDs: allowlistSet(deps.SubsAllowlist),
			OnReject: func(c tele.Context) error {
				return helpers.SendText(c, "Access denied.")
			},
		})
		reg.RegisterCommand("/subs", commands.Command{
			Handler:     allow(SubsReport(deps.Subs)),
			Description: "Follower metrics",
			Hidden:      true,
		})
	}

	reg.SetTextFallback(func(c tele.Context) error {
		// Echo outside of dialogues, matching the bot's long-standing habit.
		return helpers.SendText(c, c.Text())
	})

	return gw, nil
}

func allowlistSet(ids []int64) map[int64]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
