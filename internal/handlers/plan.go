package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/eleron96/bimbot/core/telegram/helpers"
	"github.com/eleron96/bimbot/core/telegram/keyboard"
	"github.com/eleron96/bimbot/internal/plan"

	tele "gopkg.in/telebot.v4"
)

// Plan menu callback keys.
const (
	cbStatByUser     = "stat_by_user"
	cbStatByProjects = "stat_by_projects"
	cbPlanBack       = "plan_back"
)

// planReportTimeout bounds one full report build, detail fan-out included.
const planReportTimeout = 90 * time.Second

// PlanMenu serves the project-tracker menu and its report callbacks.
type PlanMenu struct {
	stats *plan.Stats
}

// NewPlanMenu wires the menu over the report builder.
func NewPlanMenu(stats *plan.Stats) *PlanMenu {
	return &PlanMenu{stats: stats}
}

// Menu replies with the inline tracker menu.
func (p *PlanMenu) Menu(c tele.Context) error {
	markup := keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "📊 Stat by User", Unique: cbStatByUser},
			{Text: "📈 Stat by Projects", Unique: cbStatByProjects},
		},
		[]keyboard.InlineBtn{
			{Text: "◀️ Back", Unique: cbPlanBack},
		},
	)
	return helpers.SendMD(c, "*Project tracker*\nChoose a report:", markup)
}

// StatByUser renders the per-member report for the last 30 days.
func (p *PlanMenu) StatByUser(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), planReportTimeout)
	defer cancel()

	stats, err := p.stats.ByMember(ctx, time.Now())
	if err != nil {
		_ = helpers.SendText(c, "⚠️ Could not build the report, try again later.")
		return err
	}
	table := plan.FormatMemberTable(stats)
	return helpers.SendMD(c, fmt.Sprintf("```\n%s\n```", table))
}

// StatByProjects renders the per-project report for the last 30 days.
func (p *PlanMenu) StatByProjects(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), planReportTimeout)
	defer cancel()

	stats, err := p.stats.ByProject(ctx, time.Now())
	if err != nil {
		_ = helpers.SendText(c, "⚠️ Could not build the report, try again later.")
		return err
	}
	report := plan.FormatProjectReport(stats)
	return helpers.SendMD(c, fmt.Sprintf("```\n%s\n```", report))
}

// Back removes the menu message.
func (p *PlanMenu) Back(c tele.Context) error {
	return c.Delete()
}
