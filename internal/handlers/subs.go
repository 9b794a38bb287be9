package handlers

import (
	"context"
	"time"

	"github.com/eleron96/bimbot/core/telegram/helpers"
	"github.com/eleron96/bimbot/internal/subs"

	tele "gopkg.in/telebot.v4"
)

// SubsReport replies with the follower metrics across the configured
// platforms. Access is restricted by the allowlist at registration time.
func SubsReport(client *subs.Client) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		reports, err := client.Report(ctx)
		if err != nil {
			_ = helpers.SendText(c, "⚠️ Could not fetch follower metrics.")
			return err
		}
		if len(reports) == 0 {
			return helpers.SendText(c, "No platforms are configured.")
		}
		return helpers.SendMD(c, subs.FormatReport(reports))
	}
}
