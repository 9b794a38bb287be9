package handlers

import (
	"context"
	"time"

	"github.com/eleron96/bimbot/core/telegram/helpers"
	"github.com/eleron96/bimbot/internal/cloud"
	"github.com/eleron96/bimbot/internal/sysmon"

	tele "gopkg.in/telebot.v4"
)

// netSampleInterval is the window over which throughput is averaged for
// the /server reply.
const netSampleInterval = 5 * time.Second

// ServerStatus samples the host and replies with the status summary.
func ServerStatus(sampler *sysmon.Sampler) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		st, err := sampler.Sample(ctx, netSampleInterval)
		if err != nil {
			_ = helpers.SendText(c, "⚠️ Could not read host status.")
			return err
		}
		return helpers.SendText(c, sysmon.FormatStatus(st))
	}
}

// ServerRestart asks the hosting provider to reboot the server. The
// command is registered admin-only.
func ServerRestart(client *cloud.Client) tele.HandlerFunc {
	return func(c tele.Context) error {
		name := ""
		if c.Sender() != nil {
			name = c.Sender().FirstName
		}
		if name == "" {
			name = "admin"
		}
		_ = helpers.SendText(c, "🔄 Rebooting the server, "+name+"...")

		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()
		if err := client.Reboot(ctx); err != nil {
			_ = helpers.SendText(c, "⚠️ Reboot request failed.")
			return err
		}
		return nil
	}
}
