package handlers

import (
	"strings"

	"github.com/eleron96/bimbot/core/buildinfo"
	"github.com/eleron96/bimbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Start greets the user and lists what the bot can do.
func Start(c tele.Context) error {
	msg := strings.Join([]string{
		"👋 Hi!",
		"",
		"I am your BIM assistant. Here is what I can do:",
		"",
		"🏗 /projects — browse 3D models and their latest commits.",
		"🤖 /ask — chat with the assistant.",
		"🕒 /plan — open the project tracker menu.",
		"⚙️ /server — host status.",
		"",
		"Send /help any time to see this list again.",
	}, "\n")
	return helpers.SendText(c, msg)
}

// Help lists available commands.
func Help(c tele.Context) error {
	msg := strings.Join([]string{
		"Available commands:",
		"",
		"/projects — browse 3D models",
		"/ask — talk to the assistant",
		"/plan — project tracker reports",
		"/server — host status",
		"/subs — follower metrics",
		"/exit — leave the current dialogue",
	}, "\n")
	return helpers.SendText(c, msg)
}

// Version reports the running build.
func Version(c tele.Context) error {
	msg := "bimbot " + buildinfo.Version + " (" + buildinfo.Commit + ")"
	if buildinfo.Date != "" {
		msg += " built " + buildinfo.Date
	}
	return helpers.SendText(c, msg)
}
