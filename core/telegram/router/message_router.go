package router

import (
	"time"

	tg "github.com/eleron96/bimbot/core/telegram"
	"github.com/eleron96/bimbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Gateway routes updates into active dialogues.
type Gateway interface {
	// Active reports whether the chat has a dialogue in progress.
	Active(chatID int64) bool
	// HandleText feeds a text update into the chat's dialogue.
	HandleText(c tele.Context) error
	// HandleCallback feeds a callback update into the chat's dialogue,
	// reporting whether the dialogue consumed it.
	HandleCallback(c tele.Context) (bool, error)
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for text and document routing. Active dialogues
// take precedence over command lookup and fallbacks.
func TextRoutes(gw Gateway, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if gw != nil && c.Chat() != nil && gw.Active(c.Chat().ID) {
			return handleWithSummary(c, "dialog", start, "", "", func() error {
				return gw.HandleText(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if gw != nil && c.Chat() != nil && gw.Active(c.Chat().ID) {
			return handleWithSummary(c, "dialog_document", start, "", "", func() error {
				return gw.HandleText(c)
			})
		}
		if opts.UnknownDocument != nil {
			return handleWithSummary(c, "unexpected_document", start, "", "", func() error {
				return opts.UnknownDocument(c)
			})
		}
		logHandlerSummary(c, "unexpected_document", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}
