package handlers

import (
	"context"
	"errors"

	"github.com/eleron96/bimbot/core/dialog"
	"github.com/eleron96/bimbot/core/telegram/callbacks"
	"github.com/eleron96/bimbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Gateway feeds Telegram updates into the dialogue engine and renders
// the replies it produces.
type Gateway struct {
	engine *dialog.Engine
}

// NewGateway wires the dialogue gateway over the engine.
func NewGateway(engine *dialog.Engine) *Gateway {
	return &Gateway{engine: engine}
}

// Active reports whether the chat has a dialogue in progress.
func (g *Gateway) Active(chatID int64) bool {
	return g.engine.Active(chatID)
}

// StartDialog begins the named dialogue for the update's chat and sends
// the opening reply.
func (g *Gateway) StartDialog(c tele.Context, name string) error {
	reply, err := g.engine.Start(context.Background(), c.Chat().ID, name)
	if err != nil && !errors.Is(err, dialog.ErrAlreadyActive) {
		return err
	}
	// A rejected reentry still carries the dialogue's reject notice.
	return SendReply(c, reply)
}

// HandleText feeds a text update into the chat's dialogue.
func (g *Gateway) HandleText(c tele.Context) error {
	reply, err := g.engine.Dispatch(context.Background(), c.Chat().ID, dialog.Input{Text: c.Text()})
	switch {
	case err == nil:
		return SendReply(c, reply)
	case errors.Is(err, dialog.ErrInactive):
		return nil
	case errors.Is(err, dialog.ErrNoTransition):
		return helpers.SendText(c, "I didn't get that. Send /exit to leave the dialogue.")
	default:
		return err
	}
}

// HandleCallback feeds a callback update into the chat's dialogue. The
// boolean reports whether the dialogue consumed the press; unmatched
// callbacks fall through to the regular callback registry.
func (g *Gateway) HandleCallback(c tele.Context) (bool, error) {
	in := dialog.Input{
		CallbackKey:  callbacks.CallbackKey(c),
		CallbackData: callbacks.CallbackPayload(c),
	}
	if !in.IsCallback() {
		return false, nil
	}
	reply, err := g.engine.Dispatch(context.Background(), c.Chat().ID, in)
	switch {
	case err == nil:
		return true, SendReply(c, reply)
	case errors.Is(err, dialog.ErrInactive), errors.Is(err, dialog.ErrNoTransition):
		return false, nil
	default:
		return true, err
	}
}
