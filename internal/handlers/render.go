package handlers

import (
	"strings"

	"github.com/eleron96/bimbot/core/dialog"
	"github.com/eleron96/bimbot/core/telegram/helpers"
	"github.com/eleron96/bimbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// SendReply renders a dialogue reply into the chat. An empty text means
// the handler chose to stay silent.
func SendReply(c tele.Context, r dialog.Reply) error {
	if r.Text == "" {
		return nil
	}
	markup := replyMarkup(r)
	if r.Markdown {
		if markup != nil {
			return helpers.SendMD(c, r.Text, markup)
		}
		return helpers.SendMD(c, r.Text)
	}
	if markup != nil {
		return helpers.SendText(c, r.Text, &tele.SendOptions{ReplyMarkup: markup})
	}
	return helpers.SendText(c, r.Text)
}

func replyMarkup(r dialog.Reply) *tele.ReplyMarkup {
	if len(r.Buttons) == 0 {
		return nil
	}
	rows := make([][]keyboard.InlineBtn, 0, len(r.Buttons))
	for _, row := range r.Buttons {
		btns := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				btns = append(btns, keyboard.InlineBtn{Text: b.Label, URL: b.URL})
				continue
			}
			unique, payload := splitButtonData(b.Data)
			btns = append(btns, keyboard.InlineBtn{Text: b.Label, Unique: unique, Data: payload})
		}
		rows = append(rows, btns)
	}
	return keyboard.InlineButtonsRows(rows...)
}

// splitButtonData separates "key|payload" button data; the key becomes
// the callback unique the dialogue matches on.
func splitButtonData(data string) (string, string) {
	if i := strings.IndexByte(data, '|'); i >= 0 {
		return data[:i], data[i+1:]
	}
	return data, ""
}

// ButtonData packs a callback key and payload into the dialogue button
// data format understood by the renderer.
func ButtonData(key, payload string) string {
	if payload == "" {
		return key
	}
	return key + "|" + payload
}
