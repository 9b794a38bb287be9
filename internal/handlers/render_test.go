package handlers

import (
	"testing"

	"github.com/eleron96/bimbot/core/dialog"
)

func TestButtonDataRoundTrip(t *testing.T) {
	key, payload := splitButtonData(ButtonData("dlg_project", "p1"))
	if key != "dlg_project" || payload != "p1" {
		t.Fatalf("got %q / %q", key, payload)
	}
	key, payload = splitButtonData(ButtonData("plan_back", ""))
	if key != "plan_back" || payload != "" {
		t.Fatalf("got %q / %q", key, payload)
	}
	// Payloads may themselves contain the separator.
	key, payload = splitButtonData(ButtonData("k", "a|b"))
	if key != "k" || payload != "a|b" {
		t.Fatalf("got %q / %q", key, payload)
	}
}

func TestReplyMarkup(t *testing.T) {
	markup := replyMarkup(dialog.Reply{
		Buttons: [][]dialog.Button{
			{{Label: "Tower A", Data: ButtonData("dlg_project", "p1")}},
			{{Label: "Open", URL: "https://speckle.example.com/streams/p1/commits/c1"}},
		},
	})
	if markup == nil {
		t.Fatal("expected markup")
	}
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d", len(markup.InlineKeyboard))
	}
	if markup.InlineKeyboard[0][0].Text != "Tower A" {
		t.Fatalf("first button = %+v", markup.InlineKeyboard[0][0])
	}
	if markup.InlineKeyboard[1][0].URL == "" {
		t.Fatalf("second button should be a link: %+v", markup.InlineKeyboard[1][0])
	}
	if replyMarkup(dialog.Reply{Text: "plain"}) != nil {
		t.Fatal("no buttons should mean no markup")
	}
}
