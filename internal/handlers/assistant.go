package handlers

import (
	"context"

	"github.com/eleron96/bimbot/core/dialog"
	"github.com/eleron96/bimbot/internal/ai"
)

// AssistantDialogName identifies the free-form completion dialogue.
const AssistantDialogName = "assistant"

const stateAsking dialog.State = "asking"

const assistantGreeting = "🤖 Assistant is listening. Ask me anything about your models or projects; send /exit when you are done."

// AssistantDialog builds the completion dialogue: every message goes to
// the provider together with the session history.
func AssistantDialog(client ai.Client) *dialog.Dialog {
	return &dialog.Dialog{
		Name:    AssistantDialogName,
		Entry:   stateAsking,
		Reentry: dialog.ReentryReject,
		OnStart: func(ctx context.Context, s dialog.Session, in dialog.Input) (dialog.Result, error) {
			return dialog.Result{
				Reply: dialog.Reply{Text: assistantGreeting},
				Next:  stateAsking,
			}, nil
		},
		States: map[dialog.State][]dialog.Transition{
			stateAsking: {
				{
					Match: dialog.MatchExactFold("bye", "exit", "quit", "stop"),
					Handle: func(ctx context.Context, s dialog.Session, in dialog.Input) (dialog.Result, error) {
						return dialog.Result{
							Reply: dialog.Reply{Text: "👋 Assistant session closed."},
							Next:  dialog.End,
						}, nil
					},
				},
				{
					Match: dialog.MatchAnyText(),
					Handle: func(ctx context.Context, s dialog.Session, in dialog.Input) (dialog.Result, error) {
						messages := make([]ai.Message, 0, len(s.History)+1)
						for _, turn := range s.History {
							messages = append(messages, ai.Message{Role: turn.Role, Content: turn.Content})
						}
						messages = append(messages, ai.Message{Role: ai.RoleUser, Content: in.Text})

						answer, err := client.Complete(ctx, messages)
						if err != nil {
							return dialog.Result{}, &dialog.CollaboratorError{Op: "ai.complete", Err: err}
						}
						return dialog.Result{
							Reply: dialog.Reply{Text: answer, Markdown: true},
							Next:  stateAsking,
						}, nil
					},
				},
			},
		},
		OnError: func(s dialog.Session, err error) dialog.Result {
			return dialog.Result{
				Reply: dialog.Reply{Text: "⚠️ The assistant is unavailable right now, try again in a minute."},
				Next:  s.State,
			}
		},
		ExitCommands: []string{"/exit", "/cancel", "/stop"},
		ExitReply:    dialog.Reply{Text: "👋 Assistant session closed."},
		ExpiredReply: dialog.Reply{Text: "⏳ Assistant session closed after inactivity."},
		RejectReply:  dialog.Reply{Text: "Assistant is already running. Send /exit to leave it first."},
	}
}
