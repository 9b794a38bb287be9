package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/eleron96/bimbot/core/dialog"
	"github.com/eleron96/bimbot/internal/speckle"
)

// ProjectsDialogName identifies the model-browsing dialogue.
const ProjectsDialogName = "projects"

const (
	stateSelectingProject dialog.State = "selecting_project"
	stateShowingModels    dialog.State = "showing_models"
)

// cbProject is the callback key carried by project picker buttons.
const cbProject = "dlg_project"

// projectNameKey prefixes per-project name entries in the session data.
const projectNameKey = "project:"

// ProjectsDialog builds the model-browsing dialogue: pick a project from
// an inline keyboard, get its models with links to the latest commits,
// then keep switching projects until exit.
func ProjectsDialog(client *speckle.Client) *dialog.Dialog {
	showModels := func(ctx context.Context, s dialog.Session, in dialog.Input) (dialog.Result, error) {
		projectID := in.CallbackData
		if projectID == "" {
			return dialog.Result{
				Reply: dialog.Reply{Text: "Pick a project with the buttons above."},
				Next:  s.State,
			}, nil
		}

		models, err := client.Models(ctx, projectID)
		if err != nil {
			return dialog.Result{}, &dialog.CollaboratorError{Op: "speckle.models", Err: err}
		}

		projectName := s.Data[projectNameKey+projectID]
		if projectName == "" {
			projectName = projectID
		}
		if len(models) == 0 {
			return dialog.Result{
				Reply: dialog.Reply{Text: fmt.Sprintf("📂 *%s* has no models yet.", projectName), Markdown: true},
				Next:  stateShowingModels,
			}, nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "📂 *%s* — %d model(s):\n", projectName, len(models))
		var buttons [][]dialog.Button
		for _, m := range models {
			if !m.HasCommits() {
				fmt.Fprintf(&b, "\n• `%s` — no commits", m.Name)
				continue
			}
			fmt.Fprintf(&b, "\n• `%s` — %s", m.Name, m.LatestCommitMessage)
			buttons = append(buttons, []dialog.Button{{
				Label: "🔗 " + m.Name,
				URL:   client.CommitURL(projectID, m.LatestCommitID),
			}})
		}
		b.WriteString("\n\nPick another project above or send /exit.")

		return dialog.Result{
			Reply: dialog.Reply{Text: b.String(), Markdown: true, Buttons: buttons},
			Next:  stateShowingModels,
		}, nil
	}

	return &dialog.Dialog{
		Name:    ProjectsDialogName,
		Entry:   stateSelectingProject,
		Reentry: dialog.ReentryReset,
		OnStart: func(ctx context.Context, s dialog.Session, in dialog.Input) (dialog.Result, error) {
			projects, err := client.Projects(ctx)
			if err != nil {
				return dialog.Result{}, &dialog.CollaboratorError{Op: "speckle.projects", Err: err}
			}
			if len(projects) == 0 {
				return dialog.Result{
					Reply: dialog.Reply{Text: "No projects are visible to the bot account."},
					Next:  dialog.End,
				}, nil
			}

			names := make(map[string]string, len(projects))
			buttons := make([][]dialog.Button, 0, len(projects))
			for _, p := range projects {
				names[projectNameKey+p.ID] = p.Name
				buttons = append(buttons, []dialog.Button{{
					Label: p.Name,
					Data:  ButtonData(cbProject, p.ID),
				}})
			}
			return dialog.Result{
				Reply: dialog.Reply{
					Text:    "🏗 Pick a project:",
					Buttons: buttons,
				},
				Next:    stateSelectingProject,
				SetData: names,
			}, nil
		},
		States: map[dialog.State][]dialog.Transition{
			stateSelectingProject: {
				{Match: dialog.MatchCallback(cbProject), Handle: showModels},
			},
			stateShowingModels: {
				{Match: dialog.MatchCallback(cbProject), Handle: showModels},
				{
					Match: dialog.MatchAnyText(),
					Handle: func(ctx context.Context, s dialog.Session, in dialog.Input) (dialog.Result, error) {
						return dialog.Result{
							Reply: dialog.Reply{Text: "Use the project buttons above, or send /exit to leave."},
							Next:  stateShowingModels,
						}, nil
					},
				},
			},
		},
		OnError: func(s dialog.Session, err error) dialog.Result {
			return dialog.Result{
				Reply: dialog.Reply{Text: "⚠️ Could not reach the model server, try again later."},
				Next:  s.State,
			}
		},
		ExitCommands: []string{"/exit", "/stop"},
		ExitReply:    dialog.Reply{Text: "Closed the project browser."},
		ExpiredReply: dialog.Reply{Text: "⏳ Project browser closed after inactivity."},
	}
}
