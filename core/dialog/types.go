package dialog

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// State identifies a node of a dialogue's transition table.
type State string

// End is the sentinel state: a handler returning Next == End terminates the
// dialogue and removes the session.
const End State = ""

// Turn is one exchange recorded in the session history.
type Turn struct {
	Role    string
	Content string
	At      time.Time
}

// History roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is the per-chat dialogue state. The store hands out copies;
// mutations go through Store.Update.
type Session struct {
	ChatID       int64
	Dialog       string
	State        State
	History      []Turn
	Data         map[string]string
	StartedAt    time.Time
	LastActivity time.Time
}

// Clone returns a deep copy so callers can never alias store internals.
func (s Session) Clone() Session {
	out := s
	if s.History != nil {
		out.History = make([]Turn, len(s.History))
		copy(out.History, s.History)
	}
	if s.Data != nil {
		out.Data = make(map[string]string, len(s.Data))
		for k, v := range s.Data {
			out.Data[k] = v
		}
	}
	return out
}

// Input is a normalized incoming update: either a text message or an inline
// callback, never both.
type Input struct {
	Text         string
	CallbackKey  string
	CallbackData string
}

// IsCallback reports whether the input came from an inline button press.
func (in Input) IsCallback() bool { return in.CallbackKey != "" }

// Button describes one inline keyboard button of a Reply.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Reply is the outbound message a handler produced. Buttons are rows of
// inline keyboard entries; an empty Text suppresses sending.
type Reply struct {
	Text     string
	Markdown bool
	Buttons  [][]Button
}

// Result is what a state handler returns: the reply to send, the next state,
// and optional session data mutations applied atomically with the transition.
type Result struct {
	Reply     Reply
	Next      State
	SetData   map[string]string
	ClearData bool
}

// HandlerFunc processes one input while the dialogue sits in some state.
// It receives a snapshot of the session and must not retain it.
type HandlerFunc func(ctx context.Context, s Session, in Input) (Result, error)

// Matcher decides whether a transition applies to the given input.
type Matcher func(in Input) bool

// Transition binds a matcher to a handler within a state. The first matching
// transition in declaration order wins.
type Transition struct {
	Match  Matcher
	Handle HandlerFunc
}

// ReentryPolicy controls what Start does when the chat already has an active
// session of the same dialogue.
type ReentryPolicy int

const (
	// ReentryReset discards the old session and starts fresh.
	ReentryReset ReentryPolicy = iota
	// ReentryReject keeps the old session and answers with RejectReply.
	ReentryReject
)

// Dialog is a complete dialogue definition: entry state, transition tables,
// fallbacks, and termination behavior.
type Dialog struct {
	Name    string
	Entry   State
	Reentry ReentryPolicy

	// Timeout is the idle window after which the reaper expires the session.
	// Zero means the engine default applies.
	Timeout time.Duration

	States    map[State][]Transition
	Fallbacks []Transition

	// OnStart, when set, runs right after the session is created and may
	// greet the user or immediately advance the state.
	OnStart HandlerFunc

	// OnError converts a collaborator failure into the reply shown to the
	// user. When nil the engine keeps the state and sends a generic notice.
	OnError func(s Session, err error) Result

	// ExitCommands terminate the dialogue from any state before the
	// transition table is consulted.
	ExitCommands []string
	ExitReply    Reply

	// ExpiredReply is sent by the reaper when the session idles out.
	ExpiredReply Reply

	// RejectReply is sent when Reentry == ReentryReject and the dialogue is
	// already active.
	RejectReply Reply
}

// MatchCommand matches a text input equal to the command, with or without a
// bot-name suffix ("/exit", "/exit@SomeBot").
func MatchCommand(cmd string) Matcher {
	return func(in Input) bool {
		if in.IsCallback() {
			return false
		}
		text := strings.TrimSpace(in.Text)
		if text == cmd {
			return true
		}
		return strings.HasPrefix(text, cmd+"@")
	}
}

// MatchExactFold matches any of the given phrases case-insensitively.
func MatchExactFold(phrases ...string) Matcher {
	return func(in Input) bool {
		if in.IsCallback() {
			return false
		}
		text := strings.TrimSpace(in.Text)
		for _, p := range phrases {
			if strings.EqualFold(text, p) {
				return true
			}
		}
		return false
	}
}

// MatchRegexp matches text input against a compiled pattern.
func MatchRegexp(re *regexp.Regexp) Matcher {
	return func(in Input) bool {
		return !in.IsCallback() && re.MatchString(in.Text)
	}
}

// MatchAnyText matches any non-empty text input.
func MatchAnyText() Matcher {
	return func(in Input) bool {
		return !in.IsCallback() && strings.TrimSpace(in.Text) != ""
	}
}

// MatchCallback matches a callback input by its key; an empty key matches
// every callback.
func MatchCallback(key string) Matcher {
	return func(in Input) bool {
		if !in.IsCallback() {
			return false
		}
		return key == "" || in.CallbackKey == key
	}
}
