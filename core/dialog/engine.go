package dialog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/eleron96/bimbot/core/logger"
)

// DefaultTimeout is the idle window applied to dialogues that do not set one.
const DefaultTimeout = 5 * time.Minute

// DefaultHistoryLimit caps the number of turns kept per session.
const DefaultHistoryLimit = 40

// EngineConfig tunes engine-wide defaults.
type EngineConfig struct {
	// DefaultTimeout applies to dialogues with a zero Timeout.
	DefaultTimeout time.Duration
	// HistoryLimit caps session history length in turns; oldest turns are
	// dropped first. Zero means DefaultHistoryLimit.
	HistoryLimit int
}

// Engine owns the registered dialogues and drives transitions over the store.
// Updates for the same chat are serialized by a per-chat mutex; the store
// lock is never held while a state handler runs.
type Engine struct {
	store        *Store
	dialogs      map[string]*Dialog
	timeout      time.Duration
	historyLimit int
	locks        chatLocks
	log          *slog.Logger
}

// NewEngine builds an engine over the given store.
func NewEngine(store *Store, cfg EngineConfig) *Engine {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &Engine{
		store:        store,
		dialogs:      make(map[string]*Dialog),
		timeout:      cfg.DefaultTimeout,
		historyLimit: cfg.HistoryLimit,
		log:          dialogLogger(),
	}
}

func dialogLogger() *slog.Logger {
	if logger.DLG != nil {
		return logger.DLG
	}
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Register adds a dialogue definition. Registering twice under one name or
// without an entry state is a programming error surfaced at startup.
func (e *Engine) Register(d *Dialog) error {
	if d == nil || d.Name == "" {
		return fmt.Errorf("dialog: register: empty dialogue name")
	}
	if d.Entry == End {
		return fmt.Errorf("dialog: register %s: entry state required", d.Name)
	}
	if _, ok := e.dialogs[d.Name]; ok {
		return fmt.Errorf("dialog: register %s: duplicate name", d.Name)
	}
	if _, ok := d.States[d.Entry]; !ok && d.OnStart == nil {
		return fmt.Errorf("dialog: register %s: entry state %q has no transitions", d.Name, d.Entry)
	}
	e.dialogs[d.Name] = d
	return nil
}

// Store exposes the underlying session store.
func (e *Engine) Store() *Store { return e.store }

// Active reports whether the chat currently has a session.
func (e *Engine) Active(chatID int64) bool {
	_, err := e.store.Get(chatID)
	return err == nil
}

// TimeoutFor returns the idle timeout for the named dialogue.
func (e *Engine) TimeoutFor(name string) time.Duration {
	if d, ok := e.dialogs[name]; ok && d.Timeout > 0 {
		return d.Timeout
	}
	return e.timeout
}

// ExpiredReplyFor returns the termination notice for the named dialogue.
func (e *Engine) ExpiredReplyFor(name string) Reply {
	if d, ok := e.dialogs[name]; ok {
		return d.ExpiredReply
	}
	return Reply{}
}

// Start begins the named dialogue for the chat. An active session of the
// same dialogue is handled per its reentry policy; an active session of a
// different dialogue is replaced.
func (e *Engine) Start(ctx context.Context, chatID int64, name string) (Reply, error) {
	d, ok := e.dialogs[name]
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownDialog, name)
	}

	unlock := e.locks.lock(chatID)
	defer unlock()

	if existing, err := e.store.Get(chatID); err == nil {
		if existing.Dialog == name && d.Reentry == ReentryReject {
			e.log.Info("dialog reentry rejected",
				slog.String("event", "dialog.reentry"),
				slog.String("dialog", name),
				slog.Int64("chat_id", chatID),
			)
			return d.RejectReply, ErrAlreadyActive
		}
		e.store.Remove(chatID)
	}

	s, err := e.store.Create(chatID, name, d.Entry, false)
	if err != nil {
		return Reply{}, err
	}
	e.log.Info("dialog started",
		slog.String("event", "dialog.start"),
		slog.String("dialog", name),
		slog.String("state", string(d.Entry)),
		slog.Int64("chat_id", chatID),
	)

	if d.OnStart == nil {
		return Reply{}, nil
	}
	return e.apply(ctx, d, s, Input{}, d.OnStart, false)
}

// Dispatch routes an input to the chat's active dialogue. The exit commands
// are checked before the transition table; an input matching nothing falls
// through to the dialogue's fallbacks and finally to ErrNoTransition.
func (e *Engine) Dispatch(ctx context.Context, chatID int64, in Input) (Reply, error) {
	unlock := e.locks.lock(chatID)
	defer unlock()

	s, err := e.store.Get(chatID)
	if err != nil {
		return Reply{}, ErrInactive
	}
	d, ok := e.dialogs[s.Dialog]
	if !ok {
		e.store.Remove(chatID)
		return Reply{}, ErrInactive
	}

	for _, cmd := range d.ExitCommands {
		if MatchCommand(cmd)(in) {
			e.store.Remove(chatID)
			e.log.Info("dialog exited",
				slog.String("event", "dialog.exit"),
				slog.String("dialog", d.Name),
				slog.String("state", string(s.State)),
				slog.Int64("chat_id", chatID),
			)
			return d.ExitReply, nil
		}
	}

	handler := matchTransition(d.States[s.State], in)
	if handler == nil {
		handler = matchTransition(d.Fallbacks, in)
	}
	if handler == nil {
		// Unmatched input keeps the session alive but is reported.
		_, _ = e.store.Update(chatID, nil)
		return Reply{}, fmt.Errorf("%w: dialog %s state %s", ErrNoTransition, d.Name, s.State)
	}

	return e.apply(ctx, d, s, in, handler, true)
}

// apply runs the handler outside the store lock and commits its result. A
// commit against a session the reaper already removed is discarded.
func (e *Engine) apply(ctx context.Context, d *Dialog, s Session, in Input, h HandlerFunc, record bool) (Reply, error) {
	res, err := h(ctx, s, in)
	if err != nil {
		ce, ok := AsCollaborator(err)
		if !ok {
			ce = &CollaboratorError{Op: d.Name, Err: err}
		}
		e.log.Warn("dialog collaborator failed",
			slog.String("event", "dialog.collaborator"),
			slog.String("dialog", d.Name),
			slog.String("state", string(s.State)),
			slog.Int64("chat_id", s.ChatID),
			slog.String("op", ce.Op),
			slog.String("err", ce.Err.Error()),
		)
		if d.OnError != nil {
			res = d.OnError(s, ce)
		} else {
			res = Result{
				Reply: Reply{Text: "Request failed, please try again."},
				Next:  s.State,
			}
		}
	}

	if res.Next == End {
		e.store.Remove(s.ChatID)
		e.log.Info("dialog finished",
			slog.String("event", "dialog.end"),
			slog.String("dialog", d.Name),
			slog.String("state", string(s.State)),
			slog.Int64("chat_id", s.ChatID),
		)
		return res.Reply, nil
	}

	limit := e.historyLimit
	now := time.Now()
	_, err = e.store.Update(s.ChatID, func(cur *Session) {
		if res.ClearData {
			cur.Data = nil
		}
		if len(res.SetData) > 0 {
			if cur.Data == nil {
				cur.Data = make(map[string]string, len(res.SetData))
			}
			for k, v := range res.SetData {
				cur.Data[k] = v
			}
		}
		if record {
			if text := inputText(in); text != "" {
				cur.History = append(cur.History, Turn{Role: RoleUser, Content: text, At: now})
			}
			if res.Reply.Text != "" {
				cur.History = append(cur.History, Turn{Role: RoleAssistant, Content: res.Reply.Text, At: now})
			}
			if len(cur.History) > limit {
				cur.History = cur.History[len(cur.History)-limit:]
			}
		}
		cur.State = res.Next
	})
	if err != nil {
		// Session expired while the handler was running; the result is void.
		return Reply{}, ErrInactive
	}

	e.log.Debug("dialog transition",
		slog.String("event", "dialog.transition"),
		slog.String("dialog", d.Name),
		slog.String("state", string(s.State)),
		slog.String("next_state", string(res.Next)),
		slog.Int64("chat_id", s.ChatID),
	)
	return res.Reply, nil
}

func matchTransition(trs []Transition, in Input) HandlerFunc {
	for _, tr := range trs {
		if tr.Match != nil && tr.Match(in) {
			return tr.Handle
		}
	}
	return nil
}

func inputText(in Input) string {
	if in.IsCallback() {
		return in.CallbackKey
	}
	return in.Text
}

// chatLocks serializes dialogue work per chat without blocking other chats.
type chatLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (c *chatLocks) lock(chatID int64) func() {
	c.mu.Lock()
	if c.locks == nil {
		c.locks = make(map[int64]*sync.Mutex)
	}
	m, ok := c.locks[chatID]
	if !ok {
		m = &sync.Mutex{}
		c.locks[chatID] = m
	}
	c.mu.Unlock()
	m.Lock()
	return m.Unlock
}
