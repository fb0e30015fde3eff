package flow

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/schooltest/quizbot/internal/chat"
	"github.com/schooltest/quizbot/internal/notify"
	"github.com/schooltest/quizbot/internal/session"
	"github.com/schooltest/quizbot/internal/storage"
)

// HandlerFunc handles one update while its session sits in a given
// state. Handlers push and pop session states themselves.
type HandlerFunc func(ctx context.Context, c *Ctx) error

// Ctx bundles everything a handler needs for one update: the input,
// the user's session, and the outgoing message sender.
type Ctx struct {
	Update  chat.Update
	Session *session.Session
	sender  *chat.Sender
}

// Edit rewrites the message whose button triggered this update, or
// sends a new message for free-text input.
func (c *Ctx) Edit(ctx context.Context, text string, keyboard chat.Keyboard) error {
	if c.Update.MessageID != "" {
		return c.sender.Edit(ctx, c.Update.ChatID, c.Update.MessageID, text, keyboard)
	}
	return c.Reply(ctx, text, keyboard)
}

// Reply sends a new message to the user's chat.
func (c *Ctx) Reply(ctx context.Context, text string, keyboard chat.Keyboard) error {
	_, err := c.sender.Send(ctx, c.Update.ChatID, text, keyboard)
	return err
}

// IsCallback reports whether this update is a button press.
func (c *Ctx) IsCallback() bool {
	return c.Update.Callback != ""
}

// Engine routes updates to the handler registered for the session's
// current state. One engine serves all users; per-user ordering is the
// transport's job, the engine itself holds no per-update state.
type Engine struct {
	sender   *chat.Sender
	sessions *session.Manager
	logger   zerolog.Logger
	handlers map[session.State]HandlerFunc

	authoring *authoring
	taking    *taking
	review    *review
	results   *resultsViewer
}

// NewEngine wires the four conversation flows onto one dispatcher.
func NewEngine(store *storage.Store, sender *chat.Sender, notifier *notify.Notifier, sessions *session.Manager, logger zerolog.Logger) *Engine {
	e := &Engine{
		sender:   sender,
		sessions: sessions,
		logger:   logger.With().Str("component", "flow").Logger(),
		handlers: map[session.State]HandlerFunc{},
	}
	e.register(StateChooseRole, e.chooseRole)
	e.register(StateStudentMain, e.studentMain)
	e.register(StateTeacherMain, e.teacherMain)

	e.authoring = newAuthoring(store, e.logger)
	e.authoring.register(e)
	e.taking = newTaking(store, e.logger)
	e.taking.register(e)
	e.review = newReview(store, notifier, e.logger)
	e.review.register(e)
	e.results = newResultsViewer(store, e.logger)
	e.results.register(e)
	return e
}

func (e *Engine) register(state session.State, h HandlerFunc) {
	e.handlers[state] = h
}

// Dispatch handles one update end to end. Errors never escape: the
// user gets a generic failure message and the session stays usable.
func (e *Engine) Dispatch(ctx context.Context, u chat.Update) {
	s := e.sessions.Get(u.UserID)
	if s.ChatID == "" {
		s.ChatID = u.ChatID
	}
	c := &Ctx{Update: u, Session: s, sender: e.sender}

	var err error
	switch {
	case u.Text == "/start":
		err = e.start(ctx, c)
	case u.Text == "/cancel":
		s.Reset()
		err = c.Reply(ctx, msgCanceled, nil)
	default:
		state := s.Current()
		h, ok := e.handlers[state]
		if !ok {
			if state != "" {
				e.logger.Warn().Str("state", string(state)).Str("user_id", u.UserID).Msg("no handler for state, restarting session")
			}
			err = e.start(ctx, c)
		} else {
			err = h(ctx, c)
		}
	}
	if err != nil {
		e.logger.Error().Err(err).
			Str("user_id", u.UserID).
			Str("state", string(s.Current())).
			Msg("update handling failed")
		if rerr := c.Reply(ctx, msgGenericFailure, nil); rerr != nil {
			e.logger.Error().Err(rerr).Str("user_id", u.UserID).Msg("failed to deliver failure notice")
		}
	}
}

// start resets the session and shows the role menu.
func (e *Engine) start(ctx context.Context, c *Ctx) error {
	c.Session.Reset()
	c.Session.Push(StateChooseRole)
	return c.Reply(ctx, msgWelcome, roleKeyboard())
}

func (e *Engine) chooseRole(ctx context.Context, c *Ctx) error {
	switch c.Update.Callback {
	case "student":
		c.Session.Push(StateStudentMain)
		return c.Edit(ctx, msgStudentMenu, studentMenuKeyboard())
	case "teacher":
		c.Session.Push(StateTeacherMain)
		return c.Edit(ctx, msgTeacherMenu, teacherMenuKeyboard())
	default:
		return c.Edit(ctx, msgWelcome, roleKeyboard())
	}
}

func (e *Engine) studentMain(ctx context.Context, c *Ctx) error {
	switch c.Update.Callback {
	case "start_test":
		return e.taking.start(ctx, c)
	case "view_results":
		return e.results.start(ctx, c)
	case "back":
		return e.backToRoles(ctx, c)
	default:
		return c.Edit(ctx, msgStudentMenu, studentMenuKeyboard())
	}
}

func (e *Engine) teacherMain(ctx context.Context, c *Ctx) error {
	switch c.Update.Callback {
	case "create_test":
		return e.authoring.start(ctx, c)
	case "check_results":
		return e.review.start(ctx, c)
	case "back":
		return e.backToRoles(ctx, c)
	default:
		return c.Edit(ctx, msgTeacherMenu, teacherMenuKeyboard())
	}
}

func (e *Engine) backToRoles(ctx context.Context, c *Ctx) error {
	c.Session.Reset()
	c.Session.Push(StateChooseRole)
	return c.Edit(ctx, msgRoleReturn, roleKeyboard())
}
