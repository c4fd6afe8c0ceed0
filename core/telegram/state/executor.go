package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/coursebot/core/logger"
)

// DefaultIdleTimeout is how long a session may sit without activity before the
// reaper drops it.
const DefaultIdleTimeout = 20 * time.Minute

const component = "session"

// Option configures an Executor.
type Option func(*Executor)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTexts overrides the engine's own messages. Empty fields keep defaults.
func WithTexts(t Texts) Option {
	return func(e *Executor) { e.texts = t.withDefaults() }
}

// WithMetrics enables Prometheus accounting.
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithIdleTimeout sets the eviction threshold used by Sweep.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.idleTimeout = d
		}
	}
}

// Executor drives command sessions for all chats.
type Executor struct {
	reg     *Registry
	replier Replier

	sessions *table
	locks    *chatLocks

	texts       Texts
	metrics     *Metrics
	idleTimeout time.Duration
	now         func() time.Time
}

// NewExecutor builds an executor over reg that answers through replier.
func NewExecutor(reg *Registry, replier Replier, opts ...Option) *Executor {
	e := &Executor{
		reg:         reg,
		replier:     replier,
		sessions:    newTable(),
		locks:       newChatLocks(),
		texts:       DefaultTexts(),
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the command registry the executor dispatches from.
func (e *Executor) Registry() *Registry { return e.reg }

// Execute processes one message. Unknown commands, role rejections and
// validation failures are answered in the chat and return nil. Errors raised
// by steps for any other reason are returned as *StepError after the session
// has been dropped.
func (e *Executor) Execute(ctx context.Context, msg Message) error {
	if ctx == nil {
		ctx = context.Background()
	}
	unlock := e.locks.lock(msg.ChatID)
	defer unlock()

	if normalizeName(msg.CommandToken()) == ExitKeyword {
		return e.exit(ctx, msg)
	}
	if sess, ok := e.sessions.get(msg.ChatID); ok {
		return e.advance(ctx, msg, sess)
	}
	return e.start(ctx, msg)
}

// Exit drops the session of chatID without replying. It reports whether a
// session was running. Exit does not take the chat lock, so a step running in
// one chat may end the session of another; a message already being processed
// in chatID finishes against the dropped session.
func (e *Executor) Exit(chatID int64) bool {
	sess, ok := e.sessions.get(chatID)
	if !ok {
		return false
	}
	remaining, ok := e.sessions.remove(chatID, sess)
	if !ok {
		return false
	}
	e.metrics.active(remaining)
	e.metrics.outcome(sess.Command.Name, outcomeExited)
	logger.Info(context.Background(), component, "session.dropped",
		slog.String("session", sess.ID),
		slog.Int64("chat_id", chatID),
		slog.String("command", sess.Command.Name),
	)
	return true
}

// Active returns the name of the command running in chatID.
func (e *Executor) Active(chatID int64) (string, bool) {
	sess, ok := e.sessions.get(chatID)
	if !ok {
		return "", false
	}
	return sess.Command.Name, true
}

// Session returns the live session of chatID.
func (e *Executor) Session(chatID int64) (*Session, bool) {
	return e.sessions.get(chatID)
}

// Len returns the number of live sessions.
func (e *Executor) Len() int { return e.sessions.len() }

// IdleTimeout returns the eviction threshold.
func (e *Executor) IdleTimeout() time.Duration { return e.idleTimeout }

// Sweep drops sessions idle for longer than the idle timeout. Users are not
// notified.
func (e *Executor) Sweep(now time.Time) int {
	evicted, remaining := e.sessions.evictIdle(now, e.idleTimeout)
	for _, s := range evicted {
		e.metrics.outcome(s.Command.Name, outcomeEvicted)
		logger.Debug(context.Background(), component, "session.evicted",
			slog.String("session", s.ID),
			slog.Int64("chat_id", s.ChatID),
			slog.String("command", s.Command.Name),
			slog.Duration("idle", now.Sub(s.LastAction())),
		)
	}
	e.metrics.active(remaining)
	return len(evicted)
}

func (e *Executor) exit(ctx context.Context, msg Message) error {
	sess, ok := e.sessions.get(msg.ChatID)
	if !ok {
		return e.reply(ctx, msg.ChatID, e.texts.NoCommandToExit)
	}
	e.drop(sess)
	e.metrics.outcome(sess.Command.Name, outcomeExited)
	logger.Info(ctx, component, "session.exit",
		slog.String("session", sess.ID),
		slog.String("command", sess.Command.Name),
		slog.Int("step", sess.Index()),
	)
	return e.reply(ctx, msg.ChatID, fmt.Sprintf(e.texts.Terminated, sess.Command.Name))
}

func (e *Executor) start(ctx context.Context, msg Message) error {
	cmd, ok := e.reg.Get(msg.CommandToken())
	if !ok {
		e.metrics.outcome("", outcomeUnknown)
		return e.reply(ctx, msg.ChatID, e.texts.UnknownCommand)
	}
	if !cmd.Allows(msg.User.Role) {
		e.metrics.outcome(cmd.Name, outcomeForbidden)
		logger.Info(ctx, component, "session.forbidden",
			slog.String("command", cmd.Name),
			slog.String("role", string(msg.User.Role)),
		)
		return e.reply(ctx, msg.ChatID, e.texts.RoleNotAllowed)
	}

	sess := newSession(msg.ChatID, cmd, e.now)
	e.metrics.active(e.sessions.put(msg.ChatID, sess))
	e.metrics.outcome(cmd.Name, outcomeStarted)
	logger.Info(ctx, component, "session.start",
		slog.String("session", sess.ID),
		slog.String("command", cmd.Name),
	)

	c := e.newContext(ctx, msg, sess)
	step, _ := sess.Current()
	if err := step.Enter(c); err != nil {
		return e.fail(c, PhaseEnter, err)
	}
	return e.run(c)
}

func (e *Executor) advance(ctx context.Context, msg Message, sess *Session) error {
	c := e.newContext(ctx, msg, sess)
	step, ok := sess.Current()
	if !ok {
		return e.complete(c)
	}

	if err := step.HandleInput(c); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			e.metrics.validation(sess.Command.Name)
			logger.Debug(ctx, component, "session.invalid_input",
				slog.String("session", sess.ID),
				slog.String("command", sess.Command.Name),
				slog.Int("step", sess.Index()),
				slog.String("reason", verr.Msg),
			)
			return e.reply(ctx, msg.ChatID, fmt.Sprintf(e.texts.WrongInput, verr.Msg))
		}
		return e.fail(c, PhaseInput, err)
	}

	if !sess.Finished() {
		if next, ok := sess.Advance(); ok {
			if err := next.Enter(c); err != nil {
				return e.fail(c, PhaseEnter, err)
			}
		}
	}
	return e.run(c)
}

// run walks through consecutive steps that need no input, then ends the
// session if nothing is left or a step called Finish.
func (e *Executor) run(c *Context) error {
	sess := c.Session
	for !sess.Finished() {
		step, ok := sess.Current()
		if !ok || step.InputNeeded() {
			break
		}
		next, ok := sess.Advance()
		if !ok {
			break
		}
		if err := next.Enter(c); err != nil {
			return e.fail(c, PhaseEnter, err)
		}
	}

	if _, ok := sess.Current(); ok && !sess.Finished() {
		return nil
	}
	return e.complete(c)
}

func (e *Executor) complete(c *Context) error {
	sess := c.Session
	e.drop(sess)
	outcome, text := outcomeCompleted, e.texts.Completed
	if sess.Cancelled() {
		outcome, text = outcomeCancelled, e.texts.Cancelled
	}
	e.metrics.outcome(sess.Command.Name, outcome)
	logger.Info(c.Ctx, component, "session.complete",
		slog.String("session", sess.ID),
		slog.String("command", sess.Command.Name),
		slog.String("outcome", outcome),
		slog.Duration("duration", e.now().Sub(sess.StartedAt)),
	)
	return e.reply(c.Ctx, sess.ChatID, fmt.Sprintf(text, sess.Command.Name))
}

func (e *Executor) fail(c *Context, phase Phase, err error) error {
	sess := c.Session
	e.drop(sess)
	e.metrics.outcome(sess.Command.Name, outcomeFailed)
	serr := &StepError{Command: sess.Command.Name, Index: sess.Index(), Phase: phase, Err: err}
	logger.Warn(c.Ctx, component, "session.fail",
		slog.String("session", sess.ID),
		slog.String("command", sess.Command.Name),
		slog.Int("step", serr.Index),
		slog.String("phase", string(phase)),
		slog.String("err", err.Error()),
	)
	return serr
}

func (e *Executor) drop(sess *Session) {
	if remaining, ok := e.sessions.remove(sess.ChatID, sess); ok {
		e.metrics.active(remaining)
	}
}

func (e *Executor) newContext(ctx context.Context, msg Message, sess *Session) *Context {
	ctx = logger.WithSession(logger.WithCommand(ctx, sess.Command.Name), sess.ID)
	return &Context{Ctx: ctx, Message: msg, Session: sess, replier: e.replier}
}

func (e *Executor) reply(ctx context.Context, chatID int64, text string) error {
	if err := e.replier.SendMessage(ctx, chatID, text, nil); err != nil {
		return fmt.Errorf("state: reply to chat %d: %w", chatID, err)
	}
	return nil
}
