package router

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/m3rciful/coursebot/core/logger"
	tg "github.com/m3rciful/coursebot/core/telegram"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/middleware"
	"github.com/m3rciful/coursebot/core/telegram/sequencer"
	"github.com/m3rciful/coursebot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// DefaultFailureText is sent when a command fails for reasons the user
// cannot fix.
const DefaultFailureText = "Something went wrong. Please try again later."

// UserResolver authenticates the sender of an update.
type UserResolver interface {
	ResolveUser(ctx context.Context, p tghelpers.Profile) (state.User, error)
}

// TextOptions controls text routing.
type TextOptions struct {
	Users UserResolver
	// Sequencer keeps per-chat order while chats run in parallel. Without it
	// handlers run on the caller's goroutine.
	Sequencer *sequencer.Sequencer
	// Middlewares wrap the handler inside the chat lane, outermost first.
	Middlewares []tele.MiddlewareFunc
	// Replier sends FailureText; without it the reply goes through
	// helpers.SendText.
	Replier     state.Replier
	FailureText string
	// UnknownMedia answers non-text messages; nil ignores them.
	UnknownMedia tele.HandlerFunc
}

// TextRoutes builds the route feeding text messages to the executor.
func TextRoutes(exec *state.Executor, opts TextOptions) []tg.Route {
	if opts.FailureText == "" {
		opts.FailureText = DefaultFailureText
	}

	var h tele.HandlerFunc = func(c tele.Context) error {
		return handleText(c, exec, opts)
	}
	for i := len(opts.Middlewares) - 1; i >= 0; i-- {
		if opts.Middlewares[i] != nil {
			h = opts.Middlewares[i](h)
		}
	}
	h = middleware.RecoverMiddleware(h)

	routes := []tg.Route{{Endpoint: tele.OnText, Handler: inLane(opts.Sequencer, h)}}
	if opts.UnknownMedia != nil {
		media := func(c tele.Context) error {
			start := time.Now()
			return handleWithSummary(c, "unexpected_media", start, func() error {
				return opts.UnknownMedia(c)
			})
		}
		routes = append(routes, tg.Route{Endpoint: tele.OnMedia, Handler: inLane(opts.Sequencer, media)})
	}
	return routes
}

// inLane queues h on the sender's chat lane and returns at once.
func inLane(seq *sequencer.Sequencer, h tele.HandlerFunc) tele.HandlerFunc {
	if seq == nil {
		return h
	}
	return func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return h(c)
		}
		err := seq.Submit(chat.ID, func() { _ = h(c) })
		if errors.Is(err, sequencer.ErrClosed) {
			logger.Debug(tghelpers.BuildContext(c), "tg", "update.dropped", slog.String("reason", "shutdown"))
			return nil
		}
		return err
	}
}

func handleText(c tele.Context, exec *state.Executor, opts TextOptions) error {
	start := time.Now()
	profile, ok := tghelpers.ProfileFrom(c)
	if !ok {
		logHandlerSummary(c, "text", start, "skip", nil)
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	user := state.User{ID: profile.TelegramID, Role: state.RoleStudent}
	if opts.Users != nil {
		resolved, err := opts.Users.ResolveUser(ctx, profile)
		if err != nil {
			logHandlerSummary(c, "auth", start, "", err)
			replyFailure(ctx, c, profile.ChatID, opts)
			return err
		}
		user = resolved
	}

	msg := state.ParseMessage(profile.ChatID, c.Text(), user, c)
	name, active := exec.Active(profile.ChatID)
	if !active {
		name = msg.CommandToken()
	}
	handler := normalizeHandlerName(name)
	if active {
		handler = "session." + handler
	}
	tghelpers.WithCommand(c, name)

	extras := []slog.Attr{slog.String("role", string(user.Role))}
	return handleWithSummary(c, handler, start, func() error {
		ctx := tghelpers.BuildContext(c)
		err := exec.Execute(ctx, msg)
		var serr *state.StepError
		if errors.As(err, &serr) {
			replyFailure(ctx, c, profile.ChatID, opts)
		}
		return err
	}, extras...)
}

func replyFailure(ctx context.Context, c tele.Context, chatID int64, opts TextOptions) {
	var err error
	if opts.Replier != nil {
		err = opts.Replier.SendMessage(ctx, chatID, opts.FailureText, nil)
	} else {
		err = tghelpers.SendText(c, opts.FailureText)
	}
	if err != nil {
		logger.Warn(ctx, "tg", "reply.failure_text", slog.String("err", err.Error()))
	}
}
