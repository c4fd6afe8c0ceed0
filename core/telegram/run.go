package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/coursebot/core/config"
	"github.com/m3rciful/coursebot/core/logger"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	tgsender "github.com/m3rciful/coursebot/core/telegram/sender"
	"github.com/m3rciful/coursebot/core/telegram/sequencer"
	"github.com/m3rciful/coursebot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *state.Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher
	// Replier is bound to the bot once it exists.
	Replier *tgsender.TeleReplier
	// Sequencer is drained after polling stops and before OnStop runs.
	Sequencer *sequencer.Sequencer

	Middlewares []Middleware
	Routes      []Route

	HTTPClient HTTPClientOptions
	// Poller replaces the configured poller; Offline skips getMe. Both exist
	// for tests.
	Poller  tele.Poller
	Offline bool

	DisableWebhookCleanup bool
	DisableCommandMenu    bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *state.Registry
}

// RunTelegram composes and runs a Telegram bot until the provided context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	cfg := opts.Config

	poller := opts.Poller
	if poller == nil {
		poller = BuildPoller(cfg)
	}

	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:       cfg.Telegram.Token,
		Poller:      poller,
		Client:      BuildHTTPClient(opts.HTTPClient.withDefaults(longPollTimeout(cfg))),
		Synchronous: true,
		Offline:     opts.Offline,
		OnError:     logBotError,
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	tghelpers.SetDispatcher(dispatcher)
	if opts.Replier != nil {
		opts.Replier.Bind(bot)
	}

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: opts.Registry}

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", buildTook),
		)
	default:
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("timeout", longPollTimeout(cfg)),
			slog.Duration("duration", buildTook),
		)
		if !opts.DisableWebhookCleanup {
			// A leftover webhook makes getUpdates fail with 409.
			if err := bot.RemoveWebhook(); err != nil {
				logger.Warn(ctx, "tg", "delete_webhook", slog.String("err", err.Error()))
			}
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}

	if !opts.DisableCommandMenu && opts.Registry != nil {
		SetupCommands(bot, opts.Registry)
	}

	cleanup := func() {
		if opts.Sequencer != nil {
			opts.Sequencer.Close()
		}
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			cleanup()
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	// Handlers still queued on chat lanes may reply; keep the dispatcher open
	// until they are done.
	if opts.Sequencer != nil {
		opts.Sequencer.Close()
	}

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	cleanup()

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func logBotError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "bot.error", slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
}
