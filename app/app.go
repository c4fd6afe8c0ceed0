// Package app wires the course bot together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/coursebot/core/bootstrap"
	coredatabase "github.com/m3rciful/coursebot/core/database"
	"github.com/m3rciful/coursebot/core/logger"
	coretelegram "github.com/m3rciful/coursebot/core/telegram"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/middleware"
	"github.com/m3rciful/coursebot/core/telegram/router"
	"github.com/m3rciful/coursebot/core/telegram/sender"
	"github.com/m3rciful/coursebot/core/telegram/sequencer"
	"github.com/m3rciful/coursebot/core/telegram/state"
	"github.com/m3rciful/coursebot/course"
	"github.com/m3rciful/coursebot/course/commands"

	tele "gopkg.in/telebot.v4"
)

const (
	bannedText   = "You are blocked from using this bot."
	limitedText  = "Too many messages. Please slow down."
	textOnlyText = "I only understand text messages. Send /help to see commands."
)

// App owns the long-lived components of the bot.
type App struct {
	cfg *Config
	db  *sqlx.DB

	svc      *course.Service
	reg      *state.Registry
	exec     *state.Executor
	reaper   *state.Reaper
	disp     *sender.Dispatcher
	replier  *sender.TeleReplier
	seq      *sequencer.Sequencer
	metrics  *prometheus.Registry
	updates  *middleware.UpdateMetrics
	metricsS *http.Server
}

// Bootstrap initializes logging, the database and the command engine.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:     cfg.CoreConfig(),
		Database:   cfg.Database,
		Migrations: course.Migrations(),
		Modules: bootstrap.Modules{
			Seeders: []bootstrap.Seeder{course.AdminSeeder(cfg.Admins)},
		},
	})
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, course.NewService(course.NewStore(res.DB)))
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	a.db = res.DB
	return a, nil
}

// New assembles the engine around svc.
func New(cfg *Config, svc *course.Service) (*App, error) {
	var exec *state.Executor
	reg, err := commands.Registry(svc, commands.Options{
		Location:   cfg.Location(),
		EndSession: func(chatID int64) bool { return exec.Exit(chatID) },
	})
	if err != nil {
		return nil, fmt.Errorf("app: build commands: %w", err)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	disp := sender.NewDispatcher(sender.Options{MaxRetries: 2})
	replier := sender.NewTeleReplier(disp)
	exec = state.NewExecutor(reg, replier,
		state.WithMetrics(state.NewMetrics(promReg)),
		state.WithIdleTimeout(cfg.Session.IdleTimeout),
	)

	return &App{
		cfg:     cfg,
		svc:     svc,
		reg:     reg,
		exec:    exec,
		reaper:  state.NewReaper(exec, state.ReaperConfig{InitialDelay: cfg.Session.SweepDelay, Interval: cfg.Session.SweepInterval}),
		disp:    disp,
		replier: replier,
		seq:     sequencer.New(cfg.Telegram.Workers),
		metrics: promReg,
		updates: middleware.NewUpdateMetrics(promReg),
	}, nil
}

// TelegramRunOptions describes how the bot is served.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	routes := router.TextRoutes(a.exec, router.TextOptions{
		Users:     a.svc,
		Sequencer: a.seq,
		Replier:   a.replier,
		Middlewares: []tele.MiddlewareFunc{
			a.updates.Middleware,
			middleware.BanGuard(middleware.BanOptions{
				Checker:  a.svc,
				Metrics:  a.updates,
				OnBanned: a.notice(bannedText),
			}),
		},
		UnknownMedia: a.notice(textOnlyText),
	})

	return coretelegram.RunOptions{
		Config:     a.cfg.CoreConfig(),
		Registry:   a.reg,
		Dispatcher: a.disp,
		Replier:    a.replier,
		Sequencer:  a.seq,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), coretelegram.MiddlewareOptions{
			OnLimited: a.notice(limitedText),
			Metrics:   a.updates,
		}),
		Routes:  routes,
		OnStart: a.onStart,
		OnStop:  a.onStop,
	}, nil
}

// notice answers with a fixed text through the ordered replier.
func (a *App) notice(text string) tele.HandlerFunc {
	return func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return nil
		}
		return a.replier.SendMessage(tghelpers.BuildContext(c), chat.ID, text, nil)
	}
}

func (a *App) onStart(ctx context.Context, _ coretelegram.Runtime) error {
	a.reaper.Start(ctx)
	if listen := a.cfg.Metrics.Listen; listen != "" {
		mux := http.NewServeMux()
		mux.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
		a.metricsS = &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := a.metricsS.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(ctx, "app", "metrics.serve", slog.String("err", err.Error()))
			}
		}()
		logger.Info(ctx, "app", "metrics.listen",
			slog.String("listen", listen),
			slog.String("path", a.cfg.Metrics.Path),
		)
	}
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	a.reaper.Stop()
	if a.metricsS != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.metricsS.Shutdown(shutdownCtx); err != nil {
			logger.Warn(ctx, "app", "metrics.shutdown", slog.String("err", err.Error()))
		}
	}
	logger.Info(ctx, "app", "sessions.dropped", slog.Int("count", a.exec.Len()))
	return nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Migrate applies the schema without starting the bot.
func Migrate(ctx context.Context, cfg *Config) error {
	if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown() }()
	return coredatabase.RunMigrations(ctx, cfg.Database, course.Migrations())
}
