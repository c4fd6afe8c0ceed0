package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/coursebot/core/config"
	"github.com/m3rciful/coursebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MiddlewareOptions carries optional hooks for DefaultMiddlewares.
type MiddlewareOptions struct {
	OnLimited tele.HandlerFunc
	Metrics   *middleware.UpdateMetrics
}

// DefaultMiddlewares builds the global chain that runs on the polling
// goroutine before an update is handed to its chat lane.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}

	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Burst:     cfg.RateLimit.Burst,
				OnLimited: opts.OnLimited,
				Metrics:   opts.Metrics,
			}),
		})
	}
	return mws
}
