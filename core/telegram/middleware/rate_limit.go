package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/coursebot/core/logger"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures the per-user limiter.
type RateLimitOptions struct {
	// Interval is the average spacing enforced between updates of one user.
	Interval time.Duration
	// Burst allows that many updates in a row before Interval applies.
	Burst     int
	OnLimited tele.HandlerFunc
	Metrics   *UpdateMetrics
	// IdleTTL drops limiters of users not seen for this long; default 10m.
	IdleTTL time.Duration
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware drops updates from users exceeding their token bucket.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	var (
		mu        sync.Mutex
		limiters  = make(map[int64]*userLimiter)
		lastPrune time.Time
	)
	allow := func(userID int64, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()
		if now.Sub(lastPrune) > opts.IdleTTL {
			for id, ul := range limiters {
				if now.Sub(ul.lastSeen) > opts.IdleTTL {
					delete(limiters, id)
				}
			}
			lastPrune = now
		}
		ul, ok := limiters[userID]
		if !ok {
			ul = &userLimiter{lim: rate.NewLimiter(rate.Every(opts.Interval), opts.Burst)}
			limiters[userID] = ul
		}
		ul.lastSeen = now
		return ul.lim.AllowN(now, 1)
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if allow(user.ID, time.Now()) {
				return next(c)
			}
			opts.Metrics.reject("rate_limited")
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.Bool("rate_limited", true),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
