package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/coursebot/core/logger"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// BanChecker reports whether a Telegram user is banned.
type BanChecker interface {
	IsBanned(ctx context.Context, telegramID int64) (bool, error)
}

// BanOptions configures BanGuard.
type BanOptions struct {
	Checker  BanChecker
	OnBanned tele.HandlerFunc
	Metrics  *UpdateMetrics
}

// BanGuard stops updates from banned users. Lookup failures let the update
// through; the router resolves the user again and reports the error there.
func BanGuard(opts BanOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if opts.Checker == nil {
			return next
		}
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			banned, err := opts.Checker.IsBanned(ctx, user.ID)
			if err != nil {
				logger.Warn(ctx, "tg", "ban.check", slog.String("err", err.Error()))
				return next(c)
			}
			if !banned {
				return next(c)
			}
			opts.Metrics.reject("banned")
			logger.Info(ctx, "tg", "ban.reject", slog.String("outcome", "banned"))
			if opts.OnBanned != nil {
				return opts.OnBanned(c)
			}
			return nil
		}
	}
}
