package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// SendText sends plain text to the chat of c, queued behind earlier replies
// to the same chat when a dispatcher is set.
func SendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var opts []interface{}
	if len(markup) > 0 && markup[0] != nil {
		opts = append(opts, markup[0])
	}
	run := func() error { return c.Send(text, opts...) }

	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}
	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, chatID, "send.text", "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback", slog.String("err", err.Error()))
		return run()
	}
	return err
}
