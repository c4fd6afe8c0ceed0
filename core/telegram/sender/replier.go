package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/coursebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned by TeleReplier before Bind.
var ErrNotBound = errors.New("telegram sender: bot not bound")

// Bot is the subset of *tele.Bot used to deliver messages.
type Bot interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TeleReplier sends session replies through a Dispatcher keyed by chat so
// replies to a chat keep their order. Markup values of type
// *tele.ReplyMarkup or *tele.SendOptions are forwarded; others are ignored.
type TeleReplier struct {
	disp *Dispatcher
	bot  atomic.Pointer[botRef]
}

type botRef struct{ Bot }

// NewTeleReplier returns a replier that is usable once Bind is called.
// A nil dispatcher makes every send synchronous.
func NewTeleReplier(disp *Dispatcher) *TeleReplier {
	return &TeleReplier{disp: disp}
}

// Bind attaches the bot. It is called when the bot is built, before updates
// start flowing.
func (r *TeleReplier) Bind(b Bot) {
	if b == nil {
		r.bot.Store(nil)
		return
	}
	r.bot.Store(&botRef{b})
}

// SendMessage implements state.Replier.
func (r *TeleReplier) SendMessage(ctx context.Context, chatID int64, text string, markup any) error {
	ref := r.bot.Load()
	if ref == nil {
		return ErrNotBound
	}
	opts := sendOptions(markup)
	run := func() error {
		_, err := ref.Send(tele.ChatID(chatID), text, opts...)
		return err
	}
	if r.disp == nil {
		return run()
	}

	err := r.disp.Enqueue(ctx, chatID, "send.text", "sendMessage", run)
	if errors.Is(err, ErrQueueFull) || errors.Is(err, ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		if err := run(); err != nil {
			return fmt.Errorf("send to chat %d: %w", chatID, err)
		}
		return nil
	}
	return err
}

func sendOptions(markup any) []interface{} {
	switch m := markup.(type) {
	case *tele.ReplyMarkup:
		if m != nil {
			return []interface{}{m}
		}
	case *tele.SendOptions:
		if m != nil {
			return []interface{}{m}
		}
	}
	return nil
}
