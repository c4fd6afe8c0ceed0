package helpers

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Profile is what Telegram tells us about the sender of an update.
type Profile struct {
	TelegramID int64
	ChatID     int64
	Username   string
	FullName   string
}

// ProfileFrom extracts the sender profile of c. ok is false for updates
// without a sender or chat, such as channel posts.
func ProfileFrom(c tele.Context) (Profile, bool) {
	user, chat := c.Sender(), c.Chat()
	if user == nil || chat == nil {
		return Profile{}, false
	}
	full := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	return Profile{
		TelegramID: user.ID,
		ChatID:     chat.ID,
		Username:   user.Username,
		FullName:   full,
	}, true
}
