package telegram

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

const exitDescription = "Cancel the running command"

// MenuCommands lists the commands role may start, in the form Telegram
// expects for the command menu.
func MenuCommands(reg *state.Registry, role state.Role) []tele.Command {
	cmds := reg.Visible(role)
	out := make([]tele.Command, 0, len(cmds)+1)
	for _, cmd := range cmds {
		desc := strings.TrimSpace(cmd.Description)
		if desc == "" {
			desc = cmd.Name
		}
		out = append(out, tele.Command{
			Text:        strings.TrimPrefix(cmd.Name, "/"),
			Description: desc,
		})
	}
	return append(out, tele.Command{
		Text:        strings.TrimPrefix(state.ExitKeyword, "/"),
		Description: exitDescription,
	})
}

// SetupCommands publishes the student menu. Failures are logged and ignored.
func SetupCommands(bot *tele.Bot, reg *state.Registry) {
	cmds := MenuCommands(reg, state.RoleStudent)
	if err := bot.SetCommands(cmds); err != nil {
		logger.Error(context.Background(), "tg.wire", "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(context.Background(), "tg.wire", "register.commands.menu",
		slog.Int("count", len(cmds)),
	)
}
