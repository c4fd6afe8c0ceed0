package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/coursebot/core/telegram/state"
	"github.com/m3rciful/coursebot/course"
)

func (b *builder) start() state.Command {
	return state.Command{
		Name:        "/start",
		Description: "Register and see what the bot can do",
		Steps: []state.Step{state.Action(func(c *state.Context) error {
			u, err := b.svc.Register(c.Ctx, profileOf(c))
			if err != nil {
				return err
			}
			name := u.FullName
			if name == "" {
				name = "there"
			}
			return c.Reply(fmt.Sprintf(
				"Hello, %s! You are registered as %s.\nSend /help to list commands and /exit to cancel one.",
				name, u.Role))
		})},
	}
}

func (b *builder) help() state.Command {
	return state.Command{
		Name:        "/help",
		Description: "List available commands",
		Steps: []state.Step{state.Action(func(c *state.Context) error {
			var sb strings.Builder
			sb.WriteString("Commands:")
			for _, cmd := range b.reg.Visible(c.User().Role) {
				fmt.Fprintf(&sb, "\n%s - %s", cmd.Name, cmd.Description)
			}
			fmt.Fprintf(&sb, "\n%s - cancel the running command", state.ExitKeyword)
			return c.Reply(sb.String())
		})},
	}
}

func (b *builder) join() state.Command {
	return state.Command{
		Name:        "/join",
		Description: "Join a study group",
		Steps: []state.Step{
			b.groupPrompt("Which group do you want to join? Send its number."),
			state.Action(func(c *state.Context) error {
				id, _ := c.Session.Int64(keyGroup)
				g, err := b.svc.Join(c.Ctx, profileOf(c), id)
				if err != nil {
					return err
				}
				return c.Reply(fmt.Sprintf("You joined %s.", g.Name))
			}),
		},
	}
}

func (b *builder) myTasks() state.Command {
	return state.Command{
		Name:        "/mytasks",
		Description: "Show the tasks of your group",
		Steps: []state.Step{state.Action(func(c *state.Context) error {
			g, tasks, err := b.svc.MyTasks(c.Ctx, c.User().ID)
			if errors.Is(err, course.ErrNoGroup) {
				return c.Reply("You are not in a group yet. Use /join first.")
			}
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				return c.Reply(fmt.Sprintf("%s has no tasks yet.", g.Name))
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "Tasks of %s:", g.Name)
			for _, t := range tasks {
				fmt.Fprintf(&sb, "\n\n%s / %s (due %s)", t.LessonTitle, t.Title, b.formatDate(t.Deadline))
				if t.Description != "" {
					fmt.Fprintf(&sb, "\n%s", t.Description)
				}
			}
			return c.Reply(sb.String())
		})},
	}
}
