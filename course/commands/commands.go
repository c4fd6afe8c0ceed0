// Package commands defines the multi-step chat commands of the course bot.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/keyboard"
	"github.com/m3rciful/coursebot/core/telegram/state"
	"github.com/m3rciful/coursebot/course"

	tele "gopkg.in/telebot.v4"
)

// Service is the part of course.Service the commands use.
type Service interface {
	Now() time.Time
	Register(ctx context.Context, p tghelpers.Profile) (course.User, error)
	User(ctx context.Context, telegramID int64) (course.User, error)
	Groups(ctx context.Context) ([]course.Group, error)
	Group(ctx context.Context, id int64) (course.Group, error)
	Lesson(ctx context.Context, id int64) (course.Lesson, error)
	CreateGroup(ctx context.Context, name, sheetURL string) (course.Group, error)
	AddLesson(ctx context.Context, groupID int64, title string, deadline time.Time) (course.Lesson, error)
	AddTask(ctx context.Context, lessonID int64, title, description string) (course.Task, error)
	Join(ctx context.Context, p tghelpers.Profile, groupID int64) (course.Group, error)
	MyTasks(ctx context.Context, telegramID int64) (course.Group, []course.TaskView, error)
	SetRole(ctx context.Context, telegramID int64, role state.Role) error
	Ban(ctx context.Context, telegramID int64) error
}

// Options tune command behaviour.
type Options struct {
	// Location interprets and prints deadlines; time.Local when nil.
	Location *time.Location
	// EndSession drops the running command of a chat, if any. /ban uses it
	// so a banned user's dialogue does not linger until the reaper runs.
	EndSession func(chatID int64) bool
}

const dateLayout = "2006-01-02 15:04"

// Session keys.
const (
	keyName     = "name"
	keySheet    = "sheet"
	keyGroup    = "group_id"
	keyLesson   = "lesson_id"
	keyTitle    = "title"
	keyDeadline = "deadline"
	keyTarget   = "target_id"
	keyRole     = "role"
)

var staff = []state.Role{state.RoleAdmin, state.RoleTeacher}

type builder struct {
	svc        Service
	loc        *time.Location
	reg        *state.Registry
	endSession func(chatID int64) bool
}

// Registry builds the command registry of the course bot.
func Registry(svc Service, opts Options) (*state.Registry, error) {
	b := &builder{svc: svc, loc: opts.Location, endSession: opts.EndSession}
	if b.loc == nil {
		b.loc = time.Local
	}
	reg, err := state.NewRegistry(
		b.start(),
		b.help(),
		b.join(),
		b.myTasks(),
		b.createGroup(),
		b.addLesson(),
		b.addTask(),
		b.setRole(),
		b.ban(),
	)
	if err != nil {
		return nil, err
	}
	b.reg = reg
	return reg, nil
}

// profileOf prefers the Telegram sender data and falls back to the engine
// identity.
func profileOf(c *state.Context) tghelpers.Profile {
	if tc, ok := c.Message.Raw.(tele.Context); ok {
		if p, ok := tghelpers.ProfileFrom(tc); ok {
			return p
		}
	}
	return tghelpers.Profile{TelegramID: c.User().ID, ChatID: c.ChatID()}
}

func parseID(input string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(input), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, state.Invalid("send a positive number")
	}
	return id, nil
}

// confirm accepts yes or no; no cancels the command.
func confirm(c *state.Context, input string) error {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case keyboard.Yes:
		return nil
	case keyboard.No:
		c.Cancel()
		return nil
	}
	return state.Invalid("answer %s or %s", keyboard.Yes, keyboard.No)
}

// groupPrompt asks for a group id, listing known groups, and stores a valid
// answer under keyGroup.
func (b *builder) groupPrompt(question string) state.Prompt {
	return state.Prompt{
		TextFunc: func(c *state.Context) string {
			groups, err := b.svc.Groups(c.Ctx)
			if err != nil || len(groups) == 0 {
				return question
			}
			var sb strings.Builder
			sb.WriteString(question)
			sb.WriteString("\n")
			for _, g := range groups {
				fmt.Fprintf(&sb, "\n#%d %s", g.ID, g.Name)
			}
			return sb.String()
		},
		Parse: func(c *state.Context, input string) error {
			id, err := parseID(input)
			if err != nil {
				return err
			}
			if _, err := b.svc.Group(c.Ctx, id); err != nil {
				if errors.Is(err, course.ErrNotFound) {
					return state.Invalid("group #%d does not exist", id)
				}
				return err
			}
			c.Session.Set(keyGroup, id)
			return nil
		},
	}
}

// userPrompt asks for the Telegram id of another registered user.
func (b *builder) userPrompt(question string) state.Prompt {
	return state.Prompt{
		Text: question,
		Parse: func(c *state.Context, input string) error {
			id, err := parseID(input)
			if err != nil {
				return err
			}
			if id == c.User().ID {
				return state.Invalid("you cannot do this to yourself")
			}
			if _, err := b.svc.User(c.Ctx, id); err != nil {
				if errors.Is(err, course.ErrNotFound) {
					return state.Invalid("user %d is not registered", id)
				}
				return err
			}
			c.Session.Set(keyTarget, id)
			return nil
		},
	}
}

// namePrompt stores a trimmed, length-checked name under key.
func namePrompt(question, key string) state.Prompt {
	return state.Prompt{
		Text: question,
		Parse: func(c *state.Context, input string) error {
			name, err := course.CheckName(input)
			if err != nil {
				return state.Invalid("%s", err.Error())
			}
			c.Session.Set(key, name)
			return nil
		},
	}
}

func (b *builder) formatDate(t time.Time) string {
	return t.In(b.loc).Format(dateLayout)
}
