package commands

import (
	"errors"
	"fmt"
	"strings"

	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/keyboard"
	"github.com/m3rciful/coursebot/core/telegram/state"
	"github.com/m3rciful/coursebot/course"
)

func (b *builder) createGroup() state.Command {
	return state.Command{
		Name:         "/creategroup",
		Description:  "Create a group from a roster spreadsheet",
		AllowedRoles: staff,
		Steps: []state.Step{
			namePrompt("Send the name of the new group.", keyName),
			state.Prompt{
				Text: "Send the Google Sheets link with the group roster.",
				Parse: func(c *state.Context, input string) error {
					link, err := course.CheckSheetURL(input)
					if err != nil {
						return state.Invalid("%s", err.Error())
					}
					c.Session.Set(keySheet, link)
					return nil
				},
			},
			state.Prompt{
				TextFunc: func(c *state.Context) string {
					return fmt.Sprintf("Create group %q and import its roster?", c.Session.String(keyName))
				},
				Markup: keyboard.YesNo(),
				Parse:  confirm,
			},
			state.Action(func(c *state.Context) error {
				g, err := b.svc.CreateGroup(c.Ctx, c.Session.String(keyName), c.Session.String(keySheet))
				if errors.Is(err, course.ErrDuplicate) {
					c.Cancel()
					return c.Reply("A group with this name already exists.", keyboard.RemoveKeyboard())
				}
				if err != nil {
					return err
				}
				return c.Reply(fmt.Sprintf("Group #%d %s created. The roster import is queued.", g.ID, g.Name),
					keyboard.RemoveKeyboard())
			}),
		},
	}
}

func (b *builder) addLesson() state.Command {
	return state.Command{
		Name:         "/addlesson",
		Description:  "Add a lesson to a group",
		AllowedRoles: staff,
		Steps: []state.Step{
			b.groupPrompt("Which group is the lesson for? Send its number."),
			namePrompt("Send the lesson title.", keyTitle),
			state.Prompt{
				Text: "Send the deadline, e.g. 2026-11-01 18:00 or 01.11.2026.",
				Parse: func(c *state.Context, input string) error {
					t, ok := tghelpers.ParseFlexibleDate(input, b.loc)
					if !ok {
						return state.Invalid("cannot read %q as a date", strings.TrimSpace(input))
					}
					t = tghelpers.EndOfDay(t)
					if t.Before(b.svc.Now()) {
						return state.Invalid("the deadline is in the past")
					}
					c.Session.Set(keyDeadline, t)
					return nil
				},
			},
			state.Action(func(c *state.Context) error {
				groupID, _ := c.Session.Int64(keyGroup)
				deadline, _ := c.Session.Time(keyDeadline)
				l, err := b.svc.AddLesson(c.Ctx, groupID, c.Session.String(keyTitle), deadline)
				if errors.Is(err, course.ErrDuplicate) {
					c.Cancel()
					return c.Reply("This group already has a lesson with that title.")
				}
				if err != nil {
					return err
				}
				return c.Reply(fmt.Sprintf("Lesson #%d %s added, due %s.", l.ID, l.Title, b.formatDate(l.Deadline)))
			}),
		},
	}
}

func (b *builder) addTask() state.Command {
	return state.Command{
		Name:         "/addtask",
		Description:  "Add a task to a lesson",
		AllowedRoles: staff,
		Steps: []state.Step{
			state.Prompt{
				Text: "Which lesson is the task for? Send its number.",
				Parse: func(c *state.Context, input string) error {
					id, err := parseID(input)
					if err != nil {
						return err
					}
					if _, err := b.svc.Lesson(c.Ctx, id); err != nil {
						if errors.Is(err, course.ErrNotFound) {
							return state.Invalid("lesson #%d does not exist", id)
						}
						return err
					}
					c.Session.Set(keyLesson, id)
					return nil
				},
			},
			namePrompt("Send the task title.", keyTitle),
			state.Prompt{Text: "Send the task description, or - to leave it empty.", Key: "description"},
			state.Action(func(c *state.Context) error {
				lessonID, _ := c.Session.Int64(keyLesson)
				desc := c.Session.String("description")
				if strings.TrimSpace(desc) == "-" {
					desc = ""
				}
				t, err := b.svc.AddTask(c.Ctx, lessonID, c.Session.String(keyTitle), desc)
				if errors.Is(err, course.ErrDuplicate) {
					c.Cancel()
					return c.Reply("This lesson already has a task with that title.")
				}
				if err != nil {
					return err
				}
				return c.Reply(fmt.Sprintf("Task #%d %s added.", t.ID, t.Title))
			}),
		},
	}
}

func (b *builder) setRole() state.Command {
	roles := []string{string(state.RoleAdmin), string(state.RoleTeacher), string(state.RoleStudent)}
	return state.Command{
		Name:         "/setrole",
		Description:  "Change the role of a user",
		AllowedRoles: []state.Role{state.RoleAdmin},
		Steps: []state.Step{
			b.userPrompt("Send the Telegram id of the user."),
			state.Prompt{
				Text:   "Choose the new role.",
				Markup: keyboard.ReplyButtons(keyboard.Chunk(roles, 3)...),
				Parse: func(c *state.Context, input string) error {
					role, ok := state.ParseRole(input)
					if !ok {
						return state.Invalid("role must be one of %s", strings.Join(roles, ", "))
					}
					c.Session.Set(keyRole, string(role))
					return nil
				},
			},
			state.Action(func(c *state.Context) error {
				target, _ := c.Session.Int64(keyTarget)
				role := state.Role(c.Session.String(keyRole))
				if err := b.svc.SetRole(c.Ctx, target, role); err != nil {
					return err
				}
				return c.Reply(fmt.Sprintf("User %d is now %s.", target, role), keyboard.RemoveKeyboard())
			}),
		},
	}
}

func (b *builder) ban() state.Command {
	return state.Command{
		Name:         "/ban",
		Description:  "Block a user from the bot",
		AllowedRoles: []state.Role{state.RoleAdmin},
		Steps: []state.Step{
			b.userPrompt("Send the Telegram id of the user to ban."),
			state.Prompt{
				TextFunc: func(c *state.Context) string {
					target, _ := c.Session.Int64(keyTarget)
					return fmt.Sprintf("Ban user %d?", target)
				},
				Markup: keyboard.YesNo(),
				Parse:  confirm,
			},
			state.Action(func(c *state.Context) error {
				target, _ := c.Session.Int64(keyTarget)
				if err := b.svc.Ban(c.Ctx, target); err != nil {
					return err
				}
				// Private chats share the user's Telegram id.
				if b.endSession != nil {
					b.endSession(target)
				}
				return c.Reply(fmt.Sprintf("User %d is banned.", target), keyboard.RemoveKeyboard())
			}),
		},
	}
}
