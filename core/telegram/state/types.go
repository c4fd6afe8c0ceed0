package state

import (
	"context"
	"strings"
)

// ExitKeyword force-terminates the session running in a chat.
const ExitKeyword = "/exit"

// Role tags a user for command authorization.
type Role string

const (
	// RoleAdmin manages users, groups and course content.
	RoleAdmin Role = "ADMIN"
	// RoleTeacher manages course content.
	RoleTeacher Role = "TEACHER"
	// RoleStudent is the default role of every registered user.
	RoleStudent Role = "STUDENT"
)

// ParseRole normalizes a role name. Unknown names report false.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleTeacher:
		return RoleTeacher, true
	case RoleStudent:
		return RoleStudent, true
	}
	return "", false
}

// User is the authenticated sender of a message.
type User struct {
	ID   int64
	Role Role
}

// Message is a single inbound chat message.
type Message struct {
	ChatID int64
	Text   string
	// Args holds the whitespace-split text; Args[0] is the command token.
	Args []string
	User User
	// Raw carries the transport update for steps that need it.
	Raw any
}

// ParseMessage builds a Message, splitting text into arguments.
func ParseMessage(chatID int64, text string, user User, raw any) Message {
	text = strings.TrimSpace(text)
	return Message{
		ChatID: chatID,
		Text:   text,
		Args:   strings.Fields(text),
		User:   user,
		Raw:    raw,
	}
}

// CommandToken returns the first argument or an empty string.
func (m Message) CommandToken() string {
	if len(m.Args) == 0 {
		return ""
	}
	return m.Args[0]
}

// Replier delivers text back to a chat. Markup is passed through untouched and
// may be nil.
type Replier interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup any) error
}

// ReplierFunc adapts a function to the Replier interface.
type ReplierFunc func(ctx context.Context, chatID int64, text string, markup any) error

// SendMessage calls f.
func (f ReplierFunc) SendMessage(ctx context.Context, chatID int64, text string, markup any) error {
	return f(ctx, chatID, text, markup)
}

// Texts holds every message the executor sends on its own behalf.
type Texts struct {
	UnknownCommand  string
	RoleNotAllowed  string
	NoCommandToExit string
	// Terminated, Completed and Cancelled are format strings receiving the
	// command name.
	Terminated string
	Completed  string
	Cancelled  string
	// WrongInput receives the validation message.
	WrongInput string
}

// DefaultTexts returns the stock engine messages.
func DefaultTexts() Texts {
	return Texts{
		UnknownCommand:  "Unknown command.",
		RoleNotAllowed:  "Command is not allowed for your role.",
		NoCommandToExit: "There are no commands to exit.",
		Terminated:      "Command %s terminated.",
		Completed:       "Command %s completed.",
		Cancelled:       "Command %s cancelled.",
		WrongInput:      "Wrong input: %s",
	}
}

func (t Texts) withDefaults() Texts {
	d := DefaultTexts()
	if t.UnknownCommand == "" {
		t.UnknownCommand = d.UnknownCommand
	}
	if t.RoleNotAllowed == "" {
		t.RoleNotAllowed = d.RoleNotAllowed
	}
	if t.NoCommandToExit == "" {
		t.NoCommandToExit = d.NoCommandToExit
	}
	if t.Terminated == "" {
		t.Terminated = d.Terminated
	}
	if t.Cancelled == "" {
		t.Cancelled = d.Cancelled
	}
	if t.Completed == "" {
		t.Completed = d.Completed
	}
	if t.WrongInput == "" {
		t.WrongInput = d.WrongInput
	}
	return t
}
