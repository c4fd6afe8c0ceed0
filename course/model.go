// Package course holds the educational domain behind the bot: users, groups,
// lessons and tasks persisted in Postgres.
package course

import (
	"errors"
	"time"

	"github.com/m3rciful/coursebot/core/telegram/state"
)

var (
	// ErrNotFound is returned when a looked up row does not exist.
	ErrNotFound = errors.New("course: not found")
	// ErrDuplicate is returned when an insert violates a unique constraint.
	ErrDuplicate = errors.New("course: already exists")
)

// User is a registered bot user.
type User struct {
	ID         int64      `db:"id"`
	TelegramID int64      `db:"telegram_id"`
	ChatID     int64      `db:"chat_id"`
	Username   string     `db:"username"`
	FullName   string     `db:"full_name"`
	Role       state.Role `db:"role"`
	Banned     bool       `db:"banned"`
	GroupID    *int64     `db:"group_id"`
	CreatedAt  time.Time  `db:"created_at"`
}

// Group is a cohort of students following the same lessons.
type Group struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	SheetURL  string    `db:"sheet_url"`
	CreatedAt time.Time `db:"created_at"`
}

// Lesson belongs to a group and has a submission deadline.
type Lesson struct {
	ID        int64     `db:"id"`
	GroupID   int64     `db:"group_id"`
	Title     string    `db:"title"`
	Deadline  time.Time `db:"deadline"`
	CreatedAt time.Time `db:"created_at"`
}

// Task is an assignment attached to a lesson.
type Task struct {
	ID          int64     `db:"id"`
	LessonID    int64     `db:"lesson_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// TaskView is a task joined with its lesson for listings.
type TaskView struct {
	Task
	LessonTitle string    `db:"lesson_title"`
	Deadline    time.Time `db:"deadline"`
}

// ImportStatus tracks a spreadsheet import request.
type ImportStatus string

const (
	ImportPending ImportStatus = "pending"
	ImportDone    ImportStatus = "done"
	ImportFailed  ImportStatus = "failed"
)

// ImportRequest asks the importer to load a group's roster from a spreadsheet.
type ImportRequest struct {
	ID        string       `db:"id"`
	GroupID   int64        `db:"group_id"`
	SheetURL  string       `db:"sheet_url"`
	Status    ImportStatus `db:"status"`
	CreatedAt time.Time    `db:"created_at"`
}
