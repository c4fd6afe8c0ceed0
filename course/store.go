package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/coursebot/core/telegram/state"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"

	userColumns   = `id, telegram_id, chat_id, username, full_name, role, banned, group_id, created_at`
	groupColumns  = `id, name, sheet_url, created_at`
	lessonColumns = `id, group_id, title, deadline, created_at`
	taskColumns   = `id, lesson_id, title, description, created_at`
)

// Store is the Postgres persistence layer.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open connection pool.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// mapErr converts driver errors into the package sentinels.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func affected(op string, res sql.Result, err error) error {
	if err != nil {
		return mapErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// UserByTelegramID loads a user by Telegram account id.
func (s *Store) UserByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE telegram_id = $1`, telegramID)
	return u, mapErr("user by telegram id", err)
}

// UpsertUser registers u or refreshes its chat and name fields. Role, ban and
// group are never overwritten.
func (s *Store) UpsertUser(ctx context.Context, u User) (User, error) {
	if u.Role == "" {
		u.Role = state.RoleStudent
	}
	var out User
	err := s.db.GetContext(ctx, &out, `
		INSERT INTO users (telegram_id, chat_id, username, full_name, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO UPDATE
		SET chat_id = EXCLUDED.chat_id, username = EXCLUDED.username, full_name = EXCLUDED.full_name
		RETURNING `+userColumns,
		u.TelegramID, u.ChatID, u.Username, u.FullName, string(u.Role))
	return out, mapErr("upsert user", err)
}

// EnsureAdmin creates or promotes telegramID to ADMIN.
func (s *Store) EnsureAdmin(ctx context.Context, telegramID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, chat_id, role) VALUES ($1, $1, $2)
		ON CONFLICT (telegram_id) DO UPDATE SET role = EXCLUDED.role`,
		telegramID, string(state.RoleAdmin))
	return mapErr("ensure admin", err)
}

// SetRole changes the role of an existing user.
func (s *Store) SetRole(ctx context.Context, telegramID int64, role state.Role) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = $2 WHERE telegram_id = $1`, telegramID, string(role))
	return affected("set role", res, err)
}

// SetBanned bans or unbans an existing user.
func (s *Store) SetBanned(ctx context.Context, telegramID int64, banned bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET banned = $2 WHERE telegram_id = $1`, telegramID, banned)
	return affected("set banned", res, err)
}

// AssignGroup moves a user into a group. A missing user or group yields
// ErrNotFound.
func (s *Store) AssignGroup(ctx context.Context, telegramID, groupID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET group_id = $2 WHERE telegram_id = $1`, telegramID, groupID)
	return affected("assign group", res, err)
}

// CreateGroupWithImport inserts a group and queues the import of its
// spreadsheet in one transaction.
func (s *Store) CreateGroupWithImport(ctx context.Context, name, sheetURL string) (Group, ImportRequest, error) {
	var (
		g   Group
		req ImportRequest
	)
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return g, req, mapErr("create group", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.GetContext(ctx, &g,
		`INSERT INTO groups (name, sheet_url) VALUES ($1, $2) RETURNING `+groupColumns,
		name, sheetURL); err != nil {
		return g, req, mapErr("create group", err)
	}
	req, err = enqueueImport(ctx, tx, g.ID, sheetURL)
	if err != nil {
		return g, req, err
	}
	if err := tx.Commit(); err != nil {
		return g, req, mapErr("create group", err)
	}
	return g, req, nil
}

// EnqueueImport queues a spreadsheet import for an existing group.
func (s *Store) EnqueueImport(ctx context.Context, groupID int64, sheetURL string) (ImportRequest, error) {
	return enqueueImport(ctx, s.db, groupID, sheetURL)
}

func enqueueImport(ctx context.Context, q sqlx.QueryerContext, groupID int64, sheetURL string) (ImportRequest, error) {
	var req ImportRequest
	err := sqlx.GetContext(ctx, q, &req, `
		INSERT INTO import_requests (id, group_id, sheet_url, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, group_id, sheet_url, status, created_at`,
		uuid.NewString(), groupID, sheetURL, string(ImportPending))
	return req, mapErr("enqueue import", err)
}

// GroupByID loads a group.
func (s *Store) GroupByID(ctx context.Context, id int64) (Group, error) {
	var g Group
	err := s.db.GetContext(ctx, &g, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
	return g, mapErr("group by id", err)
}

// ListGroups returns all groups ordered by name.
func (s *Store) ListGroups(ctx context.Context) ([]Group, error) {
	var gs []Group
	err := s.db.SelectContext(ctx, &gs, `SELECT `+groupColumns+` FROM groups ORDER BY name`)
	return gs, mapErr("list groups", err)
}

// CreateLesson inserts a lesson. An unknown group yields ErrNotFound and a
// repeated title within the group ErrDuplicate.
func (s *Store) CreateLesson(ctx context.Context, groupID int64, title string, deadline time.Time) (Lesson, error) {
	var l Lesson
	err := s.db.GetContext(ctx, &l,
		`INSERT INTO lessons (group_id, title, deadline) VALUES ($1, $2, $3) RETURNING `+lessonColumns,
		groupID, title, deadline)
	return l, mapErr("create lesson", err)
}

// LessonByID loads a lesson.
func (s *Store) LessonByID(ctx context.Context, id int64) (Lesson, error) {
	var l Lesson
	err := s.db.GetContext(ctx, &l, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, id)
	return l, mapErr("lesson by id", err)
}

// LessonsByGroup lists the lessons of a group by deadline.
func (s *Store) LessonsByGroup(ctx context.Context, groupID int64) ([]Lesson, error) {
	var ls []Lesson
	err := s.db.SelectContext(ctx, &ls,
		`SELECT `+lessonColumns+` FROM lessons WHERE group_id = $1 ORDER BY deadline, id`, groupID)
	return ls, mapErr("lessons by group", err)
}

// CreateTask inserts a task.
func (s *Store) CreateTask(ctx context.Context, lessonID int64, title, description string) (Task, error) {
	var t Task
	err := s.db.GetContext(ctx, &t,
		`INSERT INTO tasks (lesson_id, title, description) VALUES ($1, $2, $3) RETURNING `+taskColumns,
		lessonID, title, description)
	return t, mapErr("create task", err)
}

// TasksForGroup lists every task of a group's lessons, earliest deadline
// first.
func (s *Store) TasksForGroup(ctx context.Context, groupID int64) ([]TaskView, error) {
	var ts []TaskView
	err := s.db.SelectContext(ctx, &ts, `
		SELECT t.id, t.lesson_id, t.title, t.description, t.created_at,
		       l.title AS lesson_title, l.deadline
		FROM tasks t
		JOIN lessons l ON l.id = t.lesson_id
		WHERE l.group_id = $1
		ORDER BY l.deadline, t.id`, groupID)
	return ts, mapErr("tasks for group", err)
}
