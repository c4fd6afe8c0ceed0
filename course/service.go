package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/coursebot/core/bootstrap"
	"github.com/m3rciful/coursebot/core/logger"
	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/state"
)

const component = "service.course"

// Validation failures returned by the service. Commands show them to users.
var (
	ErrEmptyName  = errors.New("name must not be empty")
	ErrNameLength = errors.New("name is too long")
	ErrSheetURL   = errors.New("link must point to a Google Sheets document")
	ErrNoGroup    = errors.New("you are not in a group yet")
	ErrPastDate   = errors.New("deadline is in the past")
)

const maxNameLen = 128

type repository interface {
	UserByTelegramID(ctx context.Context, telegramID int64) (User, error)
	UpsertUser(ctx context.Context, u User) (User, error)
	EnsureAdmin(ctx context.Context, telegramID int64) error
	SetRole(ctx context.Context, telegramID int64, role state.Role) error
	SetBanned(ctx context.Context, telegramID int64, banned bool) error
	AssignGroup(ctx context.Context, telegramID, groupID int64) error
	CreateGroupWithImport(ctx context.Context, name, sheetURL string) (Group, ImportRequest, error)
	GroupByID(ctx context.Context, id int64) (Group, error)
	ListGroups(ctx context.Context) ([]Group, error)
	CreateLesson(ctx context.Context, groupID int64, title string, deadline time.Time) (Lesson, error)
	LessonByID(ctx context.Context, id int64) (Lesson, error)
	CreateTask(ctx context.Context, lessonID int64, title, description string) (Task, error)
	TasksForGroup(ctx context.Context, groupID int64) ([]TaskView, error)
}

// Service applies input rules on top of the store and logs every change.
type Service struct {
	repo repository
	now  func() time.Time
}

// NewService builds a service over the Postgres store.
func NewService(store *Store) *Service {
	return &Service{repo: store, now: time.Now}
}

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// ResolveUser returns the engine identity of the sender. Unregistered users
// are treated as students.
func (s *Service) ResolveUser(ctx context.Context, p tghelpers.Profile) (state.User, error) {
	u, err := s.repo.UserByTelegramID(ctx, p.TelegramID)
	switch {
	case errors.Is(err, ErrNotFound):
		return state.User{ID: p.TelegramID, Role: state.RoleStudent}, nil
	case err != nil:
		return state.User{}, err
	}
	return state.User{ID: u.TelegramID, Role: u.Role}, nil
}

// IsBanned reports whether telegramID is banned. Unknown users are not.
func (s *Service) IsBanned(ctx context.Context, telegramID int64) (bool, error) {
	u, err := s.repo.UserByTelegramID(ctx, telegramID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.Banned, nil
}

// Register records the sender or refreshes their profile.
func (s *Service) Register(ctx context.Context, p tghelpers.Profile) (User, error) {
	u, err := s.repo.UpsertUser(ctx, User{
		TelegramID: p.TelegramID,
		ChatID:     p.ChatID,
		Username:   p.Username,
		FullName:   p.FullName,
	})
	if err != nil {
		return User{}, err
	}
	logger.Info(ctx, component, "user.register",
		slog.Int64("target_id", u.TelegramID),
		slog.String("role", string(u.Role)),
	)
	return u, nil
}

// User loads a registered user.
func (s *Service) User(ctx context.Context, telegramID int64) (User, error) {
	return s.repo.UserByTelegramID(ctx, telegramID)
}

// CheckName trims and validates the name of a group, lesson or task.
func CheckName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", ErrEmptyName
	case len([]rune(name)) > maxNameLen:
		return "", ErrNameLength
	}
	return name, nil
}

// CheckSheetURL accepts https links to docs.google.com/spreadsheets.
func CheckSheetURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" || !strings.EqualFold(u.Host, "docs.google.com") ||
		!strings.HasPrefix(u.Path, "/spreadsheets/") {
		return "", ErrSheetURL
	}
	return u.String(), nil
}

// CreateGroup stores a group and queues its roster import.
func (s *Service) CreateGroup(ctx context.Context, name, sheetURL string) (Group, error) {
	name, err := CheckName(name)
	if err != nil {
		return Group{}, err
	}
	if sheetURL, err = CheckSheetURL(sheetURL); err != nil {
		return Group{}, err
	}
	g, req, err := s.repo.CreateGroupWithImport(ctx, name, sheetURL)
	if err != nil {
		return Group{}, err
	}
	logger.Info(ctx, component, "group.create",
		slog.Int64("group_id", g.ID),
		slog.String("import_id", req.ID),
	)
	return g, nil
}

// Groups lists all groups.
func (s *Service) Groups(ctx context.Context) ([]Group, error) {
	return s.repo.ListGroups(ctx)
}

// Group loads a group.
func (s *Service) Group(ctx context.Context, id int64) (Group, error) {
	return s.repo.GroupByID(ctx, id)
}

// Lesson loads a lesson.
func (s *Service) Lesson(ctx context.Context, id int64) (Lesson, error) {
	return s.repo.LessonByID(ctx, id)
}

// AddLesson stores a lesson. Deadlines before today are rejected.
func (s *Service) AddLesson(ctx context.Context, groupID int64, title string, deadline time.Time) (Lesson, error) {
	title, err := CheckName(title)
	if err != nil {
		return Lesson{}, err
	}
	if deadline.Before(s.now()) {
		return Lesson{}, ErrPastDate
	}
	l, err := s.repo.CreateLesson(ctx, groupID, title, deadline)
	if err != nil {
		return Lesson{}, err
	}
	logger.Info(ctx, component, "lesson.create",
		slog.Int64("lesson_id", l.ID),
		slog.Int64("group_id", groupID),
	)
	return l, nil
}

// AddTask stores a task under a lesson.
func (s *Service) AddTask(ctx context.Context, lessonID int64, title, description string) (Task, error) {
	title, err := CheckName(title)
	if err != nil {
		return Task{}, err
	}
	t, err := s.repo.CreateTask(ctx, lessonID, title, strings.TrimSpace(description))
	if err != nil {
		return Task{}, err
	}
	logger.Info(ctx, component, "task.create",
		slog.Int64("task_id", t.ID),
		slog.Int64("lesson_id", lessonID),
	)
	return t, nil
}

// Join registers the sender if needed and moves them into a group.
func (s *Service) Join(ctx context.Context, p tghelpers.Profile, groupID int64) (Group, error) {
	g, err := s.repo.GroupByID(ctx, groupID)
	if err != nil {
		return Group{}, err
	}
	if _, err := s.Register(ctx, p); err != nil {
		return Group{}, err
	}
	if err := s.repo.AssignGroup(ctx, p.TelegramID, groupID); err != nil {
		return Group{}, err
	}
	logger.Info(ctx, component, "group.join",
		slog.Int64("group_id", groupID),
		slog.Int64("target_id", p.TelegramID),
	)
	return g, nil
}

// MyTasks lists the tasks of the user's group.
func (s *Service) MyTasks(ctx context.Context, telegramID int64) (Group, []TaskView, error) {
	u, err := s.repo.UserByTelegramID(ctx, telegramID)
	if errors.Is(err, ErrNotFound) || (err == nil && u.GroupID == nil) {
		return Group{}, nil, ErrNoGroup
	}
	if err != nil {
		return Group{}, nil, err
	}
	g, err := s.repo.GroupByID(ctx, *u.GroupID)
	if err != nil {
		return Group{}, nil, err
	}
	tasks, err := s.repo.TasksForGroup(ctx, g.ID)
	if err != nil {
		return Group{}, nil, err
	}
	return g, tasks, nil
}

// SetRole changes a user's role.
func (s *Service) SetRole(ctx context.Context, telegramID int64, role state.Role) error {
	if err := s.repo.SetRole(ctx, telegramID, role); err != nil {
		return err
	}
	logger.Info(ctx, component, "user.set_role",
		slog.Int64("target_id", telegramID),
		slog.String("role", string(role)),
	)
	return nil
}

// Ban blocks a user from using the bot.
func (s *Service) Ban(ctx context.Context, telegramID int64) error {
	if err := s.repo.SetBanned(ctx, telegramID, true); err != nil {
		return err
	}
	logger.Warn(ctx, component, "user.ban", slog.Int64("target_id", telegramID))
	return nil
}

// AdminSeeder promotes the configured Telegram ids to ADMIN at startup.
func AdminSeeder(ids []int64) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		return seedAdmins(ctx, NewStore(db), ids)
	})
}

func seedAdmins(ctx context.Context, repo repository, ids []int64) error {
	for _, id := range ids {
		if err := repo.EnsureAdmin(ctx, id); err != nil {
			return fmt.Errorf("seed admin %d: %w", id, err)
		}
	}
	if len(ids) > 0 {
		logger.Info(ctx, component, "admins.seed", slog.Int("count", len(ids)))
	}
	return nil
}
