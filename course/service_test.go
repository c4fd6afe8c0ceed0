package course

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/state"
)

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	return &Service{repo: repo, now: func() time.Time { return now }}, repo
}

func TestResolveUser(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	u, err := svc.ResolveUser(ctx, tghelpers.Profile{TelegramID: 5, ChatID: 5})
	require.NoError(t, err)
	assert.Equal(t, state.User{ID: 5, Role: state.RoleStudent}, u)

	require.NoError(t, repo.EnsureAdmin(ctx, 5))
	u, err = svc.ResolveUser(ctx, tghelpers.Profile{TelegramID: 5, ChatID: 5})
	require.NoError(t, err)
	assert.Equal(t, state.RoleAdmin, u.Role)

	repo.failOn = errors.New("db down")
	_, err = svc.ResolveUser(ctx, tghelpers.Profile{TelegramID: 5})
	assert.Error(t, err)
}

func TestIsBanned(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	banned, err := svc.IsBanned(ctx, 9)
	require.NoError(t, err)
	assert.False(t, banned)

	require.ErrorIs(t, svc.Ban(ctx, 9), ErrNotFound)
	_, err = svc.Register(ctx, tghelpers.Profile{TelegramID: 9, ChatID: 9})
	require.NoError(t, err)
	require.NoError(t, svc.Ban(ctx, 9))

	banned, err = svc.IsBanned(ctx, 9)
	require.NoError(t, err)
	assert.True(t, banned)
}

func TestCheckSheetURL(t *testing.T) {
	_, err := CheckSheetURL("https://docs.google.com/spreadsheets/d/abc/edit")
	assert.NoError(t, err)

	for _, bad := range []string{
		"",
		"not a url",
		"http://docs.google.com/spreadsheets/d/abc",
		"https://example.com/spreadsheets/d/abc",
		"https://docs.google.com/document/d/abc",
	} {
		_, err := CheckSheetURL(bad)
		assert.ErrorIs(t, err, ErrSheetURL, bad)
	}
}

func TestCreateGroup(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	g, err := svc.CreateGroup(ctx, "  Go 101 ", sheet)
	require.NoError(t, err)
	assert.Equal(t, "Go 101", g.Name)
	require.Len(t, repo.imports, 1)
	assert.Equal(t, g.ID, repo.imports[0].GroupID)

	_, err = svc.CreateGroup(ctx, "Go 101", sheet)
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = svc.CreateGroup(ctx, " ", sheet)
	assert.ErrorIs(t, err, ErrEmptyName)
	_, err = svc.CreateGroup(ctx, "Other", "https://example.com")
	assert.ErrorIs(t, err, ErrSheetURL)
}

func TestAddLessonAndTasks(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, "Go 101", sheet)
	require.NoError(t, err)

	_, err = svc.AddLesson(ctx, g.ID, "Intro", svc.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, ErrPastDate)
	_, err = svc.AddLesson(ctx, 999, "Intro", svc.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	l, err := svc.AddLesson(ctx, g.ID, "Intro", svc.Now().Add(48*time.Hour))
	require.NoError(t, err)
	task, err := svc.AddTask(ctx, l.ID, "Hello world", "  print it  ")
	require.NoError(t, err)
	assert.Equal(t, "print it", task.Description)

	p := tghelpers.Profile{TelegramID: 3, ChatID: 3, FullName: "Ada"}
	_, _, err = svc.MyTasks(ctx, 3)
	assert.ErrorIs(t, err, ErrNoGroup)

	joined, err := svc.Join(ctx, p, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, joined.ID)

	group, tasks, err := svc.MyTasks(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Go 101", group.Name)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Intro", tasks[0].LessonTitle)
}

func TestJoinUnknownGroup(t *testing.T) {
	svc, repo := newTestService()
	_, err := svc.Join(context.Background(), tghelpers.Profile{TelegramID: 3, ChatID: 3}, 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, repo.users, "user is not registered when the group is missing")
}

func TestSetRole(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	_, err := svc.Register(ctx, tghelpers.Profile{TelegramID: 4, ChatID: 4})
	require.NoError(t, err)

	require.NoError(t, svc.SetRole(ctx, 4, state.RoleTeacher))
	assert.Equal(t, state.RoleTeacher, repo.users[4].Role)
	assert.ErrorIs(t, svc.SetRole(ctx, 5, state.RoleTeacher), ErrNotFound)
}

func TestSeedAdmins(t *testing.T) {
	repo := newMemRepo()
	require.NoError(t, seedAdmins(context.Background(), repo, []int64{1, 2}))
	assert.Equal(t, state.RoleAdmin, repo.users[1].Role)
	assert.Equal(t, state.RoleAdmin, repo.users[2].Role)
	assert.NotNil(t, AdminSeeder(nil))
}
