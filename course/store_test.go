package course

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/coursebot/core/telegram/state"
)

const sheet = "https://docs.google.com/spreadsheets/d/abc/edit"

var userCols = []string{"id", "telegram_id", "chat_id", "username", "full_name", "role", "banned", "group_id", "created_at"}

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func TestStoreUserByTelegramID(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		setupMock func(sqlmock.Sqlmock)
		wantErr   error
		wantRole  state.Role
	}{
		{
			name: "found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM users WHERE telegram_id").
					WithArgs(int64(42)).
					WillReturnRows(sqlmock.NewRows(userCols).AddRow(1, 42, 42, "ada", "Ada L", "TEACHER", false, nil, now))
			},
			wantRole: state.RoleTeacher,
		},
		{
			name: "missing",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM users WHERE telegram_id").
					WithArgs(int64(42)).
					WillReturnError(sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := setupMockStore(t)
			tt.setupMock(mock)

			u, err := store.UserByTelegramID(context.Background(), 42)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantRole, u.Role)
				assert.Nil(t, u.GroupID)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStoreUpsertUserDefaultsToStudent(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectQuery("INSERT INTO users").
		WithArgs(int64(7), int64(7), "bob", "Bob", "STUDENT").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(3, 7, 7, "bob", "Bob", "STUDENT", false, 2, time.Now()))

	u, err := store.UpsertUser(context.Background(), User{TelegramID: 7, ChatID: 7, Username: "bob", FullName: "Bob"})
	require.NoError(t, err)
	require.NotNil(t, u.GroupID)
	assert.Equal(t, int64(2), *u.GroupID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateGroupWithImport(t *testing.T) {
	now := time.Now()
	t.Run("commits both rows", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO groups").
			WithArgs("Go 101", sheet).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "sheet_url", "created_at"}).AddRow(1, "Go 101", sheet, now))
		mock.ExpectQuery("INSERT INTO import_requests").
			WithArgs(sqlmock.AnyArg(), int64(1), sheet, "pending").
			WillReturnRows(sqlmock.NewRows([]string{"id", "group_id", "sheet_url", "status", "created_at"}).
				AddRow("4f1c1a7e-0000-4000-8000-000000000001", 1, sheet, "pending", now))
		mock.ExpectCommit()

		g, req, err := store.CreateGroupWithImport(context.Background(), "Go 101", sheet)
		require.NoError(t, err)
		assert.Equal(t, int64(1), g.ID)
		assert.Equal(t, ImportPending, req.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate name rolls back", func(t *testing.T) {
		store, mock := setupMockStore(t)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO groups").
			WillReturnError(&pq.Error{Code: "23505", Constraint: "groups_name_key"})
		mock.ExpectRollback()

		_, _, err := store.CreateGroupWithImport(context.Background(), "Go 101", sheet)
		require.ErrorIs(t, err, ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStoreUpdatesReportMissingRows(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectExec("UPDATE users SET role").
		WithArgs(int64(5), "ADMIN").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE users SET banned").
		WithArgs(int64(5), true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET group_id").
		WithArgs(int64(5), int64(99)).
		WillReturnError(&pq.Error{Code: "23503"})

	ctx := context.Background()
	require.ErrorIs(t, store.SetRole(ctx, 5, state.RoleAdmin), ErrNotFound)
	require.NoError(t, store.SetBanned(ctx, 5, true))
	require.ErrorIs(t, store.AssignGroup(ctx, 5, 99), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreTasksForGroup(t *testing.T) {
	store, mock := setupMockStore(t)
	deadline := time.Date(2026, 11, 1, 23, 59, 0, 0, time.UTC)
	mock.ExpectQuery("FROM tasks t JOIN lessons l").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "lesson_id", "title", "description", "created_at", "lesson_title", "deadline"}).
			AddRow(10, 4, "Slices", "Read the blog post", time.Now(), "Basics", deadline).
			AddRow(11, 4, "Maps", "", time.Now(), "Basics", deadline))

	tasks, err := store.TasksForGroup(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Slices", tasks[0].Title)
	assert.Equal(t, "Basics", tasks[0].LessonTitle)
	assert.Equal(t, deadline, tasks[1].Deadline)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateLessonUnknownGroup(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectQuery("INSERT INTO lessons").
		WillReturnError(&pq.Error{Code: "23503"})

	_, err := store.CreateLesson(context.Background(), 77, "Intro", time.Now())
	require.ErrorIs(t, err, ErrNotFound)
}
