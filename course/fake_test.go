package course

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/coursebot/core/telegram/state"
)

// memRepo is an in-memory repository for service tests.
type memRepo struct {
	mu      sync.Mutex
	users   map[int64]User
	groups  map[int64]Group
	lessons map[int64]Lesson
	tasks   []Task
	imports []ImportRequest
	nextID  int64
	failOn  error
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:   map[int64]User{},
		groups:  map[int64]Group{},
		lessons: map[int64]Lesson{},
	}
}

func (r *memRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *memRepo) UserByTelegramID(_ context.Context, telegramID int64) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil {
		return User{}, r.failOn
	}
	u, ok := r.users[telegramID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *memRepo) UpsertUser(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.users[u.TelegramID]; ok {
		cur.ChatID, cur.Username, cur.FullName = u.ChatID, u.Username, u.FullName
		r.users[u.TelegramID] = cur
		return cur, nil
	}
	if u.Role == "" {
		u.Role = state.RoleStudent
	}
	u.ID = r.id()
	r.users[u.TelegramID] = u
	return u, nil
}

func (r *memRepo) EnsureAdmin(_ context.Context, telegramID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[telegramID]
	u.TelegramID, u.ChatID, u.Role = telegramID, telegramID, state.RoleAdmin
	r.users[telegramID] = u
	return nil
}

func (r *memRepo) update(telegramID int64, fn func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[telegramID]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	r.users[telegramID] = u
	return nil
}

func (r *memRepo) SetRole(_ context.Context, telegramID int64, role state.Role) error {
	return r.update(telegramID, func(u *User) { u.Role = role })
}

func (r *memRepo) SetBanned(_ context.Context, telegramID int64, banned bool) error {
	return r.update(telegramID, func(u *User) { u.Banned = banned })
}

func (r *memRepo) AssignGroup(_ context.Context, telegramID, groupID int64) error {
	r.mu.Lock()
	_, ok := r.groups[groupID]
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return r.update(telegramID, func(u *User) { u.GroupID = &groupID })
}

func (r *memRepo) CreateGroupWithImport(_ context.Context, name, sheetURL string) (Group, ImportRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.groups {
		if g.Name == name {
			return Group{}, ImportRequest{}, ErrDuplicate
		}
	}
	g := Group{ID: r.id(), Name: name, SheetURL: sheetURL}
	r.groups[g.ID] = g
	req := ImportRequest{ID: "imp", GroupID: g.ID, SheetURL: sheetURL, Status: ImportPending}
	r.imports = append(r.imports, req)
	return g, req, nil
}

func (r *memRepo) GroupByID(_ context.Context, id int64) (Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[id]
	if !ok {
		return Group{}, ErrNotFound
	}
	return g, nil
}

func (r *memRepo) ListGroups(context.Context) ([]Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memRepo) CreateLesson(_ context.Context, groupID int64, title string, deadline time.Time) (Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[groupID]; !ok {
		return Lesson{}, ErrNotFound
	}
	l := Lesson{ID: r.id(), GroupID: groupID, Title: title, Deadline: deadline}
	r.lessons[l.ID] = l
	return l, nil
}

func (r *memRepo) LessonByID(_ context.Context, id int64) (Lesson, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lessons[id]
	if !ok {
		return Lesson{}, ErrNotFound
	}
	return l, nil
}

func (r *memRepo) CreateTask(_ context.Context, lessonID int64, title, description string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lessons[lessonID]; !ok {
		return Task{}, ErrNotFound
	}
	t := Task{ID: r.id(), LessonID: lessonID, Title: title, Description: description}
	r.tasks = append(r.tasks, t)
	return t, nil
}

func (r *memRepo) TasksForGroup(_ context.Context, groupID int64) ([]TaskView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TaskView
	for _, t := range r.tasks {
		l := r.lessons[t.LessonID]
		if l.GroupID == groupID {
			out = append(out, TaskView{Task: t, LessonTitle: l.Title, Deadline: l.Deadline})
		}
	}
	return out, nil
}
