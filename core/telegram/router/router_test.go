package router

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tghelpers "github.com/m3rciful/coursebot/core/telegram/helpers"
	"github.com/m3rciful/coursebot/core/telegram/sequencer"
	"github.com/m3rciful/coursebot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

type reply struct {
	chatID int64
	text   string
}

type recorder struct {
	mu   sync.Mutex
	msgs []reply
}

func (r *recorder) SendMessage(_ context.Context, chatID int64, text string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, reply{chatID, text})
	return nil
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		out = append(out, m.text)
	}
	return out
}

type users map[int64]state.Role

func (u users) ResolveUser(_ context.Context, p tghelpers.Profile) (state.User, error) {
	role, ok := u[p.TelegramID]
	if !ok {
		return state.User{}, errors.New("db down")
	}
	return state.User{ID: p.TelegramID, Role: role}, nil
}

func newUpdate(t *testing.T, id int, userID int64, text string) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	return bot.NewContext(tele.Update{
		ID: id,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID, FirstName: "Ada"},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	})
}

func newExecutor(t *testing.T, rec *recorder) *state.Executor {
	t.Helper()
	reg, err := state.NewRegistry(
		state.Command{Name: "/hello", Steps: []state.Step{
			state.Action(func(c *state.Context) error { return c.Reply("hi " + string(c.User().Role)) }),
		}},
		state.Command{Name: "/boom", Steps: []state.Step{
			state.Action(func(*state.Context) error { return errors.New("kaput") }),
		}},
		state.Command{Name: "/ask", Steps: []state.Step{
			state.Prompt{Text: "name?"},
		}},
	)
	require.NoError(t, err)
	return state.NewExecutor(reg, rec)
}

func handler(t *testing.T, exec *state.Executor, opts TextOptions) tele.HandlerFunc {
	t.Helper()
	routes := TextRoutes(exec, opts)
	require.Len(t, routes, 1)
	assert.Equal(t, tele.OnText, routes[0].Endpoint)
	return routes[0].Handler
}

func TestTextRouteRunsCommand(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, rec)
	h := handler(t, exec, TextOptions{Users: users{7: state.RoleTeacher}, Replier: rec})

	require.NoError(t, h(newUpdate(t, 1, 7, "/hello")))
	assert.Equal(t, []string{"hi TEACHER", "Command /hello completed."}, rec.texts())
}

func TestTextRouteContinuesSession(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, rec)
	h := handler(t, exec, TextOptions{Users: users{7: state.RoleStudent}, Replier: rec})

	require.NoError(t, h(newUpdate(t, 1, 7, "/ask")))
	name, ok := exec.Active(7)
	require.True(t, ok)
	assert.Equal(t, "/ask", name)

	require.NoError(t, h(newUpdate(t, 2, 7, "Ada")))
	_, ok = exec.Active(7)
	assert.False(t, ok)
}

func TestTextRouteStepFailure(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, rec)
	h := handler(t, exec, TextOptions{Users: users{7: state.RoleStudent}, Replier: rec, FailureText: "oops"})

	err := h(newUpdate(t, 1, 7, "/boom"))
	var serr *state.StepError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "/boom", serr.Command)
	assert.Equal(t, []string{"oops"}, rec.texts())
	assert.Zero(t, exec.Len())
}

func TestTextRouteResolveFailure(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, rec)
	h := handler(t, exec, TextOptions{Users: users{}, Replier: rec})

	require.Error(t, h(newUpdate(t, 1, 7, "/hello")))
	assert.Equal(t, []string{DefaultFailureText}, rec.texts())
}

func TestTextRouteMiddlewareOrder(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, rec)
	var order []string
	mw := func(name string) tele.MiddlewareFunc {
		return func(next tele.HandlerFunc) tele.HandlerFunc {
			return func(c tele.Context) error {
				order = append(order, name)
				return next(c)
			}
		}
	}
	h := handler(t, exec, TextOptions{
		Users:       users{7: state.RoleStudent},
		Replier:     rec,
		Middlewares: []tele.MiddlewareFunc{mw("outer"), nil, mw("inner")},
	})
	require.NoError(t, h(newUpdate(t, 1, 7, "/hello")))
	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestTextRouteSequencerKeepsChatOrder(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, rec)
	seq := sequencer.New(4)
	h := handler(t, exec, TextOptions{Users: users{7: state.RoleStudent}, Replier: rec, Sequencer: seq})

	require.NoError(t, h(newUpdate(t, 1, 7, "/ask")))
	require.NoError(t, h(newUpdate(t, 2, 7, "Ada")))
	require.NoError(t, h(newUpdate(t, 3, 7, "/hello")))
	seq.Close()

	assert.Equal(t, []string{"name?", "Command /ask completed.", "hi STUDENT", "Command /hello completed."}, rec.texts())
	assert.NoError(t, h(newUpdate(t, 4, 7, "/hello")), "closed sequencer drops quietly")
}

func TestUnknownMediaRoute(t *testing.T) {
	rec := &recorder{}
	exec := newExecutor(t, rec)
	called := false
	routes := TextRoutes(exec, TextOptions{UnknownMedia: func(tele.Context) error {
		called = true
		return nil
	}})
	require.Len(t, routes, 2)
	assert.Equal(t, tele.OnMedia, routes[1].Endpoint)
	require.NoError(t, routes[1].Handler(newUpdate(t, 1, 7, "")))
	assert.True(t, called)
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "addlesson", normalizeHandlerName("/AddLesson@course_bot"))
	assert.Equal(t, "unknown", normalizeHandlerName(""))
	assert.Equal(t, "unknown", normalizeHandlerName("/"))
}

type codedErr struct{}

func (codedErr) Error() string { return "x" }
func (codedErr) Code() string  { return "not found" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", deriveErrorCode(codedErr{}))
	assert.Equal(t, "STEPERROR", deriveErrorCode(&state.StepError{Err: nil}))
	assert.Equal(t, "", deriveErrorCode(nil))
}
