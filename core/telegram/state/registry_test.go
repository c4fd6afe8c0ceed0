package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop() []Step { return []Step{Action(func(*Context) error { return nil })} }

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(
		Command{Name: "/start", Steps: noop()},
		Command{Name: "/START", Steps: noop()},
	)
	var dup *DuplicateCommandError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "/start", dup.Name)
}

func TestNewRegistry_Invalid(t *testing.T) {
	cases := map[string]Command{
		"empty name": {Name: " ", Steps: noop()},
		"no slash":   {Name: "start", Steps: noop()},
		"reserved":   {Name: ExitKeyword, Steps: noop()},
		"no steps":   {Name: "/empty"},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(cmd)
			var inv *InvalidCommandError
			require.ErrorAs(t, err, &inv)
		})
	}
}

func TestRegistry_Get(t *testing.T) {
	reg, err := NewRegistry(Command{Name: "/Help", Steps: noop()})
	require.NoError(t, err)

	for _, name := range []string{"/help", "/HELP", "/help@course_bot", " /help "} {
		cmd, ok := reg.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, "/help", cmd.Name)
	}
	for _, name := range []string{"", "help", "help@course_bot", "/nope"} {
		_, ok := reg.Get(name)
		assert.False(t, ok, name)
	}

	var nilReg *Registry
	_, ok := nilReg.Get("/help")
	assert.False(t, ok)
}

func TestRegistry_AllAndVisible(t *testing.T) {
	reg, err := NewRegistry(
		Command{Name: "/zeta", Steps: noop()},
		Command{Name: "/admin", Steps: noop(), AllowedRoles: []Role{RoleAdmin}},
		Command{Name: "/alpha", Steps: noop()},
		Command{Name: "/secret", Steps: noop(), Hidden: true},
	)
	require.NoError(t, err)

	names := func(cmds []Command) []string {
		out := make([]string, 0, len(cmds))
		for _, c := range cmds {
			out = append(out, c.Name)
		}
		return out
	}
	assert.Equal(t, []string{"/admin", "/alpha", "/secret", "/zeta"}, names(reg.All()))
	assert.Equal(t, []string{"/alpha", "/zeta"}, names(reg.Visible(RoleStudent)))
	assert.Equal(t, []string{"/admin", "/alpha", "/zeta"}, names(reg.Visible(RoleAdmin)))

	all := reg.All()
	all[0].Name = "/mutated"
	_, ok := reg.Get("/admin")
	assert.True(t, ok)
}

func TestCommand_Allows(t *testing.T) {
	open := Command{Name: "/x"}
	assert.True(t, open.Allows(RoleStudent))

	restricted := Command{Name: "/y", AllowedRoles: []Role{RoleTeacher, RoleAdmin}}
	assert.True(t, restricted.Allows(RoleTeacher))
	assert.False(t, restricted.Allows(RoleStudent))
	assert.False(t, restricted.Allows(""))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" teacher ")
	require.True(t, ok)
	assert.Equal(t, RoleTeacher, r)

	_, ok = ParseRole("janitor")
	assert.False(t, ok)
}

func TestParseMessage(t *testing.T) {
	m := ParseMessage(7, "  /join   42 ", User{ID: 1}, nil)
	assert.Equal(t, "/join   42", m.Text)
	assert.Equal(t, []string{"/join", "42"}, m.Args)
	assert.Equal(t, "/join", m.CommandToken())

	assert.Equal(t, "", ParseMessage(7, "   ", User{}, nil).CommandToken())
}
