package state

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/coursebot/core/logger"
)

// Registry maps command names to definitions. It is built once and read-only
// afterwards.
type Registry struct {
	byName map[string]Command
	sorted []Command
}

// NewRegistry validates and indexes commands. Duplicate names abort
// construction with a DuplicateCommandError.
func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{byName: make(map[string]Command, len(cmds))}
	for _, cmd := range cmds {
		name := strings.ToLower(strings.TrimSpace(cmd.Name))
		switch {
		case name == "":
			return nil, &InvalidCommandError{Name: cmd.Name, Reason: "empty name"}
		case name[0] != '/':
			return nil, &InvalidCommandError{Name: cmd.Name, Reason: "no slash prefix"}
		case name == ExitKeyword:
			return nil, &InvalidCommandError{Name: cmd.Name, Reason: "reserved"}
		case len(cmd.Steps) == 0:
			return nil, &InvalidCommandError{Name: cmd.Name, Reason: "no steps"}
		}
		if _, exists := r.byName[name]; exists {
			return nil, &DuplicateCommandError{Name: name}
		}
		cmd.Name = name
		r.byName[name] = cmd
		r.sorted = append(r.sorted, cmd)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].Name < r.sorted[j].Name })

	logger.Info(context.Background(), "tg.wire", "register.commands",
		slog.Int("count", len(r.sorted)),
	)
	return r, nil
}

// Get looks a command up by name. The leading slash is required; a @botname
// suffix is ignored.
func (r *Registry) Get(name string) (Command, bool) {
	if r == nil {
		return Command{}, false
	}
	cmd, ok := r.byName[normalizeName(name)]
	return cmd, ok
}

// All returns every command sorted by name.
func (r *Registry) All() []Command {
	if r == nil {
		return nil
	}
	return append([]Command(nil), r.sorted...)
}

// Visible returns the sorted commands a role may start, skipping hidden ones.
func (r *Registry) Visible(role Role) []Command {
	if r == nil {
		return nil
	}
	out := make([]Command, 0, len(r.sorted))
	for _, cmd := range r.sorted {
		if cmd.Hidden || !cmd.Allows(role) {
			continue
		}
		out = append(out, cmd)
	}
	return out
}

// normalizeName lowercases a command token and strips the @botname suffix
// Telegram appends in group chats.
func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if at := strings.IndexByte(name, '@'); at > 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}
