package state

// Step is one stage of a command. A single Step value serves every chat that
// runs the command, so implementations must keep per-chat data in the Session.
type Step interface {
	// Enter runs when the session reaches the step.
	Enter(c *Context) error
	// HandleInput consumes the user's reply. Return a ValidationError to keep
	// the session on this step.
	HandleInput(c *Context) error
	// InputNeeded reports whether the executor waits for a reply after Enter.
	InputNeeded() bool
}

// Command is a named, ordered list of steps.
type Command struct {
	Name        string
	Description string
	Steps       []Step
	// AllowedRoles restricts who may start the command; empty means anyone.
	AllowedRoles []Role
	// Hidden keeps the command out of menus and help listings.
	Hidden bool
}

// Allows reports whether role may start the command.
func (c Command) Allows(role Role) bool {
	if len(c.AllowedRoles) == 0 {
		return true
	}
	for _, r := range c.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Prompt sends Text and waits for a reply. Parse validates the reply and
// stores what it needs in the session; a nil Parse accepts anything and
// stores the raw text under Key.
type Prompt struct {
	Text string
	// TextFunc overrides Text when the prompt depends on earlier answers.
	TextFunc func(c *Context) string
	Markup   any
	Key      string
	Parse    func(c *Context, input string) error
}

// Enter sends the prompt.
func (p Prompt) Enter(c *Context) error {
	text := p.Text
	if p.TextFunc != nil {
		text = p.TextFunc(c)
	}
	return c.Reply(text, p.Markup)
}

// HandleInput runs Parse or stores the raw text.
func (p Prompt) HandleInput(c *Context) error {
	if p.Parse != nil {
		return p.Parse(c, c.Text())
	}
	if p.Key != "" {
		c.Session.Set(p.Key, c.Text())
	}
	return nil
}

// InputNeeded is always true for prompts.
func (Prompt) InputNeeded() bool { return true }

// Action is a step that runs without waiting for the user.
type Action func(c *Context) error

// Enter runs the action.
func (a Action) Enter(c *Context) error { return a(c) }

// HandleInput is never called for actions.
func (Action) HandleInput(*Context) error { return nil }

// InputNeeded is always false for actions.
func (Action) InputNeeded() bool { return false }

// StepFuncs builds a Step from plain functions. A nil OnInput accepts any
// reply; InputNeeded follows Input.
type StepFuncs struct {
	OnEnter func(c *Context) error
	OnInput func(c *Context) error
	Input   bool
}

// Enter calls OnEnter.
func (s StepFuncs) Enter(c *Context) error {
	if s.OnEnter == nil {
		return nil
	}
	return s.OnEnter(c)
}

// HandleInput calls OnInput.
func (s StepFuncs) HandleInput(c *Context) error {
	if s.OnInput == nil {
		return nil
	}
	return s.OnInput(c)
}

// InputNeeded reports Input.
func (s StepFuncs) InputNeeded() bool { return s.Input }
