package state

import "context"

// Context is handed to every step call.
type Context struct {
	Ctx     context.Context
	Message Message
	Session *Session

	replier Replier
}

// Text returns the trimmed message text.
func (c *Context) Text() string { return c.Message.Text }

// Args returns the whitespace-split message text.
func (c *Context) Args() []string { return c.Message.Args }

// User returns the message sender.
func (c *Context) User() User { return c.Message.User }

// ChatID returns the chat the session belongs to.
func (c *Context) ChatID() int64 { return c.Message.ChatID }

// Reply sends text to the session's chat. At most one markup value is used.
func (c *Context) Reply(text string, markup ...any) error {
	var m any
	if len(markup) > 0 {
		m = markup[0]
	}
	return c.replier.SendMessage(c.Ctx, c.Message.ChatID, text, m)
}

// Finish ends the command after the current step returns, skipping the
// remaining steps.
func (c *Context) Finish() {
	c.Session.Finish()
}

// Cancel ends the command like Finish, but the closing message says the
// command was cancelled.
func (c *Context) Cancel() {
	c.Session.Cancel()
}
