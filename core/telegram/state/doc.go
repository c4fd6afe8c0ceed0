// Package state runs multi-step bot commands as per-chat sessions.
//
// A Command is an ordered list of Steps. The Executor keeps at most one Session
// per chat, feeds each incoming message to the current step, advances through
// steps that need no input, and drops the session when the steps run out, when
// the user sends /exit, or when the Reaper finds it idle for too long.
//
// The package does not depend on a particular Telegram client: replies leave
// through the Replier interface and updates arrive as Message values.
package state
