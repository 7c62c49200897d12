package dispatch

import (
	"context"
	"strings"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/roles"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

// Request is one routed command together with everything resolved for it.
type Request struct {
	Message chat.Message
	Command string
	Args    []string
	// Raw is the unsplit argument text.
	Raw      string
	Role     roles.Role
	Snapshot *storage.Snapshot
	Prefix   string

	sender chat.Sender
}

// NewRequest builds a request outside of the pipeline, mostly for handler tests.
func NewRequest(msg chat.Message, cmd Command, role roles.Role, snap *storage.Snapshot, sender chat.Sender) *Request {
	prefix := storage.DefaultPrefix
	if snap != nil {
		prefix = snap.Prefix
	}
	return &Request{
		Message:  msg,
		Command:  cmd.Name,
		Args:     cmd.Args,
		Raw:      cmd.Raw,
		Role:     role,
		Snapshot: snap,
		Prefix:   prefix,
		sender:   sender,
	}
}

// Arg returns the i-th argument or "".
func (r *Request) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// ChatID is the chat the command was sent to.
func (r *Request) ChatID() int64 {
	return r.Message.ChatID
}

// Sender is the author of the command.
func (r *Request) Sender() chat.User {
	return r.Message.From
}

// Group returns the stored settings of the current chat.
func (r *Request) Group() (storage.GroupSettings, bool) {
	if r.Snapshot == nil {
		return storage.GroupSettings{}, false
	}
	return r.Snapshot.Group(r.Message.ChatID)
}

// Reply sends text to the chat as a reply to the command message.
func (r *Request) Reply(ctx context.Context, text string, mentions ...chat.User) error {
	return r.sender.Send(ctx, chat.Outgoing{
		ChatID:   r.Message.ChatID,
		Text:     text,
		ReplyTo:  r.Message.ID,
		Mentions: mentions,
	})
}

// Send sends text to another chat.
func (r *Request) Send(ctx context.Context, chatID int64, text string, mentions ...chat.User) error {
	return r.sender.Send(ctx, chat.Outgoing{ChatID: chatID, Text: text, Mentions: mentions})
}

// React marks the command message with reaction. Failures are logged only.
func (r *Request) React(ctx context.Context, reaction chat.Reaction) {
	if err := r.sender.React(ctx, r.Message.ChatID, r.Message.ID, reaction); err != nil {
		telemetry.Logger(ctx).Warn("dispatch: Failed to react",
			"error", err, "chat_id", r.Message.ChatID, "command", r.Command, "reaction", string(reaction))
	}
}

// Usage formats a usage hint with the effective prefix.
func (r *Request) Usage(args string) string {
	return strings.TrimSpace("Usage: " + r.Prefix + r.Command + " " + args)
}
