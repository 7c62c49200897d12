package chat

import "context"

// Reaction is a short emoji signalling the outcome of a command.
type Reaction string

const (
	ReactionOK      Reaction = "👍"
	ReactionFailed  Reaction = "👎"
	ReactionDenied  Reaction = "🙈"
	ReactionStarted Reaction = "🎉"
	ReactionWon     Reaction = "🏆"
	ReactionWaiting Reaction = "👀"
	ReactionWarning Reaction = "😡"
)

// Outgoing is a text reply. Mentions bind Mention tokens in Text to users.
type Outgoing struct {
	ChatID   int64
	Text     string
	ReplyTo  int
	Mentions []User
}

// Sender delivers replies.
type Sender interface {
	Send(ctx context.Context, msg Outgoing) error
	React(ctx context.Context, chatID int64, messageID int, reaction Reaction) error
}

// Moderator removes content and members.
type Moderator interface {
	Delete(ctx context.Context, chatID int64, messageID int) error
	Kick(ctx context.Context, chatID, userID int64) error
}

// Directory answers questions about chat membership.
type Directory interface {
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	Admins(ctx context.Context, chatID int64) ([]User, error)
}

// Transport is everything the bot needs from the chat platform.
type Transport interface {
	Sender
	Moderator
	Directory
}
