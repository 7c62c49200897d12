// Package chat describes inbound messages and the outbound capability the bot needs from a chat transport.
package chat

import (
	"strconv"
	"strings"
)

// ChatType distinguishes direct conversations from groups.
type ChatType int

const (
	Private ChatType = iota
	Group
)

// User is a chat participant.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	IsBot     bool
}

// DisplayName returns the best human-readable name of the user.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

// Mention returns the inline mention token of u. Transports replace it with a
// clickable mention when u is listed in Outgoing.Mentions.
func Mention(u User) string {
	return "@" + strconv.FormatInt(u.ID, 10)
}

// Content is the payload of a message. Every variant knows how to expose its plain text.
type Content interface {
	PlainText() string
}

// Text is a plain text message.
type Text struct {
	Body string
}

func (t Text) PlainText() string { return t.Body }

// MediaKind names the attachment type of a Media message.
type MediaKind string

const (
	Photo     MediaKind = "photo"
	Video     MediaKind = "video"
	Document  MediaKind = "document"
	Audio     MediaKind = "audio"
	Animation MediaKind = "animation"
	Voice     MediaKind = "voice"
)

// Media is an attachment with an optional caption.
type Media struct {
	Kind    MediaKind
	Caption string
}

func (m Media) PlainText() string { return m.Caption }

// Sticker carries no text.
type Sticker struct {
	Emoji string
}

func (Sticker) PlainText() string { return "" }

// Membership is a service message about users joining or leaving a group.
type Membership struct {
	Joined []User
	Left   []User
}

func (Membership) PlainText() string { return "" }

// Quoted is the message an inbound message replies to.
type Quoted struct {
	MessageID int
	From      User
	Content   Content
}

// Message is one inbound event.
type Message struct {
	ID        int
	ChatID    int64
	ChatType  ChatType
	ChatTitle string
	From      User
	// SelfSent marks messages authored by the bot account itself.
	SelfSent bool
	Content  Content
	Reply    *Quoted
	// Mentions holds users referenced by the message with a resolvable identity.
	Mentions []User
}

// IsGroup reports whether the message was posted in a group.
func (m Message) IsGroup() bool {
	return m.ChatType == Group
}

// Command returns the text used for command parsing: the message's own text
// or caption. Quoted content never forms a command.
func (m Message) Command() string {
	if m.Content == nil {
		return ""
	}
	return m.Content.PlainText()
}

// PlainText returns the best-effort text of the message for moderation:
// its own text or caption, falling back to the quoted message.
func (m Message) PlainText() string {
	if text := m.Command(); text != "" {
		return text
	}
	if m.Reply != nil && m.Reply.Content != nil {
		return m.Reply.Content.PlainText()
	}
	return ""
}

// Target returns the user the message points at: the author of the quoted
// message, else the first mention.
func (m Message) Target() (User, bool) {
	if m.Reply != nil && m.Reply.From.ID != 0 {
		return m.Reply.From, true
	}
	if len(m.Mentions) > 0 {
		return m.Mentions[0], true
	}
	return User{}, false
}
