package bot

import (
	"github.com/mymmrac/telego"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
)

// convert maps a Telegram message to a chat.Message. Channel posts and
// messages without an author are not supported.
func convert(msg telego.Message, selfID int64) (chat.Message, bool) {
	if msg.From == nil {
		return chat.Message{}, false
	}

	var chatType chat.ChatType
	switch msg.Chat.Type {
	case telego.ChatTypePrivate:
		chatType = chat.Private
	case telego.ChatTypeGroup, telego.ChatTypeSupergroup:
		chatType = chat.Group
	default:
		return chat.Message{}, false
	}

	out := chat.Message{
		ID:        msg.MessageID,
		ChatID:    msg.Chat.ID,
		ChatType:  chatType,
		ChatTitle: msg.Chat.Title,
		From:      userOf(*msg.From),
		SelfSent:  msg.From.ID == selfID,
		Content:   content(msg, selfID),
		Mentions:  mentioned(msg),
	}

	if reply := msg.ReplyToMessage; reply != nil {
		quoted := &chat.Quoted{MessageID: reply.MessageID, Content: content(*reply, selfID)}
		if reply.From != nil {
			quoted.From = userOf(*reply.From)
		}
		out.Reply = quoted
	}

	return out, true
}

func content(msg telego.Message, selfID int64) chat.Content {
	switch {
	case len(msg.NewChatMembers) > 0 || msg.LeftChatMember != nil:
		var m chat.Membership
		for _, u := range msg.NewChatMembers {
			if u.ID != selfID {
				m.Joined = append(m.Joined, userOf(u))
			}
		}
		if left := msg.LeftChatMember; left != nil && left.ID != selfID {
			m.Left = append(m.Left, userOf(*left))
		}
		return m
	case msg.Sticker != nil:
		return chat.Sticker{Emoji: msg.Sticker.Emoji}
	case len(msg.Photo) > 0:
		return chat.Media{Kind: chat.Photo, Caption: msg.Caption}
	case msg.Animation != nil:
		return chat.Media{Kind: chat.Animation, Caption: msg.Caption}
	case msg.Video != nil:
		return chat.Media{Kind: chat.Video, Caption: msg.Caption}
	case msg.Voice != nil:
		return chat.Media{Kind: chat.Voice, Caption: msg.Caption}
	case msg.Audio != nil:
		return chat.Media{Kind: chat.Audio, Caption: msg.Caption}
	case msg.Document != nil:
		return chat.Media{Kind: chat.Document, Caption: msg.Caption}
	default:
		return chat.Text{Body: msg.Text}
	}
}

// mentioned returns users referenced by text mentions. Plain @username mentions
// carry no user id and are left out.
func mentioned(msg telego.Message) []chat.User {
	entities := msg.Entities
	if len(entities) == 0 {
		entities = msg.CaptionEntities
	}

	var users []chat.User
	for _, e := range entities {
		if e.Type == telego.EntityTypeTextMention && e.User != nil {
			users = append(users, userOf(*e.User))
		}
	}
	return users
}

func userOf(u telego.User) chat.User {
	return chat.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
	}
}
