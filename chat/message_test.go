package chat

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		text    string
		command string
	}{
		{
			name:    "text",
			msg:     Message{Content: Text{Body: "+ping"}},
			text:    "+ping",
			command: "+ping",
		},
		{
			name:    "photo caption",
			msg:     Message{Content: Media{Kind: Photo, Caption: "see www.example.com"}},
			text:    "see www.example.com",
			command: "see www.example.com",
		},
		{
			name: "sticker replying to a link falls back to quoted text",
			msg: Message{
				Content: Sticker{Emoji: "😀"},
				Reply:   &Quoted{MessageID: 3, Content: Text{Body: "https://spam.example"}},
			},
			text:    "https://spam.example",
			command: "",
		},
		{
			name:    "own text wins over quoted",
			msg:     Message{Content: Text{Body: "hello"}, Reply: &Quoted{Content: Text{Body: "quoted"}}},
			text:    "hello",
			command: "hello",
		},
		{
			name: "membership event",
			msg:  Message{Content: Membership{Joined: []User{{ID: 1}}}},
		},
		{
			name: "nil content",
			msg:  Message{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.PlainText(); got != tt.text {
				t.Errorf("PlainText() = %q, want %q", got, tt.text)
			}
			if got := tt.msg.Command(); got != tt.command {
				t.Errorf("Command() = %q, want %q", got, tt.command)
			}
		})
	}
}

func TestTarget(t *testing.T) {
	replied := User{ID: 10, FirstName: "Replied"}
	mentioned := User{ID: 20, FirstName: "Mentioned"}

	msg := Message{Reply: &Quoted{From: replied}, Mentions: []User{mentioned}}
	if got, ok := msg.Target(); !ok || got.ID != replied.ID {
		t.Errorf("Target() = %+v, %v; want replied user", got, ok)
	}

	msg = Message{Mentions: []User{mentioned}}
	if got, ok := msg.Target(); !ok || got.ID != mentioned.ID {
		t.Errorf("Target() = %+v, %v; want mentioned user", got, ok)
	}

	if _, ok := (Message{}).Target(); ok {
		t.Error("Target() on a plain message must report false")
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		user User
		want string
	}{
		{User{ID: 1, FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{User{ID: 2, FirstName: "Ada"}, "Ada"},
		{User{ID: 3, Username: "ada"}, "ada"},
		{User{ID: 4}, "4"},
	}
	for _, tt := range tests {
		if got := tt.user.DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tt.user, got, tt.want)
		}
	}

	if got := Mention(User{ID: 42}); got != "@42" {
		t.Errorf("Mention() = %q", got)
	}
}
