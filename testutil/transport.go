package testutil

import (
	"context"
	"strings"
	"sync"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
)

// Reaction is a recorded reaction.
type Reaction struct {
	ChatID    int64
	MessageID int
	Reaction  chat.Reaction
}

// Recorder is a chat.Transport that records every call.
type Recorder struct {
	mu sync.Mutex

	Sent      []chat.Outgoing
	Reactions []Reaction
	Deleted   []int
	Kicked    []int64

	// AdminIDs answers IsAdmin and Admins.
	AdminIDs map[int64]bool
	// Failures for individual operations.
	SendErr   error
	ReactErr  error
	DeleteErr error
	KickErr   error
	AdminErr  error
}

var _ chat.Transport = (*Recorder)(nil)

// NewRecorder returns a transport where the given users are admins of every chat.
func NewRecorder(adminIDs ...int64) *Recorder {
	r := &Recorder{AdminIDs: make(map[int64]bool)}
	for _, id := range adminIDs {
		r.AdminIDs[id] = true
	}
	return r
}

func (r *Recorder) Send(_ context.Context, msg chat.Outgoing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return r.SendErr
	}
	r.Sent = append(r.Sent, msg)
	return nil
}

func (r *Recorder) React(_ context.Context, chatID int64, messageID int, reaction chat.Reaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ReactErr != nil {
		return r.ReactErr
	}
	r.Reactions = append(r.Reactions, Reaction{ChatID: chatID, MessageID: messageID, Reaction: reaction})
	return nil
}

func (r *Recorder) Delete(_ context.Context, _ int64, messageID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	r.Deleted = append(r.Deleted, messageID)
	return nil
}

func (r *Recorder) Kick(_ context.Context, _ int64, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.KickErr != nil {
		return r.KickErr
	}
	r.Kicked = append(r.Kicked, userID)
	return nil
}

func (r *Recorder) IsAdmin(_ context.Context, _ int64, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.AdminErr != nil {
		return false, r.AdminErr
	}
	return r.AdminIDs[userID], nil
}

func (r *Recorder) Admins(_ context.Context, _ int64) ([]chat.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.AdminErr != nil {
		return nil, r.AdminErr
	}
	var admins []chat.User
	for id := range r.AdminIDs {
		admins = append(admins, chat.User{ID: id})
	}
	return admins, nil
}

// Texts returns the text of every sent message in order.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	texts := make([]string, 0, len(r.Sent))
	for _, msg := range r.Sent {
		texts = append(texts, msg.Text)
	}
	return texts
}

// LastText returns the text of the most recent message, or "".
func (r *Recorder) LastText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Sent) == 0 {
		return ""
	}
	return r.Sent[len(r.Sent)-1].Text
}

// LastReaction returns the most recent reaction, or "".
func (r *Recorder) LastReaction() chat.Reaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Reactions) == 0 {
		return ""
	}
	return r.Reactions[len(r.Reactions)-1].Reaction
}

// SentContaining reports whether any sent text contains substr.
func (r *Recorder) SentContaining(substr string) bool {
	for _, text := range r.Texts() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

// Reset forgets recorded calls but keeps configuration.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Sent = nil
	r.Reactions = nil
	r.Deleted = nil
	r.Kicked = nil
}
