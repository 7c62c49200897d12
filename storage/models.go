package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SchemaVersion is the persisted layout version written on migration.
const SchemaVersion = 1

// DefaultPrefix is used when no prefix has been stored yet.
const DefaultPrefix = "+"

// GroupSettings holds per-chat settings for a group the bot has seen.
type GroupSettings struct {
	ChatID      int64  `json:"chat_id"`
	Title       string `json:"title"`
	Approved    bool   `json:"approved"`
	// Blocked groups were rejected by the owner and no longer forward approval requests.
	Blocked     bool   `json:"blocked"`
	Antilink    bool   `json:"antilink"`
	Welcome     bool   `json:"welcome"`
	WelcomeText string `json:"welcome_text"`
	Goodbye     bool   `json:"goodbye"`
	GoodbyeText string `json:"goodbye_text"`
}

const (
	DefaultWelcomeText = "Welcome to the group!"
	DefaultGoodbyeText = "Goodbye! We are sorry to see you go."
)

// WelcomeMessage returns the custom welcome text or the default one.
func (g GroupSettings) WelcomeMessage() string {
	if g.WelcomeText != "" {
		return g.WelcomeText
	}
	return DefaultWelcomeText
}

// GoodbyeMessage returns the custom goodbye text or the default one.
func (g GroupSettings) GoodbyeMessage() string {
	if g.GoodbyeText != "" {
		return g.GoodbyeText
	}
	return DefaultGoodbyeText
}

// WarningKey addresses a warning counter of a user inside a chat.
type WarningKey struct {
	ChatID int64
	UserID int64
}

// String renders the key as "chat:user", the form used by key-value backends.
func (k WarningKey) String() string {
	return strconv.FormatInt(k.ChatID, 10) + ":" + strconv.FormatInt(k.UserID, 10)
}

// ParseWarningKey parses the "chat:user" form produced by WarningKey.String.
func ParseWarningKey(s string) (WarningKey, error) {
	chat, user, ok := strings.Cut(s, ":")
	if !ok {
		return WarningKey{}, fmt.Errorf("malformed warning key %q", s)
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return WarningKey{}, fmt.Errorf("malformed warning key %q: %w", s, err)
	}
	userID, err := strconv.ParseInt(user, 10, 64)
	if err != nil {
		return WarningKey{}, fmt.Errorf("malformed warning key %q: %w", s, err)
	}
	return WarningKey{ChatID: chatID, UserID: userID}, nil
}

// GameKey addresses the single session of one game kind in one chat.
type GameKey struct {
	Kind   string
	ChatID int64
}

// String renders the key as "kind:chat".
func (k GameKey) String() string {
	return k.Kind + ":" + strconv.FormatInt(k.ChatID, 10)
}

// ParseGameKey parses the "kind:chat" form produced by GameKey.String.
func ParseGameKey(s string) (GameKey, error) {
	kind, chat, ok := strings.Cut(s, ":")
	if !ok || kind == "" {
		return GameKey{}, fmt.Errorf("malformed game key %q", s)
	}
	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return GameKey{}, fmt.Errorf("malformed game key %q: %w", s, err)
	}
	return GameKey{Kind: kind, ChatID: chatID}, nil
}

// GameRecord is the persisted full state of one game session.
// State is the document produced by the game codec.
type GameRecord struct {
	Kind      string
	ChatID    int64
	State     []byte
	UpdatedAt time.Time
}

// Key returns the record's unique key.
func (r GameRecord) Key() GameKey {
	return GameKey{Kind: r.Kind, ChatID: r.ChatID}
}

// Snapshot is a point-in-time read of every aggregate.
type Snapshot struct {
	Groups   map[int64]GroupSettings
	Bans     map[int64]bool
	Warnings map[WarningKey]int
	Games    map[GameKey]GameRecord
	Prefix   string
}

// NewSnapshot returns an empty snapshot with initialized maps and the default prefix.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Groups:   make(map[int64]GroupSettings),
		Bans:     make(map[int64]bool),
		Warnings: make(map[WarningKey]int),
		Games:    make(map[GameKey]GameRecord),
		Prefix:   DefaultPrefix,
	}
}

// Group returns the settings of a chat and whether the chat is known.
func (s *Snapshot) Group(chatID int64) (GroupSettings, bool) {
	g, ok := s.Groups[chatID]
	return g, ok
}

// Banned reports whether a user is banned.
func (s *Snapshot) Banned(userID int64) bool {
	return s.Bans[userID]
}

// Warning returns the warning count of a user in a chat, 0 when absent.
func (s *Snapshot) Warning(chatID, userID int64) int {
	return s.Warnings[WarningKey{ChatID: chatID, UserID: userID}]
}
