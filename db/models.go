package db

import "time"

// Group is the row form of a chat's group settings.
type Group struct {
	ChatID      int64 `gorm:"primaryKey;autoIncrement:false"`
	Title       string
	Approved    bool
	Blocked     bool
	Antilink    bool
	Welcome     bool
	WelcomeText string
	Goodbye     bool
	GoodbyeText string
	UpdatedAt   time.Time
}

// Ban marks a user as banned by its presence.
type Ban struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

// Warning counts link warnings of a user in a chat.
type Warning struct {
	ChatID    int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	Count     int
	UpdatedAt time.Time
}

// Game stores the full encoded state of one game session.
type Game struct {
	Kind      string `gorm:"primaryKey;size:32"`
	ChatID    int64  `gorm:"primaryKey;autoIncrement:false"`
	State     []byte
	UpdatedAt time.Time
}

// Setting is a named scalar (prefix, schema version).
type Setting struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value string
}
