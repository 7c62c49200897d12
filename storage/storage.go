package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/db"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

const prefixSetting = "prefix"

// Store is the persistence contract shared by the dispatch pipeline and the game engine.
// Every write is durable when it returns; every Remove is idempotent.
type Store interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	UpsertGroup(ctx context.Context, group GroupSettings) error
	RemoveGroup(ctx context.Context, chatID int64) error

	UpsertBan(ctx context.Context, userID int64) error
	RemoveBan(ctx context.Context, userID int64) error

	UpsertWarning(ctx context.Context, key WarningKey, count int) error
	RemoveWarning(ctx context.Context, key WarningKey) error

	Game(ctx context.Context, key GameKey) (GameRecord, error)
	UpsertGame(ctx context.Context, record GameRecord) error
	RemoveGame(ctx context.Context, key GameKey) error

	SetPrefix(ctx context.Context, prefix string) error

	Close() error
}

// Storage is the gorm-backed Store (sqlite or postgres).
type Storage struct {
	database *db.Database
	db       *gorm.DB
}

var _ Store = (*Storage)(nil)

func New(dialect db.Dialect, dsn string) (*Storage, error) {
	database, err := db.NewDatabase(dialect, dsn)
	if err != nil {
		slog.Error("storage: Failed to connect to database", "error", err, "dialect", dialect)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(SchemaVersion); err != nil {
		_ = database.Close()
		return nil, err
	}

	return &Storage{database: database, db: database.DB()}, nil
}

// LoadSnapshot reads every aggregate.
func (s *Storage) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	tx := s.db.WithContext(ctx)
	snapshot := NewSnapshot()

	var groups []db.Group
	if err := tx.Find(&groups).Error; err != nil {
		telemetry.Logger(ctx).Error("storage: Failed to load groups", "error", err)
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}
	for _, g := range groups {
		snapshot.Groups[g.ChatID] = groupFromRow(g)
	}

	var bans []db.Ban
	if err := tx.Find(&bans).Error; err != nil {
		telemetry.Logger(ctx).Error("storage: Failed to load bans", "error", err)
		return nil, fmt.Errorf("failed to load bans: %w", err)
	}
	for _, b := range bans {
		snapshot.Bans[b.UserID] = true
	}

	var warnings []db.Warning
	if err := tx.Find(&warnings).Error; err != nil {
		telemetry.Logger(ctx).Error("storage: Failed to load warnings", "error", err)
		return nil, fmt.Errorf("failed to load warnings: %w", err)
	}
	for _, w := range warnings {
		if w.Count > 0 {
			snapshot.Warnings[WarningKey{ChatID: w.ChatID, UserID: w.UserID}] = w.Count
		}
	}

	var games []db.Game
	if err := tx.Find(&games).Error; err != nil {
		telemetry.Logger(ctx).Error("storage: Failed to load games", "error", err)
		return nil, fmt.Errorf("failed to load games: %w", err)
	}
	for _, g := range games {
		record := gameFromRow(g)
		snapshot.Games[record.Key()] = record
	}

	var prefix db.Setting
	result := tx.Where("name = ?", prefixSetting).Limit(1).Find(&prefix)
	if result.Error != nil {
		telemetry.Logger(ctx).Error("storage: Failed to load prefix", "error", result.Error)
		return nil, fmt.Errorf("failed to load prefix: %w", result.Error)
	}
	if result.RowsAffected > 0 && prefix.Value != "" {
		snapshot.Prefix = prefix.Value
	}

	return snapshot, nil
}

// UpsertGroup creates or replaces the settings of a chat
func (s *Storage) UpsertGroup(ctx context.Context, group GroupSettings) error {
	row := db.Group{
		ChatID:      group.ChatID,
		Title:       group.Title,
		Approved:    group.Approved,
		Blocked:     group.Blocked,
		Antilink:    group.Antilink,
		Welcome:     group.Welcome,
		WelcomeText: group.WelcomeText,
		Goodbye:     group.Goodbye,
		GoodbyeText: group.GoodbyeText,
		UpdatedAt:   time.Now(),
	}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row)
	if result.Error != nil {
		telemetry.Logger(ctx).Error("storage: Failed to upsert group", "error", result.Error, "chat_id", group.ChatID)
		return fmt.Errorf("failed to upsert group: %w", result.Error)
	}
	return nil
}

// RemoveGroup deletes the settings of a chat
func (s *Storage) RemoveGroup(ctx context.Context, chatID int64) error {
	result := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Delete(&db.Group{})
	if result.Error != nil {
		telemetry.Logger(ctx).Error("storage: Failed to remove group", "error", result.Error, "chat_id", chatID)
		return fmt.Errorf("failed to remove group: %w", result.Error)
	}
	return nil
}

func (s *Storage) UpsertBan(ctx context.Context, userID int64) error {
	row := db.Ban{UserID: userID, CreatedAt: time.Now()}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		telemetry.Logger(ctx).Error("storage: Failed to ban user", "error", result.Error, "user_id", userID)
		return fmt.Errorf("failed to ban user: %w", result.Error)
	}
	return nil
}

func (s *Storage) RemoveBan(ctx context.Context, userID int64) error {
	result := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&db.Ban{})
	if result.Error != nil {
		telemetry.Logger(ctx).Error("storage: Failed to unban user", "error", result.Error, "user_id", userID)
		return fmt.Errorf("failed to unban user: %w", result.Error)
	}
	return nil
}

// UpsertWarning stores a warning count. A count of zero or less removes the record.
func (s *Storage) UpsertWarning(ctx context.Context, key WarningKey, count int) error {
	if count <= 0 {
		return s.RemoveWarning(ctx, key)
	}

	row := db.Warning{ChatID: key.ChatID, UserID: key.UserID, Count: count, UpdatedAt: time.Now()}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row)
	if result.Error != nil {
		telemetry.Logger(ctx).Error("storage: Failed to upsert warning", "error", result.Error,
			"chat_id", key.ChatID, "user_id", key.UserID, "count", count)
		return fmt.Errorf("failed to upsert warning: %w", result.Error)
	}
	return nil
}

func (s *Storage) RemoveWarning(ctx context.Context, key WarningKey) error {
	result := s.db.WithContext(ctx).Where("chat_id = ? AND user_id = ?", key.ChatID, key.UserID).Delete(&db.Warning{})
	if result.Error != nil {
		telemetry.Logger(ctx).Error("storage: Failed to remove warning", "error", result.Error,
			"chat_id", key.ChatID, "user_id", key.UserID)
		return fmt.Errorf("failed to remove warning: %w", result.Error)
	}
	return nil
}

// Game retrieves one game session by kind and chat
func (s *Storage) Game(ctx context.Context, key GameKey) (GameRecord, error) {
	var row db.Game
	result := s.db.WithContext(ctx).Where("kind = ? AND chat_id = ?", key.Kind, key.ChatID).Limit(1).Find(&row)
	if result.Error != nil {
		telemetry.Logger(ctx).Error("storage: Failed to get game", "error", result.Error, "kind", key.Kind, "chat_id", key.ChatID)
		return GameRecord{}, fmt.Errorf("failed to get game: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return GameRecord{}, ErrNotFound
	}
	return gameFromRow(row), nil
}

func (s *Storage) UpsertGame(ctx context.Context, record GameRecord) error {
	row := db.Game{Kind: record.Kind, ChatID: record.ChatID, State: record.State, UpdatedAt: time.Now()}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row)
	if result.Error != nil {
		telemetry.Logger(ctx).Error("storage: Failed to upsert game", "error", result.Error, "kind", record.Kind, "chat_id", record.ChatID)
		return fmt.Errorf("failed to upsert game: %w", result.Error)
	}
	return nil
}

func (s *Storage) RemoveGame(ctx context.Context, key GameKey) error {
	result := s.db.WithContext(ctx).Where("kind = ? AND chat_id = ?", key.Kind, key.ChatID).Delete(&db.Game{})
	if result.Error != nil {
		telemetry.Logger(ctx).Error("storage: Failed to remove game", "error", result.Error, "kind", key.Kind, "chat_id", key.ChatID)
		return fmt.Errorf("failed to remove game: %w", result.Error)
	}
	return nil
}

// SetPrefix stores the command prefix
func (s *Storage) SetPrefix(ctx context.Context, prefix string) error {
	row := db.Setting{Name: prefixSetting, Value: prefix}

	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row)
	if result.Error != nil {
		telemetry.Logger(ctx).Error("storage: Failed to set prefix", "error", result.Error, "prefix", prefix)
		return fmt.Errorf("failed to set prefix: %w", result.Error)
	}
	return nil
}

// DB exposes the gorm handle for maintenance tasks.
func (s *Storage) DB() *gorm.DB {
	return s.db
}

func (s *Storage) Close() error {
	return s.database.Close()
}

func groupFromRow(g db.Group) GroupSettings {
	return GroupSettings{
		ChatID:      g.ChatID,
		Title:       g.Title,
		Approved:    g.Approved,
		Blocked:     g.Blocked,
		Antilink:    g.Antilink,
		Welcome:     g.Welcome,
		WelcomeText: g.WelcomeText,
		Goodbye:     g.Goodbye,
		GoodbyeText: g.GoodbyeText,
	}
}

func gameFromRow(g db.Game) GameRecord {
	return GameRecord{Kind: g.Kind, ChatID: g.ChatID, State: g.State, UpdatedAt: g.UpdatedAt}
}
