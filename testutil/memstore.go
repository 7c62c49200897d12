// Package testutil provides in-memory fakes of the bot's collaborators for package tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
)

// MemoryStore is a map-backed storage.Store. FailWith makes every call return the given error.
type MemoryStore struct {
	mu       sync.Mutex
	groups   map[int64]storage.GroupSettings
	bans     map[int64]bool
	warnings map[storage.WarningKey]int
	games    map[storage.GameKey]storage.GameRecord
	prefix   string

	FailWith error
	Loads    int
}

var _ storage.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups:   make(map[int64]storage.GroupSettings),
		bans:     make(map[int64]bool),
		warnings: make(map[storage.WarningKey]int),
		games:    make(map[storage.GameKey]storage.GameRecord),
	}
}

func (m *MemoryStore) LoadSnapshot(ctx context.Context) (*storage.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.Loads++

	snap := storage.NewSnapshot()
	for k, v := range m.groups {
		snap.Groups[k] = v
	}
	for k := range m.bans {
		snap.Bans[k] = true
	}
	for k, v := range m.warnings {
		snap.Warnings[k] = v
	}
	for k, v := range m.games {
		v.State = append([]byte(nil), v.State...)
		snap.Games[k] = v
	}
	if m.prefix != "" {
		snap.Prefix = m.prefix
	}
	return snap, nil
}

func (m *MemoryStore) UpsertGroup(ctx context.Context, group storage.GroupSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	m.groups[group.ChatID] = group
	return nil
}

func (m *MemoryStore) RemoveGroup(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	delete(m.groups, chatID)
	return nil
}

func (m *MemoryStore) UpsertBan(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	m.bans[userID] = true
	return nil
}

func (m *MemoryStore) RemoveBan(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	delete(m.bans, userID)
	return nil
}

func (m *MemoryStore) UpsertWarning(ctx context.Context, key storage.WarningKey, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	if count <= 0 {
		delete(m.warnings, key)
		return nil
	}
	m.warnings[key] = count
	return nil
}

func (m *MemoryStore) RemoveWarning(ctx context.Context, key storage.WarningKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	delete(m.warnings, key)
	return nil
}

func (m *MemoryStore) Game(ctx context.Context, key storage.GameKey) (storage.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return storage.GameRecord{}, err
	}
	rec, ok := m.games[key]
	if !ok {
		return storage.GameRecord{}, storage.ErrNotFound
	}
	rec.State = append([]byte(nil), rec.State...)
	return rec, nil
}

func (m *MemoryStore) UpsertGame(ctx context.Context, record storage.GameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	record.State = append([]byte(nil), record.State...)
	record.UpdatedAt = time.Now()
	m.games[record.Key()] = record
	return nil
}

func (m *MemoryStore) RemoveGame(ctx context.Context, key storage.GameKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	delete(m.games, key)
	return nil
}

func (m *MemoryStore) SetPrefix(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	m.prefix = prefix
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// HasGame reports whether a session of kind exists in chatID.
func (m *MemoryStore) HasGame(kind string, chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.games[storage.GameKey{Kind: kind, ChatID: chatID}]
	return ok
}

// WarningCount returns the stored count and whether the record exists.
func (m *MemoryStore) WarningCount(chatID, userID int64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.warnings[storage.WarningKey{ChatID: chatID, UserID: userID}]
	return n, ok
}

// SetFailure makes subsequent calls fail with err. nil restores normal behaviour.
func (m *MemoryStore) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailWith = err
}

func (m *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailWith != nil {
		return m.FailWith
	}
	return nil
}

// ErrInjected is a generic failure for tests that only need "something went wrong".
var ErrInjected = errors.New("injected failure")
