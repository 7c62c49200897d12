// Package boltstore implements storage.Store on a single BoltDB file.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"

	"go.etcd.io/bbolt"
)

const (
	groupsBucket   = "groups"
	bansBucket     = "bans"
	warningsBucket = "warnings"
	gamesBucket    = "games"
	metaBucket     = "meta"

	prefixKey        = "prefix"
	schemaVersionKey = "schema_version"
)

var buckets = []string{groupsBucket, bansBucket, warningsBucket, gamesBucket, metaBucket}

// Store is a BoltDB-backed storage.Store. Every aggregate lives in its own bucket.
type Store struct {
	db *bbolt.DB
}

var _ storage.Store = (*Store)(nil)

type gameValue struct {
	State     json.RawMessage `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Open opens (or creates) the store file at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadSnapshot reads every bucket in one read transaction.
func (s *Store) LoadSnapshot(ctx context.Context) (*storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot := storage.NewSnapshot()
	err := s.db.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(groupsBucket)).ForEach(func(_, v []byte) error {
			var group storage.GroupSettings
			if err := json.Unmarshal(v, &group); err != nil {
				return fmt.Errorf("unmarshal group: %w", err)
			}
			snapshot.Groups[group.ChatID] = group
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket([]byte(bansBucket)).ForEach(func(k, _ []byte) error {
			userID, err := strconv.ParseInt(string(k), 10, 64)
			if err != nil {
				return fmt.Errorf("malformed ban key %q: %w", k, err)
			}
			snapshot.Bans[userID] = true
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket([]byte(warningsBucket)).ForEach(func(k, v []byte) error {
			key, err := storage.ParseWarningKey(string(k))
			if err != nil {
				return err
			}
			count, err := strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("malformed warning count %q: %w", v, err)
			}
			snapshot.Warnings[key] = count
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket([]byte(gamesBucket)).ForEach(func(k, v []byte) error {
			key, err := storage.ParseGameKey(string(k))
			if err != nil {
				return err
			}
			record, err := decodeGame(key, v)
			if err != nil {
				return err
			}
			snapshot.Games[key] = record
			return nil
		}); err != nil {
			return err
		}

		if prefix := tx.Bucket([]byte(metaBucket)).Get([]byte(prefixKey)); len(prefix) > 0 {
			snapshot.Prefix = string(prefix)
		}
		return nil
	})
	if err != nil {
		telemetry.Logger(ctx).Error("boltstore: Failed to load snapshot", "error", err)
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	return snapshot, nil
}

func (s *Store) UpsertGroup(ctx context.Context, group storage.GroupSettings) error {
	payload, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("marshal group: %w", err)
	}
	return s.put(ctx, groupsBucket, strconv.FormatInt(group.ChatID, 10), payload)
}

func (s *Store) RemoveGroup(ctx context.Context, chatID int64) error {
	return s.delete(ctx, groupsBucket, strconv.FormatInt(chatID, 10))
}

func (s *Store) UpsertBan(ctx context.Context, userID int64) error {
	return s.put(ctx, bansBucket, strconv.FormatInt(userID, 10), []byte("1"))
}

func (s *Store) RemoveBan(ctx context.Context, userID int64) error {
	return s.delete(ctx, bansBucket, strconv.FormatInt(userID, 10))
}

// UpsertWarning stores a warning count. A count of zero or less removes the key.
func (s *Store) UpsertWarning(ctx context.Context, key storage.WarningKey, count int) error {
	if count <= 0 {
		return s.RemoveWarning(ctx, key)
	}
	return s.put(ctx, warningsBucket, key.String(), []byte(strconv.Itoa(count)))
}

func (s *Store) RemoveWarning(ctx context.Context, key storage.WarningKey) error {
	return s.delete(ctx, warningsBucket, key.String())
}

func (s *Store) Game(ctx context.Context, key storage.GameKey) (storage.GameRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.GameRecord{}, err
	}

	var record storage.GameRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		payload := tx.Bucket([]byte(gamesBucket)).Get([]byte(key.String()))
		if payload == nil {
			return storage.ErrNotFound
		}
		var err error
		record, err = decodeGame(key, payload)
		return err
	})
	if err != nil {
		return storage.GameRecord{}, err
	}
	return record, nil
}

func (s *Store) UpsertGame(ctx context.Context, record storage.GameRecord) error {
	payload, err := json.Marshal(gameValue{State: record.State, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal game: %w", err)
	}
	return s.put(ctx, gamesBucket, record.Key().String(), payload)
}

func (s *Store) RemoveGame(ctx context.Context, key storage.GameKey) error {
	return s.delete(ctx, gamesBucket, key.String())
}

func (s *Store) SetPrefix(ctx context.Context, prefix string) error {
	return s.put(ctx, metaBucket, prefixKey, []byte(prefix))
}

// SchemaVersion returns the stamped layout version.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(metaBucket)).Get([]byte(schemaVersionKey))
		if raw == nil {
			return nil
		}
		var err error
		version, err = strconv.Atoi(string(raw))
		return err
	})
	return version, err
}

func (s *Store) put(ctx context.Context, bucket, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put([]byte(key), value)
	})
	if err != nil {
		telemetry.Logger(ctx).Error("boltstore: Failed to write", "error", err, "bucket", bucket, "key", key)
		return fmt.Errorf("failed to write %s/%s: %w", bucket, key, err)
	}
	return nil
}

// delete is a no-op for absent keys; bbolt's Delete already behaves that way.
func (s *Store) delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Delete([]byte(key))
	})
	if err != nil {
		telemetry.Logger(ctx).Error("boltstore: Failed to delete", "error", err, "bucket", bucket, "key", key)
		return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return tx.Bucket([]byte(metaBucket)).Put([]byte(schemaVersionKey), []byte(strconv.Itoa(storage.SchemaVersion)))
	})
}

func decodeGame(key storage.GameKey, payload []byte) (storage.GameRecord, error) {
	var value gameValue
	if err := json.Unmarshal(payload, &value); err != nil {
		return storage.GameRecord{}, fmt.Errorf("unmarshal game %s: %w", key, err)
	}
	return storage.GameRecord{
		Kind:      key.Kind,
		ChatID:    key.ChatID,
		State:     []byte(value.State),
		UpdatedAt: value.UpdatedAt,
	}, nil
}
