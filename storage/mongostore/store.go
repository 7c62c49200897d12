// Package mongostore implements storage.Store on MongoDB, one collection per aggregate.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	groupsCollection   = "groups"
	bansCollection     = "bans"
	warningsCollection = "warnings"
	gamesCollection    = "games"
	storageCollection  = "storage"

	prefixID        = "prefix"
	schemaVersionID = "schema_version"

	connectTimeout = 10 * time.Second
)

type groupDoc struct {
	ChatID      int64     `bson:"chat_id"`
	Title       string    `bson:"title"`
	Approved    bool      `bson:"approved"`
	Blocked     bool      `bson:"blocked"`
	Antilink    bool      `bson:"antilink"`
	Welcome     bool      `bson:"welcome"`
	WelcomeText string    `bson:"welcome_text"`
	Goodbye     bool      `bson:"goodbye"`
	GoodbyeText string    `bson:"goodbye_text"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type banDoc struct {
	UserID    int64     `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
}

type warningDoc struct {
	ChatID    int64     `bson:"chat_id"`
	UserID    int64     `bson:"user_id"`
	Count     int       `bson:"count"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type gameDoc struct {
	Kind      string    `bson:"kind"`
	ChatID    int64     `bson:"chat_id"`
	State     string    `bson:"state"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type valueDoc struct {
	ID    string `bson:"_id"`
	Value string `bson:"value"`
}

// Store is a MongoDB-backed storage.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ storage.Store = (*Store)(nil)

// Open connects to uri, ensures unique indexes and stamps the schema version.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" || database == "" {
		return nil, errors.New("mongodb uri and database are required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	store := &Store{client: client, db: client.Database(database)}
	if err := store.migrate(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	indexes := map[string]bson.D{
		groupsCollection:   {{Key: "chat_id", Value: 1}},
		bansCollection:     {{Key: "user_id", Value: 1}},
		warningsCollection: {{Key: "chat_id", Value: 1}, {Key: "user_id", Value: 1}},
		gamesCollection:    {{Key: "kind", Value: 1}, {Key: "chat_id", Value: 1}},
	}
	for name, keys := range indexes {
		_, err := s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    keys,
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			telemetry.Logger(ctx).Error("mongostore: Failed to create index", "error", err, "collection", name)
			return fmt.Errorf("create %s index: %w", name, err)
		}
	}

	return s.putValue(ctx, schemaVersionID, strconv.Itoa(storage.SchemaVersion))
}

// Drop removes every collection. Used to reset test databases.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) LoadSnapshot(ctx context.Context) (*storage.Snapshot, error) {
	snapshot := storage.NewSnapshot()

	var groups []groupDoc
	if err := s.findAll(ctx, groupsCollection, &groups); err != nil {
		return nil, err
	}
	for _, g := range groups {
		snapshot.Groups[g.ChatID] = storage.GroupSettings{
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

	var bans []banDoc
	if err := s.findAll(ctx, bansCollection, &bans); err != nil {
		return nil, err
	}
	for _, b := range bans {
		snapshot.Bans[b.UserID] = true
	}

	var warnings []warningDoc
	if err := s.findAll(ctx, warningsCollection, &warnings); err != nil {
		return nil, err
	}
	for _, w := range warnings {
		if w.Count > 0 {
			snapshot.Warnings[storage.WarningKey{ChatID: w.ChatID, UserID: w.UserID}] = w.Count
		}
	}

	var games []gameDoc
	if err := s.findAll(ctx, gamesCollection, &games); err != nil {
		return nil, err
	}
	for _, g := range games {
		record := gameFromDoc(g)
		snapshot.Games[record.Key()] = record
	}

	prefix, err := s.value(ctx, prefixID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if prefix != "" {
		snapshot.Prefix = prefix
	}

	return snapshot, nil
}

func (s *Store) UpsertGroup(ctx context.Context, group storage.GroupSettings) error {
	doc := groupDoc{
		ChatID:      group.ChatID,
		Title:       group.Title,
		Approved:    group.Approved,
		Blocked:     group.Blocked,
		Antilink:    group.Antilink,
		Welcome:     group.Welcome,
		WelcomeText: group.WelcomeText,
		Goodbye:     group.Goodbye,
		GoodbyeText: group.GoodbyeText,
		UpdatedAt:   time.Now().UTC(),
	}
	return s.replace(ctx, groupsCollection, bson.M{"chat_id": group.ChatID}, doc)
}

func (s *Store) RemoveGroup(ctx context.Context, chatID int64) error {
	return s.remove(ctx, groupsCollection, bson.M{"chat_id": chatID})
}

func (s *Store) UpsertBan(ctx context.Context, userID int64) error {
	return s.replace(ctx, bansCollection, bson.M{"user_id": userID}, banDoc{UserID: userID, CreatedAt: time.Now().UTC()})
}

func (s *Store) RemoveBan(ctx context.Context, userID int64) error {
	return s.remove(ctx, bansCollection, bson.M{"user_id": userID})
}

// UpsertWarning stores a warning count. A count of zero or less removes the document.
func (s *Store) UpsertWarning(ctx context.Context, key storage.WarningKey, count int) error {
	if count <= 0 {
		return s.RemoveWarning(ctx, key)
	}
	doc := warningDoc{ChatID: key.ChatID, UserID: key.UserID, Count: count, UpdatedAt: time.Now().UTC()}
	return s.replace(ctx, warningsCollection, warningFilter(key), doc)
}

func (s *Store) RemoveWarning(ctx context.Context, key storage.WarningKey) error {
	return s.remove(ctx, warningsCollection, warningFilter(key))
}

func (s *Store) Game(ctx context.Context, key storage.GameKey) (storage.GameRecord, error) {
	var doc gameDoc
	err := s.db.Collection(gamesCollection).FindOne(ctx, gameFilter(key)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.GameRecord{}, storage.ErrNotFound
	}
	if err != nil {
		telemetry.Logger(ctx).Error("mongostore: Failed to get game", "error", err, "kind", key.Kind, "chat_id", key.ChatID)
		return storage.GameRecord{}, fmt.Errorf("failed to get game: %w", err)
	}
	return gameFromDoc(doc), nil
}

func (s *Store) UpsertGame(ctx context.Context, record storage.GameRecord) error {
	doc := gameDoc{Kind: record.Kind, ChatID: record.ChatID, State: string(record.State), UpdatedAt: time.Now().UTC()}
	return s.replace(ctx, gamesCollection, gameFilter(record.Key()), doc)
}

func (s *Store) RemoveGame(ctx context.Context, key storage.GameKey) error {
	return s.remove(ctx, gamesCollection, gameFilter(key))
}

func (s *Store) SetPrefix(ctx context.Context, prefix string) error {
	return s.putValue(ctx, prefixID, prefix)
}

func (s *Store) findAll(ctx context.Context, collection string, out any) error {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		telemetry.Logger(ctx).Error("mongostore: Failed to query collection", "error", err, "collection", collection)
		return fmt.Errorf("failed to load %s: %w", collection, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		telemetry.Logger(ctx).Error("mongostore: Failed to decode collection", "error", err, "collection", collection)
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}

func (s *Store) replace(ctx context.Context, collection string, filter bson.M, doc any) error {
	_, err := s.db.Collection(collection).ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		telemetry.Logger(ctx).Error("mongostore: Failed to upsert", "error", err, "collection", collection)
		return fmt.Errorf("failed to upsert into %s: %w", collection, err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, collection string, filter bson.M) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, filter); err != nil {
		telemetry.Logger(ctx).Error("mongostore: Failed to remove", "error", err, "collection", collection)
		return fmt.Errorf("failed to remove from %s: %w", collection, err)
	}
	return nil
}

func (s *Store) value(ctx context.Context, id string) (string, error) {
	var doc valueDoc
	err := s.db.Collection(storageCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", id, err)
	}
	return doc.Value, nil
}

func (s *Store) putValue(ctx context.Context, id, value string) error {
	return s.replace(ctx, storageCollection, bson.M{"_id": id}, valueDoc{ID: id, Value: value})
}

func warningFilter(key storage.WarningKey) bson.M {
	return bson.M{"chat_id": key.ChatID, "user_id": key.UserID}
}

func gameFilter(key storage.GameKey) bson.M {
	return bson.M{"kind": key.Kind, "chat_id": key.ChatID}
}

func gameFromDoc(g gameDoc) storage.GameRecord {
	return storage.GameRecord{Kind: g.Kind, ChatID: g.ChatID, State: []byte(g.State), UpdatedAt: g.UpdatedAt}
}
