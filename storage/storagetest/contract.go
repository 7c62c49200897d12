// Package storagetest holds the behavioural contract every storage.Store backend must satisfy.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
)

// RunContract exercises a backend. newStore must return an empty store; cleanup is the caller's job.
func RunContract(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Helper()

	t.Run("empty snapshot", func(t *testing.T) {
		s := newStore(t)
		snap, err := s.LoadSnapshot(context.Background())
		if err != nil {
			t.Fatalf("LoadSnapshot: %v", err)
		}
		if snap.Prefix != storage.DefaultPrefix {
			t.Errorf("prefix = %q, want %q", snap.Prefix, storage.DefaultPrefix)
		}
		if len(snap.Groups)+len(snap.Bans)+len(snap.Warnings)+len(snap.Games) != 0 {
			t.Errorf("expected empty aggregates, got %+v", snap)
		}
	})

	t.Run("groups upsert replaces", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		group := storage.GroupSettings{ChatID: -1001, Title: "first"}
		if err := s.UpsertGroup(ctx, group); err != nil {
			t.Fatalf("UpsertGroup: %v", err)
		}
		group.Title = "second"
		group.Approved = true
		group.Antilink = true
		group.WelcomeText = "hi"
		if err := s.UpsertGroup(ctx, group); err != nil {
			t.Fatalf("UpsertGroup: %v", err)
		}

		snap := mustSnapshot(t, s)
		if len(snap.Groups) != 1 {
			t.Fatalf("groups = %d, want 1", len(snap.Groups))
		}
		got := snap.Groups[-1001]
		if got != group {
			t.Errorf("group = %+v, want %+v", got, group)
		}

		if err := s.RemoveGroup(ctx, -1001); err != nil {
			t.Fatalf("RemoveGroup: %v", err)
		}
		if err := s.RemoveGroup(ctx, -1001); err != nil {
			t.Fatalf("second RemoveGroup must be a no-op: %v", err)
		}
		if _, ok := mustSnapshot(t, s).Group(-1001); ok {
			t.Error("group still present after removal")
		}
	})

	t.Run("bans", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		if err := s.UpsertBan(ctx, 42); err != nil {
			t.Fatalf("UpsertBan: %v", err)
		}
		if err := s.UpsertBan(ctx, 42); err != nil {
			t.Fatalf("repeated UpsertBan: %v", err)
		}
		snap := mustSnapshot(t, s)
		if !snap.Banned(42) || len(snap.Bans) != 1 {
			t.Fatalf("bans = %v", snap.Bans)
		}
		if err := s.RemoveBan(ctx, 42); err != nil {
			t.Fatalf("RemoveBan: %v", err)
		}
		if err := s.RemoveBan(ctx, 42); err != nil {
			t.Fatalf("RemoveBan of absent key: %v", err)
		}
		if mustSnapshot(t, s).Banned(42) {
			t.Error("ban still present")
		}
	})

	t.Run("warnings", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		key := storage.WarningKey{ChatID: -5, UserID: 7}
		for i := 1; i <= 2; i++ {
			if err := s.UpsertWarning(ctx, key, i); err != nil {
				t.Fatalf("UpsertWarning(%d): %v", i, err)
			}
		}
		if got := mustSnapshot(t, s).Warning(-5, 7); got != 2 {
			t.Fatalf("warning = %d, want 2", got)
		}
		if err := s.UpsertWarning(ctx, key, 0); err != nil {
			t.Fatalf("UpsertWarning(0): %v", err)
		}
		if _, ok := mustSnapshot(t, s).Warnings[key]; ok {
			t.Error("zero count must remove the record")
		}
		if err := s.RemoveWarning(ctx, key); err != nil {
			t.Fatalf("RemoveWarning of absent key: %v", err)
		}
	})

	t.Run("games", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		key := storage.GameKey{Kind: "hangman", ChatID: -9}

		if _, err := s.Game(ctx, key); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("Game on empty store = %v, want ErrNotFound", err)
		}

		rec := storage.GameRecord{Kind: "hangman", ChatID: -9, State: []byte(`{"word":"apple"}`)}
		if err := s.UpsertGame(ctx, rec); err != nil {
			t.Fatalf("UpsertGame: %v", err)
		}
		rec.State = []byte(`{"word":"pear"}`)
		if err := s.UpsertGame(ctx, rec); err != nil {
			t.Fatalf("UpsertGame: %v", err)
		}
		other := storage.GameRecord{Kind: "tictactoe", ChatID: -9, State: []byte(`{}`)}
		if err := s.UpsertGame(ctx, other); err != nil {
			t.Fatalf("UpsertGame: %v", err)
		}

		got, err := s.Game(ctx, key)
		if err != nil {
			t.Fatalf("Game: %v", err)
		}
		if string(got.State) != `{"word":"pear"}` {
			t.Errorf("state = %s", got.State)
		}
		if n := len(mustSnapshot(t, s).Games); n != 2 {
			t.Errorf("games = %d, want 2 kinds side by side", n)
		}

		if err := s.RemoveGame(ctx, key); err != nil {
			t.Fatalf("RemoveGame: %v", err)
		}
		if err := s.RemoveGame(ctx, key); err != nil {
			t.Fatalf("RemoveGame of absent key: %v", err)
		}
		if _, err := s.Game(ctx, key); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Game after removal = %v, want ErrNotFound", err)
		}
	})

	t.Run("prefix", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		if err := s.SetPrefix(ctx, "!"); err != nil {
			t.Fatalf("SetPrefix: %v", err)
		}
		if err := s.SetPrefix(ctx, "."); err != nil {
			t.Fatalf("SetPrefix: %v", err)
		}
		if got := mustSnapshot(t, s).Prefix; got != "." {
			t.Errorf("prefix = %q, want %q", got, ".")
		}
	})
}

func mustSnapshot(t *testing.T, s storage.Store) *storage.Snapshot {
	t.Helper()
	snap, err := s.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	return snap
}
