package game

import (
	"context"
	"errors"
	"time"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

// Store is the part of storage.Store the engine needs.
type Store interface {
	LoadSnapshot(ctx context.Context) (*storage.Snapshot, error)
	Game(ctx context.Context, key storage.GameKey) (storage.GameRecord, error)
	UpsertGame(ctx context.Context, record storage.GameRecord) error
	RemoveGame(ctx context.Context, key storage.GameKey) error
}

// Engine persists sessions: at most one per (kind, chat). Terminal sessions are deleted.
// Callers serialize access per chat.
type Engine struct {
	store Store
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// WithClock replaces the engine's time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func key(kind Kind, chatID int64) storage.GameKey {
	return storage.GameKey{Kind: string(kind), ChatID: chatID}
}

// Active returns the session of kind in chatID or ErrNotActive.
func (e *Engine) Active(ctx context.Context, kind Kind, chatID int64) (State, error) {
	record, err := e.store.Game(ctx, key(kind, chatID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotActive
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "could not load the game", err)
	}

	state, err := Decode(kind, record.State)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "could not read the game", err)
	}
	return state, nil
}

// Start stores a new session unless one of the same kind is already active.
func (e *Engine) Start(ctx context.Context, chatID int64, state State) error {
	_, err := e.Active(ctx, state.Kind(), chatID)
	if err == nil {
		return ErrAlreadyActive
	}
	if !errors.Is(err, ErrNotActive) {
		return err
	}

	if err := e.save(ctx, chatID, state); err != nil {
		return err
	}
	telemetry.Games.WithLabelValues(string(state.Kind()), "started").Inc()
	telemetry.Logger(ctx).Info("game: Session started", "kind", state.Kind(), "chat_id", chatID)
	return nil
}

// Submit applies a move by actor.
func (e *Engine) Submit(ctx context.Context, kind Kind, chatID, actor int64, move string) (Outcome, error) {
	return e.transition(ctx, kind, chatID, func(state State) (Outcome, error) {
		return state.Move(actor, move, e.now())
	})
}

// Join adds player to the session.
func (e *Engine) Join(ctx context.Context, kind Kind, chatID int64, player Player) (Outcome, error) {
	return e.transition(ctx, kind, chatID, func(state State) (Outcome, error) {
		return state.Join(player, e.now())
	})
}

// Forfeit ends the session on behalf of an authorized actor. The outcome carries
// the final state so hidden information can be revealed.
func (e *Engine) Forfeit(ctx context.Context, kind Kind, chatID, actor int64) (Outcome, error) {
	return e.transition(ctx, kind, chatID, func(state State) (Outcome, error) {
		if !state.CanForfeit(actor) {
			return Outcome{}, ErrNotAuthorized
		}
		outcome := Outcome{Status: Forfeited, State: state}
		if wg, ok := state.(*WordGame); ok {
			outcome.Winners = wg.finish().Winners
		}
		return outcome, nil
	})
}

// CloseRound ends the current word game round in chatID if its deadline has passed.
// The boolean is false when nothing changed.
func (e *Engine) CloseRound(ctx context.Context, chatID int64) (Outcome, bool, error) {
	closed := false
	outcome, err := e.transition(ctx, KindWordGame, chatID, func(state State) (Outcome, error) {
		wg := state.(*WordGame)
		var outcome Outcome
		outcome, closed = wg.CloseRound(e.now())
		if !closed {
			return outcome, errUnchanged
		}
		return outcome, nil
	})
	if errors.Is(err, errUnchanged) {
		return outcome, false, nil
	}
	return outcome, closed, err
}

var errUnchanged = errors.New("state unchanged")

// ExpiredRounds lists chats whose word game round deadline has passed.
func (e *Engine) ExpiredRounds(ctx context.Context) ([]int64, error) {
	snap, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Transient, "could not load games", err)
	}

	now := e.now()
	var chats []int64
	for k, record := range snap.Games {
		if k.Kind != string(KindWordGame) {
			continue
		}
		state, err := Decode(KindWordGame, record.State)
		if err != nil {
			telemetry.Logger(ctx).Error("game: Skipping undecodable session", "error", err, "chat_id", k.ChatID)
			continue
		}
		if state.(*WordGame).Expired(now) {
			chats = append(chats, k.ChatID)
		}
	}
	return chats, nil
}

func (e *Engine) transition(ctx context.Context, kind Kind, chatID int64, apply func(State) (Outcome, error)) (Outcome, error) {
	state, err := e.Active(ctx, kind, chatID)
	if err != nil {
		return Outcome{}, err
	}

	outcome, err := apply(state)
	if err != nil {
		return outcome, err
	}
	if outcome.State == nil {
		outcome.State = state
	}

	if outcome.Status.Terminal() {
		if err := e.store.RemoveGame(ctx, key(kind, chatID)); err != nil {
			return Outcome{}, apperr.Wrap(apperr.Transient, "could not end the game", err)
		}
		telemetry.Games.WithLabelValues(string(kind), outcome.Status.String()).Inc()
		telemetry.Logger(ctx).Info("game: Session ended", "kind", kind, "chat_id", chatID, "status", outcome.Status)
		return outcome, nil
	}

	if err := e.save(ctx, chatID, state); err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

func (e *Engine) save(ctx context.Context, chatID int64, state State) error {
	data, err := Encode(state)
	if err != nil {
		return apperr.Wrap(apperr.Transient, "could not save the game", err)
	}
	record := storage.GameRecord{Kind: string(state.Kind()), ChatID: chatID, State: data}
	if err := e.store.UpsertGame(ctx, record); err != nil {
		return apperr.Wrap(apperr.Transient, "could not save the game", err)
	}
	return nil
}
