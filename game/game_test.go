package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/testutil"
)

const chatID = -100

var (
	alice = Player{ID: 1, Name: "Alice"}
	bob   = Player{ID: 2, Name: "Bob"}
	carol = Player{ID: 3, Name: "Carol"}
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newEngine(t *testing.T) (*Engine, *testutil.MemoryStore, *clock) {
	t.Helper()
	store := testutil.NewMemoryStore()
	c := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return NewEngine(store).WithClock(c.now), store, c
}

func TestHangmanWin(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := newEngine(t)
	if err := engine.Start(ctx, chatID, NewHangman(alice, "apple")); err != nil {
		t.Fatalf("start: %v", err)
	}

	var outcome Outcome
	for _, letter := range []string{"a", "p", "l", "e"} {
		var err error
		outcome, err = engine.Submit(ctx, KindHangman, chatID, alice.ID, letter)
		if err != nil {
			t.Fatalf("guess %q: %v", letter, err)
		}
		if !outcome.Hit {
			t.Fatalf("guess %q should hit", letter)
		}
	}

	if outcome.Status != Won {
		t.Fatalf("status = %s, want won", outcome.Status)
	}
	h := outcome.State.(*Hangman)
	if got := h.Display(); got != "a p p l e" {
		t.Fatalf("display = %q", got)
	}
	if store.HasGame(string(KindHangman), chatID) {
		t.Fatal("won session must be deleted")
	}
}

func TestHangmanLoss(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := newEngine(t)
	if err := engine.Start(ctx, chatID, NewHangman(alice, "apple")); err != nil {
		t.Fatalf("start: %v", err)
	}

	for i, letter := range []string{"b", "c", "d", "f", "g", "h"} {
		outcome, err := engine.Submit(ctx, KindHangman, chatID, alice.ID, letter)
		if err != nil {
			t.Fatalf("guess %q: %v", letter, err)
		}
		h := outcome.State.(*Hangman)
		if h.Attempts != HangmanAttempts-(i+1) {
			t.Fatalf("attempts after %d misses = %d", i+1, h.Attempts)
		}
		if i < 5 && outcome.Status != Ongoing {
			t.Fatalf("game ended early after %d misses", i+1)
		}
		if i == 5 {
			if outcome.Status != Lost {
				t.Fatalf("status = %s, want lost", outcome.Status)
			}
			if h.Word != "apple" {
				t.Fatalf("word must be revealed, got %q", h.Word)
			}
		}
	}

	if store.HasGame(string(KindHangman), chatID) {
		t.Fatal("lost session must be deleted")
	}
}

func TestHangmanRejectedMoves(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)
	if err := engine.Start(ctx, chatID, NewHangman(alice, "apple")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := engine.Submit(ctx, KindHangman, chatID, alice.ID, "a"); err != nil {
		t.Fatalf("guess: %v", err)
	}

	tests := []struct {
		name   string
		actor  int64
		move   string
		target error
	}{
		{"someone else", bob.ID, "p", ErrNotAuthorized},
		{"repeated letter", alice.ID, "a", ErrInvalidMove},
		{"digit", alice.ID, "7", ErrInvalidMove},
		{"empty", alice.ID, "", ErrInvalidMove},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Submit(ctx, KindHangman, chatID, tt.actor, tt.move)
			if !errors.Is(err, tt.target) {
				t.Fatalf("err = %v, want %v", err, tt.target)
			}
		})
	}

	state, err := engine.Active(ctx, KindHangman, chatID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	h := state.(*Hangman)
	if h.Attempts != HangmanAttempts || len(h.Guessed) != 1 {
		t.Fatalf("rejected moves mutated the state: %+v", h)
	}
}

func TestHangmanWholeWord(t *testing.T) {
	h := NewHangman(alice, "Apple")
	outcome, err := h.Move(alice.ID, "pear", time.Time{})
	if err != nil || outcome.Status != Ongoing || h.Attempts != HangmanAttempts-1 {
		t.Fatalf("wrong word: %+v %v", outcome, err)
	}
	outcome, err = h.Move(alice.ID, "APPLE", time.Time{})
	if err != nil || outcome.Status != Won {
		t.Fatalf("right word: %+v %v", outcome, err)
	}
}

func TestStartAlreadyActive(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)
	if err := engine.Start(ctx, chatID, NewHangman(alice, "apple")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := engine.Submit(ctx, KindHangman, chatID, alice.ID, "a"); err != nil {
		t.Fatalf("guess: %v", err)
	}

	err := engine.Start(ctx, chatID, NewHangman(bob, "pear"))
	if !errors.Is(err, ErrAlreadyActive) || apperr.KindOf(err) != apperr.Conflict {
		t.Fatalf("second start = %v, want ErrAlreadyActive", err)
	}

	state, err := engine.Active(ctx, KindHangman, chatID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	h := state.(*Hangman)
	if h.Word != "apple" || h.Player != alice || !h.Guessed.Has("a") {
		t.Fatalf("existing session changed: %+v", h)
	}

	if err := engine.Start(ctx, chatID, NewTicTacToe(alice, bob)); err != nil {
		t.Fatalf("other kinds coexist: %v", err)
	}
}

func TestNotActive(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	if _, err := engine.Submit(ctx, KindHangman, chatID, alice.ID, "a"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("submit = %v", err)
	}
	if _, err := engine.Forfeit(ctx, KindTicTacToe, chatID, alice.ID); !errors.Is(err, ErrNotActive) {
		t.Fatalf("forfeit = %v", err)
	}
	if apperr.KindOf(ErrNotActive) != apperr.NotFound {
		t.Fatal("ErrNotActive must be a not found error")
	}
}

func TestForfeit(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := newEngine(t)
	if err := engine.Start(ctx, chatID, NewHangman(alice, "apple")); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := engine.Forfeit(ctx, KindHangman, chatID, bob.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("forfeit by stranger = %v", err)
	}
	if !store.HasGame(string(KindHangman), chatID) {
		t.Fatal("unauthorized forfeit must not delete the session")
	}

	outcome, err := engine.Forfeit(ctx, KindHangman, chatID, alice.ID)
	if err != nil {
		t.Fatalf("forfeit: %v", err)
	}
	if outcome.Status != Forfeited || outcome.State.(*Hangman).Word != "apple" {
		t.Fatalf("forfeit outcome = %+v", outcome)
	}
	if store.HasGame(string(KindHangman), chatID) {
		t.Fatal("forfeited session must be deleted")
	}
}

func TestTicTacToe(t *testing.T) {
	ctx := context.Background()

	t.Run("x wins", func(t *testing.T) {
		engine, store, _ := newEngine(t)
		if err := engine.Start(ctx, chatID, NewTicTacToe(alice, bob)); err != nil {
			t.Fatalf("start: %v", err)
		}
		moves := []struct {
			actor int64
			cell  string
		}{{alice.ID, "1"}, {bob.ID, "4"}, {alice.ID, "2"}, {bob.ID, "5"}}
		for _, m := range moves {
			if _, err := engine.Submit(ctx, KindTicTacToe, chatID, m.actor, m.cell); err != nil {
				t.Fatalf("move %s: %v", m.cell, err)
			}
		}
		outcome, err := engine.Submit(ctx, KindTicTacToe, chatID, alice.ID, "3")
		if err != nil {
			t.Fatalf("winning move: %v", err)
		}
		if outcome.Status != Won || len(outcome.Winners) != 1 || outcome.Winners[0] != alice {
			t.Fatalf("outcome = %+v", outcome)
		}
		if store.HasGame(string(KindTicTacToe), chatID) {
			t.Fatal("finished game must be deleted")
		}
	})

	t.Run("draw", func(t *testing.T) {
		g := NewTicTacToe(alice, bob)
		// X O X / X O O / O X X
		cells := []string{"1", "2", "3", "5", "4", "6", "8", "7", "9"}
		var outcome Outcome
		for i, cell := range cells {
			actor := alice.ID
			if i%2 == 1 {
				actor = bob.ID
			}
			var err error
			outcome, err = g.Move(actor, cell, time.Time{})
			if err != nil {
				t.Fatalf("move %s: %v", cell, err)
			}
		}
		if outcome.Status != Draw {
			t.Fatalf("status = %s, want draw\n%s", outcome.Status, g.Render())
		}
	})

	t.Run("rejections", func(t *testing.T) {
		g := NewTicTacToe(alice, bob)
		if _, err := g.Move(bob.ID, "1", time.Time{}); !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("out of turn = %v", err)
		}
		if _, err := g.Move(carol.ID, "1", time.Time{}); !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("stranger = %v", err)
		}
		if _, err := g.Move(alice.ID, "10", time.Time{}); !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("bad cell = %v", err)
		}
		if _, err := g.Move(alice.ID, "5", time.Time{}); err != nil {
			t.Fatalf("move: %v", err)
		}
		if _, err := g.Move(bob.ID, "5", time.Time{}); !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("taken cell = %v", err)
		}
		if g.Turn != O {
			t.Fatal("rejected move changed the turn")
		}
	})

	t.Run("open challenge", func(t *testing.T) {
		g := NewTicTacToe(alice, Player{})
		if _, err := g.Move(alice.ID, "1", time.Time{}); !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("move before opponent = %v", err)
		}
		if _, err := g.Join(alice, time.Time{}); !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("self join = %v", err)
		}
		if _, err := g.Join(carol, time.Time{}); err != nil {
			t.Fatalf("join: %v", err)
		}
		if _, err := g.Join(bob, time.Time{}); !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("third player = %v", err)
		}
		if g.O != carol || !g.CanForfeit(carol.ID) {
			t.Fatalf("carol should be O: %+v", g)
		}
	})
}

func TestWordGameRounds(t *testing.T) {
	ctx := context.Background()
	engine, store, c := newEngine(t)
	if err := engine.Start(ctx, chatID, NewWordGame(alice, "s", time.Minute, c.now())); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := engine.Join(ctx, KindWordGame, chatID, bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := engine.Join(ctx, KindWordGame, chatID, bob); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("double join = %v", err)
	}

	if _, err := engine.Submit(ctx, KindWordGame, chatID, carol.ID, "sun"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger word = %v", err)
	}
	if _, err := engine.Submit(ctx, KindWordGame, chatID, alice.ID, "tree"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("wrong letter = %v", err)
	}
	if _, err := engine.Submit(ctx, KindWordGame, chatID, alice.ID, "so"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("too short = %v", err)
	}

	outcome, err := engine.Submit(ctx, KindWordGame, chatID, alice.ID, "snake")
	if err != nil || outcome.RoundClosed {
		t.Fatalf("first word: %+v %v", outcome, err)
	}
	if _, err := engine.Submit(ctx, KindWordGame, chatID, alice.ID, "spoon"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("second word in a round = %v", err)
	}
	if _, err := engine.Join(ctx, KindWordGame, chatID, carol); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("late join = %v", err)
	}
	if _, err := engine.Submit(ctx, KindWordGame, chatID, bob.ID, "snake"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("duplicate word = %v", err)
	}

	outcome, err = engine.Submit(ctx, KindWordGame, chatID, bob.ID, "sandwich")
	if err != nil {
		t.Fatalf("second player word: %v", err)
	}
	if !outcome.RoundClosed || outcome.Status != Ongoing {
		t.Fatalf("round should close when everyone answered: %+v", outcome)
	}
	wg := outcome.State.(*WordGame)
	if wg.Round != 2 || wg.Letter != "h" || wg.MinLength != 4 {
		t.Fatalf("round 2 = round %d letter %q min %d", wg.Round, wg.Letter, wg.MinLength)
	}
	if len(wg.RoundWords) != 0 || len(wg.Responses) != 0 || len(wg.Used) != 2 {
		t.Fatalf("round state not reset: %+v", wg)
	}
	if _, err := engine.Submit(ctx, KindWordGame, chatID, alice.ID, "snake"); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("word from an earlier round = %v", err)
	}

	if _, err := engine.Submit(ctx, KindWordGame, chatID, alice.ID, "house"); err != nil {
		t.Fatalf("round 2 word: %v", err)
	}

	if _, closed, err := engine.CloseRound(ctx, chatID); err != nil || closed {
		t.Fatalf("close before deadline: closed=%v err=%v", closed, err)
	}

	c.advance(2 * time.Minute)
	expired, err := engine.ExpiredRounds(ctx)
	if err != nil || len(expired) != 1 || expired[0] != chatID {
		t.Fatalf("expired rounds = %v %v", expired, err)
	}
	outcome, closed, err := engine.CloseRound(ctx, chatID)
	if err != nil || !closed {
		t.Fatalf("timer close: closed=%v err=%v", closed, err)
	}
	if outcome.Status != Ongoing || outcome.State.(*WordGame).Letter != "e" {
		t.Fatalf("after timer: %+v", outcome.State)
	}

	c.advance(2 * time.Minute)
	outcome, closed, err = engine.CloseRound(ctx, chatID)
	if err != nil || !closed {
		t.Fatalf("silent round close: closed=%v err=%v", closed, err)
	}
	if outcome.Status != Finished {
		t.Fatalf("a round without answers must finish the game, got %s", outcome.Status)
	}
	if len(outcome.Winners) != 1 || outcome.Winners[0] != alice {
		t.Fatalf("winners = %+v (scores %v)", outcome.Winners, outcome.State.(*WordGame).Scores)
	}
	if store.HasGame(string(KindWordGame), chatID) {
		t.Fatal("finished word game must be deleted")
	}
}

func TestWordGameEndsAfterLastRound(t *testing.T) {
	g := NewWordGame(alice, "a", time.Minute, time.Time{})
	words := []string{"alpha", "arena", "anchor", "rocket", "thunder"}
	var outcome Outcome
	for i, word := range words {
		var err error
		outcome, err = g.Move(alice.ID, word, time.Time{})
		if err != nil {
			t.Fatalf("round %d %q: %v (letter %q)", i+1, word, err, g.Letter)
		}
	}
	if outcome.Status != Finished {
		t.Fatalf("status after %d rounds = %s", WordGameRounds, outcome.Status)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	g := NewWordGame(alice, "s", time.Minute, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	g.Players = append(g.Players, bob)
	g.Responses[alice.ID] = "snake"
	g.Responses[bob.ID] = "sun"
	g.RoundWords.Add("snake")
	g.RoundWords.Add("sun")
	g.Used.Add("snake")
	g.Used.Add("sun")
	g.Used.Add("apple")
	g.Scores[alice.ID] = 5

	data, err := Encode(g)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	again, err := Encode(g)
	if err != nil || string(again) != string(data) {
		t.Fatal("encoding must be deterministic")
	}

	state, err := Decode(KindWordGame, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	decoded := state.(*WordGame)
	if !decoded.Used.Equal(g.Used) || !decoded.RoundWords.Equal(g.RoundWords) {
		t.Fatalf("sets differ: %v %v", decoded.Used, decoded.RoundWords)
	}
	if len(decoded.Responses) != 2 || decoded.Responses[alice.ID] != "snake" || decoded.Responses[bob.ID] != "sun" {
		t.Fatalf("responses differ: %v", decoded.Responses)
	}
	if decoded.Scores[alice.ID] != 5 || !decoded.Deadline.Equal(g.Deadline) || decoded.RoundTime != time.Minute {
		t.Fatalf("fields differ: %+v", decoded)
	}
}

func TestDecodeNormalizes(t *testing.T) {
	tests := []struct {
		kind Kind
		data string
	}{
		{KindHangman, `{"player":{"id":1},"word":"apple","attempts":6}`},
		{KindWordGame, `{"round":1,"letter":"a","round_words":null}`},
		{KindTicTacToe, `{"x":{"id":1}}`},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			state, err := Decode(tt.kind, []byte(tt.data))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			switch s := state.(type) {
			case *Hangman:
				if s.Guessed == nil {
					t.Fatal("guessed set is nil")
				}
			case *WordGame:
				if s.Used == nil || s.RoundWords == nil || s.Responses == nil || s.Scores == nil {
					t.Fatalf("nil collections: %+v", s)
				}
			case *TicTacToe:
				if s.Turn != X {
					t.Fatalf("turn = %q", s.Turn)
				}
			}
		})
	}

	if _, err := Decode("chess", []byte(`{}`)); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("unknown kind = %v", err)
	}
}

func TestSetJSON(t *testing.T) {
	data, err := NewSet("b", "c", "a").MarshalJSON()
	if err != nil || string(data) != `["a","b","c"]` {
		t.Fatalf("marshal = %s %v", data, err)
	}
	var empty Set[string]
	data, err = empty.MarshalJSON()
	if err != nil || string(data) != `[]` {
		t.Fatalf("empty marshal = %s %v", data, err)
	}
}

func TestFallbackSource(t *testing.T) {
	list := NewListSource("fallback")
	tests := []struct {
		name    string
		primary WordSource
		want    string
	}{
		{"primary ok", NewListSource("Remote"), "remote"},
		{"primary unplayable", NewListSource("x1"), "fallback"},
		{"no primary", nil, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FallbackSource{Primary: tt.primary, Fallback: list}.Word(context.Background())
			if err != nil || got != tt.want {
				t.Fatalf("Word() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}

	word, err := NewListSource().Word(context.Background())
	if err != nil || !Playable(word) {
		t.Fatalf("embedded list word %q: %v", word, err)
	}
}
