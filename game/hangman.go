package game

import (
	"strings"
	"time"
	"unicode"
)

// HangmanAttempts is the number of wrong guesses a player may make.
const HangmanAttempts = 6

// Hangman is a single-player word guessing session.
type Hangman struct {
	Player   Player      `json:"player"`
	Word     string      `json:"word"`
	Guessed  Set[string] `json:"guessed"`
	Attempts int         `json:"attempts"`
}

func NewHangman(player Player, word string) *Hangman {
	return &Hangman{
		Player:   player,
		Word:     strings.ToLower(strings.TrimSpace(word)),
		Guessed:  NewSet[string](),
		Attempts: HangmanAttempts,
	}
}

func (h *Hangman) Kind() Kind { return KindHangman }

// Display renders the word with unguessed letters as underscores, e.g. "a _ _ l e".
func (h *Hangman) Display() string {
	letters := make([]string, 0, len(h.Word))
	for _, r := range h.Word {
		letter := string(r)
		if h.Guessed.Has(letter) || !unicode.IsLetter(r) {
			letters = append(letters, letter)
		} else {
			letters = append(letters, "_")
		}
	}
	return strings.Join(letters, " ")
}

func (h *Hangman) solved() bool {
	for _, r := range h.Word {
		if unicode.IsLetter(r) && !h.Guessed.Has(string(r)) {
			return false
		}
	}
	return true
}

// Move takes a single letter or a whole-word guess.
func (h *Hangman) Move(actor int64, move string, _ time.Time) (Outcome, error) {
	if actor != h.Player.ID {
		return Outcome{}, notAuthorized("Only the player who started this hangman game can guess.")
	}

	guess := strings.ToLower(strings.TrimSpace(move))
	if guess == "" || strings.IndexFunc(guess, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
		return Outcome{}, invalidMove("Please guess a single letter or the whole word.")
	}

	if len([]rune(guess)) > 1 {
		if guess == h.Word {
			for _, r := range h.Word {
				h.Guessed.Add(string(r))
			}
			return Outcome{Status: Won, State: h, Hit: true}, nil
		}
		return h.miss(), nil
	}

	if h.Guessed.Has(guess) {
		return Outcome{}, invalidMove("Letter already guessed!")
	}
	h.Guessed.Add(guess)

	if !strings.Contains(h.Word, guess) {
		return h.miss(), nil
	}
	if h.solved() {
		return Outcome{Status: Won, State: h, Hit: true}, nil
	}
	return Outcome{Status: Ongoing, State: h, Hit: true}, nil
}

func (h *Hangman) miss() Outcome {
	h.Attempts--
	if h.Attempts <= 0 {
		h.Attempts = 0
		return Outcome{Status: Lost, State: h}
	}
	return Outcome{Status: Ongoing, State: h}
}

func (h *Hangman) Join(Player, time.Time) (Outcome, error) {
	return Outcome{}, invalidMove("Hangman is played alone. Start your own game when this one ends.")
}

func (h *Hangman) CanForfeit(actor int64) bool {
	return actor == h.Player.ID
}

func (h *Hangman) normalize() {
	if h.Guessed == nil {
		h.Guessed = NewSet[string]()
	}
}
