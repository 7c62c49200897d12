package game

import (
	"context"
	_ "embed"
	"math/rand/v2"
	"strings"
	"unicode"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

//go:embed words.txt
var embeddedWords string

// WordSource supplies hangman words.
type WordSource interface {
	Word(ctx context.Context) (string, error)
}

// ListSource picks random words from a fixed list.
type ListSource struct {
	words []string
}

// NewListSource returns a source over words. An empty list falls back to the embedded one.
func NewListSource(words ...string) *ListSource {
	if len(words) == 0 {
		words = strings.Fields(embeddedWords)
	}
	return &ListSource{words: words}
}

func (s *ListSource) Word(context.Context) (string, error) {
	return s.words[rand.IntN(len(s.words))], nil
}

// FallbackSource asks Primary first and uses Fallback when it fails or returns something unplayable.
type FallbackSource struct {
	Primary  WordSource
	Fallback WordSource
}

func (s FallbackSource) Word(ctx context.Context) (string, error) {
	if s.Primary != nil {
		word, err := s.Primary.Word(ctx)
		if err == nil && Playable(word) {
			return strings.ToLower(word), nil
		}
		telemetry.Logger(ctx).Warn("game: Word source failed, using fallback list", "error", err, "word", word)
	}
	return s.Fallback.Word(ctx)
}

// Playable reports whether word is a lowercase-able run of at least three letters.
func Playable(word string) bool {
	if len([]rune(word)) < 3 {
		return false
	}
	return strings.IndexFunc(word, func(r rune) bool { return !unicode.IsLetter(r) }) < 0
}

const roundLetters = "abcdefghilmnoprstw"

// RandomLetter returns a common starting letter for a word game.
func RandomLetter() string {
	return string(roundLetters[rand.IntN(len(roundLetters))])
}
