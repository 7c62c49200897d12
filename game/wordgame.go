package game

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
)

const (
	WordGameRounds   = 5
	WordGameMaxWords = 60
	wordGameMinLen   = 3
	wordGameMaxLen   = 7
)

// WordGame is a word chain: each round every player submits one word starting with
// the round's letter; the next letter is the last letter of the round's longest word.
type WordGame struct {
	Initiator Player   `json:"initiator"`
	Players   []Player `json:"players"`
	Round     int      `json:"round"`
	Letter    string   `json:"letter"`
	MinLength int      `json:"min_length"`
	// RoundWords are the words of the current round, Used every word of the game.
	RoundWords Set[string]      `json:"round_words"`
	Used       Set[string]      `json:"used"`
	Responses  map[int64]string `json:"responses"`
	Scores     map[int64]int    `json:"scores"`
	Deadline   time.Time        `json:"deadline"`
	RoundTime  time.Duration    `json:"round_time"`
}

func NewWordGame(initiator Player, letter string, roundTime time.Duration, now time.Time) *WordGame {
	return &WordGame{
		Initiator:  initiator,
		Players:    []Player{initiator},
		Round:      1,
		Letter:     strings.ToLower(letter),
		MinLength:  wordGameMinLen,
		RoundWords: NewSet[string](),
		Used:       NewSet[string](),
		Responses:  make(map[int64]string),
		Scores:     make(map[int64]int),
		Deadline:   now.Add(roundTime),
		RoundTime:  roundTime,
	}
}

func (g *WordGame) Kind() Kind { return KindWordGame }

// Started reports whether the first word has been played; joining closes then.
func (g *WordGame) Started() bool {
	return g.Round > 1 || len(g.Used) > 0
}

func (g *WordGame) player(id int64) (Player, bool) {
	for _, p := range g.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// Expired reports whether the current round's deadline has passed.
func (g *WordGame) Expired(now time.Time) bool {
	return !g.Deadline.IsZero() && !now.Before(g.Deadline)
}

func (g *WordGame) Join(player Player, now time.Time) (Outcome, error) {
	if _, ok := g.player(player.ID); ok {
		return Outcome{}, invalidMove("You have already joined this game.")
	}
	if g.Started() {
		return Outcome{}, invalidMove("The game is already under way. Wait for the next one.")
	}
	g.Players = append(g.Players, player)
	g.Deadline = now.Add(g.RoundTime)
	return Outcome{Status: Ongoing, State: g}, nil
}

// Move submits a word for the current round.
func (g *WordGame) Move(actor int64, move string, now time.Time) (Outcome, error) {
	if _, ok := g.player(actor); !ok {
		return Outcome{}, notAuthorized("Join the game before playing.")
	}
	if _, answered := g.Responses[actor]; answered {
		return Outcome{}, invalidMove("You already played a word this round.")
	}

	word := strings.ToLower(strings.TrimSpace(move))
	if word == "" || strings.IndexFunc(word, func(r rune) bool { return !unicode.IsLetter(r) }) >= 0 {
		return Outcome{}, invalidMove("Words may only contain letters.")
	}
	if !strings.HasPrefix(word, g.Letter) {
		return Outcome{}, invalidMove(fmt.Sprintf("The word must start with %q.", g.Letter))
	}
	if len([]rune(word)) < g.MinLength {
		return Outcome{}, invalidMove(fmt.Sprintf("The word must have at least %d letters.", g.MinLength))
	}
	if g.RoundWords.Has(word) || g.Used.Has(word) {
		return Outcome{}, invalidMove("That word has already been used.")
	}

	g.Responses[actor] = word
	g.RoundWords.Add(word)
	g.Used.Add(word)
	g.Scores[actor] += len([]rune(word))

	if len(g.Responses) >= len(g.Players) || len(g.Used) >= WordGameMaxWords {
		return g.closeRound(now), nil
	}
	return Outcome{Status: Ongoing, State: g, Hit: true}, nil
}

// closeRound advances to the next round or finishes the game.
func (g *WordGame) closeRound(now time.Time) Outcome {
	if len(g.Responses) == 0 {
		return g.finish()
	}

	if g.Round >= WordGameRounds || len(g.Used) >= WordGameMaxWords {
		return g.finish()
	}

	// Ties go to the alphabetically first word so the next letter does not depend on map order.
	longest := ""
	for _, word := range g.Responses {
		n, best := len([]rune(word)), len([]rune(longest))
		if n > best || (n == best && word < longest) {
			longest = word
		}
	}
	runes := []rune(longest)

	g.Round++
	g.Letter = string(runes[len(runes)-1])
	g.MinLength = min(wordGameMinLen+g.Round-1, wordGameMaxLen)
	g.RoundWords = NewSet[string]()
	g.Responses = make(map[int64]string)
	g.Deadline = now.Add(g.RoundTime)

	return Outcome{Status: Ongoing, State: g, RoundClosed: true, Hit: true}
}

func (g *WordGame) finish() Outcome {
	best := 0
	for _, score := range g.Scores {
		best = max(best, score)
	}
	var winners []Player
	if best > 0 {
		for _, p := range g.Players {
			if g.Scores[p.ID] == best {
				winners = append(winners, p)
			}
		}
	}
	slices.SortFunc(winners, func(a, b Player) int { return cmp.Compare(a.ID, b.ID) })
	return Outcome{Status: Finished, State: g, Winners: winners, RoundClosed: true}
}

// CloseRound ends the current round when its deadline has passed.
func (g *WordGame) CloseRound(now time.Time) (Outcome, bool) {
	if !g.Expired(now) {
		return Outcome{Status: Ongoing, State: g}, false
	}
	return g.closeRound(now), true
}

func (g *WordGame) CanForfeit(actor int64) bool {
	return actor == g.Initiator.ID
}

func (g *WordGame) normalize() {
	if g.RoundWords == nil {
		g.RoundWords = NewSet[string]()
	}
	if g.Used == nil {
		g.Used = NewSet[string]()
	}
	if g.Responses == nil {
		g.Responses = make(map[int64]string)
	}
	if g.Scores == nil {
		g.Scores = make(map[int64]int)
	}
}
