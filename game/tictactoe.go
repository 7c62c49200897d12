package game

import (
	"strconv"
	"strings"
	"time"
)

// Mark is the content of a board cell.
type Mark string

const (
	Empty Mark = ""
	X     Mark = "X"
	O     Mark = "O"
)

var winningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// TicTacToe is a two player session. X is the initiator and moves first.
// An unset O means the challenge is open to anyone.
type TicTacToe struct {
	Board [9]Mark `json:"board"`
	X     Player  `json:"x"`
	O     Player  `json:"o"`
	Turn  Mark    `json:"turn"`
}

func NewTicTacToe(initiator, opponent Player) *TicTacToe {
	return &TicTacToe{X: initiator, O: opponent, Turn: X}
}

func (g *TicTacToe) Kind() Kind { return KindTicTacToe }

// Open reports whether the challenge still waits for an opponent.
func (g *TicTacToe) Open() bool {
	return g.O.ID == 0
}

// PlayerFor returns the player holding mark.
func (g *TicTacToe) PlayerFor(mark Mark) Player {
	if mark == O {
		return g.O
	}
	return g.X
}

// Render draws the board with free cells numbered 1-9.
func (g *TicTacToe) Render() string {
	var b strings.Builder
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			i := row*3 + col
			cell := string(g.Board[i])
			if cell == "" {
				cell = strconv.Itoa(i + 1)
			}
			b.WriteString(cell)
			if col < 2 {
				b.WriteString(" | ")
			}
		}
		if row < 2 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Move places the turn holder's mark on cell "1".."9".
func (g *TicTacToe) Move(actor int64, move string, _ time.Time) (Outcome, error) {
	if actor != g.X.ID && actor != g.O.ID {
		return Outcome{}, notAuthorized("You are not a player in this game.")
	}
	if g.Open() {
		return Outcome{}, invalidMove("Waiting for an opponent to join.")
	}
	if g.PlayerFor(g.Turn).ID != actor {
		return Outcome{}, notAuthorized("It is not your turn.")
	}

	cell, err := strconv.Atoi(strings.TrimSpace(move))
	if err != nil || cell < 1 || cell > 9 {
		return Outcome{}, invalidMove("Pick a cell from 1 to 9.")
	}
	if g.Board[cell-1] != Empty {
		return Outcome{}, invalidMove("That cell is already taken.")
	}

	g.Board[cell-1] = g.Turn
	if g.wins(g.Turn) {
		return Outcome{Status: Won, State: g, Winners: []Player{g.PlayerFor(g.Turn)}}, nil
	}
	if g.full() {
		return Outcome{Status: Draw, State: g}, nil
	}

	if g.Turn == X {
		g.Turn = O
	} else {
		g.Turn = X
	}
	return Outcome{Status: Ongoing, State: g}, nil
}

func (g *TicTacToe) wins(mark Mark) bool {
	for _, line := range winningLines {
		if g.Board[line[0]] == mark && g.Board[line[1]] == mark && g.Board[line[2]] == mark {
			return true
		}
	}
	return false
}

func (g *TicTacToe) full() bool {
	for _, cell := range g.Board {
		if cell == Empty {
			return false
		}
	}
	return true
}

// Join accepts an open challenge.
func (g *TicTacToe) Join(player Player, _ time.Time) (Outcome, error) {
	if player.ID == g.X.ID {
		return Outcome{}, invalidMove("You cannot play against yourself.")
	}
	if !g.Open() {
		return Outcome{}, invalidMove("This game already has two players.")
	}
	g.O = player
	return Outcome{Status: Ongoing, State: g}, nil
}

func (g *TicTacToe) CanForfeit(actor int64) bool {
	return actor == g.X.ID || (!g.Open() && actor == g.O.ID)
}

func (g *TicTacToe) normalize() {
	if g.Turn != O {
		g.Turn = X
	}
}
