package commands

import (
	"errors"
	"fmt"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/dispatch"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/game"
)

var gameTitles = map[game.Kind]string{
	game.KindHangman:   "hangman",
	game.KindTicTacToe: "tic-tac-toe",
	game.KindWordGame:  "word chain",
}

var startCommands = map[game.Kind]string{
	game.KindHangman:   "hangman",
	game.KindTicTacToe: "ttt",
	game.KindWordGame:  "wordgame",
}

// gameErr rewrites the engine's generic session errors into per-game replies.
func gameErr(req *dispatch.Request, kind game.Kind, err error) error {
	switch {
	case errors.Is(err, game.ErrNotActive):
		return apperr.Wrap(apperr.NotFound,
			fmt.Sprintf("No active %s game. Start one with %s%s.", gameTitles[kind], req.Prefix, startCommands[kind]), err)
	case errors.Is(err, game.ErrAlreadyActive):
		return apperr.Wrap(apperr.Conflict, fmt.Sprintf("A %s game is already active!", gameTitles[kind]), err)
	default:
		return err
	}
}
