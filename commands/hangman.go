package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/dispatch"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/game"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/roles"
)

func (h *Handlers) hangman() dispatch.Group {
	return dispatch.Group{Name: GroupHangman, Routes: []dispatch.Route{
		{Command: "hangman", Role: roles.Member, Handler: h.hangmanStart, Usage: "start a hangman game"},
		{Command: "hg", Role: roles.Member, Handler: h.hangmanShort, Usage: "start, or \"hg forfeit\" to give up"},
		{Command: "guess", Role: roles.Member, Handler: h.hangmanGuess, Usage: "guess a letter or the whole word"},
	}}
}

func (h *Handlers) hangmanShort(ctx context.Context, req *dispatch.Request) error {
	switch strings.ToLower(req.Arg(0)) {
	case "":
		return h.hangmanStart(ctx, req)
	case "forfeit", "quit":
		return h.hangmanForfeit(ctx, req)
	default:
		return h.hangmanGuess(ctx, req)
	}
}

func (h *Handlers) hangmanStart(ctx context.Context, req *dispatch.Request) error {
	chatID := req.ChatID()
	if _, err := h.deps.Games.Active(ctx, game.KindHangman, chatID); err == nil {
		return gameErr(req, game.KindHangman, game.ErrAlreadyActive)
	} else if !errors.Is(err, game.ErrNotActive) {
		return err
	}

	wordCtx, cancel := context.WithTimeout(ctx, h.deps.LookupTimeout)
	word, err := h.deps.Words.Word(wordCtx)
	cancel()
	if err != nil || !game.Playable(word) {
		return apperr.Wrap(apperr.Transient, "could not pick a word", err)
	}

	player := req.Sender()
	session := game.NewHangman(playerOf(player), word)
	if err := h.deps.Games.Start(ctx, chatID, session); err != nil {
		return gameErr(req, game.KindHangman, err)
	}

	req.React(ctx, chat.ReactionStarted)
	text := fmt.Sprintf("🎮 Hangman started by %s!\nWord: %s\nAttempts left: %d\nGuess with %sguess <letter>",
		chat.Mention(player), session.Display(), session.Attempts, req.Prefix)
	return req.Reply(ctx, text, player)
}

func (h *Handlers) hangmanGuess(ctx context.Context, req *dispatch.Request) error {
	guess := req.Arg(0)
	if guess == "" {
		return validation(req.Usage("<letter>"))
	}

	player := req.Sender()
	outcome, err := h.deps.Games.Submit(ctx, game.KindHangman, req.ChatID(), player.ID, guess)
	if err != nil {
		return gameErr(req, game.KindHangman, err)
	}
	session := outcome.State.(*game.Hangman)

	switch outcome.Status {
	case game.Won:
		req.React(ctx, chat.ReactionWon)
		return req.Reply(ctx, fmt.Sprintf("🎉 Congratulations %s! You guessed %s!", chat.Mention(player), session.Word), player)
	case game.Lost:
		req.React(ctx, chat.ReactionFailed)
		return req.Reply(ctx, fmt.Sprintf("💀 Game over! The word was %s.", session.Word))
	}

	if outcome.Hit {
		req.React(ctx, chat.ReactionOK)
	} else {
		req.React(ctx, chat.ReactionFailed)
	}
	return req.Reply(ctx, fmt.Sprintf("Word: %s\nAttempts left: %d", session.Display(), session.Attempts))
}

func (h *Handlers) hangmanForfeit(ctx context.Context, req *dispatch.Request) error {
	player := req.Sender()
	outcome, err := h.deps.Games.Forfeit(ctx, game.KindHangman, req.ChatID(), player.ID)
	if err != nil {
		return gameErr(req, game.KindHangman, err)
	}

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("🏳️ Game forfeited by %s. The word was %s.",
		chat.Mention(player), outcome.State.(*game.Hangman).Word), player)
}
