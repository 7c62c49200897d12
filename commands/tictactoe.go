package commands

import (
	"context"
	"fmt"
	"strings"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/dispatch"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/game"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/roles"
)

func (h *Handlers) tictactoe() dispatch.Group {
	return dispatch.Group{Name: GroupTicTacToe, Routes: []dispatch.Route{
		{
			Command: "ttt", Aliases: []string{"tictactoe"}, Role: roles.Member, Handler: h.tttCommand,
			Usage: "challenge a user (reply/mention) or anyone; \"ttt join\", \"ttt forfeit\"",
		},
		{Command: "move", Role: roles.Member, Handler: h.tttMove, Usage: "place your mark on a cell 1-9"},
	}}
}

func (h *Handlers) tttCommand(ctx context.Context, req *dispatch.Request) error {
	switch strings.ToLower(req.Arg(0)) {
	case "join", "accept":
		return h.tttJoin(ctx, req)
	case "forfeit", "quit", "end":
		return h.tttForfeit(ctx, req)
	default:
		return h.tttStart(ctx, req)
	}
}

func (h *Handlers) tttStart(ctx context.Context, req *dispatch.Request) error {
	initiator := req.Sender()

	var opponent chat.User
	if u, ok := req.Message.Target(); ok {
		if u.ID == initiator.ID {
			return validation("You cannot play against yourself.")
		}
		if u.IsBot {
			return validation("Bots cannot play tic-tac-toe.")
		}
		opponent = u
	}

	session := game.NewTicTacToe(playerOf(initiator), game.Player{})
	if opponent.ID != 0 {
		session = game.NewTicTacToe(playerOf(initiator), playerOf(opponent))
	}
	if err := h.deps.Games.Start(ctx, req.ChatID(), session); err != nil {
		return gameErr(req, game.KindTicTacToe, err)
	}

	req.React(ctx, chat.ReactionStarted)
	if session.Open() {
		text := fmt.Sprintf("❌⭕ %s wants to play tic-tac-toe! Type %sttt join to accept.\n\n%s",
			chat.Mention(initiator), req.Prefix, session.Render())
		return req.Reply(ctx, text, initiator)
	}
	return req.Reply(ctx, tttBoard(session, req.Prefix), initiator, opponent)
}

func (h *Handlers) tttJoin(ctx context.Context, req *dispatch.Request) error {
	outcome, err := h.deps.Games.Join(ctx, game.KindTicTacToe, req.ChatID(), playerOf(req.Sender()))
	if err != nil {
		return gameErr(req, game.KindTicTacToe, err)
	}
	session := outcome.State.(*game.TicTacToe)

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, tttBoard(session, req.Prefix), userOf(session.X), userOf(session.O))
}

func (h *Handlers) tttMove(ctx context.Context, req *dispatch.Request) error {
	if req.Arg(0) == "" {
		return validation(req.Usage("<1-9>"))
	}

	outcome, err := h.deps.Games.Submit(ctx, game.KindTicTacToe, req.ChatID(), req.Sender().ID, req.Arg(0))
	if err != nil {
		return gameErr(req, game.KindTicTacToe, err)
	}
	session := outcome.State.(*game.TicTacToe)

	switch outcome.Status {
	case game.Won:
		winner := outcome.Winners[0]
		req.React(ctx, chat.ReactionWon)
		return req.Reply(ctx, fmt.Sprintf("🏆 %s wins!\n\n%s", chat.Mention(userOf(winner)), session.Render()), userOf(winner))
	case game.Draw:
		req.React(ctx, chat.ReactionOK)
		return req.Reply(ctx, fmt.Sprintf("🤝 It's a draw!\n\n%s", session.Render()))
	}

	req.React(ctx, chat.ReactionOK)
	next := userOf(session.PlayerFor(session.Turn))
	return req.Reply(ctx, fmt.Sprintf("%s\n\n%s (%s) to move.", session.Render(), chat.Mention(next), session.Turn), next)
}

func (h *Handlers) tttForfeit(ctx context.Context, req *dispatch.Request) error {
	player := req.Sender()
	outcome, err := h.deps.Games.Forfeit(ctx, game.KindTicTacToe, req.ChatID(), player.ID)
	if err != nil {
		return gameErr(req, game.KindTicTacToe, err)
	}

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("🏳️ %s forfeited the game. Final board:\n\n%s",
		chat.Mention(player), outcome.State.(*game.TicTacToe).Render()), player)
}

func tttBoard(session *game.TicTacToe, prefix string) string {
	x, o := userOf(session.X), userOf(session.O)
	return fmt.Sprintf("❌⭕ %s (X) vs %s (O)\n\n%s\n\n%s moves first. Play with %smove <1-9>",
		chat.Mention(x), chat.Mention(o), session.Render(), chat.Mention(x), prefix)
}
