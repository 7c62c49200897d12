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

func (h *Handlers) wordgame() dispatch.Group {
	return dispatch.Group{Name: GroupWordGame, Routes: []dispatch.Route{
		{
			Command: "wordgame", Aliases: []string{"wg"}, Role: roles.Member, Handler: h.wgCommand,
			Usage: "start a word chain; \"wg join\", \"wg forfeit\"",
		},
		{Command: "word", Role: roles.Member, Handler: h.wgWord, Usage: "play a word in the word chain"},
	}}
}

func (h *Handlers) wgCommand(ctx context.Context, req *dispatch.Request) error {
	switch strings.ToLower(req.Arg(0)) {
	case "join":
		return h.wgJoin(ctx, req)
	case "forfeit", "quit", "end":
		return h.wgForfeit(ctx, req)
	default:
		return h.wgStart(ctx, req)
	}
}

func (h *Handlers) wgStart(ctx context.Context, req *dispatch.Request) error {
	initiator := req.Sender()
	session := game.NewWordGame(playerOf(initiator), game.RandomLetter(), h.deps.RoundTime, h.deps.Now())
	if err := h.deps.Games.Start(ctx, req.ChatID(), session); err != nil {
		return gameErr(req, game.KindWordGame, err)
	}

	req.React(ctx, chat.ReactionStarted)
	text := fmt.Sprintf("🔤 Word chain started by %s!\n%s\n\nJoin with %swg join before the first word. Play with %sword <word>. Each round lasts %s.",
		chat.Mention(initiator), roundLine(session), req.Prefix, req.Prefix, h.deps.RoundTime)
	return req.Reply(ctx, text, initiator)
}

func (h *Handlers) wgJoin(ctx context.Context, req *dispatch.Request) error {
	player := req.Sender()
	outcome, err := h.deps.Games.Join(ctx, game.KindWordGame, req.ChatID(), playerOf(player))
	if err != nil {
		return gameErr(req, game.KindWordGame, err)
	}
	session := outcome.State.(*game.WordGame)

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("✅ %s joined the word chain. Players: %d", chat.Mention(player), len(session.Players)), player)
}

func (h *Handlers) wgWord(ctx context.Context, req *dispatch.Request) error {
	if req.Arg(0) == "" {
		return validation(req.Usage("<word>"))
	}

	player := req.Sender()
	outcome, err := h.deps.Games.Submit(ctx, game.KindWordGame, req.ChatID(), player.ID, req.Arg(0))
	if err != nil {
		return gameErr(req, game.KindWordGame, err)
	}
	session := outcome.State.(*game.WordGame)

	if !outcome.RoundClosed {
		req.React(ctx, chat.ReactionOK)
		waiting := len(session.Players) - len(session.Responses)
		return req.Reply(ctx, fmt.Sprintf("✅ Accepted (+%d). Waiting for %d more player(s).",
			len([]rune(strings.ToLower(req.Arg(0)))), waiting))
	}

	if outcome.Status == game.Finished {
		req.React(ctx, chat.ReactionWon)
	} else {
		req.React(ctx, chat.ReactionOK)
	}
	text, users := wordGameSummary(outcome)
	return req.Reply(ctx, text, users...)
}

func (h *Handlers) wgForfeit(ctx context.Context, req *dispatch.Request) error {
	outcome, err := h.deps.Games.Forfeit(ctx, game.KindWordGame, req.ChatID(), req.Sender().ID)
	if err != nil {
		return gameErr(req, game.KindWordGame, err)
	}

	req.React(ctx, chat.ReactionOK)
	text, users := wordGameSummary(outcome)
	return req.Reply(ctx, "🏳️ The word chain was ended by its starter.\n"+text, users...)
}

func roundLine(g *game.WordGame) string {
	return fmt.Sprintf("Round %d/%d: words starting with %q, at least %d letters.",
		g.Round, game.WordGameRounds, g.Letter, g.MinLength)
}

// wordGameSummary renders a closed round or the end of a game with the scores.
func wordGameSummary(outcome game.Outcome) (string, []chat.User) {
	session := outcome.State.(*game.WordGame)
	users := usersOf(session.Players)

	var b strings.Builder
	if outcome.Status.Terminal() {
		b.WriteString("🏁 Word chain over!\n")
	} else {
		b.WriteString("⏭️ Round closed!\n")
	}
	b.WriteString("Scores:\n")
	for _, p := range session.Players {
		fmt.Fprintf(&b, "%s: %d\n", chat.Mention(userOf(p)), session.Scores[p.ID])
	}

	switch {
	case !outcome.Status.Terminal():
		b.WriteString("\n" + roundLine(session))
	case len(outcome.Winners) == 0:
		b.WriteString("\nNobody scored.")
	default:
		fmt.Fprintf(&b, "\n🏆 Winner: %s", mentions(outcome.Winners))
	}
	return b.String(), users
}
