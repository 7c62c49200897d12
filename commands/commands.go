// Package commands implements the handler groups routed by the dispatch pipeline.
package commands

import (
	"context"
	"strconv"
	"strings"
	"time"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/dispatch"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/game"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/lookup"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/moderation"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
)

// Handler group names in dispatch order.
const (
	GroupSystem    = "system"
	GroupAdmin     = "admin"
	GroupMedia     = "media"
	GroupHangman   = "hangman"
	GroupTicTacToe = "tictactoe"
	GroupWordGame  = "wordgame"
)

type MovieFinder interface {
	Movie(ctx context.Context, title string) (lookup.Movie, error)
}

type AnimeFinder interface {
	Anime(ctx context.Context, title string) (lookup.Anime, error)
}

// Deps are the collaborators shared by all handler groups.
type Deps struct {
	Store     storage.Store
	Transport chat.Transport
	Games     *game.Engine
	Words     game.WordSource
	Movies    MovieFinder
	Anime     AnimeFinder
	OwnerID   int64
	// RoundTime is the word game round length.
	RoundTime time.Duration
	// LookupTimeout bounds every metadata lookup.
	LookupTimeout time.Duration
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

type Handlers struct {
	deps       Deps
	moderation *moderation.Engine
	started    time.Time
}

func New(deps Deps) *Handlers {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Games == nil {
		deps.Games = game.NewEngine(deps.Store).WithClock(deps.Now)
	}
	if deps.Words == nil {
		deps.Words = game.NewListSource()
	}
	if deps.RoundTime <= 0 {
		deps.RoundTime = time.Minute
	}
	if deps.LookupTimeout <= 0 {
		deps.LookupTimeout = lookup.DefaultTimeout
	}
	return &Handlers{
		deps:       deps,
		moderation: moderation.NewEngine(deps.Store, deps.Transport),
		started:    deps.Now(),
	}
}

// Groups returns every handler group in dispatch order.
func (h *Handlers) Groups() []dispatch.Group {
	return []dispatch.Group{
		h.system(),
		h.admin(),
		h.media(),
		h.hangman(),
		h.tictactoe(),
		h.wordgame(),
	}
}

// Router builds the routing table over Groups.
func (h *Handlers) Router() (*dispatch.Router, error) {
	return dispatch.NewRouter(h.Groups()...)
}

func validation(message string) error {
	return apperr.New(apperr.Validation, message)
}

func requireGroup(req *dispatch.Request) error {
	if !req.Message.IsGroup() {
		return validation("This command only works in groups.")
	}
	return nil
}

// target returns the user a command is aimed at: the replied-to author, a mention,
// or a numeric user id in the first argument.
func target(req *dispatch.Request) (chat.User, error) {
	if u, ok := req.Message.Target(); ok {
		return u, nil
	}
	if id, err := strconv.ParseInt(strings.TrimPrefix(req.Arg(0), "@"), 10, 64); err == nil && id != 0 {
		return chat.User{ID: id}, nil
	}
	return chat.User{}, validation("Reply to a message or mention a user. " + req.Usage("@user"))
}

// chatArg parses a chat id argument, defaulting to the current group.
func chatArg(req *dispatch.Request, i int) (int64, error) {
	if arg := req.Arg(i); arg != "" {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return 0, validation("Invalid chat id: " + arg)
		}
		return id, nil
	}
	if req.Message.IsGroup() {
		return req.ChatID(), nil
	}
	return 0, validation(req.Usage("<chat id>"))
}

// toggle parses "on" or "off".
func toggle(req *dispatch.Request) (bool, error) {
	switch strings.ToLower(req.Arg(0)) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	default:
		return false, validation(req.Usage("on|off"))
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func playerOf(u chat.User) game.Player {
	return game.Player{ID: u.ID, Name: u.DisplayName()}
}

func userOf(p game.Player) chat.User {
	return chat.User{ID: p.ID, FirstName: p.Name}
}

func usersOf(players []game.Player) []chat.User {
	users := make([]chat.User, 0, len(players))
	for _, p := range players {
		users = append(users, userOf(p))
	}
	return users
}

func mentions(players []game.Player) string {
	tokens := make([]string, 0, len(players))
	for _, p := range players {
		tokens = append(tokens, chat.Mention(userOf(p)))
	}
	return strings.Join(tokens, ", ")
}
