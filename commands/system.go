package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/dispatch"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/roles"
)

func (h *Handlers) system() dispatch.Group {
	routes := []dispatch.Route{
		{Command: "help", Aliases: []string{"menu"}, Role: roles.Member, Handler: h.help, Usage: "show this list"},
		{Command: "ping", Role: roles.Member, Handler: h.ping, Usage: "check that the bot answers"},
		{Command: dispatch.StatusCommand, Role: roles.Member, Handler: h.alive, Usage: "bot status, requests approval in new groups"},
	}
	return dispatch.Group{Name: GroupSystem, Routes: append(routes, h.ownerRoutes()...)}
}

func (h *Handlers) help(ctx context.Context, req *dispatch.Request) error {
	seen := make(map[string]bool)

	var b strings.Builder
	b.WriteString("📖 Available commands\n")
	for _, group := range h.Groups() {
		var lines []string
		for _, route := range group.Routes {
			if route.Usage == "" || seen[route.Command] {
				continue
			}
			seen[route.Command] = true
			if !req.Role.Allows(route.Role) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s%s: %s", req.Prefix, route.Command, route.Usage))
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n%s\n", strings.ToUpper(group.Name), strings.Join(lines, "\n"))
	}

	return req.Reply(ctx, strings.TrimRight(b.String(), "\n"))
}

func (h *Handlers) ping(ctx context.Context, req *dispatch.Request) error {
	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, "🏓 Pong!")
}

func (h *Handlers) alive(ctx context.Context, req *dispatch.Request) error {
	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("✅ Bot is alive!\nUptime: %s\nPrefix: %s", h.uptime(), req.Prefix))
}

func (h *Handlers) uptime() time.Duration {
	return h.deps.Now().Sub(h.started).Truncate(time.Second)
}
