package commands

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/dispatch"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/roles"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

const maxPrefixLength = 3

func (h *Handlers) ownerRoutes() []dispatch.Route {
	return []dispatch.Route{
		{Command: "ban", Role: roles.Owner, Handler: h.ban, Usage: "stop a user from using the bot"},
		{Command: "unban", Role: roles.Owner, Handler: h.unban, Usage: "lift a ban"},
		{Command: "accept", Role: roles.Owner, Handler: h.accept, Usage: "approve a group by id"},
		{Command: "reject", Role: roles.Owner, Handler: h.reject, Usage: "reject a group by id"},
		{Command: "status", Role: roles.Owner, Handler: h.status, Usage: "bot statistics"},
		{Command: "setprefix", Role: roles.Owner, Handler: h.setPrefix, Usage: "change the command prefix"},
		{Command: "listgroups", Role: roles.Owner, Handler: h.listGroups, Usage: "list known groups"},
		{Command: "removegroup", Role: roles.Owner, Handler: h.removeGroup, Usage: "forget a group by id"},
	}
}

func (h *Handlers) ban(ctx context.Context, req *dispatch.Request) error {
	user, err := target(req)
	if err != nil {
		return err
	}
	if user.ID == h.deps.OwnerID {
		return apperr.New(apperr.Validation, "The bot owner cannot be banned.")
	}
	if req.Snapshot.Banned(user.ID) {
		return apperr.New(apperr.Conflict, "This user is already banned.")
	}

	if err := h.deps.Store.UpsertBan(ctx, user.ID); err != nil {
		return apperr.Wrap(apperr.Transient, "could not store the ban", err)
	}
	telemetry.Logger(ctx).Info("commands: User banned", "user_id", user.ID)

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("🚫 %s has been banned from using the bot.", chat.Mention(user)), user)
}

func (h *Handlers) unban(ctx context.Context, req *dispatch.Request) error {
	user, err := target(req)
	if err != nil {
		return err
	}
	if !req.Snapshot.Banned(user.ID) {
		return apperr.New(apperr.NotFound, "This user is not banned.")
	}

	if err := h.deps.Store.RemoveBan(ctx, user.ID); err != nil {
		return apperr.Wrap(apperr.Transient, "could not remove the ban", err)
	}
	telemetry.Logger(ctx).Info("commands: User unbanned", "user_id", user.ID)

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("✅ %s has been unbanned.", chat.Mention(user)), user)
}

func (h *Handlers) accept(ctx context.Context, req *dispatch.Request) error {
	chatID, err := chatArg(req, 0)
	if err != nil {
		return err
	}

	group, ok := req.Snapshot.Group(chatID)
	if !ok {
		group = storage.GroupSettings{ChatID: chatID}
	}
	if group.Approved {
		return apperr.New(apperr.Conflict, "This group is already approved.")
	}
	group.Approved = true
	group.Blocked = false

	if err := h.deps.Store.UpsertGroup(ctx, group); err != nil {
		return apperr.Wrap(apperr.Transient, "could not approve the group", err)
	}
	telemetry.Logger(ctx).Info("commands: Group approved", "chat_id", chatID)

	if chatID != req.ChatID() {
		notice := fmt.Sprintf("✅ This group has been approved. Type %shelp to see the commands.", req.Prefix)
		if err := req.Send(ctx, chatID, notice); err != nil {
			telemetry.Logger(ctx).Warn("commands: Failed to notify approved group", "error", err, "chat_id", chatID)
		}
	}

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("✅ Group %s approved.", groupLabel(group)))
}

func (h *Handlers) reject(ctx context.Context, req *dispatch.Request) error {
	chatID, err := chatArg(req, 0)
	if err != nil {
		return err
	}

	group, ok := req.Snapshot.Group(chatID)
	if !ok {
		group = storage.GroupSettings{ChatID: chatID}
	}
	group.Approved = false
	group.Blocked = true

	if err := h.deps.Store.UpsertGroup(ctx, group); err != nil {
		return apperr.Wrap(apperr.Transient, "could not reject the group", err)
	}
	telemetry.Logger(ctx).Info("commands: Group rejected", "chat_id", chatID)

	if chatID != req.ChatID() {
		if err := req.Send(ctx, chatID, "❌ This group's approval request was rejected."); err != nil {
			telemetry.Logger(ctx).Warn("commands: Failed to notify rejected group", "error", err, "chat_id", chatID)
		}
	}

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("❌ Group %s rejected.", groupLabel(group)))
}

func (h *Handlers) status(ctx context.Context, req *dispatch.Request) error {
	snap := req.Snapshot

	approved := 0
	for _, g := range snap.Groups {
		if g.Approved {
			approved++
		}
	}
	warned := 0
	for _, count := range snap.Warnings {
		if count > 0 {
			warned++
		}
	}

	text := fmt.Sprintf("📊 Bot status\nUptime: %s\nGroups: %d (%d approved)\nBanned users: %d\nWarned members: %d\nActive games: %d\nPrefix: %s",
		h.uptime(), len(snap.Groups), approved, len(snap.Bans), warned, len(snap.Games), snap.Prefix)
	return req.Reply(ctx, text)
}

func (h *Handlers) setPrefix(ctx context.Context, req *dispatch.Request) error {
	prefix := req.Arg(0)
	if prefix == "" || len(req.Args) > 1 {
		return validation(req.Usage("<prefix>"))
	}
	if utf8.RuneCountInString(prefix) > maxPrefixLength ||
		strings.IndexFunc(prefix, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
		return validation(fmt.Sprintf("The prefix must be up to %d symbols without letters or digits.", maxPrefixLength))
	}

	if err := h.deps.Store.SetPrefix(ctx, prefix); err != nil {
		return apperr.Wrap(apperr.Transient, "could not store the prefix", err)
	}
	telemetry.Logger(ctx).Info("commands: Prefix changed", "prefix", prefix)

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("✅ Prefix changed to %s", prefix))
}

func (h *Handlers) listGroups(ctx context.Context, req *dispatch.Request) error {
	groups := make([]storage.GroupSettings, 0, len(req.Snapshot.Groups))
	for _, g := range req.Snapshot.Groups {
		groups = append(groups, g)
	}
	if len(groups) == 0 {
		return req.Reply(ctx, "No groups known yet.")
	}
	slices.SortFunc(groups, func(a, b storage.GroupSettings) int { return cmp.Compare(a.ChatID, b.ChatID) })

	lines := make([]string, 0, len(groups)+1)
	lines = append(lines, fmt.Sprintf("📋 Groups (%d)", len(groups)))
	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("• %s: %s", groupLabel(g), groupState(g)))
	}
	return req.Reply(ctx, strings.Join(lines, "\n"))
}

func (h *Handlers) removeGroup(ctx context.Context, req *dispatch.Request) error {
	chatID, err := chatArg(req, 0)
	if err != nil {
		return err
	}
	group, ok := req.Snapshot.Group(chatID)
	if !ok {
		return apperr.New(apperr.NotFound, "This group is not known.")
	}

	if err := h.deps.Store.RemoveGroup(ctx, chatID); err != nil {
		return apperr.Wrap(apperr.Transient, "could not remove the group", err)
	}
	telemetry.Logger(ctx).Info("commands: Group removed", "chat_id", chatID)

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("🗑️ Group %s removed.", groupLabel(group)))
}

func groupLabel(g storage.GroupSettings) string {
	if g.Title == "" {
		return fmt.Sprintf("%d", g.ChatID)
	}
	return fmt.Sprintf("%s (%d)", g.Title, g.ChatID)
}

func groupState(g storage.GroupSettings) string {
	switch {
	case g.Approved:
		return "approved"
	case g.Blocked:
		return "rejected"
	default:
		return "pending"
	}
}
