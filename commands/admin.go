package commands

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/dispatch"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/moderation"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/roles"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

const manualWarnReason = "you have been warned by an admin."

func (h *Handlers) admin() dispatch.Group {
	return dispatch.Group{Name: GroupAdmin, Routes: []dispatch.Route{
		{Command: "groupinfo", Role: roles.Admin, Handler: h.groupInfo, Usage: "show group settings"},
		{Command: "kick", Role: roles.Admin, Handler: h.kick, Usage: "remove a member"},
		{Command: "welcome", Role: roles.Admin, Handler: h.setFlag(welcomeFlag), Usage: "on|off welcome messages"},
		{Command: "setwelcome", Role: roles.Admin, Handler: h.setText(welcomeFlag), Usage: "set the welcome text"},
		{Command: "goodbye", Role: roles.Admin, Handler: h.setFlag(goodbyeFlag), Usage: "on|off goodbye messages"},
		{Command: "setgoodbye", Role: roles.Admin, Handler: h.setText(goodbyeFlag), Usage: "set the goodbye text"},
		{Command: "antilink", Role: roles.Admin, Handler: h.setFlag(antilinkFlag), Usage: "on|off link removal with warnings"},
		{Command: "warn", Role: roles.Admin, Handler: h.warn, Usage: "warn a member"},
		{Command: "warnings", Role: roles.Admin, Handler: h.warnings, Usage: "show warnings"},
		{Command: "clearwarn", Role: roles.Admin, Handler: h.clearWarn, Usage: "reset a member's warnings"},
		{Command: "delete", Role: roles.Admin, Handler: h.deleteMessage, Usage: "delete the replied message"},
		{Command: "tag", Role: roles.Admin, Handler: h.tag, Usage: "mention the group admins"},
	}}
}

type flag int

const (
	welcomeFlag flag = iota
	goodbyeFlag
	antilinkFlag
)

func (f flag) String() string {
	switch f {
	case welcomeFlag:
		return "Welcome messages"
	case goodbyeFlag:
		return "Goodbye messages"
	default:
		return "Antilink"
	}
}

func (h *Handlers) currentGroup(req *dispatch.Request) (storage.GroupSettings, error) {
	if err := requireGroup(req); err != nil {
		return storage.GroupSettings{}, err
	}
	group, ok := req.Group()
	if !ok {
		group = storage.GroupSettings{ChatID: req.ChatID(), Title: req.Message.ChatTitle}
	}
	return group, nil
}

func (h *Handlers) saveGroup(ctx context.Context, req *dispatch.Request, group storage.GroupSettings, reply string) error {
	if err := h.deps.Store.UpsertGroup(ctx, group); err != nil {
		return apperr.Wrap(apperr.Transient, "could not save the group settings", err)
	}
	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, reply)
}

func (h *Handlers) setFlag(f flag) dispatch.Handler {
	return func(ctx context.Context, req *dispatch.Request) error {
		group, err := h.currentGroup(req)
		if err != nil {
			return err
		}
		on, err := toggle(req)
		if err != nil {
			return err
		}

		switch f {
		case welcomeFlag:
			group.Welcome = on
		case goodbyeFlag:
			group.Goodbye = on
		case antilinkFlag:
			group.Antilink = on
		}
		telemetry.Logger(ctx).Info("commands: Group setting changed", "chat_id", group.ChatID, "setting", f.String(), "on", on)
		return h.saveGroup(ctx, req, group, fmt.Sprintf("✅ %s turned %s.", f, onOff(on)))
	}
}

func (h *Handlers) setText(f flag) dispatch.Handler {
	return func(ctx context.Context, req *dispatch.Request) error {
		group, err := h.currentGroup(req)
		if err != nil {
			return err
		}
		if req.Raw == "" {
			return validation(req.Usage("<text>"))
		}

		if f == welcomeFlag {
			group.WelcomeText = req.Raw
		} else {
			group.GoodbyeText = req.Raw
		}
		return h.saveGroup(ctx, req, group, fmt.Sprintf("✅ %s text updated.", f))
	}
}

func (h *Handlers) groupInfo(ctx context.Context, req *dispatch.Request) error {
	group, err := h.currentGroup(req)
	if err != nil {
		return err
	}

	admins, err := h.deps.Transport.Admins(ctx, req.ChatID())
	if err != nil {
		return apperr.Wrap(apperr.Transient, "could not fetch the admin list", err)
	}
	warned := 0
	for key, count := range req.Snapshot.Warnings {
		if key.ChatID == req.ChatID() && count > 0 {
			warned++
		}
	}
	title := group.Title
	if title == "" {
		title = req.Message.ChatTitle
	}

	text := fmt.Sprintf("ℹ️ Group info\nName: %s\nID: %d\nAdmins: %d\nAntilink: %s\nWelcome: %s\nGoodbye: %s\nWarned members: %d",
		title, group.ChatID, len(admins), onOff(group.Antilink), onOff(group.Welcome), onOff(group.Goodbye), warned)
	return req.Reply(ctx, text)
}

func (h *Handlers) kick(ctx context.Context, req *dispatch.Request) error {
	if err := requireGroup(req); err != nil {
		return err
	}
	user, err := target(req)
	if err != nil {
		return err
	}
	if user.ID == h.deps.OwnerID {
		return apperr.New(apperr.Authorization, "The bot owner cannot be removed.")
	}

	if err := h.deps.Transport.Kick(ctx, req.ChatID(), user.ID); err != nil {
		return apperr.Wrap(apperr.Transient, "could not remove the member", err)
	}
	telemetry.Logger(ctx).Info("commands: Member kicked", "chat_id", req.ChatID(), "user_id", user.ID)

	key := storage.WarningKey{ChatID: req.ChatID(), UserID: user.ID}
	if err := h.deps.Store.RemoveWarning(ctx, key); err != nil {
		return apperr.Wrap(apperr.Transient, "could not clear the warnings", err)
	}

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("👢 %s has been removed from the group.", chat.Mention(user)), user)
}

func (h *Handlers) warn(ctx context.Context, req *dispatch.Request) error {
	if err := requireGroup(req); err != nil {
		return err
	}
	user, err := target(req)
	if err != nil {
		return err
	}

	reason := manualWarnReason
	if req.Message.Reply != nil && req.Raw != "" {
		reason = req.Raw
	} else if len(req.Args) > 1 {
		reason = strings.Join(req.Args[1:], " ")
	}

	req.React(ctx, chat.ReactionWarning)
	_, err = h.moderation.Warn(ctx, moderation.Incident{
		ChatID: req.ChatID(),
		User:   user,
		Reason: reason,
		Exempt: user.ID == h.deps.OwnerID,
	}, req.Snapshot.Warning(req.ChatID(), user.ID))
	return err
}

func (h *Handlers) warnings(ctx context.Context, req *dispatch.Request) error {
	if err := requireGroup(req); err != nil {
		return err
	}

	if user, err := target(req); err == nil {
		count := req.Snapshot.Warning(req.ChatID(), user.ID)
		return req.Reply(ctx, fmt.Sprintf("%s has %d/%d warnings.", chat.Mention(user), count, moderation.Threshold), user)
	}

	var keys []storage.WarningKey
	for key, count := range req.Snapshot.Warnings {
		if key.ChatID == req.ChatID() && count > 0 {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return req.Reply(ctx, "No warnings in this group.")
	}
	slices.SortFunc(keys, func(a, b storage.WarningKey) int { return cmp.Compare(a.UserID, b.UserID) })

	lines := []string{"⚠️ Warnings"}
	users := make([]chat.User, 0, len(keys))
	for _, key := range keys {
		u := chat.User{ID: key.UserID}
		users = append(users, u)
		lines = append(lines, fmt.Sprintf("%s: %d/%d", chat.Mention(u), req.Snapshot.Warnings[key], moderation.Threshold))
	}
	return req.Reply(ctx, strings.Join(lines, "\n"), users...)
}

func (h *Handlers) clearWarn(ctx context.Context, req *dispatch.Request) error {
	if err := requireGroup(req); err != nil {
		return err
	}
	user, err := target(req)
	if err != nil {
		return err
	}

	key := storage.WarningKey{ChatID: req.ChatID(), UserID: user.ID}
	if err := h.deps.Store.RemoveWarning(ctx, key); err != nil {
		return apperr.Wrap(apperr.Transient, "could not clear the warnings", err)
	}

	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, fmt.Sprintf("✅ Warnings of %s cleared.", chat.Mention(user)), user)
}

func (h *Handlers) deleteMessage(ctx context.Context, req *dispatch.Request) error {
	if err := requireGroup(req); err != nil {
		return err
	}
	if req.Message.Reply == nil {
		return validation("Reply to the message you want to delete.")
	}

	if err := h.deps.Transport.Delete(ctx, req.ChatID(), req.Message.Reply.MessageID); err != nil {
		return apperr.Wrap(apperr.Transient, "could not delete the message", err)
	}
	if err := h.deps.Transport.Delete(ctx, req.ChatID(), req.Message.ID); err != nil {
		telemetry.Logger(ctx).Debug("commands: Failed to delete the command message", "error", err)
	}
	return nil
}

// tag mentions the group admins. Bots cannot list ordinary members.
func (h *Handlers) tag(ctx context.Context, req *dispatch.Request) error {
	if err := requireGroup(req); err != nil {
		return err
	}
	if req.Raw == "" {
		return validation("Please provide a message to tag. " + req.Usage("<text>"))
	}

	admins, err := h.deps.Transport.Admins(ctx, req.ChatID())
	if err != nil {
		return apperr.Wrap(apperr.Transient, "could not fetch the admin list", err)
	}

	var tokens []string
	var users []chat.User
	for _, u := range admins {
		if u.IsBot {
			continue
		}
		tokens = append(tokens, chat.Mention(u))
		users = append(users, u)
	}

	text := "📢 " + req.Raw
	if len(tokens) > 0 {
		text += "\n\n" + strings.Join(tokens, " ")
	}
	if err := req.Send(ctx, req.ChatID(), text, users...); err != nil {
		return apperr.Wrap(apperr.Transient, "could not send the message", err)
	}
	req.React(ctx, chat.ReactionOK)
	return nil
}
