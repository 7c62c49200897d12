package bot

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/sync/singleflight"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

func (b *Bot) Delete(ctx context.Context, chatID int64, messageID int) error {
	err := b.call(ctx, func(ctx context.Context) error {
		return b.api.DeleteMessage(ctx, &telego.DeleteMessageParams{ChatID: tu.ID(chatID), MessageID: messageID})
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	telemetry.Logger(ctx).Debug("bot: Message deleted", "chat_id", chatID, "message_id", messageID)
	return nil
}

// Kick removes a member without banning them: the ban is lifted right away so they can rejoin.
func (b *Bot) Kick(ctx context.Context, chatID, userID int64) error {
	err := b.call(ctx, func(ctx context.Context) error {
		return b.api.BanChatMember(ctx, &telego.BanChatMemberParams{ChatID: tu.ID(chatID), UserID: userID})
	})
	if err != nil {
		return fmt.Errorf("ban chat member: %w", err)
	}

	err = b.call(ctx, func(ctx context.Context) error {
		return b.api.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{ChatID: tu.ID(chatID), UserID: userID, OnlyIfBanned: true})
	})
	if err != nil {
		telemetry.Logger(ctx).Warn("bot: Failed to lift the ban after kick", "error", err, "chat_id", chatID, "user_id", userID)
	}
	b.admins.forget(chatID)
	return nil
}

func (b *Bot) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	admins, err := b.admins.get(ctx, chatID)
	if err != nil {
		return false, err
	}
	for _, u := range admins {
		if u.ID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (b *Bot) Admins(ctx context.Context, chatID int64) ([]chat.User, error) {
	return b.admins.get(ctx, chatID)
}

func (b *Bot) fetchAdmins(ctx context.Context, chatID int64) ([]chat.User, error) {
	var members []telego.ChatMember
	err := b.call(ctx, func(ctx context.Context) error {
		var err error
		members, err = b.api.GetChatAdministrators(ctx, &telego.GetChatAdministratorsParams{ChatID: tu.ID(chatID)})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get chat administrators: %w", err)
	}

	users := make([]chat.User, 0, len(members))
	for _, m := range members {
		users = append(users, userOf(m.MemberUser()))
	}
	return users, nil
}

type adminEntry struct {
	users   []chat.User
	fetched time.Time
}

// adminCache keeps admin lists for a short time. Concurrent misses for one chat share a single fetch.
type adminCache struct {
	fetch func(ctx context.Context, chatID int64) ([]chat.User, error)
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[int64]adminEntry
	flight  singleflight.Group
}

func newAdminCache(fetch func(ctx context.Context, chatID int64) ([]chat.User, error), ttl time.Duration, now func() time.Time) *adminCache {
	return &adminCache{
		fetch:   fetch,
		ttl:     ttl,
		now:     now,
		entries: make(map[int64]adminEntry),
	}
}

func (c *adminCache) get(ctx context.Context, chatID int64) ([]chat.User, error) {
	c.mu.Lock()
	entry, ok := c.entries[chatID]
	c.mu.Unlock()
	if ok && c.now().Sub(entry.fetched) < c.ttl {
		return entry.users, nil
	}

	v, err, _ := c.flight.Do(strconv.FormatInt(chatID, 10), func() (any, error) {
		users, err := c.fetch(ctx, chatID)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[chatID] = adminEntry{users: users, fetched: c.now()}
		c.mu.Unlock()
		return users, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]chat.User), nil
}

func (c *adminCache) forget(chatID int64) {
	c.mu.Lock()
	delete(c.entries, chatID)
	c.mu.Unlock()
}
