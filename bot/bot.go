// Package bot connects the dispatch pipeline to the Telegram Bot API.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
)

var (
	ErrGetMe          = errors.New("cannot retrieve api user")
	ErrUpdatesChannel = errors.New("cannot get updates channel")
	ErrHandlerInit    = errors.New("cannot initialize handler")
)

// MessageHandler consumes converted inbound messages.
type MessageHandler interface {
	Handle(ctx context.Context, msg chat.Message)
}

// Options tune the transport.
type Options struct {
	// Timeout bounds every outbound API call.
	Timeout time.Duration
	// AdminTTL is how long a chat's admin list is reused.
	AdminTTL time.Duration
}

type Bot struct {
	api    *telego.Bot
	self   telego.User
	opts   Options
	admins *adminCache
}

var _ chat.Transport = (*Bot)(nil)

// New creates the API client and resolves the bot account.
func New(ctx context.Context, token string, opts Options) (*Bot, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.AdminTTL <= 0 {
		opts.AdminTTL = time.Minute
	}

	api, err := telego.NewBot(token, telego.WithLogger(apiLogger{}))
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	me, err := api.GetMe(ctx)
	if err != nil {
		slog.Error("bot: Cannot retrieve api user", "error", err)
		return nil, ErrGetMe
	}
	slog.Info("bot: Running api as",
		"id", me.ID,
		"username", me.Username,
		"name", me.FirstName,
	)

	b := &Bot{api: api, self: *me, opts: opts}
	b.admins = newAdminCache(b.fetchAdmins, opts.AdminTTL, time.Now)
	return b, nil
}

// Run long-polls updates and feeds messages to handler until ctx is done.
func (b *Bot) Run(ctx context.Context, handler MessageHandler) error {
	updates, err := b.api.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		slog.Error("bot: Cannot get update channel", "error", err)
		return ErrUpdatesChannel
	}

	bh, err := th.NewBotHandler(b.api, updates)
	if err != nil {
		slog.Error("bot: Cannot initialize bot handler", "error", err)
		return ErrHandlerInit
	}

	bh.Use(th.PanicRecovery())
	bh.Use(b.updateLogMiddleware)

	bh.HandleMessage(func(hctx *th.Context, message telego.Message) error {
		msg, ok := convert(message, b.self.ID)
		if !ok {
			slog.Debug("bot: Skipping unsupported message", "chat_id", message.Chat.ID, "chat_type", message.Chat.Type)
			return nil
		}
		handler.Handle(hctx, msg)
		return nil
	})

	go func() {
		<-ctx.Done()
		if err := bh.Stop(); err != nil {
			slog.Warn("bot: Failed to stop bot handler", "error", err)
		}
	}()

	slog.Info("bot: Polling for updates")
	if err := bh.Start(); err != nil {
		return fmt.Errorf("bot handler: %w", err)
	}
	slog.Info("bot: Stopped polling")
	return nil
}

// Self returns the bot account.
func (b *Bot) Self() chat.User {
	return userOf(b.self)
}

// apiLogger routes telego's own logging to slog.
type apiLogger struct{}

func (apiLogger) Debugf(format string, args ...any) {
	slog.Debug("bot: API " + fmt.Sprintf(format, args...))
}

func (apiLogger) Errorf(format string, args ...any) {
	slog.Error("bot: API " + fmt.Sprintf(format, args...))
}
