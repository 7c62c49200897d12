package bot

import (
	"log/slog"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
)

func (b *Bot) updateLogMiddleware(ctx *th.Context, update telego.Update) error {
	if update.Message != nil {
		attrs := []any{"update_id", update.UpdateID, "chat_id", update.Message.Chat.ID}
		if update.Message.From != nil {
			attrs = append(attrs, "user_id", update.Message.From.ID)
		}
		slog.Debug("bot: Update received", attrs...)
	}

	return ctx.Next(update)
}
