package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

// mentionToken matches the tokens produced by chat.Mention.
var mentionToken = regexp.MustCompile(`@(\d+)`)

// maxRetryAfter caps how long a rate limited send waits before retrying once.
const maxRetryAfter = 30 * time.Second

func (b *Bot) Send(ctx context.Context, out chat.Outgoing) error {
	message := tu.Message(tu.ID(out.ChatID), renderText(out.Text, out.Mentions)).
		WithParseMode(telego.ModeMarkdownV2)
	if out.ReplyTo != 0 {
		message = message.WithReplyParameters(&telego.ReplyParameters{
			MessageID:                out.ReplyTo,
			AllowSendingWithoutReply: true,
		})
	}

	err := b.call(ctx, func(ctx context.Context) error {
		_, err := b.api.SendMessage(ctx, message)
		return err
	})
	if err != nil {
		telemetry.Logger(ctx).Error("bot: Failed to send message", "error", err, "chat_id", out.ChatID, "text_length", len(out.Text))
		return fmt.Errorf("send message: %w", err)
	}
	telemetry.Logger(ctx).Debug("bot: Message sent", "chat_id", out.ChatID)
	return nil
}

func (b *Bot) React(ctx context.Context, chatID int64, messageID int, reaction chat.Reaction) error {
	err := b.call(ctx, func(ctx context.Context) error {
		return b.api.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
			ChatID:    tu.ID(chatID),
			MessageID: messageID,
			Reaction: []telego.ReactionType{
				&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: string(reaction)},
			},
		})
	})
	if err != nil {
		return fmt.Errorf("set reaction: %w", err)
	}
	return nil
}

// call runs fn with the outbound timeout and retries once when rate limited.
func (b *Bot) call(ctx context.Context, fn func(ctx context.Context) error) error {
	err := b.withTimeout(ctx, fn)
	wait, limited := retryAfter(err)
	if !limited {
		return err
	}

	telemetry.Logger(ctx).Debug("bot: API error", "error", err)
	telemetry.Logger(ctx).Info("bot: Rate limit hit, waiting", "seconds", wait.Seconds())
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
	}

	if err := b.withTimeout(ctx, fn); err != nil {
		return err
	}
	telemetry.Logger(ctx).Info("bot: Request succeeded after rate limit wait")
	return nil
}

func (b *Bot) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()
	return fn(ctx)
}

// retryAfter extracts the wait requested by a 429 response.
func retryAfter(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}

	var apiErr *ta.Error
	if errors.As(err, &apiErr) && apiErr.Parameters != nil && apiErr.Parameters.RetryAfter > 0 {
		return min(time.Duration(apiErr.Parameters.RetryAfter)*time.Second, maxRetryAfter), true
	}

	// Format: "telego: sendMessage: api: 429 \"Too Many Requests: retry after 5\", migrate to chat ID: 0, retry after: 5"
	if !strings.Contains(err.Error(), "Too Many Requests") {
		return 0, false
	}
	parts := strings.Split(err.Error(), "retry after: ")
	if len(parts) != 2 {
		return 0, false
	}
	var seconds int
	if _, _ = fmt.Sscanf(parts[1], "%d", &seconds); seconds <= 0 {
		return 0, false
	}
	return min(time.Duration(seconds)*time.Second, maxRetryAfter), true
}

// renderText escapes text for MarkdownV2 and turns mention tokens of the given users into links.
func renderText(text string, mentions []chat.User) string {
	users := make(map[int64]chat.User, len(mentions))
	for _, u := range mentions {
		users[u.ID] = u
	}

	escaped := escapeMarkdownV2(text)
	return mentionToken.ReplaceAllStringFunc(escaped, func(token string) string {
		id, err := strconv.ParseInt(token[1:], 10, 64)
		if err != nil {
			return token
		}
		u, ok := users[id]
		if !ok {
			return token
		}
		return formatMention(u)
	})
}

// formatMention renders a clickable mention of u.
func formatMention(u chat.User) string {
	if u.Username != "" {
		return escapeMarkdownV2("@" + u.Username)
	}
	return fmt.Sprintf("[%s](tg://user?id=%d)", escapeMarkdownV2(u.DisplayName()), u.ID)
}

func escapeMarkdownV2(text string) string {
	specialChars := []string{
		"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!",
	}

	for _, char := range specialChars {
		text = strings.ReplaceAll(text, char, "\\"+char)
	}
	return text
}
