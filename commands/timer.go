package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/dispatch"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/game"
)

// RunRoundTimer closes expired word chain rounds every tick until ctx is done.
func (h *Handlers) RunRoundTimer(ctx context.Context, locks *dispatch.ChatLocks, tick time.Duration) error {
	slog.Info("commands: Round timer started", "tick", tick)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("commands: Round timer stopped")
			return nil
		case <-ticker.C:
			h.CloseExpiredRounds(ctx, locks)
		}
	}
}

// CloseExpiredRounds closes every round past its deadline and announces the result.
// It returns the number of rounds closed.
func (h *Handlers) CloseExpiredRounds(ctx context.Context, locks *dispatch.ChatLocks) int {
	chats, err := h.deps.Games.ExpiredRounds(ctx)
	if err != nil {
		slog.Error("commands: Failed to list expired rounds", "error", err)
		return 0
	}

	closed := 0
	for _, chatID := range chats {
		if h.closeRound(ctx, locks, chatID) {
			closed++
		}
	}
	return closed
}

func (h *Handlers) closeRound(ctx context.Context, locks *dispatch.ChatLocks, chatID int64) bool {
	unlock := locks.Lock(chatID)
	defer unlock()

	// The session may have ended while waiting for the lock.
	outcome, changed, err := h.deps.Games.CloseRound(ctx, chatID)
	if errors.Is(err, game.ErrNotActive) || (err == nil && !changed) {
		return false
	}
	if err != nil {
		slog.Error("commands: Failed to close round", "error", err, "chat_id", chatID)
		return false
	}

	text, users := wordGameSummary(outcome)
	if err := h.deps.Transport.Send(ctx, chat.Outgoing{ChatID: chatID, Text: "⏰ Time is up!\n" + text, Mentions: users}); err != nil {
		slog.Error("commands: Failed to announce closed round", "error", err, "chat_id", chatID)
	}
	return true
}
