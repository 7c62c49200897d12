// Package moderation escalates warnings and removes members who reach the threshold.
package moderation

import (
	"context"
	"fmt"
	"strings"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

// Threshold is the warning count that removes a member.
const Threshold = 3

// LinkReason is the reply reason used for link violations.
const LinkReason = "links are not allowed in this group!"

// Incident describes one offence.
type Incident struct {
	ChatID int64
	User   chat.User
	// MessageID of the offending message. Zero means nothing to delete.
	MessageID int
	// Reason is shown to the user after their mention.
	Reason string
	// Exempt users (the owner) are never removed.
	Exempt bool
}

// Result is the outcome of a warning.
type Result struct {
	Count   int
	Removed bool
}

// WarningStore is the part of storage.Store the engine writes to.
type WarningStore interface {
	UpsertWarning(ctx context.Context, key storage.WarningKey, count int) error
	RemoveWarning(ctx context.Context, key storage.WarningKey) error
}

type Engine struct {
	store     WarningStore
	transport chat.Transport
}

func NewEngine(store WarningStore, transport chat.Transport) *Engine {
	return &Engine{store: store, transport: transport}
}

// Warn raises the warning count of the incident's user from current to current+1.
// Reaching Threshold removes the member (unless exempt) and clears the count regardless of the removal outcome.
func (e *Engine) Warn(ctx context.Context, incident Incident, current int) (Result, error) {
	log := telemetry.Logger(ctx).With("chat_id", incident.ChatID, "user_id", incident.User.ID)
	key := storage.WarningKey{ChatID: incident.ChatID, UserID: incident.User.ID}

	count := current + 1
	if err := e.store.UpsertWarning(ctx, key, count); err != nil {
		return Result{}, apperr.Wrap(apperr.Transient, "could not store the warning", err)
	}
	telemetry.Warnings.Inc()
	log.Info("moderation: Warning issued", "count", count)

	reason := incident.Reason
	if reason == "" {
		reason = LinkReason
	}
	var text strings.Builder
	fmt.Fprintf(&text, "⚠️ %s, %s\n\nWarning: %d/%d", chat.Mention(incident.User), reason, count, Threshold)
	if count >= Threshold {
		text.WriteString("\nMaximum warnings reached. You will be removed.")
	}
	if err := e.transport.Send(ctx, chat.Outgoing{
		ChatID:   incident.ChatID,
		Text:     text.String(),
		Mentions: []chat.User{incident.User},
	}); err != nil {
		log.Error("moderation: Failed to send warning", "error", err)
	}

	if incident.MessageID != 0 {
		if err := e.transport.Delete(ctx, incident.ChatID, incident.MessageID); err != nil {
			log.Warn("moderation: Failed to delete offending message", "error", err, "message_id", incident.MessageID)
		}
	}

	if count < Threshold {
		return Result{Count: count}, nil
	}

	result := Result{Count: count}
	if !incident.Exempt {
		if err := e.transport.Kick(ctx, incident.ChatID, incident.User.ID); err != nil {
			log.Error("moderation: Failed to remove member", "error", err)
		} else {
			result.Removed = true
			telemetry.Removals.Inc()
			log.Info("moderation: Member removed for reaching the warning threshold")
			if err := e.transport.Send(ctx, chat.Outgoing{
				ChatID:   incident.ChatID,
				Text:     fmt.Sprintf("%s has been removed for reaching %d warnings.", chat.Mention(incident.User), Threshold),
				Mentions: []chat.User{incident.User},
			}); err != nil {
				log.Error("moderation: Failed to announce removal", "error", err)
			}
		}
	}

	if err := e.store.RemoveWarning(ctx, key); err != nil {
		return result, apperr.Wrap(apperr.Transient, "could not reset the warning count", err)
	}

	return result, nil
}
