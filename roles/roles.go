// Package roles derives the authorization level of a message sender.
package roles

import (
	"context"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/storage"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

// Role is the computed authorization level of a sender within a chat. It is never stored.
type Role int

const (
	Member Role = iota
	Admin
	Owner
	Banned
)

func (r Role) String() string {
	switch r {
	case Owner:
		return "owner"
	case Admin:
		return "admin"
	case Banned:
		return "banned"
	default:
		return "member"
	}
}

// Allows reports whether a sender with role r may run something requiring required.
func (r Role) Allows(required Role) bool {
	switch r {
	case Owner:
		return true
	case Admin:
		return required == Admin || required == Member
	case Member:
		return required == Member
	default:
		return false
	}
}

// Subject is the sender being resolved.
type Subject struct {
	UserID   int64
	ChatID   int64
	IsGroup  bool
	SelfSent bool
}

// AdminChecker answers whether a user holds admin rights in a chat.
type AdminChecker interface {
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// Resolver resolves roles against a configured owner.
type Resolver struct {
	ownerID int64
	admins  AdminChecker
}

func NewResolver(ownerID int64, admins AdminChecker) *Resolver {
	return &Resolver{ownerID: ownerID, admins: admins}
}

// Resolve checks the owner first so a stale ban never locks the owner out.
// A failed admin lookup degrades to Member.
func (r *Resolver) Resolve(ctx context.Context, subject Subject, snap *storage.Snapshot) Role {
	if r.ownerID != 0 && subject.UserID == r.ownerID {
		return Owner
	}

	if !subject.SelfSent && snap != nil && snap.Banned(subject.UserID) {
		return Banned
	}

	if subject.IsGroup && r.admins != nil {
		isAdmin, err := r.admins.IsAdmin(ctx, subject.ChatID, subject.UserID)
		if err != nil {
			telemetry.Logger(ctx).Warn("roles: Admin lookup failed, treating sender as member", "error", err,
				"chat_id", subject.ChatID, "user_id", subject.UserID)
			return Member
		}
		if isAdmin {
			return Admin
		}
	}

	return Member
}
