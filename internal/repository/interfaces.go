// Package repository defines persistence for users, conversation entries and
// emotional profiles, with in-memory and PostgreSQL implementations.
package repository

import (
	"context"
	"errors"

	"github.com/lumi-ajolote/lumi/backend/internal/model/chat"
	"github.com/lumi-ajolote/lumi/backend/internal/model/profile"
	"github.com/lumi-ajolote/lumi/backend/internal/model/user"
)

// ErrEmailTaken is returned by UserRepository.Create for a duplicate email.
var ErrEmailTaken = errors.New("email already registered")

// UserRepository is the credential store.
type UserRepository interface {
	// FindByEmail returns nil when no user has the (normalized) email.
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	// FindByID returns nil when the user does not exist.
	FindByID(ctx context.Context, id string) (*user.User, error)
	// Create inserts u, failing with ErrEmailTaken when the email exists.
	Create(ctx context.Context, u *user.User) error
}

// ConversationRepository is the append-only conversation log.
type ConversationRepository interface {
	// Append stores entry, assigning ID and CreatedAt when empty.
	Append(ctx context.Context, entry *chat.Entry) error
	// ListByUser returns the user's entries oldest first.
	ListByUser(ctx context.Context, userID string) ([]chat.Entry, error)
}

// ProfileRepository stores one emotional profile per user.
type ProfileRepository interface {
	// FindByUserID returns nil when the user has no profile yet.
	FindByUserID(ctx context.Context, userID string) (*profile.Profile, error)
	// Upsert loads or creates the profile and applies mutate atomically with
	// respect to other Upsert calls for the same user.
	Upsert(ctx context.Context, userID string, mutate func(*profile.Profile) error) (*profile.Profile, error)
}

// Stores groups the three repositories used by the services.
type Stores struct {
	Users         UserRepository
	Conversations ConversationRepository
	Profiles      ProfileRepository
}
