package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// UserRepository handles account persistence.
type UserRepository interface {
	// Create inserts a new user. ID and timestamps are assigned.
	// Returns domain.ErrAlreadyExists if the email is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	// Returns domain.ErrNotFound if no matching user exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by exact email.
	// Returns domain.ErrNotFound if no matching user exists.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpsertOAuth creates the user for profile.Email, or refreshes its name and image.
	// The returned bool is true when a new row was inserted.
	UpsertOAuth(ctx context.Context, profile domain.OAuthProfile) (*domain.User, bool, error)

	// UpdateProfile applies the non-nil fields of update and returns the result.
	// Returns domain.ErrNotFound if no matching user exists.
	UpdateProfile(ctx context.Context, id uuid.UUID, update domain.ProfileUpdate) (*domain.User, error)
}
