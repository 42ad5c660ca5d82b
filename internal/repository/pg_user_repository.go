package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// Compile-time interface verification.
var _ UserRepository = (*PgUserRepository)(nil)

const userColumns = `id, name, email, image, bio, COALESCE(hashed_password, ''), created_at, updated_at`

// PgUserRepository is a PostgreSQL implementation of UserRepository.
type PgUserRepository struct {
	db DBTX
}

// NewPgUserRepository creates a new PostgreSQL user repository.
func NewPgUserRepository(db DBTX) *PgUserRepository {
	return &PgUserRepository{db: db}
}

// Create inserts a new user.
func (r *PgUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.NewValidationError("user", "user cannot be nil")
	}
	if user.Email == "" {
		return domain.NewValidationError("email", "email is required")
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()

	var hashed *string
	if user.HashedPassword != "" {
		hashed = &user.HashedPassword
	}

	query := `
		INSERT INTO users (id, name, email, image, bio, hashed_password, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.Image, user.Bio, hashed, now, now,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isPgUniqueViolation(err) {
			return domain.NewAlreadyExistsError("user", user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *PgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", id.String())
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email.
func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, domain.NewValidationError("email", "email is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)

	user, err := scanUser(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", email)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// UpsertOAuth creates or refreshes the user for an external identity.
// xmax = 0 identifies a freshly inserted row.
func (r *PgUserRepository) UpsertOAuth(ctx context.Context, profile domain.OAuthProfile) (*domain.User, bool, error) {
	if profile.Email == "" {
		return nil, false, domain.NewValidationError("email", "email is required")
	}

	var image *string
	if profile.Picture != "" {
		image = &profile.Picture
	}
	now := time.Now().UTC()

	query := fmt.Sprintf(`
		INSERT INTO users (id, name, email, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (email) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END,
			image = COALESCE(EXCLUDED.image, users.image),
			updated_at = EXCLUDED.updated_at
		RETURNING %s, (xmax = 0) AS inserted`, userColumns)

	var (
		dest     userScanDest
		inserted bool
	)
	err := r.db.QueryRow(ctx, query, uuid.New(), profile.Name, profile.Email, image, now).
		Scan(append(dest.destinations(), &inserted)...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert oauth user: %w", err)
	}

	return &dest.user, inserted, nil
}

// UpdateProfile applies a partial profile update.
func (r *PgUserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update domain.ProfileUpdate) (*domain.User, error) {
	query := fmt.Sprintf(`
		UPDATE users SET
			name = COALESCE($2, name),
			bio = COALESCE($3, bio),
			image = COALESCE($4, image),
			updated_at = $5
		WHERE id = $1
		RETURNING %s`, userColumns)

	user, err := scanUser(r.db.QueryRow(ctx, query, id, update.Name, update.Bio, update.Image, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", id.String())
		}
		if isPgError(err, pgCheckViolation) {
			return nil, domain.NewValidationError("bio", fmt.Sprintf("must be at most %d characters", domain.MaxBioLength))
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

type userScanDest struct {
	user domain.User
}

func (d *userScanDest) destinations() []any {
	return []any{
		&d.user.ID, &d.user.Name, &d.user.Email, &d.user.Image, &d.user.Bio,
		&d.user.HashedPassword, &d.user.CreatedAt, &d.user.UpdatedAt,
	}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var dest userScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return &dest.user, nil
}
