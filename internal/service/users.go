package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-sharing-service/internal/auth"
	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/observability"
	"github.com/helixir/paper-sharing-service/internal/outbox"
)

// Sign-in providers recorded on user.registered events.
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)

var (
	// ErrInvalidCredentials is returned when an email and password do not match.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)

	// ErrGoogleDisabled is returned by GoogleSignIn when no verifier is configured.
	ErrGoogleDisabled = fmt.Errorf("google sign-in is not configured: %w", domain.ErrServiceUnavailable)
)

// IdentityVerifier verifies an identity provider token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*domain.OAuthProfile, error)
}

// AuthResult is a signed-in session.
type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

// UserService implements accounts and sign-in.
type UserService struct {
	repos    Repositories
	uow      UnitOfWork
	emitter  *outbox.Emitter
	sessions *auth.SessionManager
	google   IdentityVerifier
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewUserService creates a UserService. google may be nil to disable
// Google sign-in. repos must be bound to the pool.
func NewUserService(repos Repositories, uow UnitOfWork, emitter *outbox.Emitter, sessions *auth.SessionManager, google IdentityVerifier, logger zerolog.Logger) *UserService {
	return &UserService{
		repos:    repos,
		uow:      uow,
		emitter:  emitter,
		sessions: sessions,
		google:   google,
		validate: newValidator(),
		logger:   observability.WithComponent(logger, "user-service"),
	}
}

// GoogleEnabled reports whether Google sign-in is configured.
func (s *UserService) GoogleEnabled() bool {
	return s.google != nil
}

// Register creates a credentials account named "first last". An email that
// is already registered yields domain.ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, in domain.RegisterInput) (*domain.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:           in.FullName(),
		Email:          in.Email,
		HashedPassword: hash,
	}
	err = s.uow.Within(ctx, func(repos Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}
		return s.emitter.UserRegistered(ctx, repos.Outbox, domain.UserRegisteredPayload{
			UserID:   user.ID,
			Email:    user.Email,
			Provider: ProviderCredentials,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return user, nil
}

// Login checks an email and password and issues a session.
func (s *UserService) Login(ctx context.Context, in domain.LoginInput) (*AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	user, err := s.repos.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.HasPassword() {
		return nil, ErrInvalidCredentials
	}

	ok, err := auth.CheckPassword(user.HashedPassword, in.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Debug().Str("user_id", user.ID.String()).Msg("password mismatch")
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// GoogleSignIn verifies a Google ID token, creates or refreshes the matching
// account and issues a session.
func (s *UserService) GoogleSignIn(ctx context.Context, idToken string) (*AuthResult, error) {
	if s.google == nil {
		return nil, ErrGoogleDisabled
	}
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return nil, domain.NewValidationError("idToken", "idToken is required")
	}

	profile, err := s.google.Verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	var user *domain.User
	err = s.uow.Within(ctx, func(repos Repositories) error {
		u, created, err := repos.Users.UpsertOAuth(ctx, *profile)
		if err != nil {
			return err
		}
		user = u
		if !created {
			return nil
		}
		return s.emitter.UserRegistered(ctx, repos.Outbox, domain.UserRegisteredPayload{
			UserID:   u.ID,
			Email:    u.Email,
			Provider: ProviderGoogle,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("google sign-in: %w", err)
	}

	return s.issue(user)
}

// Me returns the caller's profile.
func (s *UserService) Me(ctx context.Context, principal *auth.Principal) (*domain.User, error) {
	if principal == nil {
		return nil, domain.ErrUnauthorized
	}
	return s.repos.Users.GetByID(ctx, principal.UserID)
}

// UpdateProfile changes the caller's name, bio or image. Fields left nil
// keep their value.
func (s *UserService) UpdateProfile(ctx context.Context, principal *auth.Principal, update domain.ProfileUpdate) (*domain.User, error) {
	if principal == nil {
		return nil, domain.ErrUnauthorized
	}

	fields := trimProfile(&update)
	if update.Name != nil && *update.Name == "" {
		return nil, domain.NewValidationError("name", "name must not be empty")
	}
	if err := validateStruct(s.validate, update); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return s.Me(ctx, principal)
	}

	var user *domain.User
	err := s.uow.Within(ctx, func(repos Repositories) error {
		u, err := repos.Users.UpdateProfile(ctx, principal.UserID, update)
		if err != nil {
			return err
		}
		user = u
		return s.emitter.UserProfileUpdated(ctx, repos.Outbox, domain.UserProfileUpdatedPayload{
			UserID: u.ID,
			Fields: fields,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func (s *UserService) issue(user *domain.User) (*AuthResult, error) {
	session, err := s.sessions.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: session.Token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

// trimProfile trims the set fields of update and returns their json names.
func trimProfile(update *domain.ProfileUpdate) []string {
	var fields []string
	trim := func(name string, v *string) {
		if v != nil {
			*v = strings.TrimSpace(*v)
			fields = append(fields, name)
		}
	}
	trim("name", update.Name)
	trim("bio", update.Bio)
	trim("image", update.Image)
	return fields
}
