package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// MinSecretLength is the shortest accepted session signing secret, in bytes.
const MinSecretLength = 32

const (
	claimEmail = "email"
	claimName  = "name"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uuid.UUID `json:"id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
}

// Session is an issued session token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionManager issues and verifies HS256 session tokens.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewSessionManager creates a SessionManager. The secret must be at least
// MinSecretLength bytes long.
func NewSessionManager(secret string, ttl time.Duration, issuer string) (*SessionManager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue signs a session token for user.
func (m *SessionManager) Issue(user *domain.User) (*Session, error) {
	now := m.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(m.ttl)

	tok, err := jwt.NewBuilder().
		Subject(user.ID.String()).
		Issuer(m.issuer).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim(claimEmail, user.Email).
		Claim(claimName, user.Name).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build session token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), m.secret))
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &Session{Token: string(signed), ExpiresAt: expiresAt}, nil
}

// Verify checks the signature, issuer and expiry of token and returns its
// principal. Any failure is reported as domain.ErrUnauthorized.
func (m *SessionManager) Verify(token string) (*Principal, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing session token", domain.ErrUnauthorized)
	}

	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256(), m.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	tok, err := jwt.Parse([]byte(token), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	sub, ok := tok.Subject()
	if !ok {
		return nil, fmt.Errorf("%w: session token has no subject", domain.ErrUnauthorized)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid session subject", domain.ErrUnauthorized)
	}

	p := &Principal{UserID: userID}
	_ = tok.Get(claimEmail, &p.Email)
	_ = tok.Get(claimName, &p.Name)
	return p, nil
}
