package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/helixir/paper-sharing-service/internal/domain"
)

// DefaultGoogleJWKSURL is where Google publishes its ID token signing keys.
const DefaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

const (
	defaultKeyRefreshInterval = time.Hour
	defaultKeyReadyTimeout    = 5 * time.Second
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleVerifier verifies Google ID tokens for one OAuth client. Signing
// keys live in a jwk.Cache that refreshes them in the background.
type GoogleVerifier struct {
	clientID     string
	jwksURL      string
	refresh      time.Duration
	readyTimeout time.Duration
	cache        *jwk.Cache
	now          func() time.Time
}

// NewGoogleVerifier creates a verifier that accepts tokens issued to clientID.
// An empty jwksURL selects DefaultGoogleJWKSURL. The key cache runs until
// ctx is cancelled or Close is called.
func NewGoogleVerifier(ctx context.Context, clientID, jwksURL string, refresh time.Duration) (*GoogleVerifier, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.New("google client id is required")
	}
	if jwksURL == "" {
		jwksURL = DefaultGoogleJWKSURL
	}
	if refresh <= 0 {
		refresh = defaultKeyRefreshInterval
	}

	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}
	// The first fetch happens in the background so startup does not
	// depend on Google being reachable.
	err = cache.Register(ctx, jwksURL,
		jwk.WithConstantInterval(refresh),
		jwk.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
		jwk.WithWaitReady(false),
	)
	if err != nil {
		_ = cache.Shutdown(context.Background())
		return nil, fmt.Errorf("register google key set: %w", err)
	}

	return &GoogleVerifier{
		clientID:     clientID,
		jwksURL:      jwksURL,
		refresh:      refresh,
		readyTimeout: defaultKeyReadyTimeout,
		cache:        cache,
		now:          time.Now,
	}, nil
}

// Close stops the background key refresh.
func (v *GoogleVerifier) Close(ctx context.Context) error {
	return v.cache.Shutdown(ctx)
}

// Verify validates idToken and returns the identity it carries. Invalid
// tokens are reported as domain.ErrUnauthorized.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*domain.OAuthProfile, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("%w: missing id token", domain.ErrUnauthorized)
	}

	keys, err := v.keySet(ctx)
	if err != nil {
		return nil, err
	}

	tok, err := jwt.Parse([]byte(idToken),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithAudience(v.clientID),
		jwt.WithClock(jwt.ClockFunc(v.now)),
		jwt.WithAcceptableSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	if iss, _ := tok.Issuer(); !googleIssuers[iss] {
		return nil, fmt.Errorf("%w: unexpected issuer %q", domain.ErrUnauthorized, iss)
	}

	var profile domain.OAuthProfile
	if err := tok.Get("email", &profile.Email); err != nil || profile.Email == "" {
		return nil, fmt.Errorf("%w: id token has no email", domain.ErrUnauthorized)
	}
	var verified bool
	if err := tok.Get("email_verified", &verified); err == nil && !verified {
		return nil, fmt.Errorf("%w: email not verified", domain.ErrUnauthorized)
	}
	_ = tok.Get("name", &profile.Name)
	_ = tok.Get("picture", &profile.Picture)
	if profile.Name == "" {
		profile.Name = profile.Email
	}

	return &profile, nil
}

// keySet returns the cached key set. Until the first background fetch
// lands it waits up to readyTimeout, then fetches synchronously. A failed
// refresh keeps serving the previous set.
func (v *GoogleVerifier) keySet(ctx context.Context) (jwk.Set, error) {
	waitCtx, cancel := context.WithTimeout(ctx, v.readyTimeout)
	ready := v.cache.Ready(waitCtx, v.jwksURL)
	cancel()
	if ready {
		if keys, err := v.cache.Lookup(ctx, v.jwksURL); err == nil {
			return keys, nil
		}
	}

	keys, err := v.cache.Refresh(ctx, v.jwksURL)
	if err != nil {
		return nil, domain.NewExternalAPIError("google", 0, "fetch signing keys", err)
	}
	return keys, nil
}
