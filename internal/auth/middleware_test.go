package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/observability"
)

func principalEcho(t *testing.T) (http.Handler, func() *Principal) {
	t.Helper()
	var got *Principal
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		if got != nil {
			assert.Equal(t, got.UserID.String(), observability.UserIDFromContext(r.Context()))
		}
		w.WriteHeader(http.StatusOK)
	})
	return h, func() *Principal { return got }
}

func TestAuthenticate(t *testing.T) {
	m := newTestSessions(t)
	user := &domain.User{ID: uuid.New(), Name: "Jane", Email: "jane@example.com"}
	session, err := m.Issue(user)
	require.NoError(t, err)

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		wantID  uuid.UUID
	}{
		{
			name:    "bearer header",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+session.Token) },
			wantID:  user.ID,
		},
		{
			name:    "lowercase scheme",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "bearer "+session.Token) },
			wantID:  user.ID,
		},
		{
			name: "cookie",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: session.Token, Expires: time.Now().Add(time.Hour)})
			},
			wantID: user.ID,
		},
		{
			name:    "invalid token passes anonymously",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") },
		},
		{
			name:    "basic scheme ignored",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Basic Zm9vOmJhcg==") },
		},
		{
			name:    "no credentials",
			prepare: func(*http.Request) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, principal := principalEcho(t)
			handler := Authenticate(m, "")(next)

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			if tt.wantID == uuid.Nil {
				assert.Nil(t, principal())
				return
			}
			require.NotNil(t, principal())
			assert.Equal(t, tt.wantID, principal().UserID)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	called := false
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
		assert.False(t, called)
	})

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req = req.WithContext(WithPrincipal(req.Context(), &Principal{UserID: uuid.New()}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.True(t, called)
	})
}
