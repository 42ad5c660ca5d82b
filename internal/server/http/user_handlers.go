package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/service"
)

type registerResponse struct {
	Email string `json:"email"`
}

type googleSignInRequest struct {
	IDToken string `json:"idToken"`
}

// register handles POST /api/register.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.deps.Users.Register(r.Context(), req)
	if errors.Is(err, domain.ErrAlreadyExists) {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{Email: user.Email})
}

// login handles POST /api/auth/login.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.deps.Users.Login(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.setSessionCookie(w, res)
	writeJSON(w, http.StatusOK, res)
}

// googleSignIn handles POST /api/auth/google.
func (s *Server) googleSignIn(w http.ResponseWriter, r *http.Request) {
	var req googleSignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.deps.Users.GoogleSignIn(r.Context(), req.IDToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.setSessionCookie(w, res)
	writeJSON(w, http.StatusOK, res)
}

// logout handles POST /api/auth/logout. Sessions are stateless, so this only
// clears the cookie.
func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /api/me.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, err := s.deps.Users.Me(r.Context(), principal(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// updateProfile handles PATCH /api/me.
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.deps.Users.UpdateProfile(r.Context(), principal(r), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// dashboard handles GET /api/me/dashboard.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := s.deps.Papers.Dashboard(r.Context(), principal(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, res *service.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.ExpiresAt,
		MaxAge:   int(time.Until(res.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
