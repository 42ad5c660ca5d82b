// Package httpserver provides the HTTP REST API of the paper sharing service.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-sharing-service/internal/auth"
	"github.com/helixir/paper-sharing-service/internal/database"
	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/observability"
	"github.com/helixir/paper-sharing-service/internal/pdf"
	"github.com/helixir/paper-sharing-service/internal/search"
	"github.com/helixir/paper-sharing-service/internal/service"
	"github.com/helixir/paper-sharing-service/internal/storage"
)

// PaperService is the paper catalog used by the handlers.
type PaperService interface {
	Upload(ctx context.Context, principal *auth.Principal, in domain.UploadInput) (*domain.Paper, error)
	UploadFile(ctx context.Context, principal *auth.Principal, file service.FileUpload) (*service.StoredFile, error)
	UploadWithFile(ctx context.Context, principal *auth.Principal, file service.FileUpload, in domain.UploadInput) (*domain.Paper, error)
	Get(ctx context.Context, id uuid.UUID, viewer *auth.Principal) (*domain.PaperDetail, error)
	List(ctx context.Context, filter domain.PaperFilter) (*service.PaperPage, error)
	ByTags(ctx context.Context, tags []string, page domain.PageRequest) (*service.PaperPage, error)
	ByCategories(ctx context.Context, categories []string, page domain.PageRequest) (*service.PaperPage, error)
	ByAuthors(ctx context.Context, authors []string, page domain.PageRequest) (*service.PaperPage, error)
	ByUser(ctx context.Context, userID uuid.UUID, page domain.PageRequest) (*service.PaperPage, error)
	Mine(ctx context.Context, principal *auth.Principal, page domain.PageRequest) (*service.PaperPage, error)
	Bookmarks(ctx context.Context, principal *auth.Principal, page domain.PageRequest) (*service.PaperPage, error)
	Home(ctx context.Context) ([]domain.Paper, error)
	Delete(ctx context.Context, principal *auth.Principal, id uuid.UUID) error
	Dashboard(ctx context.Context, principal *auth.Principal) (*domain.Dashboard, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	Tags(ctx context.Context) ([]domain.Tag, error)
}

// BookmarkService changes bookmarks.
type BookmarkService interface {
	Add(ctx context.Context, principal *auth.Principal, paperID uuid.UUID) (bool, error)
	Remove(ctx context.Context, principal *auth.Principal, paperID uuid.UUID) (bool, error)
	Toggle(ctx context.Context, principal *auth.Principal, paperID uuid.UUID) (bool, error)
}

// UserService manages accounts and sessions.
type UserService interface {
	Register(ctx context.Context, in domain.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, in domain.LoginInput) (*service.AuthResult, error)
	GoogleSignIn(ctx context.Context, idToken string) (*service.AuthResult, error)
	Me(ctx context.Context, principal *auth.Principal) (*domain.User, error)
	UpdateProfile(ctx context.Context, principal *auth.Principal, update domain.ProfileUpdate) (*domain.User, error)
}

// Searcher runs catalog searches.
type Searcher interface {
	Search(ctx context.Context, query string) (*search.Result, error)
}

// PDFOpener opens remote documents for the download proxy.
type PDFOpener interface {
	Open(ctx context.Context, rawURL string) (*pdf.Stream, error)
}

// HealthChecker reports database health.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// ReadinessCheck is an extra dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Dependencies are the collaborators of the HTTP server. Media may be nil,
// which disables /api/media and hosted downloads.
type Dependencies struct {
	Papers    PaperService
	Bookmarks BookmarkService
	Users     UserService
	Search    Searcher
	Sessions  auth.Verifier
	PDFs      PDFOpener
	Media     storage.MediaStore
	DB        HealthChecker
	Checks    []ReadinessCheck
	Metrics   *observability.Metrics
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// CookieName is the session cookie. Default: auth.DefaultCookieName.
	CookieName string
	// CookieSecure marks the session cookie Secure.
	CookieSecure bool
	// MaxUploadSize bounds multipart upload bodies.
	MaxUploadSize int64
	// CORSAllowedOrigin is allowed to POST uploads cross-origin. Default: "*".
	CORSAllowedOrigin string
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	deps       Dependencies
	cfg        Config
	logger     zerolog.Logger
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Dependencies, logger zerolog.Logger) *Server {
	if cfg.CookieName == "" {
		cfg.CookieName = auth.DefaultCookieName
	}
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = "*"
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = service.DefaultMaxUploadSize
	}

	s := &Server{
		deps:   deps,
		cfg:    cfg,
		logger: observability.WithComponent(logger, "http-server"),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger, s.deps.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authenticate(s.deps.Sessions, s.cfg.CookieName))

		r.Post("/register", s.register)
		r.Post("/auth/login", s.login)
		r.Post("/auth/google", s.googleSignIn)
		r.Post("/auth/logout", s.logout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Get("/me", s.me)
			r.Patch("/me", s.updateProfile)
			r.Get("/me/dashboard", s.dashboard)
		})

		r.Route("/papers", func(r chi.Router) {
			r.Get("/", s.listPapers)
			r.Get("/home", s.homePapers)
			r.Get("/search", s.searchPapers)
			r.Get("/tags", s.papersByTags)
			r.Get("/categories", s.papersByCategories)
			r.Get("/authors", s.papersByAuthors)
			r.Get("/user/{userID}", s.papersByUser)
			r.Get("/download", s.downloadPDF)
			r.Get("/{paperID}", s.getPaper)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth)
				r.Get("/user", s.myPapers)
				r.Get("/bookmarks", s.myBookmarks)
				r.Delete("/{paperID}", s.deletePaper)
				r.Post("/{paperID}/bookmark", s.addBookmark)
				r.Delete("/{paperID}/bookmark", s.removeBookmark)
				r.Put("/{paperID}/bookmark", s.toggleBookmark)
			})
		})

		r.Route("/upload", func(r chi.Router) {
			r.Use(uploadCORS(s.cfg.CORSAllowedOrigin))
			r.Options("/", func(http.ResponseWriter, *http.Request) {})
			r.With(auth.RequireAuth).Post("/", s.uploadPaper)
			r.With(auth.RequireAuth).Post("/file", s.uploadPaperFile)
		})

		r.Get("/media/*", s.serveMedia)
		r.Get("/categories", s.listCategories)
		r.Get("/tags", s.listTags)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.deps.DB.Health(r.Context())
	if health.Healthy() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including optional dependencies.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.deps.DB.Health(r.Context())
	if !health.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}

	resp := map[string]string{"status": "ready", "database": "healthy"}
	status := http.StatusOK
	for _, c := range s.deps.Checks {
		if err := c.Check(r.Context()); err != nil {
			s.logger.Warn().Err(err).Str("check", c.Name).Msg("readiness check failed")
			resp[c.Name] = "unhealthy"
			resp["status"] = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp[c.Name] = "healthy"
	}
	writeJSON(w, status, resp)
}

// fail writes err and logs it when it is not a client error.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger := observability.LoggerFromContext(r.Context(), s.logger)
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeDomainError(w, err)
}

// principal returns the authenticated caller, or nil.
func principal(r *http.Request) *auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}
