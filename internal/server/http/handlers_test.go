package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-sharing-service/internal/auth"
	"github.com/helixir/paper-sharing-service/internal/database"
	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/search"
	"github.com/helixir/paper-sharing-service/internal/service"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

type mockPapers struct {
	uploadFn         func(ctx context.Context, p *auth.Principal, in domain.UploadInput) (*domain.Paper, error)
	uploadFileFn     func(ctx context.Context, p *auth.Principal, file service.FileUpload) (*service.StoredFile, error)
	uploadWithFileFn func(ctx context.Context, p *auth.Principal, file service.FileUpload, in domain.UploadInput) (*domain.Paper, error)
	getFn            func(ctx context.Context, id uuid.UUID, viewer *auth.Principal) (*domain.PaperDetail, error)
	listFn           func(ctx context.Context, filter domain.PaperFilter) (*service.PaperPage, error)
	byTagsFn         func(ctx context.Context, names []string, page domain.PageRequest) (*service.PaperPage, error)
	byUserFn         func(ctx context.Context, userID uuid.UUID, page domain.PageRequest) (*service.PaperPage, error)
	mineFn           func(ctx context.Context, p *auth.Principal, page domain.PageRequest) (*service.PaperPage, error)
	homeFn           func(ctx context.Context) ([]domain.Paper, error)
	deleteFn         func(ctx context.Context, p *auth.Principal, id uuid.UUID) error
	dashboardFn      func(ctx context.Context, p *auth.Principal) (*domain.Dashboard, error)
}

func (m *mockPapers) Upload(ctx context.Context, p *auth.Principal, in domain.UploadInput) (*domain.Paper, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, p, in)
	}
	return &domain.Paper{ID: uuid.New(), Title: in.Title}, nil
}

func (m *mockPapers) UploadFile(ctx context.Context, p *auth.Principal, file service.FileUpload) (*service.StoredFile, error) {
	if m.uploadFileFn != nil {
		return m.uploadFileFn(ctx, p, file)
	}
	return nil, service.ErrMediaDisabled
}

func (m *mockPapers) UploadWithFile(ctx context.Context, p *auth.Principal, file service.FileUpload, in domain.UploadInput) (*domain.Paper, error) {
	if m.uploadWithFileFn != nil {
		return m.uploadWithFileFn(ctx, p, file, in)
	}
	return nil, service.ErrMediaDisabled
}

func (m *mockPapers) Get(ctx context.Context, id uuid.UUID, viewer *auth.Principal) (*domain.PaperDetail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id, viewer)
	}
	return nil, domain.NewNotFoundError("paper", id.String())
}

func (m *mockPapers) List(ctx context.Context, filter domain.PaperFilter) (*service.PaperPage, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return emptyPage(filter.Page), nil
}

func (m *mockPapers) ByTags(ctx context.Context, names []string, page domain.PageRequest) (*service.PaperPage, error) {
	if m.byTagsFn != nil {
		return m.byTagsFn(ctx, names, page)
	}
	return emptyPage(page), nil
}

func (m *mockPapers) ByCategories(_ context.Context, _ []string, page domain.PageRequest) (*service.PaperPage, error) {
	return emptyPage(page), nil
}

func (m *mockPapers) ByAuthors(_ context.Context, _ []string, page domain.PageRequest) (*service.PaperPage, error) {
	return emptyPage(page), nil
}

func (m *mockPapers) ByUser(ctx context.Context, userID uuid.UUID, page domain.PageRequest) (*service.PaperPage, error) {
	if m.byUserFn != nil {
		return m.byUserFn(ctx, userID, page)
	}
	return emptyPage(page), nil
}

func (m *mockPapers) Mine(ctx context.Context, p *auth.Principal, page domain.PageRequest) (*service.PaperPage, error) {
	if m.mineFn != nil {
		return m.mineFn(ctx, p, page)
	}
	return emptyPage(page), nil
}

func (m *mockPapers) Bookmarks(_ context.Context, _ *auth.Principal, page domain.PageRequest) (*service.PaperPage, error) {
	return emptyPage(page), nil
}

func (m *mockPapers) Home(ctx context.Context) ([]domain.Paper, error) {
	if m.homeFn != nil {
		return m.homeFn(ctx)
	}
	return nil, nil
}

func (m *mockPapers) Delete(ctx context.Context, p *auth.Principal, id uuid.UUID) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, p, id)
	}
	return nil
}

func (m *mockPapers) Dashboard(ctx context.Context, p *auth.Principal) (*domain.Dashboard, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(ctx, p)
	}
	return &domain.Dashboard{}, nil
}

func (m *mockPapers) Categories(_ context.Context) ([]domain.Category, error) {
	return []domain.Category{{ID: uuid.New(), Name: "Physics"}}, nil
}

func (m *mockPapers) Tags(_ context.Context) ([]domain.Tag, error) { return nil, nil }

type mockBookmarks struct {
	toggleFn func(ctx context.Context, p *auth.Principal, id uuid.UUID) (bool, error)
}

func (m *mockBookmarks) Add(_ context.Context, _ *auth.Principal, _ uuid.UUID) (bool, error) {
	return true, nil
}

func (m *mockBookmarks) Remove(_ context.Context, _ *auth.Principal, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (m *mockBookmarks) Toggle(ctx context.Context, p *auth.Principal, id uuid.UUID) (bool, error) {
	if m.toggleFn != nil {
		return m.toggleFn(ctx, p, id)
	}
	return true, nil
}

type mockUsers struct {
	registerFn func(ctx context.Context, in domain.RegisterInput) (*domain.User, error)
	loginFn    func(ctx context.Context, in domain.LoginInput) (*service.AuthResult, error)
	googleFn   func(ctx context.Context, idToken string) (*service.AuthResult, error)
}

func (m *mockUsers) Register(ctx context.Context, in domain.RegisterInput) (*domain.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return &domain.User{ID: uuid.New(), Email: in.Email}, nil
}

func (m *mockUsers) Login(ctx context.Context, in domain.LoginInput) (*service.AuthResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, in)
	}
	return nil, service.ErrInvalidCredentials
}

func (m *mockUsers) GoogleSignIn(ctx context.Context, idToken string) (*service.AuthResult, error) {
	if m.googleFn != nil {
		return m.googleFn(ctx, idToken)
	}
	return nil, service.ErrGoogleDisabled
}

func (m *mockUsers) Me(_ context.Context, p *auth.Principal) (*domain.User, error) {
	return &domain.User{ID: p.UserID, Email: p.Email, Name: p.Name}, nil
}

func (m *mockUsers) UpdateProfile(_ context.Context, p *auth.Principal, update domain.ProfileUpdate) (*domain.User, error) {
	u := &domain.User{ID: p.UserID, Email: p.Email, Name: p.Name}
	u.Bio = update.Bio
	return u, nil
}

type mockSearch struct {
	searchFn func(ctx context.Context, q string) (*search.Result, error)
}

func (m *mockSearch) Search(ctx context.Context, q string) (*search.Result, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &search.Result{}, nil
}

// tokenVerifier accepts the tokens it was built with.
type tokenVerifier map[string]*auth.Principal

func (v tokenVerifier) Verify(token string) (*auth.Principal, error) {
	if p, ok := v[token]; ok {
		return p, nil
	}
	return nil, errors.New("invalid token")
}

type mockDB struct {
	status database.HealthStatus
}

func (m *mockDB) Health(_ context.Context) database.HealthStatus { return m.status }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

const testToken = "valid-token"

var testPrincipal = &auth.Principal{UserID: uuid.New(), Email: "ada@example.com", Name: "Ada Lovelace"}

func emptyPage(page domain.PageRequest) *service.PaperPage {
	return &service.PaperPage{Papers: []domain.Paper{}, Pagination: domain.NewPageInfo(page, 0)}
}

func testDeps() Dependencies {
	return Dependencies{
		Papers:    &mockPapers{},
		Bookmarks: &mockBookmarks{},
		Users:     &mockUsers{},
		Search:    &mockSearch{},
		Sessions:  tokenVerifier{testToken: testPrincipal},
		DB:        &mockDB{status: database.HealthStatus{Status: "healthy"}},
	}
}

func newTestServer(t *testing.T, deps Dependencies) *Server {
	t.Helper()
	return NewServer(Config{Address: ":0", MaxUploadSize: 1 << 20}, deps, zerolog.Nop())
}

func do(t *testing.T, srv *Server, method, target string, body io.Reader, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func TestHealthHandler(t *testing.T) {
	deps := testDeps()
	rr := do(t, newTestServer(t, deps), http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", decodeBody(t, rr)["status"])

	deps.DB = &mockDB{status: database.HealthStatus{Status: "unhealthy", Error: "connection refused"}}
	rr = do(t, newTestServer(t, deps), http.MethodGet, "/healthz", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestReadinessHandler_FailingCheck(t *testing.T) {
	deps := testDeps()
	deps.Checks = []ReadinessCheck{
		{Name: "redis", Check: func(context.Context) error { return nil }},
		{Name: "media", Check: func(context.Context) error { return errors.New("bucket missing") }},
	}

	rr := do(t, newTestServer(t, deps), http.MethodGet, "/readyz", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, "healthy", body["redis"])
	assert.Equal(t, "unhealthy", body["media"])
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func TestRegister(t *testing.T) {
	srv := newTestServer(t, testDeps())
	rr := do(t, srv, http.MethodPost, "/api/register",
		strings.NewReader(`{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","password":"secret1"}`), false)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "ada@example.com", decodeBody(t, rr)["email"])
}

func TestRegister_DuplicateEmailIsBadRequest(t *testing.T) {
	deps := testDeps()
	deps.Users = &mockUsers{registerFn: func(context.Context, domain.RegisterInput) (*domain.User, error) {
		return nil, domain.NewAlreadyExistsError("user", "ada@example.com")
	}}

	rr := do(t, newTestServer(t, deps), http.MethodPost, "/api/register",
		strings.NewReader(`{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","password":"secret1"}`), false)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "User already exists", decodeBody(t, rr)["error"])
}

func TestRegister_ValidationDetails(t *testing.T) {
	deps := testDeps()
	deps.Users = &mockUsers{registerFn: func(context.Context, domain.RegisterInput) (*domain.User, error) {
		return nil, domain.ValidationErrors{{Field: "password", Message: "must be at least 6 characters"}}
	}}

	rr := do(t, newTestServer(t, deps), http.MethodPost, "/api/register", strings.NewReader(`{}`), false)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "Validation failed", body["error"])
	details, ok := body["details"].([]any)
	require.True(t, ok)
	require.Len(t, details, 1)
	assert.Equal(t, "password", details[0].(map[string]any)["field"])
}

func TestRegister_InvalidJSON(t *testing.T) {
	rr := do(t, newTestServer(t, testDeps()), http.MethodPost, "/api/register", strings.NewReader(`{`), false)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid JSON request body", decodeBody(t, rr)["error"])
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	deps := testDeps()
	expires := time.Now().Add(time.Hour)
	deps.Users = &mockUsers{loginFn: func(_ context.Context, in domain.LoginInput) (*service.AuthResult, error) {
		assert.Equal(t, "ada@example.com", in.Email)
		return &service.AuthResult{Token: "tok", ExpiresAt: expires, User: &domain.User{Email: in.Email}}, nil
	}}

	rr := do(t, newTestServer(t, deps), http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"ada@example.com","password":"secret1"}`), false)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "tok", decodeBody(t, rr)["token"])

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.DefaultCookieName, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	rr := do(t, newTestServer(t, testDeps()), http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"ada@example.com","password":"wrong"}`), false)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Invalid credentials", decodeBody(t, rr)["error"])
}

func TestGoogleSignIn_Disabled(t *testing.T) {
	rr := do(t, newTestServer(t, testDeps()), http.MethodPost, "/api/auth/google",
		strings.NewReader(`{"idToken":"x"}`), false)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	rr := do(t, newTestServer(t, testDeps()), http.MethodPost, "/api/auth/logout", nil, true)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestMe_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, testDeps())

	rr := do(t, srv, http.MethodGet, "/api/me", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Unauthorized", decodeBody(t, rr)["error"])

	rr = do(t, srv, http.MethodGet, "/api/me", nil, true)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, testPrincipal.Email, decodeBody(t, rr)["email"])
}

func TestMe_SessionCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: testToken})
	rr := httptest.NewRecorder()
	newTestServer(t, testDeps()).Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUpdateProfile(t *testing.T) {
	rr := do(t, newTestServer(t, testDeps()), http.MethodPatch, "/api/me",
		strings.NewReader(`{"bio":"Analyst"}`), true)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Analyst", decodeBody(t, rr)["bio"])
}

func TestDashboard(t *testing.T) {
	deps := testDeps()
	deps.Papers = &mockPapers{dashboardFn: func(_ context.Context, p *auth.Principal) (*domain.Dashboard, error) {
		assert.Equal(t, testPrincipal.UserID, p.UserID)
		return &domain.Dashboard{UploadCount: 3, BookmarkCount: 1}, nil
	}}

	rr := do(t, newTestServer(t, deps), http.MethodGet, "/api/me/dashboard", nil, true)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 3, decodeBody(t, rr)["uploadCount"])
}

// ---------------------------------------------------------------------------
// Papers
// ---------------------------------------------------------------------------

func TestListPapers_PassesFilter(t *testing.T) {
	deps := testDeps()
	var got domain.PaperFilter
	deps.Papers = &mockPapers{listFn: func(_ context.Context, f domain.PaperFilter) (*service.PaperPage, error) {
		got = f
		return &service.PaperPage{
			Papers:     []domain.Paper{{ID: uuid.New(), Title: "Attention"}},
			Pagination: domain.NewPageInfo(f.Page, 21),
		}, nil
	}}

	rr := do(t, newTestServer(t, deps), http.MethodGet, "/api/papers?page=2&limit=10&search=attn&sortBy=title", nil, false)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "attn", got.Search)
	assert.Equal(t, domain.SortTitle, got.Sort)
	assert.Equal(t, 2, got.Page.Page)
	assert.Equal(t, 10, got.Page.Limit)

	body := decodeBody(t, rr)
	pagination := body["pagination"].(map[string]any)
	assert.EqualValues(t, 21, pagination["total"])
	assert.EqualValues(t, 3, pagination["pages"])
	assert.EqualValues(t, 2, pagination["currentPage"])
}

func TestListPapers_InvalidParameters(t *testing.T) {
	srv := newTestServer(t, testDeps())

	tests := []struct {
		name   string
		target string
		prefix string
	}{
		{"bad page", "/api/papers?page=abc", "Invalid page parameter"},
		{"negative page", "/api/papers?page=-1", "Invalid page parameter"},
		{"zero page", "/api/papers?page=0", "Invalid page parameter"},
		{"zero limit", "/api/papers?limit=0", "Invalid limit parameter"},
		{"limit too large", "/api/papers?limit=1000", "Invalid limit parameter"},
		{"unknown sort", "/api/papers?sortBy=popularity", "Invalid sortBy parameter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.target, nil, false)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			msg, _ := decodeBody(t, rr)["error"].(string)
			assert.True(t, strings.HasPrefix(msg, tt.prefix), msg)
		})
	}
}

func TestHomePapers_EmptyIsArray(t *testing.T) {
	rr := do(t, newTestServer(t, testDeps()), http.MethodGet, "/api/papers/home", nil, false)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"papers":[]}`, rr.Body.String())
}

func TestSearchPapers(t *testing.T) {
	deps := testDeps()
	deps.Search = &mockSearch{searchFn: func(_ context.Context, q string) (*search.Result, error) {
		assert.Equal(t, "transformers", q)
		return &search.Result{Papers: []domain.Paper{{Title: "Attention Is All You Need"}}, Outcome: "semantic"}, nil
	}}

	rr := do(t, newTestServer(t, deps), http.MethodGet, "/api/papers/search?q=transformers", nil, false)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "semantic", rr.Header().Get("X-Search-Outcome"))
	papers := decodeBody(t, rr)["papers"].([]any)
	assert.Len(t, papers, 1)
}

func TestPapersByTags_CombinesParameters(t *testing.T) {
	deps := testDeps()
	var got []string
	deps.Papers = &mockPapers{byTagsFn: func(_ context.Context, names []string, page domain.PageRequest) (*service.PaperPage, error) {
		got = names
		return emptyPage(page), nil
	}}

	rr := do(t, newTestServer(t, deps), http.MethodGet, "/api/papers/tags?tags=nlp,vision&tags=ml", nil, false)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"nlp", "vision", "ml"}, got)
}

func TestPapersByTags_NoneIsBadRequest(t *testing.T) {
	deps := testDeps()
	deps.Papers = &mockPapers{byTagsFn: func(_ context.Context, names []string, _ domain.PageRequest) (*service.PaperPage, error) {
		assert.Empty(t, names)
		return nil, domain.NewValidationError("tags", "At least one tag is required")
	}}

	rr := do(t, newTestServer(t, deps), http.MethodGet, "/api/papers/tags", nil, false)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "At least one tag is required", decodeBody(t, rr)["error"])
}

func TestPapersByUser(t *testing.T) {
	deps := testDeps()
	userID := uuid.New()
	deps.Papers = &mockPapers{byUserFn: func(_ context.Context, id uuid.UUID, page domain.PageRequest) (*service.PaperPage, error) {
		assert.Equal(t, userID, id)
		return emptyPage(page), nil
	}}
	srv := newTestServer(t, deps)

	rr := do(t, srv, http.MethodGet, "/api/papers/user/"+userID.String(), nil, false)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/papers/user/not-a-uuid", nil, false)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMyPapers_RequiresAuth(t *testing.T) {
	deps := testDeps()
	called := false
	deps.Papers = &mockPapers{mineFn: func(_ context.Context, p *auth.Principal, page domain.PageRequest) (*service.PaperPage, error) {
		called = true
		assert.Equal(t, testPrincipal.UserID, p.UserID)
		return emptyPage(page), nil
	}}
	srv := newTestServer(t, deps)

	rr := do(t, srv, http.MethodGet, "/api/papers/user", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)

	rr = do(t, srv, http.MethodGet, "/api/papers/user", nil, true)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, called)

	rr = do(t, srv, http.MethodGet, "/api/papers/bookmarks", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetPaper(t *testing.T) {
	deps := testDeps()
	id := uuid.New()
	deps.Papers = &mockPapers{getFn: func(_ context.Context, got uuid.UUID, viewer *auth.Principal) (*domain.PaperDetail, error) {
		if got != id {
			return nil, domain.NewNotFoundError("paper", got.String())
		}
		require.NotNil(t, viewer)
		return &domain.PaperDetail{Paper: domain.Paper{ID: id, Title: "Attention"}, Bookmarked: true}, nil
	}}
	srv := newTestServer(t, deps)

	rr := do(t, srv, http.MethodGet, "/api/papers/"+id.String(), nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "Attention", body["title"])
	assert.Equal(t, true, body["bookmarked"])

	rr = do(t, srv, http.MethodGet, "/api/papers/"+uuid.New().String(), nil, true)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Paper not found", decodeBody(t, rr)["error"])

	rr = do(t, srv, http.MethodGet, "/api/papers/xyz", nil, false)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeletePaper(t *testing.T) {
	deps := testDeps()
	deps.Papers = &mockPapers{deleteFn: func(_ context.Context, _ *auth.Principal, _ uuid.UUID) error {
		return domain.ErrForbidden
	}}
	srv := newTestServer(t, deps)

	rr := do(t, srv, http.MethodDelete, "/api/papers/"+uuid.New().String(), nil, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, srv, http.MethodDelete, "/api/papers/"+uuid.New().String(), nil, true)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	srv = newTestServer(t, testDeps())
	rr = do(t, srv, http.MethodDelete, "/api/papers/"+uuid.New().String(), nil, true)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeBody(t, rr)["success"])
}

func TestBookmarkRoutes(t *testing.T) {
	deps := testDeps()
	deps.Bookmarks = &mockBookmarks{toggleFn: func(_ context.Context, _ *auth.Principal, _ uuid.UUID) (bool, error) {
		return false, nil
	}}
	srv := newTestServer(t, deps)
	target := "/api/papers/" + uuid.New().String() + "/bookmark"

	rr := do(t, srv, http.MethodPost, target, nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeBody(t, rr)["bookmarked"])

	rr = do(t, srv, http.MethodDelete, target, nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decodeBody(t, rr)["bookmarked"])

	rr = do(t, srv, http.MethodPut, target, nil, true)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decodeBody(t, rr)["bookmarked"])

	rr = do(t, srv, http.MethodPut, target, nil, false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTaxonomyListings(t *testing.T) {
	srv := newTestServer(t, testDeps())

	rr := do(t, srv, http.MethodGet, "/api/categories", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody(t, rr)["categories"], 1)

	rr = do(t, srv, http.MethodGet, "/api/tags", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"tags":[]}`, rr.Body.String())
}

// ---------------------------------------------------------------------------
// Uploads
// ---------------------------------------------------------------------------

func TestUploadPaper(t *testing.T) {
	deps := testDeps()
	deps.Papers = &mockPapers{uploadFn: func(_ context.Context, p *auth.Principal, in domain.UploadInput) (*domain.Paper, error) {
		assert.Equal(t, testPrincipal.UserID, p.UserID)
		assert.Equal(t, []string{"Vaswani"}, in.Authors)
		return &domain.Paper{ID: uuid.New(), Title: in.Title, UserID: p.UserID}, nil
	}}
	body := `{"title":"Attention","abstract":"Transformers","authors":["Vaswani"],"categories":["ML"],"pdfUrl":"https://arxiv.org/pdf/1706.03762"}`

	rr := do(t, newTestServer(t, deps), http.MethodPost, "/api/upload", strings.NewReader(body), true)

	require.Equal(t, http.StatusCreated, rr.Code)
	resp := decodeBody(t, rr)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Paper uploaded successfully", resp["message"])
	assert.Equal(t, "Attention", resp["paper"].(map[string]any)["title"])
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestUploadPaper_RequiresAuth(t *testing.T) {
	rr := do(t, newTestServer(t, testDeps()), http.MethodPost, "/api/upload", strings.NewReader(`{}`), false)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUploadPreflight(t *testing.T) {
	rr := do(t, newTestServer(t, testDeps()), http.MethodOptions, "/api/upload", nil, false)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rr.Header().Get("Access-Control-Allow-Headers"))
}

// ---------------------------------------------------------------------------
// Errors and middleware
// ---------------------------------------------------------------------------

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", domain.NewValidationError("title", "Title is required"), http.StatusBadRequest, "Title is required"},
		{"not found", domain.NewNotFoundError("paper", "x"), http.StatusNotFound, "Paper not found"},
		{"already exists", domain.NewAlreadyExistsError("category", "x"), http.StatusConflict, "Category already exists"},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "Forbidden"},
		{"rate limited", domain.NewRateLimitError("llm", time.Second), http.StatusTooManyRequests, "Too many requests"},
		{"unavailable", service.ErrMediaDisabled, http.StatusServiceUnavailable, "Service unavailable"},
		{"wrapped", errors.Join(errors.New("context"), domain.ErrForbidden), http.StatusForbidden, "Forbidden"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := statusForError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.msg, body.Error)
		})
	}
}

func TestWriteDomainError_RetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	writeDomainError(rr, domain.NewRateLimitError("llm", 1500*time.Millisecond))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("Retry-After"))
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	deps := testDeps()
	deps.Papers = &mockPapers{homeFn: func(context.Context) ([]domain.Paper, error) {
		return nil, errors.New("pq: relation \"papers\" does not exist")
	}}

	rr := do(t, newTestServer(t, deps), http.MethodGet, "/api/papers/home", nil, false)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "relation")
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	big := bytes.Repeat([]byte("a"), maxRequestBodySize+10)
	body := `{"title":"` + string(big) + `"}`

	rr := do(t, newTestServer(t, testDeps()), http.MethodPost, "/api/upload", strings.NewReader(body), true)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
