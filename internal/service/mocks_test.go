package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/storage"
)

type mockPaperRepo struct {
	mock.Mock
}

func (m *mockPaperRepo) Create(ctx context.Context, in domain.NewPaper) (*domain.Paper, error) {
	args := m.Called(ctx, in)
	if fn, ok := args.Get(0).(func(domain.NewPaper) *domain.Paper); ok {
		return fn(in), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Paper), args.Error(1)
}

func (m *mockPaperRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Paper), args.Error(1)
}

func (m *mockPaperRepo) GetDetail(ctx context.Context, id uuid.UUID, viewer *uuid.UUID) (*domain.PaperDetail, error) {
	args := m.Called(ctx, id, viewer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaperDetail), args.Error(1)
}

func (m *mockPaperRepo) List(ctx context.Context, filter domain.PaperFilter) ([]domain.Paper, int64, error) {
	args := m.Called(ctx, filter)
	papers, _ := args.Get(0).([]domain.Paper)
	return papers, args.Get(1).(int64), args.Error(2)
}

func (m *mockPaperRepo) Recent(ctx context.Context, n int) ([]domain.Paper, error) {
	args := m.Called(ctx, n)
	papers, _ := args.Get(0).([]domain.Paper)
	return papers, args.Error(1)
}

func (m *mockPaperRepo) SearchByTitles(ctx context.Context, query string, titles []string, limit int) ([]domain.Paper, error) {
	args := m.Called(ctx, query, titles, limit)
	papers, _ := args.Get(0).([]domain.Paper)
	return papers, args.Error(1)
}

func (m *mockPaperRepo) UpdateMedia(ctx context.Context, id uuid.UUID, pdfURL string) error {
	return m.Called(ctx, id, pdfURL).Error(0)
}

func (m *mockPaperRepo) Delete(ctx context.Context, id, ownerID uuid.UUID) (*domain.Paper, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Paper), args.Error(1)
}

func (m *mockPaperRepo) LinkAuthors(ctx context.Context, paperID uuid.UUID, ids []uuid.UUID) error {
	return m.Called(ctx, paperID, ids).Error(0)
}

func (m *mockPaperRepo) LinkCategories(ctx context.Context, paperID uuid.UUID, ids []uuid.UUID) error {
	return m.Called(ctx, paperID, ids).Error(0)
}

func (m *mockPaperRepo) LinkTags(ctx context.Context, paperID uuid.UUID, ids []uuid.UUID) error {
	return m.Called(ctx, paperID, ids).Error(0)
}

func (m *mockPaperRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// fakeTaxonomy upserts names into fresh ids.
type fakeTaxonomy struct {
	err        error
	categories []domain.Category
	tags       []domain.Tag
}

func (f *fakeTaxonomy) UpsertAuthors(_ context.Context, names []string) ([]domain.Author, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Author, len(names))
	for i, n := range names {
		out[i] = domain.Author{ID: uuid.New(), Name: n}
	}
	return out, nil
}

func (f *fakeTaxonomy) UpsertCategories(_ context.Context, names []string) ([]domain.Category, error) {
	out := make([]domain.Category, len(names))
	for i, n := range names {
		out[i] = domain.Category{ID: uuid.New(), Name: n}
	}
	return out, nil
}

func (f *fakeTaxonomy) UpsertTags(_ context.Context, names []string) ([]domain.Tag, error) {
	out := make([]domain.Tag, len(names))
	for i, n := range names {
		out[i] = domain.Tag{ID: uuid.New(), Name: n}
	}
	return out, nil
}

func (f *fakeTaxonomy) ListCategories(context.Context) ([]domain.Category, error) {
	return f.categories, nil
}

func (f *fakeTaxonomy) ListTags(context.Context) ([]domain.Tag, error) {
	return f.tags, nil
}

type mockBookmarkRepo struct {
	mock.Mock
}

func (m *mockBookmarkRepo) Add(ctx context.Context, userID, paperID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, paperID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBookmarkRepo) Remove(ctx context.Context, userID, paperID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, paperID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBookmarkRepo) Exists(ctx context.Context, userID, paperID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, paperID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBookmarkRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) UpsertOAuth(ctx context.Context, profile domain.OAuthProfile) (*domain.User, bool, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*domain.User), args.Bool(1), args.Error(2)
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, id uuid.UUID, update domain.ProfileUpdate) (*domain.User, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

// recordingOutbox keeps inserted events in memory.
type recordingOutbox struct {
	events []*domain.OutboxEvent
}

func (r *recordingOutbox) Insert(_ context.Context, event *domain.OutboxEvent) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingOutbox) ClaimPending(context.Context, int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (r *recordingOutbox) MarkPublished(context.Context, uuid.UUID) error { return nil }

func (r *recordingOutbox) MarkFailed(context.Context, uuid.UUID, string, time.Duration) error {
	return nil
}

func (r *recordingOutbox) Purge(context.Context, time.Time, []domain.OutboxStatus, int) (int64, error) {
	return 0, nil
}

func (r *recordingOutbox) types() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

// fakeUoW runs fn on the same repositories, counting transactions.
type fakeUoW struct {
	repos Repositories
	calls int
}

func (u *fakeUoW) Within(_ context.Context, fn func(repos Repositories) error) error {
	u.calls++
	return fn(u.repos)
}

// memoryMedia is an in-memory storage.MediaStore.
type memoryMedia struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newMemoryMedia() *memoryMedia {
	return &memoryMedia{objects: map[string][]byte{}}
}

func (m *memoryMedia) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return m.URL(key), nil
}

func (m *memoryMedia) Open(_ context.Context, key string) (io.ReadCloser, *storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, nil, domain.NewNotFoundError("media", key)
	}
	return io.NopCloser(bytes.NewReader(data)), &storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryMedia) Stat(_ context.Context, key string) (*storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, domain.NewNotFoundError("media", key)
	}
	return &storage.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryMedia) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryMedia) URL(key string) string {
	return storage.DefaultPublicBaseURL + "/" + key
}

func (m *memoryMedia) KeyFromURL(rawURL string) (string, bool) {
	key, ok := strings.CutPrefix(rawURL, storage.DefaultPublicBaseURL+"/")
	return key, ok && key != ""
}

type importCall struct {
	paperID, ownerID uuid.UUID
	sourceURL        string
}

type fakeImporter struct {
	calls []importCall
	err   error
}

func (f *fakeImporter) StartMediaImport(_ context.Context, paperID, ownerID uuid.UUID, sourceURL string) error {
	f.calls = append(f.calls, importCall{paperID: paperID, ownerID: ownerID, sourceURL: sourceURL})
	return f.err
}

type memoryFeed struct {
	papers []domain.Paper
	cached bool
	sets   int
}

func (f *memoryFeed) GetFeed(context.Context) ([]domain.Paper, bool, error) {
	return f.papers, f.cached, nil
}

func (f *memoryFeed) SetFeed(_ context.Context, papers []domain.Paper) error {
	f.papers, f.cached = papers, true
	f.sets++
	return nil
}

func (f *memoryFeed) InvalidateFeed(context.Context) error {
	f.papers, f.cached = nil, false
	return nil
}
