package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-sharing-service/internal/auth"
	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/outbox"
)

type bookmarkFixture struct {
	papers    *mockPaperRepo
	bookmarks *mockBookmarkRepo
	outbox    *recordingOutbox
	svc       *BookmarkService
	principal *auth.Principal
	paperID   uuid.UUID
}

func newBookmarkFixture(t *testing.T) *bookmarkFixture {
	t.Helper()
	f := &bookmarkFixture{
		papers:    new(mockPaperRepo),
		bookmarks: new(mockBookmarkRepo),
		outbox:    &recordingOutbox{},
		principal: &auth.Principal{UserID: uuid.New()},
		paperID:   uuid.New(),
	}
	uow := &fakeUoW{repos: Repositories{Papers: f.papers, Bookmarks: f.bookmarks, Outbox: f.outbox}}
	f.svc = NewBookmarkService(uow, outbox.NewEmitter(outbox.EmitterConfig{}), zerolog.Nop())
	return f
}

func (f *bookmarkFixture) paperExists() {
	f.papers.On("GetByID", mock.Anything, f.paperID).Return(&domain.Paper{ID: f.paperID}, nil)
}

func TestBookmarkService_Add(t *testing.T) {
	t.Run("new bookmark emits event", func(t *testing.T) {
		f := newBookmarkFixture(t)
		f.paperExists()
		f.bookmarks.On("Exists", mock.Anything, f.principal.UserID, f.paperID).Return(false, nil)
		f.bookmarks.On("Add", mock.Anything, f.principal.UserID, f.paperID).Return(true, nil).Once()

		changed, err := f.svc.Add(context.Background(), f.principal, f.paperID)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, []string{domain.EventTypeBookmarkAdded}, f.outbox.types())
		f.bookmarks.AssertExpectations(t)
	})

	t.Run("existing bookmark is a no-op", func(t *testing.T) {
		f := newBookmarkFixture(t)
		f.paperExists()
		f.bookmarks.On("Exists", mock.Anything, f.principal.UserID, f.paperID).Return(true, nil)
		f.bookmarks.On("Add", mock.Anything, f.principal.UserID, f.paperID).Return(false, nil)

		changed, err := f.svc.Add(context.Background(), f.principal, f.paperID)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Empty(t, f.outbox.events)
	})

	t.Run("missing paper", func(t *testing.T) {
		f := newBookmarkFixture(t)
		f.papers.On("GetByID", mock.Anything, f.paperID).Return(nil, domain.NewNotFoundError("paper", f.paperID.String()))

		_, err := f.svc.Add(context.Background(), f.principal, f.paperID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		f.bookmarks.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("requires principal", func(t *testing.T) {
		f := newBookmarkFixture(t)
		_, err := f.svc.Add(context.Background(), nil, f.paperID)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestBookmarkService_Remove(t *testing.T) {
	f := newBookmarkFixture(t)
	f.paperExists()
	f.bookmarks.On("Exists", mock.Anything, f.principal.UserID, f.paperID).Return(true, nil)
	f.bookmarks.On("Remove", mock.Anything, f.principal.UserID, f.paperID).Return(true, nil).Once()

	changed, err := f.svc.Remove(context.Background(), f.principal, f.paperID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{domain.EventTypeBookmarkRemoved}, f.outbox.types())
}

func TestBookmarkService_Toggle(t *testing.T) {
	tests := []struct {
		name      string
		exists    bool
		method    string
		want      bool
		eventType string
	}{
		{name: "adds when absent", exists: false, method: "Add", want: true, eventType: domain.EventTypeBookmarkAdded},
		{name: "removes when present", exists: true, method: "Remove", want: false, eventType: domain.EventTypeBookmarkRemoved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookmarkFixture(t)
			f.paperExists()
			f.bookmarks.On("Exists", mock.Anything, f.principal.UserID, f.paperID).Return(tt.exists, nil)
			f.bookmarks.On(tt.method, mock.Anything, f.principal.UserID, f.paperID).Return(true, nil).Once()

			got, err := f.svc.Toggle(context.Background(), f.principal, f.paperID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{tt.eventType}, f.outbox.types())
			f.bookmarks.AssertExpectations(t)
		})
	}
}
