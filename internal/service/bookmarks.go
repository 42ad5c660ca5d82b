package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-sharing-service/internal/auth"
	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/observability"
	"github.com/helixir/paper-sharing-service/internal/outbox"
)

// BookmarkService adds and removes bookmarks. Every change is recorded as an
// outbox event in the same transaction.
type BookmarkService struct {
	uow     UnitOfWork
	emitter *outbox.Emitter
	logger  zerolog.Logger
}

// NewBookmarkService creates a BookmarkService.
func NewBookmarkService(uow UnitOfWork, emitter *outbox.Emitter, logger zerolog.Logger) *BookmarkService {
	return &BookmarkService{
		uow:     uow,
		emitter: emitter,
		logger:  observability.WithComponent(logger, "bookmark-service"),
	}
}

// Add bookmarks paperID for the caller. It reports whether a new bookmark
// was created; bookmarking twice is not an error.
func (s *BookmarkService) Add(ctx context.Context, principal *auth.Principal, paperID uuid.UUID) (bool, error) {
	return s.set(ctx, principal, paperID, func(bool) bool { return true })
}

// Remove drops the caller's bookmark on paperID. It reports whether a
// bookmark existed.
func (s *BookmarkService) Remove(ctx context.Context, principal *auth.Principal, paperID uuid.UUID) (bool, error) {
	return s.set(ctx, principal, paperID, func(bool) bool { return false })
}

// Toggle flips the caller's bookmark on paperID and returns the new state.
func (s *BookmarkService) Toggle(ctx context.Context, principal *auth.Principal, paperID uuid.UUID) (bool, error) {
	var bookmarked bool
	_, err := s.set(ctx, principal, paperID, func(exists bool) bool {
		bookmarked = !exists
		return bookmarked
	})
	if err != nil {
		return false, err
	}
	return bookmarked, nil
}

// set moves the bookmark to the state returned by want, given whether it
// currently exists, and reports whether anything changed.
func (s *BookmarkService) set(ctx context.Context, principal *auth.Principal, paperID uuid.UUID, want func(exists bool) bool) (bool, error) {
	if principal == nil {
		return false, domain.ErrUnauthorized
	}
	userID := principal.UserID

	var changed, added bool
	err := s.uow.Within(ctx, func(repos Repositories) error {
		if _, err := repos.Papers.GetByID(ctx, paperID); err != nil {
			return err
		}
		exists, err := repos.Bookmarks.Exists(ctx, userID, paperID)
		if err != nil {
			return err
		}

		added = want(exists)
		if added {
			changed, err = repos.Bookmarks.Add(ctx, userID, paperID)
		} else {
			changed, err = repos.Bookmarks.Remove(ctx, userID, paperID)
		}
		if err != nil || !changed {
			return err
		}

		return s.emitter.BookmarkChanged(ctx, repos.Outbox, domain.BookmarkPayload{
			PaperID: paperID,
			UserID:  userID,
		}, added)
	})
	if err != nil {
		return false, fmt.Errorf("update bookmark: %w", err)
	}

	if changed {
		s.logger.Debug().
			Str("paper_id", paperID.String()).
			Str("user_id", userID.String()).
			Bool("bookmarked", added).
			Msg("bookmark changed")
	}
	return changed, nil
}
