package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/service"
)

type papersResponse struct {
	Papers []domain.Paper `json:"papers"`
}

type bookmarkResponse struct {
	Bookmarked bool `json:"bookmarked"`
	Changed    bool `json:"changed"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// listPapers handles GET /api/papers?page&limit&search&sortBy.
func (s *Server) listPapers(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageRequest(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	sort, err := domain.ParseSortOrder(r.URL.Query().Get("sortBy"))
	if err != nil {
		writeDomainError(w, paramError(err))
		return
	}

	result, err := s.deps.Papers.List(r.Context(), domain.PaperFilter{
		Search: r.URL.Query().Get("search"),
		Sort:   sort,
		Page:   page,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// homePapers handles GET /api/papers/home.
func (s *Server) homePapers(w http.ResponseWriter, r *http.Request) {
	papers, err := s.deps.Papers.Home(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, papersResponse{Papers: nonNil(papers)})
}

// searchPapers handles GET /api/papers/search?q=.
func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Search.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("X-Search-Outcome", result.Outcome)
	writeJSON(w, http.StatusOK, papersResponse{Papers: nonNil(result.Papers)})
}

type byNamesFunc func(ctx context.Context, names []string, page domain.PageRequest) (*service.PaperPage, error)

// papersByNames serves the tag, category and author listings. Names come
// from repeated parameters, comma separated lists, or both.
func (s *Server) papersByNames(param string, fn func(*Server) byNamesFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := parsePageRequest(r)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		names := domain.SplitNames(r.URL.Query()[param])

		result, err := fn(s)(r.Context(), names, page)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// papersByTags handles GET /api/papers/tags.
func (s *Server) papersByTags(w http.ResponseWriter, r *http.Request) {
	s.papersByNames("tags", func(s *Server) byNamesFunc { return s.deps.Papers.ByTags })(w, r)
}

// papersByCategories handles GET /api/papers/categories.
func (s *Server) papersByCategories(w http.ResponseWriter, r *http.Request) {
	s.papersByNames("categories", func(s *Server) byNamesFunc { return s.deps.Papers.ByCategories })(w, r)
}

// papersByAuthors handles GET /api/papers/authors.
func (s *Server) papersByAuthors(w http.ResponseWriter, r *http.Request) {
	s.papersByNames("authors", func(s *Server) byNamesFunc { return s.deps.Papers.ByAuthors })(w, r)
}

// papersByUser handles GET /api/papers/user/{userID}.
func (s *Server) papersByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseUUID(w, chi.URLParam(r, "userID"), "userId")
	if !ok {
		return
	}
	page, err := parsePageRequest(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := s.deps.Papers.ByUser(r.Context(), userID, page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// myPapers handles GET /api/papers/user.
func (s *Server) myPapers(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageRequest(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := s.deps.Papers.Mine(r.Context(), principal(r), page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// myBookmarks handles GET /api/papers/bookmarks.
func (s *Server) myBookmarks(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageRequest(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := s.deps.Papers.Bookmarks(r.Context(), principal(r), page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// getPaper handles GET /api/papers/{paperID}.
func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paperId")
	if !ok {
		return
	}

	detail, err := s.deps.Papers.Get(r.Context(), id, principal(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// deletePaper handles DELETE /api/papers/{paperID}.
func (s *Server) deletePaper(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paperId")
	if !ok {
		return
	}

	if err := s.deps.Papers.Delete(r.Context(), principal(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Success: true, Message: "Paper deleted successfully"})
}

// addBookmark handles POST /api/papers/{paperID}/bookmark.
func (s *Server) addBookmark(w http.ResponseWriter, r *http.Request) {
	s.changeBookmark(w, r, func(ctx context.Context, id uuid.UUID) (bool, bool, error) {
		changed, err := s.deps.Bookmarks.Add(ctx, principal(r), id)
		return true, changed, err
	})
}

// removeBookmark handles DELETE /api/papers/{paperID}/bookmark.
func (s *Server) removeBookmark(w http.ResponseWriter, r *http.Request) {
	s.changeBookmark(w, r, func(ctx context.Context, id uuid.UUID) (bool, bool, error) {
		changed, err := s.deps.Bookmarks.Remove(ctx, principal(r), id)
		return false, changed, err
	})
}

// toggleBookmark handles PUT /api/papers/{paperID}/bookmark.
func (s *Server) toggleBookmark(w http.ResponseWriter, r *http.Request) {
	s.changeBookmark(w, r, func(ctx context.Context, id uuid.UUID) (bool, bool, error) {
		state, err := s.deps.Bookmarks.Toggle(ctx, principal(r), id)
		return state, true, err
	})
}

func (s *Server) changeBookmark(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (state, changed bool, err error)) {
	id, ok := parseUUID(w, chi.URLParam(r, "paperID"), "paperId")
	if !ok {
		return
	}

	state, changed, err := fn(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookmarkResponse{Bookmarked: state, Changed: changed})
}

// listCategories handles GET /api/categories.
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.deps.Papers.Categories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Category{"categories": categories})
}

// listTags handles GET /api/tags.
func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.deps.Papers.Tags(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	writeJSON(w, http.StatusOK, map[string][]domain.Tag{"tags": tags})
}

func nonNil(papers []domain.Paper) []domain.Paper {
	if papers == nil {
		return []domain.Paper{}
	}
	return papers
}
