package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/service"
)

// maxRequestBodySize limits JSON request bodies.
const maxRequestBodySize = 1 << 20

// errorResponse is the body of every error response.
type errorResponse struct {
	Error   string              `json:"error"`
	Details []domain.FieldError `json:"details,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent; an encode error cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

// statusForError returns the HTTP status and client message for err.
func statusForError(err error) (int, errorResponse) {
	var (
		verrs    domain.ValidationErrors
		ve       *domain.ValidationError
		notFound *domain.NotFoundError
		exists   *domain.AlreadyExistsError
	)

	switch {
	case errors.As(err, &verrs):
		return http.StatusBadRequest, errorResponse{Error: "Validation failed", Details: verrs}
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorResponse{Error: ve.Message}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, errorResponse{Error: "Invalid input"}
	case errors.As(err, &notFound):
		return http.StatusNotFound, errorResponse{Error: capitalize(notFound.Entity) + " not found"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "Not found"}
	case errors.As(err, &exists):
		return http.StatusConflict, errorResponse{Error: capitalize(exists.Entity) + " already exists"}
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{Error: "Already exists"}
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: "Invalid credentials"}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Error: "Unauthorized"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "Forbidden"}
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: "Too many requests"}
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: "Service unavailable"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "Internal server error"}
	}
}

// writeDomainError maps err to a status code and writes it. Internal details
// are never sent to the client.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var rl *domain.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
	}
	status, body := statusForError(err)
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON request body of at most maxRequestBodySize bytes
// into v, writing a 400 response on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}
	if len(body) > maxRequestBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON request body")
		return false
	}
	return true
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePageRequest reads the page and limit query parameters.
func parsePageRequest(r *http.Request) (domain.PageRequest, error) {
	q := r.URL.Query()
	page, err := queryInt(q, "page", domain.DefaultPage)
	if err != nil {
		return domain.PageRequest{}, err
	}
	limit, err := queryInt(q, "limit", domain.DefaultLimit)
	if err != nil {
		return domain.PageRequest{}, err
	}
	req, err := domain.NewPageRequest(page, limit)
	return req, paramError(err)
}

// paramError prefixes a query parameter validation message with the
// parameter it concerns.
func paramError(err error) error {
	var ve *domain.ValidationError
	if errors.As(err, &ve) && !strings.HasPrefix(ve.Message, "Invalid ") {
		return domain.NewValidationError(ve.Field, fmt.Sprintf("Invalid %s parameter: %s", ve.Field, ve.Message))
	}
	return err
}

// queryInt parses an optional integer parameter. An absent or empty
// parameter yields def.
func queryInt(q url.Values, name string, def int) (int, error) {
	v := q.Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, domain.NewValidationError(name, fmt.Sprintf("Invalid %s parameter", name))
	}
	return n, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
