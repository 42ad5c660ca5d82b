package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/paper-sharing-service/internal/domain"
	"github.com/helixir/paper-sharing-service/internal/pdf"
	"github.com/helixir/paper-sharing-service/internal/service"
	"github.com/helixir/paper-sharing-service/internal/storage"
)

// multipartMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const multipartMemory = 8 << 20

type uploadResponse struct {
	Success bool         `json:"success"`
	Paper   domain.Paper `json:"paper"`
	Message string       `json:"message"`
}

type fileUploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Key     string `json:"key"`
	Size    int64  `json:"size"`
}

// uploadPaper handles POST /api/upload.
func (s *Server) uploadPaper(w http.ResponseWriter, r *http.Request) {
	var req domain.UploadInput
	if !decodeJSON(w, r, &req) {
		return
	}

	paper, err := s.deps.Papers.Upload(r.Context(), principal(r), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{
		Success: true,
		Paper:   *paper,
		Message: "Paper uploaded successfully",
	})
}

// uploadPaperFile handles POST /api/upload/file. The form carries the PDF in
// the file part and, optionally, paper metadata as JSON in the metadata
// field. With metadata the paper is created as well.
func (s *Server) uploadPaperFile(w http.ResponseWriter, r *http.Request) {
	// Room for the multipart envelope and the metadata field.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadSize+maxRequestBodySize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File must be at most %d bytes", s.cfg.MaxUploadSize))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A PDF file is required")
		return
	}
	defer func() { _ = file.Close() }()

	upload := service.FileUpload{
		Body:        file,
		Size:        header.Size,
		ContentType: partContentType(header.Header.Get("Content-Type")),
		Filename:    header.Filename,
	}

	raw := r.FormValue("metadata")
	if raw == "" {
		stored, err := s.deps.Papers.UploadFile(r.Context(), principal(r), upload)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, fileUploadResponse{
			Success: true,
			URL:     stored.URL,
			Key:     stored.Key,
			Size:    stored.Size,
		})
		return
	}

	var meta domain.UploadInput
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid metadata JSON")
		return
	}
	paper, err := s.deps.Papers.UploadWithFile(r.Context(), principal(r), upload, meta)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{
		Success: true,
		Paper:   *paper,
		Message: "Paper uploaded successfully",
	})
}

// downloadPDF handles GET /api/papers/download?url=. Hosted PDFs stream from
// the media store; anything else goes through the SSRF-safe downloader.
func (s *Server) downloadPDF(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "PDF URL is required")
		return
	}

	if s.deps.Media != nil {
		if key, ok := s.deps.Media.KeyFromURL(rawURL); ok && storage.ValidKey(key) {
			body, info, err := s.deps.Media.Open(r.Context(), key)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			defer func() { _ = body.Close() }()
			s.streamPDF(w, r, body, info.Size, pdf.FilenameFromURL(rawURL))
			return
		}
	}

	if s.deps.PDFs == nil {
		writeError(w, http.StatusServiceUnavailable, "Service unavailable")
		return
	}
	stream, err := s.deps.PDFs.Open(r.Context(), rawURL)
	if err != nil {
		s.downloadFailed(w, r, err)
		return
	}
	defer func() { _ = stream.Body.Close() }()
	s.streamPDF(w, r, stream.Body, stream.ContentLength, stream.Filename)
}

func (s *Server) streamPDF(w http.ResponseWriter, r *http.Request, body io.Reader, size int64, filename string) {
	if filename == "" {
		filename = pdf.DefaultFilename
	}
	h := w.Header()
	h.Set("Content-Type", storage.ContentTypePDF)
	h.Set("Content-Disposition", `attachment; filename="`+quoteReplacer.Replace(filename)+`"`)
	if size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		logger := s.logger.With().Str("path", r.URL.Path).Logger()
		logger.Warn().Err(err).Msg("PDF stream interrupted")
	}
}

// downloadFailed maps downloader errors to client responses.
func (s *Server) downloadFailed(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pdf.ErrSSRF):
		writeError(w, http.StatusBadRequest, "URL is not allowed")
	case errors.Is(err, pdf.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "PDF is too large")
	case errors.Is(err, pdf.ErrNotPDF):
		writeError(w, http.StatusUnsupportedMediaType, "URL does not point to a PDF")
	case errors.Is(err, pdf.ErrDownloadFailed):
		s.logger.Warn().Err(err).Msg("PDF download failed")
		writeError(w, http.StatusBadGateway, "Failed to download PDF")
	default:
		s.fail(w, r, err)
	}
}

// serveMedia handles GET /api/media/*.
func (s *Server) serveMedia(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if s.deps.Media == nil || !storage.ValidKey(key) {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	body, info, err := s.deps.Media.Open(r.Context(), key)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer func() { _ = body.Close() }()

	h := w.Header()
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	if info.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if info.ETag != "" {
		h.Set("ETag", info.ETag)
	}
	if !info.LastModified.IsZero() {
		h.Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}
	h.Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("media stream interrupted")
	}
}

var quoteReplacer = strings.NewReplacer(`"`, "", `\`, "", "\r", "", "\n", "")

// partContentType strips parameters from a part's Content-Type.
func partContentType(v string) string {
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.TrimSpace(v)
	}
	return mediaType
}
