package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/velora/visearch/internal/domain"
	"github.com/velora/visearch/internal/logger"
	healthuc "github.com/velora/visearch/internal/usecase/health"
	searchuc "github.com/velora/visearch/internal/usecase/search"
	"github.com/velora/visearch/internal/version"
)

const (
	// imageField is the multipart form field carrying the upload.
	imageField = "image"
	// multipartMemory is how much of a form is kept in memory before spilling to temp files.
	multipartMemory = 8 << 20
	// searchIDHeader echoes the search id to the client.
	searchIDHeader = "X-Search-ID"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the HTTP API.
type Server struct {
	search         *searchuc.Service
	health         *healthuc.Service
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. maxUploadBytes <= 0 disables the limit.
func NewServer(
	search *searchuc.Service,
	health *healthuc.Service,
	maxUploadBytes int64,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:         search,
		health:         health,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
	s.errorHandlers = []errorHandler{
		uploadTooLargeHandler,
		sentinelHandler(domain.ErrNoFileProvided, http.StatusBadRequest, ErrorCodeNoFileProvided, false),
		sentinelHandler(domain.ErrEmptyFeatures, http.StatusBadGateway, ErrorCodeEmptyFeatures, false),
		sentinelHandler(domain.ErrFeatureExtractionFailed,
			http.StatusBadGateway, ErrorCodeFeatureExtractionFailed, true),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound, false),
		sentinelHandler(domain.ErrInvalidMatchRequest, http.StatusBadRequest, ErrorCodeBadRequest, true),
	}
	return s
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/search", s.Search)
	r.Get("/catalog", s.ListCatalog)
	r.Get("/catalog/{id}", s.GetCatalogItem)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /search (multipart, field "image").
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	img, err := s.readUpload(w, r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	id := searchuc.IDFromContext(r.Context())
	ctx := searchuc.ContextWithID(r.Context(), id)
	w.Header().Set(searchIDHeader, id)

	results, err := s.search.Search(ctx, img)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		SearchID: id,
		Results:  searchResultsToDTO(results),
	})
}

// readUpload parses the multipart form and returns the "image" part.
// Temp files spilled by the parser are removed before returning.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (domain.Image, error) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Image{}, err
		}
		return domain.Image{}, domain.ErrNoFileProvided
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.FromContext(r.Context(), s.logger).Warn("Failed to remove multipart temp files", zap.Error(err))
		}
	}()

	file, hdr, err := r.FormFile(imageField)
	if err != nil {
		return domain.Image{}, domain.ErrNoFileProvided
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return domain.Image{}, err
	}

	return domain.Image{
		Data:        data,
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
	}, nil
}

// ListCatalog handles GET /catalog.
func (s *Server) ListCatalog(w http.ResponseWriter, _ *http.Request) {
	cat := s.search.Catalog()
	entries := cat.Entries()

	items := make([]CatalogItem, len(entries))
	for i := range entries {
		items[i] = catalogItemFromEntry(&entries[i])
	}

	writeJSON(w, http.StatusOK, CatalogResponse{
		Items:       items,
		Total:       cat.Len(),
		Unscoreable: len(cat.Unscoreable()),
		Dimensions:  cat.Dimensions(),
	})
}

// GetCatalogItem handles GET /catalog/{id}.
func (s *Server) GetCatalogItem(w http.ResponseWriter, r *http.Request) {
	e, err := s.search.Catalog().Get(chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalogItemFromEntry(&e))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	resp := HealthResponse{
		Status:  report.Status,
		Checks:  report.Checks,
		Version: version.String(),
	}
	resp.Catalog.Entries = report.Catalog.Entries
	resp.Catalog.Unscoreable = report.Catalog.Unscoreable

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// With detail set the full wrapped message is sent, otherwise only the sentinel text.
func sentinelHandler(sentinel error, status int, code ErrorCode, detail bool) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if detail {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

func uploadTooLargeHandler(w http.ResponseWriter, err error) bool {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return false
	}
	writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeUploadTooLarge, "upload exceeds the size limit")
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
