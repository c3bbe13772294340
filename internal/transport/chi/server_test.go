package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/velora/visearch/internal/domain"
	"github.com/velora/visearch/internal/domain/catalog"
	"github.com/velora/visearch/internal/domain/match"
	"github.com/velora/visearch/internal/metrics"
	healthuc "github.com/velora/visearch/internal/usecase/health"
	searchuc "github.com/velora/visearch/internal/usecase/search"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

// --- Test doubles ---

type stubExtractor struct {
	features domain.Features
	err      error
	healthy  error
	got      domain.Image
}

func (s *stubExtractor) Extract(_ context.Context, img domain.Image) (domain.Features, error) {
	s.got = img
	return s.features, s.err
}

func (s *stubExtractor) HealthCheck(_ context.Context) error { return s.healthy }

// --- Helpers ---

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	mk := func(id, name, price string, f []float32) catalog.Entry {
		return catalog.NewEntry(id, catalog.Metadata{
			Name:        name,
			Category:    "rings",
			Price:       decimal.RequireFromString(price),
			Description: name + " description",
			Image:       "/images/" + id + ".jpg",
		}, f)
	}
	cat, err := catalog.New([]catalog.Entry{
		mk("1", "Gold Ring", "199.99", []float32{1, 0}),
		mk("2", "Silver Ring", "49", []float32{0, 1}),
		mk("3", "Pearl Ring", "120.5", nil),
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func newTestHandler(t *testing.T, ext *stubExtractor, maxUpload int64, origins ...string) http.Handler {
	t.Helper()
	cat := testCatalog(t)
	svc := searchuc.New(ext, match.New(zap.NewNop()), cat, domain.DefaultMatchConfig(), zap.NewNop())
	health := healthuc.New(cat, ext, nil)
	srv := NewServer(svc, health, maxUpload, zap.NewNop())
	return NewRouter(srv, RouterConfig{AllowedOrigins: origins}, zap.NewNop())
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(data)
	} else {
		mw.WriteField("note", "no image here")
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func doSearch(t *testing.T, h http.Handler, field string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, "ring.jpg", data)
	req := httptest.NewRequest(http.MethodPost, "/search", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

// --- POST /search ---

func TestSearch_Success(t *testing.T) {
	ext := &stubExtractor{features: domain.Features{Vector: []float32{1, 0.1}}}
	h := newTestHandler(t, ext, 1<<20)

	rec := doSearch(t, h, "image", []byte("jpeg-bytes"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SearchID == "" || rec.Header().Get("X-Search-ID") != resp.SearchID {
		t.Errorf("search id missing or not echoed: body=%q header=%q", resp.SearchID, rec.Header().Get("X-Search-ID"))
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "1" {
		t.Fatalf("expected only item 1, got %+v", resp.Results)
	}
	if resp.Results[0].Price.String() != "199.99" {
		t.Errorf("unexpected price %q", resp.Results[0].Price)
	}
	if resp.Results[0].Similarity < 99 {
		t.Errorf("unexpected similarity %v", resp.Results[0].Similarity)
	}
	if string(ext.got.Data) != "jpeg-bytes" || ext.got.Filename != "ring.jpg" {
		t.Errorf("extractor got unexpected image %+v", ext.got)
	}
	if strings.Contains(rec.Body.String(), "features") {
		t.Error("response must not include feature vectors")
	}
}

func TestSearch_PriceIsJSONNumber(t *testing.T) {
	ext := &stubExtractor{features: domain.Features{Vector: []float32{1, 0}}}
	rec := doSearch(t, newTestHandler(t, ext, 0), "image", []byte("x"))

	if !strings.Contains(rec.Body.String(), `"price":199.99`) {
		t.Errorf("expected numeric price in %s", rec.Body.String())
	}
}

func TestSearch_EmptyResultsIsArray(t *testing.T) {
	ext := &stubExtractor{features: domain.Features{Vector: []float32{-1, -1}}}
	rec := doSearch(t, newTestHandler(t, ext, 0), "image", []byte("x"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"results":[]`) {
		t.Errorf("expected empty array, got %s", rec.Body.String())
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		ext      *stubExtractor
		field    string
		data     []byte
		status   int
		code     ErrorCode
		contains string
	}{
		{
			name:   "missing image field",
			ext:    &stubExtractor{},
			field:  "",
			status: http.StatusBadRequest,
			code:   ErrorCodeNoFileProvided,
		},
		{
			name:   "wrong field name",
			ext:    &stubExtractor{},
			field:  "file",
			data:   []byte("x"),
			status: http.StatusBadRequest,
			code:   ErrorCodeNoFileProvided,
		},
		{
			name:   "empty upload",
			ext:    &stubExtractor{},
			field:  "image",
			data:   []byte{},
			status: http.StatusBadRequest,
			code:   ErrorCodeNoFileProvided,
		},
		{
			name:     "extraction failure",
			ext:      &stubExtractor{err: errors.New("cannot identify image file")},
			field:    "image",
			data:     []byte("x"),
			status:   http.StatusBadGateway,
			code:     ErrorCodeFeatureExtractionFailed,
			contains: "cannot identify image file",
		},
		{
			name:   "empty features",
			ext:    &stubExtractor{features: domain.Features{Vector: []float32{}}},
			field:  "image",
			data:   []byte("x"),
			status: http.StatusBadGateway,
			code:   ErrorCodeEmptyFeatures,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doSearch(t, newTestHandler(t, tt.ext, 1<<20), tt.field, tt.data)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			e := decodeError(t, rec)
			if e.Code != tt.code {
				t.Errorf("expected code %q, got %q", tt.code, e.Code)
			}
			if tt.contains != "" && !strings.Contains(e.Message, tt.contains) {
				t.Errorf("expected message to contain %q, got %q", tt.contains, e.Message)
			}
		})
	}
}

func TestSearch_NotMultipart(t *testing.T) {
	h := newTestHandler(t, &stubExtractor{}, 0)
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"image":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != ErrorCodeNoFileProvided {
		t.Errorf("unexpected code %q", e.Code)
	}
}

func TestSearch_UploadTooLarge(t *testing.T) {
	ext := &stubExtractor{features: domain.Features{Vector: []float32{1, 0}}}
	h := newTestHandler(t, ext, 1024)

	rec := doSearch(t, h, "image", bytes.Repeat([]byte("a"), 4096))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
	if e := decodeError(t, rec); e.Code != ErrorCodeUploadTooLarge {
		t.Errorf("unexpected code %q", e.Code)
	}
}

// --- GET /catalog ---

func TestListCatalog(t *testing.T) {
	h := newTestHandler(t, &stubExtractor{}, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp CatalogResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 3 || resp.Unscoreable != 1 || resp.Dimensions != 2 {
		t.Errorf("unexpected summary %+v", resp)
	}
	order := []string{resp.Items[0].ID, resp.Items[1].ID, resp.Items[2].ID}
	if strings.Join(order, ",") != "1,2,3" {
		t.Errorf("expected catalog order, got %v", order)
	}
	if resp.Items[2].Scoreable {
		t.Error("item 3 has no features and must not be scoreable")
	}
}

func TestGetCatalogItem(t *testing.T) {
	h := newTestHandler(t, &stubExtractor{}, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var item CatalogItem
	if err := json.NewDecoder(rec.Body).Decode(&item); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Name != "Silver Ring" || !item.Scoreable {
		t.Errorf("unexpected item %+v", item)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/404", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != ErrorCodeNotFound {
		t.Errorf("unexpected code %q", e.Code)
	}
}

// --- GET /health, /metrics ---

func TestHealthCheck(t *testing.T) {
	ext := &stubExtractor{}
	h := newTestHandler(t, ext, 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != healthuc.Healthy || resp.Catalog.Entries != 3 {
		t.Errorf("unexpected health %+v", resp)
	}

	ext.healthy = errors.New("model server down")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t, &stubExtractor{}, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "visearch_") {
		t.Error("expected visearch metrics in exposition")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHandler(t, &stubExtractor{}, 0)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON 404, got %q", ct)
	}
}

// --- Middleware ---

func TestCORS(t *testing.T) {
	const origin = "https://shop.example.com"
	h := newTestHandler(t, &stubExtractor{}, 0, origin)

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
		t.Errorf("expected allowed origin %q, got %q", origin, got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials allowed")
	}

	req = httptest.NewRequest(http.MethodGet, "/catalog", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow-origin %q for foreign origin", got)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != ErrorCodeInternalError {
		t.Errorf("unexpected code %q", e.Code)
	}
}

func TestWideEventMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := wideEventMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(searchIDHeader, "sid-1")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog", nil))

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 canonical line, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("unexpected status field %v", fields["status"])
	}
	if fields["search_id"] != "sid-1" {
		t.Errorf("unexpected search_id field %v", fields["search_id"])
	}
}
