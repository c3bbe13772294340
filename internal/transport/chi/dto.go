package chi

import (
	"encoding/json"

	"github.com/velora/visearch/internal/domain/catalog"
	"github.com/velora/visearch/internal/domain/match"
	healthuc "github.com/velora/visearch/internal/usecase/health"
)

// ErrorCode is the machine-readable error code in error responses.
type ErrorCode string

// Error codes returned by the API.
const (
	ErrorCodeNoFileProvided          ErrorCode = "no_file_provided"
	ErrorCodeUploadTooLarge          ErrorCode = "upload_too_large"
	ErrorCodeFeatureExtractionFailed ErrorCode = "feature_extraction_failed"
	ErrorCodeEmptyFeatures           ErrorCode = "empty_features"
	ErrorCodeNotFound                ErrorCode = "not_found"
	ErrorCodeBadRequest              ErrorCode = "bad_request"
	ErrorCodeInternalError           ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Item is a catalog entry as exposed over HTTP. Feature vectors are never sent.
type Item struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Price       json.Number `json:"price"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
}

// SearchResultItem is a ranked match.
type SearchResultItem struct {
	Item
	Similarity float64 `json:"similarity"`
}

// SearchResponse is the body of POST /search.
type SearchResponse struct {
	SearchID string             `json:"search_id"`
	Results  []SearchResultItem `json:"results"`
}

// CatalogItem is an entry in GET /catalog responses.
type CatalogItem struct {
	Item
	Scoreable bool `json:"scoreable"`
}

// CatalogResponse is the body of GET /catalog.
type CatalogResponse struct {
	Items       []CatalogItem `json:"items"`
	Total       int           `json:"total"`
	Unscoreable int           `json:"unscoreable"`
	Dimensions  int           `json:"dimensions"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  healthuc.Status                 `json:"status"`
	Checks  map[string]healthuc.CheckResult `json:"checks"`
	Catalog struct {
		Entries     int `json:"entries"`
		Unscoreable int `json:"unscoreable"`
	} `json:"catalog"`
	Version string `json:"version"`
}

func itemFromEntry(e *catalog.Entry) Item {
	return Item{
		ID:          e.ID(),
		Name:        e.Name(),
		Category:    e.Category(),
		Price:       json.Number(e.Price().String()),
		Description: e.Description(),
		Image:       e.Image(),
	}
}

func searchResultsToDTO(scored []match.Scored) []SearchResultItem {
	items := make([]SearchResultItem, len(scored))
	for i := range scored {
		items[i] = SearchResultItem{
			Item:       itemFromEntry(&scored[i].Entry),
			Similarity: scored[i].Similarity,
		}
	}
	return items
}

func catalogItemFromEntry(e *catalog.Entry) CatalogItem {
	return CatalogItem{Item: itemFromEntry(e), Scoreable: e.Scoreable()}
}
