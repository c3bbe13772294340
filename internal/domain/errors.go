package domain

import "errors"

var (
	// ErrNoFileProvided signals a search request without image bytes.
	ErrNoFileProvided = errors.New("no file provided")
	// ErrFeatureExtractionFailed signals an extractor failure or timeout.
	ErrFeatureExtractionFailed = errors.New("feature extraction failed")
	// ErrEmptyFeatures signals that extraction succeeded but returned no dimensions.
	ErrEmptyFeatures = errors.New("no features returned from feature extraction")
	// ErrCatalogLoadFailed signals an unreadable or unparsable catalog source.
	ErrCatalogLoadFailed = errors.New("catalog load failed")
	// ErrInvalidVector signals a vector pair that cannot be compared.
	ErrInvalidVector = errors.New("invalid feature vector")
	// ErrInvalidMatchRequest signals an out-of-range threshold or topK.
	ErrInvalidMatchRequest = errors.New("invalid match request")
	// ErrNotFound signals a missing catalog entry.
	ErrNotFound = errors.New("not found")
)
