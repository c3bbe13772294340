package domain

import "context"

// Image is an uploaded query image.
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Features is the result of a single extraction call.
type Features struct {
	Vector []float32
	Model  string
	Cached bool
}

// Extractor turns raw image bytes into a feature vector.
// Implementations block on I/O and must honour ctx cancellation.
type Extractor interface {
	Extract(ctx context.Context, img Image) (Features, error)
}

// HealthChecker verifies extractor availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
