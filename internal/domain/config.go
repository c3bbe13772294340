package domain

import "time"

// MatchConfig holds the ranking defaults applied to every search.
type MatchConfig struct {
	Threshold      float64
	TopK           int
	ExtractTimeout time.Duration
}

// DefaultMatchConfig returns the defaults: 70% similarity, top 5, 30s extraction budget.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Threshold:      0.7,
		TopK:           5,
		ExtractTimeout: 30 * time.Second,
	}
}
