package catalog

import "github.com/shopspring/decimal"

// Metadata is the display data shown for a catalog item.
type Metadata struct {
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string
	Image       string
}

// Entry is a single catalog item. Immutable after construction.
type Entry struct {
	id       string
	meta     Metadata
	features []float32
}

// NewEntry creates an entry. A nil features slice marks the entry as
// unscoreable; an empty non-nil slice is kept and scores 0.
func NewEntry(id string, meta Metadata, features []float32) Entry {
	return Entry{id: id, meta: meta, features: features}
}

// ID returns the entry identifier.
func (e *Entry) ID() string { return e.id }

// Name returns the display name.
func (e *Entry) Name() string { return e.meta.Name }

// Category returns the item category.
func (e *Entry) Category() string { return e.meta.Category }

// Price returns the item price.
func (e *Entry) Price() decimal.Decimal { return e.meta.Price }

// Description returns the item description.
func (e *Entry) Description() string { return e.meta.Description }

// Image returns the image reference (URL or path).
func (e *Entry) Image() string { return e.meta.Image }

// Metadata returns a copy of the display metadata.
func (e *Entry) Metadata() Metadata { return e.meta }

// Features returns the precomputed feature vector. The slice is shared and
// must not be modified.
func (e *Entry) Features() []float32 { return e.features }

// Scoreable reports whether the entry carries a feature vector.
func (e *Entry) Scoreable() bool { return e.features != nil }
