// Package catalog holds the frozen, in-memory set of items searched by image.
package catalog

import (
	"fmt"

	"github.com/velora/visearch/internal/domain"
)

// Catalog is a read-only snapshot of catalog entries in source order.
// It has no mutation API, so concurrent readers need no locking.
type Catalog struct {
	entries     []Entry
	byID        map[string]int
	dims        int
	unscoreable []string
}

// New builds a catalog from entries, keeping their order.
// IDs must be non-empty and unique.
func New(entries []Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, len(entries)),
		byID:    make(map[string]int, len(entries)),
		dims:    -1,
	}
	copy(c.entries, entries)

	for i := range c.entries {
		e := &c.entries[i]
		if e.ID() == "" {
			return nil, fmt.Errorf("%w: entry #%d has no id", domain.ErrCatalogLoadFailed, i)
		}
		if _, dup := c.byID[e.ID()]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", domain.ErrCatalogLoadFailed, e.ID())
		}
		c.byID[e.ID()] = i

		if !e.Scoreable() {
			c.unscoreable = append(c.unscoreable, e.ID())
			continue
		}
		switch n := len(e.Features()); {
		case c.dims == -1:
			c.dims = n
		case c.dims != n:
			c.dims = 0 // mixed dimensionality
		}
	}
	if c.dims < 0 {
		c.dims = 0
	}

	return c, nil
}

// Entries returns all entries in catalog order, including unscoreable ones.
// The slice is shared and must not be modified.
func (c *Catalog) Entries() []Entry { return c.entries }

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// Get returns the entry with the given id.
func (c *Catalog) Get(id string) (Entry, error) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, fmt.Errorf("catalog entry %q: %w", id, domain.ErrNotFound)
	}
	return c.entries[i], nil
}

// Dimensions returns the dimensionality shared by all scoreable entries,
// or 0 when there are none or they disagree.
func (c *Catalog) Dimensions() int { return c.dims }

// Unscoreable returns the ids of entries without a feature vector.
func (c *Catalog) Unscoreable() []string { return c.unscoreable }
