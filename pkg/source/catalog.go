package source

import (
	"context"

	"github.com/vanderheijden86/reel/internal/catalog"
	"github.com/vanderheijden86/reel/pkg/feed"
)

// CatalogSource supplies descriptors from a local catalog file, either
// SQLite or JSON Lines, detected by extension.
type CatalogSource struct {
	reader catalog.Reader
	path   string
}

// NewCatalog opens a catalog-backed source.
func NewCatalog(path, query string) (*CatalogSource, error) {
	r, err := catalog.Open(path, query)
	if err != nil {
		return nil, err
	}
	return &CatalogSource{reader: r, path: path}, nil
}

// Fetch returns up to count descriptors from the catalog cursor. An empty
// batch means the catalog is exhausted.
func (s *CatalogSource) Fetch(ctx context.Context, count int) ([]feed.Descriptor, error) {
	return s.reader.Next(ctx, count)
}

// Close closes the underlying reader.
func (s *CatalogSource) Close() error {
	return s.reader.Close()
}
