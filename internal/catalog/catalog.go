// Package catalog reads image catalogs from local storage. Two formats are
// supported: a SQLite database with an images table, and JSON Lines with one
// image record per line. Both readers present a forward-only cursor so the
// supply layer can page through a catalog of any size.
package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/reel/pkg/feed"
)

// Kind identifies a catalog storage format.
type Kind int

const (
	KindUnknown Kind = iota
	KindSQLite
	KindJSONL
)

func (k Kind) String() string {
	switch k {
	case KindSQLite:
		return "sqlite"
	case KindJSONL:
		return "jsonl"
	default:
		return "unknown"
	}
}

// Reader is a forward-only cursor over catalog records. Next returns up to n
// descriptors; an empty batch with a nil error means the catalog is
// exhausted.
type Reader interface {
	Next(ctx context.Context, n int) ([]feed.Descriptor, error)
	Close() error
}

// DetectKind classifies a catalog path by extension.
func DetectKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	case ".jsonl":
		return KindJSONL
	default:
		return KindUnknown
	}
}

// Open opens a catalog reader for the given path, dispatching on the file
// extension. query optionally restricts results to records whose tags
// contain it (case-insensitive).
func Open(path, query string) (Reader, error) {
	switch DetectKind(path) {
	case KindSQLite:
		return OpenSQLite(path, query)
	case KindJSONL:
		return OpenJSONL(path, query)
	default:
		return nil, fmt.Errorf("unrecognized catalog format: %s", path)
	}
}
