// Package source provides the supply backends behind the feed engine: a
// picsum-style HTTP list API and local catalogs in SQLite or JSON Lines
// form. All backends implement feed.Source plus Close.
package source

import (
	"fmt"

	"github.com/vanderheijden86/reel/pkg/config"
	"github.com/vanderheijden86/reel/pkg/feed"
)

// Source is a closeable feed source.
type Source interface {
	feed.Source
	Close() error
}

// New builds the source selected by the configuration.
func New(cfg config.SourceConfig) (Source, error) {
	switch cfg.Provider {
	case "http":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("http source requires a base URL")
		}
		return NewHTTP(HTTPOptions{
			BaseURL:     cfg.BaseURL,
			ListPath:    cfg.ListPath,
			APIKey:      cfg.APIKey,
			Query:       cfg.Query,
			PageSize:    cfg.PageSize,
			ThumbWidth:  cfg.ThumbWidth,
			ThumbHeight: cfg.ThumbHeight,
		}), nil

	case "sqlite", "file":
		if cfg.Catalog == "" {
			return nil, fmt.Errorf("%s source requires a catalog path", cfg.Provider)
		}
		return NewCatalog(cfg.Catalog, cfg.Query)

	default:
		return nil, fmt.Errorf("unknown source provider %q", cfg.Provider)
	}
}
