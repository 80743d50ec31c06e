package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/reel/pkg/feed"
	"github.com/vanderheijden86/reel/pkg/metrics"
)

// SQLiteReader pages through an images table using keyset pagination on
// rowid, so position survives without holding a server-side cursor.
type SQLiteReader struct {
	db        *sql.DB
	path      string
	query     string
	lastRowID int64
}

// OpenSQLite opens a SQLite catalog for reading.
func OpenSQLite(path, query string) (*SQLiteReader, error) {
	// sql.Open is lazy; stat up front so a bad path fails here, not on the
	// first Next.
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("catalog not readable: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open catalog: %w", err)
	}

	// Read-performance pragmas, best-effort.
	pragmas := []string{
		"PRAGMA cache_size = -64000",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			continue
		}
	}

	return &SQLiteReader{
		db:    db,
		path:  path,
		query: query,
	}, nil
}

// Close closes the database connection.
func (r *SQLiteReader) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Next returns up to n records past the cursor position.
func (r *SQLiteReader) Next(ctx context.Context, n int) ([]feed.Descriptor, error) {
	if n <= 0 {
		return nil, nil
	}
	defer metrics.Timer(metrics.CatalogQuery)()

	q := `
		SELECT rowid, id, author, width, height, url, download_url, tags
		FROM images
		WHERE rowid > ?`
	args := []any{r.lastRowID}
	if r.query != "" {
		q += ` AND tags LIKE ?`
		args = append(args, "%"+strings.ToLower(r.query)+"%")
	}
	q += ` ORDER BY rowid LIMIT ?`
	args = append(args, n)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog query: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{}, n)
	var out []feed.Descriptor
	for rows.Next() {
		// Every catalog column scans as nullable text so a stray value
		// (NULL id, text in a dimension column) cannot fail the scan and
		// strand the cursor on the bad row.
		var (
			rowid                 int64
			id, author, url, dl   sql.NullString
			width, height, tagsJS sql.NullString
		)
		if err := rows.Scan(&rowid, &id, &author, &width, &height, &url, &dl, &tagsJS); err != nil {
			continue
		}
		// Advance the cursor even past rows we skip, so a bad row cannot
		// wedge pagination.
		if rowid > r.lastRowID {
			r.lastRowID = rowid
		}
		if !id.Valid || id.String == "" {
			continue
		}
		if _, dup := seen[id.String]; dup {
			continue
		}
		seen[id.String] = struct{}{}

		d := feed.Descriptor{
			ID:     id.String,
			Width:  dimension(width),
			Height: dimension(height),
		}
		if author.Valid {
			d.Author = author.String
		}
		if url.Valid {
			d.URL = url.String
		}
		if dl.Valid {
			d.DownloadURL = dl.String
		}
		if tagsJS.Valid {
			d.Tags = parseTagsJSON(tagsJS.String)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catalog rows: %w", err)
	}

	return out, nil
}

// Count returns the number of records matching the reader's query.
func (r *SQLiteReader) Count(ctx context.Context) (int, error) {
	q := `SELECT COUNT(*) FROM images`
	args := []any{}
	if r.query != "" {
		q += ` WHERE tags LIKE ?`
		args = append(args, "%"+strings.ToLower(r.query)+"%")
	}
	var count int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// dimension parses a width or height column read as text. Non-numeric or
// negative values collapse to zero, the same as a missing column.
func dimension(v sql.NullString) int {
	if !v.Valid {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.String))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseTagsJSON parses a JSON array of strings, with a lenient fallback for
// hand-edited catalogs.
func parseTagsJSON(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" || s == "[]" {
		return nil
	}

	var result []string
	if err := json.Unmarshal([]byte(s), &result); err != nil {
		s = strings.TrimPrefix(s, "[")
		s = strings.TrimSuffix(s, "]")
		if s == "" {
			return nil
		}
		for _, item := range strings.Split(s, ",") {
			item = strings.TrimSpace(item)
			item = strings.Trim(item, `"`)
			if item != "" {
				result = append(result, item)
			}
		}
	}
	return result
}
