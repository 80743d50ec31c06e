package catalog

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/reel/pkg/feed"
)

// DefaultMaxLineBytes is the largest catalog line Next will accept. Image
// records are small; anything past this is treated as corrupt and skipped.
const DefaultMaxLineBytes = 1024 * 1024

// readBufBytes is the chunk size for the underlying reader. Lines longer
// than this are accumulated across reads up to DefaultMaxLineBytes.
const readBufBytes = 64 * 1024

// JSONLReader pages through a JSON Lines catalog, one image record per
// line. The file stays open between Next calls so position is preserved,
// and reaching the end is not terminal: a later Next re-reads the file, so
// lines appended by another process show up in later batches. A trailing
// line without its newline yet is held until the writer finishes it.
type JSONLReader struct {
	f     *os.File
	r     *bufio.Reader
	query string
	warn  func(string)

	lineNum    int
	partial    []byte // unterminated tail already consumed from the file
	discarding bool   // inside an over-long line, dropping until newline
}

// OpenJSONL opens a JSON Lines catalog for reading. Parse warnings go to
// stderr unless REEL_ROBOT=1, matching the headless mode contract of
// keeping stdout/stderr machine-clean.
func OpenJSONL(path, query string) (*JSONLReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open catalog: %w", err)
	}

	warn := func(msg string) {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
	}
	if os.Getenv("REEL_ROBOT") == "1" {
		warn = func(string) {}
	}

	return &JSONLReader{
		f:     f,
		r:     bufio.NewReaderSize(f, readBufBytes),
		query: query,
		warn:  warn,
	}, nil
}

// SetWarningHandler replaces the parse-warning callback.
func (r *JSONLReader) SetWarningHandler(fn func(string)) {
	if fn == nil {
		fn = func(string) {}
	}
	r.warn = fn
}

// Close closes the underlying file.
func (r *JSONLReader) Close() error {
	return r.f.Close()
}

// Next returns up to n records, stopping early at the current end of the
// file. Malformed and over-long lines are skipped with a warning; empty
// lines are ignored.
func (r *JSONLReader) Next(ctx context.Context, n int) ([]feed.Descriptor, error) {
	if n <= 0 {
		return nil, nil
	}

	// Hand-edited catalogs repeat lines; one batch never carries the same
	// ID twice.
	seen := make(map[string]struct{}, n)
	keep := func(d feed.Descriptor) bool {
		if _, dup := seen[d.ID]; dup {
			return false
		}
		if !matchesQuery(d, r.query) {
			return false
		}
		seen[d.ID] = struct{}{}
		return true
	}

	var out []feed.Descriptor
	for len(out) < n {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		chunk, err := r.r.ReadSlice('\n')
		if err != nil && err != bufio.ErrBufferFull && err != io.EOF {
			return out, fmt.Errorf("reading catalog at line %d: %w", r.lineNum+1, err)
		}
		// ReadSlice only returns nil error once the newline is in hand.
		terminated := err == nil
		atEOF := err == io.EOF

		if r.discarding {
			if terminated {
				r.discarding = false
				r.lineNum++
			}
			if atEOF {
				return out, nil
			}
			continue
		}

		r.partial = append(r.partial, chunk...)
		if len(r.partial) > DefaultMaxLineBytes {
			r.warn(fmt.Sprintf("skipping line %d: line too long (exceeds %d bytes)", r.lineNum+1, DefaultMaxLineBytes))
			r.partial = r.partial[:0]
			if terminated {
				r.lineNum++
			} else {
				r.discarding = true
			}
			if atEOF {
				return out, nil
			}
			continue
		}

		if !terminated {
			if atEOF {
				if d, ok := r.parseTail(); ok && keep(d) {
					out = append(out, d)
				}
				return out, nil
			}
			continue // buffer-full mid-line, keep accumulating
		}

		if d, ok := r.parseLine(r.takeLine()); ok && keep(d) {
			out = append(out, d)
		}
	}

	return out, nil
}

// takeLine consumes the accumulated line, stripping the terminator and a
// first-line BOM.
func (r *JSONLReader) takeLine() []byte {
	line := r.partial
	r.partial = r.partial[:0]
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	r.lineNum++
	if r.lineNum == 1 {
		line = stripBOM(line)
	}
	return line
}

// parseLine decodes one complete line, warning on malformed or id-less
// records.
func (r *JSONLReader) parseLine(line []byte) (feed.Descriptor, bool) {
	if len(line) == 0 {
		return feed.Descriptor{}, false
	}
	var d feed.Descriptor
	if err := json.Unmarshal(line, &d); err != nil {
		r.warn(fmt.Sprintf("skipping malformed record on line %d: %v", r.lineNum, err))
		return feed.Descriptor{}, false
	}
	if d.ID == "" {
		r.warn(fmt.Sprintf("skipping record without id on line %d", r.lineNum))
		return feed.Descriptor{}, false
	}
	return d, true
}

// parseTail tries to read the unterminated tail as a record. A catalog that
// simply ends without a trailing newline still yields its last record; a
// line truncated by a writer mid-append fails to parse and stays held until
// more bytes arrive. No warning either way, since the line may legitimately
// complete later.
func (r *JSONLReader) parseTail() (feed.Descriptor, bool) {
	line := r.partial
	if r.lineNum == 0 {
		line = stripBOM(line)
	}
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	if len(bytes.TrimSpace(line)) == 0 {
		return feed.Descriptor{}, false
	}
	var d feed.Descriptor
	if err := json.Unmarshal(line, &d); err != nil || d.ID == "" {
		return feed.Descriptor{}, false
	}
	r.partial = r.partial[:0]
	r.lineNum++
	return d, true
}

// matchesQuery reports whether any tag contains the query,
// case-insensitively. An empty query matches everything.
func matchesQuery(d feed.Descriptor, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	for _, tag := range d.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// stripBOM removes the UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
