package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/reel/pkg/debug"
	"github.com/vanderheijden86/reel/pkg/feed"
	"github.com/vanderheijden86/reel/pkg/version"
)

const (
	defaultListPath    = "/v2/list"
	defaultPageSize    = 30
	defaultHTTPTimeout = 15 * time.Second

	// List responses are small JSON arrays; anything bigger is a broken
	// proxy talking HTML at us.
	maxListBody = 8 << 20
)

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	BaseURL  string
	ListPath string // default /v2/list
	APIKey   string // sent as a bearer token when set
	Query    string // forwarded as the q parameter when set
	PageSize int    // items per upstream page, default 30

	// When both are positive, download URLs are rewritten to the sized
	// variant BaseURL/id/{id}/{w}/{h}. Zero keeps the API's download_url.
	ThumbWidth  int
	ThumbHeight int

	// Client overrides the default 15s-timeout client, mainly for tests.
	Client *http.Client
}

// HTTPSource supplies descriptors from a picsum-style list API. The API is
// page-oriented while Fetch is count-oriented, so the source walks pages of
// a fixed size and stashes the overshoot for the next call.
type HTTPSource struct {
	opts   HTTPOptions
	client *http.Client

	mu    sync.Mutex
	page  int // last page fetched successfully
	stash []feed.Descriptor
}

// NewHTTP creates an HTTP source. BaseURL must be set; everything else has
// defaults.
func NewHTTP(opts HTTPOptions) *HTTPSource {
	if opts.ListPath == "" {
		opts.ListPath = defaultListPath
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPSource{opts: opts, client: client}
}

// Fetch returns up to count descriptors, walking as many upstream pages as
// needed. If a page fails midway, whatever was already collected is
// delivered and the error surfaces on the next call.
func (s *HTTPSource) Fetch(ctx context.Context, count int) ([]feed.Descriptor, error) {
	if count <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Live list endpoints repeat IDs, both inside a page and across page
	// boundaries as the upstream list shifts. Seeding from the stash keeps
	// the stash itself duplicate-free, so one call never hands out the
	// same ID twice.
	seen := make(map[string]struct{}, len(s.stash)+count)
	for _, d := range s.stash {
		seen[d.ID] = struct{}{}
	}

	var out []feed.Descriptor
	if len(s.stash) > 0 {
		k := count
		if k > len(s.stash) {
			k = len(s.stash)
		}
		out = append(out, s.stash[:k]...)
		s.stash = s.stash[k:]
	}

	for len(out) < count {
		items, err := s.fetchPage(ctx, s.page+1)
		if err != nil {
			if len(out) > 0 {
				debug.Log("source: delivering %d items before error: %v", len(out), err)
				return out, nil
			}
			return nil, err
		}
		if len(items) == 0 {
			// Upstream exhausted; a short batch is legal.
			break
		}
		s.page++

		for _, d := range items {
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			if len(out) < count {
				out = append(out, d)
			} else {
				s.stash = append(s.stash, d)
			}
		}
	}

	return out, nil
}

// Close releases idle connections.
func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// listItem matches the picsum /v2/list response shape.
type listItem struct {
	ID          string `json:"id"`
	Author      string `json:"author"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	URL         string `json:"url"`
	DownloadURL string `json:"download_url"`
}

// fetchPage requests one upstream page and maps it to descriptors.
func (s *HTTPSource) fetchPage(ctx context.Context, page int) ([]feed.Descriptor, error) {
	u, err := url.Parse(strings.TrimRight(s.opts.BaseURL, "/") + s.opts.ListPath)
	if err != nil {
		return nil, feed.InvalidRequestError(fmt.Errorf("bad list URL: %w", err))
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(s.opts.PageSize))
	if s.opts.Query != "" {
		q.Set("q", s.opts.Query)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, feed.InvalidRequestError(err)
	}
	req.Header.Set("User-Agent", "reel/"+version.Version)
	req.Header.Set("Accept", "application/json")
	if s.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.opts.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, feed.TransientError(fmt.Errorf("list request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, feed.RateLimitError(fmt.Errorf("list request: %s", resp.Status), retryAfter)

	case resp.StatusCode >= 500:
		return nil, feed.TransientError(fmt.Errorf("list request: %s", resp.Status))

	default:
		return nil, feed.InvalidRequestError(fmt.Errorf("list request: %s", resp.Status))
	}

	var items []listItem
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxListBody))
	if err := dec.Decode(&items); err != nil {
		return nil, feed.TransientError(fmt.Errorf("decoding list response: %w", err))
	}

	descs := make([]feed.Descriptor, 0, len(items))
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		d := feed.Descriptor{
			ID:          it.ID,
			URL:         it.URL,
			DownloadURL: it.DownloadURL,
			Author:      it.Author,
			Width:       it.Width,
			Height:      it.Height,
		}
		if s.opts.ThumbWidth > 0 && s.opts.ThumbHeight > 0 {
			d.DownloadURL = fmt.Sprintf("%s/id/%s/%d/%d",
				strings.TrimRight(s.opts.BaseURL, "/"), it.ID, s.opts.ThumbWidth, s.opts.ThumbHeight)
		}
		descs = append(descs, d)
	}

	debug.Log("source: page %d returned %d items", page, len(descs))
	return descs, nil
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms. Zero means
// the server gave no usable hint.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
