package render

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/vanderheijden86/reel/pkg/version"
)

// MaxImageBytes caps a single download. Anything larger than this is not a
// photo we can show in a terminal tile.
const MaxImageBytes = 32 << 20

const defaultFetchTimeout = 30 * time.Second

// Loader downloads image bytes for tiles. URLs may be http(s), file://, or
// plain filesystem paths.
type Loader struct {
	client   *http.Client
	maxBytes int64
}

// NewLoader creates a loader with a 30s-timeout client.
func NewLoader() *Loader {
	return &Loader{
		client:   &http.Client{Timeout: defaultFetchTimeout},
		maxBytes: MaxImageBytes,
	}
}

// NewLoaderWithClient creates a loader using the given client, mainly for
// tests.
func NewLoaderWithClient(client *http.Client) *Loader {
	return &Loader{client: client, maxBytes: MaxImageBytes}
}

// Load fetches the raw bytes behind rawURL.
func (l *Loader) Load(ctx context.Context, rawURL string) ([]byte, error) {
	switch {
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		return l.loadHTTP(ctx, rawURL)
	case strings.HasPrefix(rawURL, "file://"):
		return l.loadFile(strings.TrimPrefix(rawURL, "file://"))
	default:
		return l.loadFile(rawURL)
	}
}

func (l *Loader) loadHTTP(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	req.Header.Set("User-Agent", "reel/"+version.Version)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image request: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image body: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", l.maxBytes)
	}
	return data, nil
}

func (l *Loader) loadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("image file: %w", err)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", l.maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("image file: %w", err)
	}
	return data, nil
}
