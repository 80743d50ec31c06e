package feed

// Descriptor identifies one image in the stream. The engine treats it as an
// opaque value with identity; only sources and sinks care about the rest.
type Descriptor struct {
	// ID is the stable unique identifier within a source. Never empty.
	ID string `json:"id"`
	// URL is the canonical page or reference URL for the image.
	URL string `json:"url,omitempty"`
	// DownloadURL points at the raw image bytes. May be an http(s) URL or a
	// local file path depending on the source backend.
	DownloadURL string `json:"download_url,omitempty"`
	// Author is the attribution line shown under the tile.
	Author string `json:"author,omitempty"`
	// Width and Height are the full-resolution pixel dimensions, when the
	// source knows them. Zero means unknown.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// Tags are free-form labels used for query filtering by catalog sources.
	Tags []string `json:"tags,omitempty"`
}

// AspectRatio returns width/height, or 0 when dimensions are unknown.
func (d Descriptor) AspectRatio() float64 {
	if d.Width <= 0 || d.Height <= 0 {
		return 0
	}
	return float64(d.Width) / float64(d.Height)
}
