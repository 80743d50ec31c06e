package render

import (
	"bytes"
	"fmt"
	"image"
	"runtime/debug"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/vanderheijden86/reel/pkg/metrics"
)

// Decode decodes image bytes in any registered format (JPEG, PNG, GIF,
// WebP). Decoders can panic on hostile input, so the whole decode runs
// under a recover and a panic comes back as an error.
func Decode(data []byte) (img image.Image, err error) {
	defer metrics.TimerWithCallback(metrics.ImageDecode, metrics.ImageDecodeDist.Record)()
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("image decode panic: %v\n%s", r, debug.Stack())
		}
	}()

	img, _, err = image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}
