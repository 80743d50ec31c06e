package render

import (
	"image"

	"golang.org/x/image/draw"
)

// Cover scales src to exactly w x h, cropping the longer dimension around
// the center so the result is filled without letterboxing. CatmullRom is
// the slowest stdlib-adjacent scaler but tiles are tiny and downscaling
// quality dominates how the art reads.
func Cover(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 {
		return dst
	}

	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 {
		return dst
	}

	// Pick the centered source window with the destination's aspect ratio.
	srcRect := sb
	if sw*h > w*sh {
		// Source is wider: crop left and right.
		cropW := sh * w / h
		x0 := sb.Min.X + (sw-cropW)/2
		srcRect = image.Rect(x0, sb.Min.Y, x0+cropW, sb.Max.Y)
	} else if sw*h < w*sh {
		// Source is taller: crop top and bottom.
		cropH := sw * h / w
		y0 := sb.Min.Y + (sh-cropH)/2
		srcRect = image.Rect(sb.Min.X, y0, sb.Max.X, y0+cropH)
	}

	draw.CatmullRom.Scale(dst, dst.Bounds(), src, srcRect, draw.Src, nil)
	return dst
}

// Fit scales src down to fit within maxW x maxH, preserving aspect ratio
// and never upscaling. The UI caches the fitted copy so a full-resolution
// decode is not pinned in memory for every mounted tile.
func Fit(src image.Image, maxW, maxH int) *image.RGBA {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 || maxW <= 0 || maxH <= 0 {
		return image.NewRGBA(image.Rect(0, 0, 0, 0))
	}

	w, h := sw, sh
	if w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if h > maxH {
		w = w * maxH / h
		h = maxH
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
	return dst
}
