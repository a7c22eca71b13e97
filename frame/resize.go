package frame

import (
	"image"

	"github.com/disintegration/imaging"
)

// Resize scales img to res. When img already has that size it is returned
// unchanged, so callers must not assume the result is a fresh buffer.
func Resize(img image.Image, res Resolution) (image.Image, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if res.IsZero() {
		return nil, ErrInvalidResolution
	}
	if Of(img) == res {
		return img, nil
	}
	return imaging.Resize(img, res.Width, res.Height, imaging.Lanczos), nil
}

// Snapshot returns a deep copy of img that shares no memory with it.
func Snapshot(img image.Image) *image.NRGBA {
	if img == nil {
		return nil
	}
	return imaging.Clone(img)
}
