package frame

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"
)

// SampleStride is the pixel stride used when sampling an image for its
// fingerprint: every SampleStride-th pixel in row-major order contributes.
const SampleStride = 100

// Key is an opaque fingerprint of an image.
type Key string

// Fingerprint derives a deterministic key from the dimensions of img and a
// fixed-stride sample of its RGB values. Images with equal dimensions and equal
// sampled pixels produce equal keys; different images may collide, which
// callers treat as a match.
//
// Format: frame:<hash>, where hash is the first 16 hex characters of
// SHA-256 over the canonical sample.
func Fingerprint(img image.Image) (Key, error) {
	if img == nil || img.Bounds().Empty() {
		return "", ErrEmptyImage
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	total := w * h

	buf := make([]byte, 8, 8+3*(total/SampleStride+1))
	binary.BigEndian.PutUint32(buf[0:4], uint32(w))
	binary.BigEndian.PutUint32(buf[4:8], uint32(h))

	switch src := img.(type) {
	case *image.NRGBA:
		buf = samplePix(buf, src.Pix, src.Stride, w, total)
	case *image.RGBA:
		buf = samplePix(buf, src.Pix, src.Stride, w, total)
	default:
		for i := 0; i < total; i += SampleStride {
			r, g, bl, _ := img.At(b.Min.X+i%w, b.Min.Y+i/w).RGBA()
			buf = append(buf, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}

	sum := sha256.Sum256(buf)
	return Key("frame:" + hex.EncodeToString(sum[:8])), nil
}

func samplePix(buf, pix []byte, stride, w, total int) []byte {
	for i := 0; i < total; i += SampleStride {
		off := (i/w)*stride + (i%w)*4
		buf = append(buf, pix[off], pix[off+1], pix[off+2])
	}
	return buf
}
