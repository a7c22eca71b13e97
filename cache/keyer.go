package cache

import (
	"image"

	"github.com/jonwraymond/inferops/frame"
)

// Keyer derives cache keys from frames.
//
// Contract:
// - Determinism: equal frames must produce equal keys.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(img image.Image) (frame.Key, error)
}

// FingerprintKeyer keys frames by frame.Fingerprint.
type FingerprintKeyer struct{}

// Key returns the fingerprint of img.
func (FingerprintKeyer) Key(img image.Image) (frame.Key, error) {
	return frame.Fingerprint(img)
}

// KeyerFunc adapts a function to the Keyer interface.
type KeyerFunc func(img image.Image) (frame.Key, error)

// Key calls f(img).
func (f KeyerFunc) Key(img image.Image) (frame.Key, error) {
	return f(img)
}

var (
	_ Keyer = FingerprintKeyer{}
	_ Keyer = KeyerFunc(nil)
)
