package frame

import (
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Resolution is a processing size in pixels.
type Resolution struct {
	Width  int
	Height int
}

// Of returns the resolution of img. A nil image yields the zero Resolution.
func Of(img image.Image) Resolution {
	if img == nil {
		return Resolution{}
	}
	b := img.Bounds()
	return Resolution{Width: b.Dx(), Height: b.Dy()}
}

// IsZero reports whether r has no area.
func (r Resolution) IsZero() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Pixels returns Width*Height.
func (r Resolution) Pixels() int {
	if r.IsZero() {
		return 0
	}
	return r.Width * r.Height
}

// String renders r as WxH.
func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// ParseResolution parses the WxH form produced by String.
func ParseResolution(s string) (Resolution, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	r := Resolution{Width: width, Height: height}
	if r.IsZero() {
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Resolution) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Resolution) UnmarshalText(text []byte) error {
	parsed, err := ParseResolution(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
