package frame

import "image"

// maskHeaderBytes approximates the struct and slice header overhead of a Mask.
const maskHeaderBytes = 48

// Mask is a per-pixel class confidence map in [0,1], stored row-major.
type Mask struct {
	Width  int
	Height int
	Conf   []float32
}

// NewMask allocates a zeroed mask of the given size.
func NewMask(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{
		Width:  width,
		Height: height,
		Conf:   make([]float32, width*height),
	}
}

// NewUniformMask allocates a mask with every pixel set to c.
func NewUniformMask(width, height int, c float32) *Mask {
	m := NewMask(width, height)
	for i := range m.Conf {
		m.Conf[i] = c
	}
	return m
}

// FromImage builds a mask from the red channel of img, scaled to [0,1].
func FromImage(img image.Image) (*Mask, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			m.Conf[y*m.Width+x] = float32(r>>8) / 255
		}
	}
	return m, nil
}

// Empty reports whether m carries no pixels.
func (m *Mask) Empty() bool {
	return m == nil || m.Width <= 0 || m.Height <= 0 || len(m.Conf) == 0
}

// Validate checks that the confidence slice matches the dimensions.
func (m *Mask) Validate() error {
	if m.Empty() {
		return ErrEmptyImage
	}
	if len(m.Conf) != m.Width*m.Height {
		return ErrMaskSize
	}
	return nil
}

// Resolution returns the mask size.
func (m *Mask) Resolution() Resolution {
	if m == nil {
		return Resolution{}
	}
	return Resolution{Width: m.Width, Height: m.Height}
}

// At returns the confidence at (x, y), or 0 outside the mask.
func (m *Mask) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Conf[y*m.Width+x]
}

// Clone returns a deep copy of m. Clone of nil is nil.
func (m *Mask) Clone() *Mask {
	if m == nil {
		return nil
	}
	c := &Mask{Width: m.Width, Height: m.Height, Conf: make([]float32, len(m.Conf))}
	copy(c.Conf, m.Conf)
	return c
}

// Bytes estimates the memory held by m.
func (m *Mask) Bytes() int64 {
	if m == nil {
		return 0
	}
	return maskHeaderBytes + int64(cap(m.Conf))*4
}
