package quality

// history is a fixed-capacity FIFO of Metrics; the oldest record is
// overwritten once the ring is full.
type history struct {
	buf   []Metrics
	start int
	n     int
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = 1
	}
	return &history{buf: make([]Metrics, capacity)}
}

func (h *history) push(m Metrics) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = m
		h.n++
		return
	}
	h.buf[h.start] = m
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) len() int { return h.n }

// last returns up to k most recent records, oldest first.
func (h *history) last(k int) []Metrics {
	if k > h.n {
		k = h.n
	}
	if k <= 0 {
		return nil
	}
	out := make([]Metrics, k)
	first := h.n - k
	for i := 0; i < k; i++ {
		out[i] = h.buf[(h.start+first+i)%len(h.buf)]
	}
	return out
}

func (h *history) newest() (Metrics, bool) {
	if h.n == 0 {
		return Metrics{}, false
	}
	return h.buf[(h.start+h.n-1)%len(h.buf)], true
}
