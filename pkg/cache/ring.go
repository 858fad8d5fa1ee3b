package cache

// ring is a fixed-capacity circular buffer of metric samples backing one
// sparkline. Capacity is set at construction and never changes: chart width
// is a presentation contract. Not locked internally; the owning cache's
// lock covers all access.
type ring struct {
	buf  []float64
	head int
	size int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity)}
}

// push appends v, evicting the oldest sample once the buffer is full.
func (r *ring) push(v float64) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// values returns the stored samples oldest-first in a fresh slice, so chart
// consumers render the most recent sample last and can never mutate cache
// state through the result.
func (r *ring) values() []float64 {
	out := make([]float64, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}
