package audio

import "sync"

// Buffer keeps the most recent samples up to a fixed limit.
type Buffer struct {
	mu      sync.Mutex
	samples []float32
	limit   int
}

// NewBuffer returns a buffer that retains at most limit samples.
func NewBuffer(limit int) *Buffer {
	if limit < 1 {
		limit = 1
	}
	return &Buffer{limit: limit}
}

// Append adds samples, discarding the oldest ones beyond the limit.
func (b *Buffer) Append(samples []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, samples...)
	if over := len(b.samples) - b.limit; over > 0 {
		b.samples = append(b.samples[:0], b.samples[over:]...)
	}
}

// Snapshot returns a copy of the retained samples.
func (b *Buffer) Snapshot() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]float32(nil), b.samples...)
}

// Len is the number of retained samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Reset drops all samples.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.samples = b.samples[:0]
	b.mu.Unlock()
}
