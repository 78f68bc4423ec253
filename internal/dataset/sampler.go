// Package dataset turns corpus segments into training examples.
//
// A TextSampler draws fixed-length windows at random offsets, a Loader
// groups them into fixed-size batches for one finite pass, and a Cycle
// restarts that pass forever so training can run for any number of steps.
package dataset

import (
	"math/rand/v2"

	"github.com/born-ml/lmharness/internal/errs"
)

// Dataset is an indexed collection of examples.
type Dataset interface {
	// Len returns the number of items in one pass.
	Len() int

	// Get returns item i.
	Get(i int) []byte
}

// TextSampler samples contiguous windows of seqLen+1 bytes from a segment.
//
// Sampling is with replacement: every call draws a fresh start offset, so
// Len only sizes a pass and does not bound how much can be drawn.
type TextSampler struct {
	data   []byte
	seqLen int
	rng    *rand.Rand
}

// NewTextSampler creates a sampler over data.
//
// Returns errs.ErrRange if data is too short to hold two distinct windows
// of seqLen+1 bytes (len(data) <= seqLen+1) or if seqLen is not positive.
func NewTextSampler(data []byte, seqLen int, rng *rand.Rand) (*TextSampler, error) {
	if seqLen <= 0 {
		return nil, errs.Rangef("sequence length must be positive, got %d", seqLen)
	}
	if len(data) <= seqLen+1 {
		return nil, errs.Rangef("segment of %d bytes too short for sequence length %d", len(data), seqLen)
	}
	return &TextSampler{data: data, seqLen: seqLen, rng: rng}, nil
}

// Sample returns a window of seqLen+1 bytes.
//
// The start is uniform over [0, len(data)-seqLen-1). The window aliases the
// segment with its capacity capped, so it must be treated as read-only.
func (s *TextSampler) Sample() []byte {
	start := s.start()
	end := start + s.seqLen + 1
	return s.data[start:end:end]
}

// start draws a window offset.
func (s *TextSampler) start() int {
	return s.rng.IntN(len(s.data) - s.seqLen - 1)
}

// Get ignores i and returns a freshly sampled window.
func (s *TextSampler) Get(int) []byte {
	return s.Sample()
}

// Len returns len(data) / seqLen.
func (s *TextSampler) Len() int {
	return len(s.data) / s.seqLen
}

// SeqLen returns the configured sequence length (window length minus one).
func (s *TextSampler) SeqLen() int {
	return s.seqLen
}
