package dataset

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/lmharness/internal/corpus"
	"github.com/born-ml/lmharness/internal/errs"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0)) //nolint:gosec // deterministic test data
}

func randomBytes(n int, seed uint64) []byte {
	rng := newRand(seed)
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(rng.UintN(256))
	}
	return data
}

func TestTextSamplerWindows(t *testing.T) {
	data := randomBytes(300, 1)
	for _, seqLen := range []int{1, 7, 64, 297} {
		s, err := NewTextSampler(data, seqLen, newRand(2))
		require.NoError(t, err)

		for range 200 {
			w := s.Sample()
			require.Len(t, w, seqLen+1)
			idx := bytes.Index(data, w)
			require.GreaterOrEqual(t, idx, 0, "window must be a slice of the segment")
			assert.LessOrEqual(t, idx+len(w), len(data))
		}
	}
}

func TestTextSamplerTooShort(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		seqLen int
	}{
		{"exactly one window", 17, 16},
		{"shorter than window", 10, 16},
		{"zero seq len", 100, 0},
		{"negative seq len", 100, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTextSampler(make([]byte, tt.size), tt.seqLen, newRand(1))
			assert.ErrorIs(t, err, errs.ErrRange)
		})
	}

	_, err := NewTextSampler(make([]byte, 18), 16, newRand(1))
	assert.NoError(t, err, "two distinct windows are enough")
}

func TestTextSamplerLen(t *testing.T) {
	s, err := NewTextSampler(make([]byte, 900), 16, newRand(1))
	require.NoError(t, err)

	assert.Equal(t, 56, s.Len())
	assert.Equal(t, 16, s.SeqLen())
}

func TestTextSamplerUniformStarts(t *testing.T) {
	const (
		seqLen = 19
		size   = 120
		draws  = 100_000
	)
	s, err := NewTextSampler(make([]byte, size), seqLen, newRand(42))
	require.NoError(t, err)

	starts := size - seqLen - 1
	observed := make([]float64, starts)
	for range draws {
		st := s.start()
		require.GreaterOrEqual(t, st, 0)
		require.Less(t, st, starts)
		observed[st]++
	}

	expected := make([]float64, starts)
	for i := range expected {
		expected[i] = float64(draws) / float64(starts)
	}

	chi := stat.ChiSquare(observed, expected)
	dist := distuv.ChiSquared{K: float64(starts - 1)}
	pValue := 1 - dist.CDF(chi)
	assert.Greater(t, pValue, 1e-4, "start offsets should be uniform (chi2=%.1f)", chi)
	assert.Positive(t, observed[0])
	assert.Positive(t, observed[starts-1])
}

func TestLoaderPass(t *testing.T) {
	s, err := NewTextSampler(make([]byte, 100), 10, newRand(1))
	require.NoError(t, err)

	// Len = 10 items, batch 3 -> 3 full batches, the 10th item is dropped.
	l, err := NewLoader(s, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, l.NumBatches())

	it := l.Iter()
	count := 0
	for {
		b, ok := it.Next()
		if !ok {
			break
		}
		count++
		assert.Equal(t, 3, b.Size())
		assert.Equal(t, 10, b.SeqLen())
	}
	assert.Equal(t, 3, count)

	_, ok := it.Next()
	assert.False(t, ok, "exhausted pass stays exhausted")
}

func TestLoaderErrors(t *testing.T) {
	s, err := NewTextSampler(make([]byte, 100), 10, newRand(1))
	require.NoError(t, err)

	_, err = NewLoader(s, 0)
	assert.ErrorIs(t, err, errs.ErrRange)

	_, err = NewLoader(s, 11)
	assert.ErrorIs(t, err, errs.ErrRange)
}

type countingIter struct {
	n, pos int
}

func (c *countingIter) Next() (int, bool) {
	if c.pos >= c.n {
		return 0, false
	}
	c.pos++
	return c.pos, true
}

func TestCycleRestarts(t *testing.T) {
	c := NewCycle(func() Iterator[int] { return &countingIter{n: 3} })

	var got []int
	for range 8 {
		v, err := c.Next()
		require.NoError(t, err)
		got = append(got, v)
	}

	assert.Equal(t, []int{1, 2, 3, 1, 2, 3, 1, 2}, got)
	assert.Equal(t, 3, c.Passes())
}

func TestCycleEmptySource(t *testing.T) {
	c := NewCycle(func() Iterator[int] { return &countingIter{n: 0} })

	_, err := c.Next()
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestCycleBeyondOnePass(t *testing.T) {
	s, err := NewTextSampler(make([]byte, 40), 10, newRand(3))
	require.NoError(t, err)
	l, err := NewLoader(s, 2) // 4 items -> 2 batches per pass
	require.NoError(t, err)

	c := CycleBatches(l)
	for range 10 * l.NumBatches() {
		b, err := c.Next()
		require.NoError(t, err)
		assert.Equal(t, 2, b.Size())
	}
	assert.Equal(t, 10, c.Passes())
}

func TestBatchesFromSyntheticCorpus(t *testing.T) {
	data := randomBytes(1000, 7)
	c, err := corpus.FromBytes(data, 900)
	require.NoError(t, err)
	train := c.Train()

	s, err := NewTextSampler(train, 16, newRand(9))
	require.NoError(t, err)
	l, err := NewLoader(s, 2)
	require.NoError(t, err)
	src := CycleBatches(l)

	for range 5 {
		b, err := src.Next()
		require.NoError(t, err)
		require.Equal(t, 2, b.Size())

		for _, w := range b.Windows {
			require.Len(t, w, 17)
			idx := bytes.Index(train, w)
			require.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx+len(w)-1, 900)
		}
		assert.Equal(t, b.Windows[0][:16], b.Inputs(0))
		assert.Equal(t, b.Windows[0][1:], b.Targets(0))
	}
}
