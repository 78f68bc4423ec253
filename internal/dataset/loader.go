package dataset

import (
	"github.com/born-ml/lmharness/internal/errs"
)

// Iterator yields items until it is exhausted.
type Iterator[T any] interface {
	// Next returns the next item, or false once the pass is over.
	Next() (T, bool)
}

// Loader groups dataset items into fixed-size batches.
//
// One pass visits indices 0..Len()-1 in order and yields Len()/batchSize
// batches; a trailing partial batch is dropped so every batch has exactly
// batchSize windows.
type Loader struct {
	ds        Dataset
	batchSize int
}

// NewLoader creates a loader over ds.
//
// Returns errs.ErrRange if batchSize is not positive or ds holds fewer than
// batchSize items.
func NewLoader(ds Dataset, batchSize int) (*Loader, error) {
	if batchSize <= 0 {
		return nil, errs.Rangef("batch size must be positive, got %d", batchSize)
	}
	if ds.Len() < batchSize {
		return nil, errs.Rangef("dataset of %d items smaller than batch size %d", ds.Len(), batchSize)
	}
	return &Loader{ds: ds, batchSize: batchSize}, nil
}

// NumBatches returns the number of batches in one pass.
func (l *Loader) NumBatches() int {
	return l.ds.Len() / l.batchSize
}

// BatchSize returns the number of windows per batch.
func (l *Loader) BatchSize() int {
	return l.batchSize
}

// Iter starts a new pass.
func (l *Loader) Iter() Iterator[Batch] {
	return &loaderIter{loader: l, limit: l.NumBatches() * l.batchSize}
}

type loaderIter struct {
	loader *Loader
	pos    int
	limit  int
}

func (it *loaderIter) Next() (Batch, bool) {
	if it.pos+it.loader.batchSize > it.limit {
		return Batch{}, false
	}
	windows := make([][]byte, it.loader.batchSize)
	for i := range windows {
		windows[i] = it.loader.ds.Get(it.pos + i)
	}
	it.pos += it.loader.batchSize
	return Batch{Windows: windows}, true
}
