// Package corpus loads a raw byte-level training corpus and splits it into
// a training and a validation segment.
//
// The corpus is read once and never written afterwards, so segments and any
// windows sliced from them can be shared without locking.
package corpus

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/born-ml/lmharness/internal/errs"
)

// Compression magic numbers recognized by Load.
var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Corpus is an immutable byte sequence split at a fixed offset.
type Corpus struct {
	data  []byte
	split int
}

// Load reads at most totalBytes bytes from path and splits them at splitOffset.
//
// Gzip and zstd sources are detected from their magic bytes and decompressed
// transparently; any other file is read as raw bytes.
//
// Errors:
//   - errs.ErrRange if splitOffset > totalBytes, or if the source holds fewer
//     than splitOffset bytes
//   - errs.ErrIO if the file cannot be opened, decompressed or read
func Load(path string, totalBytes, splitOffset int) (*Corpus, error) {
	if totalBytes < 0 || splitOffset < 0 {
		return nil, errs.Rangef("negative size: total=%d split=%d", totalBytes, splitOffset)
	}
	if splitOffset > totalBytes {
		return nil, errs.Rangef("split offset %d exceeds total bytes %d", splitOffset, totalBytes)
	}

	//nolint:gosec // G304: corpus path is user configuration
	file, err := os.Open(path)
	if err != nil {
		return nil, errs.IO("open corpus", err)
	}
	defer file.Close()

	r, closeFn, err := decompress(bufio.NewReader(file))
	if err != nil {
		return nil, errs.IO(fmt.Sprintf("decompress %s", path), err)
	}
	defer closeFn()

	data, err := io.ReadAll(io.LimitReader(r, int64(totalBytes)))
	if err != nil {
		return nil, errs.IO(fmt.Sprintf("read %s", path), err)
	}

	return FromBytes(data, splitOffset)
}

// FromBytes builds a corpus over data without copying it.
//
// The caller must not modify data afterwards.
func FromBytes(data []byte, splitOffset int) (*Corpus, error) {
	if splitOffset < 0 || splitOffset > len(data) {
		return nil, errs.Rangef("split offset %d outside corpus of %d bytes", splitOffset, len(data))
	}
	return &Corpus{data: data, split: splitOffset}, nil
}

// decompress sniffs the stream header and wraps r in the matching decoder.
func decompress(r *bufio.Reader) (io.Reader, func(), error) {
	head, err := r.Peek(len(zstdMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, nil, err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	default:
		return r, func() {}, nil
	}
}

// Len returns the number of bytes read from the source.
func (c *Corpus) Len() int {
	return len(c.data)
}

// SplitOffset returns the index of the first validation byte.
func (c *Corpus) SplitOffset() int {
	return c.split
}

// Train returns the training segment, data[:split].
//
// The returned slice has its capacity capped so appends cannot reach the
// validation segment.
func (c *Corpus) Train() []byte {
	return c.data[:c.split:c.split]
}

// Val returns the validation segment, data[split:].
func (c *Corpus) Val() []byte {
	return c.data[c.split:len(c.data):len(c.data)]
}
