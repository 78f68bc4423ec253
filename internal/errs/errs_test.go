package errs

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIOKeepsCause(t *testing.T) {
	err := IO("open corpus", fs.ErrNotExist)

	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "open corpus")
}

func TestRangef(t *testing.T) {
	err := Rangef("split offset %d exceeds %d bytes", 10, 5)

	assert.ErrorIs(t, err, ErrRange)
	assert.False(t, errors.Is(err, ErrIO))
	assert.Equal(t, "range error: split offset 10 exceeds 5 bytes", err.Error())
}
