package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeToken(t *testing.T) {
	assert.Equal(t, ' ', DecodeToken(10), "newline clamps to space")
	assert.Equal(t, 'A', DecodeToken(65))
	assert.Equal(t, ' ', DecodeToken(0))
	assert.Equal(t, ' ', DecodeToken(32))
	assert.Equal(t, 'é', DecodeToken(0xe9))

	for b := range 256 {
		want := rune(max(32, b))
		assert.Equal(t, want, DecodeToken(byte(b)), "byte %d", b)
	}
}

func TestDecodeTokens(t *testing.T) {
	assert.Equal(t, "a b  c", DecodeTokens([]byte("a\nb\t\rc")))
	assert.Equal(t, "", DecodeTokens(nil))
}

func TestByteTokenizer(t *testing.T) {
	var tok Tokenizer = ByteTokenizer{}

	assert.Equal(t, 256, tok.VocabSize())
	assert.Equal(t, []byte{'h', 'i', '\n'}, tok.Encode("hi\n"))
	assert.Equal(t, "hi ", tok.Decode(tok.Encode("hi\n")))
}
