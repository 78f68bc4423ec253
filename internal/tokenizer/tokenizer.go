// Package tokenizer maps between text and the byte-level token space.
//
// Tokens are raw byte values, so the vocabulary is exactly 256 entries and
// encoding is the identity on the UTF-8 bytes of the text. Decoding is a
// display convenience only: it never feeds back into training.
package tokenizer

import (
	"strings"
)

// VocabSize is the number of distinct byte tokens.
const VocabSize = 256

// minPrintable is the smallest byte value rendered as itself.
const minPrintable = 32

// Tokenizer converts text to tokens and back.
type Tokenizer interface {
	// Encode converts text to tokens.
	Encode(text string) []byte

	// Decode renders tokens as human-readable text.
	Decode(tokens []byte) string

	// VocabSize returns the total vocabulary size.
	VocabSize() int
}

// ByteTokenizer is the identity tokenizer over raw bytes.
type ByteTokenizer struct{}

// Encode returns the UTF-8 bytes of text.
func (ByteTokenizer) Encode(text string) []byte {
	return []byte(text)
}

// Decode renders tokens with DecodeTokens.
func (ByteTokenizer) Decode(tokens []byte) string {
	return DecodeTokens(tokens)
}

// VocabSize returns 256.
func (ByteTokenizer) VocabSize() int {
	return VocabSize
}

// DecodeToken maps a byte to a printable rune, clamping control bytes
// (below 32) to a space. Bytes 128..255 map to the Latin-1 code points of
// the same value.
func DecodeToken(b byte) rune {
	return rune(max(minPrintable, b))
}

// DecodeTokens renders every byte with DecodeToken.
func DecodeTokens(tokens []byte) string {
	var sb strings.Builder
	sb.Grow(len(tokens))
	for _, b := range tokens {
		sb.WriteRune(DecodeToken(b))
	}
	return sb.String()
}
