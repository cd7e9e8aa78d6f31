package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terms(t *testing.T, tok *NgramTokenizer, input string) []string {
	t.Helper()
	var out []string
	for _, token := range tok.Tokenize([]byte(input)) {
		out = append(out, string(token.Term))
	}
	return out
}

func TestNgramTokenizer_Trigrams(t *testing.T) {
	// Given: a trigram tokenizer
	tok, err := NewNgramTokenizer(3, 3)
	require.NoError(t, err)

	// When: tokenizing a short word
	got := terms(t, tok, "berlin")

	// Then: every 3-rune substring is emitted in text order
	assert.Equal(t, []string{"ber", "erl", "rli", "lin"}, got)
}

func TestNgramTokenizer_WindowSharesPosition(t *testing.T) {
	// Given: a 2..3 window
	tok, err := NewNgramTokenizer(2, 3)
	require.NoError(t, err)

	// When: tokenizing
	stream := tok.Tokenize([]byte("abcd"))

	// Then: grams starting at the same rune share a position
	var got []string
	var positions []int
	for _, token := range stream {
		got = append(got, string(token.Term))
		positions = append(positions, token.Position)
	}
	assert.Equal(t, []string{"ab", "abc", "bc", "bcd", "cd"}, got)
	assert.Equal(t, []int{1, 1, 2, 2, 3}, positions)
}

func TestNgramTokenizer_MultibyteRunes(t *testing.T) {
	// Given: input with multibyte runes
	tok, err := NewNgramTokenizer(2, 2)
	require.NoError(t, err)

	// When: tokenizing
	stream := tok.Tokenize([]byte("zürich"))

	// Then: grams are rune based and byte offsets are exact
	require.Len(t, stream, 5)
	assert.Equal(t, "zü", string(stream[0].Term))
	assert.Equal(t, 0, stream[0].Start)
	assert.Equal(t, 3, stream[0].End)
	assert.Equal(t, "ür", string(stream[1].Term))
}

func TestNgramTokenizer_ShortInput(t *testing.T) {
	tok, err := NewNgramTokenizer(3, 3)
	require.NoError(t, err)

	assert.Empty(t, tok.Tokenize([]byte("ab")))
	assert.Empty(t, tok.Tokenize(nil))
}

func TestNewNgramTokenizer_InvalidWindow(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
	}{
		{"zero min", 0, 3},
		{"max below min", 4, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewNgramTokenizer(tt.min, tt.max)
			assert.Error(t, err)
		})
	}
}

func TestNgramTokenizerConstructor_ReadsPersistedConfig(t *testing.T) {
	// Given: config as it looks after a JSON round trip
	config := map[string]interface{}{"min": 2.0, "max": 4.0}

	// When: constructing
	tok, err := ngramTokenizerConstructor(config, nil)

	// Then: the window is honored
	require.NoError(t, err)
	ng, ok := tok.(*NgramTokenizer)
	require.True(t, ok)
	assert.Equal(t, 2, ng.Min)
	assert.Equal(t, 4, ng.Max)
}

func TestNgramTokenizerConstructor_MissingOption(t *testing.T) {
	_, err := ngramTokenizerConstructor(map[string]interface{}{"min": 3.0}, nil)
	assert.Error(t, err)

	_, err = ngramTokenizerConstructor(map[string]interface{}{"min": "3", "max": 3.0}, nil)
	assert.Error(t, err)
}
