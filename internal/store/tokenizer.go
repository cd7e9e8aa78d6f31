package store

import (
	"fmt"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
)

// NgramTokenizerType is the Bleve tokenizer type that produces substring
// grams. The window is not fixed here: each index carries its own
// parameters in its persisted mapping.
const NgramTokenizerType = "termdex_ngram"

func init() {
	_ = registry.RegisterTokenizer(NgramTokenizerType, ngramTokenizerConstructor)
}

// NgramTokenizer emits every substring of Min..Max runes.
//
// All grams starting at the same rune share a position (rune offset + 1), so
// a phrase over the gram groups of a word matches exactly where the word
// occurs as a substring.
type NgramTokenizer struct {
	Min int
	Max int
}

// NewNgramTokenizer validates the window and returns a tokenizer.
func NewNgramTokenizer(minLen, maxLen int) (*NgramTokenizer, error) {
	if minLen < 1 {
		return nil, fmt.Errorf("ngram min must be at least 1, got %d", minLen)
	}
	if maxLen < minLen {
		return nil, fmt.Errorf("ngram max (%d) must not be below min (%d)", maxLen, minLen)
	}
	return &NgramTokenizer{Min: minLen, Max: maxLen}, nil
}

// Tokenize implements analysis.Tokenizer.
func (t *NgramTokenizer) Tokenize(input []byte) analysis.TokenStream {
	// Byte offset of every rune boundary, plus the end of input.
	offsets := make([]int, 0, len(input)+1)
	for i := 0; i < len(input); {
		offsets = append(offsets, i)
		_, size := utf8.DecodeRune(input[i:])
		i += size
	}
	runes := len(offsets)
	offsets = append(offsets, len(input))

	stream := make(analysis.TokenStream, 0, runes*(t.Max-t.Min+1))
	for start := 0; start < runes; start++ {
		for n := t.Min; n <= t.Max && start+n <= runes; n++ {
			begin, end := offsets[start], offsets[start+n]
			stream = append(stream, &analysis.Token{
				Term:     append([]byte(nil), input[begin:end]...),
				Start:    begin,
				End:      end,
				Position: start + 1,
				Type:     analysis.AlphaNumeric,
			})
		}
	}
	return stream
}

// ngramTokenizerConstructor builds the tokenizer from mapping config.
// Numbers arrive as float64 once a mapping has been read back from disk.
func ngramTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	minLen, err := intOption(config, "min")
	if err != nil {
		return nil, err
	}
	maxLen, err := intOption(config, "max")
	if err != nil {
		return nil, err
	}
	return NewNgramTokenizer(minLen, maxLen)
}

func intOption(config map[string]interface{}, key string) (int, error) {
	switch v := config[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	case nil:
		return 0, fmt.Errorf("ngram tokenizer: missing %q", key)
	default:
		return 0, fmt.Errorf("ngram tokenizer: %q must be a number, got %T", key, v)
	}
}
