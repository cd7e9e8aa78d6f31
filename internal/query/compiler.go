package query

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/record"
	"github.com/bold-kg/termdex/internal/store"
)

// Schema is what the compiler needs from an index schema.
type Schema interface {
	HasField(name string) bool
	Analyze(field, text string) ([][]string, error)
}

// Filters are the optional exact constraints of a request.
type Filters struct {
	Pos      *record.Pos
	URL      *bool
	MinCount *uint64
	MaxCount *uint64
}

// Empty reports whether no filter is set.
func (f Filters) Empty() bool {
	return f.Pos == nil && f.URL == nil && f.MinCount == nil && f.MaxCount == nil
}

const (
	// FuzzyDistance is the edit distance used for identifier and type matches.
	FuzzyDistance = 1
	// PhraseSlop is the slop of the n-gram phrases over iri_text and label.
	PhraseSlop = 1
)

// Compiler builds plans against one schema.
type Compiler struct {
	schema Schema
}

// NewCompiler returns a compiler bound to schema.
func NewCompiler(schema Schema) *Compiler {
	return &Compiler{schema: schema}
}

// Compile builds the plan for text and f. Every filter is a Must clause and
// every word of text must match at least one of its field queries.
func (c *Compiler) Compile(text string, f Filters) (Query, error) {
	filters, err := c.filterClauses(f)
	if err != nil {
		return Query{}, err
	}

	text = strings.ToLower(strings.TrimSpace(text))

	var words []Query
	for _, word := range Words(text) {
		wq, err := c.wordQuery(word)
		if err != nil {
			return Query{}, err
		}
		words = append(words, wq)
	}

	plan := MustOf(filters...)
	if len(words) > 0 {
		plan.Clauses = append(plan.Clauses, Clause{Occur: Must, Query: MustOf(words...)})
	}

	for _, field := range plan.Fields() {
		if !c.schema.HasField(field) {
			return Query{}, errors.New(errors.ErrCodeFieldNotInSchema,
				fmt.Sprintf("field %q is not part of the index schema", field), nil).
				WithSuggestion("Rebuild the index with this version of termdex")
		}
	}
	return plan, nil
}

func (c *Compiler) filterClauses(f Filters) ([]Query, error) {
	var out []Query

	if f.Pos != nil {
		if !f.Pos.Valid() {
			return nil, errors.New(errors.ErrCodeInvalidFilter,
				fmt.Sprintf("unknown position %s", f.Pos), nil)
		}
		p := uint64(*f.Pos)
		out = append(out, NewRange(store.FieldPos, p, p+1))
	}

	if f.URL != nil {
		out = append(out, NewTerm(store.FieldIsURL, fmt.Sprintf("%t", *f.URL)))
	}

	if f.MinCount != nil || f.MaxCount != nil {
		lo, hi := uint64(0), uint64(math.MaxUint64)
		if f.MinCount != nil {
			lo = *f.MinCount
		}
		if f.MaxCount != nil {
			hi = *f.MaxCount
		}
		if lo > hi {
			return nil, errors.New(errors.ErrCodeInvalidFilter,
				fmt.Sprintf("min_count %d is above max_count %d", lo, hi), nil)
		}
		out = append(out, NewRange(store.FieldCount, lo, hi))
	}

	return out, nil
}

func (c *Compiler) wordQuery(word string) (Query, error) {
	alts := []Query{
		NewFuzzy(store.FieldIRI, word, FuzzyDistance, true),
		NewFuzzy(store.FieldType, word, FuzzyDistance, false),
	}
	for _, field := range []string{store.FieldIRIText, store.FieldLabel} {
		q, ok, err := c.phrase(field, word)
		if err != nil {
			return Query{}, err
		}
		if ok {
			alts = append(alts, q)
		}
	}
	return ShouldOf(alts...), nil
}

// phrase re-tokenizes word with the field's analyzer. A single gram becomes
// a term query and no grams drops the clause.
func (c *Compiler) phrase(field, word string) (Query, bool, error) {
	if !c.schema.HasField(field) {
		return Query{}, false, errors.New(errors.ErrCodeFieldNotInSchema,
			fmt.Sprintf("field %q is not part of the index schema", field), nil)
	}
	groups, err := c.schema.Analyze(field, word)
	if err != nil {
		return Query{}, false, err
	}
	switch {
	case len(groups) == 0:
		return Query{}, false, nil
	case len(groups) == 1 && len(groups[0]) == 1:
		return NewTerm(field, groups[0][0]), true, nil
	default:
		return NewPhrase(field, groups, PhraseSlop), true, nil
	}
}

// Words splits text on every rune that is neither a letter nor a digit.
func Words(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
