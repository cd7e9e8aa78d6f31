package search

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/query"
	"github.com/bold-kg/termdex/internal/store"
)

// FieldKinds resolves the engine type of a field.
type FieldKinds interface {
	Kind(name string) store.FieldKind
}

// Translate evaluates a plan into a Bleve query.
func Translate(q query.Query, kinds FieldKinds) (bq.Query, error) {
	if q.Kind != query.KindBoolean && kinds.Kind(q.Field) == "" {
		return nil, errors.New(errors.ErrCodeFieldNotInSchema,
			fmt.Sprintf("field %q is not part of the index schema", q.Field), nil)
	}

	switch q.Kind {
	case query.KindTerm:
		return translateTerm(q, kinds.Kind(q.Field))

	case query.KindPhrase:
		return translatePhrase(q)

	case query.KindFuzzy:
		fq := bleve.NewFuzzyQuery(q.Text)
		fq.SetField(q.Field)
		fq.SetFuzziness(q.Distance)
		if !q.Prefix {
			return fq, nil
		}
		rq := bleve.NewRegexpQuery(fuzzyPrefixPattern(q.Text, q.Distance))
		rq.SetField(q.Field)
		return disjunction(fq, rq), nil

	case query.KindRange:
		if kinds.Kind(q.Field) != store.KindNumeric {
			return nil, errors.New(errors.ErrCodeInvalidQuery,
				fmt.Sprintf("range over non-numeric field %q", q.Field), nil)
		}
		lo := float64(q.Lo)
		inclusive, exclusive := true, false
		var hi *float64
		if q.Hi != math.MaxUint64 {
			v := float64(q.Hi)
			hi = &v
		}
		rq := bleve.NewNumericRangeInclusiveQuery(&lo, hi, &inclusive, &exclusive)
		rq.SetField(q.Field)
		return rq, nil

	case query.KindBoolean:
		return translateBoolean(q, kinds)

	default:
		return nil, errors.New(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("unsupported query kind %s", q.Kind), nil)
	}
}

func translateTerm(q query.Query, kind store.FieldKind) (bq.Query, error) {
	switch kind {
	case store.KindBoolean:
		var v bool
		switch q.Text {
		case "true":
			v = true
		case "false":
		default:
			return nil, errors.New(errors.ErrCodeInvalidFilter,
				fmt.Sprintf("field %q expects true or false, got %q", q.Field, q.Text), nil)
		}
		bfq := bleve.NewBoolFieldQuery(v)
		bfq.SetField(q.Field)
		return bfq, nil
	case store.KindText:
		tq := bleve.NewTermQuery(q.Text)
		tq.SetField(q.Field)
		return tq, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("term query over %s field %q", kind, q.Field), nil)
	}
}

// translatePhrase matches the gram groups in order. Slop s allows up to s
// extra positions between neighbouring groups: each variant inserts empty
// groups, which match any single position.
func translatePhrase(q query.Query) (bq.Query, error) {
	if len(q.Terms) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidQuery,
			fmt.Sprintf("empty phrase on field %q", q.Field), nil)
	}
	if q.Slop == 0 || len(q.Terms) == 1 {
		return bq.NewMultiPhraseQuery(q.Terms, q.Field), nil
	}

	var variants []bq.Query
	for _, terms := range gapVariants(q.Terms, q.Slop) {
		variants = append(variants, bq.NewMultiPhraseQuery(terms, q.Field))
	}
	return disjunction(variants...), nil
}

// gapVariants returns terms with every distribution of at most slop empty
// groups between neighbouring groups. The exact phrase comes first.
func gapVariants(terms [][]string, slop int) [][][]string {
	if len(terms) == 1 {
		return [][][]string{terms}
	}
	var out [][][]string
	for gap := 0; gap <= slop; gap++ {
		for _, rest := range gapVariants(terms[1:], slop-gap) {
			v := make([][]string, 0, 1+gap+len(rest))
			v = append(v, terms[0])
			for i := 0; i < gap; i++ {
				v = append(v, []string{""})
			}
			out = append(out, append(v, rest...))
		}
	}
	return out
}

// fuzzyPrefixPattern matches every term that starts with text or with a
// string within distance edits of it.
func fuzzyPrefixPattern(text string, distance int) string {
	exact := quoteRunes(text)
	variants := map[string][]string{strings.Join(exact, ""): exact}
	for d := 0; d < min(distance, 2); d++ {
		next := make(map[string][]string, len(variants))
		for k, v := range variants {
			next[k] = v
			for _, e := range edits(v) {
				next[strings.Join(e, "")] = e
			}
		}
		variants = next
	}

	alts := make([]string, 0, len(variants))
	for k := range variants {
		if k != "" {
			alts = append(alts, k)
		}
	}
	sort.Strings(alts)
	return "(" + strings.Join(alts, "|") + ").*"
}

// edits returns the single-edit variants of a pattern given as one piece
// per rune, where "." stands for any rune.
func edits(pieces []string) [][]string {
	splice := func(i, drop int, insert ...string) []string {
		e := make([]string, 0, len(pieces)+1)
		e = append(e, pieces[:i]...)
		e = append(e, insert...)
		return append(e, pieces[i+drop:]...)
	}
	var out [][]string
	for i := range pieces {
		out = append(out, splice(i, 1, "."), splice(i, 1))
	}
	for i := 0; i <= len(pieces); i++ {
		out = append(out, splice(i, 0, "."))
	}
	return out
}

func quoteRunes(s string) []string {
	pieces := make([]string, 0, len(s))
	for _, r := range s {
		pieces = append(pieces, regexp.QuoteMeta(string(r)))
	}
	return pieces
}

func translateBoolean(q query.Query, kinds FieldKinds) (bq.Query, error) {
	if len(q.Clauses) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}

	var must, should []bq.Query
	for _, c := range q.Clauses {
		sub, err := Translate(c.Query, kinds)
		if err != nil {
			return nil, err
		}
		if c.Occur == query.Should {
			should = append(should, sub)
		} else {
			must = append(must, sub)
		}
	}

	switch {
	case len(should) == 0:
		return bleve.NewConjunctionQuery(must...), nil
	case len(must) == 0:
		return disjunction(should...), nil
	default:
		return bq.NewBooleanQuery(must, should, nil), nil
	}
}

func disjunction(queries ...bq.Query) *bq.DisjunctionQuery {
	dq := bleve.NewDisjunctionQuery(queries...)
	dq.SetMin(1)
	return dq
}
