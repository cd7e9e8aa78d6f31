// Package query turns a free-text query and structured filters into a
// boolean query plan over the index schema.
package query

import (
	"fmt"
	"strings"
)

// Kind tags the variant held by a Query.
type Kind int

const (
	KindTerm Kind = iota
	KindPhrase
	KindFuzzy
	KindRange
	KindBoolean
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindTerm:
		return "term"
	case KindPhrase:
		return "phrase"
	case KindFuzzy:
		return "fuzzy"
	case KindRange:
		return "range"
	case KindBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Occur says how a clause contributes to a boolean query.
type Occur int

const (
	Must Occur = iota
	Should
)

func (o Occur) String() string {
	if o == Should {
		return "should"
	}
	return "must"
}

// Query is one node of a plan. Which fields are meaningful depends on Kind:
//
//	Term:    Field, Text
//	Phrase:  Field, Terms (grouped by position), Slop
//	Fuzzy:   Field, Text, Distance, Prefix
//	Range:   Field, Lo (inclusive), Hi (exclusive)
//	Boolean: Clauses
type Query struct {
	Kind     Kind
	Field    string
	Text     string
	Terms    [][]string
	Slop     int
	Distance int
	Prefix   bool
	Lo       uint64
	Hi       uint64
	Clauses  []Clause
}

// Clause is a sub-query of a boolean query.
type Clause struct {
	Occur Occur
	Query Query
}

func NewTerm(field, text string) Query {
	return Query{Kind: KindTerm, Field: field, Text: text}
}

func NewPhrase(field string, terms [][]string, slop int) Query {
	return Query{Kind: KindPhrase, Field: field, Terms: terms, Slop: slop}
}

func NewFuzzy(field, text string, distance int, prefix bool) Query {
	return Query{Kind: KindFuzzy, Field: field, Text: text, Distance: distance, Prefix: prefix}
}

func NewRange(field string, lo, hi uint64) Query {
	return Query{Kind: KindRange, Field: field, Lo: lo, Hi: hi}
}

func NewBoolean(clauses ...Clause) Query {
	return Query{Kind: KindBoolean, Clauses: clauses}
}

// MustOf wraps queries as Must clauses of one boolean query.
func MustOf(queries ...Query) Query {
	clauses := make([]Clause, 0, len(queries))
	for _, q := range queries {
		clauses = append(clauses, Clause{Occur: Must, Query: q})
	}
	return NewBoolean(clauses...)
}

// ShouldOf wraps queries as Should clauses of one boolean query.
func ShouldOf(queries ...Query) Query {
	clauses := make([]Clause, 0, len(queries))
	for _, q := range queries {
		clauses = append(clauses, Clause{Occur: Should, Query: q})
	}
	return NewBoolean(clauses...)
}

// IsMatchAll reports whether q is a boolean query without clauses.
func (q Query) IsMatchAll() bool {
	return q.Kind == KindBoolean && len(q.Clauses) == 0
}

// Fields returns every field referenced by q, in first-use order.
func (q Query) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	var walk func(Query)
	walk = func(n Query) {
		if n.Kind == KindBoolean {
			for _, c := range n.Clauses {
				walk(c.Query)
			}
			return
		}
		if !seen[n.Field] {
			seen[n.Field] = true
			out = append(out, n.Field)
		}
	}
	walk(q)
	return out
}

// String renders q in a compact prefix form, used by --explain.
func (q Query) String() string {
	var b strings.Builder
	q.write(&b)
	return b.String()
}

func (q Query) write(b *strings.Builder) {
	switch q.Kind {
	case KindTerm:
		fmt.Fprintf(b, "%s:%q", q.Field, q.Text)
	case KindPhrase:
		groups := make([]string, len(q.Terms))
		for i, g := range q.Terms {
			groups[i] = strings.Join(g, "|")
		}
		fmt.Fprintf(b, "%s:\"%s\"~%d", q.Field, strings.Join(groups, " "), q.Slop)
	case KindFuzzy:
		fmt.Fprintf(b, "%s:%s~%d", q.Field, q.Text, q.Distance)
		if q.Prefix {
			b.WriteString("*")
		}
	case KindRange:
		fmt.Fprintf(b, "%s:[%d,%d)", q.Field, q.Lo, q.Hi)
	case KindBoolean:
		if len(q.Clauses) == 0 {
			b.WriteString("*")
			return
		}
		b.WriteString("(")
		for i, c := range q.Clauses {
			if i > 0 {
				b.WriteString(" ")
			}
			if c.Occur == Must {
				b.WriteString("+")
			}
			c.Query.write(b)
		}
		b.WriteString(")")
	default:
		b.WriteString(q.Kind.String())
	}
}
