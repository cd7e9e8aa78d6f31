//go:build ignore

// Package main generates a synthetic tab-separated export for benchmarking
// build-index and search.
// Usage: go run scripts/generate-export.go -rows 100000 -output testdata/bench.tsv
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

var (
	numRows = flag.Int("rows", 100000, "Number of rows to generate")
	output  = flag.String("output", "-", "Output file, - for stdout")
	seed    = flag.Int64("seed", 42, "Random seed for reproducibility")
	badRate = flag.Float64("bad", 0.001, "Fraction of rows with an unparseable count")
)

var (
	syllables = []string{"al", "ber", "lin", "ein", "stein", "par", "is", "mo",
		"zart", "ro", "ma", "no", "va", "dor", "kel", "tan", "wi", "ki"}
	types = map[string][]string{
		"subject":  {"City", "Person", "Country", "Organisation", "Band"},
		"property": {"Property"},
		"value":    {"Literal", "City", "Person"},
	}
	positions = []string{"subject", "subject", "subject", "property", "value", "value"}
)

func word(r *rand.Rand) string {
	n := 2 + r.Intn(3)
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(syllables[r.Intn(len(syllables))])
	}
	s := b.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

func main() {
	flag.Parse()
	r := rand.New(rand.NewSource(*seed))

	out := os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create %s: %v\n", *output, err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	defer w.Flush()

	fmt.Fprintln(w, "?iri\t?label\t?count\t?pos\t?type")
	for i := 0; i < *numRows; i++ {
		pos := positions[r.Intn(len(positions))]
		typ := types[pos][r.Intn(len(types[pos]))]

		words := 1 + r.Intn(3)
		parts := make([]string, words)
		for j := range parts {
			parts[j] = word(r)
		}
		label := strings.Join(parts, " ")

		var iri string
		switch {
		case typ == "Literal":
			iri = fmt.Sprintf("%q@en", label)
		case pos == "property":
			label = strings.ToLower(label)
			iri = fmt.Sprintf("<http://dbpedia.org/ontology/%s%d>", strings.ReplaceAll(label, " ", ""), i)
		default:
			iri = fmt.Sprintf("<http://dbpedia.org/resource/%s_%d>", strings.ReplaceAll(label, " ", "_"), i)
		}

		count := fmt.Sprintf("%d", 1+int(r.ExpFloat64()*50))
		if r.Float64() < *badRate {
			count = "n/a"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", iri, label, count, pos, typ)
	}
}
