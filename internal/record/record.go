// Package record parses the tab-separated term exports produced by the
// profiling pipeline.
package record

import (
	"fmt"
	"strings"
)

// Pos is the structural position a term was observed in.
type Pos uint8

const (
	PosSubject  Pos = 0
	PosProperty Pos = 1
	PosValue    Pos = 2
)

// ParsePos parses the textual position used in exports.
func ParsePos(s string) (Pos, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "subject":
		return PosSubject, nil
	case "property":
		return PosProperty, nil
	case "value":
		return PosValue, nil
	default:
		return 0, fmt.Errorf("unknown position %q (want subject, property or value)", s)
	}
}

// String returns the export name of the position.
func (p Pos) String() string {
	switch p {
	case PosSubject:
		return "subject"
	case PosProperty:
		return "property"
	case PosValue:
		return "value"
	default:
		return fmt.Sprintf("pos(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the known positions.
func (p Pos) Valid() bool {
	return p <= PosValue
}

// Record is one row of a term export.
type Record struct {
	IRI   string
	Label string
	Count int64
	Pos   Pos
	Type  string
}

// Header column names expected in every export.
const (
	ColumnIRI   = "?iri"
	ColumnLabel = "?label"
	ColumnCount = "?count"
	ColumnPos   = "?pos"
	ColumnType  = "?type"
)

// Columns lists the required header columns.
var Columns = []string{ColumnIRI, ColumnLabel, ColumnCount, ColumnPos, ColumnType}
