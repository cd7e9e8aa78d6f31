package store

import (
	"fmt"
	"strconv"
)

// Document is one indexed term. IRIText and IsURL are derived from IRI by
// the builder and never read from input.
type Document struct {
	IRI     string
	IRIText string
	Label   string
	Count   int64
	Pos     uint8
	Type    string
	IsURL   bool
}

// fields returns the document in the shape the index mapping expects.
func (d Document) fields() map[string]interface{} {
	return map[string]interface{}{
		FieldIRI:     d.IRI,
		FieldIRIText: d.IRIText,
		FieldLabel:   d.Label,
		FieldCount:   float64(d.Count),
		FieldPos:     float64(d.Pos),
		FieldType:    d.Type,
		FieldIsURL:   d.IsURL,
	}
}

// DocID formats a sequence number so that lexical order equals numeric order.
func DocID(seq uint64) string {
	return fmt.Sprintf("%012d", seq)
}

// ParseDocID is the inverse of DocID.
func ParseDocID(id string) (uint64, error) {
	seq, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document id %q: %w", id, err)
	}
	return seq, nil
}
