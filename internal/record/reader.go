package record

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// maxLineBytes bounds a single export row.
const maxLineBytes = 16 * 1024 * 1024

// RowError describes a row that could not be parsed.
type RowError struct {
	Row int // 0-based data row, header excluded
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Reader streams records from a tab-separated export with a header row.
//
// Fields are split on tabs only; quotes are kept verbatim because values are
// RDF terms such as "label"@en.
type Reader struct {
	scanner *bufio.Scanner
	index   map[string]int
	width   int
	row     int
}

// NewReader reads the header and returns a Reader positioned at the first
// data row. A missing required column is an error.
func NewReader(r io.Reader) (*Reader, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		return nil, fmt.Errorf("empty input: missing header row")
	}

	header := splitRow(sc.Text())
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("header is missing column %s", col)
		}
	}

	return &Reader{scanner: sc, index: index, width: len(header)}, nil
}

// Next returns the next record. A malformed row yields a *RowError and the
// reader stays usable; io.EOF marks the end of input.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		row := r.row
		r.row++

		rec, err := r.parse(splitRow(line))
		if err != nil {
			return Record{}, &RowError{Row: row, Err: err}
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("failed to read row %d: %w", r.row, err)
	}
	return Record{}, io.EOF
}

// Rows returns the number of data rows consumed so far.
func (r *Reader) Rows() int {
	return r.row
}

func (r *Reader) parse(fields []string) (Record, error) {
	if len(fields) != r.width {
		return Record{}, fmt.Errorf("found %d fields, header has %d", len(fields), r.width)
	}

	count, err := parseCount(fields[r.index[ColumnCount]])
	if err != nil {
		return Record{}, err
	}
	pos, err := ParsePos(literalValue(fields[r.index[ColumnPos]]))
	if err != nil {
		return Record{}, err
	}

	return Record{
		IRI:   fields[r.index[ColumnIRI]],
		Label: fields[r.index[ColumnLabel]],
		Count: count,
		Pos:   pos,
		Type:  fields[r.index[ColumnType]],
	}, nil
}

func parseCount(s string) (int64, error) {
	v := literalValue(s)
	count, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	if count < 0 {
		return 0, fmt.Errorf("negative count %d", count)
	}
	return count, nil
}

// literalValue unwraps "v" and "v"^^<datatype> literals.
func literalValue(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, `"`) {
		return s
	}
	if end := strings.LastIndexByte(s, '"'); end > 0 {
		return s[1:end]
	}
	return s
}

func splitRow(line string) []string {
	return strings.Split(strings.TrimSuffix(line, "\r"), "\t")
}
