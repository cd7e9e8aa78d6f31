package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bold-kg/termdex/internal/errors"
	"github.com/bold-kg/termdex/internal/record"
)

// FilterParams holds filters in their textual form, as they arrive from
// flags or a query string. Empty strings are unset.
type FilterParams struct {
	Pos      string
	URL      string
	MinCount string
	MaxCount string
}

// ParseFilters converts textual filters. Malformed values fail with
// ErrCodeInvalidFilter.
func ParseFilters(p FilterParams) (Filters, error) {
	var f Filters

	if s := strings.TrimSpace(p.Pos); s != "" {
		pos, err := parsePos(s)
		if err != nil {
			return Filters{}, invalidFilter("pos", s, err)
		}
		f.Pos = &pos
	}

	if s := strings.TrimSpace(p.URL); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Filters{}, invalidFilter("url", s, err)
		}
		f.URL = &b
	}

	var err error
	if f.MinCount, err = parseCount("min_count", p.MinCount); err != nil {
		return Filters{}, err
	}
	if f.MaxCount, err = parseCount("max_count", p.MaxCount); err != nil {
		return Filters{}, err
	}
	return f, nil
}

// parsePos accepts the position number or its export name.
func parsePos(s string) (record.Pos, error) {
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		if pos := record.Pos(n); pos.Valid() {
			return pos, nil
		}
		return 0, fmt.Errorf("unknown position %d (want 0, 1 or 2)", n)
	}
	return record.ParsePos(s)
}

func parseCount(name, s string) (*uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, invalidFilter(name, s, err)
	}
	return &n, nil
}

func invalidFilter(name, value string, cause error) error {
	return errors.New(errors.ErrCodeInvalidFilter,
		fmt.Sprintf("invalid %s filter %q", name, value), cause)
}
