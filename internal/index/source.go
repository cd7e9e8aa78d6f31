package index

import (
	"io"
	"os"
	"strings"

	"github.com/bold-kg/termdex/internal/errors"
)

// Source is one tab-separated term export.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSource reads the export at path. "-" reads standard input.
func FileSource(path string) Source {
	return Source{
		Name: path,
		Open: func() (io.ReadCloser, error) {
			if path == "-" {
				return io.NopCloser(os.Stdin), nil
			}
			f, err := os.Open(path)
			if os.IsNotExist(err) {
				return nil, errors.New(errors.ErrCodeFileNotFound, "input file not found", err).
					WithDetail("path", path)
			}
			if os.IsPermission(err) {
				return nil, errors.New(errors.ErrCodeFilePermission, "cannot read input file", err).
					WithDetail("path", path)
			}
			if err != nil {
				return nil, errors.IOError("failed to open input file", err).WithDetail("path", path)
			}
			return f, nil
		},
	}
}

// ReaderSource wraps an in-memory export.
func ReaderSource(name string, r io.Reader) Source {
	return Source{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(r), nil
		},
	}
}

// StringSource is ReaderSource over a string.
func StringSource(name, data string) Source {
	return ReaderSource(name, strings.NewReader(data))
}
