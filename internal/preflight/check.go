package preflight

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bold-kg/termdex/internal/errors"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
	// Code is the error code reported when a required check fails.
	Code string `json:"-"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker runs preflight checks.
type Checker struct {
	minFreeBytes uint64
	sizeFactor   uint64
}

// Option configures a Checker.
type Option func(*Checker)

// WithMinFreeBytes sets the free space below which a build is refused.
func WithMinFreeBytes(n uint64) Option {
	return func(c *Checker) {
		c.minFreeBytes = n
	}
}

// WithSizeFactor sets the expected index size as a multiple of input size.
func WithSizeFactor(f uint64) Option {
	return func(c *Checker) {
		if f > 0 {
			c.sizeFactor = f
		}
	}
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		minFreeBytes: MinDiskSpaceBytes,
		sizeFactor:   IndexSizeFactor,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ForBuild runs every check for building dest from inputs. "-" inputs have
// unknown size and do not count towards the space estimate.
func (c *Checker) ForBuild(inputs []string, dest string) []CheckResult {
	dir := existingAncestor(filepath.Dir(filepath.Clean(dest)))

	var inputBytes uint64
	for _, in := range inputs {
		if in == "-" {
			continue
		}
		if info, err := os.Stat(in); err == nil && !info.IsDir() {
			inputBytes += uint64(info.Size())
		}
	}

	return []CheckResult{
		c.CheckWritePermissions(dir),
		c.CheckDiskSpace(dir, inputBytes*c.sizeFactor),
		c.CheckFileDescriptors(),
	}
}

// HasCriticalFailures returns true if any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// Err returns the first critical failure as an *errors.Error, or nil.
func Err(results []CheckResult) error {
	for _, r := range results {
		if r.IsCritical() {
			e := errors.New(r.Code, fmt.Sprintf("preflight %s: %s", r.Name, r.Message), nil)
			if r.Details != "" {
				e = e.WithSuggestion(r.Details)
			}
			return e
		}
	}
	return nil
}

// Warnings returns the messages of non-critical problems.
func Warnings(results []CheckResult) []string {
	var out []string
	for _, r := range results {
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			out = append(out, r.Name+": "+r.Message)
		}
	}
	return out
}

// PrintResults writes one line per check.
func PrintResults(w io.Writer, results []CheckResult) {
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if r.Details != "" {
			_, _ = fmt.Fprintf(w, "      %s\n", r.Details)
		}
	}
}

// CheckWritePermissions checks that files can be created in dir.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
		Code:     errors.ErrCodeFilePermission,
	}

	f, err := os.CreateTemp(dir, ".termdex-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot write to %s: %v", dir, err)
		return result
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// existingAncestor returns dir or its closest existing parent.
func existingAncestor(dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir || strings.TrimSpace(parent) == "" {
			return dir
		}
		dir = parent
	}
}
