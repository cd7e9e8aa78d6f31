// Package output formats termdex CLI output: status lines, build progress
// and JSON results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out      io.Writer
	terminal bool
	// progressOpen is set while an in-place progress line is on screen.
	progressOpen bool
}

// New creates a Writer. Progress lines are only drawn when out is a terminal.
func New(out io.Writer) *Writer {
	return &Writer{out: out, terminal: isTerminal(out)}
}

// NewWithTerminal creates a Writer with terminal detection overridden.
func NewWithTerminal(out io.Writer, terminal bool) *Writer {
	return &Writer{out: out, terminal: terminal}
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsTerminal reports whether progress lines will be drawn.
func (w *Writer) IsTerminal() bool {
	return w.terminal
}

// Status prints a status message with an icon.
func (w *Writer) Status(icon, msg string) {
	w.endProgress()
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	w.endProgress()
	_, _ = fmt.Fprintln(w.out)
}

// Plain prints msg followed by a newline, without an icon.
func (w *Writer) Plain(msg string) {
	w.endProgress()
	_, _ = fmt.Fprintln(w.out, msg)
}

// JSON prints v as indented JSON.
func (w *Writer) JSON(v any) error {
	w.endProgress()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// Counts redraws the build progress line in place. It does nothing when the
// output is not a terminal.
func (w *Writer) Counts(source string, processed, success, errs int, elapsed time.Duration) {
	if !w.terminal {
		return
	}
	rate := 0.0
	if s := elapsed.Seconds(); s > 0 {
		rate = float64(processed) / s
	}
	_, _ = fmt.Fprintf(w.out, "\r\033[K%s: %d rows (%d ok, %d errors) %.0f rows/s",
		source, processed, success, errs, rate)
	w.progressOpen = true
}

// ProgressDone terminates an open progress line.
func (w *Writer) ProgressDone() {
	w.endProgress()
}

func (w *Writer) endProgress() {
	if w.progressOpen {
		_, _ = fmt.Fprintln(w.out)
		w.progressOpen = false
	}
}
