package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_StatusLines(t *testing.T) {
	tests := []struct {
		name  string
		print func(w *Writer)
		want  string
	}{
		{"status with icon", func(w *Writer) { w.Status("🔍", "Opening index") }, "🔍 Opening index\n"},
		{"status without icon", func(w *Writer) { w.Status("", "detail") }, "   detail\n"},
		{"success", func(w *Writer) { w.Successf("Created index with %d documents", 4) }, "✅ Created index with 4 documents\n"},
		{"warning", func(w *Writer) { w.Warningf("%d rows skipped", 1) }, "⚠️  1 rows skipped\n"},
		{"error", func(w *Writer) { w.Errorf("failed: %s", "x") }, "❌ failed: x\n"},
		{"plain", func(w *Writer) { w.Plain("/tmp/config.yaml") }, "/tmp/config.yaml\n"},
		{"newline", func(w *Writer) { w.Newline() }, "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.print(New(buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}

	err := New(buf).JSON(map[string]any{"count": 2})

	require.NoError(t, err)
	assert.Equal(t, "{\n  \"count\": 2\n}\n", buf.String())
}

func TestWriter_JSON_Unencodable(t *testing.T) {
	err := New(&bytes.Buffer{}).JSON(map[string]any{"ch": make(chan int)})

	assert.Error(t, err)
}

func TestWriter_Counts_NonTerminal(t *testing.T) {
	// Given: a writer on a buffer, which is never a terminal
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: reporting progress
	w.Counts("labels.tsv", 100, 99, 1, time.Second)
	w.ProgressDone()

	// Then: nothing is drawn
	assert.False(t, w.IsTerminal())
	assert.Empty(t, buf.String())
}

func TestWriter_Counts_Terminal(t *testing.T) {
	// Given: a writer forced into terminal mode
	buf := &bytes.Buffer{}
	w := NewWithTerminal(buf, true)

	// When: drawing progress and then a status line
	w.Counts("labels.tsv", 100, 99, 1, 2*time.Second)
	w.Success("done")

	// Then: the progress line is redrawn in place and closed before the status
	assert.Equal(t, "\r\033[Klabels.tsv: 100 rows (99 ok, 1 errors) 50 rows/s\n✅ done\n", buf.String())
}

func TestNew_RegularFileIsNotTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.False(t, New(f).IsTerminal())
}
