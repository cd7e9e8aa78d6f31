package logging

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()

	assert.Equal(t, "termdex.log", filepath.Base(path))
	assert.Equal(t, DefaultLogDir(), filepath.Dir(path))
	assert.Contains(t, path, ".termdex")
}

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		file       string
		debug      bool
		wantLevel  string
		wantFile   string
		wantStderr bool
	}{
		{"defaults", "", "", false, "info", DefaultLogPath(), false},
		{"configured", "warn", "/tmp/x.log", false, "warn", "/tmp/x.log", false},
		{"debug wins", "error", "", true, "debug", DefaultLogPath(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(tt.level, tt.file, tt.debug)
			assert.Equal(t, tt.wantLevel, cfg.Level)
			assert.Equal(t, tt.wantFile, cfg.FilePath)
			assert.Equal(t, tt.wantStderr, cfg.WriteToStderr)
		})
	}
}

func TestSetup_WritesJSONAtLevel(t *testing.T) {
	// Given: a warn-level logger writing to a temp file
	path := filepath.Join(t.TempDir(), "logs", "termdex.log")
	cfg := DefaultConfig()
	cfg.FilePath = path
	cfg.Level = "warn"

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)

	// When: logging below and at the level
	logger.Info("dropped")
	logger.Warn("kept", slog.String("dataset", "dbpedia"))
	cleanup()

	// Then: only the warn record is in the file, as JSON
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	entry := ParseLine(lines[0])
	assert.True(t, entry.IsValid)
	assert.Equal(t, "kept", entry.Msg)
	assert.Equal(t, "dbpedia", entry.Attrs["dataset"])
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelFromString("DEBUG"))
	assert.Equal(t, slog.LevelInfo, LevelFromString("info"))
	assert.Equal(t, slog.LevelWarn, LevelFromString("warning"))
	assert.Equal(t, slog.LevelError, LevelFromString("error"))
	assert.Equal(t, slog.LevelInfo, LevelFromString("verbose"))
}

func TestFindLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.log")

	_, err := FindLogFile(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o644))
	found, err := FindLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestRotatingWriter_Rotation(t *testing.T) {
	// Given: a writer whose size limit is zero
	path := filepath.Join(t.TempDir(), "rotate.log")
	w, err := NewRotatingWriter(path, 0, 3)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// When: writing twice
	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	// Then: the first write moved to .1
	rotated, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(rotated))
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(current))
}

func TestRotatingWriter_MaxFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "max.log")
	w, err := NewRotatingWriter(path, 0, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	for i := 0; i < 6; i++ {
		_, _ = w.Write([]byte(fmt.Sprintf("line %d\n", i)))
	}

	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_ReopensAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.log")
	w, err := NewRotatingWriter(path, 1, 1)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	_, err = w.Write([]byte("after close\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "after close\n", string(data))
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.log")
	w, err := NewRotatingWriter(path, 10, 3)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = w.Write([]byte(fmt.Sprintf(`{"id":%d,"iter":%d}`+"\n", id, j)))
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 400)
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "termdex.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestViewer_Tail(t *testing.T) {
	// Given: a log with mixed levels and one non-JSON line
	path := writeLog(t,
		`{"time":"2026-01-02T10:00:00Z","level":"DEBUG","msg":"row_skipped","row":3}`,
		`{"time":"2026-01-02T10:00:01Z","level":"INFO","msg":"index_committing","processed":100}`,
		`panic: something`,
		`{"time":"2026-01-02T10:00:02Z","level":"ERROR","msg":"search_failed","dataset":"dbpedia"}`,
	)

	t.Run("last n", func(t *testing.T) {
		entries, err := NewViewer(ViewerConfig{}, nil).Tail(path, 2)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.False(t, entries[0].IsValid)
		assert.Equal(t, "search_failed", entries[1].Msg)
	})

	t.Run("level filter keeps raw lines", func(t *testing.T) {
		entries, err := NewViewer(ViewerConfig{Level: "info"}, nil).Tail(path, 0)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "index_committing", entries[0].Msg)
	})

	t.Run("substring filter", func(t *testing.T) {
		entries, err := NewViewer(ViewerConfig{Contains: "dbpedia"}, nil).Tail(path, 0)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "ERROR", entries[0].Level)
	})
}

func TestViewer_TailMissingFile(t *testing.T) {
	_, err := NewViewer(ViewerConfig{}, nil).Tail(filepath.Join(t.TempDir(), "none.log"), 10)
	assert.Error(t, err)
}

func TestFormatEntry(t *testing.T) {
	entry := LogEntry{
		Time:    time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
		Level:   "info",
		Msg:     "build_complete",
		Attrs:   map[string]any{"success": 4, "errors": 1},
		IsValid: true,
	}

	assert.Equal(t, "10:00:00.000 INFO  build_complete errors=1 success=4", FormatEntry(entry))
	assert.Equal(t, "not json", FormatEntry(LogEntry{Raw: "not json"}))
}

func TestViewer_Print(t *testing.T) {
	var buf bytes.Buffer
	NewViewer(ViewerConfig{}, &buf).Print([]LogEntry{{Raw: "a"}, {Raw: "b"}})

	assert.Equal(t, "a\nb\n", buf.String())
}
