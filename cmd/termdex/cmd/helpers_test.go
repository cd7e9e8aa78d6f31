package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// sandbox isolates config, logs and the working directory.
func sandbox(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("TERMDEX_LOG_FILE", filepath.Join(dir, "logs", "termdex.log"))
	t.Chdir(dir)
	return dir
}

// run executes the CLI and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd, opts := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	require.NoError(t, opts.finish())
	return stdout.String(), stderr.String(), err
}

const exportTSV = "?iri\t?label\t?count\t?pos\t?type\n" +
	"<http://dbpedia.org/resource/Berlin>\tBerlin\t100\tsubject\tCity\n" +
	"<http://dbpedia.org/resource/Paris>\tParis\t80\tsubject\tCity\n" +
	"<http://dbpedia.org/ontology/birthPlace>\tbirth place\t50\tproperty\tProperty\n" +
	"\"Berlin Wall\"@en\tBerlin Wall\t5\tvalue\tLiteral\n" +
	"<http://dbpedia.org/resource/Albert_Einstein>\tAlbert Einstein\t30\tsubject\tPerson\n" +
	"<http://broken>\tBroken\tmany\tsubject\tThing\n"

func writeExport(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "terms.tsv")
	require.NoError(t, os.WriteFile(path, []byte(exportTSV), 0644))
	return path
}
