package preflight

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bold-kg/termdex/internal/errors"
)

func TestCheckStatus_String(t *testing.T) {
	assert.Equal(t, "PASS", StatusPass.String())
	assert.Equal(t, "WARN", StatusWarn.String())
	assert.Equal(t, "FAIL", StatusFail.String())
	assert.Equal(t, "UNKNOWN", CheckStatus(9).String())
}

func TestCheckResult_IsCritical(t *testing.T) {
	assert.True(t, CheckResult{Required: true, Status: StatusFail}.IsCritical())
	assert.False(t, CheckResult{Required: false, Status: StatusFail}.IsCritical())
	assert.False(t, CheckResult{Required: true, Status: StatusWarn}.IsCritical())
}

func TestForBuild_Passes(t *testing.T) {
	// Given: a small input and a destination whose parent does not exist yet
	dir := t.TempDir()
	input := filepath.Join(dir, "terms.tsv")
	require.NoError(t, os.WriteFile(input, []byte("?iri\t?label\t?count\t?pos\t?type\n"), 0644))

	// When: checking
	results := New(WithMinFreeBytes(1)).ForBuild([]string{input, "-"}, filepath.Join(dir, "a", "b", "idx"))

	// Then: every check ran and none is critical
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"write_permissions", "disk_space", "file_descriptors"}, names)
	assert.False(t, HasCriticalFailures(results))
	assert.NoError(t, Err(results))
}

func TestCheckDiskSpace_BelowMinimum(t *testing.T) {
	c := New(WithMinFreeBytes(math.MaxUint64))

	result := c.CheckDiskSpace(t.TempDir(), 0)

	assert.Equal(t, StatusFail, result.Status)
	err := Err([]CheckResult{result})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDiskFull, errors.GetCode(err))
}

func TestCheckDiskSpace_BelowEstimateWarns(t *testing.T) {
	c := New(WithMinFreeBytes(1))

	result := c.CheckDiskSpace(t.TempDir(), math.MaxUint64)

	assert.Equal(t, StatusWarn, result.Status)
	assert.Len(t, Warnings([]CheckResult{result}), 1)
	assert.NoError(t, Err([]CheckResult{result}))
}

func TestCheckWritePermissions_ReadOnly(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root can write to read-only directories")
	}
	dir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(dir, 0555))
	defer func() { _ = os.Chmod(dir, 0755) }()

	result := New().CheckWritePermissions(dir)

	assert.Equal(t, StatusFail, result.Status)
	assert.Equal(t, errors.ErrCodeFilePermission, errors.GetCode(Err([]CheckResult{result})))
}

func TestCheckWritePermissions_LeavesNothingBehind(t *testing.T) {
	dir := t.TempDir()

	result := New().CheckWritePermissions(dir)

	assert.Equal(t, StatusPass, result.Status)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrintResults(t *testing.T) {
	buf := &bytes.Buffer{}

	PrintResults(buf, []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50 GB free"},
		{Name: "file_descriptors", Status: StatusWarn, Message: "256", Details: "raise it"},
	})

	assert.Equal(t, "[PASS] disk_space: 50 GB free\n[WARN] file_descriptors: 256\n      raise it\n", buf.String())
}
