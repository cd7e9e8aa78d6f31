package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_SemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	assert.Regexp(t, semver, Version)
}

func TestString_ContainsBuildInfo(t *testing.T) {
	// Given: injected build values
	oldVersion, oldCommit, oldDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = oldVersion, oldCommit, oldDate })
	Version, Commit, Date = "1.2.3", "abc1234", "2026-01-02T00:00:00Z"

	// When: formatting
	s := String()

	// Then: the banner names the binary and every value
	assert.Equal(t, "termdex 1.2.3 (commit: abc1234, built: 2026-01-02T00:00:00Z, go: "+runtime.Version()+")", s)
	assert.Equal(t, "1.2.3", Short())
}

func TestGetInfo_JSON(t *testing.T) {
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"version", "commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, runtime.GOOS, decoded["os"])
	assert.Equal(t, runtime.GOARCH, decoded["arch"])
}
