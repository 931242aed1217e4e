package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCurrent(t *testing.T) {
	build := Current()
	require.Equal(t, GetVersion(), build.Version)
	require.NotEmpty(t, build.Commit)
	require.NotEmpty(t, build.Date)
	require.Equal(t, runtime.Version(), build.GoVersion)
}

func TestBuildString(t *testing.T) {
	b := Build{Version: "2.1.0", Commit: "abc123", Date: "2024-05-01", GoVersion: "go1.24.0"}
	require.Equal(t, "2.1.0 (commit abc123, built 2024-05-01, go1.24.0)", b.String())
}
