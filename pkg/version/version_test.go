package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersion(t *testing.T) {
	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "unknown", GetGitCommit())
	assert.Equal(t, "unknown", GetBuildDate())
}

func TestString(t *testing.T) {
	s := String()
	assert.Contains(t, s, "dev")
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
}
