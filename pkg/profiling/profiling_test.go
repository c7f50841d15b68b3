package profiling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTrue(t *testing.T) {
	for _, s := range []string{"true", "1", "YES", " on "} {
		assert.True(t, isTrue(s), s)
	}
	for _, s := range []string{"", "false", "0", "off", "enabled"} {
		assert.False(t, isTrue(s), s)
	}
}

func TestInitProfiling_Disabled(t *testing.T) {
	t.Setenv("PYROSCOPE_PROFILING_ENABLED", "false")
	stop := InitProfiling("mobility-test")
	assert.NotNil(t, stop)
	stop()
}
