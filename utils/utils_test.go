package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateOrderNumber(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000123)
	a := GenerateOrderNumber(now)
	b := GenerateOrderNumber(now)

	require.Regexp(t, regexp.MustCompile(`^ORD-1700000000123-[0-9A-F]{9}$`), a)
	require.NotEqual(t, a, b)
}

func TestConfigureLogger(t *testing.T) {
	require.NoError(t, ConfigureLogger("debug", "text"))
	require.True(t, IsDebug())
	require.NoError(t, ConfigureLogger("info", "json"))
	require.False(t, IsDebug())

	require.Error(t, ConfigureLogger("loud", "json"))
	require.Error(t, ConfigureLogger("info", "xml"))
}
