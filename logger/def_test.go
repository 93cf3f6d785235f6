package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	prev := Log()
	t.Cleanup(func() { Set(prev) })

	require.NoError(t, Init("loud", "console"))
	assert.True(t, Log().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Log().Core().Enabled(zapcore.DebugLevel))
}

func TestSet_ReplacesGlobals(t *testing.T) {
	prev := Log()
	t.Cleanup(func() { Set(prev) })

	l := zaptest.NewLogger(t)
	Set(l)
	assert.Same(t, l, Log())
	assert.Same(t, l, zap.L())
	assert.NotNil(t, S())
}
