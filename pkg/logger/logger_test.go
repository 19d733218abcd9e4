package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitConfiguresLevel(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	require.NoError(t, Init("debug", "json"))
	require.True(t, Logger().Core().Enabled(zap.DebugLevel))

	require.NoError(t, Init("warn", "console"))
	require.False(t, Logger().Core().Enabled(zap.InfoLevel))
}

func TestInitFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { Replace(nil) })

	require.NoError(t, Init("chatty", ""))
	require.True(t, Logger().Core().Enabled(zap.InfoLevel))
	require.False(t, Logger().Core().Enabled(zap.DebugLevel))
}

func TestWithModuleAnnotatesEntries(t *testing.T) {
	core, recorded := observer.New(zap.DebugLevel)
	t.Cleanup(func() { Replace(nil) })
	Replace(zap.New(core))

	WithModule("reconciler").Info("cycle complete")
	Warn("source unavailable")

	require.Equal(t, 2, recorded.Len())
	entry := recorded.All()[0]
	require.Equal(t, "cycle complete", entry.Message)
	require.Equal(t, "reconciler", entry.ContextMap()["module"])
}
