package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHelpersWriteThroughReplacedLogger(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Replace(prev) })

	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))

	Info("attached", zap.Int64("user_id", 7))
	Infof("node=%d", 3)
	Errorf("failed: %s", "boom")
	Debug("noise")

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	require.Equal(t, "attached", entries[0].Message)
	require.Equal(t, int64(7), entries[0].ContextMap()["user_id"])
	require.Equal(t, "node=3", entries[1].Message)
	require.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	require.Equal(t, "failed: boom", entries[2].Message)
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { level.SetLevel(zapcore.DebugLevel) })

	SetLevel("WARN")
	require.Equal(t, zapcore.WarnLevel, level.Level())
	SetLevel("chatty")
	require.Equal(t, zapcore.WarnLevel, level.Level())
}
