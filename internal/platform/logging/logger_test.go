package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" WARN ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"info":    LevelInfo,
		"chatty":  LevelInfo,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseLevel(raw), raw)
	}
}

func TestLogger_FieldsFromArgs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).Named("scheduler")

	logger.WarnContext(context.Background(), "phase task handler failed",
		"game_code", "ABC123",
		"round", 2,
		"error", errors.New("boom"),
		"dangling",
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "scheduler", entry.LoggerName)
	fields := entry.ContextMap()
	assert.Equal(t, "ABC123", fields["game_code"])
	assert.EqualValues(t, 2, fields["round"])
	assert.Equal(t, "boom", fields["error"])
	assert.Contains(t, fields, "dangling")
}

func TestDefault_FallsBackToNop(t *testing.T) {
	SetDefault(nil)
	require.NotNil(t, Default())

	var nilLogger *Logger
	assert.NotPanics(t, func() { nilLogger.Info("ignored") })
}
