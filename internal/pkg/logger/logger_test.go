package logger

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in    string
		level slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"Error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		level, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.level, level, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestInitSlogRoutesThroughZap(t *testing.T) {
	zl := InitSlog("debug", false)
	require.NotNil(t, zl)
	assert.Same(t, zl, zapLogger)
	assert.True(t, zl.Core().Enabled(-1), "debug level enabled")
	assert.Same(t, globalLogger, slog.Default())

	InitSlog("error", false)
	assert.False(t, zapLogger.Core().Enabled(0), "info disabled at error level")
}

func TestComponentAdapterPrependsAttrs(t *testing.T) {
	a := NewComponentAdapter("discovery").(*slogAdapter)
	assert.Equal(t, []any{"component", "discovery", "chain", "bsc"}, a.with([]any{"chain", "bsc"}))

	plain := &slogAdapter{}
	assert.Equal(t, []any{"k", 1}, plain.with([]any{"k", 1}))
}
