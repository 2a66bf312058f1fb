package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesServiceAndModule(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "derivkit", Module: "engine", Level: "debug", Output: &buf})

	l.InfoContext(context.Background(), "priced", "price", 10.45)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "derivkit", rec["service"])
	assert.Equal(t, "engine", rec["module"])
	assert.Equal(t, 10.45, rec["price"])
	assert.Contains(t, rec, "timestamp")
}

func TestSetLevelFiltersAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "s", Module: "m", Level: "info", Output: &buf})

	l.Debug("hidden")
	assert.Zero(t, buf.Len())

	SetLevel("debug")
	defer SetLevel("info")
	l.Debug("shown")
	assert.NotZero(t, buf.Len())
}

func TestCallLogsFailuresAtWarn(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "s", Module: "engine", Level: "info", Output: &buf})

	l.Call(context.Background(), "price", "vanilla", "analytic", time.Millisecond, nil)
	assert.Zero(t, buf.Len())

	l.Call(context.Background(), "price", "vanilla", "lattice", time.Millisecond, errors.New("boom"))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "price failed", rec["msg"])
	assert.Equal(t, "lattice", rec["method"])
	assert.Equal(t, "boom", rec["error"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}
