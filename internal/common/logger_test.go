package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T) *bytes.Buffer {
	t.Helper()

	buf := &bytes.Buffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	return record
}

func TestLogErrorIncludesErrorAndFields(t *testing.T) {
	buf := captureJSON(t)

	LogError(errors.New("backend down"), "Reconciliation failed", Fields{
		"account": "acc-1",
		"attempt": 3,
	})

	record := decodeRecord(t, buf)
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "Reconciliation failed", record["msg"])
	assert.Equal(t, "backend down", record["error"])
	assert.Equal(t, "acc-1", record["account"])
	assert.Equal(t, float64(3), record["attempt"])
}

func TestLogInfoAndDebugRenderFields(t *testing.T) {
	buf := captureJSON(t)

	LogInfo("Serving", Fields{"backend": "ynab"})
	record := decodeRecord(t, buf)
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "ynab", record["backend"])

	buf.Reset()
	LogDebug("Dropping duplicate", Fields{"fingerprint": "abc"})
	record = decodeRecord(t, buf)
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "abc", record["fingerprint"])
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	require.NoError(t, SetupLogger(slog.LevelInfo, "json"))
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
}
