package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"doom-loot/internal/pkg/ctxkey"
	"doom-loot/internal/pkg/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer) Logger {
	return NewLogger(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestContextHandlerAddsPlayerAndEncounter(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(&buf)

	ctx := ctxkey.WithValue(context.Background(), ctxkey.PlayerID, "12345")
	ctx = ctxkey.WithValue(ctx, ctxkey.EncounterID, "enc-1")
	logger.InfoContext(ctx, "boss sighted")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "boss sighted", line["msg"])
	assert.Equal(t, "12345", line["player_id"])
	assert.Equal(t, "enc-1", line["encounter_id"])
}

func TestLogAppErrorUsesLevel(t *testing.T) {
	tests := []struct {
		name  string
		err   *xerrors.AppError
		level string
	}{
		{name: "损坏行记录为 WARN", err: xerrors.FromCode(xerrors.CodeRecordCorrupt), level: "WARN"},
		{name: "读写失败记录为 ERROR", err: xerrors.NewStorageError("append", "x", errors.New("io")), level: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			LogAppError(context.Background(), newJSONLogger(&buf), "failed", tt.err)

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.level, line["level"])
			assert.Contains(t, line, "app_error")
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
