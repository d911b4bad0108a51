package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "micro-quiz", "test", "warn")

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Str("attempt_id", "a1").Msg("timer expired")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "micro-quiz", entry["app"])
	assert.Equal(t, "test", entry["env"])
	assert.Equal(t, "a1", entry["attempt_id"])
	assert.Equal(t, "warn", entry["level"])
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(&buf, "micro-quiz", "test", "debug")

	ctx := IntoContext(context.Background(), logger)
	fromCtx := FromContext(ctx)
	fromCtx.Debug().Msg("from context")
	assert.Contains(t, buf.String(), "from context")

	buf.Reset()
	nop := FromContext(context.Background())
	nop.Error().Msg("dropped")
	assert.Zero(t, buf.Len())
}
