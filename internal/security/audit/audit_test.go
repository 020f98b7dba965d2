package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tenantonboard/internal/observability/requestid"
)

func TestLogTransitionCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	al := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := requestid.With(context.Background(), "req-1")
	al.LogTransition(ctx, "p1", "a", "b", StatusSuccess)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "audit", rec["log_type"])
	assert.Equal(t, "promote", rec["action"])
	assert.Equal(t, "p1", rec["resource_id"])
	assert.Equal(t, "a -> b", rec["details"])
	assert.Equal(t, "req-1", rec["request_id"])
}
