package requestctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifiersRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, Organization(ctx))

	ctx = WithOrganization(WithRequestID(ctx, "req-1"), "acme")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "acme", Organization(ctx))
}

func TestLoggerAddsIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithOrganization(WithRequestID(context.Background(), "req-2"), "acme")
	Logger(ctx, base).Info("parameters loaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-2", entry["requestId"])
	assert.Equal(t, "acme", entry["callerOrganizationId"])

	buf.Reset()
	Logger(context.Background(), base).Info("parameters loaded")
	entry = map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "requestId")
}
