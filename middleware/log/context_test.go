package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTraceIDContext(t *testing.T) {
	t.Run("keeps the provided id", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "trace-123")
		assert.Equal(t, "trace-123", GetTraceID(ctx))
	})

	t.Run("generates a uuid when empty", func(t *testing.T) {
		id := GetTraceID(WithTraceID(context.Background(), ""))
		assert.Len(t, id, 36)
	})

	t.Run("preserves other values", func(t *testing.T) {
		type key string
		ctx := context.WithValue(context.Background(), key("k"), "v")
		ctx = WithTraceID(ctx, "trace-456")

		assert.Equal(t, "trace-456", GetTraceID(ctx))
		assert.Equal(t, "v", ctx.Value(key("k")))
	})
}

func TestGetTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	//nolint:staticcheck // nil context is handled explicitly
	assert.Empty(t, GetTraceID(nil))

	ctx := context.WithValue(context.Background(), TraceIDKey, 42)
	assert.Empty(t, GetTraceID(ctx), "non-string values are ignored")
}

func TestNewTraceID(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestUserIDContext(t *testing.T) {
	_, ok := GetUserID(context.Background())
	assert.False(t, ok)

	ctx := WithUserID(WithTraceID(context.Background(), "trace-u"), 42)
	id, ok := GetUserID(ctx)
	require.True(t, ok)
	assert.EqualValues(t, 42, id)

	fields := contextFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "trace_id", fields[0].Key)
	assert.Equal(t, "user_id", fields[1].Key)

	_, ok = GetUserID(WithUserID(context.Background(), 0))
	assert.False(t, ok, "zero is not a user")
}
