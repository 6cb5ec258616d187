package logger

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WithTraceID 把 trace id 放进 ctx, traceID 为空时生成 UUID v4
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = NewTraceID()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID 取不到时返回空串
func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

func NewTraceID() string {
	return uuid.New().String()
}

// WithUserID 记录当前请求的用户, 之后的 *Context 日志都带 user_id
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) (uint, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(UserIDKey).(uint)
	return id, ok && id != 0
}

// contextFields ctx 中可写进日志的字段
func contextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	if userID, ok := GetUserID(ctx); ok {
		fields = append(fields, zap.Uint("user_id", userID))
	}
	return fields
}
