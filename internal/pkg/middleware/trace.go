package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceHeader 链路追踪头, 回调和后台请求都会透传
const TraceHeader = "X-Trace-ID"

// TraceIDKey gin.Context 中追踪 ID 的键
const TraceIDKey = "traceID"

type traceCtxKey struct{}

// TraceMiddleware 为每个请求分配追踪 ID, 同时写入 request context 供 service 层日志使用
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceHeader, traceID)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), traceCtxKey{}, traceID))

		c.Next()
	}
}

// TraceID 从 context 读取追踪 ID, 不存在时返回空串
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceCtxKey{}).(string)
	return id
}
