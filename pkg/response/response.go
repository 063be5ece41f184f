package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MsgServerInternal 对外统一的内部错误提示, 具体原因只写日志
const MsgServerInternal = "服务器内部错误"

// Response 统一响应结构
type Response struct {
	Code      int         `json:"code"`      // 业务码, 200 表示成功
	Msg       string      `json:"msg"`       // 提示信息
	Result    interface{} `json:"result"`    // 数据, 失败时为 null
	Timestamp int64       `json:"timestamp"` // 服务器时间 (秒)
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	SuccessMsg(c, "success", data)
}

// SuccessMsg 带提示信息的成功响应
func SuccessMsg(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      CodeSuccess,
		Msg:       msg,
		Result:    data,
		Timestamp: time.Now().Unix(),
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:      errCode,
		Msg:       msg,
		Result:    nil,
		Timestamp: time.Now().Unix(),
	})
}

// InternalError 记录原始错误, 响应只返回通用提示
func InternalError(c *gin.Context, msg string, err error) {
	zap.L().Error(msg,
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("trace_id", c.GetString("traceID")),
		zap.Error(err),
	)
	Error(c, http.StatusInternalServerError, ErrServerInternal, MsgServerInternal)
}

// Fail 业务失败响应 (HTTP 200, 业务码非 200)
func Fail(c *gin.Context, errCode int, msg string) {
	Error(c, http.StatusOK, errCode, msg)
}

// Abort 错误响应并终止后续处理
func Abort(c *gin.Context, httpCode int, errCode int, msg string) {
	Error(c, httpCode, errCode, msg)
	c.Abort()
}
