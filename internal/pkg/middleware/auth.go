package middleware

import (
	"net/http"
	"strings"

	"nextspay/pkg/response"
	"nextspay/pkg/utils"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	CtxAdminID  = "adminID"
	CtxUsername = "username"
	CtxRole     = "role"
)

// AuthMiddleware JWT认证中间件
func AuthMiddleware(issuer *utils.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, response.ErrAuthFailed, "Authorization header is required")
			return
		}

		// 检查格式 "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Abort(c, http.StatusUnauthorized, response.ErrAuthFailed, "Invalid authorization header format")
			return
		}

		claims, err := issuer.ParseToken(parts[1])
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, response.ErrAuthFailed, "Invalid or expired token")
			return
		}

		c.Set(CtxAdminID, claims.AdminID)
		c.Set(CtxUsername, claims.Username)
		c.Set(CtxRole, claims.Role)

		c.Next()
	}
}

// RoleMiddleware 角色校验, 需在 AuthMiddleware 之后使用
func RoleMiddleware(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		if role == "" {
			response.Abort(c, http.StatusUnauthorized, response.ErrNoPermission, "Unauthorized")
			return
		}
		if _, ok := allowed[role]; !ok {
			response.Abort(c, http.StatusForbidden, response.ErrNoPermission, "Permission denied")
			return
		}
		c.Next()
	}
}
