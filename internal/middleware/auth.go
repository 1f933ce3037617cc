// Package middleware 提供 HTTP 中间件
package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dumeirei/storefront-backend/internal/common/jwt"
	"github.com/dumeirei/storefront-backend/internal/common/response"
)

// 上下文键
const (
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "role"
	ContextKeyClaims = "claims"
)

// Auth 认证中间件，role 非空时要求令牌角色一致
func Auth(manager *jwt.Manager, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		claims, err := manager.ParseToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.Unauthorized(c, "登录已过期，请重新登录")
			} else {
				response.Unauthorized(c, "无效的令牌")
			}
			c.Abort()
			return
		}

		if role != "" && claims.Role != role {
			response.Forbidden(c, "无权访问")
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyRole, claims.Role)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// UserAuth 顾客及管理员均可访问
func UserAuth(manager *jwt.Manager) gin.HandlerFunc {
	return Auth(manager, "")
}

// AdminAuth 仅管理员
func AdminAuth(manager *jwt.Manager) gin.HandlerFunc {
	return Auth(manager, jwt.RoleAdmin)
}

func extractToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	token, _ := c.Cookie("token")
	return token
}

// GetUserID 从上下文获取用户 ID，未登录返回 0
func GetUserID(c *gin.Context) int64 {
	if v, ok := c.Get(ContextKeyUserID); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

// GetAdminID 管理员 ID，非管理员返回 0
func GetAdminID(c *gin.Context) int64 {
	if GetRole(c) != jwt.RoleAdmin {
		return 0
	}
	return GetUserID(c)
}

// GetRole 从上下文获取角色
func GetRole(c *gin.Context) string {
	return c.GetString(ContextKeyRole)
}

// GetClaims 从上下文获取完整的 Claims
func GetClaims(c *gin.Context) *jwt.Claims {
	if v, ok := c.Get(ContextKeyClaims); ok {
		claims, _ := v.(*jwt.Claims)
		return claims
	}
	return nil
}
