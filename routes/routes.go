package routes

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"swpmbridge/handlers"
	"swpmbridge/utils"
)

// AuthMiddleware 驗證 JWT token，並提取 role 與 subject
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			handlers.AbortWithError(c, http.StatusUnauthorized, "缺少 Authorization 標頭", "Authorization header is required", "ERR_NO_AUTH_HEADER")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			handlers.AbortWithError(c, http.StatusUnauthorized, "無效的 Authorization 格式", "Authorization header must be in the format 'Bearer <token>'", "ERR_INVALID_AUTH_FORMAT")
			return
		}

		claims, err := utils.ParseToken(secret, parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				handlers.AbortWithError(c, http.StatusUnauthorized, "token 已過期", "Token has expired", "ERR_TOKEN_EXPIRED")
			} else {
				handlers.AbortWithError(c, http.StatusUnauthorized, "無效的 token", err.Error(), "ERR_INVALID_TOKEN")
			}
			return
		}

		// 確認 role 字段
		if claims.Role != utils.RoleAdmin && claims.Role != utils.RoleFormHost {
			handlers.AbortWithError(c, http.StatusUnauthorized, "無效的角色", "Invalid role in token", "ERR_INVALID_ROLE")
			return
		}

		c.Set("role", claims.Role)
		c.Set("subject", claims.Subject)
		c.Next()
	}
}

// RoleMiddleware 檢查呼叫端角色是否符合要求
func RoleMiddleware(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			handlers.AbortWithError(c, http.StatusUnauthorized, "無法獲取角色資訊", "Role not found in context", "ERR_ROLE_NOT_FOUND")
			return
		}

		roleStr, ok := role.(string)
		if !ok {
			handlers.AbortWithError(c, http.StatusUnauthorized, "無效的角色類型", "Invalid role type", "ERR_INVALID_ROLE_TYPE")
			return
		}

		// 允許 admin 角色訪問所有端點
		if roleStr == utils.RoleAdmin {
			c.Next()
			return
		}

		for _, allowedRole := range allowedRoles {
			if roleStr == allowedRole {
				c.Next()
				return
			}
		}

		handlers.AbortWithError(c, http.StatusForbidden, "權限不足", "Insufficient role permissions", "ERR_INSUFFICIENT_PERMISSIONS")
	}
}

// RequestLogger 以 zap 記錄每個請求
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func Path(router *gin.RouterGroup, h *handlers.Handler, secret []byte) {
	// 版本控制
	v1 := router.Group("/v1")
	{
		// 測試路由
		v1.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "pong"})
		})

		auth := v1.Group("")
		auth.Use(AuthMiddleware(secret))

		// 表單 hook 與設定
		forms := auth.Group("/forms/:id")
		{
			forms.POST("/submissions", RoleMiddleware(utils.RoleFormHost), h.SubmitForm)
			forms.POST("/validate", RoleMiddleware(utils.RoleFormHost), h.ValidateForm)
			forms.GET("/error", RoleMiddleware(utils.RoleFormHost), h.PopFormError)
			forms.GET("", RoleMiddleware(utils.RoleAdmin), h.GetForm)
			forms.PUT("", RoleMiddleware(utils.RoleAdmin), h.SaveForm)
			forms.GET("/mappings", RoleMiddleware(utils.RoleAdmin), h.GetFormMappings)
		}

		auth.GET("/levels", RoleMiddleware(utils.RoleFormHost), h.GetMembershipLevels)
		auth.GET("/members/:id", RoleMiddleware(utils.RoleAdmin), h.GetMember)
		auth.GET("/logs", RoleMiddleware(utils.RoleAdmin), h.GetLogs)
	}
}
