package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/rentalhub/internal/domain/user"
	apperrors "github.com/xiebiao/rentalhub/pkg/errors"
	"github.com/xiebiao/rentalhub/pkg/jwt"
	"github.com/xiebiao/rentalhub/pkg/response"
)

// Context中保存认证信息使用的key
const (
	ctxKeyUserID   = "user_id"
	ctxKeyEmail    = "email"
	ctxKeyNickname = "nickname"
	ctxKeyRole     = "role"
	ctxKeyToken    = "token"
	ctxKeyClaims   = "claims"
)

// Blacklist Token黑名单查询（Redis实现见persistence/redis.SessionStore）
type Blacklist interface {
	IsInBlacklist(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware JWT认证中间件
// 设计说明：
// 1. 从Header提取Token
// 2. 检查Token黑名单（已登出的Token）
// 3. 验证Token有效性
// 4. 将用户信息和角色注入Context，Handler通过GetActor取得操作者
type AuthMiddleware struct {
	jwtManager *jwt.Manager
	blacklist  Blacklist
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(jwtManager *jwt.Manager, blacklist Blacklist) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		blacklist:  blacklist,
	}
}

// RequireAuth 要求登录
// 使用方式：
//
//	authorized := r.Group("/api/v1/orders")
//	authorized.Use(authMiddleware.RequireAuth())
//	authorized.POST("", orderHandler.Create)
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从Header提取Token
		// 格式：Authorization: Bearer <token>
		tokenString, ok := bearerToken(c)
		if !ok {
			if c.GetHeader("Authorization") == "" {
				response.Error(c, apperrors.ErrUnauthorized)
			} else {
				response.ErrorWithCode(c, apperrors.ErrCodeInvalidToken, "Token格式错误")
			}
			c.Abort()
			return
		}

		// 2. 检查黑名单（用户已登出或Token被强制失效）
		isBlacklisted, err := m.blacklist.IsInBlacklist(c.Request.Context(), tokenString)
		if err != nil {
			response.Error(c, apperrors.WithCode(apperrors.ErrCodeRedisError, err, "验证Token失败"))
			c.Abort()
			return
		}
		if isBlacklisted {
			response.ErrorWithCode(c, apperrors.ErrCodeTokenExpired, "Token已失效，请重新登录")
			c.Abort()
			return
		}

		// 3. 验证Token并解析Claims
		claims, err := m.jwtManager.ParseToken(tokenString)
		if err != nil {
			response.Error(c, err) // 自动处理ErrTokenExpired、ErrInvalidToken
			c.Abort()
			return
		}

		// Refresh Token只能用于换取Access Token
		if claims.Refresh {
			response.Error(c, apperrors.ErrInvalidToken)
			c.Abort()
			return
		}

		setClaims(c, tokenString, claims)
		c.Next()
	}
}

// OptionalAuth 可选登录
// 说明：有Token则验证，没有则作为匿名用户继续（商品列表等公开接口）
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := m.jwtManager.ParseToken(tokenString)
		if err == nil && !claims.Refresh {
			setClaims(c, tokenString, claims)
		}
		c.Next()
	}
}

// RequireRole 要求指定角色（必须放在RequireAuth之后）
// 示例：管理员接口 admin.Use(auth.RequireAuth(), middleware.RequireRole(user.RoleAdmin))
func RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := GetActor(c)
		for _, r := range roles {
			if actor.Role == r && !actor.IsAnonymous() {
				c.Next()
				return
			}
		}
		response.Error(c, apperrors.ErrForbidden)
		c.Abort()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setClaims(c *gin.Context, token string, claims *jwt.Claims) {
	c.Set(ctxKeyUserID, claims.UserID)
	c.Set(ctxKeyEmail, claims.Email)
	c.Set(ctxKeyNickname, claims.Nickname)
	c.Set(ctxKeyRole, user.Role(claims.Role))
	c.Set(ctxKeyToken, token)
	c.Set(ctxKeyClaims, claims)
}

// =========================================
// Context辅助函数（供Handler使用）
// =========================================

// GetActor 从Context构造当前操作者
// 未登录时返回零值Actor（匿名），由应用层拒绝受保护的操作
func GetActor(c *gin.Context) user.Actor {
	role, _ := c.Get(ctxKeyRole)
	r, _ := role.(user.Role)
	return user.Actor{Role: r, UserID: GetUserID(c)}
}

// GetUserID 从Context获取当前登录用户ID
// 使用示例：
//
//	userID := middleware.GetUserID(c)
//	if userID == 0 {
//	    // 未登录
//	}
func GetUserID(c *gin.Context) uint {
	if userID, exists := c.Get(ctxKeyUserID); exists {
		if uid, ok := userID.(uint); ok {
			return uid
		}
	}
	return 0
}

// GetEmail 从Context获取当前登录用户邮箱
func GetEmail(c *gin.Context) string {
	return c.GetString(ctxKeyEmail)
}

// GetToken 当前请求携带的Access Token（登出时加入黑名单）
func GetToken(c *gin.Context) string {
	return c.GetString(ctxKeyToken)
}

// GetClaims 当前请求的Token声明
func GetClaims(c *gin.Context) *jwt.Claims {
	if v, exists := c.Get(ctxKeyClaims); exists {
		if claims, ok := v.(*jwt.Claims); ok {
			return claims
		}
	}
	return nil
}
