package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/dineflow/config"
	"github.com/d60-Lab/dineflow/internal/model"
	"github.com/d60-Lab/dineflow/pkg/response"
)

const (
	ctxKeyStaffID = "staff_id"
	ctxKeyRole    = "staff_role"
)

// Claims 后台账号的 JWT 载荷
type Claims struct {
	Role model.StaffRole `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken 签发后台访问令牌
func GenerateToken(cfg config.JWTConfig, staff *model.Staff) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: staff.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   staff.ID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// AuthRequired 解析 Bearer 令牌并注入身份
func AuthRequired(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			response.Unauthorized(c, "missing bearer token")
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.Secret), nil
		})
		if err != nil || !token.Valid {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ctxKeyStaffID, claims.Subject)
		c.Set(ctxKeyRole, claims.Role)
		c.Next()
	}
}

// RequireRole 角色门禁，需在 AuthRequired 之后
func RequireRole(roles ...model.StaffRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		got, ok := c.Get(ctxKeyRole)
		if !ok {
			response.Forbidden(c, "role missing from session")
			c.Abort()
			return
		}
		role := got.(model.StaffRole)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "insufficient role")
		c.Abort()
	}
}

// StaffID 取当前登录后台账号 ID（未登录为空串）
func StaffID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyStaffID); ok {
		return v.(string)
	}
	return ""
}
