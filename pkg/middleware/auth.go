package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"insight-service/pkg/config"
	"insight-service/pkg/errno"
	"insight-service/pkg/restapi"
)

// AuthClaims 令牌携带的用户信息
type AuthClaims struct {
	UserUUID string `json:"user_uuid"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware 校验Bearer令牌并把user_uuid写入上下文。
// 签发不在本服务，只做验签取身份。
func JWTAuthMiddleware(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			restapi.Failed(c, errno.ErrUnauthorized)
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		claims := &AuthClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.Secret), nil
		})
		if err != nil || !token.Valid || claims.UserUUID == "" {
			restapi.Failed(c, errno.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set("user_uuid", claims.UserUUID)
		c.Next()
	}
}

// UserUUIDFromContext 读取认证后的用户标识
func UserUUIDFromContext(c *gin.Context) string {
	if v, ok := c.Get("user_uuid"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
