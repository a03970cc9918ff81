package middleware

import (
	"strings"

	"quizicle_backend/internal/model"
	"quizicle_backend/internal/repository"
	"quizicle_backend/internal/util"
	"quizicle_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SecretFunc 返回当前 JWT 密钥，支持配置热更新
type SecretFunc func() string

func AuthMiddleware(secret SecretFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, secret())
		if err != nil {
			logger.Log.Debug("JWT解析失败", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// OptionalAuthMiddleware 携带合法令牌时注入身份，否则匿名放行
func OptionalAuthMiddleware(secret SecretFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if tokenString != "" {
			if claims, err := util.ParseJWT(tokenString, secret()); err == nil {
				c.Set("user", claims)
			}
		}
		c.Next()
	}
}

func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		if !user.IsSuperuser {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

type UserActivityRepo interface {
	Touch(id repository.Identity) (*model.User, error)
}

// ActivityMiddleware 同步写入用户行，保证后续外键引用存在
func ActivityMiddleware(repo UserActivityRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims != nil {
			_, err := repo.Touch(repository.Identity{
				UserID:      claims.UserID,
				Username:    claims.Username,
				Email:       claims.Email,
				IsSuperuser: claims.IsSuperuser,
			})
			if err != nil {
				util.LogInternalError(c, err)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
