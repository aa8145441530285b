package middleware

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/dineflow/pkg/logger"
	"github.com/d60-Lab/dineflow/pkg/response"
)

// Recovery panic 兜底：记日志、上报 sentry、返回通用 500
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.FullPath()),
					zap.Stack("stack"))
				if hub := sentry.CurrentHub(); hub.Client() != nil {
					hub.Recover(r)
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
					Success: false, Message: "internal server error",
				})
			}
		}()
		c.Next()
	}
}
