package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/dineflow/pkg/response"
)

// RateLimit 按客户端 IP 限流；收银台会话创建等外呼接口使用
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		mu.Lock()
		lim, ok := limiters[ip]
		if !ok {
			lim = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[ip] = lim
		}
		mu.Unlock()

		if !lim.Allow() {
			c.JSON(http.StatusTooManyRequests, response.Response{
				Success: false, Message: "too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
