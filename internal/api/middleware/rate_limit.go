package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hr-access/backend/internal/service"
	"hr-access/backend/pkg/redis"
	"hr-access/backend/pkg/response"
)

// RejectFunc 接管被中间件拒绝的请求的响应，reason 取 service.Msg* 常量
// 设备推送路由用它保证始终 200 并写审计日志；为 nil 时按普通 4xx 返回
type RejectFunc func(c *gin.Context, reason string)

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// scope: 限流维度前缀（如 ingest / updater），同一 IP 在不同维度独立计数
// rdb 为 nil 或 Redis 出错时降级放行，设备推送不能因限流组件故障而丢失
func RateLimit(rdb *redis.Client, scope string, limit int, window time.Duration, logger *zap.Logger, reject RejectFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s:%s", scope, c.ClientIP(), c.FullPath())
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("限流检查失败，降级放行", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		if !allowed {
			logger.Warn("请求被限流", zap.String("scope", scope), zap.String("ip", c.ClientIP()))
			if reject != nil {
				reject(c, service.MsgRateLimited)
			} else {
				response.TooManyRequests(c, 10004, "请求过于频繁，请稍后再试")
			}
			c.Abort()
			return
		}

		c.Next()
	}
}
