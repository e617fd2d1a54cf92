package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"hr-access/backend/internal/model"
	"hr-access/backend/internal/service"
	"hr-access/backend/pkg/response"
)

// ClientAuthenticator updater 客户端凭证校验，由 DeviceSyncService 实现
type ClientAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (*model.TourniquetClient, error)
}

// UpdaterAuth updater 客户端 HTTP Basic 认证中间件
// 认证成功后将客户端注入上下文 updater_client；凭证无效 401，查询失败 500
func UpdaterAuth(auth ClientAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok || username == "" {
			c.Header("WWW-Authenticate", `Basic realm="updater"`)
			response.Unauthorized(c, 40003, "缺少 updater 客户端凭证")
			c.Abort()
			return
		}

		client, err := auth.Authenticate(c.Request.Context(), username, password)
		switch {
		case errors.Is(err, service.ErrInvalidClientCredentials):
			c.Header("WWW-Authenticate", `Basic realm="updater"`)
			response.Unauthorized(c, 40003, "updater 客户端凭证无效")
			c.Abort()
			return
		case err != nil:
			response.InternalError(c)
			c.Abort()
			return
		}

		c.Set("updater_client", client)
		c.Next()
	}
}
