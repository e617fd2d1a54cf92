package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hr-access/backend/internal/service"
	"hr-access/backend/pkg/response"
)

// BodyLimit 请求体大小限制中间件
// 抓拍图片随推送一起上传，上限按图片大小配置
// reject 非 nil 时由它写响应（设备推送路由），否则返回 413
func BodyLimit(maxBytes int64, reject RejectFunc) gin.HandlerFunc {
	tooLarge := func(c *gin.Context) {
		if reject != nil {
			reject(c, service.MsgPayloadTooLarge)
			return
		}
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
	}

	return func(c *gin.Context) {
		if maxBytes <= 0 {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxBytes {
			tooLarge(c)
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		c.Next()

		if c.Writer.Written() {
			return
		}
		var mbe *http.MaxBytesError
		for _, err := range c.Errors {
			if errors.As(err.Err, &mbe) {
				tooLarge(c)
				return
			}
		}
	}
}
