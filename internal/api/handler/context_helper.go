package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"hr-access/backend/internal/model"
	"hr-access/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetOrganizationID 从 Gin 上下文中提取管理员所属组织
func MustGetOrganizationID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("organization_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return 0, false
	}
	id, ok := v.(int64)
	if !ok || id <= 0 {
		response.Forbidden(c, 10003, "Token 未绑定组织")
		return 0, false
	}
	return id, true
}

// MustGetClient 从 Gin 上下文中提取 updater 客户端（Basic 认证中间件注入）
func MustGetClient(c *gin.Context) (*model.TourniquetClient, bool) {
	v, exists := c.Get("updater_client")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	client, ok := v.(*model.TourniquetClient)
	if !ok || client == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return client, true
}

// parseIDParam 解析路径中的数字 id
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, 10001, "ID 格式无效")
		return 0, false
	}
	return id, true
}
