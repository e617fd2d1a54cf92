package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hr-access/backend/config"
	"hr-access/backend/internal/model"
	"hr-access/backend/internal/service"
	"hr-access/backend/pkg/jwt"
	"hr-access/backend/pkg/redis"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAuthenticator struct {
	client *model.TourniquetClient
	err    error
}

func (s *stubAuthenticator) Authenticate(_ context.Context, username, password string) (*model.TourniquetClient, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.client != nil && username == s.client.Username && password == "s3cret-pass" {
		return s.client, nil
	}
	return nil, service.ErrInvalidClientCredentials
}

func TestUpdaterAuth(t *testing.T) {
	auth := &stubAuthenticator{client: &model.TourniquetClient{ID: 3, Username: "updater-1"}}
	r := gin.New()
	r.GET("/pending", UpdaterAuth(auth), func(c *gin.Context) {
		v, _ := c.Get("updater_client")
		c.String(http.StatusOK, v.(*model.TourniquetClient).Username)
	})

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/pending", nil)
		req.SetBasicAuth("updater-1", "s3cret-pass")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "updater-1", w.Body.String())
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/pending", nil)
		req.SetBasicAuth("updater-1", "nope")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pending", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("lookup failure", func(t *testing.T) {
		auth.err = errors.New("connection refused")
		t.Cleanup(func() { auth.err = nil })

		req := httptest.NewRequest(http.MethodGet, "/pending", nil)
		req.SetBasicAuth("updater-1", "s3cret-pass")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Empty(t, w.Header().Get("WWW-Authenticate"), "存储故障不应要求客户端重新认证")
	})
}

func TestJWTAuth_InjectsOrganization(t *testing.T) {
	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "test-secret-key-for-unit-testing", AccessTokenTTL: time.Hour, Issuer: "hr-access"})
	token, err := mgr.GenerateAccessToken("admin-1", "admin", 42)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/admin", JWTAuth(mgr), RoleAuth("admin"), func(c *gin.Context) {
		assert.Equal(t, int64(42), c.GetInt64("organization_id"))
		assert.Equal(t, "admin-1", c.GetString("user_id"))
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Token "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleAuth_Forbidden(t *testing.T) {
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) { c.Set("role", "viewer") }, RoleAuth("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	client := redis.NewFromGoRedis(rdb, zap.NewNop())

	r := gin.New()
	r.POST("/events", RateLimit(client, "ingest", 2, time.Minute, zap.NewNop(), nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// Redis 宕机后降级放行
	mr.Close()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_NilRedis(t *testing.T) {
	r := gin.New()
	r.POST("/events", RateLimit(nil, "ingest", 1, time.Minute, zap.NewNop(), nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/events", BodyLimit(8, nil), func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("short")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("much longer body")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// 未声明长度时由 MaxBytesReader 截断
	req := httptest.NewRequest(http.MethodPost, "/events", io.NopCloser(bytes.NewReader([]byte("much longer body"))))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRateLimit_RejectFunc(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	client := redis.NewFromGoRedis(rdb, zap.NewNop())

	var reasons []string
	reject := func(c *gin.Context, reason string) {
		reasons = append(reasons, reason)
		c.Status(http.StatusOK)
	}

	r := gin.New()
	r.POST("/events", RateLimit(client, "ingest", 1, time.Minute, zap.NewNop(), reject), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{201, 200}, codes)
	assert.Equal(t, []string{service.MsgRateLimited}, reasons)
}

func TestBodyLimit_RejectFunc(t *testing.T) {
	var reasons []string
	reject := func(c *gin.Context, reason string) {
		reasons = append(reasons, reason)
		c.Status(http.StatusOK)
	}

	r := gin.New()
	r.POST("/events", BodyLimit(8, reject), func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.Error(err)
			return
		}
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("much longer body")))
	assert.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/events", io.NopCloser(bytes.NewReader([]byte("much longer body"))))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{service.MsgPayloadTooLarge, service.MsgPayloadTooLarge}, reasons)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/health", RequestID(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 100))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Len(t, w.Body.String(), 36, "超长 ID 应被替换为 UUID")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://admin.local/"}, "/api/v1/admin"))
	r.GET("/api/v1/admin/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/tourniquet/events", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/admin/x", nil)
	req.Header.Set("Origin", "http://admin.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://admin.local", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotContains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/x", nil)
	req.Header.Set("Origin", "http://evil.local")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	// 设备推送不走浏览器，即使来源在白名单内也不输出 CORS 头
	req = httptest.NewRequest(http.MethodPost, "/api/v1/tourniquet/events", nil)
	req.Header.Set("Origin", "http://admin.local")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders("/api/v1/admin"))
	r.GET("/api/v1/admin/ingest-results", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/updater/devices/1/pending", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/admin/ingest-results", nil))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/updater/devices/1/pending", nil))
	assert.Empty(t, w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}
