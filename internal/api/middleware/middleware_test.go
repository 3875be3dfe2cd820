package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/guimashan/staff-schedule/config"
	"github.com/guimashan/staff-schedule/internal/model"
	"github.com/guimashan/staff-schedule/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestJWT() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{
		JWTSecret:       "middleware-test-secret-0123456789",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
}

type stubBlacklist struct {
	revoked map[string]bool
	err     error
}

func (s *stubBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return s.revoked[jti], s.err
}

type stubCounter struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubCounter) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.err
}

func okHandler(c *gin.Context) { c.String(http.StatusOK, "ok") }

// ════════════════════════════════════════════════════════════
// JWTAuth
// ════════════════════════════════════════════════════════════

func TestJWTAuth(t *testing.T) {
	mgr := newTestJWT()
	access, err := mgr.GenerateAccessToken(1, model.RoleAdmin)
	require.NoError(t, err)
	refresh, err := mgr.GenerateRefreshToken(1, model.RoleAdmin)
	require.NoError(t, err)
	claims, err := mgr.ParseToken(access)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		tokens     TokenChecker
		wantStatus int
	}{
		{"有效 Token", "Bearer " + access, nil, http.StatusOK},
		{"缺少认证头", "", nil, http.StatusUnauthorized},
		{"格式错误", "Token " + access, nil, http.StatusUnauthorized},
		{"伪造 Token", "Bearer abc.def.ghi", nil, http.StatusUnauthorized},
		{"Refresh Token 不能访问接口", "Bearer " + refresh, nil, http.StatusUnauthorized},
		{"已注销", "Bearer " + access, &stubBlacklist{revoked: map[string]bool{claims.ID: true}}, http.StatusUnauthorized},
		{"黑名单查询失败时放行", "Bearer " + access, &stubBlacklist{err: errors.New("redis down")}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			var gotUserID interface{}
			r.GET("/x", JWTAuth(mgr, tt.tokens), func(c *gin.Context) {
				gotUserID, _ = c.Get(ContextUserID)
				okHandler(c)
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, uint(1), gotUserID)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════
// RoleAuth / RequirePermission
// ════════════════════════════════════════════════════════════

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		role       string
		perm       string
		wantStatus int
	}{
		{model.RoleAdmin, model.PermDelete, http.StatusOK},
		{model.RoleEditor, model.PermWrite, http.StatusOK},
		{model.RoleEditor, model.PermDelete, http.StatusForbidden},
		{model.RoleUser, model.PermRead, http.StatusOK},
		{model.RoleUser, model.PermWrite, http.StatusForbidden},
		{"", model.PermRead, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.perm, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) {
				if tt.role != "" {
					c.Set(ContextRole, tt.role)
				}
			}, RequirePermission(tt.perm), okHandler)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRoleAuth(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { c.Set(ContextRole, model.RoleEditor) }, RoleAuth(model.RoleAdmin), okHandler)
	r.GET("/y", func(c *gin.Context) { c.Set(ContextRole, model.RoleEditor) }, RoleAuth(model.RoleAdmin, model.RoleEditor), okHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/y", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

// ════════════════════════════════════════════════════════════
// RateLimit
// ════════════════════════════════════════════════════════════

func TestRateLimit_LocalFallback(t *testing.T) {
	rule := config.LimitRule{Requests: 3, Window: time.Minute}
	r := gin.New()
	r.GET("/x", RateLimit(nil, "login", rule, zap.NewNop()), okHandler)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 200, 429, 429}, codes)

	// 不同 IP 独立计数
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_Redis(t *testing.T) {
	rule := config.LimitRule{Requests: 100, Window: time.Minute}

	t.Run("Redis 拒绝", func(t *testing.T) {
		counter := &stubCounter{allowed: false}
		r := gin.New()
		r.GET("/x", RateLimit(counter, "api", rule, zap.NewNop()), okHandler)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "60", w.Header().Get("Retry-After"))
		assert.Equal(t, []string{"rate_limit:api:10.0.0.1"}, counter.keys)
	})

	t.Run("Redis 故障降级为本地", func(t *testing.T) {
		counter := &stubCounter{err: errors.New("redis down")}
		r := gin.New()
		r.GET("/x", RateLimit(counter, "api", rule, zap.NewNop()), okHandler)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("规则为空不限流", func(t *testing.T) {
		counter := &stubCounter{allowed: false}
		r := gin.New()
		r.GET("/x", RateLimit(counter, "api", config.LimitRule{}, zap.NewNop()), okHandler)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, counter.keys)
	})
}

// ════════════════════════════════════════════════════════════
// BodyLimit / RequestID / Headers
// ════════════════════════════════════════════════════════════

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/x", BodyLimit(16), func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			_ = c.Error(err)
			return
		}
		okHandler(c)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/x", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/x", strings.NewReader(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// 未声明 Content-Length 时读取超限
	w = httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/x", io.NopCloser(strings.NewReader(strings.Repeat("x", 64))))
	req.ContentLength = -1
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequestID(), func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Body.String())
	assert.Equal(t, "trace-123", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("a", requestIDMaxLen+1))
	r.ServeHTTP(w, req)
	assert.Len(t, w.Body.String(), 36, "过长的 ID 应替换为 UUID")

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", "bad id\tinjected")
	r.ServeHTTP(w, req)
	assert.Len(t, w.Body.String(), 36, "含空白字符的 ID 应替换为 UUID")
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(true), CORS([]string{"http://localhost:5173/"}))
	r.GET("/x", okHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=")
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest("OPTIONS", "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core)))
	r.GET("/health", okHandler)
	r.GET("/schedules/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))
	assert.Zero(t, logs.Len(), "健康检查在 info 级别不记录")

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/schedules/7?x=1", nil))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "HTTP GET /schedules/:id", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "/schedules/7", fields["path"])
	assert.Equal(t, "x=1", fields["query"])
	assert.NotEmpty(t, fields["request_id"])
}
