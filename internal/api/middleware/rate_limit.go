package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/guimashan/staff-schedule/config"
	"github.com/guimashan/staff-schedule/pkg/response"
)

// RateCounter 分布式限流计数（Redis 滑动窗口）
type RateCounter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RateLimit 基于 Redis 滑动窗口的速率限制中间件
// scope 区分不同规则（api / login / register / export）
// counter 为 nil 或 Redis 出错时降级为进程内令牌桶
func RateLimit(counter RateCounter, scope string, rule config.LimitRule, logger *zap.Logger) gin.HandlerFunc {
	if rule.Requests <= 0 || rule.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	local := newLocalLimiter(rule)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		allowed := true
		if counter != nil {
			key := fmt.Sprintf("rate_limit:%s:%s", scope, ip)
			ok, err := counter.CheckRateLimit(c.Request.Context(), key, rule.Requests, rule.Window)
			if err != nil {
				logger.Warn("Redis 限流失败，降级为本地限流", zap.String("scope", scope), zap.Error(err))
				allowed = local.allow(ip)
			} else {
				allowed = ok
			}
		} else {
			allowed = local.allow(ip)
		}

		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(rule.Window.Seconds())))
			response.Error(c, http.StatusTooManyRequests, 10004, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}

// ── 进程内限流 ──

// localLimiter 每个 IP 一个令牌桶：容量 Requests，按 Window/Requests 速率补充
type localLimiter struct {
	mu       sync.Mutex
	rule     config.LimitRule
	limiters map[string]*localEntry
	lastGC   time.Time
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLocalLimiter(rule config.LimitRule) *localLimiter {
	return &localLimiter{
		rule:     rule,
		limiters: make(map[string]*localEntry),
		lastGC:   time.Now(),
	}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.limiters[key]
	if !ok {
		every := rate.Every(l.rule.Window / time.Duration(l.rule.Requests))
		entry = &localEntry{limiter: rate.NewLimiter(every, l.rule.Requests)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	// 清理超过一个窗口未访问的 IP
	if now.Sub(l.lastGC) > l.rule.Window {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > l.rule.Window {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}

	return entry.limiter.AllowN(now, 1)
}
