package security

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"grading_backend/internal/config"
	"grading_backend/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	allowHeaders = "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, traceparent"
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// CORS 仅对白名单 Origin 回写允许头，"*" 表示放行全部
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	allowAll := false
	origins := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		origins[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowAll || origins[origin]) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Allow-Methods", allowMethods)
			h.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Secure 安全响应头；评分数据不允许被中间缓存
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore 按 key 维护令牌桶，长时间未访问的条目会被清理
type limiterStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	expiry   time.Duration
	now      func() time.Time
}

func newLimiterStore(maxRequests int, window time.Duration) *limiterStore {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	expiry := window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	return &limiterStore{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(maxRequests)),
		burst:    maxRequests,
		expiry:   expiry,
		now:      time.Now,
	}
}

func (s *limiterStore) allow(key string) bool {
	now := s.now()
	s.mu.Lock()
	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now
	s.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

func (s *limiterStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.expiry {
			delete(s.visitors, key)
		}
	}
}

// startSweeper 定期清理过期条目，ctx 取消后退出；返回的 channel 在协程结束时关闭
func (s *limiterStore) startSweeper(ctx context.Context, every time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
	return done
}

func tooManyRequests(c *gin.Context) {
	util.Error(c, http.StatusTooManyRequests, "Too many requests")
	c.Abort()
}

// RateLimiter 全局按客户端 IP 限流，清理协程随 ctx 结束
func RateLimiter(ctx context.Context, cfg config.RateLimitConfig) gin.HandlerFunc {
	store := newLimiterStore(cfg.MaxRequests, time.Duration(cfg.WindowMinutes)*time.Minute)
	store.startSweeper(ctx, time.Minute)

	return func(c *gin.Context) {
		if !store.allow(c.ClientIP()) {
			tooManyRequests(c)
			return
		}
		c.Next()
	}
}

// UserRateLimiter 按登录用户限流，需放在 AuthMiddleware 之后；未登录时退回按 IP
func UserRateLimiter(ctx context.Context, maxRequests int, window time.Duration) gin.HandlerFunc {
	store := newLimiterStore(maxRequests, window)
	store.startSweeper(ctx, time.Minute)

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if claims := util.GetUserFromContext(c); claims != nil && claims.UserID != "" {
			key = "user:" + claims.UserID
		}
		if !store.allow(key) {
			tooManyRequests(c)
			return
		}
		c.Next()
	}
}
