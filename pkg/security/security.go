package security

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"techacademy_backend/internal/config"
	"techacademy_backend/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

var (
	defaultAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	defaultAllowedHeaders = []string{"Content-Type", "Authorization", "Accept", "Origin", "Cache-Control", "X-Requested-With"}
)

// CORS 只回显白名单中的 Origin。登录 token 通过 cookie 下发，所以带 Credentials，
// 不能使用通配符
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		origins[strings.TrimRight(o, "/")] = struct{}{}
	}
	methods := strings.Join(orDefault(cfg.AllowedMethods, defaultAllowedMethods), ", ")
	headers := strings.Join(orDefault(cfg.AllowedHeaders, defaultAllowedHeaders), ", ")
	maxAge := ""
	if cfg.MaxAgeHours > 0 {
		maxAge = strconv.Itoa(int((time.Duration(cfg.MaxAgeHours) * time.Hour).Seconds()))
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := strings.TrimRight(c.GetHeader("Origin"), "/")
		_, allowed := origins[origin]
		if origin != "" && allowed {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}

		// 预检请求
		if allowed {
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if maxAge != "" {
				h.Set("Access-Control-Max-Age", maxAge)
			}
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}

// Secure 基础安全响应头，HSTS 只在 TLS 连接上下发
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiter 按客户端 IP 的令牌桶，窗口内最多 maxRequests 次
type ipLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	every   rate.Limit
	burst   int
	window  time.Duration
	exempt  map[string]struct{}
}

func newIPLimiter(cfg config.RateLimitConfig) *ipLimiter {
	maxRequests := cfg.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 600
	}
	window := time.Duration(cfg.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	exempt := make(map[string]struct{}, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[p] = struct{}{}
	}
	return &ipLimiter{
		clients: make(map[string]*client),
		every:   rate.Every(window / time.Duration(maxRequests)),
		burst:   maxRequests,
		window:  window,
		exempt:  exempt,
	}
}

func (l *ipLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cl, ok := l.clients[ip]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(l.every, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// sweep 删除超过三个窗口没有请求的 IP
func (l *ipLimiter) sweep(now time.Time) {
	idle := 3 * l.window
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, cl := range l.clients {
		if now.Sub(cl.lastSeen) > idle {
			delete(l.clients, ip)
		}
	}
}

// RateLimiter 按 IP 限流，ExemptPaths（健康检查、指标）不计数。超限返回 429 和 Retry-After
func RateLimiter(cfg config.RateLimitConfig) gin.HandlerFunc {
	l := newIPLimiter(cfg)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			l.sweep(now)
		}
	}()

	retryAfter := strconv.Itoa(int(l.window.Seconds()))
	return func(c *gin.Context) {
		if _, ok := l.exempt[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		if !l.allow(c.ClientIP(), time.Now()) {
			c.Header("Retry-After", retryAfter)
			util.Error(c, http.StatusTooManyRequests, "Too many requests, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
