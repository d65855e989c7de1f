package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lumi-ajolote/lumi/backend/internal/metrics"
	"github.com/lumi-ajolote/lumi/backend/pkg/utils"
)

const rateLimitMessage = "Demasiadas solicitudes, intenta de nuevo en un momento."

// RateLimiterConfig 描述限流器的后台清理周期。
type RateLimiterConfig struct {
	CleanupInterval time.Duration
}

// DefaultRateLimiterConfig 返回默认配置。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{CleanupInterval: 5 * time.Minute}
}

// clientLimiter 保存单个客户端的令牌桶和最近访问时间。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter 按 scope 和客户端地址维护令牌桶。
type RateLimiter struct {
	config  RateLimiterConfig
	logger  *zap.Logger
	metrics metrics.Recorder

	mu       sync.Mutex
	limiters map[string]map[string]*clientLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewRateLimiter 创建限流器并启动后台清理。
func NewRateLimiter(config RateLimiterConfig, logger *zap.Logger, rec metrics.Recorder) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	rl := &RateLimiter{
		config:   config,
		logger:   logger,
		metrics:  rec,
		limiters: make(map[string]map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop 停止后台清理并等待其退出，可重复调用。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
	<-rl.done
}

// Middleware 对 scope 施加每分钟 perMinute 次的限制，0 表示不限流。
func (rl *RateLimiter) Middleware(scope string, perMinute int) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if perMinute <= 0 {
			return next
		}
		limit := rate.Limit(float64(perMinute) / 60.0)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !rl.limiterFor(scope, key, limit, perMinute).Allow() {
				rl.metrics.RecordRateLimited(scope)
				rl.logger.Warn("rate limit exceeded",
					zap.String("client", key),
					zap.String("scope", scope),
				)
				writeRateLimitResponse(w, limit)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// LimiterCount 返回 scope 下的客户端数量。
func (rl *RateLimiter) LimiterCount(scope string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters[scope])
}

func (rl *RateLimiter) limiterFor(scope, key string, limit rate.Limit, burst int) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	clients, ok := rl.limiters[scope]
	if !ok {
		clients = make(map[string]*clientLimiter)
		rl.limiters[scope] = clients
	}

	cl, ok := clients[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(limit, burst)}
		clients[key] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	defer close(rl.done)

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup 删除超过两个清理周期未访问的条目。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for scope, clients := range rl.limiters {
		for key, cl := range clients {
			if now.Sub(cl.lastAccess) > ttl {
				delete(clients, key)
			}
		}
		if len(clients) == 0 {
			delete(rl.limiters, scope)
		}
	}
}

// clientKey 取客户端 IP。RealIP 中间件已改写 RemoteAddr。
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimitResponse(w http.ResponseWriter, limit rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(limit)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	utils.RespondError(w, http.StatusTooManyRequests, rateLimitMessage)
}
