package middleware

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/dumeirei/storefront-backend/internal/common/cache"
	"github.com/dumeirei/storefront-backend/internal/common/logger"
	"github.com/dumeirei/storefront-backend/internal/common/response"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Client 为 nil 时只使用进程内限流
	Client redis.UniversalClient
	Limit  int
	Window time.Duration
	// KeyFunc 默认按用户，未登录按 IP
	KeyFunc func(*gin.Context) string
}

// RateLimit 固定窗口限流：Redis 计数，Redis 不可用时退化为进程内令牌桶
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = subjectKey
	}
	local := newLocalLimiter(cfg.Limit, cfg.Window)
	limit := strconv.Itoa(cfg.Limit)

	return func(c *gin.Context) {
		subject := cfg.KeyFunc(c)

		allowed, remaining, err := redisAllow(c, cfg, subject)
		if err != nil {
			logger.Debug("rate limit falling back to local limiter", logger.Err(err))
			allowed, remaining = local.allow(subject), -1
		}

		c.Header("X-RateLimit-Limit", limit)
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
			response.TooManyRequests(c, "请求过于频繁，请稍后再试")
			c.Abort()
			return
		}
		if remaining >= 0 {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}
		c.Next()
	}
}

func subjectKey(c *gin.Context) string {
	if id := GetUserID(c); id > 0 {
		return "user:" + strconv.FormatInt(id, 10)
	}
	return "ip:" + c.ClientIP()
}

func redisAllow(c *gin.Context, cfg RateLimitConfig, subject string) (bool, int, error) {
	if cfg.Client == nil {
		return false, 0, errNoRedis
	}
	ctx := c.Request.Context()
	key := cache.BuildKey(cache.KeyPrefixRateLimit, subject)

	n, err := cfg.Client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		cfg.Client.Expire(ctx, key, cfg.Window)
	}
	count := int(n)
	if count > cfg.Limit {
		return false, 0, nil
	}
	return true, cfg.Limit - count, nil
}

var errNoRedis = errors.New("redis not configured")

// localLimiter 进程内按主体的令牌桶
type localLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	return &localLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
	}
}

func (l *localLimiter) allow(subject string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[subject]
	if !ok {
		// TODO: 按最近访问时间淘汰，长时间运行时 map 只增不减
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[subject] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
