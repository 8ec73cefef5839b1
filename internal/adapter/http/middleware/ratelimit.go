package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"nsimbi-wallet/config"
	"nsimbi-wallet/internal/core/ports"
	"nsimbi-wallet/pkg/apperror"
	"nsimbi-wallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Rate limit groups.
const (
	GroupAuth   = "auth"
	GroupWallet = "wallet"
	GroupRead   = "read"
	GroupAdmin  = "admin"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// RateLimitRules builds the per-group limits from configuration. Groups with
// a non-positive limit are left out and therefore unlimited.
func RateLimitRules(cfg config.RateLimitConfig) map[string]RateLimitRule {
	rules := make(map[string]RateLimitRule, 4)
	for group, limit := range map[string]int{
		GroupAuth:   cfg.Auth,
		GroupWallet: cfg.Wallet,
		GroupRead:   cfg.Read,
		GroupAdmin:  cfg.Admin,
	} {
		if limit > 0 {
			rules[group] = RateLimitRule{Limit: int64(limit), Window: cfg.Window}
		}
	}
	return rules
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// Limiter errors let the request through.
func RateLimiter(limiter ports.RateLimiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", extractIdentifier(c), group)

		result, err := limiter.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys authenticated callers by user id and the rest by IP.
func extractIdentifier(c *gin.Context) string {
	if id, ok := UserID(c); ok {
		return "user:" + id.String()
	}
	return "ip:" + c.ClientIP()
}

// maxLocalKeys bounds the in-process limiter table.
const maxLocalKeys = 10000

// LocalRateLimiter is an in-process token bucket limiter, used when Redis
// is disabled. Limits are per process, not per deployment.
type LocalRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	now      func() time.Time
}

// NewLocalRateLimiter creates an empty LocalRateLimiter.
func NewLocalRateLimiter() *LocalRateLimiter {
	return &LocalRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// Allow takes one token from the bucket for key. The bucket holds limit
// tokens and refills at limit per window.
func (l *LocalRateLimiter) Allow(_ context.Context, key string, limit int64, window time.Duration) (*ports.RateLimitResult, error) {
	now := l.now()
	lim := l.limiter(key, limit, window)

	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	remaining := int64(math.Floor(tokens))
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now
	if tokens < 1 {
		wait := time.Duration((1 - tokens) / float64(lim.Limit()) * float64(time.Second))
		resetAt = now.Add(wait)
	}

	return &ports.RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   int64(math.Ceil(float64(resetAt.UnixNano()) / float64(time.Second))),
	}, nil
}

func (l *LocalRateLimiter) limiter(key string, limit int64, window time.Duration) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := fmt.Sprintf("%s:%d:%d", key, limit, window)
	lim, ok := l.limiters[k]
	if !ok {
		if len(l.limiters) >= maxLocalKeys {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), int(limit))
		l.limiters[k] = lim
	}
	return lim
}
