package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/utils/cache"
	"github.com/sahilchouksey/bca-library/utils/logger"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// Failed login attempts are counted per IP within this window
const attemptWindow = 15 * time.Minute

// BruteForceProtection locks out IPs with repeated failed logins using Redis
type BruteForceProtection struct {
	redisCache *cache.RedisCache
	log        zerolog.Logger
}

// NewBruteForceProtection creates a new brute force protection instance
func NewBruteForceProtection(redisCache *cache.RedisCache) *BruteForceProtection {
	return &BruteForceProtection{
		redisCache: redisCache,
		log:        logger.Component("brute_force"),
	}
}

func attemptKey(ip string) string {
	return "brute_force:attempts:" + ip
}

func lockKey(ip string) string {
	return "brute_force:lock:" + ip
}

// LockoutThreshold is the number of failures that triggers the first lockout
const LockoutThreshold = 5

// LockoutFor returns how long an IP is locked after the given number of failures
func LockoutFor(attempts int64) time.Duration {
	switch {
	case attempts >= 25:
		return 24 * time.Hour
	case attempts >= 10:
		return time.Hour
	case attempts >= LockoutThreshold:
		return 2 * time.Minute
	default:
		return 0
	}
}

// CheckAndRecordAttempt middleware rejects locked out IPs with 429
func (b *BruteForceProtection) CheckAndRecordAttempt() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if b == nil {
			return c.Next()
		}

		ctx := c.UserContext()
		ip := c.IP()

		locked, err := b.IsIPLocked(ctx, ip)
		if err != nil {
			// Redis being down must not block logins
			b.log.Warn().Err(err).Msg("lockout check failed")
			return c.Next()
		}
		if !locked {
			return c.Next()
		}

		ttl, _ := b.redisCache.TTL(ctx, lockKey(ip))
		retryAfter := int(ttl.Seconds())
		if retryAfter <= 0 {
			retryAfter = 60
		}

		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		return response.TooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter))
	}
}

// RecordFailedAttempt counts a failed login and applies progressive lockouts
func (b *BruteForceProtection) RecordFailedAttempt(ctx context.Context, ip string) {
	if b == nil {
		return
	}

	attempts, err := b.redisCache.Increment(ctx, attemptKey(ip))
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to record login attempt")
		return
	}
	if attempts == 1 {
		_ = b.redisCache.Expire(ctx, attemptKey(ip), attemptWindow)
	}

	lockDuration := LockoutFor(attempts)
	if lockDuration == 0 {
		return
	}

	if err := b.redisCache.Set(ctx, lockKey(ip), "locked", lockDuration); err != nil {
		b.log.Warn().Err(err).Msg("failed to lock ip")
		return
	}
	b.log.Warn().
		Str("ip", ip).
		Int64("attempts", attempts).
		Dur("lockout", lockDuration).
		Msg("ip locked out")
}

// RecordSuccessfulAttempt clears failed attempts on successful login
func (b *BruteForceProtection) RecordSuccessfulAttempt(ctx context.Context, ip string) {
	if b == nil {
		return
	}
	_ = b.redisCache.Delete(ctx, attemptKey(ip), lockKey(ip))
}

// GetAttemptCount returns the current attempt count for an IP
func (b *BruteForceProtection) GetAttemptCount(ctx context.Context, ip string) (int, error) {
	if b == nil {
		return 0, nil
	}
	val, err := b.redisCache.Get(ctx, attemptKey(ip))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.Atoi(val)
}

// IsIPLocked checks if an IP is currently locked
func (b *BruteForceProtection) IsIPLocked(ctx context.Context, ip string) (bool, error) {
	if b == nil {
		return false, nil
	}
	return b.redisCache.Exists(ctx, lockKey(ip))
}

// RemainingAttempts returns how many more failures an IP may make before
// its first lockout.
func (b *BruteForceProtection) RemainingAttempts(ctx context.Context, ip string) (int, error) {
	attempts, err := b.GetAttemptCount(ctx, ip)
	if err != nil {
		return 0, err
	}
	return max(LockoutThreshold-attempts, 0), nil
}
