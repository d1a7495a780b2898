package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/bca-library/utils/cache"
)

func newTestProtection(t *testing.T) (*BruteForceProtection, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewBruteForceProtection(cache.NewRedisCache(client, "")), mr
}

func TestLockoutFor(t *testing.T) {
	tests := []struct {
		attempts int64
		want     time.Duration
	}{
		{0, 0},
		{4, 0},
		{5, 2 * time.Minute},
		{9, 2 * time.Minute},
		{10, time.Hour},
		{24, time.Hour},
		{25, 24 * time.Hour},
		{100, 24 * time.Hour},
	}

	for _, tt := range tests {
		if got := LockoutFor(tt.attempts); got != tt.want {
			t.Errorf("LockoutFor(%d) = %v, want %v", tt.attempts, got, tt.want)
		}
	}
}

func TestBruteForceProtection_Lockout(t *testing.T) {
	ctx := context.Background()
	b, mr := newTestProtection(t)
	ip := "10.0.0.1"

	if remaining, _ := b.RemainingAttempts(ctx, ip); remaining != LockoutThreshold {
		t.Errorf("remaining attempts = %d, want %d", remaining, LockoutThreshold)
	}
	for i := 0; i < 4; i++ {
		b.RecordFailedAttempt(ctx, ip)
	}
	if remaining, _ := b.RemainingAttempts(ctx, ip); remaining != 1 {
		t.Errorf("remaining attempts = %d, want 1", remaining)
	}
	if locked, _ := b.IsIPLocked(ctx, ip); locked {
		t.Fatal("ip should not be locked after 4 failures")
	}

	b.RecordFailedAttempt(ctx, ip)
	if locked, _ := b.IsIPLocked(ctx, ip); !locked {
		t.Fatal("ip should be locked after 5 failures")
	}
	if count, _ := b.GetAttemptCount(ctx, ip); count != 5 {
		t.Errorf("attempt count = %d, want 5", count)
	}
	if remaining, _ := b.RemainingAttempts(ctx, ip); remaining != 0 {
		t.Errorf("remaining attempts = %d, want 0", remaining)
	}
	if ttl := mr.TTL(lockKey(ip)); ttl != 2*time.Minute {
		t.Errorf("lock ttl = %v", ttl)
	}
	if ttl := mr.TTL(attemptKey(ip)); ttl != attemptWindow {
		t.Errorf("attempt window ttl = %v", ttl)
	}

	// other addresses are unaffected
	if locked, _ := b.IsIPLocked(ctx, "10.0.0.2"); locked {
		t.Error("unrelated ip should not be locked")
	}

	b.RecordSuccessfulAttempt(ctx, ip)
	if locked, _ := b.IsIPLocked(ctx, ip); locked {
		t.Error("successful login should clear the lock")
	}
	if count, _ := b.GetAttemptCount(ctx, ip); count != 0 {
		t.Errorf("attempt count after success = %d", count)
	}
}

func TestBruteForceProtection_Middleware(t *testing.T) {
	b, mr := newTestProtection(t)

	app := fiber.New()
	app.Post("/login", b.CheckAndRecordAttempt(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	send := func() *http.Response {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
		if err != nil {
			t.Fatal(err)
		}
		return resp
	}

	if resp := send(); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// fiber's test requests come from 0.0.0.0
	mr.Set(lockKey("0.0.0.0"), "locked")
	mr.SetTTL(lockKey("0.0.0.0"), 90*time.Second)

	resp := send()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if got := resp.Header.Get(fiber.HeaderRetryAfter); got != "90" {
		t.Errorf("Retry-After = %q, want 90", got)
	}

	mr.FastForward(2 * time.Minute)
	if resp := send(); resp.StatusCode != http.StatusOK {
		t.Errorf("status after lock expiry = %d, want 200", resp.StatusCode)
	}
}

func TestBruteForceProtection_NilIsDisabled(t *testing.T) {
	var b *BruteForceProtection
	b.RecordFailedAttempt(context.Background(), "10.0.0.1")
	b.RecordSuccessfulAttempt(context.Background(), "10.0.0.1")
	if locked, err := b.IsIPLocked(context.Background(), "10.0.0.1"); locked || err != nil {
		t.Errorf("IsIPLocked = %v, %v", locked, err)
	}

	app := fiber.New()
	app.Post("/login", b.CheckAndRecordAttempt(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
