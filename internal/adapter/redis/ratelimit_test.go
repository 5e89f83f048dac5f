package adaptredis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiterForTest(t *testing.T, limit int, window time.Duration) (*miniredis.Miniredis, *FixedWindowLimiter) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return m, NewFixedWindowLimiter(client, "login_test", limit, window)
}

func TestFixedWindowLimiter_AllowThenDeny(t *testing.T) {
	_, limiter := newLimiterForTest(t, 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := limiter.Allow(ctx, "a@example.com")
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("attempt %d: expected allowed", i+1)
		}
	}

	ok, retry, err := limiter.Allow(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("third attempt: %v", err)
	}
	if ok {
		t.Fatal("expected third attempt denied")
	}
	if retry <= 0 || retry > time.Minute {
		t.Errorf("expected retry-after within the window, got %v", retry)
	}

	if ok, _, _ := limiter.Allow(ctx, "b@example.com"); !ok {
		t.Error("expected other keys unaffected")
	}
}

func TestFixedWindowLimiter_WindowExpires(t *testing.T) {
	m, limiter := newLimiterForTest(t, 1, time.Second)
	ctx := context.Background()

	if ok, _, _ := limiter.Allow(ctx, "k"); !ok {
		t.Fatal("expected first attempt allowed")
	}
	if ok, _, _ := limiter.Allow(ctx, "k"); ok {
		t.Fatal("expected second attempt denied")
	}
	m.FastForward(2 * time.Second)
	if ok, _, err := limiter.Allow(ctx, "k"); err != nil || !ok {
		t.Fatalf("expected allowed after window, got ok=%v err=%v", ok, err)
	}
}

func TestFixedWindowLimiter_Errors(t *testing.T) {
	limiter := NewFixedWindowLimiter(nil, "", 1, time.Second)
	if _, _, err := limiter.Allow(context.Background(), "k"); err == nil {
		t.Fatal("expected nil client error")
	}

	bad := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 20 * time.Millisecond})
	t.Cleanup(func() { _ = bad.Close() })
	limiter = NewFixedWindowLimiter(bad, "", 1, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := limiter.Allow(ctx, "k"); err == nil {
		t.Fatal("expected backend error")
	}
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient("redis://localhost:6379/0"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewClient("http://nope"); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}
