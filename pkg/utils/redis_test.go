package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestSlotLease_AcquireUpToLimit(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	now := time.Unix(1767268800, 0)

	for _, m := range []string{"a", "b"} {
		ok, err := AcquireSlotLease(ctx, rdb, "cap:k", m, 2, time.Minute, now)
		if err != nil {
			t.Fatalf("acquire %s: %v", m, err)
		}
		if !ok {
			t.Fatalf("expected acquire %s to succeed", m)
		}
	}

	ok, err := AcquireSlotLease(ctx, rdb, "cap:k", "c", 2, time.Minute, now)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok {
		t.Fatalf("expected third acquire to be rejected")
	}

	// A holder re-acquiring renews instead of taking a second slot.
	if ok, err := AcquireSlotLease(ctx, rdb, "cap:k", "a", 2, time.Minute, now); err != nil || !ok {
		t.Fatalf("expected renewal, ok=%v err=%v", ok, err)
	}

	if err := ReleaseSlotLease(ctx, rdb, "cap:k", "a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := ReleaseSlotLease(ctx, rdb, "cap:k", "a"); err != nil {
		t.Fatalf("second release: %v", err)
	}
	ok, err = AcquireSlotLease(ctx, rdb, "cap:k", "c", 2, time.Minute, now)
	if err != nil || !ok {
		t.Fatalf("expected acquire after release, ok=%v err=%v", ok, err)
	}
	if ok, _ := AcquireSlotLease(ctx, rdb, "cap:k", "d", 2, time.Minute, now); ok {
		t.Fatalf("double release freed an extra slot")
	}
}

func TestSlotLease_ExpiredLeaseFreesOnlyItsSlot(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	t0 := time.Unix(1767268800, 0)
	ttl := time.Hour

	for _, m := range []string{"a", "b"} {
		if ok, err := AcquireSlotLease(ctx, rdb, "cap:k", m, 2, ttl, t0); err != nil || !ok {
			t.Fatalf("acquire %s: ok=%v err=%v", m, ok, err)
		}
	}

	mr.FastForward(50 * time.Minute)
	t1 := t0.Add(50 * time.Minute)
	if err := ReleaseSlotLease(ctx, rdb, "cap:k", "a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, err := AcquireSlotLease(ctx, rdb, "cap:k", "c", 2, ttl, t1); err != nil || !ok {
		t.Fatalf("acquire c: ok=%v err=%v", ok, err)
	}

	// b's lease has run out; c is still held.
	mr.FastForward(50 * time.Minute)
	t2 := t1.Add(50 * time.Minute)
	granted := 0
	for _, m := range []string{"d", "e", "f"} {
		ok, err := AcquireSlotLease(ctx, rdb, "cap:k", m, 2, ttl, t2)
		if err != nil {
			t.Fatalf("acquire %s: %v", m, err)
		}
		if ok {
			granted++
		}
	}
	if granted != 1 {
		t.Fatalf("expected one slot freed by the expired lease, got %d", granted)
	}
}

func TestSlotLease_SetOutlivesHeldLeases(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	now := time.Now()

	for _, m := range []string{"a", "b"} {
		if ok, err := AcquireSlotLease(ctx, rdb, "cap:k", m, 2, time.Hour, now); err != nil || !ok {
			t.Fatalf("acquire %s: ok=%v err=%v", m, ok, err)
		}
	}
	mr.FastForward(61 * time.Minute)
	if ok, err := AcquireSlotLease(ctx, rdb, "cap:k", "c", 2, time.Hour, now.Add(30*time.Minute)); err != nil || ok {
		t.Fatalf("expected cap to hold, ok=%v err=%v", ok, err)
	}
}

func TestSlotLease_ReleaseDeletesEmptyKey(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	if _, err := AcquireSlotLease(ctx, rdb, "cap:x", "a", 1, time.Minute, time.Now()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := ReleaseSlotLease(ctx, rdb, "cap:x", "a"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists("cap:x") {
		t.Fatalf("expected key removed once the last lease is released")
	}
}

func TestSlotLease_ValidatesArguments(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := AcquireSlotLease(ctx, rdb, "", "m", 1, time.Minute, now); err == nil {
		t.Fatalf("expected error for empty key")
	}
	if _, err := AcquireSlotLease(ctx, rdb, "k", "", 1, time.Minute, now); err == nil {
		t.Fatalf("expected error for empty member")
	}
	if _, err := AcquireSlotLease(ctx, rdb, "k", "m", 0, time.Minute, now); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	if _, err := AcquireSlotLease(ctx, rdb, "k", "m", 1, 0, now); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}
