package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLedger(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisPublishLedger) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { rdb.Close() })

	return mr, NewRedisPublishLedger(rdb, ttl)
}

func TestRedisPublishLedger_RecordPublished(t *testing.T) {
	t.Parallel()

	mr, ledger := newTestLedger(t, time.Hour)
	postedAt := time.Date(2026, 2, 2, 18, 0, 0, 0, time.UTC)

	if err := ledger.RecordPublished(context.Background(), 42, "17890", postedAt); err != nil {
		t.Fatalf("RecordPublished() error: %v", err)
	}

	key := "publish:42"
	if !mr.Exists(key) {
		t.Fatalf("expected key %q to exist", key)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("expected TTL to be set, got %v", ttl)
	}

	raw, err := mr.Get(key)
	if err != nil {
		t.Fatalf("failed to get key %q: %v", key, err)
	}

	var got publishedValue
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("failed to unmarshal value: %v", err)
	}
	if got.ExternalPostID != "17890" {
		t.Fatalf("expected ExternalPostID %q, got %q", "17890", got.ExternalPostID)
	}
	if !got.PostedAt.Equal(postedAt) {
		t.Fatalf("expected PostedAt %v, got %v", postedAt, got.PostedAt)
	}
}

func TestRedisPublishLedger_LookupPublished(t *testing.T) {
	t.Parallel()

	_, ledger := newTestLedger(t, time.Hour)
	ctx := context.Background()

	if _, found, err := ledger.LookupPublished(ctx, 7); err != nil || found {
		t.Fatalf("expected no entry, got found=%v err=%v", found, err)
	}

	if err := ledger.RecordPublished(ctx, 7, "17891", time.Now()); err != nil {
		t.Fatalf("RecordPublished() error: %v", err)
	}

	id, found, err := ledger.LookupPublished(ctx, 7)
	if err != nil {
		t.Fatalf("LookupPublished() error: %v", err)
	}
	if !found || id != "17891" {
		t.Fatalf("expected 17891, got %q (found=%v)", id, found)
	}
}

func TestRedisPublishLedger_Expires(t *testing.T) {
	t.Parallel()

	mr, ledger := newTestLedger(t, time.Minute)
	ctx := context.Background()

	if err := ledger.RecordPublished(ctx, 1, "x", time.Now()); err != nil {
		t.Fatalf("RecordPublished() error: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, found, err := ledger.LookupPublished(ctx, 1); err != nil || found {
		t.Fatalf("expected expired entry, got found=%v err=%v", found, err)
	}
}

func TestRedisPublishLedger_CorruptEntry(t *testing.T) {
	t.Parallel()

	mr, ledger := newTestLedger(t, time.Minute)
	mr.Set("publish:3", "not-json")

	if _, _, err := ledger.LookupPublished(context.Background(), 3); err == nil {
		t.Fatalf("expected error for corrupt entry, got nil")
	}
}

func TestRedisPublishLedger_ContextCanceled(t *testing.T) {
	t.Parallel()

	_, ledger := newTestLedger(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := ledger.RecordPublished(ctx, 1, "x", time.Now()); err == nil {
		t.Fatalf("expected error due to canceled context, got nil")
	}
}
