package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublishLedger keeps the remote post id of every successful publish for
// ttl, so a run that died before writing the post status can be settled later.
type RedisPublishLedger struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPublishLedger(rdb *redis.Client, ttl time.Duration) *RedisPublishLedger {
	return &RedisPublishLedger{rdb: rdb, ttl: ttl}
}

type publishedValue struct {
	ExternalPostID string    `json:"instagramPostId"`
	PostedAt       time.Time `json:"postedAt"`
}

func ledgerKey(postID int64) string {
	return fmt.Sprintf("publish:%d", postID)
}

func (l *RedisPublishLedger) RecordPublished(ctx context.Context, postID int64, externalPostID string, postedAt time.Time) error {
	b, err := json.Marshal(publishedValue{
		ExternalPostID: externalPostID,
		PostedAt:       postedAt.UTC(),
	})
	if err != nil {
		return err
	}

	return l.rdb.Set(ctx, ledgerKey(postID), b, l.ttl).Err()
}

func (l *RedisPublishLedger) LookupPublished(ctx context.Context, postID int64) (string, bool, error) {
	raw, err := l.rdb.Get(ctx, ledgerKey(postID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var val publishedValue
	if err := json.Unmarshal(raw, &val); err != nil {
		return "", false, fmt.Errorf("corrupt ledger entry for post %d: %w", postID, err)
	}
	return val.ExternalPostID, true, nil
}
