package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration

	// footerTTL outlives the freshness window so a stale entry is still
	// readable when deciding.
	footerTTL time.Duration
}

var (
	_ MessageCache = (*RedisCache)(nil)
	_ FooterCache  = (*RedisCache)(nil)
)

func NewRedisCache(rdb *redis.Client, ttl, footerTTL time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, footerTTL: footerTTL}
}

type sentValue struct {
	RemoteMessageID string    `json:"remoteMessageId"`
	SentAt          time.Time `json:"sentAt"`
}

func (c *RedisCache) StoreSent(ctx context.Context, internalID int64, remoteMessageID string, sentAt time.Time) error {
	key := fmt.Sprintf("msg:%d", internalID)
	val := sentValue{
		RemoteMessageID: remoteMessageID,
		SentAt:          sentAt.UTC(),
	}

	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

func (c *RedisCache) LastFooterAt(ctx context.Context, tenantID, phone string) (string, error) {
	v, err := c.rdb.Get(ctx, footerKey(tenantID, phone)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (c *RedisCache) MarkFooterSent(ctx context.Context, tenantID, phone string, at time.Time) error {
	return c.rdb.Set(ctx, footerKey(tenantID, phone), at.UTC().Format(time.RFC3339Nano), c.footerTTL).Err()
}
