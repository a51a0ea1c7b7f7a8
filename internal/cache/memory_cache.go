package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the single-process stand-in used when Redis is not configured.
type MemoryCache struct {
	c         *gocache.Cache
	ttl       time.Duration
	footerTTL time.Duration
}

var (
	_ MessageCache = (*MemoryCache)(nil)
	_ FooterCache  = (*MemoryCache)(nil)
)

func NewMemoryCache(ttl, footerTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		c:         gocache.New(ttl, 10*time.Minute),
		ttl:       ttl,
		footerTTL: footerTTL,
	}
}

func (m *MemoryCache) StoreSent(ctx context.Context, internalID int64, remoteMessageID string, sentAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.c.Set(fmt.Sprintf("msg:%d", internalID), sentValue{
		RemoteMessageID: remoteMessageID,
		SentAt:          sentAt.UTC(),
	}, m.ttl)
	return nil
}

func (m *MemoryCache) LastFooterAt(ctx context.Context, tenantID, phone string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, ok := m.c.Get(footerKey(tenantID, phone))
	if !ok {
		return "", nil
	}
	s, _ := v.(string)
	return s, nil
}

func (m *MemoryCache) MarkFooterSent(ctx context.Context, tenantID, phone string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.c.Set(footerKey(tenantID, phone), at.UTC().Format(time.RFC3339Nano), m.footerTTL)
	return nil
}
