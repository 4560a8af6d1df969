package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore implementa Store usando patrickmn/go-cache.
// Útil para desarrollo y testing; los payloads se pierden al reiniciar.
type memoryStore struct {
	c *gocache.Cache
}

// NewMemory crea un store en memoria. purgeInterval controla el barrido
// interno de go-cache (default 1 minuto).
func NewMemory(purgeInterval time.Duration) Store {
	if purgeInterval <= 0 {
		purgeInterval = time.Minute
	}
	return &memoryStore{c: gocache.New(gocache.NoExpiration, purgeInterval)}
}

func (m *memoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *memoryStore) PurgeExpired(ctx context.Context) error {
	m.c.DeleteExpired()
	return nil
}

func (m *memoryStore) Ping(ctx context.Context) error { return nil }

func (m *memoryStore) Close() error {
	m.c.Flush()
	return nil
}
