package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists raw cart payloads by key.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string][]byte{}}
}

func (m *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *MemoryStore) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), data...)
	return nil
}

// RedisStore keeps carts with a sliding expiry.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	return s.rdb.Set(ctx, key, data, s.ttl).Err()
}

// Session binds one cart to its storage key. Every mutation is written
// through before it returns.
type Session struct {
	store Store
	key   string
}

func NewSession(store Store, owner string) *Session {
	return &Session{store: store, key: StorageKey + ":" + owner}
}

// Load returns the stored cart; unreadable data yields an empty cart.
func (s *Session) Load(ctx context.Context) (*Cart, error) {
	b, err := s.store.Load(ctx, s.key)
	if err != nil {
		return nil, err
	}
	c := &Cart{}
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, &c.Items); err != nil {
		return &Cart{}, nil
	}
	c.normalize()
	return c, nil
}

// Apply loads the cart, runs fn and persists the result.
func (s *Session) Apply(ctx context.Context, fn func(*Cart)) (*Cart, error) {
	c, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	fn(c)
	items := c.Items
	if items == nil {
		items = []Item{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, s.key, b); err != nil {
		return nil, err
	}
	return c, nil
}
