// Package cache keeps the active category list close to the API. The Mini App
// fetches it on every form open.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"linkbot/internal/catalog"
)

// Cache stores one value: the active category list.
type Cache interface {
	Get(ctx context.Context) ([]catalog.Category, bool, error)
	Set(ctx context.Context, cats []catalog.Category) error
	Invalidate(ctx context.Context) error
	Close() error
}

type Config struct {
	Driver   string // none | memory | redis
	TTL      time.Duration
	Addr     string
	Password string
	DB       int
	Key      string
}

// New builds the configured cache. "none" (or empty) returns a Nop cache.
func New(cfg Config) (Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return Nop{}, nil
	case "memory":
		return NewMemory(cfg.TTL), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
		return NewRedis(rdb, cfg.Key, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

type Nop struct{}

func (Nop) Get(context.Context) ([]catalog.Category, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, []catalog.Category) error         { return nil }
func (Nop) Invalidate(context.Context) error                      { return nil }
func (Nop) Close() error                                          { return nil }

// Memory is an in-process cache with a TTL.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	cats    []catalog.Category
	expires time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now}
}

func (m *Memory) Get(context.Context) ([]catalog.Category, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cats == nil || !m.now().Before(m.expires) {
		return nil, false, nil
	}
	return append([]catalog.Category(nil), m.cats...), true, nil
}

func (m *Memory) Set(_ context.Context, cats []catalog.Category) error {
	m.mu.Lock()
	m.cats = append(make([]catalog.Category, 0, len(cats)), cats...)
	m.expires = m.now().Add(m.ttl)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(context.Context) error {
	m.mu.Lock()
	m.cats = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Redis stores the list as JSON under one key with an expiry.
type Redis struct {
	rdb redis.UniversalClient
	key string
	ttl time.Duration
}

// entry is the stored shape. Links counts are kept so the bot can share it.
type entry struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Emoji    string `json:"emoji"`
	Position int    `json:"position"`
	Links    int    `json:"links"`
}

func NewRedis(rdb redis.UniversalClient, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = "linkbot:categories:active"
	}
	return &Redis{rdb: rdb, key: key, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context) ([]catalog.Category, bool, error) {
	b, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var es []entry
	if err := json.Unmarshal(b, &es); err != nil {
		// Corrupt value: treat as a miss; the next Set overwrites it.
		return nil, false, nil
	}
	out := make([]catalog.Category, 0, len(es))
	for _, e := range es {
		out = append(out, catalog.Category{ID: e.ID, Name: e.Name, Emoji: e.Emoji, Position: e.Position, Active: true, Links: e.Links})
	}
	return out, true, nil
}

func (r *Redis) Set(ctx context.Context, cats []catalog.Category) error {
	es := make([]entry, 0, len(cats))
	for _, c := range cats {
		es = append(es, entry{ID: c.ID, Name: c.Name, Emoji: c.Emoji, Position: c.Position, Links: c.Links})
	}
	b, err := json.Marshal(es)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key, b, r.ttl).Err()
}

func (r *Redis) Invalidate(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key).Err()
}

func (r *Redis) Close() error { return r.rdb.Close() }
