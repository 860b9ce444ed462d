package markdown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lauracd1s/Proyecto-licore/internal/config"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "licore:markdowns:current"

// NewRedisClient parses cfg.URL and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// RedisStore keeps the snapshot as one JSON value. The TTL should outlive
// the sweep interval so a failed sweep does not drop markdowns right away.
type RedisStore struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, key: DefaultRedisKey, ttl: ttl}
}

// WithKey returns a copy of the store writing under key.
func (s *RedisStore) WithKey(key string) *RedisStore {
	cp := *s
	cp.key = key
	return &cp
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal markdown snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save markdown snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("load markdown snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode markdown snapshot: %w", err)
	}
	if snap.Markdowns == nil {
		snap.Markdowns = map[int64]pricing.Markdown{}
	}
	return &snap, nil
}
