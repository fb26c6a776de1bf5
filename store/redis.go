package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ByLCY/offerpress/offer"
)

const defaultRedisPrefix = "offerpress:offer:"

// Redis 以 JSON 字符串形式将快照存于 prefix+id 下。
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ SnapshotStore = (*Redis)(nil)

// ConnectRedis 连接 addr 并检查连通性。
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store/redis: ping: %w", err)
	}
	return client, nil
}

// NewRedis 包装 client；ttl <= 0 表示永不过期。
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: defaultRedisPrefix, ttl: ttl}
}

func (r *Redis) key(id string) string { return r.prefix + id }

func (r *Redis) Save(ctx context.Context, id string, snap *offer.Snapshot) (string, error) {
	id, cp := prepare(id, snap)
	data, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("store/redis: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(id), data, r.ttl).Err(); err != nil {
		return "", fmt.Errorf("store/redis: set: %w", err)
	}
	return id, nil
}

func (r *Redis) Get(ctx context.Context, id string) (*offer.Snapshot, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store/redis: get: %w", err)
	}
	return decodeSnapshot(data)
}

// MarkViewed 在 WATCH 下更新记录，并发写入不会丢失。
func (r *Redis) MarkViewed(ctx context.Context, id string, at time.Time) (*offer.Snapshot, error) {
	key := r.key(id)
	var out *offer.Snapshot
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		snap, err := decodeSnapshot(data)
		if err != nil {
			return err
		}
		if err := snap.MarkViewed(at); err != nil {
			return err
		}
		encoded, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, redis.KeepTTL)
			return nil
		})
		out = snap
		return err
	}

	for range 3 {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			if errors.Is(err, ErrNotFound) || errors.Is(err, offer.ErrNotSent) {
				return nil, err
			}
			return nil, fmt.Errorf("store/redis: mark viewed: %w", err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("store/redis: mark viewed: %w", redis.TxFailedErr)
}

func decodeSnapshot(data []byte) (*offer.Snapshot, error) {
	var snap offer.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return &snap, nil
}
