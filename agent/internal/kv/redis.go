package kv

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Redis keeps every entry as a plain string key under prefix.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.prefix + k
	}
	vals, err := r.rdb.MGet(ctx, full...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			out[keys[i]] = json.RawMessage(s)
		}
	}
	return out, nil
}

func (r *Redis) Set(ctx context.Context, values map[string]any) error {
	enc, err := encode(values)
	if err != nil {
		return err
	}
	if len(enc) == 0 {
		return nil
	}
	pairs := make([]any, 0, 2*len(enc))
	for k, v := range enc {
		pairs = append(pairs, r.prefix+k, v)
	}
	return r.rdb.MSet(ctx, pairs...).Err()
}

func (r *Redis) Close() error { return r.rdb.Close() }
