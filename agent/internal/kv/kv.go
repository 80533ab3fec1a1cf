// Package kv is the durable key-value record shared by every context of the
// agent. Values are JSON documents; Set merges, leaving unspecified keys
// untouched. There are no transactions across calls.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv: store closed")

type Store interface {
	// Get returns the raw JSON value of every requested key that exists.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	// Set merges values into the store.
	Set(ctx context.Context, values map[string]any) error
	Close() error
}

func encode(values map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		out[k] = string(b)
	}
	return out, nil
}

// Decode unmarshals key from a Get result into dst. It reports whether the
// key was present.
func Decode(got map[string]json.RawMessage, key string, dst any) (bool, error) {
	raw, ok := got[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
