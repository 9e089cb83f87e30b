package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"snapshoot-sync/internal/kv"
)

// blob is a JSON-encoded list stored under one key. Mutations go through
// update, which holds the key lock from read to write.
type blob[T any] struct {
	store kv.Store
	locks *kv.Locker
	key   string
}

func newBlob[T any](store kv.Store, locks *kv.Locker, key string) blob[T] {
	return blob[T]{store: store, locks: locks, key: key}
}

func (b blob[T]) load(ctx context.Context) ([]T, error) {
	raw, ok, err := b.store.Get(ctx, b.key)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", b.key, err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", b.key, err)
	}
	return items, nil
}

func (b blob[T]) save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", b.key, err)
	}
	if err := b.store.Set(ctx, b.key, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", b.key, err)
	}
	return nil
}

func (b blob[T]) read(ctx context.Context) ([]T, error) {
	unlock := b.locks.Lock(b.key)
	defer unlock()
	return b.load(ctx)
}

// update runs fn on the current items and persists the result when fn
// reports a change.
func (b blob[T]) update(ctx context.Context, fn func([]T) ([]T, bool, error)) error {
	unlock := b.locks.Lock(b.key)
	defer unlock()

	items, err := b.load(ctx)
	if err != nil {
		return err
	}
	next, changed, err := fn(items)
	if err != nil || !changed {
		return err
	}
	return b.save(ctx, next)
}

// value is a single JSON value stored under one key.
type value[T any] struct {
	store kv.Store
	locks *kv.Locker
	key   string
}

func newValue[T any](store kv.Store, locks *kv.Locker, key string) *value[T] {
	return &value[T]{store: store, locks: locks, key: key}
}

func (v *value[T]) load(ctx context.Context) (T, bool, error) {
	var out T
	raw, ok, err := v.store.Get(ctx, v.key)
	if err != nil {
		return out, false, fmt.Errorf("reading %s: %w", v.key, err)
	}
	if !ok || raw == "" {
		return out, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, false, fmt.Errorf("decoding %s: %w", v.key, err)
	}
	return out, true, nil
}

func (v *value[T]) save(ctx context.Context, val T) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", v.key, err)
	}
	if err := v.store.Set(ctx, v.key, string(data)); err != nil {
		return fmt.Errorf("writing %s: %w", v.key, err)
	}
	return nil
}

// Get returns the stored value and whether one exists.
func (v *value[T]) Get(ctx context.Context) (T, bool, error) {
	unlock := v.locks.Lock(v.key)
	defer unlock()
	return v.load(ctx)
}

func (v *value[T]) Set(ctx context.Context, val T) error {
	unlock := v.locks.Lock(v.key)
	defer unlock()
	return v.save(ctx, val)
}

func (v *value[T]) Clear(ctx context.Context) error {
	unlock := v.locks.Lock(v.key)
	defer unlock()
	return v.store.Remove(ctx, v.key)
}

// Update applies fn to the stored value (zero value and false when absent)
// and stores the result.
func (v *value[T]) Update(ctx context.Context, fn func(T, bool) (T, error)) (T, error) {
	unlock := v.locks.Lock(v.key)
	defer unlock()

	cur, ok, err := v.load(ctx)
	if err != nil {
		return cur, err
	}
	next, err := fn(cur, ok)
	if err != nil {
		return cur, err
	}
	return next, v.save(ctx, next)
}
