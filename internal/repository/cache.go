package repository

import (
	"context"

	"snapshoot-sync/internal/kv"
)

// Entity is anything cached by id.
type Entity interface {
	EntityID() string
}

// Cache is a collection of entities kept under a single key. Ids are unique
// within the collection.
type Cache[T Entity] struct {
	blob blob[T]
}

func NewCache[T Entity](store kv.Store, locks *kv.Locker, key string) *Cache[T] {
	return &Cache[T]{blob: newBlob[T](store, locks, key)}
}

func (c *Cache[T]) ReadAll(ctx context.Context) ([]T, error) {
	return c.blob.read(ctx)
}

func (c *Cache[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	items, err := c.blob.read(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, it := range items {
		if it.EntityID() == id {
			return it, true, nil
		}
	}
	return zero, false, nil
}

// Upsert replaces the entity with the same id in place or appends e.
func (c *Cache[T]) Upsert(ctx context.Context, e T) error {
	return c.blob.update(ctx, func(items []T) ([]T, bool, error) {
		return upsert(items, e), true, nil
	})
}

// Remove deletes the entity with id and reports whether it existed.
func (c *Cache[T]) Remove(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := c.blob.update(ctx, func(items []T) ([]T, bool, error) {
		out := items[:0:0]
		for _, it := range items {
			if it.EntityID() == id {
				removed = true
				continue
			}
			out = append(out, it)
		}
		return out, removed, nil
	})
	return removed, err
}

// Mutate applies fn to the entity with id. fn reports whether it changed the
// entity; the returned bool is false when no entity has that id.
func (c *Cache[T]) Mutate(ctx context.Context, id string, fn func(*T) bool) (T, bool, error) {
	var (
		found T
		ok    bool
	)
	err := c.blob.update(ctx, func(items []T) ([]T, bool, error) {
		for i := range items {
			if items[i].EntityID() != id {
				continue
			}
			changed := fn(&items[i])
			found, ok = items[i], true
			return items, changed, nil
		}
		return items, false, nil
	})
	return found, ok, err
}

// Update runs fn over the whole collection under the key lock.
func (c *Cache[T]) Update(ctx context.Context, fn func([]T) ([]T, bool)) error {
	return c.blob.update(ctx, func(items []T) ([]T, bool, error) {
		next, changed := fn(items)
		return next, changed, nil
	})
}

func (c *Cache[T]) ReplaceAll(ctx context.Context, items []T) error {
	return c.blob.update(ctx, func([]T) ([]T, bool, error) {
		return items, true, nil
	})
}

func upsert[T Entity](items []T, e T) []T {
	for i := range items {
		if items[i].EntityID() == e.EntityID() {
			items[i] = e
			return items
		}
	}
	return append(items, e)
}
