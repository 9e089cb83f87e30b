package repository

import (
	"context"
	"errors"

	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/kv"
)

var ErrNoCachedUser = errors.New("no cached user")

// Queue is a FIFO of pending entries persisted under one key. Enqueueing an
// entry whose id is already queued is a no-op.
type Queue[T pending.Entry] struct {
	name string
	blob blob[T]
}

func NewQueue[T pending.Entry](store kv.Store, locks *kv.Locker, key string) *Queue[T] {
	return &Queue[T]{name: key, blob: newBlob[T](store, locks, key)}
}

// Name is the storage key, also used as the queue label in logs and metrics.
func (q *Queue[T]) Name() string {
	return q.name
}

// Enqueue appends e and reports whether it was added.
func (q *Queue[T]) Enqueue(ctx context.Context, e T) (bool, error) {
	var added bool
	err := q.blob.update(ctx, func(items []T) ([]T, bool, error) {
		for _, it := range items {
			if it.EntryID() == e.EntryID() {
				return items, false, nil
			}
		}
		added = true
		return append(items, e), true, nil
	})
	return added, err
}

// PeekAll returns the queued entries in enqueue order.
func (q *Queue[T]) PeekAll(ctx context.Context) ([]T, error) {
	return q.blob.read(ctx)
}

// RemoveMatching drops every entry matching pred, keeping the relative order
// of the rest, and returns how many were removed.
func (q *Queue[T]) RemoveMatching(ctx context.Context, pred func(T) bool) (int, error) {
	var n int
	err := q.blob.update(ctx, func(items []T) ([]T, bool, error) {
		out := items[:0:0]
		for _, it := range items {
			if pred(it) {
				n++
				continue
			}
			out = append(out, it)
		}
		return out, n > 0, nil
	})
	return n, err
}

// RemoveEntries drops exactly the given entries. Entries enqueued after they
// were read are left alone even when they share an id.
func (q *Queue[T]) RemoveEntries(ctx context.Context, done []T) (int, error) {
	if len(done) == 0 {
		return 0, nil
	}
	return q.RemoveMatching(ctx, func(it T) bool {
		for _, d := range done {
			if pending.Same(it, d) {
				return true
			}
		}
		return false
	})
}

// RemoveID drops the entry with id.
func (q *Queue[T]) RemoveID(ctx context.Context, id string) (bool, error) {
	n, err := q.RemoveMatching(ctx, func(it T) bool { return it.EntryID() == id })
	return n > 0, err
}

// Update rewrites the queue under its lock. fn reports whether it changed
// anything.
func (q *Queue[T]) Update(ctx context.Context, fn func([]T) ([]T, bool)) error {
	return q.blob.update(ctx, func(items []T) ([]T, bool, error) {
		next, changed := fn(items)
		return next, changed, nil
	})
}

// Clear drops every entry.
func (q *Queue[T]) Clear(ctx context.Context) (int, error) {
	return q.RemoveMatching(ctx, func(T) bool { return true })
}

func (q *Queue[T]) Len(ctx context.Context) (int, error) {
	items, err := q.blob.read(ctx)
	return len(items), err
}

// EnqueueResult tells what a social enqueue did to the queue.
type EnqueueResult int

const (
	Queued EnqueueResult = iota
	// Duplicate means the same action was already pending.
	Duplicate
	// Cancelled means an opposing action was pending; both are gone.
	Cancelled
)

func (r EnqueueResult) String() string {
	switch r {
	case Duplicate:
		return "duplicate"
	case Cancelled:
		return "cancelled"
	}
	return "queued"
}

// SocialQueue holds at most one follow/unfollow per subject. An action that
// contradicts the pending one cancels both.
type SocialQueue struct {
	*Queue[pending.SocialAction]
}

func NewSocialQueue(store kv.Store, locks *kv.Locker) *SocialQueue {
	return &SocialQueue{Queue: NewQueue[pending.SocialAction](store, locks, KeyPendingSocialActions)}
}

func (q *SocialQueue) Enqueue(ctx context.Context, a pending.SocialAction) (EnqueueResult, error) {
	res := Queued
	err := q.blob.update(ctx, func(items []pending.SocialAction) ([]pending.SocialAction, bool, error) {
		for i, it := range items {
			if it.SubjectUserID != a.SubjectUserID {
				continue
			}
			if it.Type == a.Type {
				res = Duplicate
				return items, false, nil
			}
			res = Cancelled
			out := append(items[:i:i], items[i+1:]...)
			return out, true, nil
		}
		return append(items, a), true, nil
	})
	return res, err
}

// Lookup returns the pending action for subject, if any.
func (q *SocialQueue) Lookup(ctx context.Context, subject string) (pending.SocialAction, bool, error) {
	items, err := q.PeekAll(ctx)
	if err != nil {
		return pending.SocialAction{}, false, err
	}
	for _, it := range items {
		if it.SubjectUserID == subject {
			return it, true, nil
		}
	}
	return pending.SocialAction{}, false, nil
}
