package repository

import (
	"context"
	"time"

	"snapshoot-sync/internal/domain/story"
	"snapshoot-sync/internal/kv"
)

// StoryCache keeps the local story mirror. Expired stories are invisible to
// every read and are pruned from storage the first time a read sees them.
type StoryCache struct {
	blob blob[story.Story]
	now  func() time.Time
}

func NewStoryCache(store kv.Store, locks *kv.Locker, now func() time.Time) *StoryCache {
	if now == nil {
		now = time.Now
	}
	return &StoryCache{blob: newBlob[story.Story](store, locks, KeyStories), now: now}
}

// ReadAll returns the active stories and compacts the stored blob when any
// expired entries were found.
func (c *StoryCache) ReadAll(ctx context.Context) ([]story.Story, error) {
	var active []story.Story
	err := c.blob.update(ctx, func(items []story.Story) ([]story.Story, bool, error) {
		active = pruneExpired(items, c.now())
		return active, len(active) != len(items), nil
	})
	return active, err
}

func (c *StoryCache) Get(ctx context.Context, id string) (story.Story, bool, error) {
	items, err := c.ReadAll(ctx)
	if err != nil {
		return story.Story{}, false, err
	}
	for _, s := range items {
		if s.ID == id {
			return s, true, nil
		}
	}
	return story.Story{}, false, nil
}

func (c *StoryCache) Upsert(ctx context.Context, s story.Story) error {
	return c.blob.update(ctx, func(items []story.Story) ([]story.Story, bool, error) {
		return upsert(pruneExpired(items, c.now()), s), true, nil
	})
}

func (c *StoryCache) Remove(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := c.blob.update(ctx, func(items []story.Story) ([]story.Story, bool, error) {
		out := items[:0:0]
		for _, s := range items {
			if s.ID == id {
				removed = true
				continue
			}
			out = append(out, s)
		}
		return out, removed, nil
	})
	return removed, err
}

// Mutate applies fn to the active story with id.
func (c *StoryCache) Mutate(ctx context.Context, id string, fn func(*story.Story) bool) (story.Story, bool, error) {
	var (
		found story.Story
		ok    bool
	)
	err := c.blob.update(ctx, func(items []story.Story) ([]story.Story, bool, error) {
		items = pruneExpired(items, c.now())
		for i := range items {
			if items[i].ID != id {
				continue
			}
			fn(&items[i])
			found, ok = items[i], true
			break
		}
		return items, true, nil
	})
	return found, ok, err
}

// Merge overwrites cached stories with server copies. When replace is set,
// synced stories missing from remote are dropped, except those owned by
// ownerID, which the feed may omit. Pending local stories are always kept.
func (c *StoryCache) Merge(ctx context.Context, remote []story.Story, replace bool, ownerID string) error {
	now := c.now()
	return c.blob.update(ctx, func(items []story.Story) ([]story.Story, bool, error) {
		var out []story.Story
		seen := make(map[string]bool, len(remote))
		for _, r := range remote {
			if r.Expired(now) {
				continue
			}
			seen[r.ID] = true
			out = append(out, r)
		}
		for _, s := range items {
			if seen[s.ID] || s.Expired(now) {
				continue
			}
			if replace && !s.Pending && (ownerID == "" || s.UserID != ownerID) {
				continue
			}
			out = append(out, s)
		}
		return out, true, nil
	})
}

func pruneExpired(items []story.Story, now time.Time) []story.Story {
	out := items[:0:0]
	for _, s := range items {
		if !s.Expired(now) {
			out = append(out, s)
		}
	}
	return out
}
