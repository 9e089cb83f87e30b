package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/message"
	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/domain/story"
	"snapshoot-sync/internal/domain/user"
	"snapshoot-sync/internal/kv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStoryCache_PrunesExpiredOnRead(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repos := New(store, fixedClock(epoch))

	live := story.New("s1", "u1", "https://cdn/1.jpg", domain.MediaKindImage, epoch.Add(-time.Hour))
	stale := story.New("s2", "u1", "https://cdn/2.jpg", domain.MediaKindImage, epoch.Add(-story.Lifetime-time.Second))
	raw, err := json.Marshal([]story.Story{live, stale})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, KeyStories, string(raw)))

	got, err := repos.Stories.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)

	persisted, ok, err := store.Get(ctx, KeyStories)
	require.NoError(t, err)
	require.True(t, ok)
	var onDisk []story.Story
	require.NoError(t, json.Unmarshal([]byte(persisted), &onDisk))
	require.Len(t, onDisk, 1)
	assert.Equal(t, "s1", onDisk[0].ID)
}

func TestStoryCache_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	created := epoch.Add(-story.Lifetime)
	repos := New(kv.NewMemoryStore(), fixedClock(epoch))

	// expiresAt == now is still visible; only now > expiresAt hides it
	require.NoError(t, repos.Stories.Upsert(ctx, story.New("edge", "u1", "", domain.MediaKindImage, created)))
	_, ok, err := repos.Stories.Get(ctx, "edge")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoryCache_MergeKeepsPending(t *testing.T) {
	ctx := context.Background()
	repos := New(kv.NewMemoryStore(), fixedClock(epoch))

	local := story.New("local_1", "u1", "/tmp/a.jpg", domain.MediaKindImage, epoch)
	local.Pending = true
	require.NoError(t, repos.Stories.Upsert(ctx, local))
	require.NoError(t, repos.Stories.Upsert(ctx, story.New("gone", "u2", "x", domain.MediaKindImage, epoch)))

	remote := []story.Story{story.New("r1", "u3", "y", domain.MediaKindImage, epoch)}
	require.NoError(t, repos.Stories.Merge(ctx, remote, true, ""))

	got, err := repos.Stories.ReadAll(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{"r1", "local_1"}, ids)
}

func TestStoryCache_MergeKeepsOwnerStories(t *testing.T) {
	ctx := context.Background()
	repos := New(kv.NewMemoryStore(), fixedClock(epoch))

	require.NoError(t, repos.Stories.Upsert(ctx, story.New("mine", "u1", "x", domain.MediaKindImage, epoch)))
	require.NoError(t, repos.Stories.Upsert(ctx, story.New("theirs", "u2", "x", domain.MediaKindImage, epoch)))

	require.NoError(t, repos.Stories.Merge(ctx, nil, true, "u1"))

	got, err := repos.Stories.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mine", got[0].ID)
}

func TestRepositories_ClaimForDropsPreviousUsersData(t *testing.T) {
	ctx := context.Background()
	repos := New(kv.NewMemoryStore(), fixedClock(epoch))

	switched, err := repos.ClaimFor(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, switched)
	require.NoError(t, repos.Token.Set(ctx, "tok"))
	require.NoError(t, repos.Stories.Upsert(ctx, story.New("s1", "u1", "x", domain.MediaKindImage, epoch)))
	_, err = repos.PendingSocial.Enqueue(ctx, pending.SocialAction{Type: pending.SocialFollow, SubjectUserID: "42", OwnerID: "u1", LoggedAt: epoch})
	require.NoError(t, err)

	// the same user signing in again keeps everything
	switched, err = repos.ClaimFor(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, switched)
	n, err := repos.PendingSocial.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	switched, err = repos.ClaimFor(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, switched)
	n, err = repos.PendingSocial.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	stories, err := repos.Stories.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, stories)

	tok, err := repos.Token.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestCache_UpsertReplacesInPlace(t *testing.T) {
	ctx := context.Background()
	repos := New(kv.NewMemoryStore(), nil)

	require.NoError(t, repos.Messages.Upsert(ctx, message.Message{ID: "m1", Content: "a"}))
	require.NoError(t, repos.Messages.Upsert(ctx, message.Message{ID: "m2", Content: "b"}))
	require.NoError(t, repos.Messages.Upsert(ctx, message.Message{ID: "m1", Content: "edited"}))

	all, err := repos.Messages.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "edited", all[0].Content)

	removed, err := repos.Messages.Remove(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repos.Messages.Remove(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestConversationCache_GetOrCreateDirectDedups(t *testing.T) {
	ctx := context.Background()
	repos := New(kv.NewMemoryStore(), nil)

	first, created, err := repos.Conversations.GetOrCreateDirect(ctx, "alice", "bob", epoch)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repos.Conversations.GetOrCreateDirect(ctx, "bob", "alice", epoch.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := repos.Conversations.GetOrCreateDirect(ctx, "carol", "dave", epoch)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := repos.Conversations.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMessageCache_MarkReadSkipsOwnMessages(t *testing.T) {
	ctx := context.Background()
	repos := New(kv.NewMemoryStore(), nil)

	require.NoError(t, repos.Messages.Upsert(ctx, message.Message{ID: "m1", ConversationID: "c", SenderID: "me"}))
	require.NoError(t, repos.Messages.Upsert(ctx, message.Message{ID: "m2", ConversationID: "c", SenderID: "them"}))
	require.NoError(t, repos.Messages.Upsert(ctx, message.Message{ID: "m3", ConversationID: "other", SenderID: "them"}))

	n, err := repos.Messages.MarkRead(ctx, "c", "me")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	msgs, err := repos.Messages.ForConversation(ctx, "c")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].IsRead)
	assert.True(t, msgs[1].IsRead)

	n, err = repos.Messages.MarkRead(ctx, "c", "me")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueue_EnqueueSameIDIsNoop(t *testing.T) {
	ctx := context.Background()
	repos := New(kv.NewMemoryStore(), nil)
	q := repos.PendingUploads

	added, err := q.Enqueue(ctx, pending.Upload{ID: "u1", LocalPath: "/tmp/a.jpg", LoggedAt: epoch})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = q.Enqueue(ctx, pending.Upload{ID: "u1", LocalPath: "/tmp/b.jpg", LoggedAt: epoch})
	require.NoError(t, err)
	assert.False(t, added)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueue_RemoveEntriesKeepsOrderAndLaterEntries(t *testing.T) {
	ctx := context.Background()
	repos := New(kv.NewMemoryStore(), nil)
	q := repos.PendingMessages

	for i, id := range []string{"a", "b", "c", "d"} {
		_, err := q.Enqueue(ctx, pending.Message{ID: id, LoggedAt: epoch.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}
	snapshot, err := q.PeekAll(ctx)
	require.NoError(t, err)

	n, err := q.RemoveEntries(ctx, []pending.Message{snapshot[0], snapshot[2]})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rest, err := q.PeekAll(ctx)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "b", rest[0].ID)
	assert.Equal(t, "d", rest[1].ID)

	// a re-enqueued "a" with a new timestamp is not the entry that was synced
	_, err = q.Enqueue(ctx, pending.Message{ID: "a", LoggedAt: epoch.Add(time.Hour)})
	require.NoError(t, err)
	n, err = q.RemoveEntries(ctx, []pending.Message{snapshot[0]})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSocialQueue_DuplicateFollowIsSingleEntry(t *testing.T) {
	ctx := context.Background()
	q := New(kv.NewMemoryStore(), nil).PendingSocial

	res, err := q.Enqueue(ctx, pending.SocialAction{Type: pending.SocialFollow, SubjectUserID: "42", LoggedAt: epoch})
	require.NoError(t, err)
	assert.Equal(t, Queued, res)
	res, err = q.Enqueue(ctx, pending.SocialAction{Type: pending.SocialFollow, SubjectUserID: "42", LoggedAt: epoch.Add(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, Duplicate, res)

	items, err := q.PeekAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, epoch.Equal(items[0].LoggedAt))
}

func TestSocialQueue_ContradictionCancelsBoth(t *testing.T) {
	ctx := context.Background()
	q := New(kv.NewMemoryStore(), nil).PendingSocial

	_, err := q.Enqueue(ctx, pending.SocialAction{Type: pending.SocialFollow, SubjectUserID: "7", LoggedAt: epoch})
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, pending.SocialAction{Type: pending.SocialFollow, SubjectUserID: "42", LoggedAt: epoch})
	require.NoError(t, err)
	res, err := q.Enqueue(ctx, pending.SocialAction{Type: pending.SocialUnfollow, SubjectUserID: "42", LoggedAt: epoch.Add(time.Second)})
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res)

	items, err := q.PeekAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "7", items[0].SubjectUserID)

	_, ok, err := q.Lookup(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserStore_UpdateWithoutCachedUser(t *testing.T) {
	ctx := context.Background()
	repos := New(kv.NewMemoryStore(), nil)

	_, err := repos.User.Update(ctx, func(u user.User) user.User { return u })
	require.ErrorIs(t, err, ErrNoCachedUser)

	require.NoError(t, repos.User.Set(ctx, user.User{ID: "u1", Username: "ann"}))
	got, err := repos.User.Update(ctx, func(u user.User) user.User {
		u.Following = u.Following.Add("42")
		return u
	})
	require.NoError(t, err)
	assert.True(t, got.Following.Has("42"))
}

func TestLocationStore_Defaults(t *testing.T) {
	ctx := context.Background()
	repos := New(kv.NewMemoryStore(), nil)

	on, err := repos.Location.Enabled(ctx)
	require.NoError(t, err)
	assert.False(t, on)

	p, err := repos.Location.Privacy(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PrivacySettingContacts, p.Visibility)
}

func TestTokenStore_StoresRawToken(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repos := New(store, nil)

	require.NoError(t, repos.Token.Set(ctx, "abc.def.ghi"))
	raw, _, err := store.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", raw)
}
