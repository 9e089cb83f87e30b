package repository

import (
	"context"
	"fmt"
	"time"

	"snapshoot-sync/internal/domain/media"
	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/kv"
)

// Repositories groups every cache and queue over one store. All of them
// share one Locker, so there is exactly one writer per key.
type Repositories struct {
	Token         *TokenStore
	User          *UserStore
	Stories       *StoryCache
	Viewed        *IDSetStore
	Liked         *IDSetStore
	Conversations *ConversationCache
	Messages      *MessageCache
	Media         *Cache[media.Media]
	Location      *LocationStore
	Notifications *NotificationStore

	PendingStories       *Queue[pending.Story]
	PendingMessages      *Queue[pending.Message]
	PendingSocial        *SocialQueue
	PendingUploads       *Queue[pending.Upload]
	PendingDeletions     *Queue[pending.Deletion]
	PendingProfile       *Queue[pending.ProfileUpdate]
	PendingLocations     *Queue[pending.LocationUpdate]
	PendingPrivacy       *Queue[pending.PrivacyUpdate]
	PendingNotifications *Queue[pending.NotificationUpdate]

	store kv.Store
	locks *kv.Locker
	owner *value[string]
}

// userScoped lists the keys that belong to the signed-in account rather than
// the device.
var userScoped = []string{
	KeyStories, KeyViewedStories, KeyLikedStories, KeyConversations, KeyMessages,
	KeyMediaCache, KeyLocationCache, KeyLocationPriv, KeyNotifyEnabled, KeyNotifyTime,
	KeyPendingStories, KeyPendingMessages, KeyPendingSocialActions, KeyPendingUploads,
	KeyPendingDeletions, KeyPendingUserUpdates, KeyPendingLocations, KeyPendingPrivacy,
	KeyPendingNotifications,
}

// ClaimFor records userID as the owner of the cached data and queues. When
// another user owned them they are dropped first, and switched is true.
func (r *Repositories) ClaimFor(ctx context.Context, userID string) (switched bool, err error) {
	prev, _, err := r.owner.Get(ctx)
	if err != nil {
		return false, err
	}
	if prev == userID {
		return false, nil
	}
	if prev != "" {
		for _, key := range userScoped {
			unlock := r.locks.Lock(key)
			err := r.store.Remove(ctx, key)
			unlock()
			if err != nil {
				return false, fmt.Errorf("clearing %s: %w", key, err)
			}
		}
		switched = true
	}
	return switched, r.owner.Set(ctx, userID)
}

// New builds the repositories. now drives story expiry and defaults to
// time.Now.
func New(store kv.Store, now func() time.Time) *Repositories {
	locks := kv.NewLocker()
	return &Repositories{
		Token:         NewTokenStore(store),
		User:          NewUserStore(store, locks),
		Stories:       NewStoryCache(store, locks, now),
		Viewed:        NewIDSetStore(store, locks, KeyViewedStories),
		Liked:         NewIDSetStore(store, locks, KeyLikedStories),
		Conversations: NewConversationCache(store, locks),
		Messages:      NewMessageCache(store, locks),
		Media:         NewCache[media.Media](store, locks, KeyMediaCache),
		Location:      NewLocationStore(store, locks),
		Notifications: NewNotificationStore(store, locks),

		PendingStories:       NewQueue[pending.Story](store, locks, KeyPendingStories),
		PendingMessages:      NewQueue[pending.Message](store, locks, KeyPendingMessages),
		PendingSocial:        NewSocialQueue(store, locks),
		PendingUploads:       NewQueue[pending.Upload](store, locks, KeyPendingUploads),
		PendingDeletions:     NewQueue[pending.Deletion](store, locks, KeyPendingDeletions),
		PendingProfile:       NewQueue[pending.ProfileUpdate](store, locks, KeyPendingUserUpdates),
		PendingLocations:     NewQueue[pending.LocationUpdate](store, locks, KeyPendingLocations),
		PendingPrivacy:       NewQueue[pending.PrivacyUpdate](store, locks, KeyPendingPrivacy),
		PendingNotifications: NewQueue[pending.NotificationUpdate](store, locks, KeyPendingNotifications),

		store: store,
		locks: locks,
		owner: newValue[string](store, locks, KeyDataOwner),
	}
}
