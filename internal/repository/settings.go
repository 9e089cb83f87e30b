package repository

import (
	"context"
	"fmt"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/location"
	"snapshoot-sync/internal/domain/user"
	"snapshoot-sync/internal/kv"
)

// TokenStore holds the raw bearer token. It is stored unencoded so other
// clients of the same store can read it as-is.
type TokenStore struct {
	store kv.Store
}

func NewTokenStore(store kv.Store) *TokenStore {
	return &TokenStore{store: store}
}

func (t *TokenStore) Get(ctx context.Context) (string, error) {
	tok, _, err := t.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", KeyAuthToken, err)
	}
	return tok, nil
}

func (t *TokenStore) Set(ctx context.Context, token string) error {
	return t.store.Set(ctx, KeyAuthToken, token)
}

func (t *TokenStore) Clear(ctx context.Context) error {
	return t.store.Remove(ctx, KeyAuthToken)
}

// IDSetStore is a persisted set of ids, used for viewed and liked stories.
type IDSetStore struct {
	v *value[domain.IDSet]
}

func NewIDSetStore(store kv.Store, locks *kv.Locker, key string) *IDSetStore {
	return &IDSetStore{v: newValue[domain.IDSet](store, locks, key)}
}

func (s *IDSetStore) All(ctx context.Context) (domain.IDSet, error) {
	set, _, err := s.v.Get(ctx)
	return set, err
}

func (s *IDSetStore) Has(ctx context.Context, id string) (bool, error) {
	set, err := s.All(ctx)
	return set.Has(id), err
}

func (s *IDSetStore) Add(ctx context.Context, id string) error {
	_, err := s.v.Update(ctx, func(set domain.IDSet, _ bool) (domain.IDSet, error) {
		return set.Add(id), nil
	})
	return err
}

func (s *IDSetStore) Remove(ctx context.Context, id string) error {
	_, err := s.v.Update(ctx, func(set domain.IDSet, _ bool) (domain.IDSet, error) {
		return set.Remove(id), nil
	})
	return err
}

// UserStore holds the cached current user (user_data).
type UserStore struct {
	v *value[user.User]
}

func NewUserStore(store kv.Store, locks *kv.Locker) *UserStore {
	return &UserStore{v: newValue[user.User](store, locks, KeyUserData)}
}

func (s *UserStore) Get(ctx context.Context) (user.User, bool, error) {
	return s.v.Get(ctx)
}

func (s *UserStore) Set(ctx context.Context, u user.User) error {
	return s.v.Set(ctx, u)
}

func (s *UserStore) Clear(ctx context.Context) error {
	return s.v.Clear(ctx)
}

// Update applies fn to the cached user. It returns ErrNoCachedUser when
// nothing is cached.
func (s *UserStore) Update(ctx context.Context, fn func(user.User) user.User) (user.User, error) {
	return s.v.Update(ctx, func(u user.User, ok bool) (user.User, error) {
		if !ok {
			return u, ErrNoCachedUser
		}
		return fn(u), nil
	})
}

// LocationStore holds the last fix, the sharing toggle and the privacy
// settings.
type LocationStore struct {
	fix     *value[location.Fix]
	enabled *value[bool]
	privacy *value[location.Privacy]
}

func NewLocationStore(store kv.Store, locks *kv.Locker) *LocationStore {
	return &LocationStore{
		fix:     newValue[location.Fix](store, locks, KeyLocationCache),
		enabled: newValue[bool](store, locks, KeyLocationOn),
		privacy: newValue[location.Privacy](store, locks, KeyLocationPriv),
	}
}

func (s *LocationStore) LastFix(ctx context.Context) (location.Fix, bool, error) {
	return s.fix.Get(ctx)
}

func (s *LocationStore) SetFix(ctx context.Context, f location.Fix) error {
	return s.fix.Set(ctx, f)
}

// MarkSynced flags the cached fix as acknowledged if it still holds c.
func (s *LocationStore) MarkSynced(ctx context.Context, c location.Coordinates) error {
	_, err := s.fix.Update(ctx, func(f location.Fix, ok bool) (location.Fix, error) {
		if ok && f.Coordinates == c {
			f.Synced = true
		}
		return f, nil
	})
	return err
}

// Enabled defaults to false until the user opts in.
func (s *LocationStore) Enabled(ctx context.Context) (bool, error) {
	on, _, err := s.enabled.Get(ctx)
	return on, err
}

func (s *LocationStore) SetEnabled(ctx context.Context, on bool) error {
	return s.enabled.Set(ctx, on)
}

func (s *LocationStore) Privacy(ctx context.Context) (location.Privacy, error) {
	p, ok, err := s.privacy.Get(ctx)
	if err != nil || !ok {
		return location.DefaultPrivacy(), err
	}
	return p, nil
}

func (s *LocationStore) SetPrivacy(ctx context.Context, p location.Privacy) error {
	return s.privacy.Set(ctx, p)
}

// NotificationStore holds the reminder preferences under their two keys.
type NotificationStore struct {
	enabled *value[bool]
	at      *value[string]
}

func NewNotificationStore(store kv.Store, locks *kv.Locker) *NotificationStore {
	return &NotificationStore{
		enabled: newValue[bool](store, locks, KeyNotifyEnabled),
		at:      newValue[string](store, locks, KeyNotifyTime),
	}
}

func (s *NotificationStore) Get(ctx context.Context) (user.NotificationPreferences, error) {
	on, _, err := s.enabled.Get(ctx)
	if err != nil {
		return user.NotificationPreferences{}, err
	}
	at, _, err := s.at.Get(ctx)
	if err != nil {
		return user.NotificationPreferences{}, err
	}
	return user.NotificationPreferences{Enabled: on, Time: at}, nil
}

func (s *NotificationStore) Set(ctx context.Context, p user.NotificationPreferences) error {
	if err := s.enabled.Set(ctx, p.Enabled); err != nil {
		return err
	}
	return s.at.Set(ctx, p.Time)
}
