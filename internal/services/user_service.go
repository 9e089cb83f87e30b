package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"snapshoot-sync/internal/api"
	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/domain/user"
	"snapshoot-sync/internal/repository"
	snapshoot_errors "snapshoot-sync/pkg/errors"
)

type UserRemote interface {
	Me(ctx context.Context) (user.User, error)
	UpdateMe(ctx context.Context, upd user.ProfileUpdate) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	SearchUsers(ctx context.Context, query string) ([]user.User, error)
	UpdateNotificationPreferences(ctx context.Context, prefs user.NotificationPreferences) error
}

type UserService struct {
	env    *Env
	repos  *repository.Repositories
	remote UserRemote
}

func NewUserService(env *Env, repos *repository.Repositories, remote UserRemote) *UserService {
	return &UserService{env: env, repos: repos, remote: remote}
}

// GetCurrentUser answers from the cache without waiting on the network and
// refreshes in the background when online. With nothing cached it fetches
// synchronously, or falls back to the identity in the token.
func (s *UserService) GetCurrentUser(ctx context.Context) (user.User, error) {
	if _, err := s.env.Auth.CurrentUserID(ctx); err != nil {
		return user.User{}, err
	}
	cached, ok, err := s.repos.User.Get(ctx)
	if err != nil {
		return user.User{}, err
	}
	if ok {
		if s.env.Signal.Online() {
			s.env.background(ctx, "user.refresh", func(ctx context.Context) error {
				_, err := s.RefreshCurrentUser(ctx)
				return err
			})
		}
		return cached, nil
	}

	if s.env.Signal.Online() {
		if u, err := s.RefreshCurrentUser(ctx); err == nil {
			return u, nil
		}
	}
	return s.env.Auth.CurrentUser(ctx)
}

// RefreshCurrentUser overwrites the cached profile with the server's and
// re-applies changes still waiting to sync.
func (s *UserService) RefreshCurrentUser(ctx context.Context) (user.User, error) {
	remote, err := s.remote.Me(ctx)
	if err != nil {
		return user.User{}, fmt.Errorf("%w: %v", snapshoot_errors.ErrRemoteUnavailable, err)
	}
	return s.storeReconciled(ctx, remote)
}

func (s *UserService) storeReconciled(ctx context.Context, u user.User) (user.User, error) {
	updates, err := s.repos.PendingProfile.PeekAll(ctx)
	if err != nil {
		return user.User{}, err
	}
	for _, p := range updates {
		u = p.Update.Apply(u)
	}
	actions, err := s.repos.PendingSocial.PeekAll(ctx)
	if err != nil {
		return user.User{}, err
	}
	for _, a := range actions {
		u = applySocial(u, a)
	}
	if u.Following == nil {
		u.Following = domain.IDSet{}
	}
	if u.Followers == nil {
		u.Followers = domain.IDSet{}
	}
	if err := s.repos.User.Set(ctx, u); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, upd user.ProfileUpdate) (user.User, Outcome, error) {
	if upd.Empty() {
		return user.User{}, Offline, snapshoot_errors.ErrInvalidInput
	}
	userID, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return user.User{}, Offline, err
	}

	var result user.User
	outcome, err := attempt(ctx, s.env, "user.update_profile",
		func(ctx context.Context) (user.User, error) {
			return s.remote.UpdateMe(ctx, upd)
		},
		func(ctx context.Context, confirmed user.User) error {
			if err := s.supersedeProfile(ctx, upd); err != nil {
				return err
			}
			u, err := s.storeReconciled(ctx, confirmed)
			result = u
			return err
		},
		func(ctx context.Context) error {
			u, err := s.repos.User.Update(ctx, upd.Apply)
			switch {
			case errors.Is(err, repository.ErrNoCachedUser):
			case err != nil:
				return err
			default:
				result = u
			}
			_, err = s.repos.PendingProfile.Enqueue(ctx, pending.ProfileUpdate{
				ID:       domain.NewLocalID(),
				Update:   upd,
				OwnerID:  userID,
				LoggedAt: s.env.now(),
			})
			return err
		},
	)
	return result, outcome, err
}

// supersedeProfile clears fields from queued updates that upd has already
// written to the server, so replaying them cannot roll it back.
func (s *UserService) supersedeProfile(ctx context.Context, upd user.ProfileUpdate) error {
	return s.repos.PendingProfile.Update(ctx, func(items []pending.ProfileUpdate) ([]pending.ProfileUpdate, bool) {
		changed := false
		out := items[:0:0]
		for _, p := range items {
			if upd.Username != nil && p.Update.Username != nil {
				p.Update.Username, changed = nil, true
			}
			if upd.Email != nil && p.Update.Email != nil {
				p.Update.Email, changed = nil, true
			}
			if upd.Bio != nil && p.Update.Bio != nil {
				p.Update.Bio, changed = nil, true
			}
			if upd.Avatar != nil && p.Update.Avatar != nil {
				p.Update.Avatar, changed = nil, true
			}
			if p.Update.Empty() {
				continue
			}
			out = append(out, p)
		}
		return out, changed
	})
}

func (s *UserService) ReplayProfile(ctx context.Context, p pending.ProfileUpdate) error {
	if err := s.env.replayable(ctx, p); err != nil {
		return err
	}
	if p.Update.Empty() {
		return nil
	}
	_, err := s.remote.UpdateMe(ctx, p.Update)
	return err
}

// SearchUsers has no offline meaning and needs the network.
func (s *UserService) SearchUsers(ctx context.Context, query string) ([]user.User, error) {
	if query == "" {
		return nil, snapshoot_errors.ErrInvalidInput
	}
	if !s.env.Signal.Online() {
		return nil, snapshoot_errors.ErrOffline
	}
	users, err := s.remote.SearchUsers(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", snapshoot_errors.ErrRemoteUnavailable, err)
	}
	return users, nil
}

// GetUser returns another user's profile. found is false when the server
// does not know the id.
func (s *UserService) GetUser(ctx context.Context, id string) (user.User, bool, error) {
	me, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return user.User{}, false, err
	}
	if id == me {
		u, err := s.GetCurrentUser(ctx)
		return u, err == nil, err
	}
	if !s.env.Signal.Online() {
		return user.User{}, false, snapshoot_errors.ErrOffline
	}
	u, err := s.remote.GetUser(ctx, id)
	if api.IsNotFound(err) {
		return user.User{}, false, nil
	}
	if err != nil {
		return user.User{}, false, fmt.Errorf("%w: %v", snapshoot_errors.ErrRemoteUnavailable, err)
	}
	return u, true, nil
}

func (s *UserService) NotificationPreferences(ctx context.Context) (user.NotificationPreferences, error) {
	return s.repos.Notifications.Get(ctx)
}

// UpdateNotificationPreferences stores the reminder settings locally and
// pushes them to the profile.
func (s *UserService) UpdateNotificationPreferences(ctx context.Context, prefs user.NotificationPreferences) (Outcome, error) {
	if prefs.Time != "" {
		if _, err := time.Parse("15:04", prefs.Time); err != nil {
			return Offline, fmt.Errorf("%w: notification time must be HH:MM", snapshoot_errors.ErrInvalidInput)
		}
	}
	userID, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return Offline, err
	}
	if err := s.repos.Notifications.Set(ctx, prefs); err != nil {
		return Offline, err
	}

	return attempt(ctx, s.env, "user.notifications",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.remote.UpdateNotificationPreferences(ctx, prefs)
		},
		func(ctx context.Context, _ struct{}) error {
			_, err := s.repos.PendingNotifications.Clear(ctx)
			return err
		},
		func(ctx context.Context) error {
			_, err := s.repos.PendingNotifications.Enqueue(ctx, pending.NotificationUpdate{
				ID:          domain.NewLocalID(),
				Preferences: prefs,
				OwnerID:     userID,
				LoggedAt:    s.env.now(),
			})
			return err
		},
	)
}

func (s *UserService) ReplayNotification(ctx context.Context, n pending.NotificationUpdate) error {
	if err := s.env.replayable(ctx, n); err != nil {
		return err
	}
	return s.remote.UpdateNotificationPreferences(ctx, n.Preferences)
}
