package services

import (
	"context"
	"fmt"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/location"
	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/repository"
	snapshoot_errors "snapshoot-sync/pkg/errors"
)

type LocationRemote interface {
	UpdateLocation(ctx context.Context, coords location.Coordinates) error
	GetPrivacy(ctx context.Context) (location.Privacy, error)
	UpdatePrivacy(ctx context.Context, p location.Privacy) error
	NearbyUsers(ctx context.Context, center location.Coordinates, radiusKm float64) ([]location.NearbyUser, error)
}

type LocationService struct {
	env    *Env
	repos  *repository.Repositories
	remote LocationRemote
}

func NewLocationService(env *Env, repos *repository.Repositories, remote LocationRemote) *LocationService {
	return &LocationService{env: env, repos: repos, remote: remote}
}

// UpdateLocation caches the fix and reports it to the server. Queued fixes
// replay in order, so the server ends on the newest one.
func (s *LocationService) UpdateLocation(ctx context.Context, coords location.Coordinates) (Outcome, error) {
	if !coords.Valid() {
		return Offline, fmt.Errorf("%w: coordinates out of range", snapshoot_errors.ErrInvalidInput)
	}
	userID, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return Offline, err
	}
	now := s.env.now()

	return attempt(ctx, s.env, "location.update",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.remote.UpdateLocation(ctx, coords)
		},
		func(ctx context.Context, _ struct{}) error {
			if err := s.repos.Location.SetFix(ctx, location.Fix{Coordinates: coords, RecordedAt: now, Synced: true}); err != nil {
				return err
			}
			// older queued fixes would move the server backwards
			_, err := s.repos.PendingLocations.Clear(ctx)
			return err
		},
		func(ctx context.Context) error {
			if err := s.repos.Location.SetFix(ctx, location.Fix{Coordinates: coords, RecordedAt: now}); err != nil {
				return err
			}
			_, err := s.repos.PendingLocations.Enqueue(ctx, pending.LocationUpdate{
				ID:          domain.NewLocalID(),
				Coordinates: coords,
				OwnerID:     userID,
				LoggedAt:    now,
			})
			return err
		},
	)
}

func (s *LocationService) ReplayLocation(ctx context.Context, l pending.LocationUpdate) error {
	if err := s.env.replayable(ctx, l); err != nil {
		return err
	}
	if err := s.remote.UpdateLocation(ctx, l.Coordinates); err != nil {
		return err
	}
	return s.repos.Location.MarkSynced(ctx, l.Coordinates)
}

// GetCachedLocation returns the last recorded fix. ok is false before the
// first one.
func (s *LocationService) GetCachedLocation(ctx context.Context) (location.Fix, bool, error) {
	return s.repos.Location.LastFix(ctx)
}

func (s *LocationService) SetLocationEnabled(ctx context.Context, on bool) error {
	return s.repos.Location.SetEnabled(ctx, on)
}

func (s *LocationService) LocationEnabled(ctx context.Context) (bool, error) {
	return s.repos.Location.Enabled(ctx)
}

// GetPrivacy answers from the cache. The server copy is pulled in the
// background unless a local change is still waiting to sync.
func (s *LocationService) GetPrivacy(ctx context.Context) (location.Privacy, error) {
	p, err := s.repos.Location.Privacy(ctx)
	if err != nil {
		return location.Privacy{}, err
	}
	if !s.env.Signal.Online() {
		return p, nil
	}
	queued, err := s.repos.PendingPrivacy.Len(ctx)
	if err != nil {
		return location.Privacy{}, err
	}
	if queued == 0 {
		s.env.background(ctx, "location.privacy_refresh", func(ctx context.Context) error {
			remote, err := s.remote.GetPrivacy(ctx)
			if err != nil {
				return err
			}
			if n, err := s.repos.PendingPrivacy.Len(ctx); err != nil || n > 0 {
				return err
			}
			return s.repos.Location.SetPrivacy(ctx, remote)
		})
	}
	return p, nil
}

func (s *LocationService) UpdatePrivacy(ctx context.Context, p location.Privacy) (Outcome, error) {
	if !p.Visibility.Valid() {
		return Offline, fmt.Errorf("%w: unknown visibility %q", snapshoot_errors.ErrInvalidInput, p.Visibility)
	}
	userID, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return Offline, err
	}
	if err := s.repos.Location.SetPrivacy(ctx, p); err != nil {
		return Offline, err
	}

	return attempt(ctx, s.env, "location.privacy",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.remote.UpdatePrivacy(ctx, p)
		},
		func(ctx context.Context, _ struct{}) error {
			_, err := s.repos.PendingPrivacy.Clear(ctx)
			return err
		},
		func(ctx context.Context) error {
			_, err := s.repos.PendingPrivacy.Enqueue(ctx, pending.PrivacyUpdate{
				ID:       domain.NewLocalID(),
				Privacy:  p,
				OwnerID:  userID,
				LoggedAt: s.env.now(),
			})
			return err
		},
	)
}

func (s *LocationService) ReplayPrivacy(ctx context.Context, p pending.PrivacyUpdate) error {
	if err := s.env.replayable(ctx, p); err != nil {
		return err
	}
	return s.remote.UpdatePrivacy(ctx, p.Privacy)
}

// NearbyUsers needs the server; there is no local directory of other users.
func (s *LocationService) NearbyUsers(ctx context.Context, center location.Coordinates, radiusKm float64) ([]location.NearbyUser, error) {
	if _, err := s.env.Auth.CurrentUserID(ctx); err != nil {
		return nil, err
	}
	if !center.Valid() || radiusKm <= 0 {
		return nil, snapshoot_errors.ErrInvalidInput
	}
	if !s.env.Signal.Online() {
		return nil, snapshoot_errors.ErrOffline
	}
	users, err := s.remote.NearbyUsers(ctx, center, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", snapshoot_errors.ErrRemoteUnavailable, err)
	}
	return users, nil
}
