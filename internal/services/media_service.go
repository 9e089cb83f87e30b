package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"snapshoot-sync/internal/api"
	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/media"
	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/repository"
	snapshoot_errors "snapshoot-sync/pkg/errors"

	"go.uber.org/zap"
)

type MediaService struct {
	env   *Env
	repos *repository.Repositories
	store MediaStore
}

func NewMediaService(env *Env, repos *repository.Repositories, store MediaStore) *MediaService {
	return &MediaService{env: env, repos: repos, store: store}
}

// UploadMedia uploads a file or, failing that, records it locally and
// queues the upload. The file is referenced by path, never copied.
func (s *MediaService) UploadMedia(ctx context.Context, up media.Upload) (media.Media, Outcome, error) {
	userID, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return media.Media{}, Offline, err
	}
	if up.LocalPath == "" {
		return media.Media{}, Offline, snapshoot_errors.ErrInvalidInput
	}
	if _, err := os.Stat(up.LocalPath); err != nil {
		return media.Media{}, Offline, fmt.Errorf("%w: %v", snapshoot_errors.ErrInvalidInput, err)
	}
	if up.Kind == "" {
		up.Kind = domain.MediaKindImage
	}
	now := s.env.now()

	var result media.Media
	outcome, err := attempt(ctx, s.env, "media.upload",
		func(ctx context.Context) (media.Uploaded, error) {
			return s.store.UploadMedia(ctx, up)
		},
		func(ctx context.Context, done media.Uploaded) error {
			result = media.Media{
				ID:          done.ID,
				URL:         done.URL,
				Kind:        up.Kind,
				Coordinates: up.Coordinates,
				CreatedAt:   now,
			}
			return s.repos.Media.Upsert(ctx, result)
		},
		func(ctx context.Context) error {
			result = media.Media{
				ID:          domain.NewLocalID(),
				LocalPath:   up.LocalPath,
				Kind:        up.Kind,
				Coordinates: up.Coordinates,
				CreatedAt:   now,
				Pending:     true,
			}
			if err := s.repos.Media.Upsert(ctx, result); err != nil {
				return err
			}
			_, err := s.repos.PendingUploads.Enqueue(ctx, pending.Upload{
				ID:          result.ID,
				LocalPath:   up.LocalPath,
				Kind:        up.Kind,
				Coordinates: up.Coordinates,
				OwnerID:     userID,
				LoggedAt:    now,
			})
			return err
		},
	)
	return result, outcome, err
}

func (s *MediaService) ReplayUpload(ctx context.Context, u pending.Upload) error {
	if err := s.env.replayable(ctx, u); err != nil {
		return err
	}
	if _, err := os.Stat(u.LocalPath); errors.Is(err, os.ErrNotExist) {
		s.env.logger().Warn(ctx, "dropping pending upload, file is gone", zap.String("upload_id", u.ID), zap.String("path", u.LocalPath))
		if _, err := s.repos.Media.Remove(ctx, u.ID); err != nil {
			return err
		}
		return pending.ErrDiscard
	}

	done, err := s.store.UploadMedia(ctx, media.Upload{
		LocalPath:   u.LocalPath,
		Kind:        u.Kind,
		Coordinates: u.Coordinates,
	})
	if err != nil {
		return err
	}

	created := u.LoggedAt
	if cached, ok, err := s.repos.Media.Get(ctx, u.ID); err == nil && ok {
		created = cached.CreatedAt
	}
	if _, err := s.repos.Media.Remove(ctx, u.ID); err != nil {
		return err
	}
	return s.repos.Media.Upsert(ctx, media.Media{
		ID:          done.ID,
		URL:         done.URL,
		Kind:        u.Kind,
		Coordinates: u.Coordinates,
		CreatedAt:   created,
	})
}

// DeleteMedia removes the local record first. A still-pending upload is just
// dropped; uploaded media is deleted remotely or queued for deletion.
func (s *MediaService) DeleteMedia(ctx context.Context, id string) (Outcome, error) {
	userID, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return Offline, err
	}
	if id == "" {
		return Offline, snapshoot_errors.ErrInvalidInput
	}
	if _, err := s.repos.Media.Remove(ctx, id); err != nil {
		return Offline, err
	}
	if domain.IsLocalID(id) {
		_, err := s.repos.PendingUploads.RemoveID(ctx, id)
		return Synced, err
	}

	return attempt(ctx, s.env, "media.delete",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.deleteRemote(ctx, id)
		},
		func(context.Context, struct{}) error { return nil },
		func(ctx context.Context) error {
			_, err := s.repos.PendingDeletions.Enqueue(ctx, pending.Deletion{MediaID: id, OwnerID: userID, LoggedAt: s.env.now()})
			return err
		},
	)
}

func (s *MediaService) ReplayDeletion(ctx context.Context, d pending.Deletion) error {
	if err := s.env.replayable(ctx, d); err != nil {
		return err
	}
	return s.deleteRemote(ctx, d.MediaID)
}

// deleteRemote treats an already-absent object as deleted.
func (s *MediaService) deleteRemote(ctx context.Context, id string) error {
	if err := s.store.DeleteMedia(ctx, id); err != nil && !api.IsNotFound(err) {
		return err
	}
	return nil
}

// GetMedia lists cached media, newest first.
func (s *MediaService) GetMedia(ctx context.Context) ([]media.Media, error) {
	items, err := s.repos.Media.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}
