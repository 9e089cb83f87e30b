package services

import (
	"context"
	"errors"
	"net/http"

	"snapshoot-sync/internal/api"
	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/domain/user"
	"snapshoot-sync/internal/repository"
	snapshoot_errors "snapshoot-sync/pkg/errors"

	"go.uber.org/zap"
)

type SocialRemote interface {
	Follow(ctx context.Context, userID string) error
	Unfollow(ctx context.Context, userID string) error
}

type SocialService struct {
	env    *Env
	repos  *repository.Repositories
	remote SocialRemote
}

func NewSocialService(env *Env, repos *repository.Repositories, remote SocialRemote) *SocialService {
	return &SocialService{env: env, repos: repos, remote: remote}
}

func (s *SocialService) Follow(ctx context.Context, targetID string) (Outcome, error) {
	return s.act(ctx, pending.SocialFollow, targetID)
}

func (s *SocialService) Unfollow(ctx context.Context, targetID string) (Outcome, error) {
	return s.act(ctx, pending.SocialUnfollow, targetID)
}

func (s *SocialService) act(ctx context.Context, kind pending.SocialActionType, targetID string) (Outcome, error) {
	userID, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return Offline, err
	}
	if targetID == "" || targetID == userID {
		return Offline, snapshoot_errors.ErrInvalidInput
	}
	op := "social." + string(kind)

	return attempt(ctx, s.env, op,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.send(ctx, kind, targetID)
		},
		func(ctx context.Context, _ struct{}) error {
			// the server now reflects the latest intent, an older queued
			// action for the same user would undo it
			if _, err := s.repos.PendingSocial.RemoveID(ctx, targetID); err != nil {
				return err
			}
			return s.applyLocal(ctx, kind, targetID)
		},
		func(ctx context.Context) error {
			res, err := s.repos.PendingSocial.Enqueue(ctx, pending.SocialAction{
				Type:          kind,
				SubjectUserID: targetID,
				OwnerID:       userID,
				LoggedAt:      s.env.now(),
			})
			if err != nil {
				return err
			}
			s.env.logger().Info(ctx, "social action queued", zap.String("op", op), zap.String("subject", targetID), zap.Stringer("result", res))
			return s.applyLocal(ctx, kind, targetID)
		},
	)
}

func (s *SocialService) send(ctx context.Context, kind pending.SocialActionType, targetID string) error {
	if kind == pending.SocialFollow {
		return s.remote.Follow(ctx, targetID)
	}
	return s.remote.Unfollow(ctx, targetID)
}

// applyLocal updates the cached profile optimistically. Without a cached
// profile there is nothing to update.
func (s *SocialService) applyLocal(ctx context.Context, kind pending.SocialActionType, targetID string) error {
	_, err := s.repos.User.Update(ctx, func(u user.User) user.User {
		return applySocial(u, pending.SocialAction{Type: kind, SubjectUserID: targetID})
	})
	if errors.Is(err, repository.ErrNoCachedUser) {
		return nil
	}
	return err
}

// ReplaySocial sends a queued action. A follow the server already has, or an
// unfollow of someone no longer followed, counts as done.
func (s *SocialService) ReplaySocial(ctx context.Context, a pending.SocialAction) error {
	if err := s.env.replayable(ctx, a); err != nil {
		return err
	}
	err := s.send(ctx, a.Type, a.SubjectUserID)
	switch {
	case err == nil:
		return nil
	case api.IsStatus(err, http.StatusConflict):
		return nil
	case api.IsNotFound(err) && a.Type == pending.SocialUnfollow:
		return nil
	case api.IsNotFound(err):
		s.env.logger().Warn(ctx, "dropping follow of unknown user", zap.String("subject", a.SubjectUserID))
		return pending.ErrDiscard
	}
	return err
}

func applySocial(u user.User, a pending.SocialAction) user.User {
	if a.Type == pending.SocialFollow {
		u.Following = u.Following.Add(a.SubjectUserID)
	} else {
		u.Following = u.Following.Remove(a.SubjectUserID)
	}
	return u
}
