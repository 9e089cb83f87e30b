package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"snapshoot-sync/internal/api"
	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/location"
	"snapshoot-sync/internal/domain/media"
	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/domain/story"
	"snapshoot-sync/internal/repository"
	snapshoot_errors "snapshoot-sync/pkg/errors"

	"go.uber.org/zap"
)

type StoryRemote interface {
	CreateStory(ctx context.Context, in api.CreateStoryInput) (story.Story, error)
	ListStories(ctx context.Context) ([]story.Story, error)
	NearbyStories(ctx context.Context, center location.Coordinates, radiusKm float64) ([]story.Story, error)
	DeleteStory(ctx context.Context, id string) error
	ViewStory(ctx context.Context, id string) error
	LikeStory(ctx context.Context, id string) error
	UnlikeStory(ctx context.Context, id string) error
}

// MediaStore is where photos go before a story or message references them.
// Both the API client and the S3 client implement it.
type MediaStore interface {
	UploadMedia(ctx context.Context, up media.Upload) (media.Uploaded, error)
	DeleteMedia(ctx context.Context, id string) error
}

type StoryService struct {
	env    *Env
	repos  *repository.Repositories
	remote StoryRemote
	media  MediaStore
}

func NewStoryService(env *Env, repos *repository.Repositories, remote StoryRemote, store MediaStore) *StoryService {
	return &StoryService{env: env, repos: repos, remote: remote, media: store}
}

type CreateStoryInput struct {
	// PhotoPath is the device path of the captured photo or video.
	PhotoPath string
	Kind      domain.MediaKind
	Duration  *float64
	Caption   string
	Location  *location.Coordinates
}

func (in CreateStoryInput) validate() error {
	if strings.TrimSpace(in.PhotoPath) == "" {
		return fmt.Errorf("%w: photo path is required", snapshoot_errors.ErrInvalidInput)
	}
	if in.Kind != "" && !in.Kind.Valid() {
		return fmt.Errorf("%w: unknown media kind %q", snapshoot_errors.ErrInvalidInput, in.Kind)
	}
	if in.Location != nil && !in.Location.Valid() {
		return fmt.Errorf("%w: coordinates out of range", snapshoot_errors.ErrInvalidInput)
	}
	return nil
}

// CreateStory uploads the photo and then creates the story. If either step
// fails the whole creation goes offline: the local story keeps the device
// path and sync redoes upload-then-create from the start.
func (s *StoryService) CreateStory(ctx context.Context, in CreateStoryInput) (story.Story, Outcome, error) {
	if err := in.validate(); err != nil {
		return story.Story{}, Offline, err
	}
	userID, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return story.Story{}, Offline, err
	}
	if in.Kind == "" {
		in.Kind = domain.MediaKindImage
	}
	now := s.env.now()

	var result story.Story
	outcome, err := attempt(ctx, s.env, "story.create",
		func(ctx context.Context) (story.Story, error) {
			return s.publish(ctx, in)
		},
		func(ctx context.Context, created story.Story) error {
			result = created
			return s.repos.Stories.Upsert(ctx, created)
		},
		func(ctx context.Context) error {
			local := story.New(domain.NewLocalID(), userID, in.PhotoPath, in.Kind, now)
			local.Duration = in.Duration
			local.Caption = in.Caption
			local.Location = in.Location
			local.Pending = true
			result = local

			if err := s.repos.Stories.Upsert(ctx, local); err != nil {
				return err
			}
			_, err := s.repos.PendingStories.Enqueue(ctx, pending.Story{
				Story:          local,
				LocalPhotoPath: in.PhotoPath,
				OwnerID:        userID,
				LoggedAt:       now,
			})
			return err
		},
	)
	return result, outcome, err
}

func (s *StoryService) publish(ctx context.Context, in CreateStoryInput) (story.Story, error) {
	up, err := s.media.UploadMedia(ctx, media.Upload{
		LocalPath:   in.PhotoPath,
		Kind:        in.Kind,
		Coordinates: in.Location,
	})
	if err != nil {
		return story.Story{}, fmt.Errorf("uploading story media: %w", err)
	}
	created, err := s.remote.CreateStory(ctx, api.CreateStoryInput{
		MediaURL:  up.URL,
		MediaKind: in.Kind,
		Duration:  in.Duration,
		Caption:   in.Caption,
		Location:  in.Location,
	})
	if err != nil {
		return story.Story{}, fmt.Errorf("creating story: %w", err)
	}
	return created, nil
}

// ReplayStory re-runs upload-then-create for a queued story and swaps the
// local copy for the server's.
func (s *StoryService) ReplayStory(ctx context.Context, p pending.Story) error {
	if err := s.env.replayable(ctx, p); err != nil {
		return err
	}
	log := s.env.logger()
	if p.Story.Expired(s.env.now()) {
		log.Warn(ctx, "dropping pending story past its expiry", zap.String("story_id", p.Story.ID))
		return pending.ErrDiscard
	}
	if _, err := os.Stat(p.LocalPhotoPath); errors.Is(err, os.ErrNotExist) {
		log.Warn(ctx, "dropping pending story, photo is gone", zap.String("story_id", p.Story.ID), zap.String("path", p.LocalPhotoPath))
		if _, err := s.repos.Stories.Remove(ctx, p.Story.ID); err != nil {
			return err
		}
		return pending.ErrDiscard
	}

	created, err := s.publish(ctx, CreateStoryInput{
		PhotoPath: p.LocalPhotoPath,
		Kind:      p.Story.MediaKind,
		Duration:  p.Story.Duration,
		Caption:   p.Story.Caption,
		Location:  p.Story.Location,
	})
	if err != nil {
		return err
	}

	// local engagement carries over to the server copy
	for _, id := range p.Story.Views {
		created.Views = created.Views.Add(id)
	}
	for _, id := range p.Story.Likes {
		created.Likes = created.Likes.Add(id)
	}
	if _, err := s.repos.Stories.Remove(ctx, p.Story.ID); err != nil {
		return err
	}
	return s.repos.Stories.Upsert(ctx, created)
}

// GetOfflineStories reads the local cache only, newest first.
func (s *StoryService) GetOfflineStories(ctx context.Context) ([]story.Story, error) {
	items, err := s.repos.Stories.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(items)
	return items, nil
}

// GetStories returns the cached feed at once and refreshes it from the
// server in the background when online.
func (s *StoryService) GetStories(ctx context.Context) ([]story.Story, error) {
	items, err := s.GetOfflineStories(ctx)
	if err != nil {
		return nil, err
	}
	if s.env.Signal.Online() {
		s.env.background(ctx, "story.refresh", func(ctx context.Context) error {
			_, err := s.RefreshStories(ctx)
			return err
		})
	}
	return items, nil
}

// RefreshStories replaces the synced part of the cache with the server feed.
func (s *StoryService) RefreshStories(ctx context.Context) ([]story.Story, error) {
	if !s.env.Signal.Online() {
		return nil, snapshoot_errors.ErrOffline
	}
	remote, err := s.remote.ListStories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", snapshoot_errors.ErrRemoteUnavailable, err)
	}
	if err := s.overlayEngagement(ctx, remote); err != nil {
		return nil, err
	}
	// signed out leaves me empty, and Merge then keeps no extra stories
	me, _ := s.env.Auth.CurrentUserID(ctx)
	if err := s.repos.Stories.Merge(ctx, remote, true, me); err != nil {
		return nil, err
	}
	return s.GetOfflineStories(ctx)
}

// GetNearbyStories asks the server when online and falls back to cached
// stories within radiusKm of center.
func (s *StoryService) GetNearbyStories(ctx context.Context, center location.Coordinates, radiusKm float64) ([]story.Story, error) {
	if !center.Valid() || radiusKm <= 0 {
		return nil, snapshoot_errors.ErrInvalidInput
	}
	if s.env.Signal.Online() {
		remote, err := s.remote.NearbyStories(ctx, center, radiusKm)
		if err == nil {
			if err := s.overlayEngagement(ctx, remote); err != nil {
				return nil, err
			}
			if err := s.repos.Stories.Merge(ctx, remote, false, ""); err != nil {
				return nil, err
			}
		} else {
			s.env.logger().Warn(ctx, "nearby stories fetch failed, using cache", zap.Error(err))
		}
	}

	cached, err := s.repos.Stories.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []story.Story
	for _, st := range cached {
		if st.Within(center, radiusKm) {
			out = append(out, st)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// DeleteStory removes one of the current user's stories. The server delete
// is best effort; the local removal always happens.
func (s *StoryService) DeleteStory(ctx context.Context, id string) error {
	userID, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	st, ok, err := s.repos.Stories.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return snapshoot_errors.ErrNotFound
	}
	if !st.OwnedBy(userID) {
		return snapshoot_errors.ErrUnauthorized
	}

	if !domain.IsLocalID(id) {
		bestEffort(ctx, s.env, "story.delete", func(ctx context.Context) error {
			return s.remote.DeleteStory(ctx, id)
		})
	}
	if _, err := s.repos.Stories.Remove(ctx, id); err != nil {
		return err
	}
	if _, err := s.repos.PendingStories.RemoveID(ctx, id); err != nil {
		return err
	}
	if err := s.repos.Viewed.Remove(ctx, id); err != nil {
		return err
	}
	return s.repos.Liked.Remove(ctx, id)
}

func (s *StoryService) ViewStory(ctx context.Context, id string) error {
	return s.engage(ctx, id, "story.view", s.repos.Viewed.Add, func(st *story.Story, userID string) {
		st.Views = st.Views.Add(userID)
	}, s.remote.ViewStory)
}

func (s *StoryService) LikeStory(ctx context.Context, id string) error {
	return s.engage(ctx, id, "story.like", s.repos.Liked.Add, func(st *story.Story, userID string) {
		st.Likes = st.Likes.Add(userID)
	}, s.remote.LikeStory)
}

func (s *StoryService) UnlikeStory(ctx context.Context, id string) error {
	return s.engage(ctx, id, "story.unlike", s.repos.Liked.Remove, func(st *story.Story, userID string) {
		st.Likes = st.Likes.Remove(userID)
	}, s.remote.UnlikeStory)
}

func (s *StoryService) engage(
	ctx context.Context,
	id, op string,
	record func(context.Context, string) error,
	apply func(*story.Story, string),
	remote func(context.Context, string) error,
) error {
	userID, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	_, ok, err := s.repos.Stories.Mutate(ctx, id, func(st *story.Story) bool {
		apply(st, userID)
		return true
	})
	if err != nil {
		return err
	}
	if !ok {
		return snapshoot_errors.ErrNotFound
	}
	if err := record(ctx, id); err != nil {
		return err
	}
	if !domain.IsLocalID(id) {
		bestEffort(ctx, s.env, op, func(ctx context.Context) error {
			return remote(ctx, id)
		})
	}
	return nil
}

// overlayEngagement keeps the current user's own views and likes on server
// copies that have not caught up yet.
func (s *StoryService) overlayEngagement(ctx context.Context, stories []story.Story) error {
	userID, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return nil
	}
	viewed, err := s.repos.Viewed.All(ctx)
	if err != nil {
		return err
	}
	liked, err := s.repos.Liked.All(ctx)
	if err != nil {
		return err
	}
	for i := range stories {
		if viewed.Has(stories[i].ID) {
			stories[i].Views = stories[i].Views.Add(userID)
		}
		if liked.Has(stories[i].ID) {
			stories[i].Likes = stories[i].Likes.Add(userID)
		}
	}
	return nil
}

func sortNewestFirst(items []story.Story) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}
