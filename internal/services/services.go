package services

import (
	"snapshoot-sync/internal/repository"
)

// Remote is everything the services need from the backend. *api.Client
// satisfies it.
type Remote interface {
	StoryRemote
	SocialRemote
	UserRemote
	MessageRemote
	LocationRemote
}

type Services struct {
	Env      *Env
	Stories  *StoryService
	Social   *SocialService
	Users    *UserService
	Media    *MediaService
	Messages *MessageService
	Location *LocationService
}

// New builds every service over one set of repositories. store receives
// photo and media uploads; it may be the API client itself or S3.
func New(env *Env, repos *repository.Repositories, remote Remote, store MediaStore) *Services {
	return &Services{
		Env:      env,
		Stories:  NewStoryService(env, repos, remote, store),
		Social:   NewSocialService(env, repos, remote),
		Users:    NewUserService(env, repos, remote),
		Media:    NewMediaService(env, repos, store),
		Messages: NewMessageService(env, repos, remote),
		Location: NewLocationService(env, repos, remote),
	}
}
