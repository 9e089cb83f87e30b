package outbox

import (
	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/repository"
	"snapshoot-sync/internal/services"
)

// Steps wires every pending queue to the service that replays it, in the
// order a pass drains them. Uploads precede stories and messages, which may
// reference uploaded media.
func Steps(repos *repository.Repositories, svc *services.Services) []Step {
	return []Step{
		NewSerialStep[pending.ProfileUpdate](repos.PendingProfile, svc.Users.ReplayProfile),
		NewOrderedStep[pending.SocialAction](repos.PendingSocial.Queue, svc.Social.ReplaySocial, func(a pending.SocialAction) string {
			return a.SubjectUserID
		}),
		NewStep[pending.Upload](repos.PendingUploads, svc.Media.ReplayUpload),
		NewStep[pending.Deletion](repos.PendingDeletions, svc.Media.ReplayDeletion),
		NewStep[pending.Story](repos.PendingStories, svc.Stories.ReplayStory),
		NewOrderedStep[pending.Message](repos.PendingMessages, svc.Messages.ReplayMessage, func(m pending.Message) string {
			return m.ConversationID
		}),
		NewSerialStep[pending.LocationUpdate](repos.PendingLocations, svc.Location.ReplayLocation),
		NewSerialStep[pending.PrivacyUpdate](repos.PendingPrivacy, svc.Location.ReplayPrivacy),
		NewSerialStep[pending.NotificationUpdate](repos.PendingNotifications, svc.Users.ReplayNotification),
	}
}
