package repository

// Storage keys. Every cache and queue lives under exactly one key holding
// the whole collection as a JSON blob.
const (
	KeyAuthToken = "auth_token"
	KeyUserData  = "user_data"
	KeyDataOwner = "data_owner"

	KeyStories        = "stories"
	KeyViewedStories  = "viewed_stories"
	KeyLikedStories   = "liked_stories"
	KeyConversations  = "conversations"
	KeyMessages       = "messages"
	KeyMediaCache     = "media_cache"
	KeyLocationCache  = "location_cache"
	KeyLocationOn     = "location_enabled"
	KeyLocationPriv   = "location_privacy"
	KeyNotifyEnabled  = "notification_enabled"
	KeyNotifyTime     = "notification_time"
	KeyPendingStories = "pending_stories"

	KeyPendingMessages      = "pending_messages"
	KeyPendingSocialActions = "pending_social_actions"
	KeyPendingUploads       = "pending_media_uploads"
	KeyPendingDeletions     = "pending_media_deletions"
	KeyPendingUserUpdates   = "pending_user_updates"
	KeyPendingLocations     = "pending_location_updates"
	KeyPendingPrivacy       = "pending_privacy_updates"
	KeyPendingNotifications = "pending_notification_updates"
)
