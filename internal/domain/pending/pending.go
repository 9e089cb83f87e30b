// Package pending defines the entries of the local pending-action queues:
// mutations made on the device that the server has not acknowledged yet.
package pending

import (
	"encoding/hex"
	"errors"
	"time"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/location"
	"snapshoot-sync/internal/domain/story"
	"snapshoot-sync/internal/domain/user"

	"golang.org/x/crypto/blake2b"
)

// Entry is implemented by every queue entry.
type Entry interface {
	// EntryID identifies the entry within its queue.
	EntryID() string
	// Logged is the logical timestamp recorded at enqueue time.
	Logged() time.Time
	// Owner is the id of the user who queued the entry. Entries written
	// before owners were recorded return "".
	Owner() string
}

// ErrDiscard marks a replay that can never succeed, such as an upload whose
// file is gone. The entry is dropped instead of retried.
var ErrDiscard = errors.New("pending entry discarded")

// Same reports whether a and b are the very same enqueued entry, not just
// two entries sharing an id.
func Same(a, b Entry) bool {
	return a.EntryID() == b.EntryID() && a.Logged().Equal(b.Logged())
}

// OwnedBy reports whether e may be replayed for userID.
func OwnedBy(e Entry, userID string) bool {
	return e.Owner() == "" || e.Owner() == userID
}

// IdempotencyKey derives a stable key for replaying e against the server,
// so a request retried after a lost response is recognised.
func IdempotencyKey(queue string, e Entry) string {
	sum := blake2b.Sum256([]byte(queue + "\x00" + e.EntryID() + "\x00" + e.Logged().UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(sum[:16])
}

type SocialActionType string

const (
	SocialFollow   SocialActionType = "follow"
	SocialUnfollow SocialActionType = "unfollow"
)

// Opposite returns the action that cancels t.
func (t SocialActionType) Opposite() SocialActionType {
	if t == SocialFollow {
		return SocialUnfollow
	}
	return SocialFollow
}

// SocialAction is a queued follow or unfollow. At most one exists per subject.
type SocialAction struct {
	Type          SocialActionType `json:"type"`
	SubjectUserID string           `json:"subject_user_id"`
	OwnerID       string           `json:"owner_id,omitempty"`
	LoggedAt      time.Time        `json:"logged_at"`
}

func (a SocialAction) EntryID() string   { return a.SubjectUserID }
func (a SocialAction) Logged() time.Time { return a.LoggedAt }
func (a SocialAction) Owner() string     { return a.OwnerID }

// Upload is a media file waiting to be uploaded. The file is referenced by
// path, never copied into the queue.
type Upload struct {
	ID          string                `json:"id"`
	LocalPath   string                `json:"local_path"`
	Kind        domain.MediaKind      `json:"kind"`
	Coordinates *location.Coordinates `json:"coordinates,omitempty"`
	OwnerID     string                `json:"owner_id,omitempty"`
	LoggedAt    time.Time             `json:"logged_at"`
}

func (u Upload) EntryID() string   { return u.ID }
func (u Upload) Logged() time.Time { return u.LoggedAt }
func (u Upload) Owner() string     { return u.OwnerID }

// Deletion is a remote media object to delete.
type Deletion struct {
	MediaID  string    `json:"media_id"`
	OwnerID  string    `json:"owner_id,omitempty"`
	LoggedAt time.Time `json:"logged_at"`
}

func (d Deletion) EntryID() string   { return d.MediaID }
func (d Deletion) Logged() time.Time { return d.LoggedAt }
func (d Deletion) Owner() string     { return d.OwnerID }

// Message is a chat message waiting to be sent. ID is the local message id
// already shown in the conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	RecipientID    string    `json:"recipient_id"`
	Content        string    `json:"content"`
	MediaURL       string    `json:"media_url,omitempty"`
	IsGroup        bool      `json:"is_group"`
	OwnerID        string    `json:"owner_id,omitempty"`
	LoggedAt       time.Time `json:"logged_at"`
}

func (m Message) EntryID() string   { return m.ID }
func (m Message) Logged() time.Time { return m.LoggedAt }
func (m Message) Owner() string     { return m.OwnerID }

// Story is a locally materialized story together with the original photo.
// Sync always re-runs upload-then-create from LocalPhotoPath.
type Story struct {
	Story          story.Story `json:"story"`
	LocalPhotoPath string      `json:"local_photo_path"`
	OwnerID        string      `json:"owner_id,omitempty"`
	LoggedAt       time.Time   `json:"logged_at"`
}

func (s Story) EntryID() string   { return s.Story.ID }
func (s Story) Logged() time.Time { return s.LoggedAt }
func (s Story) Owner() string     { return s.OwnerID }

type ProfileUpdate struct {
	ID       string             `json:"id"`
	Update   user.ProfileUpdate `json:"update"`
	OwnerID  string             `json:"owner_id,omitempty"`
	LoggedAt time.Time          `json:"logged_at"`
}

func (p ProfileUpdate) EntryID() string   { return p.ID }
func (p ProfileUpdate) Logged() time.Time { return p.LoggedAt }
func (p ProfileUpdate) Owner() string     { return p.OwnerID }

type LocationUpdate struct {
	ID          string               `json:"id"`
	Coordinates location.Coordinates `json:"coordinates"`
	OwnerID     string               `json:"owner_id,omitempty"`
	LoggedAt    time.Time            `json:"logged_at"`
}

func (l LocationUpdate) EntryID() string   { return l.ID }
func (l LocationUpdate) Logged() time.Time { return l.LoggedAt }
func (l LocationUpdate) Owner() string     { return l.OwnerID }

type PrivacyUpdate struct {
	ID       string           `json:"id"`
	Privacy  location.Privacy `json:"privacy"`
	OwnerID  string           `json:"owner_id,omitempty"`
	LoggedAt time.Time        `json:"logged_at"`
}

func (p PrivacyUpdate) EntryID() string   { return p.ID }
func (p PrivacyUpdate) Logged() time.Time { return p.LoggedAt }
func (p PrivacyUpdate) Owner() string     { return p.OwnerID }

type NotificationUpdate struct {
	ID          string                       `json:"id"`
	Preferences user.NotificationPreferences `json:"preferences"`
	OwnerID     string                       `json:"owner_id,omitempty"`
	LoggedAt    time.Time                    `json:"logged_at"`
}

func (n NotificationUpdate) EntryID() string   { return n.ID }
func (n NotificationUpdate) Logged() time.Time { return n.LoggedAt }
func (n NotificationUpdate) Owner() string     { return n.OwnerID }
