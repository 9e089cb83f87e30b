package story

import (
	"time"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/location"
)

// Lifetime is how long a story stays visible after creation.
const Lifetime = 24 * time.Hour

// Story is an ephemeral media post. ExpiresAt is fixed at creation.
type Story struct {
	ID        string                `json:"id"`
	UserID    string                `json:"user_id"`
	MediaURL  string                `json:"media_url"`
	MediaKind domain.MediaKind      `json:"media_kind"`
	Duration  *float64              `json:"duration,omitempty"`
	Caption   string                `json:"caption,omitempty"`
	Location  *location.Coordinates `json:"location,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
	ExpiresAt time.Time             `json:"expires_at"`
	Views     domain.IDSet          `json:"views"`
	Likes     domain.IDSet          `json:"likes"`
	// Pending is set on stories that only exist locally so far.
	Pending bool `json:"pending,omitempty"`
}

// New builds a story created at createdAt with the standard lifetime.
func New(id, userID, mediaURL string, kind domain.MediaKind, createdAt time.Time) Story {
	return Story{
		ID:        id,
		UserID:    userID,
		MediaURL:  mediaURL,
		MediaKind: kind,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(Lifetime),
		Views:     domain.IDSet{},
		Likes:     domain.IDSet{},
	}
}

func (s Story) EntityID() string {
	return s.ID
}

// Expired reports whether now is past the expiry instant.
func (s Story) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (s Story) OwnedBy(userID string) bool {
	return userID != "" && s.UserID == userID
}

// Within reports whether the story was posted within radiusKm of center.
// Stories without a location never match.
func (s Story) Within(center location.Coordinates, radiusKm float64) bool {
	if s.Location == nil {
		return false
	}
	return s.Location.DistanceKm(center) <= radiusKm
}
