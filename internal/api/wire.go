package api

import (
	"time"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/location"
	"snapshoot-sync/internal/domain/message"
	"snapshoot-sync/internal/domain/story"
	"snapshoot-sync/internal/domain/user"
)

// Wire shapes as the backend serializes them. Ids come as "_id".

type wireUser struct {
	ID        string    `json:"_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Bio       string    `json:"bio"`
	Avatar    *string   `json:"avatar"`
	Role      string    `json:"role"`
	Following []string  `json:"following,omitempty"`
	Followers []string  `json:"followers,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (w wireUser) toDomain() user.User {
	u := user.User{
		ID:        w.ID,
		Username:  w.Username,
		Email:     w.Email,
		Bio:       w.Bio,
		Role:      domain.UserRole(w.Role),
		Following: domain.IDSet(w.Following),
		Followers: domain.IDSet(w.Followers),
		CreatedAt: w.CreatedAt,
	}
	if w.Avatar != nil {
		u.Avatar = *w.Avatar
	}
	if u.Role == "" {
		u.Role = domain.UserRoleUser
	}
	if u.Following == nil {
		u.Following = domain.IDSet{}
	}
	if u.Followers == nil {
		u.Followers = domain.IDSet{}
	}
	return u
}

func usersToDomain(ws []wireUser) []user.User {
	out := make([]user.User, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toDomain())
	}
	return out
}

type wireMedia struct {
	MediaType string   `json:"media_type"`
	URL       string   `json:"url"`
	Duration  *float64 `json:"duration"`
}

type wireStory struct {
	ID        string             `json:"_id"`
	UserID    string             `json:"user_id"`
	Location  *location.GeoPoint `json:"location,omitempty"`
	Media     wireMedia          `json:"media"`
	Caption   string             `json:"caption,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt time.Time          `json:"expires_at"`
	Views     []string           `json:"views,omitempty"`
	Likes     []string           `json:"likes,omitempty"`
}

func (w wireStory) toDomain() story.Story {
	created := w.CreatedAt
	if created.IsZero() {
		created = w.ExpiresAt.Add(-story.Lifetime)
	}
	s := story.New(w.ID, w.UserID, w.Media.URL, domain.MediaKindFromAPI(w.Media.MediaType), created)
	if !w.ExpiresAt.IsZero() {
		s.ExpiresAt = w.ExpiresAt
	}
	s.Duration = w.Media.Duration
	s.Caption = w.Caption
	if w.Location != nil {
		c := w.Location.Coords()
		s.Location = &c
	}
	for _, id := range w.Views {
		s.Views = s.Views.Add(id)
	}
	for _, id := range w.Likes {
		s.Likes = s.Likes.Add(id)
	}
	return s
}

func storiesToDomain(ws []wireStory) []story.Story {
	out := make([]story.Story, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toDomain())
	}
	return out
}

type wireMessage struct {
	ID          string     `json:"_id"`
	Content     string     `json:"content"`
	SenderID    string     `json:"sender_id"`
	RecipientID string     `json:"recipient_id"`
	IsGroup     bool       `json:"is_group"`
	Media       *wireMedia `json:"media,omitempty"`
	Read        bool       `json:"read"`
	CreatedAt   time.Time  `json:"created_at"`
}

// toDomain fills in conversationID, which the backend does not send.
func (w wireMessage) toDomain(conversationID string) message.Message {
	m := message.Message{
		ID:             w.ID,
		ConversationID: conversationID,
		SenderID:       w.SenderID,
		Content:        w.Content,
		CreatedAt:      w.CreatedAt,
		IsRead:         w.Read,
	}
	if w.Media != nil {
		m.ImageURL = w.Media.URL
	}
	return m
}

// Group is a server-side chat group.
type Group struct {
	ID        string   `json:"_id"`
	Name      string   `json:"name"`
	CreatorID string   `json:"creator_id"`
	Members   []string `json:"members"`
}

type wireNearbyUser struct {
	ID       string            `json:"_id"`
	Username string            `json:"username"`
	Avatar   *string           `json:"avatar"`
	Location location.GeoPoint `json:"location"`
	Distance float64           `json:"distance"`
}

func (w wireNearbyUser) toDomain() location.NearbyUser {
	n := location.NearbyUser{
		UserID:     w.ID,
		Username:   w.Username,
		Location:   w.Location.Coords(),
		DistanceKm: w.Distance,
	}
	if w.Avatar != nil {
		n.Avatar = *w.Avatar
	}
	return n
}
