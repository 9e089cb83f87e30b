package user

import (
	"time"

	"snapshoot-sync/internal/domain"
)

// User is the cached projection of a server account.
type User struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Avatar    string          `json:"avatar,omitempty"`
	Bio       string          `json:"bio"`
	Following domain.IDSet    `json:"following"`
	Followers domain.IDSet    `json:"followers"`
	Role      domain.UserRole `json:"role"`
	CreatedAt time.Time       `json:"created_at"`
}

func (u User) EntityID() string {
	return u.ID
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

func (p ProfileUpdate) Empty() bool {
	return p.Username == nil && p.Email == nil && p.Bio == nil && p.Avatar == nil
}

// Apply returns u with the non-nil fields of p written over it.
func (p ProfileUpdate) Apply(u User) User {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Bio != nil {
		u.Bio = *p.Bio
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	return u
}

// NotificationPreferences are the local reminder settings.
type NotificationPreferences struct {
	Enabled bool `json:"notification_enabled"`
	// Time is the daily reminder time formatted as HH:MM.
	Time string `json:"notification_time,omitempty"`
}
