package domain

import (
	"strings"

	"github.com/google/uuid"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "IMAGE"
	MediaKindVideo MediaKind = "VIDEO"
)

// Valid reports whether k is a known media kind.
func (k MediaKind) Valid() bool {
	return k == MediaKindImage || k == MediaKindVideo
}

// APIName is the spelling used by the remote API ("Image", "Video").
func (k MediaKind) APIName() string {
	if k == MediaKindVideo {
		return "Video"
	}
	return "Image"
}

// MediaKindFromAPI maps the remote spelling back, defaulting to image.
func MediaKindFromAPI(name string) MediaKind {
	if strings.EqualFold(name, "video") {
		return MediaKindVideo
	}
	return MediaKindImage
}

type PrivacySetting string

const (
	PrivacySettingEveryone PrivacySetting = "EVERYONE"
	PrivacySettingContacts PrivacySetting = "CONTACTS"
	PrivacySettingNobody   PrivacySetting = "NOBODY"
)

func (p PrivacySetting) Valid() bool {
	switch p {
	case PrivacySettingEveryone, PrivacySettingContacts, PrivacySettingNobody:
		return true
	}
	return false
}

type UserRole string

const (
	UserRoleUser  UserRole = "User"
	UserRoleAdmin UserRole = "Admin"
)

// LocalIDPrefix marks identifiers minted on the device for entities the
// server has not confirmed yet.
const LocalIDPrefix = "local_"

// IsLocalID reports whether id was generated locally.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// NewLocalID mints an identifier for an entity created on the device.
func NewLocalID() string {
	return LocalIDPrefix + uuid.NewString()
}
