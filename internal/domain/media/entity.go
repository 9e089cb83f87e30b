package media

import (
	"path/filepath"
	"strings"
	"time"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/location"
)

// Media is the cached metadata of an uploaded (or still local) file.
type Media struct {
	ID          string                `json:"id"`
	URL         string                `json:"url,omitempty"`
	LocalPath   string                `json:"local_path,omitempty"`
	Kind        domain.MediaKind      `json:"kind"`
	Coordinates *location.Coordinates `json:"coordinates,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	Pending     bool                  `json:"pending,omitempty"`
}

func (m Media) EntityID() string {
	return m.ID
}

// Upload describes a file to send to the media backend.
type Upload struct {
	LocalPath   string
	Kind        domain.MediaKind
	Coordinates *location.Coordinates
}

// Uploaded is what the media backend returns for a stored file.
type Uploaded struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ContentType guesses the MIME type from the file extension.
func ContentType(path string, kind domain.MediaKind) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	}
	if kind == domain.MediaKindVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}
