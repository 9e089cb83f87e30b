package location

import (
	"math"
	"time"

	"snapshoot-sync/internal/domain"
)

const earthRadiusKm = 6371.0

// Coordinates is a WGS84 position as produced by the device GPS.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// DistanceKm is the great-circle distance between c and o.
func (c Coordinates) DistanceKm(o Coordinates) float64 {
	lat1 := c.Latitude * math.Pi / 180
	lat2 := o.Latitude * math.Pi / 180
	dLat := (o.Latitude - c.Latitude) * math.Pi / 180
	dLon := (o.Longitude - c.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// GeoPoint is the GeoJSON point the API speaks. Coordinates are [lon, lat].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func (c Coordinates) Point() GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{c.Longitude, c.Latitude}}
}

func (p GeoPoint) Coords() Coordinates {
	return Coordinates{Latitude: p.Coordinates[1], Longitude: p.Coordinates[0]}
}

// Fix is the last known position of the current user.
type Fix struct {
	Coordinates Coordinates `json:"coordinates"`
	RecordedAt  time.Time   `json:"recorded_at"`
	Synced      bool        `json:"synced"`
}

// Privacy controls who can discover the current user nearby.
type Privacy struct {
	ShareLocation bool                  `json:"share_location"`
	Visibility    domain.PrivacySetting `json:"visibility"`
}

func DefaultPrivacy() Privacy {
	return Privacy{ShareLocation: true, Visibility: domain.PrivacySettingContacts}
}

// NearbyUser is one entry of a nearby-users lookup.
type NearbyUser struct {
	UserID     string      `json:"user_id"`
	Username   string      `json:"username"`
	Avatar     string      `json:"avatar,omitempty"`
	Location   Coordinates `json:"location"`
	DistanceKm float64     `json:"distance_km"`
}
