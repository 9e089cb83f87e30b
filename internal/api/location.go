package api

import (
	"context"
	"net/http"

	"snapshoot-sync/internal/domain/location"
)

func (c *Client) UpdateLocation(ctx context.Context, coords location.Coordinates) error {
	body := map[string]location.GeoPoint{"location": coords.Point()}
	return c.call(ctx, http.MethodPost, "/location/update", body, nil)
}

func (c *Client) GetPrivacy(ctx context.Context) (location.Privacy, error) {
	var out location.Privacy
	if err := c.call(ctx, http.MethodGet, "/location/privacy", nil, &out); err != nil {
		return location.Privacy{}, err
	}
	return out, nil
}

func (c *Client) UpdatePrivacy(ctx context.Context, p location.Privacy) error {
	return c.call(ctx, http.MethodPut, "/location/privacy", p, nil)
}

func (c *Client) NearbyUsers(ctx context.Context, center location.Coordinates, radiusKm float64) ([]location.NearbyUser, error) {
	var out []wireNearbyUser
	if err := c.call(ctx, http.MethodGet, "/location/nearby/users?"+nearbyQuery(center, radiusKm), nil, &out); err != nil {
		return nil, err
	}
	users := make([]location.NearbyUser, 0, len(out))
	for _, w := range out {
		users = append(users, w.toDomain())
	}
	return users, nil
}
