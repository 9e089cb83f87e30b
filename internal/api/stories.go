package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/location"
	"snapshoot-sync/internal/domain/story"
)

// CreateStoryInput references media that is already uploaded.
type CreateStoryInput struct {
	MediaURL  string
	MediaKind domain.MediaKind
	Duration  *float64
	Caption   string
	Location  *location.Coordinates
}

type createStoryRequest struct {
	Media    wireMedia          `json:"media"`
	Caption  string             `json:"caption,omitempty"`
	Location *location.GeoPoint `json:"location,omitempty"`
}

func (c *Client) CreateStory(ctx context.Context, in CreateStoryInput) (story.Story, error) {
	body := createStoryRequest{
		Media: wireMedia{
			MediaType: in.MediaKind.APIName(),
			URL:       in.MediaURL,
			Duration:  in.Duration,
		},
		Caption: in.Caption,
	}
	if in.Location != nil {
		p := in.Location.Point()
		body.Location = &p
	}

	var out wireStory
	if err := c.call(ctx, http.MethodPost, "/stories", body, &out); err != nil {
		return story.Story{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) ListStories(ctx context.Context) ([]story.Story, error) {
	var out []wireStory
	if err := c.call(ctx, http.MethodGet, "/stories", nil, &out); err != nil {
		return nil, err
	}
	return storiesToDomain(out), nil
}

func (c *Client) NearbyStories(ctx context.Context, center location.Coordinates, radiusKm float64) ([]story.Story, error) {
	var out []wireStory
	if err := c.call(ctx, http.MethodGet, "/stories/nearby?"+nearbyQuery(center, radiusKm), nil, &out); err != nil {
		return nil, err
	}
	return storiesToDomain(out), nil
}

func (c *Client) DeleteStory(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/stories/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ViewStory(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/stories/"+url.PathEscape(id)+"/view", nil, nil)
}

func (c *Client) LikeStory(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/stories/"+url.PathEscape(id)+"/like", nil, nil)
}

func (c *Client) UnlikeStory(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, "/stories/"+url.PathEscape(id)+"/unlike", nil, nil)
}

// nearbyQuery encodes a geo query. The server reads radius in metres.
func nearbyQuery(center location.Coordinates, radiusKm float64) string {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(center.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(center.Longitude, 'f', -1, 64))
	if radiusKm > 0 {
		params.Set("radius", strconv.FormatFloat(radiusKm*1000, 'f', -1, 64))
	}
	return params.Encode()
}
