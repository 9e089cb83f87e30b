package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/location"
	"snapshoot-sync/internal/domain/media"
	"snapshoot-sync/internal/domain/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "ok", "data": data})
}

func newTestClient(t *testing.T, r *gin.Engine, opts ...ClientOption) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	opts = append([]ClientOption{WithBaseURL(srv.URL + "/api/")}, opts...)
	return New(opts...)
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func TestClient_SendsBearerAndIdempotencyKey(t *testing.T) {
	r := newRouter()
	var gotAuth, gotKey string
	r.POST("/api/friends/request/:id", func(c *gin.Context) {
		gotAuth = c.GetHeader("Authorization")
		gotKey = c.GetHeader("Idempotency-Key")
		ok(c, gin.H{"id": "f1", "status": "Pending"})
	})

	client := newTestClient(t, r, WithTokenSource(func(context.Context) (string, error) {
		return "tok-123", nil
	}))

	ctx := WithIdempotencyKey(context.Background(), "k-1")
	require.NoError(t, client.Follow(ctx, "42"))
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "k-1", gotKey)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	r := newRouter()
	r.GET("/api/users/:id", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found", "error": "no document"})
	})
	r.DELETE("/api/media/:id", func(c *gin.Context) {
		c.String(http.StatusInternalServerError, "boom")
	})
	r.GET("/api/users/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Token expired"})
	})
	client := newTestClient(t, r)
	ctx := context.Background()

	_, err := client.GetUser(ctx, "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "User not found", apiErr.Message)
	assert.Equal(t, "no document", apiErr.Detail)

	err = client.DeleteMedia(ctx, "m1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Message)
	assert.False(t, IsNotFound(err))

	_, err = client.Me(ctx)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Token expired", apiErr.Message)
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := New(WithBaseURL(srv.URL), WithTimeout(time.Second))
	err := client.Follow(context.Background(), "42")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestClient_CreateStoryBody(t *testing.T) {
	r := newRouter()
	var body map[string]interface{}
	expires := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r.POST("/api/stories", func(c *gin.Context) {
		assert.NoError(t, c.ShouldBindJSON(&body))
		ok(c, gin.H{
			"_id":        "s1",
			"user_id":    "u1",
			"location":   gin.H{"type": "Point", "coordinates": []float64{2.35, 48.85}},
			"media":      gin.H{"media_type": "Image", "url": "https://cdn/a.jpg"},
			"expires_at": expires,
		})
	})
	client := newTestClient(t, r)

	coords := location.Coordinates{Latitude: 48.85, Longitude: 2.35}
	s, err := client.CreateStory(context.Background(), CreateStoryInput{
		MediaURL:  "https://cdn/a.jpg",
		MediaKind: domain.MediaKindImage,
		Location:  &coords,
	})
	require.NoError(t, err)

	m := body["media"].(map[string]interface{})
	assert.Equal(t, "Image", m["media_type"])
	loc := body["location"].(map[string]interface{})
	assert.Equal(t, "Point", loc["type"])
	assert.Equal(t, []interface{}{2.35, 48.85}, loc["coordinates"])

	assert.Equal(t, "s1", s.ID)
	require.NotNil(t, s.Location)
	assert.Equal(t, coords, *s.Location)
	assert.True(t, s.ExpiresAt.Equal(expires))
	assert.True(t, s.CreatedAt.Equal(expires.Add(-24*time.Hour)))
}

func TestClient_NearbyQuery(t *testing.T) {
	r := newRouter()
	var q map[string]string
	r.GET("/api/location/nearby/users", func(c *gin.Context) {
		q = map[string]string{
			"latitude":  c.Query("latitude"),
			"longitude": c.Query("longitude"),
			"radius":    c.Query("radius"),
		}
		ok(c, []gin.H{{
			"_id":      "u2",
			"username": "bob",
			"location": gin.H{"type": "Point", "coordinates": []float64{2.36, 48.86}},
			"distance": 1.2,
		}})
	})
	client := newTestClient(t, r)

	users, err := client.NearbyUsers(context.Background(), location.Coordinates{Latitude: 48.85, Longitude: 2.35}, 5)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"latitude": "48.85", "longitude": "2.35", "radius": "5000"}, q)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].UserID)
	assert.InDelta(t, 48.86, users[0].Location.Latitude, 1e-9)
}

func TestClient_NearbyStoriesSendsRadiusInMetres(t *testing.T) {
	r := newRouter()
	var radius string
	r.GET("/api/stories/nearby", func(c *gin.Context) {
		radius = c.Query("radius")
		ok(c, []gin.H{})
	})
	client := newTestClient(t, r)

	_, err := client.NearbyStories(context.Background(), location.Coordinates{Latitude: 48.85, Longitude: 2.35}, 2.5)
	require.NoError(t, err)
	assert.Equal(t, "2500", radius)
}

func TestClient_AddGroupMembers(t *testing.T) {
	r := newRouter()
	var body struct {
		Members []string `json:"members"`
	}
	var group string
	r.POST("/api/groups/:id/members", func(c *gin.Context) {
		group = c.Param("id")
		require.NoError(t, c.ShouldBindJSON(&body))
		ok(c, nil)
	})
	client := newTestClient(t, r)

	require.NoError(t, client.AddGroupMembers(context.Background(), "g1", []string{"u4"}))
	assert.Equal(t, "g1", group)
	assert.Equal(t, []string{"u4"}, body.Members)
}

func TestClient_LoginAndProfile(t *testing.T) {
	r := newRouter()
	r.POST("/api/auth/login", func(c *gin.Context) {
		var in map[string]string
		assert.NoError(t, c.ShouldBindJSON(&in))
		assert.Equal(t, "ann@example.com", in["credential"])
		ok(c, gin.H{"token": "t"})
	})
	r.PUT("/api/users/me", func(c *gin.Context) {
		var in map[string]interface{}
		assert.NoError(t, c.ShouldBindJSON(&in))
		assert.Equal(t, map[string]interface{}{"bio": "hello"}, in)
		ok(c, gin.H{"_id": "u1", "username": "ann", "bio": "hello", "role": "User"})
	})
	client := newTestClient(t, r)
	ctx := context.Background()

	sess, err := client.Login(ctx, "ann@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "t", sess.Token)
	assert.Nil(t, sess.User)

	bio := "hello"
	u, err := client.UpdateMe(ctx, user.ProfileUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "hello", u.Bio)
	assert.Equal(t, domain.UserRoleUser, u.Role)
	assert.NotNil(t, u.Following)
}

func TestClient_UploadMediaMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))

	r := newRouter()
	r.POST("/api/media/upload", func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, "photo.png", fh.Filename)
		assert.Equal(t, "image/png", fh.Header.Get("Content-Type"))
		f, err := fh.Open()
		if !assert.NoError(t, err) {
			return
		}
		data, _ := io.ReadAll(f)
		f.Close()
		assert.Equal(t, "png-bytes", string(data))
		assert.Equal(t, "Image", c.PostForm("type"))

		var p location.GeoPoint
		assert.NoError(t, json.Unmarshal([]byte(c.PostForm("coordinates")), &p))
		assert.Equal(t, [2]float64{2.35, 48.85}, p.Coordinates)
		ok(c, gin.H{"id": "m1", "url": "https://cdn/m1.png"})
	})
	client := newTestClient(t, r)

	up, err := client.UploadMedia(context.Background(), media.Upload{
		LocalPath:   path,
		Kind:        domain.MediaKindImage,
		Coordinates: &location.Coordinates{Latitude: 48.85, Longitude: 2.35},
	})
	require.NoError(t, err)
	assert.Equal(t, media.Uploaded{ID: "m1", URL: "https://cdn/m1.png"}, up)
}

func TestClient_UploadMissingFile(t *testing.T) {
	client := New()
	_, err := client.UploadMedia(context.Background(), media.Upload{LocalPath: "/does/not/exist.jpg"})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
