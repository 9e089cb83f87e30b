package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"snapshoot-sync/internal/domain/user"
)

// Session is what login and register return.
type Session struct {
	Token string
	// User is nil when the backend only returned a token.
	User *user.User
}

type sessionResponse struct {
	Token string    `json:"token"`
	User  *wireUser `json:"user,omitempty"`
}

func (r sessionResponse) toSession() Session {
	s := Session{Token: r.Token}
	if r.User != nil {
		u := r.User.toDomain()
		s.User = &u
	}
	return s
}

// Login authenticates with a username or email as credential.
func (c *Client) Login(ctx context.Context, credential, password string) (Session, error) {
	body := map[string]string{"credential": credential, "password": password}
	var out sessionResponse
	if err := c.call(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return Session{}, err
	}
	return out.toSession(), nil
}

type RegisterInput struct {
	Username string  `json:"username"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Bio      string  `json:"bio"`
	Avatar   *string `json:"avatar,omitempty"`
}

func (c *Client) Register(ctx context.Context, in RegisterInput) (Session, error) {
	var out sessionResponse
	if err := c.call(ctx, http.MethodPost, "/auth/register", in, &out); err != nil {
		return Session{}, err
	}
	return out.toSession(), nil
}

// Me returns the user owning the current token.
func (c *Client) Me(ctx context.Context) (user.User, error) {
	var out wireUser
	if err := c.call(ctx, http.MethodGet, "/users/me", nil, &out); err != nil {
		return user.User{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) UpdateMe(ctx context.Context, upd user.ProfileUpdate) (user.User, error) {
	var out wireUser
	if err := c.call(ctx, http.MethodPut, "/users/me", upd, &out); err != nil {
		return user.User{}, err
	}
	return out.toDomain(), nil
}

// UpdateNotificationPreferences stores the reminder settings on the profile.
func (c *Client) UpdateNotificationPreferences(ctx context.Context, prefs user.NotificationPreferences) error {
	return c.call(ctx, http.MethodPut, "/users/me", prefs, nil)
}

func (c *Client) GetUser(ctx context.Context, id string) (user.User, error) {
	var out wireUser
	if err := c.call(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, &out); err != nil {
		return user.User{}, err
	}
	return out.toDomain(), nil
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]user.User, error) {
	var out []wireUser
	if err := c.call(ctx, http.MethodPost, "/users/search", map[string]string{"query": query}, &out); err != nil {
		return nil, err
	}
	return usersToDomain(out), nil
}

// Follow sends a friend request to userID.
func (c *Client) Follow(ctx context.Context, userID string) error {
	if err := c.call(ctx, http.MethodPost, "/friends/request/"+url.PathEscape(userID), nil, nil); err != nil {
		return fmt.Errorf("follow %s: %w", userID, err)
	}
	return nil
}

func (c *Client) Unfollow(ctx context.Context, userID string) error {
	if err := c.call(ctx, http.MethodDelete, "/friends/"+url.PathEscape(userID), nil, nil); err != nil {
		return fmt.Errorf("unfollow %s: %w", userID, err)
	}
	return nil
}
