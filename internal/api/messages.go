package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/message"
)

type SendMessageInput struct {
	// RecipientID is a user id, or a group id when IsGroup is set.
	RecipientID string
	IsGroup     bool
	Content     string
	MediaURL    string
}

type sendMessageRequest struct {
	Content string     `json:"content"`
	Media   *wireMedia `json:"media,omitempty"`
}

// SendMessage posts a message and returns the stored copy tagged with
// conversationID.
func (c *Client) SendMessage(ctx context.Context, conversationID string, in SendMessageInput) (message.Message, error) {
	body := sendMessageRequest{Content: in.Content}
	if in.MediaURL != "" {
		body.Media = &wireMedia{MediaType: domain.MediaKindImage.APIName(), URL: in.MediaURL}
	}

	var out wireMessage
	if err := c.call(ctx, http.MethodPost, messagesPath(in.RecipientID, in.IsGroup), body, &out); err != nil {
		return message.Message{}, err
	}
	return out.toDomain(conversationID), nil
}

type ListMessagesInput struct {
	PeerID  string
	IsGroup bool
	Limit   int
	Offset  int
}

func (c *Client) ListMessages(ctx context.Context, conversationID string, in ListMessagesInput) ([]message.Message, error) {
	path := messagesPath(in.PeerID, in.IsGroup)
	params := url.Values{}
	if in.Limit > 0 {
		params.Set("limit", strconv.Itoa(in.Limit))
	}
	if in.Offset > 0 {
		params.Set("offset", strconv.Itoa(in.Offset))
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out []wireMessage
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	msgs := make([]message.Message, 0, len(out))
	for _, w := range out {
		msgs = append(msgs, w.toDomain(conversationID))
	}
	return msgs, nil
}

func messagesPath(peerID string, isGroup bool) string {
	if isGroup {
		return "/messages/groups/" + url.PathEscape(peerID)
	}
	return "/messages/" + url.PathEscape(peerID)
}

func (c *Client) CreateGroup(ctx context.Context, name string, members []string) (Group, error) {
	body := map[string]interface{}{"name": name, "members": members}
	var out Group
	if err := c.call(ctx, http.MethodPost, "/groups", body, &out); err != nil {
		return Group{}, err
	}
	return out, nil
}

func (c *Client) AddGroupMembers(ctx context.Context, groupID string, members []string) error {
	body := map[string][]string{"members": members}
	return c.call(ctx, http.MethodPost, "/groups/"+url.PathEscape(groupID)+"/members", body, nil)
}

func (c *Client) LeaveGroup(ctx context.Context, groupID, userID string) error {
	return c.call(ctx, http.MethodDelete, "/groups/"+url.PathEscape(groupID)+"/members/"+url.PathEscape(userID), nil, nil)
}
