package conversation

import (
	"time"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/message"
)

// Conversation is a direct chat between two users or a group chat.
type Conversation struct {
	ID           string       `json:"id"`
	Participants domain.IDSet `json:"participants"`
	IsGroup      bool         `json:"is_group"`
	GroupName    string       `json:"group_name,omitempty"`

	// GroupID is the server group id for group conversations.
	GroupID     string           `json:"group_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	LastMessage *message.Message `json:"last_message,omitempty"`
}

func (c Conversation) EntityID() string {
	return c.ID
}

// IsDirectBetween reports whether c is the one-to-one conversation between a
// and b, in either order.
func (c Conversation) IsDirectBetween(a, b string) bool {
	if c.IsGroup {
		return false
	}
	return c.Participants.SameMembers(domain.IDSet{a, b})
}

// Counterpart returns the other participant of a direct conversation.
func (c Conversation) Counterpart(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// DirectID derives the deterministic id of a direct conversation so both
// participants compute the same one without coordinating.
func DirectID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm_" + a + "_" + b
}

// GroupID is the conversation id used for a server group.
func GroupID(groupID string) string {
	return "group_" + groupID
}
