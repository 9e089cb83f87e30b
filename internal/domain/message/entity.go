package message

import "time"

// Message is one chat message. Its identity never changes once the server
// has confirmed it; locally created messages carry a local_ id until sync.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	IsRead         bool      `json:"is_read"`
	Pending        bool      `json:"pending,omitempty"`
}

func (m Message) EntityID() string {
	return m.ID
}

// MarkReadBy flips IsRead for messages the reader did not author. It reports
// whether anything changed; read messages never become unread.
func (m *Message) MarkReadBy(readerID string) bool {
	if m.IsRead || m.SenderID == readerID {
		return false
	}
	m.IsRead = true
	return true
}

// MaxContentLength mirrors the server-side validation.
const MaxContentLength = 1000
