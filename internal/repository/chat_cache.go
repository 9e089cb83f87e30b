package repository

import (
	"context"
	"sort"
	"time"

	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/conversation"
	"snapshoot-sync/internal/domain/message"
	"snapshoot-sync/internal/kv"
)

// ConversationCache mirrors the conversation list.
type ConversationCache struct {
	*Cache[conversation.Conversation]
}

func NewConversationCache(store kv.Store, locks *kv.Locker) *ConversationCache {
	return &ConversationCache{Cache: NewCache[conversation.Conversation](store, locks, KeyConversations)}
}

// GetOrCreateDirect returns the direct conversation between a and b, creating
// it when none exists. The lookup and the insert share one critical section,
// so two callers never create duplicates.
func (c *ConversationCache) GetOrCreateDirect(ctx context.Context, a, b string, now time.Time) (conversation.Conversation, bool, error) {
	var (
		conv    conversation.Conversation
		created bool
	)
	err := c.Update(ctx, func(items []conversation.Conversation) ([]conversation.Conversation, bool) {
		for _, it := range items {
			if it.IsDirectBetween(a, b) {
				conv = it
				return items, false
			}
		}
		conv = conversation.Conversation{
			ID:           conversation.DirectID(a, b),
			Participants: domain.IDSet{a, b},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		created = true
		return append(items, conv), true
	})
	return conv, created, err
}

// Sorted returns conversations most recently updated first.
func (c *ConversationCache) Sorted(ctx context.Context) ([]conversation.Conversation, error) {
	items, err := c.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
	return items, nil
}

// Touch records msg as the latest message of its conversation.
func (c *ConversationCache) Touch(ctx context.Context, msg message.Message) error {
	_, _, err := c.Mutate(ctx, msg.ConversationID, func(conv *conversation.Conversation) bool {
		if conv.LastMessage != nil && conv.LastMessage.CreatedAt.After(msg.CreatedAt) {
			return false
		}
		m := msg
		conv.LastMessage = &m
		conv.UpdatedAt = msg.CreatedAt
		return true
	})
	return err
}

// MessageCache mirrors messages of every conversation in one blob.
type MessageCache struct {
	*Cache[message.Message]
}

func NewMessageCache(store kv.Store, locks *kv.Locker) *MessageCache {
	return &MessageCache{Cache: NewCache[message.Message](store, locks, KeyMessages)}
}

// ForConversation returns the messages of conversationID oldest first.
func (c *MessageCache) ForConversation(ctx context.Context, conversationID string) ([]message.Message, error) {
	items, err := c.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []message.Message
	for _, m := range items {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// MarkRead marks every message in conversationID not sent by readerID as
// read and returns how many changed.
func (c *MessageCache) MarkRead(ctx context.Context, conversationID, readerID string) (int, error) {
	var n int
	err := c.Update(ctx, func(items []message.Message) ([]message.Message, bool) {
		for i := range items {
			if items[i].ConversationID == conversationID && items[i].MarkReadBy(readerID) {
				n++
			}
		}
		return items, n > 0
	})
	return n, err
}

// Confirm swaps the local copy localID for the server-confirmed message.
func (c *MessageCache) Confirm(ctx context.Context, localID string, confirmed message.Message) error {
	return c.Update(ctx, func(items []message.Message) ([]message.Message, bool) {
		out := items[:0:0]
		for _, m := range items {
			if m.ID == localID || m.ID == confirmed.ID {
				continue
			}
			out = append(out, m)
		}
		return append(out, confirmed), true
	})
}

// MergeConversation replaces the synced messages of conversationID with the
// server list. Unsynced local messages stay, and a message already read
// locally stays read.
func (c *MessageCache) MergeConversation(ctx context.Context, conversationID string, remote []message.Message) error {
	return c.Update(ctx, func(items []message.Message) ([]message.Message, bool) {
		read := make(map[string]bool)
		var out []message.Message
		for _, m := range items {
			if m.ConversationID == conversationID && !m.Pending {
				read[m.ID] = m.IsRead
				continue
			}
			out = append(out, m)
		}
		for _, r := range remote {
			r.ConversationID = conversationID
			if read[r.ID] {
				r.IsRead = true
			}
			out = append(out, r)
		}
		return out, true
	})
}

// RemoveConversation drops every message of conversationID.
func (c *MessageCache) RemoveConversation(ctx context.Context, conversationID string) error {
	return c.Update(ctx, func(items []message.Message) ([]message.Message, bool) {
		out := items[:0:0]
		for _, m := range items {
			if m.ConversationID != conversationID {
				out = append(out, m)
			}
		}
		return out, len(out) != len(items)
	})
}
