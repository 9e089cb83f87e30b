package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"snapshoot-sync/internal/api"
	"snapshoot-sync/internal/domain"
	"snapshoot-sync/internal/domain/conversation"
	"snapshoot-sync/internal/domain/message"
	"snapshoot-sync/internal/domain/pending"
	"snapshoot-sync/internal/repository"
	snapshoot_errors "snapshoot-sync/pkg/errors"

	"go.uber.org/zap"
)

type MessageRemote interface {
	SendMessage(ctx context.Context, conversationID string, in api.SendMessageInput) (message.Message, error)
	ListMessages(ctx context.Context, conversationID string, in api.ListMessagesInput) ([]message.Message, error)
	CreateGroup(ctx context.Context, name string, members []string) (api.Group, error)
	AddGroupMembers(ctx context.Context, groupID string, members []string) error
	LeaveGroup(ctx context.Context, groupID, userID string) error
}

type MessageService struct {
	env    *Env
	repos  *repository.Repositories
	remote MessageRemote
}

func NewMessageService(env *Env, repos *repository.Repositories, remote MessageRemote) *MessageService {
	return &MessageService{env: env, repos: repos, remote: remote}
}

// GetOrCreateConversation returns the direct conversation with otherID,
// creating it locally on first use.
func (s *MessageService) GetOrCreateConversation(ctx context.Context, otherID string) (conversation.Conversation, error) {
	me, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if otherID == "" || otherID == me {
		return conversation.Conversation{}, snapshoot_errors.ErrInvalidInput
	}
	conv, created, err := s.repos.Conversations.GetOrCreateDirect(ctx, me, otherID, s.env.now())
	if err != nil {
		return conversation.Conversation{}, err
	}
	if created {
		s.env.logger().Debugf("created conversation %s", conv.ID)
	}
	return conv, nil
}

// CreateGroup needs the server to allocate the group id.
func (s *MessageService) CreateGroup(ctx context.Context, name string, members []string) (conversation.Conversation, error) {
	me, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if strings.TrimSpace(name) == "" {
		return conversation.Conversation{}, fmt.Errorf("%w: group name is required", snapshoot_errors.ErrInvalidInput)
	}
	if !s.env.Signal.Online() {
		return conversation.Conversation{}, snapshoot_errors.ErrOffline
	}
	group, err := s.remote.CreateGroup(ctx, name, members)
	if err != nil {
		return conversation.Conversation{}, fmt.Errorf("%w: %v", snapshoot_errors.ErrRemoteUnavailable, err)
	}

	participants := domain.IDSet{me}
	for _, id := range members {
		participants = participants.Add(id)
	}
	for _, id := range group.Members {
		participants = participants.Add(id)
	}
	now := s.env.now()
	conv := conversation.Conversation{
		ID:           conversation.GroupID(group.ID),
		Participants: participants,
		IsGroup:      true,
		GroupName:    group.Name,
		GroupID:      group.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repos.Conversations.Upsert(ctx, conv); err != nil {
		return conversation.Conversation{}, err
	}
	return conv, nil
}

// AddGroupMembers adds members to a group the caller belongs to. Like
// CreateGroup it needs the server.
func (s *MessageService) AddGroupMembers(ctx context.Context, conversationID string, members []string) (conversation.Conversation, error) {
	me, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if len(members) == 0 {
		return conversation.Conversation{}, snapshoot_errors.ErrInvalidInput
	}
	conv, err := s.participantConversation(ctx, conversationID, me)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !conv.IsGroup || conv.GroupID == "" {
		return conversation.Conversation{}, fmt.Errorf("%w: not a group conversation", snapshoot_errors.ErrInvalidInput)
	}
	if !s.env.Signal.Online() {
		return conversation.Conversation{}, snapshoot_errors.ErrOffline
	}
	if err := s.remote.AddGroupMembers(ctx, conv.GroupID, members); err != nil {
		return conversation.Conversation{}, fmt.Errorf("%w: %v", snapshoot_errors.ErrRemoteUnavailable, err)
	}

	updated, _, err := s.repos.Conversations.Mutate(ctx, conv.ID, func(c *conversation.Conversation) bool {
		for _, id := range members {
			c.Participants = c.Participants.Add(id)
		}
		return true
	})
	return updated, err
}

// participantConversation loads conversationID and checks that userID
// belongs to it.
func (s *MessageService) participantConversation(ctx context.Context, conversationID, userID string) (conversation.Conversation, error) {
	conv, ok, err := s.repos.Conversations.Get(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !ok {
		return conversation.Conversation{}, snapshoot_errors.ErrNotFound
	}
	if !conv.Participants.Has(userID) {
		return conversation.Conversation{}, snapshoot_errors.ErrUnauthorized
	}
	return conv, nil
}

func recipientOf(conv conversation.Conversation, me string) string {
	if conv.IsGroup {
		return conv.GroupID
	}
	return conv.Counterpart(me)
}

// SendMessage shows the message immediately and sends it when it can. While
// older messages of the same conversation are still queued the new one
// queues behind them, so the server receives them in order.
func (s *MessageService) SendMessage(ctx context.Context, conversationID, content, imageURL string) (message.Message, Outcome, error) {
	me, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return message.Message{}, Offline, err
	}
	content = strings.TrimSpace(content)
	if content == "" && imageURL == "" {
		return message.Message{}, Offline, fmt.Errorf("%w: message is empty", snapshoot_errors.ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > message.MaxContentLength {
		return message.Message{}, Offline, fmt.Errorf("%w: message longer than %d characters", snapshoot_errors.ErrInvalidInput, message.MaxContentLength)
	}
	conv, err := s.participantConversation(ctx, conversationID, me)
	if err != nil {
		return message.Message{}, Offline, err
	}
	recipient := recipientOf(conv, me)
	if recipient == "" {
		return message.Message{}, Offline, fmt.Errorf("%w: conversation has no recipient", snapshoot_errors.ErrInvalidInput)
	}

	now := s.env.now()
	var result message.Message
	queueLocally := func(ctx context.Context) error {
		result = message.Message{
			ID:             domain.NewLocalID(),
			ConversationID: conv.ID,
			SenderID:       me,
			Content:        content,
			ImageURL:       imageURL,
			CreatedAt:      now,
			Pending:        true,
		}
		if err := s.repos.Messages.Upsert(ctx, result); err != nil {
			return err
		}
		if err := s.repos.Conversations.Touch(ctx, result); err != nil {
			return err
		}
		_, err := s.repos.PendingMessages.Enqueue(ctx, pending.Message{
			ID:             result.ID,
			ConversationID: conv.ID,
			RecipientID:    recipient,
			Content:        content,
			MediaURL:       imageURL,
			IsGroup:        conv.IsGroup,
			OwnerID:        me,
			LoggedAt:       now,
		})
		return err
	}

	behind, err := s.hasQueued(ctx, conv.ID)
	if err != nil {
		return message.Message{}, Offline, err
	}
	if behind {
		err := queueLocally(ctx)
		return result, Offline, err
	}

	outcome, err := attempt(ctx, s.env, "message.send",
		func(ctx context.Context) (message.Message, error) {
			return s.remote.SendMessage(ctx, conv.ID, api.SendMessageInput{
				RecipientID: recipient,
				IsGroup:     conv.IsGroup,
				Content:     content,
				MediaURL:    imageURL,
			})
		},
		func(ctx context.Context, sent message.Message) error {
			sent.ConversationID = conv.ID
			if sent.SenderID == "" {
				sent.SenderID = me
			}
			if sent.CreatedAt.IsZero() {
				sent.CreatedAt = now
			}
			result = sent
			if err := s.repos.Messages.Upsert(ctx, sent); err != nil {
				return err
			}
			return s.repos.Conversations.Touch(ctx, sent)
		},
		queueLocally,
	)
	return result, outcome, err
}

func (s *MessageService) hasQueued(ctx context.Context, conversationID string) (bool, error) {
	queued, err := s.repos.PendingMessages.PeekAll(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range queued {
		if m.ConversationID == conversationID {
			return true, nil
		}
	}
	return false, nil
}

// ReplayMessage sends a queued message and swaps the local copy for the
// server's. A message whose conversation was deleted meanwhile is dropped.
func (s *MessageService) ReplayMessage(ctx context.Context, pm pending.Message) error {
	if err := s.env.replayable(ctx, pm); err != nil {
		return err
	}
	_, exists, err := s.repos.Conversations.Get(ctx, pm.ConversationID)
	if err != nil {
		return err
	}
	if !exists {
		s.env.logger().Warn(ctx, "dropping message for deleted conversation", zap.String("message_id", pm.ID), zap.String("conversation_id", pm.ConversationID))
		return pending.ErrDiscard
	}

	sent, err := s.remote.SendMessage(ctx, pm.ConversationID, api.SendMessageInput{
		RecipientID: pm.RecipientID,
		IsGroup:     pm.IsGroup,
		Content:     pm.Content,
		MediaURL:    pm.MediaURL,
	})
	if err != nil {
		return err
	}

	local, ok, err := s.repos.Messages.Get(ctx, pm.ID)
	if err != nil {
		return err
	}
	sent.ConversationID = pm.ConversationID
	if sent.CreatedAt.IsZero() {
		sent.CreatedAt = pm.LoggedAt
		if ok {
			sent.CreatedAt = local.CreatedAt
		}
	}
	if sent.SenderID == "" && ok {
		sent.SenderID = local.SenderID
	}
	if err := s.repos.Messages.Confirm(ctx, pm.ID, sent); err != nil {
		return err
	}
	_, _, err = s.repos.Conversations.Mutate(ctx, pm.ConversationID, func(conv *conversation.Conversation) bool {
		if conv.LastMessage == nil || conv.LastMessage.ID != pm.ID {
			return false
		}
		m := sent
		conv.LastMessage = &m
		return true
	})
	return err
}

// GetMessages answers from the cache, oldest first, and refreshes the
// conversation in the background when online.
func (s *MessageService) GetMessages(ctx context.Context, conversationID string) ([]message.Message, error) {
	me, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.participantConversation(ctx, conversationID, me); err != nil {
		return nil, err
	}
	msgs, err := s.repos.Messages.ForConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if s.env.Signal.Online() {
		s.env.background(ctx, "message.refresh", func(ctx context.Context) error {
			return s.RefreshMessages(ctx, conversationID)
		})
	}
	return msgs, nil
}

// RefreshMessages replaces the conversation's synced messages with the
// server's.
func (s *MessageService) RefreshMessages(ctx context.Context, conversationID string) error {
	me, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	conv, err := s.participantConversation(ctx, conversationID, me)
	if err != nil {
		return err
	}
	if !s.env.Signal.Online() {
		return snapshoot_errors.ErrOffline
	}
	remote, err := s.remote.ListMessages(ctx, conv.ID, api.ListMessagesInput{
		PeerID:  recipientOf(conv, me),
		IsGroup: conv.IsGroup,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", snapshoot_errors.ErrRemoteUnavailable, err)
	}
	if err := s.repos.Messages.MergeConversation(ctx, conv.ID, remote); err != nil {
		return err
	}
	for _, m := range remote {
		if err := s.repos.Conversations.Touch(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// MarkConversationRead marks messages from other participants as read and
// returns how many changed.
func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID string) (int, error) {
	me, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := s.participantConversation(ctx, conversationID, me); err != nil {
		return 0, err
	}
	n, err := s.repos.Messages.MarkRead(ctx, conversationID, me)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		_, _, err = s.repos.Conversations.Mutate(ctx, conversationID, func(conv *conversation.Conversation) bool {
			if conv.LastMessage == nil {
				return false
			}
			return conv.LastMessage.MarkReadBy(me)
		})
	}
	return n, err
}

// DeleteMessage removes one of the user's own messages, sent or queued.
func (s *MessageService) DeleteMessage(ctx context.Context, messageID string) error {
	me, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	msg, ok, err := s.repos.Messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if !ok {
		return snapshoot_errors.ErrNotFound
	}
	if msg.SenderID != me {
		return snapshoot_errors.ErrUnauthorized
	}

	if _, err := s.repos.PendingMessages.RemoveID(ctx, messageID); err != nil {
		return err
	}
	if _, err := s.repos.Messages.Remove(ctx, messageID); err != nil {
		return err
	}
	return s.recomputeLast(ctx, msg.ConversationID)
}

func (s *MessageService) recomputeLast(ctx context.Context, conversationID string) error {
	remaining, err := s.repos.Messages.ForConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	_, _, err = s.repos.Conversations.Mutate(ctx, conversationID, func(conv *conversation.Conversation) bool {
		if len(remaining) == 0 {
			conv.LastMessage = nil
			return true
		}
		last := remaining[len(remaining)-1]
		conv.LastMessage = &last
		return true
	})
	return err
}

// DeleteConversation removes the conversation with its messages and queued
// sends. Leaving a group on the server is best effort.
func (s *MessageService) DeleteConversation(ctx context.Context, conversationID string) error {
	me, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	conv, err := s.participantConversation(ctx, conversationID, me)
	if err != nil {
		return err
	}
	if conv.IsGroup && conv.GroupID != "" {
		bestEffort(ctx, s.env, "message.leave_group", func(ctx context.Context) error {
			return s.remote.LeaveGroup(ctx, conv.GroupID, me)
		})
	}

	if _, err := s.repos.PendingMessages.RemoveMatching(ctx, func(m pending.Message) bool {
		return m.ConversationID == conv.ID
	}); err != nil {
		return err
	}
	if err := s.repos.Messages.RemoveConversation(ctx, conv.ID); err != nil {
		return err
	}
	_, err = s.repos.Conversations.Remove(ctx, conv.ID)
	return err
}

// GetConversations lists the user's conversations, most recent first.
func (s *MessageService) GetConversations(ctx context.Context) ([]conversation.Conversation, error) {
	me, err := s.env.Auth.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.repos.Conversations.Sorted(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, c := range all {
		if c.Participants.Has(me) {
			out = append(out, c)
		}
	}
	return out, nil
}
