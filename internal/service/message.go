package service

import (
	"context"

	"github.com/velvetlist/concierge/internal/domain"
)

// GetConversationMessages returns a page of the member's own conversation.
func (s *Service) GetConversationMessages(ctx context.Context, userID, conversationID string, limit, before int) ([]domain.Message, error) {
	conv, err := s.resolveConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.GetMessages(ctx, conv.ConversationID, limit, before)
	if err != nil {
		return nil, domain.NewError(domain.ErrKindStorage, "failed to load messages", err)
	}
	return messages, nil
}
