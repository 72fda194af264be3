package room

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/syncwatch/server/internal/domain"
	"github.com/syncwatch/server/internal/repository/chat"
)

type SendChatParams struct {
	SenderID string
	RoomID   string
	Text     string
}

// SendChat stores the message in the room backlog and fans it out to every
// member, the sender included, so all clients render from the same stream.
func (s *service) SendChat(ctx context.Context, params *SendChatParams) error {
	text, ok := domain.SanitizeChatText(params.Text)
	if !ok {
		return nil
	}

	var (
		ids      []string
		username string
	)
	err := s.inspect(params.RoomID, func(r *domain.RoomState) error {
		for _, member := range r.Members {
			if member.ID == params.SenderID {
				username = member.DisplayName
				ids = memberIDs(r.Members)
				break
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}
	if ids == nil {
		return nil
	}

	msg := chat.Message{
		ID:        uuid.NewString(),
		UserID:    params.SenderID,
		Username:  username,
		Text:      text,
		CreatedAt: s.nowMs(),
	}
	if err := s.chatRepo.AddMessage(ctx, params.RoomID, &msg); err != nil {
		s.logger.WarnContext(ctx, "failed to store chat message", "room_id", params.RoomID, "error", err)
	}

	s.broadcast(ctx, ids, &Output{Type: outputChatMessage, Payload: msg})

	return nil
}
