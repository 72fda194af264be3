package room

import (
	"context"
)

// broadcast sends one message to every listed member. A failed write only
// logs; the read loop of the broken connection handles its own teardown.
func (s *service) broadcast(ctx context.Context, memberIDs []string, msg *Output) {
	for _, memberID := range memberIDs {
		if err := s.connRepo.Send(memberID, msg); err != nil {
			s.logger.DebugContext(ctx, "failed to send message",
				"member_id", memberID,
				"message_type", msg.Type,
				"error", err,
			)
		}
	}
}

// broadcastExcept sends to every listed member but the sender, mirroring
// pause/resume signals that the acting member already applied locally.
func (s *service) broadcastExcept(ctx context.Context, memberIDs []string, exceptID string, msg *Output) {
	for _, memberID := range memberIDs {
		if memberID == exceptID {
			continue
		}
		if err := s.connRepo.Send(memberID, msg); err != nil {
			s.logger.DebugContext(ctx, "failed to send message",
				"member_id", memberID,
				"message_type", msg.Type,
				"error", err,
			)
		}
	}
}

func (s *service) sendToMember(ctx context.Context, memberID string, msg *Output) {
	if err := s.connRepo.Send(memberID, msg); err != nil {
		s.logger.DebugContext(ctx, "failed to send message",
			"member_id", memberID,
			"message_type", msg.Type,
			"error", err,
		)
	}
}
