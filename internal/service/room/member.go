package room

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/syncwatch/server/internal/domain"
)

type JoinParams struct {
	Conn        *websocket.Conn
	RoomID      string
	DisplayName string
}

type JoinResponse struct {
	Member domain.Member
}

// Join adds the member to the room, creating the room on first join. The
// first member becomes leader. The joiner receives the full snapshot, a
// track-change cueing the current track at live time, an immediate clock
// tick and the chat backlog; everyone gets the new member list.
func (s *service) Join(ctx context.Context, params *JoinParams) (JoinResponse, error) {
	member := domain.Member{
		ID:          uuid.NewString(),
		DisplayName: params.DisplayName,
	}
	if err := s.connRepo.Add(params.Conn, member.ID); err != nil {
		return JoinResponse{}, fmt.Errorf("failed to register connection: %w", err)
	}

	now := s.clock.Now()
	var (
		snapshot    Snapshot
		trackChange *TrackChange
		ids         []string
	)
	err := s.roomRepo.UpdateOrCreate(params.RoomID, now, func(r *domain.RoomState) error {
		if s.cfg.MembersLimit > 0 && len(r.Members) >= s.cfg.MembersLimit {
			return ErrMembersLimitReached
		}

		r.AddMember(member)

		live := domain.LiveTime(r, now)
		snapshot = snapshotOf(r, now.UnixMilli(), live)
		if r.CurrentTrack != nil {
			trackChange = &TrackChange{
				Track:       *r.CurrentTrack,
				CurrentTime: live,
				ServerTs:    now.UnixMilli(),
				IsPlaying:   r.Playing,
			}
		}
		ids = memberIDs(r.Members)

		return nil
	})
	if err != nil {
		s.connRepo.RemoveByMemberID(member.ID)
		return JoinResponse{}, fmt.Errorf("failed to join room: %w", err)
	}

	// the member id lets the client recognize itself in leader changes
	s.sendToMember(ctx, member.ID, &Output{Type: outputJoined, Payload: map[string]any{
		"member_id": member.ID,
	}})
	s.sendToMember(ctx, member.ID, &Output{Type: outputRoomState, Payload: snapshot})

	// cue the joiner onto the running track right away instead of waiting
	// for the next tick
	if trackChange != nil {
		s.sendToMember(ctx, member.ID, &Output{Type: outputTrackChange, Payload: *trackChange})
		s.sendToMember(ctx, member.ID, &Output{Type: outputClockTick, Payload: ClockTick{
			BaseTime:  trackChange.CurrentTime,
			ServerTs:  trackChange.ServerTs,
			IsPlaying: trackChange.IsPlaying,
			TrackID:   trackChange.Track.ID,
		}})
	}

	backlog, err := s.chatRepo.GetRecent(ctx, params.RoomID, s.cfg.ChatBacklogSent)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to get chat backlog", "room_id", params.RoomID, "error", err)
	} else if len(backlog) > 0 {
		s.sendToMember(ctx, member.ID, &Output{Type: outputChatBacklog, Payload: chatBacklogPayload(backlog)})
	}

	s.broadcast(ctx, ids, &Output{Type: outputMembersUpdated, Payload: map[string]any{
		"members": snapshot.Members,
	}})

	return JoinResponse{Member: member}, nil
}

type DisconnectParams struct {
	MemberID string
	RoomID   string
}

// Disconnect releases the member and runs leader handover synchronously. The
// room is destroyed, its ticker stopped and its chat backlog dropped when the
// last member leaves.
func (s *service) Disconnect(ctx context.Context, params *DisconnectParams) {
	s.connRepo.RemoveByMemberID(params.MemberID)

	var (
		removed       bool
		leaderChanged bool
		newLeaderID   string
		members       []domain.Member
	)
	err := s.roomRepo.Update(params.RoomID, func(r *domain.RoomState) error {
		removed, leaderChanged = r.RemoveMember(params.MemberID)
		newLeaderID = r.LeaderID
		members = append([]domain.Member(nil), r.Members...)
		return nil
	})
	if err != nil || !removed {
		// room already torn down, nothing to do
		return
	}

	if len(members) == 0 {
		s.stopTicker(params.RoomID)
		s.roomRepo.RemoveIfEmpty(params.RoomID)
		if err := s.chatRepo.Remove(ctx, params.RoomID); err != nil {
			s.logger.WarnContext(ctx, "failed to remove chat backlog", "room_id", params.RoomID, "error", err)
		}
		return
	}

	ids := memberIDs(members)
	if leaderChanged {
		s.broadcast(ctx, ids, &Output{Type: outputLeaderChanged, Payload: map[string]any{
			"leader_id": newLeaderID,
		}})
	}
	s.broadcast(ctx, ids, &Output{Type: outputMembersUpdated, Payload: map[string]any{
		"members": members,
	}})
}
