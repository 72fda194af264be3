package room

import (
	"context"
	"fmt"

	"github.com/syncwatch/server/internal/domain"
)

type QueueAddParams struct {
	SenderID string
	RoomID   string
	Track    domain.VideoRef
}

// QueueAdd appends a track. Adding to a room with no current track starts
// playback immediately instead of parking the track in the queue; the
// auto-advance runs inside the same critical section as the append so a
// concurrent track-ended cannot observe the half-applied queue.
func (s *service) QueueAdd(ctx context.Context, params *QueueAddParams) error {
	now := s.clock.Now()
	var (
		ids     []string
		started *domain.VideoRef
		queue   []domain.VideoRef
	)
	err := s.mutate(params.RoomID, func(r *domain.RoomState) error {
		if !r.HasMember(params.SenderID) || r.InQueue(params.Track) {
			return nil
		}
		if s.cfg.QueueLimit > 0 && len(r.Queue) >= s.cfg.QueueLimit {
			return ErrQueueLimitReached
		}

		if r.CurrentTrack == nil {
			r.StartTrack(params.Track, now)
			started = r.CurrentTrack
		} else {
			r.Queue = append(r.Queue, params.Track)
		}
		queue = append([]domain.VideoRef(nil), r.Queue...)
		ids = memberIDs(r.Members)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}
	if ids == nil {
		return nil
	}

	if started != nil {
		s.broadcast(ctx, ids, &Output{Type: outputTrackChange, Payload: TrackChange{
			Track:       *started,
			CurrentTime: 0,
			ServerTs:    now.UnixMilli(),
			IsPlaying:   true,
		}})
		s.startTicker(params.RoomID)
	}
	s.broadcast(ctx, ids, &Output{Type: outputQueueUpdated, Payload: map[string]any{
		"queue": queue,
	}})

	return nil
}

type QueueRemoveParams struct {
	SenderID string
	RoomID   string
	Index    int
}

func (s *service) QueueRemove(ctx context.Context, params *QueueRemoveParams) error {
	var (
		ids   []string
		queue []domain.VideoRef
	)
	err := s.mutate(params.RoomID, func(r *domain.RoomState) error {
		if !r.HasMember(params.SenderID) {
			return nil
		}
		if _, ok := r.RemoveFromQueue(params.Index); !ok {
			return nil
		}

		queue = append([]domain.VideoRef(nil), r.Queue...)
		ids = memberIDs(r.Members)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}
	if ids == nil {
		return nil
	}

	s.broadcast(ctx, ids, &Output{Type: outputQueueUpdated, Payload: map[string]any{
		"queue": queue,
	}})

	return nil
}

type PlayFromQueueParams struct {
	SenderID string
	RoomID   string
	Index    int
}

// PlayFromQueue splices the chosen entry out of the queue and starts it,
// transferring leadership to the sender like a direct track selection.
func (s *service) PlayFromQueue(ctx context.Context, params *PlayFromQueueParams) error {
	now := s.clock.Now()
	var (
		ids           []string
		started       *domain.VideoRef
		queue         []domain.VideoRef
		leaderChanged bool
	)
	err := s.mutate(params.RoomID, func(r *domain.RoomState) error {
		if !r.HasMember(params.SenderID) {
			return nil
		}
		picked, ok := r.RemoveFromQueue(params.Index)
		if !ok {
			return nil
		}

		r.StartTrack(picked, now)
		started = r.CurrentTrack
		leaderChanged = r.LeaderID != params.SenderID
		r.LeaderID = params.SenderID
		queue = append([]domain.VideoRef(nil), r.Queue...)
		ids = memberIDs(r.Members)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to play from queue: %w", err)
	}
	if ids == nil || started == nil {
		return nil
	}

	if leaderChanged {
		s.broadcast(ctx, ids, &Output{Type: outputLeaderChanged, Payload: map[string]any{
			"leader_id": params.SenderID,
		}})
	}
	s.broadcast(ctx, ids, &Output{Type: outputTrackChange, Payload: TrackChange{
		Track:       *started,
		CurrentTime: 0,
		ServerTs:    now.UnixMilli(),
		IsPlaying:   true,
	}})
	s.broadcast(ctx, ids, &Output{Type: outputQueueUpdated, Payload: map[string]any{
		"queue": queue,
	}})
	s.startTicker(params.RoomID)

	return nil
}
