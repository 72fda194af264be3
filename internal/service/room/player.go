package room

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/syncwatch/server/internal/domain"
)

const (
	// driftTolerance is how far a leader's report may stray from the derived
	// live time before it is dropped.
	driftTolerance = 2.0
	// newTrackGrace accepts any report shortly after a track starts, while
	// the leader's engine is still settling on the new position.
	newTrackGrace = 3 * time.Second
	// resumeGrace accepts any report shortly after resume.
	resumeGrace = time.Second
)

type SelectTrackParams struct {
	SenderID string
	RoomID   string
	Track    domain.VideoRef
}

// SelectTrack starts the given track from zero and transfers leadership to
// the sender.
func (s *service) SelectTrack(ctx context.Context, params *SelectTrackParams) error {
	now := s.clock.Now()
	var (
		ids           []string
		leaderChanged bool
	)
	err := s.mutate(params.RoomID, func(r *domain.RoomState) error {
		if !r.HasMember(params.SenderID) {
			return nil
		}

		r.StartTrack(params.Track, now)
		leaderChanged = r.LeaderID != params.SenderID
		r.LeaderID = params.SenderID
		ids = memberIDs(r.Members)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to select track: %w", err)
	}
	if ids == nil {
		return nil
	}

	if leaderChanged {
		s.broadcast(ctx, ids, &Output{Type: outputLeaderChanged, Payload: map[string]any{
			"leader_id": params.SenderID,
		}})
	}
	s.broadcast(ctx, ids, &Output{Type: outputTrackChange, Payload: TrackChange{
		Track:       params.Track,
		CurrentTime: 0,
		ServerTs:    now.UnixMilli(),
		IsPlaying:   true,
	}})
	s.startTicker(params.RoomID)

	return nil
}

type PauseParams struct {
	SenderID string
	RoomID   string
}

func (s *service) Pause(ctx context.Context, params *PauseParams) error {
	now := s.clock.Now()
	var (
		ids  []string
		live float64
	)
	err := s.mutate(params.RoomID, func(r *domain.RoomState) error {
		if r.CurrentTrack == nil || !r.HasMember(params.SenderID) {
			return nil
		}

		live = domain.LiveTime(r, now)
		r.StoredTime = live
		r.Playing = false
		r.LastUpdatedAt = now
		ids = memberIDs(r.Members)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}
	if ids == nil {
		return nil
	}

	s.stopTicker(params.RoomID)
	s.broadcastExcept(ctx, ids, params.SenderID, &Output{Type: outputPaused, Payload: map[string]any{
		"base_time": live,
		"server_ts": now.UnixMilli(),
	}})

	return nil
}

type ResumeParams struct {
	SenderID string
	RoomID   string
}

func (s *service) Resume(ctx context.Context, params *ResumeParams) error {
	now := s.clock.Now()
	var (
		ids  []string
		base float64
	)
	err := s.mutate(params.RoomID, func(r *domain.RoomState) error {
		if r.CurrentTrack == nil || !r.HasMember(params.SenderID) {
			return nil
		}

		base = r.StoredTime
		r.Playing = true
		r.LastUpdatedAt = now
		r.ResumedAt = now
		// a replayed resting track can end again
		r.EndedMarked = false
		ids = memberIDs(r.Members)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}
	if ids == nil {
		return nil
	}

	s.broadcastExcept(ctx, ids, params.SenderID, &Output{Type: outputResumed, Payload: map[string]any{
		"base_time": base,
		"server_ts": now.UnixMilli(),
	}})
	s.startTicker(params.RoomID)

	return nil
}

type SeekParams struct {
	SenderID string
	RoomID   string
	Time     float64
}

// Seek moves the shared position and transfers leadership to the sender. The
// new time goes to everyone, the sender included, so all engines converge on
// the same instant.
func (s *service) Seek(ctx context.Context, params *SeekParams) error {
	if math.IsNaN(params.Time) || params.Time < 0 {
		s.logger.DebugContext(ctx, "dropping invalid seek", "member_id", params.SenderID, "time", params.Time)
		return nil
	}

	now := s.clock.Now()
	var (
		ids           []string
		playing       bool
		leaderChanged bool
	)
	err := s.mutate(params.RoomID, func(r *domain.RoomState) error {
		if r.CurrentTrack == nil || !r.HasMember(params.SenderID) {
			return nil
		}

		r.StoredTime = params.Time
		r.LastUpdatedAt = now
		r.EndedMarked = false
		leaderChanged = r.LeaderID != params.SenderID
		r.LeaderID = params.SenderID
		playing = r.Playing
		ids = memberIDs(r.Members)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	if ids == nil {
		return nil
	}

	if leaderChanged {
		s.broadcast(ctx, ids, &Output{Type: outputLeaderChanged, Payload: map[string]any{
			"leader_id": params.SenderID,
		}})
	}
	s.broadcast(ctx, ids, &Output{Type: outputSeeked, Payload: map[string]any{
		"base_time":  params.Time,
		"server_ts":  now.UnixMilli(),
		"is_playing": playing,
	}})

	return nil
}

type ReportTimeParams struct {
	SenderID string
	RoomID   string
	Time     float64
}

// ReportTime folds the leader's observed position into the room clock. Non
// leader reports and out-of-tolerance jumps are dropped; the next tick
// carries the accepted baseline forward, so no broadcast happens here.
func (s *service) ReportTime(ctx context.Context, params *ReportTimeParams) error {
	if math.IsNaN(params.Time) || params.Time < 0 {
		s.logger.DebugContext(ctx, "dropping invalid time report", "member_id", params.SenderID, "time", params.Time)
		return nil
	}

	now := s.clock.Now()
	err := s.mutate(params.RoomID, func(r *domain.RoomState) error {
		if r.LeaderID != params.SenderID || r.CurrentTrack == nil {
			return nil
		}

		inGrace := now.Sub(r.TrackStartedAt) < newTrackGrace ||
			now.Sub(r.ResumedAt) < resumeGrace
		if !inGrace {
			live := domain.LiveTime(r, now)
			if diff := math.Abs(params.Time - live); diff > driftTolerance && live > 1 {
				s.logger.DebugContext(ctx, "dropping drifted time report",
					"room_id", params.RoomID,
					"reported", params.Time,
					"live", live,
				)
				return nil
			}
		}

		r.StoredTime = params.Time
		r.LastUpdatedAt = now

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to report time: %w", err)
	}

	return nil
}

type TrackEndedParams struct {
	SenderID string
	RoomID   string
}

// TrackEnded advances the queue. Only the leader may signal it and only once
// per track; the played-out room keeps its last track loaded at rest.
func (s *service) TrackEnded(ctx context.Context, params *TrackEndedParams) error {
	now := s.clock.Now()
	var (
		ids   []string
		next  *domain.VideoRef
		queue []domain.VideoRef
	)
	err := s.mutate(params.RoomID, func(r *domain.RoomState) error {
		if r.LeaderID != params.SenderID || r.CurrentTrack == nil || r.EndedMarked {
			return nil
		}

		// StartTrack clears EndedMarked when the queue advances, so the mark
		// alone cannot catch a duplicate signal arriving right behind the
		// first one. Nothing ends a real playthrough this early into a track.
		if now.Sub(r.TrackStartedAt) < newTrackGrace {
			return nil
		}

		r.EndedMarked = true
		next = r.AdvanceQueue(now)
		queue = append([]domain.VideoRef(nil), r.Queue...)
		ids = memberIDs(r.Members)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to advance track: %w", err)
	}
	if ids == nil {
		return nil
	}

	if next == nil {
		s.stopTicker(params.RoomID)
		return nil
	}

	s.broadcast(ctx, ids, &Output{Type: outputTrackChange, Payload: TrackChange{
		Track:       *next,
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

type RequestSyncParams struct {
	SenderID string
	RoomID   string
}

// RequestSync answers only the asking member with the live position.
func (s *service) RequestSync(ctx context.Context, params *RequestSyncParams) error {
	now := s.clock.Now()
	var resp *SyncResponse
	err := s.inspect(params.RoomID, func(r *domain.RoomState) error {
		resp = &SyncResponse{
			CurrentTrack: r.CurrentTrack,
			BaseTime:     domain.LiveTime(r, now),
			ServerTs:     now.UnixMilli(),
			IsPlaying:    r.Playing,
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	if resp == nil {
		return nil
	}

	s.sendToMember(ctx, params.SenderID, &Output{Type: outputSyncResponse, Payload: *resp})

	return nil
}

// GetRoomSnapshot exposes the live room view to the REST surface.
func (s *service) GetRoomSnapshot(ctx context.Context, roomID string) (Snapshot, error) {
	now := s.clock.Now()
	var snapshot Snapshot
	err := s.roomRepo.View(roomID, func(r *domain.RoomState) error {
		snapshot = snapshotOf(r, now.UnixMilli(), domain.LiveTime(r, now))
		return nil
	})
	if err != nil {
		return Snapshot{}, ErrRoomNotFound
	}

	return snapshot, nil
}
