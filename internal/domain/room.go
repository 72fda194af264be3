package domain

import (
	"time"
)

type Member struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// RoomState is the authoritative per-room playback model. StoredTime is the
// elapsed position as of LastUpdatedAt; the live position is always derived
// with LiveTime, never stored.
type RoomState struct {
	RoomID        string
	CurrentTrack  *VideoRef
	StoredTime    float64
	Playing       bool
	LastUpdatedAt time.Time
	Queue         []VideoRef
	Members       []Member
	LeaderID      string

	// TrackStartedAt backs the drift guard's new-track grace window.
	TrackStartedAt time.Time
	// ResumedAt backs the drift guard's just-resumed grace window. It cannot
	// reuse LastUpdatedAt because accepted time reports refresh that field.
	ResumedAt time.Time
	// EndedMarked is set once a track-ended signal was accepted for the
	// current track. It keeps the resting track after queue exhaustion from
	// advancing again; Resume and Seek clear it so a replay can end.
	EndedMarked bool
}

func NewRoomState(roomID string, now time.Time) *RoomState {
	return &RoomState{
		RoomID:        roomID,
		LastUpdatedAt: now,
	}
}

// LiveTime derives the playback position at the given instant. Pure and
// total: monotonically non-decreasing in now while playing, constant while
// paused.
func LiveTime(r *RoomState, now time.Time) float64 {
	if r == nil {
		return 0
	}
	if !r.Playing {
		return r.StoredTime
	}

	elapsed := now.Sub(r.LastUpdatedAt).Seconds()
	return r.StoredTime + max(0, elapsed)
}

// StartTrack makes the given track current and starts it from zero.
func (r *RoomState) StartTrack(track VideoRef, now time.Time) {
	r.CurrentTrack = &track
	r.StoredTime = 0
	r.Playing = true
	r.LastUpdatedAt = now
	r.TrackStartedAt = now
	r.ResumedAt = now
	r.EndedMarked = false
}

// AdvanceQueue pops the queue head into the current track slot. Returns nil
// when the queue is empty; in that case playback stops but the last track
// stays loaded.
func (r *RoomState) AdvanceQueue(now time.Time) *VideoRef {
	if len(r.Queue) == 0 {
		r.StoredTime = LiveTime(r, now)
		r.Playing = false
		r.LastUpdatedAt = now
		return nil
	}

	next := r.Queue[0]
	r.Queue = r.Queue[1:]
	r.StartTrack(next, now)
	return &next
}

func (r *RoomState) RemoveFromQueue(index int) (VideoRef, bool) {
	if index < 0 || index >= len(r.Queue) {
		return VideoRef{}, false
	}

	removed := r.Queue[index]
	r.Queue = append(r.Queue[:index], r.Queue[index+1:]...)
	return removed, true
}

// InQueue reports whether a track with the same id is already queued or
// currently playing.
func (r *RoomState) InQueue(track VideoRef) bool {
	if r.CurrentTrack != nil && r.CurrentTrack.Equal(track) {
		return true
	}
	for _, queued := range r.Queue {
		if queued.Equal(track) {
			return true
		}
	}

	return false
}

func (r *RoomState) AddMember(member Member) {
	r.Members = append(r.Members, member)
	if r.LeaderID == "" {
		r.LeaderID = member.ID
	}
}

// RemoveMember drops the member and reassigns leadership to the first
// remaining member when the leader left. The second result reports whether
// leadership changed.
func (r *RoomState) RemoveMember(memberID string) (removed bool, leaderChanged bool) {
	for i, member := range r.Members {
		if member.ID != memberID {
			continue
		}

		r.Members = append(r.Members[:i], r.Members[i+1:]...)
		if r.LeaderID == memberID {
			r.LeaderID = ""
			if len(r.Members) > 0 {
				r.LeaderID = r.Members[0].ID
			}
			leaderChanged = true
		}
		return true, leaderChanged
	}

	return false, false
}

func (r *RoomState) HasMember(memberID string) bool {
	for _, member := range r.Members {
		if member.ID == memberID {
			return true
		}
	}

	return false
}
