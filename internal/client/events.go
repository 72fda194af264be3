package client

import (
	"github.com/syncwatch/server/internal/domain"
)

// Server-to-client payloads, decoded from the realtime channel.

type JoinedEvent struct {
	MemberID string `json:"member_id"`
}

type RoomStateEvent struct {
	CurrentTrack *domain.VideoRef  `json:"current_track"`
	BaseTime     float64           `json:"base_time"`
	ServerTs     int64             `json:"server_ts"`
	IsPlaying    bool              `json:"is_playing"`
	Queue        []domain.VideoRef `json:"queue"`
	Members      []domain.Member   `json:"members"`
	LeaderID     string            `json:"leader_id"`
}

type TrackChangeEvent struct {
	Track       domain.VideoRef `json:"track"`
	CurrentTime float64         `json:"current_time"`
	ServerTs    int64           `json:"server_ts"`
	IsPlaying   bool            `json:"is_playing"`
}

type PausedEvent struct {
	BaseTime float64 `json:"base_time"`
	ServerTs int64   `json:"server_ts"`
}

type ResumedEvent struct {
	BaseTime float64 `json:"base_time"`
	ServerTs int64   `json:"server_ts"`
}

type SeekedEvent struct {
	BaseTime  float64 `json:"base_time"`
	ServerTs  int64   `json:"server_ts"`
	IsPlaying bool    `json:"is_playing"`
}

type ClockTickEvent struct {
	BaseTime  float64 `json:"base_time"`
	ServerTs  int64   `json:"server_ts"`
	IsPlaying bool    `json:"is_playing"`
	TrackID   string  `json:"track_id"`
}

type LeaderChangedEvent struct {
	LeaderID string `json:"leader_id"`
}

type SyncResponseEvent struct {
	CurrentTrack *domain.VideoRef `json:"current_track"`
	BaseTime     float64          `json:"base_time"`
	ServerTs     int64            `json:"server_ts"`
	IsPlaying    bool             `json:"is_playing"`
}

// Local events fed into the same loop so reconciliation stays single
// threaded.

// EngineReadyEvent marks the local engine as usable; a buffered pending
// track is applied at this point.
type EngineReadyEvent struct{}

// EngineStateChangedEvent carries the engine's own state callbacks.
type EngineStateChangedEvent struct {
	State EngineState
}

// ForegroundEvent fires when the host view returns from the background.
type ForegroundEvent struct{}

type verifyPollEvent struct {
	attempt int
}

type unmuteEvent struct{}
