package room

import (
	"github.com/syncwatch/server/internal/domain"
	"github.com/syncwatch/server/internal/repository/chat"
)

// Output is the envelope for every server-to-client message.
type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Snapshot is the full room state sent to a joiner. BaseTime is the live
// playback position at ServerTs; consumers re-derive live time against their
// own receipt instant instead of trusting synchronized clocks.
type Snapshot struct {
	CurrentTrack *domain.VideoRef  `json:"current_track"`
	BaseTime     float64           `json:"base_time"`
	ServerTs     int64             `json:"server_ts"`
	IsPlaying    bool              `json:"is_playing"`
	Queue        []domain.VideoRef `json:"queue"`
	Members      []domain.Member   `json:"members"`
	LeaderID     string            `json:"leader_id"`
}

type TrackChange struct {
	Track       domain.VideoRef `json:"track"`
	CurrentTime float64         `json:"current_time"`
	ServerTs    int64           `json:"server_ts"`
	IsPlaying   bool            `json:"is_playing"`
}

type ClockTick struct {
	BaseTime  float64 `json:"base_time"`
	ServerTs  int64   `json:"server_ts"`
	IsPlaying bool    `json:"is_playing"`
	TrackID   string  `json:"track_id"`
}

type SyncResponse struct {
	CurrentTrack *domain.VideoRef `json:"current_track"`
	BaseTime     float64          `json:"base_time"`
	ServerTs     int64            `json:"server_ts"`
	IsPlaying    bool             `json:"is_playing"`
}

const (
	outputJoined         = "JOINED"
	outputRoomState      = "ROOM_STATE"
	outputTrackChange    = "TRACK_CHANGE"
	outputPaused         = "PAUSED"
	outputResumed        = "RESUMED"
	outputSeeked         = "SEEKED"
	outputClockTick      = "CLOCK_TICK"
	outputQueueUpdated   = "QUEUE_UPDATED"
	outputMembersUpdated = "MEMBERS_UPDATED"
	outputLeaderChanged  = "LEADER_CHANGED"
	outputSyncResponse   = "SYNC_RESPONSE"
	outputChatBacklog    = "CHAT_BACKLOG"
	outputChatMessage    = "CHAT_MESSAGE"
)

func snapshotOf(r *domain.RoomState, nowMs int64, live float64) Snapshot {
	return Snapshot{
		CurrentTrack: r.CurrentTrack,
		BaseTime:     live,
		ServerTs:     nowMs,
		IsPlaying:    r.Playing,
		Queue:        append([]domain.VideoRef(nil), r.Queue...),
		Members:      append([]domain.Member(nil), r.Members...),
		LeaderID:     r.LeaderID,
	}
}

func chatBacklogPayload(messages []chat.Message) map[string]any {
	return map[string]any{"messages": messages}
}
