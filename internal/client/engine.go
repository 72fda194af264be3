package client

// EngineState mirrors the lifecycle of an embedded playback engine.
type EngineState int

const (
	EngineUnstarted EngineState = iota
	EnginePlaying
	EnginePaused
	EngineBuffering
	EngineCued
	EngineEnded
)

func (s EngineState) String() string {
	switch s {
	case EnginePlaying:
		return "playing"
	case EnginePaused:
		return "paused"
	case EngineBuffering:
		return "buffering"
	case EngineCued:
		return "cued"
	case EngineEnded:
		return "ended"
	default:
		return "unstarted"
	}
}

// PlaybackEngine is the local player the reconciler drives. Implementations
// wrap whatever embedded player the host UI provides; all calls come from the
// reconciler's own goroutine.
type PlaybackEngine interface {
	Load(trackID string, startSeconds float64) error
	Play() error
	Pause() error
	SeekTo(seconds float64) error
	CurrentTime() float64
	Duration() float64
	State() EngineState
	LoadedTrackID() string
	Mute()
	Unmute()
	IsMuted() bool
	Volume() int
}
