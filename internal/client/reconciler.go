package client

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/syncwatch/server/internal/domain"
	"github.com/syncwatch/server/pkg/backoff"
)

const (
	// reportInterval is how often the leader reports its own position.
	reportInterval = 500 * time.Millisecond
	// verifyStep spaces the post-load verification polls at 300/600/900ms.
	verifyStep = 300 * time.Millisecond
	// verifyTolerance is the acceptable gap between the engine position and
	// the expected position after a load.
	verifyTolerance = 1.0
	// unmuteDelay is how long after a muted autoplay the volume comes back.
	unmuteDelay = 200 * time.Millisecond
	// tickDriftTolerance is how far a follower may drift from the broadcast
	// clock before it snaps back with a seek.
	tickDriftTolerance = 2.0
	// endedEpsilon treats positions this close to the duration as finished,
	// a fallback for engines whose ended callback never fires.
	endedEpsilon = 0.5
	// sameTrackDebounce drops repeated track-changes for the same track id
	// arriving nearly back to back.
	sameTrackDebounce = 300 * time.Millisecond
)

// iSignaler is the reconciler's outbound half of the realtime channel.
type iSignaler interface {
	ReportTime(time float64) error
	TrackEnded() error
	RequestSync() error
}

type phaseKind int

const (
	phaseIdle phaseKind = iota
	phaseLoading
	phaseVerifying
	phaseSynced
)

// phase is the reconciler's tagged state. attempt is only meaningful while
// verifying.
type phase struct {
	kind    phaseKind
	attempt int
}

type trackTarget struct {
	track      domain.VideoRef
	baseTime   float64
	serverTs   int64
	playing    bool
	receivedAt time.Time
}

// Reconciler drives a local playback engine to match the room's shared
// timeline. All state lives on the Run goroutine; the outside world talks to
// it only through Dispatch.
type Reconciler struct {
	engine   PlaybackEngine
	signaler iSignaler
	clock    clockwork.Clock
	logger   *slog.Logger
	verify   backoff.Schedule

	events chan any

	phase          phase
	engineReady    bool
	pendingTrack   *trackTarget
	currentTrackID string
	shouldPlay     bool
	endedSignaled  bool

	memberID string
	leaderID string

	expectedStart float64
	loadIssuedAt  time.Time
	lastAppliedID string
	lastAppliedAt time.Time
}

func NewReconciler(engine PlaybackEngine, signaler iSignaler, clock clockwork.Clock, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		engine:   engine,
		signaler: signaler,
		clock:    clock,
		logger:   logger,
		verify:   backoff.Linear(3, verifyStep),
		events:   make(chan any, 64),
	}
}

// Dispatch feeds an event into the reconciliation loop. Safe for concurrent
// use; the loop itself is single threaded.
func (r *Reconciler) Dispatch(event any) {
	r.events <- event
}

// Run processes events until the context ends. The leader's periodic time
// report and the end-of-track fallback poll share one ticker.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-r.events:
			r.handle(ctx, event)
		case <-ticker.Chan():
			r.onReportTick(ctx)
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, event any) {
	switch ev := event.(type) {
	case JoinedEvent:
		r.memberID = ev.MemberID
	case EngineReadyEvent:
		r.engineReady = true
		if r.pendingTrack != nil {
			target := *r.pendingTrack
			r.pendingTrack = nil
			r.applyTrack(ctx, target)
		}
	case RoomStateEvent:
		r.leaderID = ev.LeaderID
		if ev.CurrentTrack != nil {
			r.applyOrBuffer(ctx, trackTarget{
				track:      *ev.CurrentTrack,
				baseTime:   ev.BaseTime,
				serverTs:   ev.ServerTs,
				playing:    ev.IsPlaying,
				receivedAt: r.clock.Now(),
			})
		}
	case TrackChangeEvent:
		r.applyOrBuffer(ctx, trackTarget{
			track:      ev.Track,
			baseTime:   ev.CurrentTime,
			serverTs:   ev.ServerTs,
			playing:    ev.IsPlaying,
			receivedAt: r.clock.Now(),
		})
	case SyncResponseEvent:
		if ev.CurrentTrack != nil {
			r.applyOrBuffer(ctx, trackTarget{
				track:      *ev.CurrentTrack,
				baseTime:   ev.BaseTime,
				serverTs:   ev.ServerTs,
				playing:    ev.IsPlaying,
				receivedAt: r.clock.Now(),
			})
		}
	case PausedEvent:
		r.shouldPlay = false
		if r.engineReady {
			if err := r.engine.Pause(); err != nil {
				r.logger.DebugContext(ctx, "failed to pause engine", "error", err)
			}
		}
	case ResumedEvent:
		r.shouldPlay = true
		if r.engineReady {
			r.play(ctx)
		}
	case SeekedEvent:
		r.shouldPlay = ev.IsPlaying
		if !r.engineReady || r.currentTrackID == "" {
			return
		}
		target := ev.BaseTime
		if err := r.engine.SeekTo(target); err != nil {
			r.logger.DebugContext(ctx, "failed to seek engine", "error", err)
		}
		if ev.IsPlaying {
			r.play(ctx)
		}
	case ClockTickEvent:
		r.onClockTick(ctx, ev)
	case LeaderChangedEvent:
		r.leaderID = ev.LeaderID
	case EngineStateChangedEvent:
		r.onEngineStateChanged(ctx, ev.State)
	case ForegroundEvent:
		r.onForeground(ctx)
	case verifyPollEvent:
		r.onVerifyPoll(ctx, ev.attempt)
	case unmuteEvent:
		if r.engine.Volume() > 0 {
			r.engine.Unmute()
		}
	}
}

func (r *Reconciler) isLeader() bool {
	return r.memberID != "" && r.memberID == r.leaderID
}

func (r *Reconciler) applyOrBuffer(ctx context.Context, target trackTarget) {
	if !r.engineReady {
		r.pendingTrack = &target
		return
	}

	r.applyTrack(ctx, target)
}

// applyTrack is the load decision. The engine reloads only when the track id
// differs, the engine already ran out, or no sync happened yet; anything else
// is a play/pause update on the already-correct track.
func (r *Reconciler) applyTrack(ctx context.Context, target trackTarget) {
	now := r.clock.Now()
	if target.track.ID == r.lastAppliedID && now.Sub(r.lastAppliedAt) < sameTrackDebounce {
		return
	}
	r.lastAppliedID = target.track.ID
	r.lastAppliedAt = now

	r.shouldPlay = target.playing

	needLoad := target.track.ID != r.currentTrackID ||
		r.engine.State() == EngineEnded ||
		r.phase.kind == phaseIdle
	if !needLoad {
		if target.playing {
			r.play(ctx)
		} else if err := r.engine.Pause(); err != nil {
			r.logger.DebugContext(ctx, "failed to pause engine", "error", err)
		}
		return
	}

	start := target.baseTime
	if target.playing {
		start += math.Max(0, now.Sub(target.receivedAt).Seconds())
	}

	r.currentTrackID = target.track.ID
	r.endedSignaled = false
	r.expectedStart = start
	r.loadIssuedAt = now

	if err := r.engine.Load(target.track.ID, start); err != nil {
		r.logger.DebugContext(ctx, "failed to load track", "track_id", target.track.ID, "error", err)
	}
	r.phase = phase{kind: phaseLoading}

	if target.playing {
		r.play(ctx)
	}

	r.phase = phase{kind: phaseVerifying, attempt: 1}
	r.scheduleVerify(1)
}

func (r *Reconciler) scheduleVerify(attempt int) {
	delay := r.verify.Delay(attempt)
	r.clock.AfterFunc(delay, func() {
		r.Dispatch(verifyPollEvent{attempt: attempt})
	})
}

// onVerifyPoll checks the engine settled near the expected position and
// reissues a seek when it did not. Bounded: after the last attempt the
// reconciler accepts whatever position the engine landed on.
func (r *Reconciler) onVerifyPoll(ctx context.Context, attempt int) {
	if r.phase.kind != phaseVerifying || r.phase.attempt != attempt {
		// stale timer from an earlier load
		return
	}

	expected := r.expectedStart
	if r.shouldPlay {
		expected += math.Max(0, r.clock.Now().Sub(r.loadIssuedAt).Seconds())
	}

	diff := math.Abs(r.engine.CurrentTime() - expected)
	if diff <= verifyTolerance {
		r.phase = phase{kind: phaseSynced}
		return
	}

	if err := r.engine.SeekTo(expected); err != nil {
		r.logger.DebugContext(ctx, "failed to seek engine", "error", err)
	}

	if attempt >= r.verify.MaxAttempts {
		r.phase = phase{kind: phaseSynced}
		return
	}

	r.phase = phase{kind: phaseVerifying, attempt: attempt + 1}
	r.scheduleVerify(attempt + 1)
}

// play starts playback muted and restores the volume shortly after, working
// around platforms that block unmuted autoplay. Engines already at volume
// zero stay silent.
func (r *Reconciler) play(ctx context.Context) {
	needUnmute := !r.engine.IsMuted() && r.engine.Volume() > 0
	if needUnmute {
		r.engine.Mute()
		r.clock.AfterFunc(unmuteDelay, func() {
			r.Dispatch(unmuteEvent{})
		})
	}

	if err := r.engine.Play(); err != nil {
		r.logger.DebugContext(ctx, "failed to play, retrying with cue", "error", err)
		// cue-then-play fallback for transient engine failures
		if err := r.engine.Load(r.currentTrackID, r.expectedStart); err != nil {
			r.logger.DebugContext(ctx, "failed to cue track", "error", err)
			return
		}
		if err := r.engine.Play(); err != nil {
			r.logger.DebugContext(ctx, "failed to play after cue", "error", err)
		}
	}
}

func (r *Reconciler) onClockTick(ctx context.Context, tick ClockTickEvent) {
	if !r.engineReady || r.phase.kind != phaseSynced {
		return
	}

	// the room moved on to a track this client never heard about, likely a
	// missed broadcast
	if tick.TrackID != "" && tick.TrackID != r.currentTrackID {
		if err := r.signaler.RequestSync(); err != nil {
			r.logger.DebugContext(ctx, "failed to request sync", "error", err)
		}
		return
	}

	// the leader's own position is the authority, it never snaps to it
	if r.isLeader() || !tick.IsPlaying {
		return
	}

	if math.Abs(r.engine.CurrentTime()-tick.BaseTime) > tickDriftTolerance {
		if err := r.engine.SeekTo(tick.BaseTime); err != nil {
			r.logger.DebugContext(ctx, "failed to seek engine", "error", err)
		}
	}
}

func (r *Reconciler) onEngineStateChanged(ctx context.Context, state EngineState) {
	switch state {
	case EnginePlaying:
		// a replayed track can end again
		r.endedSignaled = false
	case EngineEnded:
		r.maybeSignalTrackEnded(ctx)
	}
}

// onForeground resumes playback if the platform auto-paused the engine while
// the view was hidden. Hidden views change nothing.
func (r *Reconciler) onForeground(ctx context.Context) {
	if !r.engineReady || r.currentTrackID == "" {
		return
	}

	engineState := r.engine.State()
	if r.shouldPlay && engineState != EnginePlaying {
		r.play(ctx)
	} else if !r.shouldPlay && engineState == EnginePlaying {
		if err := r.engine.Pause(); err != nil {
			r.logger.DebugContext(ctx, "failed to pause engine", "error", err)
		}
	}
}

// onReportTick does the leader's periodic time report and the redundant
// end-of-track poll for engines whose ended callback fails to fire.
func (r *Reconciler) onReportTick(ctx context.Context) {
	if !r.engineReady || r.currentTrackID == "" {
		return
	}

	if r.shouldPlay {
		duration := r.engine.Duration()
		if duration > 0 && r.engine.CurrentTime() >= duration-endedEpsilon {
			r.maybeSignalTrackEnded(ctx)
		}
	}

	if r.isLeader() && r.phase.kind == phaseSynced && r.shouldPlay {
		if err := r.signaler.ReportTime(r.engine.CurrentTime()); err != nil {
			r.logger.DebugContext(ctx, "failed to report time", "error", err)
		}
	}
}

// maybeSignalTrackEnded signals at most once per track and only from the
// leader.
func (r *Reconciler) maybeSignalTrackEnded(ctx context.Context) {
	if r.endedSignaled || !r.isLeader() {
		return
	}

	r.endedSignaled = true
	if err := r.signaler.TrackEnded(); err != nil {
		r.logger.DebugContext(ctx, "failed to signal track ended", "error", err)
	}
}
