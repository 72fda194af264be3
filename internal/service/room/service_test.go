package room

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syncwatch/server/internal/domain"
	chatRedis "github.com/syncwatch/server/internal/repository/chat/redis"
	roomInmemory "github.com/syncwatch/server/internal/repository/room/inmemory"
)

// fakeConnRepo records everything the service sends, keyed by member id.
type fakeConnRepo struct {
	mu   sync.Mutex
	ids  map[*websocket.Conn]string
	sent map[string][]Output
}

func newFakeConnRepo() *fakeConnRepo {
	return &fakeConnRepo{
		ids:  make(map[*websocket.Conn]string),
		sent: make(map[string][]Output),
	}
}

func (f *fakeConnRepo) Add(conn *websocket.Conn, memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids[conn] = memberID
	return nil
}

func (f *fakeConnRepo) RemoveByMemberID(memberID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for conn, id := range f.ids {
		if id == memberID {
			delete(f.ids, conn)
		}
	}
	return nil
}

func (f *fakeConnRepo) GetMemberID(conn *websocket.Conn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[conn], nil
}

func (f *fakeConnRepo) Send(memberID string, msg any) error {
	out, ok := msg.(*Output)
	if !ok {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[memberID] = append(f.sent[memberID], *out)
	return nil
}

func (f *fakeConnRepo) sentTo(memberID, msgType string) []Output {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matched []Output
	for _, out := range f.sent[memberID] {
		if out.Type == msgType {
			matched = append(matched, out)
		}
	}
	return matched
}

func (f *fakeConnRepo) lastOf(memberID, msgType string) (Output, bool) {
	matched := f.sentTo(memberID, msgType)
	if len(matched) == 0 {
		return Output{}, false
	}
	return matched[len(matched)-1], true
}

func newTestService(t *testing.T) (*service, *fakeConnRepo, *clockwork.FakeClock) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	connRepo := newFakeConnRepo()
	clock := clockwork.NewFakeClock()
	svc := NewService(
		roomInmemory.NewRepo(),
		connRepo,
		chatRedis.NewRepo(rc, time.Hour),
		clock,
		slog.Default(),
		&Config{MembersLimit: 9, QueueLimit: 25},
	)

	return svc, connRepo, clock
}

func join(t *testing.T, svc *service, roomID, name string) domain.Member {
	t.Helper()

	resp, err := svc.Join(context.Background(), &JoinParams{
		Conn:        &websocket.Conn{},
		RoomID:      roomID,
		DisplayName: name,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Member.ID)
	return resp.Member
}

func track(id string) domain.VideoRef {
	return domain.VideoRef{ID: id, Title: "title " + id}
}

func TestJoinFirstMemberIsLeader(t *testing.T) {
	svc, conns, _ := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	bob := join(t, svc, "r1", "bob")

	state, ok := conns.lastOf(bob.ID, outputRoomState)
	require.True(t, ok, "joiner must receive a room state snapshot")
	snapshot := state.Payload.(Snapshot)
	assert.Equal(t, alice.ID, snapshot.LeaderID, "first joiner must be leader")
	assert.Len(t, snapshot.Members, 2)
	assert.Nil(t, snapshot.CurrentTrack)

	// both members hear about the new member list
	assert.NotEmpty(t, conns.sentTo(alice.ID, outputMembersUpdated))
	assert.NotEmpty(t, conns.sentTo(bob.ID, outputMembersUpdated))

	_, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
}

func TestLeaderHandoverOnDisconnect(t *testing.T) {
	svc, conns, _ := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	bob := join(t, svc, "r1", "bob")
	carol := join(t, svc, "r1", "carol")

	svc.Disconnect(ctx, &DisconnectParams{MemberID: alice.ID, RoomID: "r1"})

	changes := conns.sentTo(bob.ID, outputLeaderChanged)
	require.Len(t, changes, 1, "leader change must be emitted exactly once")
	payload := changes[0].Payload.(map[string]any)
	assert.Equal(t, bob.ID, payload["leader_id"], "leadership must pass to the first remaining member")

	snapshot, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, snapshot.LeaderID)
	assert.Len(t, snapshot.Members, 2)

	// a non-leader leaving must not emit another leader change
	svc.Disconnect(ctx, &DisconnectParams{MemberID: carol.ID, RoomID: "r1"})
	assert.Len(t, conns.sentTo(bob.ID, outputLeaderChanged), 1)
}

func TestRoomDestroyedWhenLastMemberLeaves(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	svc.Disconnect(ctx, &DisconnectParams{MemberID: alice.ID, RoomID: "r1"})

	_, err := svc.GetRoomSnapshot(ctx, "r1")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// handlers against the destroyed room are silent no-ops
	assert.NoError(t, svc.Pause(ctx, &PauseParams{SenderID: alice.ID, RoomID: "r1"}))
	assert.NoError(t, svc.TrackEnded(ctx, &TrackEndedParams{SenderID: alice.ID, RoomID: "r1"}))
}

func TestSelectTrackTransfersLeadership(t *testing.T) {
	svc, conns, _ := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	bob := join(t, svc, "r1", "bob")

	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{
		SenderID: bob.ID,
		RoomID:   "r1",
		Track:    track("v1"),
	}))

	change, ok := conns.lastOf(alice.ID, outputTrackChange)
	require.True(t, ok)
	tc := change.Payload.(TrackChange)
	assert.Equal(t, "v1", tc.Track.ID)
	assert.Equal(t, float64(0), tc.CurrentTime)
	assert.True(t, tc.IsPlaying)

	snapshot, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, snapshot.LeaderID, "selecting a track must transfer leadership")
	assert.Len(t, conns.sentTo(alice.ID, outputLeaderChanged), 1)
}

func TestLiveTimeAdvancesWhilePlaying(t *testing.T) {
	svc, conns, clock := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))

	clock.Advance(5 * time.Second)

	bob := join(t, svc, "r1", "bob")
	state, ok := conns.lastOf(bob.ID, outputRoomState)
	require.True(t, ok)
	snapshot := state.Payload.(Snapshot)
	assert.InDelta(t, 5.0, snapshot.BaseTime, 0.01, "late joiner must see the live position")

	change, ok := conns.lastOf(bob.ID, outputTrackChange)
	require.True(t, ok)
	assert.InDelta(t, 5.0, change.Payload.(TrackChange).CurrentTime, 0.01)

	// paused time stands still
	require.NoError(t, svc.Pause(ctx, &PauseParams{SenderID: alice.ID, RoomID: "r1"}))
	clock.Advance(10 * time.Second)
	snapshot2, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, snapshot2.BaseTime, 0.01)
	assert.False(t, snapshot2.IsPlaying)
}

func TestPauseResumeSignalsSkipSender(t *testing.T) {
	svc, conns, _ := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	bob := join(t, svc, "r1", "bob")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))

	require.NoError(t, svc.Pause(ctx, &PauseParams{SenderID: alice.ID, RoomID: "r1"}))
	assert.NotEmpty(t, conns.sentTo(bob.ID, outputPaused))
	assert.Empty(t, conns.sentTo(alice.ID, outputPaused), "the pausing member already applied the change locally")

	require.NoError(t, svc.Resume(ctx, &ResumeParams{SenderID: alice.ID, RoomID: "r1"}))
	assert.NotEmpty(t, conns.sentTo(bob.ID, outputResumed))
	assert.Empty(t, conns.sentTo(alice.ID, outputResumed))
}

func TestSeekGoesToEveryone(t *testing.T) {
	svc, conns, _ := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	bob := join(t, svc, "r1", "bob")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))

	require.NoError(t, svc.Seek(ctx, &SeekParams{SenderID: bob.ID, RoomID: "r1", Time: 120}))

	for _, member := range []domain.Member{alice, bob} {
		seeked, ok := conns.lastOf(member.ID, outputSeeked)
		require.True(t, ok)
		assert.Equal(t, float64(120), seeked.Payload.(map[string]any)["base_time"])
	}

	snapshot, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, snapshot.LeaderID, "seeking must transfer leadership")

	// negative seeks are dropped without touching state
	require.NoError(t, svc.Seek(ctx, &SeekParams{SenderID: bob.ID, RoomID: "r1", Time: -4}))
	snapshot2, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.InDelta(t, 120, snapshot2.BaseTime, 0.01)
}

func TestDriftGuard(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))

	// leave both grace windows behind
	clock.Advance(5 * time.Second)

	// small correction inside tolerance is accepted
	require.NoError(t, svc.ReportTime(ctx, &ReportTimeParams{SenderID: alice.ID, RoomID: "r1", Time: 6}))
	snapshot, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.InDelta(t, 6.0, snapshot.BaseTime, 0.01)

	// a 10 second jump is rejected, state unchanged
	require.NoError(t, svc.ReportTime(ctx, &ReportTimeParams{SenderID: alice.ID, RoomID: "r1", Time: 16}))
	snapshot, err = svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.InDelta(t, 6.0, snapshot.BaseTime, 0.01)
}

func TestDriftGuardGraceWindows(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))

	// wild report inside the new-track grace is accepted
	clock.Advance(time.Second)
	require.NoError(t, svc.ReportTime(ctx, &ReportTimeParams{SenderID: alice.ID, RoomID: "r1", Time: 95}))
	snapshot, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.InDelta(t, 95.0, snapshot.BaseTime, 0.01)

	// same wild report after a resume is accepted within the resume grace
	require.NoError(t, svc.Pause(ctx, &PauseParams{SenderID: alice.ID, RoomID: "r1"}))
	clock.Advance(10 * time.Second)
	require.NoError(t, svc.Resume(ctx, &ResumeParams{SenderID: alice.ID, RoomID: "r1"}))
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, svc.ReportTime(ctx, &ReportTimeParams{SenderID: alice.ID, RoomID: "r1", Time: 42}))
	snapshot, err = svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, snapshot.BaseTime, 0.5)
}

func TestNonLeaderReportsDropped(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	bob := join(t, svc, "r1", "bob")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))
	clock.Advance(5 * time.Second)

	require.NoError(t, svc.ReportTime(ctx, &ReportTimeParams{SenderID: bob.ID, RoomID: "r1", Time: 6}))
	snapshot, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, snapshot.BaseTime, 0.01, "non-leader reports must not move the clock")

	require.NoError(t, svc.TrackEnded(ctx, &TrackEndedParams{SenderID: bob.ID, RoomID: "r1"}))
	snapshot, err = svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "v1", snapshot.CurrentTrack.ID, "non-leader track-ended must be ignored")
	assert.True(t, snapshot.IsPlaying)
}

func TestTrackEndedAdvancesQueueOnce(t *testing.T) {
	svc, conns, clock := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))
	require.NoError(t, svc.QueueAdd(ctx, &QueueAddParams{SenderID: alice.ID, RoomID: "r1", Track: track("a")}))
	require.NoError(t, svc.QueueAdd(ctx, &QueueAddParams{SenderID: alice.ID, RoomID: "r1", Track: track("b")}))
	clock.Advance(30 * time.Second)

	// the duplicate lands right after the first signal advanced the queue
	require.NoError(t, svc.TrackEnded(ctx, &TrackEndedParams{SenderID: alice.ID, RoomID: "r1"}))
	require.NoError(t, svc.TrackEnded(ctx, &TrackEndedParams{SenderID: alice.ID, RoomID: "r1"}))

	snapshot, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, snapshot.CurrentTrack)
	assert.Equal(t, "a", snapshot.CurrentTrack.ID, "queue must advance in FIFO order")
	require.Len(t, snapshot.Queue, 1, "a duplicate track-ended must not advance twice")
	assert.Equal(t, "b", snapshot.Queue[0].ID)

	changes := conns.sentTo(alice.ID, outputTrackChange)
	require.NotEmpty(t, changes)
	assert.Equal(t, "a", changes[len(changes)-1].Payload.(TrackChange).Track.ID)

	// a later playthrough of the new track still advances
	clock.Advance(30 * time.Second)
	require.NoError(t, svc.TrackEnded(ctx, &TrackEndedParams{SenderID: alice.ID, RoomID: "r1"}))
	snapshot, err = svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "b", snapshot.CurrentTrack.ID)
	assert.Empty(t, snapshot.Queue)
}

func TestReplayAfterQueueExhaustionAdvances(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))
	clock.Advance(30 * time.Second)
	require.NoError(t, svc.TrackEnded(ctx, &TrackEndedParams{SenderID: alice.ID, RoomID: "r1"}))

	// the room rests on v1; new tracks get queued behind it
	require.NoError(t, svc.QueueAdd(ctx, &QueueAddParams{SenderID: alice.ID, RoomID: "r1", Track: track("v2")}))
	snapshot, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "v1", snapshot.CurrentTrack.ID)
	assert.False(t, snapshot.IsPlaying)

	// replaying the resting track and letting it play out must advance
	require.NoError(t, svc.Resume(ctx, &ResumeParams{SenderID: alice.ID, RoomID: "r1"}))
	clock.Advance(30 * time.Second)
	require.NoError(t, svc.TrackEnded(ctx, &TrackEndedParams{SenderID: alice.ID, RoomID: "r1"}))

	snapshot, err = svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "v2", snapshot.CurrentTrack.ID)
	assert.True(t, snapshot.IsPlaying)

	// a seek on the resting track re-arms the advance the same way
	clock.Advance(30 * time.Second)
	require.NoError(t, svc.TrackEnded(ctx, &TrackEndedParams{SenderID: alice.ID, RoomID: "r1"}))
	require.NoError(t, svc.QueueAdd(ctx, &QueueAddParams{SenderID: alice.ID, RoomID: "r1", Track: track("v3")}))
	require.NoError(t, svc.Seek(ctx, &SeekParams{SenderID: alice.ID, RoomID: "r1", Time: 10}))
	clock.Advance(30 * time.Second)
	require.NoError(t, svc.TrackEnded(ctx, &TrackEndedParams{SenderID: alice.ID, RoomID: "r1"}))

	snapshot, err = svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "v3", snapshot.CurrentTrack.ID)
}

func TestEmptyQueueStopsButKeepsTrack(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))
	clock.Advance(30 * time.Second)

	require.NoError(t, svc.TrackEnded(ctx, &TrackEndedParams{SenderID: alice.ID, RoomID: "r1"}))

	snapshot, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, snapshot.CurrentTrack, "the last track stays loaded at rest")
	assert.Equal(t, "v1", snapshot.CurrentTrack.ID)
	assert.False(t, snapshot.IsPlaying)
}

func TestQueueAddAutoPlaysIntoEmptyRoom(t *testing.T) {
	svc, conns, _ := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	require.NoError(t, svc.QueueAdd(ctx, &QueueAddParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))

	snapshot, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, snapshot.CurrentTrack)
	assert.Equal(t, "v1", snapshot.CurrentTrack.ID)
	assert.True(t, snapshot.IsPlaying)
	assert.Empty(t, snapshot.Queue)
	assert.NotEmpty(t, conns.sentTo(alice.ID, outputTrackChange))

	// duplicates of the playing track are rejected
	require.NoError(t, svc.QueueAdd(ctx, &QueueAddParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))
	snapshot, err = svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, snapshot.Queue)
}

func TestPlayFromQueue(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	bob := join(t, svc, "r1", "bob")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))
	require.NoError(t, svc.QueueAdd(ctx, &QueueAddParams{SenderID: alice.ID, RoomID: "r1", Track: track("a")}))
	require.NoError(t, svc.QueueAdd(ctx, &QueueAddParams{SenderID: alice.ID, RoomID: "r1", Track: track("b")}))

	require.NoError(t, svc.PlayFromQueue(ctx, &PlayFromQueueParams{SenderID: bob.ID, RoomID: "r1", Index: 1}))

	snapshot, err := svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, snapshot.CurrentTrack)
	assert.Equal(t, "b", snapshot.CurrentTrack.ID)
	require.Len(t, snapshot.Queue, 1)
	assert.Equal(t, "a", snapshot.Queue[0].ID)
	assert.Equal(t, bob.ID, snapshot.LeaderID)

	// out-of-range indexes are ignored
	require.NoError(t, svc.PlayFromQueue(ctx, &PlayFromQueueParams{SenderID: bob.ID, RoomID: "r1", Index: 5}))
	snapshot, err = svc.GetRoomSnapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "b", snapshot.CurrentTrack.ID)
}

func TestClockTickCarriesLiveTime(t *testing.T) {
	svc, conns, clock := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))

	// wait for the ticker goroutine to arm before moving the clock
	clock.BlockUntil(1)
	require.NoError(t, svc.ReportTime(ctx, &ReportTimeParams{SenderID: alice.ID, RoomID: "r1", Time: 42}))

	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		tick, ok := conns.lastOf(alice.ID, outputClockTick)
		if !ok {
			return false
		}
		payload := tick.Payload.(ClockTick)
		return payload.TrackID == "v1" && payload.BaseTime >= 42.9
	}, time.Second, 10*time.Millisecond)

	clock.BlockUntil(1)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool {
		tick, ok := conns.lastOf(alice.ID, outputClockTick)
		if !ok {
			return false
		}
		payload := tick.Payload.(ClockTick)
		return payload.BaseTime >= 43.9 && payload.BaseTime <= 44.1
	}, time.Second, 10*time.Millisecond)
}

func TestRequestSync(t *testing.T) {
	svc, conns, clock := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	require.NoError(t, svc.SelectTrack(ctx, &SelectTrackParams{SenderID: alice.ID, RoomID: "r1", Track: track("v1")}))
	clock.Advance(7 * time.Second)

	require.NoError(t, svc.RequestSync(ctx, &RequestSyncParams{SenderID: alice.ID, RoomID: "r1"}))

	resp, ok := conns.lastOf(alice.ID, outputSyncResponse)
	require.True(t, ok)
	sync := resp.Payload.(SyncResponse)
	require.NotNil(t, sync.CurrentTrack)
	assert.Equal(t, "v1", sync.CurrentTrack.ID)
	assert.InDelta(t, 7.0, sync.BaseTime, 0.01)
	assert.True(t, sync.IsPlaying)
}

func TestChatBacklogReplayedToJoiner(t *testing.T) {
	svc, conns, _ := newTestService(t)
	ctx := context.Background()

	alice := join(t, svc, "r1", "alice")
	require.NoError(t, svc.SendChat(ctx, &SendChatParams{SenderID: alice.ID, RoomID: "r1", Text: "hello"}))
	require.NoError(t, svc.SendChat(ctx, &SendChatParams{SenderID: alice.ID, RoomID: "r1", Text: "  "}))
	require.NoError(t, svc.SendChat(ctx, &SendChatParams{SenderID: alice.ID, RoomID: "r1", Text: "world"}))

	assert.Len(t, conns.sentTo(alice.ID, outputChatMessage), 2, "blank messages are dropped")

	bob := join(t, svc, "r1", "bob")
	backlog, ok := conns.lastOf(bob.ID, outputChatBacklog)
	require.True(t, ok, "joiner must receive the chat backlog")
	assert.NotEmpty(t, backlog.Payload.(map[string]any)["messages"])
}

func TestMembersLimit(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.cfg.MembersLimit = 2

	join(t, svc, "r1", "alice")
	join(t, svc, "r1", "bob")

	_, err := svc.Join(context.Background(), &JoinParams{
		Conn:        &websocket.Conn{},
		RoomID:      "r1",
		DisplayName: "carol",
	})
	assert.ErrorIs(t, err, ErrMembersLimitReached)
}
