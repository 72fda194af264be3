package controller

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/syncwatch/server/internal/domain"
	"github.com/syncwatch/server/internal/service/room"
	"github.com/syncwatch/server/pkg/randstr"
	"github.com/syncwatch/server/pkg/validator"
	"github.com/syncwatch/server/pkg/wsrouter"
)

type iRoomService interface {
	Join(context.Context, *room.JoinParams) (room.JoinResponse, error)
	Disconnect(context.Context, *room.DisconnectParams)
	SelectTrack(context.Context, *room.SelectTrackParams) error
	Pause(context.Context, *room.PauseParams) error
	Resume(context.Context, *room.ResumeParams) error
	Seek(context.Context, *room.SeekParams) error
	ReportTime(context.Context, *room.ReportTimeParams) error
	TrackEnded(context.Context, *room.TrackEndedParams) error
	QueueAdd(context.Context, *room.QueueAddParams) error
	QueueRemove(context.Context, *room.QueueRemoveParams) error
	PlayFromQueue(context.Context, *room.PlayFromQueueParams) error
	RequestSync(context.Context, *room.RequestSyncParams) error
	SendChat(context.Context, *room.SendChatParams) error
	GetRoomSnapshot(ctx context.Context, roomID string) (room.Snapshot, error)
}

type iSearchService interface {
	Search(ctx context.Context, query string) []domain.VideoRef
}

// iConnSender owns the per-connection write lock shared with the room
// service's broadcasts; every write to a member's connection goes through it.
type iConnSender interface {
	Send(memberID string, msg any) error
}

type controller struct {
	roomService   iRoomService
	searchService iSearchService
	conns         iConnSender
	upgrader      websocket.Upgrader
	validate      *validator.Validator
	logger        *slog.Logger
	randstr       *randstr.Generator
	wsmux         *wsrouter.WSRouter
}

func NewController(roomService iRoomService, searchService iSearchService, conns iConnSender, logger *slog.Logger) *controller {
	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService:   roomService,
		searchService: searchService,
		conns:         conns,
		validate:      validator.NewValidator(),
		logger:        logger,
		randstr:       randstr.New([]byte("abcdefghijklmnopqrstuvwxyz0123456789")),
	}
	c.wsmux = c.getWSRouter()

	return c
}

func (c controller) generateTimeBasedID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), c.randstr.GenerateRandomString(8))
}
