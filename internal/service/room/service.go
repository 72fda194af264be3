package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/syncwatch/server/internal/domain"
	"github.com/syncwatch/server/internal/repository/chat"
	roomrepo "github.com/syncwatch/server/internal/repository/room"
)

var (
	ErrMembersLimitReached = errors.New("members limit reached")
	ErrQueueLimitReached   = errors.New("queue limit reached")
	ErrRoomNotFound        = errors.New("room not found")
)

type iRoomRepo interface {
	UpdateOrCreate(roomID string, now time.Time, fn func(*domain.RoomState) error) error
	Update(roomID string, fn func(*domain.RoomState) error) error
	View(roomID string, fn func(*domain.RoomState) error) error
	RemoveIfEmpty(roomID string) bool
}

type iConnRepo interface {
	Add(conn *websocket.Conn, memberID string) error
	RemoveByMemberID(memberID string) error
	GetMemberID(conn *websocket.Conn) (string, error)
	Send(memberID string, msg any) error
}

type iChatRepo interface {
	AddMessage(ctx context.Context, roomID string, msg *chat.Message) error
	GetRecent(ctx context.Context, roomID string, limit int) ([]chat.Message, error)
	Remove(ctx context.Context, roomID string) error
}

type Config struct {
	MembersLimit int
	QueueLimit   int
	TickInterval time.Duration
	// ChatBacklogSent is how many stored messages are replayed to a joiner.
	ChatBacklogSent int
}

type service struct {
	roomRepo iRoomRepo
	connRepo iConnRepo
	chatRepo iChatRepo
	clock    clockwork.Clock
	logger   *slog.Logger
	cfg      *Config

	tickersMu sync.Mutex
	tickers   map[string]chan struct{}
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, chatRepo iChatRepo, clock clockwork.Clock, logger *slog.Logger, cfg *Config) *service {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.ChatBacklogSent <= 0 {
		cfg.ChatBacklogSent = 50
	}

	return &service{
		roomRepo: roomRepo,
		connRepo: connRepo,
		chatRepo: chatRepo,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
		tickers:  make(map[string]chan struct{}),
	}
}

func memberIDs(members []domain.Member) []string {
	ids := make([]string, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.ID)
	}

	return ids
}

func (s *service) nowMs() int64 {
	return s.clock.Now().UnixMilli()
}

// mutate runs fn against the room state. A missing room is a silent no-op;
// rooms are ephemeral and handler/teardown races are expected.
func (s *service) mutate(roomID string, fn func(*domain.RoomState) error) error {
	err := s.roomRepo.Update(roomID, fn)
	if errors.Is(err, roomrepo.ErrRoomNotFound) {
		return nil
	}

	return err
}

func (s *service) inspect(roomID string, fn func(*domain.RoomState) error) error {
	err := s.roomRepo.View(roomID, fn)
	if errors.Is(err, roomrepo.ErrRoomNotFound) {
		return nil
	}

	return err
}
