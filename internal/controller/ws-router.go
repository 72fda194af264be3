package controller

import (
	"github.com/syncwatch/server/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Use(c.wsRequestIDMw())
	mux.Use(c.wsLoggerMw())

	mux.Handle("ALIVE", wsrouter.Typed(c.handleAlive))

	// player
	mux.Handle("SELECT_TRACK", wsrouter.Typed(c.handleSelectTrack))
	mux.Handle("PAUSE", wsrouter.Typed(c.handlePause))
	mux.Handle("RESUME", wsrouter.Typed(c.handleResume))
	mux.Handle("SEEK", wsrouter.Typed(c.handleSeek))
	mux.Handle("REPORT_TIME", wsrouter.Typed(c.handleReportTime))
	mux.Handle("TRACK_ENDED", wsrouter.Typed(c.handleTrackEnded))
	mux.Handle("REQUEST_SYNC", wsrouter.Typed(c.handleRequestSync))

	// queue
	mux.Handle("QUEUE_ADD", wsrouter.Typed(c.handleQueueAdd))
	mux.Handle("QUEUE_REMOVE", wsrouter.Typed(c.handleQueueRemove))
	mux.Handle("PLAY_FROM_QUEUE", wsrouter.Typed(c.handlePlayFromQueue))

	// chat
	mux.Handle("CHAT_MESSAGE", wsrouter.Typed(c.handleChatMessage))

	return mux
}
