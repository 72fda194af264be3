package controller

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/syncwatch/server/internal/service/room"
)

const maxDisplayNameLen = 32

// joinRoom upgrades the request to a websocket, joins the member to the room
// and serves their messages until the connection drops. Leaving the handler
// always runs the disconnect path, so leader handover and room teardown
// happen synchronously with the connection's end.
func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")
	if roomID == "" {
		c.logger.DebugContext(r.Context(), "empty room id")
		http.Error(w, "room id is required", http.StatusBadRequest)
		return
	}

	displayName := strings.TrimSpace(r.URL.Query().Get("display-name"))
	if displayName == "" {
		c.logger.DebugContext(r.Context(), "empty display name")
		http.Error(w, "display-name is required", http.StatusBadRequest)
		return
	}
	if len(displayName) > maxDisplayNameLen {
		displayName = displayName[:maxDisplayNameLen]
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	joinResponse, err := c.roomService.Join(r.Context(), &room.JoinParams{
		Conn:        conn,
		RoomID:      roomID,
		DisplayName: displayName,
	})
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to join room", "error", err)
		return
	}
	defer c.roomService.Disconnect(context.WithoutCancel(r.Context()), &room.DisconnectParams{
		MemberID: joinResponse.Member.ID,
		RoomID:   roomID,
	})

	ctx := context.WithValue(r.Context(), roomIDCtxKey, roomID)
	ctx = context.WithValue(ctx, memberIDCtxKey, joinResponse.Member.ID)

	// error replies share the connection repo's write lock with broadcasts
	reply := func(msg any) error {
		return c.conns.Send(joinResponse.Member.ID, msg)
	}
	if err := c.wsmux.ServeConn(ctx, conn, reply); err != nil {
		c.logger.DebugContext(r.Context(), "connection closed", "error", err)
	}
}
