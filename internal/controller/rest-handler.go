package controller

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/syncwatch/server/internal/service/room"
	"github.com/syncwatch/server/pkg/rest"
)

func (c controller) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"error": "query is required"})
		return
	}

	results := c.searchService.Search(r.Context(), query)
	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"results": results})
}

func (c controller) getRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	snapshot, err := c.roomService.GetRoomSnapshot(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": "room not found"})
			return
		}

		c.logger.WarnContext(r.Context(), "failed to get room snapshot", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": "internal error"})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"room": snapshot})
}
