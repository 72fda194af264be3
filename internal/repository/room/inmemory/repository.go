package inmemory

import (
	"sync"
	"time"

	"github.com/syncwatch/server/internal/domain"
	"github.com/syncwatch/server/internal/repository/room"
)

// repo is the in-memory room registry. Every mutation of a room state runs
// inside that room's own lock, so handlers for the same room are serialized
// while rooms stay independent of each other.
type repo struct {
	mu    sync.RWMutex
	rooms map[string]*entry
}

type entry struct {
	mu      sync.Mutex
	state   *domain.RoomState
	removed bool
}

func NewRepo() *repo {
	return &repo{rooms: make(map[string]*entry)}
}

func (r *repo) getEntry(roomID string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.rooms[roomID]
}

// UpdateOrCreate runs fn against the room state, creating the room first if
// it does not exist. Creation seeds LastUpdatedAt with now, an empty queue
// and no leader.
func (r *repo) UpdateOrCreate(roomID string, now time.Time, fn func(*domain.RoomState) error) error {
	for {
		e := r.getEntry(roomID)
		if e == nil {
			r.mu.Lock()
			if _, ok := r.rooms[roomID]; !ok {
				r.rooms[roomID] = &entry{state: domain.NewRoomState(roomID, now)}
			}
			e = r.rooms[roomID]
			r.mu.Unlock()
		}

		e.mu.Lock()
		if e.removed {
			// lost a race with room destruction, retry with a fresh entry
			e.mu.Unlock()
			continue
		}
		err := fn(e.state)
		e.mu.Unlock()
		return err
	}
}

// Update runs fn against an existing room state. Returns ErrRoomNotFound for
// unknown rooms; callers treat that as a silent no-op.
func (r *repo) Update(roomID string, fn func(*domain.RoomState) error) error {
	e := r.getEntry(roomID)
	if e == nil {
		return room.ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return room.ErrRoomNotFound
	}

	return fn(e.state)
}

// View is Update for read-only callers. fn must not retain the state.
func (r *repo) View(roomID string, fn func(*domain.RoomState) error) error {
	return r.Update(roomID, fn)
}

// RemoveIfEmpty destroys the room when its member list is empty. Reports
// whether the room was removed.
func (r *repo) RemoveIfEmpty(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.rooms[roomID]
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.state.Members) > 0 {
		return false
	}

	e.removed = true
	delete(r.rooms, roomID)
	return true
}
