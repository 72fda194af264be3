package inmemory

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/syncwatch/server/internal/repository/connection"
)

type connEntry struct {
	conn *websocket.Conn
	// serializes writes; the ticker goroutine and message handlers may
	// target the same connection concurrently
	writeMu sync.Mutex
}

type repo struct {
	mu       sync.RWMutex
	byConn   map[*websocket.Conn]string
	byMember map[string]*connEntry
}

func NewRepo() *repo {
	return &repo{
		byConn:   make(map[*websocket.Conn]string),
		byMember: make(map[string]*connEntry),
	}
}

func (r *repo) Add(conn *websocket.Conn, memberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byConn[conn] != "" || r.byMember[memberID] != nil {
		return connection.ErrAlreadyExists
	}

	r.byConn[conn] = memberID
	r.byMember[memberID] = &connEntry{conn: conn}

	return nil
}

func (r *repo) RemoveByMemberID(memberID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byMember[memberID]
	if !ok {
		return connection.ErrNotFound
	}

	delete(r.byConn, e.conn)
	delete(r.byMember, memberID)

	return nil
}

func (r *repo) GetMemberID(conn *websocket.Conn) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	memberID, ok := r.byConn[conn]
	if !ok {
		return "", connection.ErrNotFound
	}

	return memberID, nil
}

// Send writes msg as JSON to the member's connection, holding the
// connection's write lock for the duration of the write.
func (r *repo) Send(memberID string, msg any) error {
	r.mu.RLock()
	e, ok := r.byMember[memberID]
	r.mu.RUnlock()
	if !ok {
		return connection.ErrNotFound
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	return e.conn.WriteJSON(msg)
}
