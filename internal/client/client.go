package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Client owns the websocket to the server and pumps decoded events into the
// reconciler. It is also the reconciler's signaler, so time reports and
// track-ended signals ride the same connection.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	rec     *Reconciler
	logger  *slog.Logger
}

type DialConfig struct {
	// ServerURL is the websocket base, e.g. "ws://localhost:8080".
	ServerURL   string
	RoomID      string
	DisplayName string
	Engine      PlaybackEngine
	Clock       clockwork.Clock
	Logger      *slog.Logger
}

func Dial(ctx context.Context, cfg DialConfig) (*Client, error) {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	joinURL := fmt.Sprintf("%s/api/v1/ws/room/%s/join?display-name=%s",
		cfg.ServerURL,
		url.PathEscape(cfg.RoomID),
		url.QueryEscape(cfg.DisplayName),
	)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, joinURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial server: %w", err)
	}

	c := &Client{
		conn:   conn,
		logger: cfg.Logger,
	}
	c.rec = NewReconciler(cfg.Engine, c, cfg.Clock, cfg.Logger)

	return c, nil
}

// Reconciler exposes the event loop for host UI callbacks (engine ready,
// engine state changes, foreground transitions).
func (c *Client) Reconciler() *Reconciler {
	return c.rec
}

// Run drives both halves: the reconciliation loop and the read pump. Returns
// when the connection drops or the context ends.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.conn.Close()

	go c.rec.Run(ctx)

	for {
		var msg wsMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("connection closed: %w", err)
		}

		if err := c.dispatchMessage(msg); err != nil {
			c.logger.DebugContext(ctx, "failed to handle message", "type", msg.Type, "error", err)
		}
	}
}

func (c *Client) dispatchMessage(msg wsMessage) error {
	decode := func(v any) error {
		if len(msg.Payload) == 0 {
			return nil
		}
		return json.Unmarshal(msg.Payload, v)
	}

	switch msg.Type {
	case "JOINED":
		var ev JoinedEvent
		if err := decode(&ev); err != nil {
			return err
		}
		c.rec.Dispatch(ev)
	case "ROOM_STATE":
		var ev RoomStateEvent
		if err := decode(&ev); err != nil {
			return err
		}
		c.rec.Dispatch(ev)
	case "TRACK_CHANGE":
		var ev TrackChangeEvent
		if err := decode(&ev); err != nil {
			return err
		}
		c.rec.Dispatch(ev)
	case "PAUSED":
		var ev PausedEvent
		if err := decode(&ev); err != nil {
			return err
		}
		c.rec.Dispatch(ev)
	case "RESUMED":
		var ev ResumedEvent
		if err := decode(&ev); err != nil {
			return err
		}
		c.rec.Dispatch(ev)
	case "SEEKED":
		var ev SeekedEvent
		if err := decode(&ev); err != nil {
			return err
		}
		c.rec.Dispatch(ev)
	case "CLOCK_TICK":
		var ev ClockTickEvent
		if err := decode(&ev); err != nil {
			return err
		}
		c.rec.Dispatch(ev)
	case "LEADER_CHANGED":
		var ev LeaderChangedEvent
		if err := decode(&ev); err != nil {
			return err
		}
		c.rec.Dispatch(ev)
	case "SYNC_RESPONSE":
		var ev SyncResponseEvent
		if err := decode(&ev); err != nil {
			return err
		}
		c.rec.Dispatch(ev)
	}
	// queue, member and chat updates are rendered by the host UI, the
	// reconciler has no use for them

	return nil
}

func (c *Client) send(msgType string, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.conn.WriteJSON(map[string]any{
		"type":    msgType,
		"payload": payload,
	})
}

func (c *Client) ReportTime(time float64) error {
	return c.send("REPORT_TIME", map[string]any{"time": time})
}

func (c *Client) TrackEnded() error {
	return c.send("TRACK_ENDED", map[string]any{})
}

func (c *Client) RequestSync() error {
	return c.send("REQUEST_SYNC", map[string]any{})
}

// Player control passthroughs for the host UI.

func (c *Client) SelectTrack(videoID, title, thumbnail string) error {
	return c.send("SELECT_TRACK", map[string]any{"track": map[string]any{
		"video_id":  videoID,
		"title":     title,
		"thumbnail": thumbnail,
	}})
}

func (c *Client) Pause() error {
	return c.send("PAUSE", map[string]any{})
}

func (c *Client) Resume() error {
	return c.send("RESUME", map[string]any{})
}

func (c *Client) Seek(time float64) error {
	return c.send("SEEK", map[string]any{"time": time})
}

func (c *Client) QueueAdd(videoID, title, thumbnail string) error {
	return c.send("QUEUE_ADD", map[string]any{"track": map[string]any{
		"video_id":  videoID,
		"title":     title,
		"thumbnail": thumbnail,
	}})
}

func (c *Client) QueueRemove(index int) error {
	return c.send("QUEUE_REMOVE", map[string]any{"index": index})
}

func (c *Client) PlayFromQueue(index int) error {
	return c.send("PLAY_FROM_QUEUE", map[string]any{"index": index})
}

func (c *Client) SendChatMessage(text string) error {
	return c.send("CHAT_MESSAGE", map[string]any{"text": text})
}
