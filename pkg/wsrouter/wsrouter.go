package wsrouter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error

type Middleware func(next HandlerFunc) HandlerFunc

type WSRouter struct {
	routes      map[string]HandlerFunc
	middlewares []Middleware
}

func New() *WSRouter {
	return &WSRouter{routes: make(map[string]HandlerFunc)}
}

func (r *WSRouter) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// Typed adapts a handler taking a concrete payload struct into a HandlerFunc.
func Typed[T any](handler func(ctx context.Context, conn *websocket.Conn, payload T) error) HandlerFunc {
	return func(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
		var typed T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &typed); err != nil {
				return fmt.Errorf("failed to unmarshal payload: %w", err)
			}
		}

		return handler(ctx, conn, typed)
	}
}

// ReplyFunc writes a message back to the connection's peer. It must serialize
// its writes with every other writer of the same connection; writing to a
// gorilla connection from two goroutines at once panics.
type ReplyFunc func(msg any) error

// ServeConn reads messages from the connection until it fails and dispatches
// them to the registered handlers. Handler errors are reported through reply
// and do not end the loop.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn, reply ReplyFunc) error {
	defer conn.Close()

	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		handler, exists := r.routes[msg.Type]
		if !exists {
			reply(map[string]string{"error": "unknown message type"})
			continue
		}

		for i := len(r.middlewares) - 1; i >= 0; i-- {
			handler = r.middlewares[i](handler)
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		if err := handler(msgCtx, conn, msg.Payload); err != nil {
			reply(map[string]any{"error": err.Error()})
		}
	}
}
