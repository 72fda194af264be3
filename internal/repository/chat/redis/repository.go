package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/syncwatch/server/internal/repository/chat"
)

// backlogLimit is how many messages are retained per room.
const backlogLimit = 100

type repo struct {
	rc             *redis.Client
	expireDuration time.Duration
}

func NewRepo(rc *redis.Client, expireDuration time.Duration) *repo {
	return &repo{
		rc:             rc,
		expireDuration: expireDuration,
	}
}

func (r repo) getChatKey(roomID string) string {
	return "room:" + roomID + ":chat"
}

func (r repo) AddMessage(ctx context.Context, roomID string, msg *chat.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	chatKey := r.getChatKey(roomID)
	pipe := r.rc.TxPipeline()
	pipe.LPush(ctx, chatKey, raw)
	pipe.LTrim(ctx, chatKey, 0, backlogLimit-1)
	pipe.Expire(ctx, chatKey, r.expireDuration)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}

	return nil
}

// GetRecent returns up to limit most recent messages, oldest first.
func (r repo) GetRecent(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	chatKey := r.getChatKey(roomID)
	raws, err := r.rc.LRange(ctx, chatKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}

	r.rc.Expire(ctx, chatKey, r.expireDuration)

	messages := make([]chat.Message, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var msg chat.Message
		if err := json.Unmarshal([]byte(raws[i]), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}

		messages = append(messages, msg)
	}

	return messages, nil
}

func (r repo) Remove(ctx context.Context, roomID string) error {
	if err := r.rc.Del(ctx, r.getChatKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to remove messages: %w", err)
	}

	return nil
}
