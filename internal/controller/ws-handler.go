package controller

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/syncwatch/server/internal/domain"
	"github.com/syncwatch/server/internal/service/room"
)

type EmptyInput struct{}

func (c controller) handleAlive(_ context.Context, _ *websocket.Conn, _ EmptyInput) error {
	return nil
}

type TrackInput struct {
	VideoID   string `json:"video_id" validate:"required,len=11"`
	Title     string `json:"title" validate:"required,max=200"`
	Thumbnail string `json:"thumbnail" validate:"max=500"`
}

func (t TrackInput) toVideoRef() domain.VideoRef {
	return domain.VideoRef{
		ID:           t.VideoID,
		Title:        t.Title,
		ThumbnailURL: t.Thumbnail,
	}
}

func (c controller) validateInput(input any) error {
	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("invalid input: %s", validationErrors[0].Message)
	}

	return nil
}

type SelectTrackInput struct {
	Track TrackInput `json:"track"`
}

func (c controller) handleSelectTrack(ctx context.Context, _ *websocket.Conn, input SelectTrackInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if err := c.roomService.SelectTrack(ctx, &room.SelectTrackParams{
		SenderID: c.getMemberIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		Track:    input.Track.toVideoRef(),
	}); err != nil {
		return fmt.Errorf("failed to select track: %w", err)
	}

	return nil
}

func (c controller) handlePause(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if err := c.roomService.Pause(ctx, &room.PauseParams{
		SenderID: c.getMemberIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	return nil
}

func (c controller) handleResume(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if err := c.roomService.Resume(ctx, &room.ResumeParams{
		SenderID: c.getMemberIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}

	return nil
}

type SeekInput struct {
	Time float64 `json:"time"`
}

func (c controller) handleSeek(ctx context.Context, _ *websocket.Conn, input SeekInput) error {
	if err := c.roomService.Seek(ctx, &room.SeekParams{
		SenderID: c.getMemberIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		Time:     input.Time,
	}); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}

	return nil
}

type ReportTimeInput struct {
	Time float64 `json:"time"`
}

func (c controller) handleReportTime(ctx context.Context, _ *websocket.Conn, input ReportTimeInput) error {
	if err := c.roomService.ReportTime(ctx, &room.ReportTimeParams{
		SenderID: c.getMemberIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		Time:     input.Time,
	}); err != nil {
		return fmt.Errorf("failed to report time: %w", err)
	}

	return nil
}

func (c controller) handleTrackEnded(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if err := c.roomService.TrackEnded(ctx, &room.TrackEndedParams{
		SenderID: c.getMemberIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to handle track ended: %w", err)
	}

	return nil
}

func (c controller) handleRequestSync(ctx context.Context, _ *websocket.Conn, _ EmptyInput) error {
	if err := c.roomService.RequestSync(ctx, &room.RequestSyncParams{
		SenderID: c.getMemberIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
	}); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}

	return nil
}

type QueueAddInput struct {
	Track TrackInput `json:"track"`
}

func (c controller) handleQueueAdd(ctx context.Context, _ *websocket.Conn, input QueueAddInput) error {
	if err := c.validateInput(input); err != nil {
		return err
	}

	if err := c.roomService.QueueAdd(ctx, &room.QueueAddParams{
		SenderID: c.getMemberIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		Track:    input.Track.toVideoRef(),
	}); err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}

	return nil
}

type QueueRemoveInput struct {
	Index int `json:"index"`
}

func (c controller) handleQueueRemove(ctx context.Context, _ *websocket.Conn, input QueueRemoveInput) error {
	if err := c.roomService.QueueRemove(ctx, &room.QueueRemoveParams{
		SenderID: c.getMemberIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		Index:    input.Index,
	}); err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}

	return nil
}

type PlayFromQueueInput struct {
	Index int `json:"index"`
}

func (c controller) handlePlayFromQueue(ctx context.Context, _ *websocket.Conn, input PlayFromQueueInput) error {
	if err := c.roomService.PlayFromQueue(ctx, &room.PlayFromQueueParams{
		SenderID: c.getMemberIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		Index:    input.Index,
	}); err != nil {
		return fmt.Errorf("failed to play from queue: %w", err)
	}

	return nil
}

type ChatMessageInput struct {
	Text string `json:"text"`
}

func (c controller) handleChatMessage(ctx context.Context, _ *websocket.Conn, input ChatMessageInput) error {
	if err := c.roomService.SendChat(ctx, &room.SendChatParams{
		SenderID: c.getMemberIDFromCtx(ctx),
		RoomID:   c.getRoomIDFromCtx(ctx),
		Text:     input.Text,
	}); err != nil {
		return fmt.Errorf("failed to send chat message: %w", err)
	}

	return nil
}
