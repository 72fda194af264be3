package room

import (
	"context"

	"github.com/syncwatch/server/internal/domain"
)

// startTicker launches the per-room clock broadcast goroutine. Idempotent: a
// room never has more than one ticker running.
func (s *service) startTicker(roomID string) {
	s.tickersMu.Lock()
	defer s.tickersMu.Unlock()

	if _, ok := s.tickers[roomID]; ok {
		return
	}

	stop := make(chan struct{})
	s.tickers[roomID] = stop
	go s.runTicker(roomID, stop)
}

func (s *service) stopTicker(roomID string) {
	s.tickersMu.Lock()
	defer s.tickersMu.Unlock()

	if stop, ok := s.tickers[roomID]; ok {
		close(stop)
		delete(s.tickers, roomID)
	}
}

// stopTickerIf stops the ticker only if the registered stop channel is still
// the given one, so a self-cancelling ticker cannot tear down a successor
// that was started for the same room id in the meantime.
func (s *service) stopTickerIf(roomID string, stop chan struct{}) {
	s.tickersMu.Lock()
	defer s.tickersMu.Unlock()

	if cur, ok := s.tickers[roomID]; ok && cur == stop {
		close(cur)
		delete(s.tickers, roomID)
	}
}

func (s *service) runTicker(roomID string, stop chan struct{}) {
	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
		}

		now := s.clock.Now()
		var (
			tick *ClockTick
			ids  []string
		)
		err := s.roomRepo.View(roomID, func(r *domain.RoomState) error {
			if r.CurrentTrack == nil || !r.Playing {
				return nil
			}

			tick = &ClockTick{
				BaseTime:  domain.LiveTime(r, now),
				ServerTs:  now.UnixMilli(),
				IsPlaying: r.Playing,
				TrackID:   r.CurrentTrack.ID,
			}
			ids = memberIDs(r.Members)

			return nil
		})
		if err != nil {
			// the room is gone, the ticker cancels itself
			s.stopTickerIf(roomID, stop)
			return
		}
		if tick != nil {
			s.broadcast(ctx, ids, &Output{Type: outputClockTick, Payload: *tick})
		}
	}
}
