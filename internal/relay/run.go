package relay

import (
	"context"
	"time"

	"github.com/alienworlds/engine/internal/net"
	"go.uber.org/zap"
)

type inbound struct {
	id   uint64
	data []byte
}

// Run drives the hub from srv until ctx ends. Every hub call happens on this
// goroutine; per-session pumps only forward payloads.
func (h *Hub) Run(ctx context.Context, srv *net.Server) error {
	in := make(chan inbound, 256)
	sessions := make(map[uint64]*net.Session)

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*h.queryTimeout)
			err := h.Flush(flushCtx)
			cancel()
			for _, s := range sessions {
				s.Close()
			}
			if err != nil {
				h.log.Error("flush on shutdown failed", zap.Error(err))
			}
			return err

		case s := <-srv.NewSessions():
			sessions[s.ID] = s
			h.Connect(s.ID, s)
			go pump(ctx, s, in)

		case id := <-srv.DeadSessions():
			delete(sessions, id)
			h.Disconnect(id)
			h.log.Debug("session closed", zap.Uint64("session", id), zap.Int("rooms", h.Rooms()))

		case msg := <-in:
			start := time.Now()
			if err := h.Handle(msg.id, msg.data); err != nil {
				h.log.Debug("payload rejected", zap.Uint64("session", msg.id), zap.Error(err))
			}
			if d := time.Since(start); d > h.queryTimeout {
				h.log.Warn("slow relay handler", zap.Uint64("session", msg.id), zap.Duration("took", d))
			}
		}
	}
}

func pump(ctx context.Context, s *net.Session, out chan<- inbound) {
	for {
		select {
		case data := <-s.InQueue:
			select {
			case out <- inbound{id: s.ID, data: data}:
			case <-ctx.Done():
				return
			}
		case <-s.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}
