package ecs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run ticks the world at the configured rate until Stop is called or ctx
// ends. Each tick gets the fixed frame duration as dt; the loop sleeps for
// whatever is left of the frame after the tick completes.
func (w *World) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	w.cancel = cancel
	w.mu.Unlock()
	defer cancel()

	frame := time.Second / time.Duration(w.tickRate)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		start := time.Now()
		if err := w.Tick(ctx, frame); err != nil {
			w.log.Warn("tick finished with errors", zap.Error(err))
		}
		elapsed := time.Since(start)
		if elapsed > frame {
			w.log.Debug("tick overran frame budget",
				zap.Duration("elapsed", elapsed),
				zap.Duration("frame", frame),
			)
		}
		timer.Reset(max(0, frame-elapsed))
	}
}

// Stop cancels a running loop. It is safe to call when nothing is running.
func (w *World) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}
