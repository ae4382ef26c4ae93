package world

import (
	"context"
	"errors"
)

// Run drains the request queue until ctx is done or Close is called. Only one
// Run may be active per World.
func (w *World) Run(ctx context.Context) error {
	if !w.runOnce.CompareAndSwap(false, true) {
		return errors.New("world already running")
	}
	defer close(w.done)
	defer w.closeSubscribers()

	w.log.Printf("world %s running: chunk=%dx%dx%d", w.cfg.ID, w.cfg.Dims.X, w.cfg.Dims.Y, w.cfg.Dims.Z)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.inbox:
			if req.start() {
				req.fn()
				close(req.done)
			}
		}
	}
}
