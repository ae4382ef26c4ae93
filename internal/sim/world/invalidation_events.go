package world

import (
	"voxelcore.ai/internal/sim/voxel"
	"voxelcore.ai/internal/sim/voxel/coord"
)

const (
	ReasonSetType     = "SET_TYPE"
	ReasonLoadChunk   = "LOAD_CHUNK"
	ReasonUnloadChunk = "UNLOAD_CHUNK"
)

// InvalidationEvent tells render-cache consumers which slices they must
// rebuild. It is published after the cascade that produced it is complete.
type InvalidationEvent struct {
	Seq    uint64
	Reason string
	Coord  coord.GlobalVoxelCoordinate
	Slices []voxel.SliceRef
}

type subscriber struct {
	ch chan InvalidationEvent
}

// Subscribe registers a consumer of invalidation events. Slow consumers miss
// events rather than stall the world loop; DroppedEvents counts the misses.
func (w *World) Subscribe() (uint64, <-chan InvalidationEvent) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	w.nextSub++
	id := w.nextSub
	s := &subscriber{ch: make(chan InvalidationEvent, w.cfg.SubscriberBuffer)}
	if w.subs == nil {
		close(s.ch)
		return id, s.ch
	}
	w.subs[id] = s
	return id, s.ch
}

func (w *World) Unsubscribe(id uint64) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	if s, ok := w.subs[id]; ok {
		delete(w.subs, id)
		close(s.ch)
	}
}

func (w *World) publish(ev InvalidationEvent) {
	if len(ev.Slices) == 0 {
		return
	}
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	for _, s := range w.subs {
		select {
		case s.ch <- ev:
		default:
			w.dropped.Add(1)
		}
	}
}

func (w *World) closeSubscribers() {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	for id, s := range w.subs {
		close(s.ch)
		delete(w.subs, id)
	}
	w.subs = nil
}
