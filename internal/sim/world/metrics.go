package world

// WorldMetrics is a read-only view of runtime signals, safe to read from HTTP
// handlers while the loop runs.
type WorldMetrics struct {
	// Mutations counts every applied voxel write; TypeChanges only SetType.
	LoadedChunks  int    `json:"loaded_chunks"`
	Mutations     uint64 `json:"mutations"`
	TypeChanges   uint64 `json:"type_changes"`
	DroppedEvents uint64 `json:"dropped_events"`
	Subscribers   int    `json:"subscribers"`

	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inbox         int `json:"inbox"`
	InboxCapacity int `json:"inbox_capacity"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	w.subsMu.Lock()
	subs := len(w.subs)
	w.subsMu.Unlock()
	return WorldMetrics{
		LoadedChunks:  int(w.loadedChunks.Load()),
		Mutations:     w.mutations.Load(),
		TypeChanges:   w.typeChanges.Load(),
		DroppedEvents: w.dropped.Load(),
		Subscribers:   subs,
		QueueDepths: QueueDepths{
			Inbox:         len(w.inbox),
			InboxCapacity: cap(w.inbox),
		},
	}
}
