package world

import (
	"time"

	"voxelcore.ai/internal/sim/voxel/coord"
)

const (
	AuditSetType     = "SET_TYPE"
	AuditSetHealth   = "SET_HEALTH"
	AuditSetWater    = "SET_WATER"
	AuditLoadChunk   = "LOAD_CHUNK"
	AuditUnloadChunk = "UNLOAD_CHUNK"
)

// AuditEntry records one storage mutation. Pos is zero for chunk events.
type AuditEntry struct {
	Seq         uint64 `json:"seq"`
	Time        string `json:"time"`
	WorldID     string `json:"world_id"`
	Action      string `json:"action"`
	Pos         [3]int `json:"pos"`
	Chunk       [3]int `json:"chunk"`
	From        int    `json:"from"`
	To          int    `json:"to"`
	Delta       int    `json:"delta,omitempty"`
	Invalidated int    `json:"invalidated,omitempty"`
}

// AuditSink is implemented in internal/persistence/*.
type AuditSink interface {
	WriteAudit(entry AuditEntry) error
}

func (w *World) audit(e AuditEntry) {
	if len(w.cfg.AuditSinks) == 0 {
		return
	}
	e.Time = time.Now().UTC().Format(time.RFC3339Nano)
	e.WorldID = w.cfg.ID
	for _, s := range w.cfg.AuditSinks {
		if s == nil {
			continue
		}
		if err := s.WriteAudit(e); err != nil {
			w.log.Printf("audit %s seq=%d: %v", e.Action, e.Seq, err)
		}
	}
}

func vec(g coord.GlobalVoxelCoordinate) [3]int { return [3]int{g.X, g.Y, g.Z} }
func chunkVec(c coord.ChunkCoordinate) [3]int  { return [3]int{c.X, c.Y, c.Z} }
