package world

import (
	"context"
	"fmt"

	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/voxel"
	"voxelcore.ai/internal/sim/voxel/chunk"
	"voxelcore.ai/internal/sim/voxel/coord"
)

// VoxelState is a copy of every attribute of one voxel, taken atomically.
type VoxelState struct {
	Coord    coord.GlobalVoxelCoordinate
	Type     byte
	TypeName string
	Health   byte
	Ramp     chunk.RampType
	SunColor byte
	Explored bool
	Water    chunk.WaterCell
	Visible  bool
}

// LoadChunk registers ch. Its counters are recomputed from the raw arrays, and
// every slice of each loaded horizontal neighbour is invalidated since their
// boundary faces may now be culled differently.
func (w *World) LoadChunk(ctx context.Context, ch *chunk.Chunk) error {
	var err error
	qerr := w.exec(ctx, func() {
		if ch == nil {
			err = fmt.Errorf("load chunk: nil chunk")
			return
		}
		ch.Recount()
		ch.InvalidateAll()
		if err = w.reg.Insert(ch); err != nil {
			return
		}
		w.loadedChunks.Store(int64(w.reg.Len()))
		ev := InvalidationEvent{Seq: w.nextSeq(), Reason: ReasonLoadChunk, Coord: w.cfg.Dims.Origin(ch.Coord)}
		ev.Slices = append(ev.Slices, allSlices(ch)...)
		ev.Slices = append(ev.Slices, w.invalidateNeighbours(ch.Coord)...)
		w.audit(AuditEntry{Seq: ev.Seq, Action: AuditLoadChunk, Chunk: chunkVec(ch.Coord), Invalidated: len(ev.Slices)})
		w.publish(ev)
	})
	if qerr != nil {
		return qerr
	}
	return err
}

// UnloadChunk removes cc and reports whether it was loaded. Handles that
// cached it become stale.
func (w *World) UnloadChunk(ctx context.Context, cc coord.ChunkCoordinate) (bool, error) {
	var removed bool
	err := w.exec(ctx, func() {
		if !w.reg.Remove(cc) {
			return
		}
		removed = true
		w.loadedChunks.Store(int64(w.reg.Len()))
		ev := InvalidationEvent{Seq: w.nextSeq(), Reason: ReasonUnloadChunk, Coord: w.cfg.Dims.Origin(cc)}
		ev.Slices = w.invalidateNeighbours(cc)
		w.audit(AuditEntry{Seq: ev.Seq, Action: AuditUnloadChunk, Chunk: chunkVec(cc), Invalidated: len(ev.Slices)})
		w.publish(ev)
	})
	return removed, err
}

func (w *World) invalidateNeighbours(cc coord.ChunkCoordinate) []voxel.SliceRef {
	var out []voxel.SliceRef
	for _, f := range coord.HorizontalFaces {
		off := f.Offset()
		n, ok := w.reg.Neighbor(cc, off.X, off.Y, off.Z)
		if !ok {
			continue
		}
		n.InvalidateAll()
		out = append(out, allSlices(n)...)
	}
	return out
}

func allSlices(ch *chunk.Chunk) []voxel.SliceRef {
	out := make([]voxel.SliceRef, 0, ch.Dims().Y)
	for y := 0; y < ch.Dims().Y; y++ {
		out = append(out, voxel.SliceRef{Chunk: ch.Coord, Y: y})
	}
	return out
}

func (w *World) LoadedChunks(ctx context.Context) ([]coord.ChunkCoordinate, error) {
	var keys []coord.ChunkCoordinate
	err := w.exec(ctx, func() { keys = w.reg.Keys() })
	return keys, err
}

func (w *World) Voxel(ctx context.Context, g coord.GlobalVoxelCoordinate) (VoxelState, error) {
	var (
		st  VoxelState
		err error
	)
	qerr := w.exec(ctx, func() { st, err = w.readVoxel(g) })
	if qerr != nil {
		return VoxelState{}, qerr
	}
	return st, err
}

func (w *World) readVoxel(g coord.GlobalVoxelCoordinate) (VoxelState, error) {
	h := voxel.Resolve(w.reg, g)
	st := VoxelState{Coord: g}
	var err error
	if st.Type, err = h.Type(); err != nil {
		return VoxelState{}, err
	}
	if t, terr := w.types.ByID(st.Type); terr == nil {
		st.TypeName = t.Name
	}
	// The handle is valid from here on; the remaining reads cannot fail.
	st.Health, _ = h.Health()
	st.Ramp, _ = h.RampType()
	st.SunColor, _ = h.SunColor()
	st.Explored, _ = h.Explored(w.view)
	st.Water, _ = h.WaterCell()
	st.Visible, _ = h.Visible(w.view)
	return st, nil
}

// SetType changes the voxel type at g and returns the invalidated slices.
func (w *World) SetType(ctx context.Context, g coord.GlobalVoxelCoordinate, id byte) (voxel.Invalidation, error) {
	t, err := w.types.ByID(id)
	if err != nil {
		return voxel.Invalidation{}, err
	}
	return w.setType(ctx, g, t)
}

func (w *World) SetTypeName(ctx context.Context, g coord.GlobalVoxelCoordinate, name string) (voxel.Invalidation, error) {
	t, err := w.types.ByName(name)
	if err != nil {
		return voxel.Invalidation{}, err
	}
	return w.setType(ctx, g, t)
}

func (w *World) setType(ctx context.Context, g coord.GlobalVoxelCoordinate, t catalogs.VoxelType) (voxel.Invalidation, error) {
	var (
		inv voxel.Invalidation
		err error
	)
	qerr := w.exec(ctx, func() {
		h := voxel.Resolve(w.reg, g)
		inv, err = voxel.ApplyTypeChange(w.reg, h, t)
		if err != nil {
			return
		}
		w.mutations.Add(1)
		w.typeChanges.Add(1)
		seq := w.nextSeq()
		w.audit(AuditEntry{
			Seq:         seq,
			Action:      AuditSetType,
			Pos:         vec(g),
			Chunk:       chunkVec(h.Chunk().Coord),
			From:        int(inv.Previous),
			To:          int(inv.Current),
			Delta:       inv.OccupiedDelta,
			Invalidated: len(inv.Slices),
		})
		w.publish(InvalidationEvent{Seq: seq, Reason: ReasonSetType, Coord: g, Slices: inv.Slices})
	})
	if qerr != nil {
		return voxel.Invalidation{}, qerr
	}
	return inv, err
}

func (w *World) SetHealth(ctx context.Context, g coord.GlobalVoxelCoordinate, v int) error {
	var err error
	qerr := w.exec(ctx, func() {
		h := voxel.Resolve(w.reg, g)
		before, herr := h.Health()
		if herr != nil {
			err = herr
			return
		}
		if err = h.SetHealth(w.types, v); err != nil {
			return
		}
		after, _ := h.Health()
		if after == before {
			return
		}
		w.mutations.Add(1)
		w.audit(AuditEntry{Seq: w.nextSeq(), Action: AuditSetHealth, Pos: vec(g), Chunk: chunkVec(h.Chunk().Coord), From: int(before), To: int(after)})
	})
	if qerr != nil {
		return qerr
	}
	return err
}

// SetWater writes the liquid cell at g and returns the liquid counter change.
func (w *World) SetWater(ctx context.Context, g coord.GlobalVoxelCoordinate, cell chunk.WaterCell) (int, error) {
	var (
		delta int
		err   error
	)
	qerr := w.exec(ctx, func() {
		h := voxel.Resolve(w.reg, g)
		prev, werr := h.WaterCell()
		if werr != nil {
			err = werr
			return
		}
		if delta, err = h.SetWaterCell(cell); err != nil {
			return
		}
		w.mutations.Add(1)
		w.audit(AuditEntry{Seq: w.nextSeq(), Action: AuditSetWater, Pos: vec(g), Chunk: chunkVec(h.Chunk().Coord), From: int(prev.Type), To: int(cell.Type), Delta: delta})
	})
	if qerr != nil {
		return 0, qerr
	}
	return delta, err
}

func (w *World) SetSunColor(ctx context.Context, g coord.GlobalVoxelCoordinate, v byte) error {
	return w.update(ctx, g, func(h voxel.Handle) error { return h.SetSunColor(v) })
}

func (w *World) SetExplored(ctx context.Context, g coord.GlobalVoxelCoordinate, v bool) error {
	return w.update(ctx, g, func(h voxel.Handle) error { return h.SetExplored(v) })
}

func (w *World) SetRampType(ctx context.Context, g coord.GlobalVoxelCoordinate, r chunk.RampType) error {
	return w.update(ctx, g, func(h voxel.Handle) error { return h.SetRampType(r) })
}

func (w *World) update(ctx context.Context, g coord.GlobalVoxelCoordinate, fn func(voxel.Handle) error) error {
	var err error
	qerr := w.exec(ctx, func() {
		if err = fn(voxel.Resolve(w.reg, g)); err == nil {
			w.mutations.Add(1)
		}
	})
	if qerr != nil {
		return qerr
	}
	return err
}

func (w *World) View(ctx context.Context) (voxel.View, error) {
	var v voxel.View
	err := w.exec(ctx, func() { v = w.view })
	return v, err
}

func (w *World) SetMaxViewingLevel(ctx context.Context, level int) error {
	return w.exec(ctx, func() { w.view.MaxViewingLevel = level })
}

func (w *World) SetFogOfWar(ctx context.Context, on bool) error {
	return w.exec(ctx, func() { w.view.FogOfWar = on })
}
