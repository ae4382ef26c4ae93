package voxel

import (
	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/voxel/chunk"
	"voxelcore.ai/internal/sim/voxel/coord"
)

// SliceRef names one render slice cache in one chunk.
type SliceRef struct {
	Chunk coord.ChunkCoordinate
	Y     int
}

// Invalidation is everything a type change touched.
type Invalidation struct {
	Coord         coord.GlobalVoxelCoordinate
	Previous      byte
	Current       byte
	OccupiedDelta int
	// Slices is deduplicated, in the order the slices were invalidated.
	Slices []SliceRef
}

func (inv *Invalidation) Touched(c coord.ChunkCoordinate, y int) bool {
	for _, s := range inv.Slices {
		if s.Chunk == c && s.Y == y {
			return true
		}
	}
	return false
}

func (inv *Invalidation) invalidate(ch *chunk.Chunk, y int) {
	ch.InvalidateSlice(y)
	if inv.Touched(ch.Coord, y) {
		return
	}
	inv.Slices = append(inv.Slices, SliceRef{Chunk: ch.Coord, Y: y})
}

// invalidatePair drops slice y and the slice below it, if any. Rendering of a
// slice depends on the slice directly under it.
func (inv *Invalidation) invalidatePair(ch *chunk.Chunk, y int) {
	inv.invalidate(ch, y)
	if y > 0 {
		inv.invalidate(ch, y-1)
	}
}

// ApplyTypeChange is the only path through which a voxel's type changes. It
// writes the type, resets health, keeps the slice occupancy counter exact and
// invalidates every render slice cache that may depend on the voxel: its own
// slice and the one below, the same pair in each loaded horizontal neighbour
// the voxel borders, and the slice of the first filled voxel underneath it.
func ApplyTypeChange(lookup ChunkLookup, h Handle, t catalogs.VoxelType) (Invalidation, error) {
	if err := h.check("set type"); err != nil {
		return Invalidation{}, err
	}
	ch := h.chunk
	y := h.local.Y

	prev := ch.Type(h.index)
	ch.SetType(h.index, t.ID)
	ch.SetHealth(h.index, t.StartingHealth)

	inv := Invalidation{Coord: h.coord, Previous: prev, Current: t.ID}
	switch {
	case prev == catalogs.EmptyID && t.ID != catalogs.EmptyID:
		inv.OccupiedDelta = 1
	case prev != catalogs.EmptyID && t.ID == catalogs.EmptyID:
		inv.OccupiedDelta = -1
	}
	if inv.OccupiedDelta != 0 {
		ch.AddOccupied(y, inv.OccupiedDelta)
	}

	inv.invalidatePair(ch, y)

	faces := ch.Dims().OnBoundary(h.local)
	for _, f := range coord.HorizontalFaces {
		if !faces.Has(f) {
			continue
		}
		n, ok := lookup.Get(addChunk(ch.Coord, f.Offset()))
		if !ok || n == nil {
			continue
		}
		inv.invalidatePair(n, y)
	}

	// O(height) in the worst case.
	if below, ok := FindFirstVoxelBelow(h); ok {
		inv.invalidate(ch, below.local.Y)
	}
	return inv, nil
}

func addChunk(c, off coord.ChunkCoordinate) coord.ChunkCoordinate {
	return c.Offset(off.X, off.Y, off.Z)
}
