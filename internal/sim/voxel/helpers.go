package voxel

import (
	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/voxel/coord"
)

// FindFirstVoxelBelow scans the handle's column downward, strictly below it
// and within the same chunk, for the first non-empty voxel.
func FindFirstVoxelBelow(h Handle) (Handle, bool) {
	if h.chunk == nil {
		return Handle{}, false
	}
	for y := h.local.Y - 1; y >= 0; y-- {
		l := coord.LocalCoordinate{X: h.local.X, Y: y, Z: h.local.Z}
		below := FromLocal(h.chunk, l)
		if below.chunk.Type(below.index) != catalogs.EmptyID {
			return below, true
		}
	}
	return Handle{}, false
}

// Neighbor returns the handle at the given offset. Offsets that stay inside
// the cached chunk skip the registry lookup.
func (h Handle) Neighbor(lookup ChunkLookup, dx, dy, dz int) Handle {
	g := h.coord.Offset(dx, dy, dz)
	if h.chunk != nil {
		l := coord.LocalCoordinate{X: h.local.X + dx, Y: h.local.Y + dy, Z: h.local.Z + dz}
		if h.chunk.Dims().Contains(l) {
			return FromLocal(h.chunk, l)
		}
	}
	return Resolve(lookup, g)
}

// HasFilledNeighbor2D reports whether any loaded horizontal face neighbour of
// g is non-empty.
func HasFilledNeighbor2D(lookup ChunkLookup, g coord.GlobalVoxelCoordinate) bool {
	for _, n := range coord.ManhattanNeighbors2D(g) {
		empty, err := Resolve(lookup, n).IsEmpty()
		if err == nil && !empty {
			return true
		}
	}
	return false
}

// AnyFilledInBox reports whether any loaded voxel in the inclusive box is
// non-empty.
func AnyFilledInBox(lookup ChunkLookup, lo, hi coord.GlobalVoxelCoordinate) bool {
	found := false
	coord.CoordinatesInBox(lo, hi, func(g coord.GlobalVoxelCoordinate) bool {
		empty, err := Resolve(lookup, g).IsEmpty()
		if err == nil && !empty {
			found = true
			return false
		}
		return true
	})
	return found
}
