// Package voxel provides Handle, a cacheable reference to one voxel, and the
// type-mutation path that keeps per-slice counters and render caches in step
// with the raw chunk data.
package voxel

import (
	"errors"
	"fmt"

	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/mathx"
	"voxelcore.ai/internal/sim/voxel/chunk"
	"voxelcore.ai/internal/sim/voxel/coord"
)

var ErrInvalidHandle = errors.New("invalid voxel handle")

// HandleError carries the coordinate and operation that hit an invalid
// handle. It unwraps to ErrInvalidHandle.
type HandleError struct {
	Op    string
	Coord coord.GlobalVoxelCoordinate
}

func (e *HandleError) Error() string {
	return fmt.Sprintf("voxel: %s at %s: %v", e.Op, e.Coord, ErrInvalidHandle)
}

func (e *HandleError) Unwrap() error { return ErrInvalidHandle }

// ChunkLookup is the part of the registry a handle needs.
type ChunkLookup interface {
	Dims() coord.Dims
	Get(coord.ChunkCoordinate) (*chunk.Chunk, bool)
}

const invalidIndex = -1

// Handle is a value type. The coordinate is the identity; the chunk pointer
// and flat index are a lookup hint captured at construction. Unloading the
// chunk later does not clear the hint (see Current and Refresh).
type Handle struct {
	coord coord.GlobalVoxelCoordinate
	local coord.LocalCoordinate
	chunk *chunk.Chunk
	index int
}

func Resolve(lookup ChunkLookup, g coord.GlobalVoxelCoordinate) Handle {
	d := lookup.Dims()
	h := Handle{coord: g, local: d.LocalOf(g), index: invalidIndex}
	if ch, ok := lookup.Get(d.ChunkOf(g)); ok && ch != nil {
		h.chunk = ch
		h.index = d.FlatIndex(h.local)
	}
	return h
}

// FromLocal builds a handle directly from a chunk the caller already holds.
func FromLocal(ch *chunk.Chunk, l coord.LocalCoordinate) Handle {
	d := ch.Dims()
	return Handle{
		coord: d.Global(ch.Coord, l),
		local: l,
		chunk: ch,
		index: d.FlatIndex(l),
	}
}

// Invalid returns a handle for g with no chunk attached.
func Invalid(g coord.GlobalVoxelCoordinate) Handle {
	return Handle{coord: g, index: invalidIndex}
}

func (h Handle) IsValid() bool                           { return h.chunk != nil }
func (h Handle) Coordinate() coord.GlobalVoxelCoordinate { return h.coord }
func (h Handle) Local() coord.LocalCoordinate            { return h.local }
func (h Handle) Chunk() *chunk.Chunk                     { return h.chunk }
func (h Handle) Index() int                              { return h.index }

// Equal compares coordinates only; cache state is ignored.
func (h Handle) Equal(o Handle) bool { return h.coord == o.coord }

func (h Handle) String() string { return "voxel at " + h.coord.String() }

// Refresh re-resolves the handle against the current registry contents.
func (h Handle) Refresh(lookup ChunkLookup) Handle {
	return Resolve(lookup, h.coord)
}

// Current reports whether the cached chunk is still the one registered for
// this coordinate. Nothing calls it implicitly.
func (h Handle) Current(lookup ChunkLookup) bool {
	if h.chunk == nil {
		return false
	}
	ch, ok := lookup.Get(h.chunk.Coord)
	return ok && ch == h.chunk
}

func (h Handle) check(op string) error {
	if h.chunk == nil {
		return &HandleError{Op: op, Coord: h.coord}
	}
	return nil
}

func (h Handle) Type() (byte, error) {
	if err := h.check("read type"); err != nil {
		return 0, err
	}
	return h.chunk.Type(h.index), nil
}

func (h Handle) IsEmpty() (bool, error) {
	t, err := h.Type()
	if err != nil {
		return false, err
	}
	return t == catalogs.EmptyID, nil
}

// VoxelType resolves the stored id against the catalog.
func (h Handle) VoxelType(types *catalogs.VoxelCatalog) (catalogs.VoxelType, error) {
	t, err := h.Type()
	if err != nil {
		return catalogs.VoxelType{}, err
	}
	return types.ByID(t)
}

func (h Handle) Health() (byte, error) {
	if err := h.check("read health"); err != nil {
		return 0, err
	}
	return h.chunk.Health(h.index), nil
}

func (h Handle) RampType() (chunk.RampType, error) {
	if err := h.check("read ramp"); err != nil {
		return chunk.RampNone, err
	}
	return h.chunk.Ramp(h.index), nil
}

func (h Handle) SunColor() (byte, error) {
	if err := h.check("read sun color"); err != nil {
		return 0, err
	}
	return h.chunk.SunColor(h.index), nil
}

// Explored is always true when fog of war is off.
func (h Handle) Explored(view View) (bool, error) {
	if err := h.check("read explored"); err != nil {
		return false, err
	}
	return !view.FogOfWar || h.chunk.Explored(h.index), nil
}

func (h Handle) WaterCell() (chunk.WaterCell, error) {
	if err := h.check("read water"); err != nil {
		return chunk.WaterCell{}, err
	}
	return h.chunk.Water(h.index), nil
}

// Visible reports whether the voxel is strictly below the viewing cutoff.
func (h Handle) Visible(view View) (bool, error) {
	if err := h.check("read visibility"); err != nil {
		return false, err
	}
	return h.coord.Y < view.MaxViewingLevel, nil
}

// BoundingBox only depends on the coordinate, so it is defined for invalid
// handles too.
func (h Handle) BoundingBox() coord.BoundingBox {
	return h.coord.BoundingBox()
}

// SetHealth clamps v to [0,255]. Invincible types ignore the write.
func (h Handle) SetHealth(types *catalogs.VoxelCatalog, v int) error {
	if err := h.check("set health"); err != nil {
		return err
	}
	t, err := types.ByID(h.chunk.Type(h.index))
	if err != nil {
		return err
	}
	if t.Invincible {
		return nil
	}
	h.chunk.SetHealth(h.index, mathx.ClampByte(v))
	return nil
}

// SetWaterCell writes cell and returns the change applied to the slice's
// liquid counter (-1, 0 or +1).
func (h Handle) SetWaterCell(cell chunk.WaterCell) (int, error) {
	if err := h.check("set water"); err != nil {
		return 0, err
	}
	prev := h.chunk.Water(h.index)
	delta := 0
	switch {
	case prev.HasLiquid() && !cell.HasLiquid():
		delta = -1
	case !prev.HasLiquid() && cell.HasLiquid():
		delta = 1
	}
	if delta != 0 {
		h.chunk.AddLiquid(h.local.Y, delta)
	}
	h.chunk.SetWater(h.index, cell)
	return delta, nil
}

func (h Handle) SetSunColor(v byte) error {
	if err := h.check("set sun color"); err != nil {
		return err
	}
	h.chunk.SetSunColor(h.index, v)
	return nil
}

func (h Handle) SetExplored(v bool) error {
	if err := h.check("set explored"); err != nil {
		return err
	}
	h.chunk.SetExplored(h.index, v)
	return nil
}

func (h Handle) SetRampType(r chunk.RampType) error {
	if err := h.check("set ramp"); err != nil {
		return err
	}
	h.chunk.SetRamp(h.index, r)
	return nil
}

// SetType is ApplyTypeChange on this handle.
func (h Handle) SetType(lookup ChunkLookup, t catalogs.VoxelType) (Invalidation, error) {
	return ApplyTypeChange(lookup, h, t)
}
