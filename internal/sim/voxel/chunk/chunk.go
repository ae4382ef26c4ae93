// Package chunk holds the dense per-voxel arrays of one chunk plus its
// per-slice aggregates.
//
// A Chunk does not keep its aggregates consistent on its own. The counters and
// the render slice cache are maintained by the voxel handle mutation path;
// everything here is raw storage.
package chunk

import (
	"crypto/sha256"
	"encoding/binary"

	"voxelcore.ai/internal/sim/voxel/coord"
)

type Chunk struct {
	Coord coord.ChunkCoordinate
	dims  coord.Dims

	// Dense voxel data, indexed by coord.Dims.FlatIndex.
	types     []byte
	health    []byte
	sunColors []byte
	explored  []bool
	ramps     []RampType
	water     []WaterCell

	// Per-slice aggregates, indexed by local y.
	occupied   []int
	liquid     []int
	sliceCache []any
	sliceValid []bool

	dirty bool
	hash  [32]byte
}

func New(c coord.ChunkCoordinate, dims coord.Dims) *Chunk {
	n := dims.Volume()
	return &Chunk{
		Coord:      c,
		dims:       dims,
		types:      make([]byte, n),
		health:     make([]byte, n),
		sunColors:  make([]byte, n),
		explored:   make([]bool, n),
		ramps:      make([]RampType, n),
		water:      make([]WaterCell, n),
		occupied:   make([]int, dims.Y),
		liquid:     make([]int, dims.Y),
		sliceCache: make([]any, dims.Y),
		sliceValid: make([]bool, dims.Y),
		dirty:      true,
	}
}

func (c *Chunk) Dims() coord.Dims { return c.dims }

func (c *Chunk) Type(i int) byte { return c.types[i] }

func (c *Chunk) SetType(i int, t byte) {
	c.types[i] = t
	c.dirty = true
}

func (c *Chunk) Health(i int) byte { return c.health[i] }

func (c *Chunk) SetHealth(i int, h byte) {
	c.health[i] = h
	c.dirty = true
}

func (c *Chunk) SunColor(i int) byte       { return c.sunColors[i] }
func (c *Chunk) SetSunColor(i int, v byte) { c.sunColors[i] = v }
func (c *Chunk) Explored(i int) bool       { return c.explored[i] }
func (c *Chunk) SetExplored(i int, v bool) { c.explored[i] = v }
func (c *Chunk) Ramp(i int) RampType       { return c.ramps[i] }
func (c *Chunk) SetRamp(i int, v RampType) { c.ramps[i] = v }
func (c *Chunk) Water(i int) WaterCell     { return c.water[i] }

func (c *Chunk) SetWater(i int, v WaterCell) {
	c.water[i] = v
	c.dirty = true
}

func (c *Chunk) OccupiedCount(y int) int   { return c.occupied[y] }
func (c *Chunk) AddOccupied(y, delta int)  { c.occupied[y] += delta }
func (c *Chunk) LiquidCount(y int) int     { return c.liquid[y] }
func (c *Chunk) AddLiquid(y, delta int)    { c.liquid[y] += delta }
func (c *Chunk) SliceHasVoxels(y int) bool { return c.occupied[y] > 0 }
func (c *Chunk) SliceHasLiquid(y int) bool { return c.liquid[y] > 0 }

// SliceValid reports whether the render slice cache for y can be consumed.
func (c *Chunk) SliceValid(y int) bool { return c.sliceValid[y] }

// SliceCache returns the stored artifact for y and whether it is still valid.
func (c *Chunk) SliceCache(y int) (any, bool) {
	if !c.sliceValid[y] {
		return nil, false
	}
	return c.sliceCache[y], true
}

// StoreSlice records a freshly rebuilt artifact. A nil artifact is a valid
// rebuild of an empty slice.
func (c *Chunk) StoreSlice(y int, v any) {
	c.sliceCache[y] = v
	c.sliceValid[y] = true
}

func (c *Chunk) InvalidateSlice(y int) {
	c.sliceCache[y] = nil
	c.sliceValid[y] = false
}

func (c *Chunk) InvalidateAll() {
	for y := range c.sliceValid {
		c.InvalidateSlice(y)
	}
}

// Recount recomputes both per-slice counters from the raw arrays. Loaders call
// it after filling a chunk in bulk.
func (c *Chunk) Recount() {
	for y := 0; y < c.dims.Y; y++ {
		c.occupied[y], c.liquid[y] = c.CountSlice(y)
	}
}

// CountSlice scans slice y and returns its live occupied and liquid counts.
func (c *Chunk) CountSlice(y int) (occupied, liquid int) {
	lo, hi := c.dims.SliceRange(y)
	for i := lo; i < hi; i++ {
		if c.types[i] != 0 {
			occupied++
		}
		if c.water[i].HasLiquid() {
			liquid++
		}
	}
	return occupied, liquid
}

// SliceTypes copies the raw type ids of slice y.
func (c *Chunk) SliceTypes(y int) []byte {
	lo, hi := c.dims.SliceRange(y)
	out := make([]byte, hi-lo)
	copy(out, c.types[lo:hi])
	return out
}

// Digest hashes type, health and liquid data. It is cached until the next raw
// write to one of those arrays.
func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		h.Write(c.types)
		h.Write(c.health)
		var tmp [2]byte
		for _, w := range c.water {
			tmp[0] = byte(w.Type)
			tmp[1] = w.Level
			h.Write(tmp[:])
		}
		var dims [12]byte
		binary.LittleEndian.PutUint32(dims[0:], uint32(c.dims.X))
		binary.LittleEndian.PutUint32(dims[4:], uint32(c.dims.Y))
		binary.LittleEndian.PutUint32(dims[8:], uint32(c.dims.Z))
		h.Write(dims[:])
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}
