// Package coord maps world-space voxel positions onto chunk-local storage.
//
// Every integer coordinate is valid: chunk coordinates use floor division and
// local coordinates use a non-negative remainder, so negative positions land
// in the chunk "to the left" rather than being rejected.
package coord

import (
	"fmt"

	"voxelcore.ai/internal/sim/mathx"
)

// Dims is the fixed size of every chunk in a world.
type Dims struct {
	X int
	Y int
	Z int
}

// Default matches the shipped tuning.yaml.
var Default = Dims{X: 16, Y: 128, Z: 16}

func (d Dims) Validate() error {
	if d.X <= 0 || d.Y <= 0 || d.Z <= 0 {
		return fmt.Errorf("chunk dims must be positive: got %dx%dx%d", d.X, d.Y, d.Z)
	}
	return nil
}

func (d Dims) Volume() int    { return d.X * d.Y * d.Z }
func (d Dims) SliceSize() int { return d.X * d.Z }

type GlobalVoxelCoordinate struct {
	X, Y, Z int
}

type ChunkCoordinate struct {
	X, Y, Z int
}

// LocalCoordinate is always inside [0,X) x [0,Y) x [0,Z) of its Dims.
type LocalCoordinate struct {
	X, Y, Z int
}

func (g GlobalVoxelCoordinate) String() string {
	return fmt.Sprintf("(%d, %d, %d)", g.X, g.Y, g.Z)
}

func (c ChunkCoordinate) String() string {
	return fmt.Sprintf("chunk(%d, %d, %d)", c.X, c.Y, c.Z)
}

func (g GlobalVoxelCoordinate) Offset(dx, dy, dz int) GlobalVoxelCoordinate {
	return GlobalVoxelCoordinate{X: g.X + dx, Y: g.Y + dy, Z: g.Z + dz}
}

func (c ChunkCoordinate) Offset(dx, dy, dz int) ChunkCoordinate {
	return ChunkCoordinate{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

func (d Dims) ChunkOf(g GlobalVoxelCoordinate) ChunkCoordinate {
	return ChunkCoordinate{
		X: mathx.FloorDiv(g.X, d.X),
		Y: mathx.FloorDiv(g.Y, d.Y),
		Z: mathx.FloorDiv(g.Z, d.Z),
	}
}

func (d Dims) LocalOf(g GlobalVoxelCoordinate) LocalCoordinate {
	return LocalCoordinate{
		X: mathx.Mod(g.X, d.X),
		Y: mathx.Mod(g.Y, d.Y),
		Z: mathx.Mod(g.Z, d.Z),
	}
}

// Global is the inverse of ChunkOf/LocalOf.
func (d Dims) Global(c ChunkCoordinate, l LocalCoordinate) GlobalVoxelCoordinate {
	return GlobalVoxelCoordinate{
		X: c.X*d.X + l.X,
		Y: c.Y*d.Y + l.Y,
		Z: c.Z*d.Z + l.Z,
	}
}

// Origin is the global position of local (0,0,0) in chunk c.
func (d Dims) Origin(c ChunkCoordinate) GlobalVoxelCoordinate {
	return d.Global(c, LocalCoordinate{})
}

// FlatIndex lays voxels out slice-major: x fastest, then z, then y. A whole
// horizontal slice is the contiguous range [y*X*Z, (y+1)*X*Z).
func (d Dims) FlatIndex(l LocalCoordinate) int {
	return (l.Y*d.Z+l.Z)*d.X + l.X
}

func (d Dims) LocalAt(index int) LocalCoordinate {
	x := index % d.X
	rest := index / d.X
	return LocalCoordinate{X: x, Y: rest / d.Z, Z: rest % d.Z}
}

// SliceRange returns the flat index range [lo, hi) of slice y.
func (d Dims) SliceRange(y int) (lo, hi int) {
	lo = y * d.SliceSize()
	return lo, lo + d.SliceSize()
}

func (d Dims) Contains(l LocalCoordinate) bool {
	return l.X >= 0 && l.X < d.X &&
		l.Y >= 0 && l.Y < d.Y &&
		l.Z >= 0 && l.Z < d.Z
}
