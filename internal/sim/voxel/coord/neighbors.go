package coord

import "github.com/go-gl/mathgl/mgl32"

// Face is one of the four horizontal chunk faces.
type Face uint8

const (
	FaceNegX Face = 1 << iota
	FacePosX
	FaceNegZ
	FacePosZ
)

// HorizontalFaces lists faces in the order invalidation visits them.
var HorizontalFaces = [4]Face{FaceNegX, FacePosX, FaceNegZ, FacePosZ}

// Offset is the chunk-coordinate step across the face.
func (f Face) Offset() ChunkCoordinate {
	switch f {
	case FaceNegX:
		return ChunkCoordinate{X: -1}
	case FacePosX:
		return ChunkCoordinate{X: 1}
	case FaceNegZ:
		return ChunkCoordinate{Z: -1}
	case FacePosZ:
		return ChunkCoordinate{Z: 1}
	}
	return ChunkCoordinate{}
}

func (f Face) String() string {
	switch f {
	case FaceNegX:
		return "-X"
	case FacePosX:
		return "+X"
	case FaceNegZ:
		return "-Z"
	case FacePosZ:
		return "+Z"
	}
	return "?"
}

// OnBoundary returns the set of horizontal faces l touches, as a bitmask.
func (d Dims) OnBoundary(l LocalCoordinate) Face {
	var f Face
	if l.X == 0 {
		f |= FaceNegX
	}
	if l.X == d.X-1 {
		f |= FacePosX
	}
	if l.Z == 0 {
		f |= FaceNegZ
	}
	if l.Z == d.Z-1 {
		f |= FacePosZ
	}
	return f
}

func (f Face) Has(o Face) bool { return f&o != 0 }

var manhattan2D = [4][3]int{{-1, 0, 0}, {1, 0, 0}, {0, 0, -1}, {0, 0, 1}}

var manhattan3D = [6][3]int{{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}}

// ManhattanNeighbors2D returns the four horizontal face neighbours of g.
func ManhattanNeighbors2D(g GlobalVoxelCoordinate) []GlobalVoxelCoordinate {
	out := make([]GlobalVoxelCoordinate, 0, len(manhattan2D))
	for _, o := range manhattan2D {
		out = append(out, g.Offset(o[0], o[1], o[2]))
	}
	return out
}

// ManhattanNeighbors returns the six face neighbours of g.
func ManhattanNeighbors(g GlobalVoxelCoordinate) []GlobalVoxelCoordinate {
	out := make([]GlobalVoxelCoordinate, 0, len(manhattan3D))
	for _, o := range manhattan3D {
		out = append(out, g.Offset(o[0], o[1], o[2]))
	}
	return out
}

// CoordinatesInBox calls fn for every coordinate in the inclusive box
// [lo, hi], y outermost. Iteration stops when fn returns false.
func CoordinatesInBox(lo, hi GlobalVoxelCoordinate, fn func(GlobalVoxelCoordinate) bool) {
	for y := lo.Y; y <= hi.Y; y++ {
		for z := lo.Z; z <= hi.Z; z++ {
			for x := lo.X; x <= hi.X; x++ {
				if !fn(GlobalVoxelCoordinate{X: x, Y: y, Z: z}) {
					return
				}
			}
		}
	}
}

// BoundingBox is an axis-aligned box in world space.
type BoundingBox struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func (b BoundingBox) Contains(p mgl32.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

func (b BoundingBox) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (g GlobalVoxelCoordinate) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(g.X), float32(g.Y), float32(g.Z)}
}

// BoundingBox is the unit cube with g at its minimum corner.
func (g GlobalVoxelCoordinate) BoundingBox() BoundingBox {
	p := g.Vec3()
	return BoundingBox{Min: p, Max: p.Add(mgl32.Vec3{1, 1, 1})}
}
