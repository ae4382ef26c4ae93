package coord

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestChunkAndLocalOf_NegativeCoordinates(t *testing.T) {
	d := Dims{X: 16, Y: 128, Z: 16}

	g := GlobalVoxelCoordinate{X: -1, Y: -1, Z: -17}
	cc := d.ChunkOf(g)
	if cc != (ChunkCoordinate{X: -1, Y: -1, Z: -2}) {
		t.Fatalf("ChunkOf: got %+v", cc)
	}
	l := d.LocalOf(g)
	if l != (LocalCoordinate{X: 15, Y: 127, Z: 15}) {
		t.Fatalf("LocalOf: got %+v", l)
	}
	if back := d.Global(cc, l); back != g {
		t.Fatalf("Global: got %+v want %+v", back, g)
	}
}

func TestLocalOf_AlwaysInBounds(t *testing.T) {
	d := Dims{X: 16, Y: 8, Z: 4}
	for x := -40; x <= 40; x += 3 {
		for y := -20; y <= 20; y += 5 {
			for z := -9; z <= 9; z++ {
				g := GlobalVoxelCoordinate{X: x, Y: y, Z: z}
				l := d.LocalOf(g)
				if !d.Contains(l) {
					t.Fatalf("LocalOf(%v) out of bounds: %+v", g, l)
				}
				if d.Global(d.ChunkOf(g), l) != g {
					t.Fatalf("round trip broken for %v", g)
				}
			}
		}
	}
}

func TestFlatIndex_Bijective(t *testing.T) {
	d := Dims{X: 4, Y: 3, Z: 5}
	seen := make([]bool, d.Volume())
	for y := 0; y < d.Y; y++ {
		for z := 0; z < d.Z; z++ {
			for x := 0; x < d.X; x++ {
				l := LocalCoordinate{X: x, Y: y, Z: z}
				i := d.FlatIndex(l)
				if i < 0 || i >= d.Volume() {
					t.Fatalf("index %d out of range for %+v", i, l)
				}
				if seen[i] {
					t.Fatalf("index %d reused", i)
				}
				seen[i] = true
				if got := d.LocalAt(i); got != l {
					t.Fatalf("LocalAt(%d): got %+v want %+v", i, got, l)
				}
				lo, hi := d.SliceRange(y)
				if i < lo || i >= hi {
					t.Fatalf("index %d outside slice %d range [%d,%d)", i, y, lo, hi)
				}
			}
		}
	}
}

func TestOnBoundary(t *testing.T) {
	d := Dims{X: 16, Y: 128, Z: 16}
	if f := d.OnBoundary(LocalCoordinate{X: 7, Y: 3, Z: 7}); f != 0 {
		t.Fatalf("interior voxel reported faces %v", f)
	}
	f := d.OnBoundary(LocalCoordinate{X: 0, Y: 3, Z: 15})
	if !f.Has(FaceNegX) || !f.Has(FacePosZ) || f.Has(FacePosX) || f.Has(FaceNegZ) {
		t.Fatalf("corner faces: got %b", f)
	}
	if FaceNegX.Offset() != (ChunkCoordinate{X: -1}) || FacePosZ.Offset() != (ChunkCoordinate{Z: 1}) {
		t.Fatalf("unexpected face offsets")
	}
}

func TestDimsValidate(t *testing.T) {
	if err := Default.Validate(); err != nil {
		t.Fatalf("default dims: %v", err)
	}
	if err := (Dims{X: 16, Y: 0, Z: 16}).Validate(); err == nil {
		t.Fatalf("expected error for zero height")
	}
}

func TestNeighborsAndBox(t *testing.T) {
	g := GlobalVoxelCoordinate{X: 1, Y: 2, Z: 3}
	if n := ManhattanNeighbors2D(g); len(n) != 4 || n[0] != (GlobalVoxelCoordinate{X: 0, Y: 2, Z: 3}) {
		t.Fatalf("2D neighbours: %+v", n)
	}
	if n := ManhattanNeighbors(g); len(n) != 6 {
		t.Fatalf("3D neighbours: got %d", len(n))
	}

	count := 0
	CoordinatesInBox(GlobalVoxelCoordinate{}, GlobalVoxelCoordinate{X: 1, Y: 1, Z: 2}, func(GlobalVoxelCoordinate) bool {
		count++
		return true
	})
	if count != 12 {
		t.Fatalf("box count: got %d want 12", count)
	}

	bb := GlobalVoxelCoordinate{X: -2, Y: 5, Z: 0}.BoundingBox()
	if bb.Min != (mgl32.Vec3{-2, 5, 0}) || bb.Max != (mgl32.Vec3{-1, 6, 1}) {
		t.Fatalf("bounding box: %+v", bb)
	}
	if !bb.Contains(bb.Center()) {
		t.Fatalf("box should contain its center")
	}
}
