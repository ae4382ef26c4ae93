package chunk

import (
	"testing"

	"voxelcore.ai/internal/sim/voxel/coord"
)

func TestNew_AllocatesFixedArrays(t *testing.T) {
	d := coord.Dims{X: 4, Y: 6, Z: 3}
	ch := New(coord.ChunkCoordinate{X: 1}, d)
	if ch.Dims() != d {
		t.Fatalf("dims: got %+v", ch.Dims())
	}
	last := d.Volume() - 1
	ch.SetType(last, 9)
	ch.SetWater(last, WaterCell{Type: LiquidLava, Level: 3})
	if ch.Type(last) != 9 || ch.Water(last).Type != LiquidLava {
		t.Fatalf("raw write at last index lost")
	}
	for y := 0; y < d.Y; y++ {
		if ch.SliceValid(y) {
			t.Fatalf("slice %d should start invalid", y)
		}
	}
}

func TestSliceCache_StoreAndInvalidate(t *testing.T) {
	ch := New(coord.ChunkCoordinate{}, coord.Dims{X: 2, Y: 4, Z: 2})

	ch.StoreSlice(2, "mesh-2")
	v, ok := ch.SliceCache(2)
	if !ok || v != "mesh-2" {
		t.Fatalf("SliceCache(2): got %v,%v", v, ok)
	}

	// nil is a legitimate rebuild result for an empty slice.
	ch.StoreSlice(1, nil)
	if !ch.SliceValid(1) {
		t.Fatalf("nil artifact should still mark the slice valid")
	}

	ch.InvalidateSlice(2)
	if _, ok := ch.SliceCache(2); ok {
		t.Fatalf("slice 2 should be invalid")
	}
	ch.InvalidateAll()
	if ch.SliceValid(1) {
		t.Fatalf("InvalidateAll left slice 1 valid")
	}
}

func TestRecount_MatchesRawArrays(t *testing.T) {
	d := coord.Dims{X: 3, Y: 3, Z: 3}
	ch := New(coord.ChunkCoordinate{}, d)
	ch.SetType(d.FlatIndex(coord.LocalCoordinate{X: 0, Y: 1, Z: 0}), 2)
	ch.SetType(d.FlatIndex(coord.LocalCoordinate{X: 2, Y: 1, Z: 2}), 5)
	ch.SetWater(d.FlatIndex(coord.LocalCoordinate{X: 1, Y: 2, Z: 1}), WaterCell{Type: LiquidWater, Level: 8})

	ch.Recount()
	if got := ch.OccupiedCount(1); got != 2 {
		t.Fatalf("occupied[1]: got %d want 2", got)
	}
	if got := ch.LiquidCount(2); got != 1 {
		t.Fatalf("liquid[2]: got %d want 1", got)
	}
	if ch.SliceHasVoxels(0) || ch.SliceHasLiquid(1) {
		t.Fatalf("unexpected presence in empty slices")
	}
	if got := ch.SliceTypes(1); len(got) != d.SliceSize() || got[0] != 2 || got[8] != 5 {
		t.Fatalf("SliceTypes(1): %v", got)
	}
}

func TestDigest_ChangesOnRawWrite(t *testing.T) {
	ch := New(coord.ChunkCoordinate{}, coord.Dims{X: 2, Y: 2, Z: 2})
	before := ch.Digest()
	if again := ch.Digest(); again != before {
		t.Fatalf("digest not stable without writes")
	}
	ch.SetHealth(3, 40)
	if after := ch.Digest(); after == before {
		t.Fatalf("digest did not change after health write")
	}
}
