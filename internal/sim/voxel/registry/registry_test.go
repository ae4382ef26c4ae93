package registry

import (
	"errors"
	"testing"

	"voxelcore.ai/internal/sim/voxel/chunk"
	"voxelcore.ai/internal/sim/voxel/coord"
)

func TestRegistry_InsertGetRemove(t *testing.T) {
	d := coord.Dims{X: 4, Y: 4, Z: 4}
	r := New(d)

	cc := coord.ChunkCoordinate{X: -1, Z: 2}
	ch := chunk.New(cc, d)
	if err := r.Insert(ch); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, ok := r.Get(cc)
	if !ok || got != ch {
		t.Fatalf("Get: got %p,%v want %p", got, ok, ch)
	}
	if _, ok := r.Get(coord.ChunkCoordinate{}); ok {
		t.Fatalf("expected absent chunk at origin")
	}

	if err := r.Insert(chunk.New(cc, d)); !errors.Is(err, ErrChunkExists) {
		t.Fatalf("duplicate insert: got %v", err)
	}
	if err := r.Insert(chunk.New(coord.ChunkCoordinate{X: 9}, coord.Dims{X: 2, Y: 4, Z: 4})); !errors.Is(err, ErrDimsMismatch) {
		t.Fatalf("dims mismatch insert: got %v", err)
	}

	if !r.Remove(cc) {
		t.Fatalf("Remove should report loaded chunk")
	}
	if r.Remove(cc) {
		t.Fatalf("second Remove should report absent chunk")
	}
	if r.Len() != 0 {
		t.Fatalf("Len: got %d want 0", r.Len())
	}
}

func TestRegistry_NeighborAndKeys(t *testing.T) {
	d := coord.Dims{X: 4, Y: 4, Z: 4}
	r := New(d)
	for _, c := range []coord.ChunkCoordinate{{X: 1}, {X: 0}, {X: 0, Z: -1}} {
		if err := r.Insert(chunk.New(c, d)); err != nil {
			t.Fatalf("Insert %v: %v", c, err)
		}
	}

	n, ok := r.Neighbor(coord.ChunkCoordinate{X: 0}, 1, 0, 0)
	if !ok || n.Coord != (coord.ChunkCoordinate{X: 1}) {
		t.Fatalf("east neighbour lookup failed")
	}
	if _, ok := r.Neighbor(coord.ChunkCoordinate{X: 0}, -1, 0, 0); ok {
		t.Fatalf("west neighbour should be absent")
	}

	keys := r.Keys()
	want := []coord.ChunkCoordinate{{X: 0, Z: -1}, {X: 0}, {X: 1}}
	if len(keys) != len(want) {
		t.Fatalf("Keys: got %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("Keys[%d]: got %v want %v", i, keys[i], want[i])
		}
	}
}
