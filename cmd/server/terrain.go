package main

import (
	"context"

	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/voxel/chunk"
	"voxelcore.ai/internal/sim/voxel/coord"
	"voxelcore.ai/internal/sim/world"
)

// flatLayers is the column used for preloaded ground chunks, bottom up.
var flatLayers = []string{"BEDROCK", "STONE", "STONE", "STONE", "DIRT", "GRASS"}

// flatChunk builds a chunk at cc. Only the y=0 chunk row gets ground; chunks
// above or below it are left empty. Layer names missing from the catalog are
// skipped.
func flatChunk(cc coord.ChunkCoordinate, d coord.Dims, types *catalogs.VoxelCatalog) *chunk.Chunk {
	ch := chunk.New(cc, d)
	if cc.Y != 0 {
		return ch
	}
	for y, name := range flatLayers {
		if y >= d.Y {
			break
		}
		vt, err := types.ByName(name)
		if err != nil {
			continue
		}
		lo, hi := d.SliceRange(y)
		for i := lo; i < hi; i++ {
			ch.SetType(i, vt.ID)
			ch.SetHealth(i, vt.StartingHealth)
		}
	}
	return ch
}

// preloadChunks loads the (2r+1)^2 ground chunks around the origin.
func preloadChunks(ctx context.Context, w *world.World, radius int) (int, error) {
	if radius < 0 {
		return 0, nil
	}
	n := 0
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			cc := coord.ChunkCoordinate{X: x, Z: z}
			if err := w.LoadChunk(ctx, flatChunk(cc, w.Dims(), w.Types())); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
