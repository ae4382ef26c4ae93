// Package registry owns the set of loaded chunks.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"voxelcore.ai/internal/sim/voxel/chunk"
	"voxelcore.ai/internal/sim/voxel/coord"
)

var (
	ErrChunkExists  = errors.New("chunk already registered")
	ErrDimsMismatch = errors.New("chunk dims do not match registry")
)

// Registry maps chunk coordinates to loaded chunks. It is not safe for
// concurrent use; the world loop goroutine is its only user at runtime.
type Registry struct {
	dims   coord.Dims
	chunks map[coord.ChunkCoordinate]*chunk.Chunk
}

func New(dims coord.Dims) *Registry {
	return &Registry{
		dims:   dims,
		chunks: map[coord.ChunkCoordinate]*chunk.Chunk{},
	}
}

func (r *Registry) Dims() coord.Dims { return r.dims }
func (r *Registry) Len() int         { return len(r.chunks) }

// Get returns the chunk at c. A missing chunk is not an error: it means
// nothing is loaded there.
func (r *Registry) Get(c coord.ChunkCoordinate) (*chunk.Chunk, bool) {
	ch, ok := r.chunks[c]
	return ch, ok
}

func (r *Registry) Insert(ch *chunk.Chunk) error {
	if ch == nil {
		return errors.New("nil chunk")
	}
	if ch.Dims() != r.dims {
		return fmt.Errorf("%w: %s has %+v, registry %+v", ErrDimsMismatch, ch.Coord, ch.Dims(), r.dims)
	}
	if _, ok := r.chunks[ch.Coord]; ok {
		return fmt.Errorf("%w: %s", ErrChunkExists, ch.Coord)
	}
	r.chunks[ch.Coord] = ch
	return nil
}

// Remove unloads c and reports whether it was loaded. Handles that cached the
// removed chunk are not touched.
func (r *Registry) Remove(c coord.ChunkCoordinate) bool {
	if _, ok := r.chunks[c]; !ok {
		return false
	}
	delete(r.chunks, c)
	return true
}

func (r *Registry) Neighbor(c coord.ChunkCoordinate, dx, dy, dz int) (*chunk.Chunk, bool) {
	return r.Get(c.Offset(dx, dy, dz))
}

// Keys returns loaded chunk coordinates in a deterministic order.
func (r *Registry) Keys() []coord.ChunkCoordinate {
	keys := make([]coord.ChunkCoordinate, 0, len(r.chunks))
	for k := range r.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		if keys[i].Y != keys[j].Y {
			return keys[i].Y < keys[j].Y
		}
		return keys[i].Z < keys[j].Z
	})
	return keys
}
