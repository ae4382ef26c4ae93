package world

import (
	"context"
	"fmt"

	"voxelcore.ai/internal/sim/voxel/chunk"
	"voxelcore.ai/internal/sim/voxel/coord"
)

// RebuildFunc builds the render artifact for slice y of ch. It runs on the
// world loop goroutine and may read ch and its neighbours through ch only for
// the duration of the call.
type RebuildFunc func(ch *chunk.Chunk, y int) any

func (w *World) slice(cc coord.ChunkCoordinate, y int) (*chunk.Chunk, error) {
	ch, ok := w.reg.Get(cc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChunkNotLoaded, cc)
	}
	if y < 0 || y >= ch.Dims().Y {
		return nil, fmt.Errorf("%w: %d", ErrSliceOutOfRange, y)
	}
	return ch, nil
}

func (w *World) SliceValid(ctx context.Context, cc coord.ChunkCoordinate, y int) (bool, error) {
	var (
		valid bool
		err   error
	)
	qerr := w.exec(ctx, func() {
		var ch *chunk.Chunk
		if ch, err = w.slice(cc, y); err == nil {
			valid = ch.SliceValid(y)
		}
	})
	if qerr != nil {
		return false, qerr
	}
	return valid, err
}

// RebuildSlice returns the cached artifact for slice y, calling build first if
// the cache is invalid. rebuilt reports whether build ran.
func (w *World) RebuildSlice(ctx context.Context, cc coord.ChunkCoordinate, y int, build RebuildFunc) (artifact any, rebuilt bool, err error) {
	qerr := w.exec(ctx, func() {
		var ch *chunk.Chunk
		if ch, err = w.slice(cc, y); err != nil {
			return
		}
		if v, ok := ch.SliceCache(y); ok {
			artifact = v
			return
		}
		artifact = build(ch, y)
		ch.StoreSlice(y, artifact)
		rebuilt = true
	})
	if qerr != nil {
		return nil, false, qerr
	}
	return artifact, rebuilt, err
}

// SliceCounts returns the occupied and liquid counters of slice y.
func (w *World) SliceCounts(ctx context.Context, cc coord.ChunkCoordinate, y int) (occupied, liquid int, err error) {
	qerr := w.exec(ctx, func() {
		var ch *chunk.Chunk
		if ch, err = w.slice(cc, y); err == nil {
			occupied, liquid = ch.OccupiedCount(y), ch.LiquidCount(y)
		}
	})
	if qerr != nil {
		return 0, 0, qerr
	}
	return occupied, liquid, err
}

// SliceTypes copies the type ids of slice y, x fastest then z.
func (w *World) SliceTypes(ctx context.Context, cc coord.ChunkCoordinate, y int) ([]byte, error) {
	var (
		out []byte
		err error
	)
	qerr := w.exec(ctx, func() {
		var ch *chunk.Chunk
		if ch, err = w.slice(cc, y); err == nil {
			out = ch.SliceTypes(y)
		}
	})
	if qerr != nil {
		return nil, qerr
	}
	return out, err
}

// ChunkDigest returns the sha256 of a loaded chunk's raw arrays.
func (w *World) ChunkDigest(ctx context.Context, cc coord.ChunkCoordinate) ([32]byte, error) {
	var (
		sum [32]byte
		err error
	)
	qerr := w.exec(ctx, func() {
		if err = w.loaded(cc); err != nil {
			return
		}
		ch, _ := w.reg.Get(cc)
		sum = ch.Digest()
	})
	if qerr != nil {
		return sum, qerr
	}
	return sum, err
}

func (w *World) OccupiedCount(ctx context.Context, cc coord.ChunkCoordinate, y int) (int, error) {
	occ, _, err := w.SliceCounts(ctx, cc, y)
	return occ, err
}

func (w *World) LiquidCount(ctx context.Context, cc coord.ChunkCoordinate, y int) (int, error) {
	_, liq, err := w.SliceCounts(ctx, cc, y)
	return liq, err
}

// SliceSnapshot is slice y of one chunk read in a single request.
type SliceSnapshot struct {
	Types    []byte
	Valid    bool
	Occupied int
	Liquid   int
}

func (w *World) Slice(ctx context.Context, cc coord.ChunkCoordinate, y int) (SliceSnapshot, error) {
	var (
		snap SliceSnapshot
		err  error
	)
	qerr := w.exec(ctx, func() {
		var ch *chunk.Chunk
		if ch, err = w.slice(cc, y); err != nil {
			return
		}
		snap = SliceSnapshot{
			Types:    ch.SliceTypes(y),
			Valid:    ch.SliceValid(y),
			Occupied: ch.OccupiedCount(y),
			Liquid:   ch.LiquidCount(y),
		}
	})
	if qerr != nil {
		return SliceSnapshot{}, qerr
	}
	return snap, err
}
