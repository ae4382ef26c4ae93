package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxelcore.ai/internal/persistence/indexdb"
	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/voxel"
	"voxelcore.ai/internal/sim/voxel/coord"
	"voxelcore.ai/internal/sim/world"
)

func TestFlatChunk_Layers(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	d := coord.Dims{X: 4, Y: 8, Z: 4}
	ch := flatChunk(coord.ChunkCoordinate{X: 1}, d, &cats.Voxels)
	ch.Recount()
	for y := 0; y < len(flatLayers); y++ {
		if ch.OccupiedCount(y) != d.SliceSize() {
			t.Fatalf("slice %d occupied = %d", y, ch.OccupiedCount(y))
		}
	}
	if ch.OccupiedCount(len(flatLayers)) != 0 {
		t.Fatalf("air slice occupied = %d", ch.OccupiedCount(len(flatLayers)))
	}
	bedrock, _ := cats.Voxels.ByName("BEDROCK")
	if ch.Type(0) != bedrock.ID || ch.Health(0) != bedrock.StartingHealth {
		t.Fatalf("bottom voxel = %d/%d", ch.Type(0), ch.Health(0))
	}

	above := flatChunk(coord.ChunkCoordinate{Y: 1}, d, &cats.Voxels)
	above.Recount()
	for y := 0; y < d.Y; y++ {
		if above.OccupiedCount(y) != 0 {
			t.Fatalf("upper chunk slice %d occupied", y)
		}
	}
}

func TestPreloadChunks(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := world.New(world.Config{ID: "t", Dims: coord.Dims{X: 4, Y: 8, Z: 4}, View: voxel.View{MaxViewingLevel: 8}}, &cats.Voxels)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(context.Background()) }()
	defer func() {
		w.Close()
		<-runErr
	}()

	n, err := preloadChunks(context.Background(), w, 1)
	if err != nil || n != 9 {
		t.Fatalf("preloadChunks = %d, %v", n, err)
	}
	if got := w.Metrics().LoadedChunks; got != 9 {
		t.Fatalf("LoadedChunks = %d", got)
	}
	if n, _ := preloadChunks(context.Background(), w, -1); n != 0 {
		t.Fatalf("negative radius loaded %d", n)
	}
}

func TestWriteMetrics(t *testing.T) {
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	var buf bytes.Buffer
	writeMetrics(&buf, "w1", world.WorldMetrics{LoadedChunks: 3, Mutations: 7, TypeChanges: 4}, 5, idx)
	out := buf.String()
	for _, want := range []string{
		`voxelcore_world_loaded_chunks{world="w1"} 3`,
		`voxelcore_world_mutations_total{world="w1"} 7`,
		`voxelcore_world_type_changes_total{world="w1"} 4`,
		`voxelcore_ws_dropped_invalidations_total{world="w1"} 5`,
		`voxelcore_world_queue_depth{world="w1",queue="inbox"} 0`,
		`voxelcore_index_written_total{world="w1"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	writeMetrics(&buf, "w1", world.WorldMetrics{}, 0, nil)
	if strings.Contains(buf.String(), "voxelcore_index_") {
		t.Fatalf("index metrics without an index:\n%s", buf.String())
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	if !isLoopbackRemote("127.0.0.1:1234") || isLoopbackRemote("192.168.1.1:80") {
		t.Fatalf("isLoopbackRemote mismatch")
	}
}

func TestOpenRuntimeIndex_Disabled(t *testing.T) {
	idx, err := openRuntimeIndex(t.TempDir(), "w", true, nil)
	if err != nil || idx != nil {
		t.Fatalf("disabled index = %v, %v", idx, err)
	}
	t.Setenv("VC_INDEX_BACKEND", "d1")
	t.Setenv("VC_INDEX_D1_INGEST_URL", "")
	if _, err := openRuntimeIndex(t.TempDir(), "w", false, nil); err == nil {
		t.Fatalf("expected error for d1 without endpoint")
	}
	t.Setenv("VC_INDEX_BACKEND", "bogus")
	if _, err := openRuntimeIndex(t.TempDir(), "w", false, nil); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestDrainInvalidations_WritesEventsBufferedAtShutdown(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := world.New(world.Config{ID: "t", Dims: coord.Dims{X: 4, Y: 8, Z: 4}, SubscriberBuffer: 16}, &cats.Voxels)
	if err != nil {
		t.Fatalf("world: %v", err)
	}

	gate := make(chan struct{})
	var written int
	drain := func(ctx context.Context, ch <-chan world.InvalidationEvent) error {
		<-gate
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case _, ok := <-ch:
				if !ok {
					return nil
				}
				written++
			}
		}
	}
	drained := drainInvalidations(w, drain, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()
	n, err := preloadChunks(ctx, w, 1)
	if err != nil {
		t.Fatalf("preloadChunks: %v", err)
	}

	// Shut down with every event still buffered.
	cancel()
	<-runErr
	close(gate)
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatalf("drain did not finish")
	}
	if written != n {
		t.Fatalf("written = %d, want %d", written, n)
	}
}
