package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"voxelcore.ai/internal/sim/catalogs"
	"voxelcore.ai/internal/sim/tuning"
	"voxelcore.ai/internal/sim/world"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "world.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSQLiteIndex_MutationsAndChunkEvents(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	entries := []world.AuditEntry{
		{Seq: 1, Time: now, WorldID: "w", Action: world.AuditLoadChunk, Chunk: [3]int{0, 0, 0}, Invalidated: 128},
		{Seq: 2, Time: now, WorldID: "w", Action: world.AuditSetType, Pos: [3]int{3, 4, 5}, From: 0, To: 2, Delta: 1, Invalidated: 2},
		{Seq: 3, Time: now, WorldID: "w", Action: world.AuditSetHealth, Pos: [3]int{3, 4, 5}, From: 30, To: 10},
		{Seq: 4, Time: now, WorldID: "w", Action: world.AuditSetType, Pos: [3]int{9, 9, 9}, From: 0, To: 1, Delta: 1},
		{Seq: 5, Time: now, WorldID: "w", Action: world.AuditUnloadChunk, Chunk: [3]int{0, 0, 0}},
	}
	for _, e := range entries {
		if err := idx.WriteAudit(e); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	n, err := idx.MutationCount(ctx, "")
	if err != nil || n != 3 {
		t.Fatalf("MutationCount(all) = %d, %v", n, err)
	}
	n, err = idx.MutationCount(ctx, world.AuditSetType)
	if err != nil || n != 2 {
		t.Fatalf("MutationCount(SET_TYPE) = %d, %v", n, err)
	}

	at, err := idx.MutationsAt(ctx, [3]int{3, 4, 5})
	if err != nil {
		t.Fatalf("MutationsAt: %v", err)
	}
	if len(at) != 2 || at[0].Action != world.AuditSetType || at[1].Action != world.AuditSetHealth || at[1].To != 10 {
		t.Fatalf("MutationsAt = %+v", at)
	}

	evs, err := idx.ChunkEvents(ctx, [3]int{0, 0, 0})
	if err != nil {
		t.Fatalf("ChunkEvents: %v", err)
	}
	if len(evs) != 2 || evs[0].Action != world.AuditLoadChunk || evs[0].Invalidated != 128 || evs[1].Seq != 5 {
		t.Fatalf("ChunkEvents = %+v", evs)
	}

	if st := idx.Stats(); st.Written != 5 {
		t.Fatalf("Written = %d", st.Written)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	for name, want := range map[string]string{
		"voxel_types":   cats.Voxels.DefsDigest,
		"voxel_palette": cats.Voxels.PaletteDigest,
	} {
		got, err := idx.CatalogDigest(ctx, name)
		if err != nil {
			t.Fatalf("CatalogDigest(%s): %v", name, err)
		}
		if got != want {
			t.Fatalf("%s digest = %s, want %s", name, got, want)
		}
	}
	if d, err := idx.CatalogDigest(ctx, "tuning"); err != nil || len(d) != 64 {
		t.Fatalf("tuning digest = %q, %v", d, err)
	}
}

func TestSQLiteIndex_WritesAfterCloseAreIgnored(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.WriteAudit(world.AuditEntry{Seq: 1}); err != nil {
		t.Fatalf("WriteAudit after close: %v", err)
	}
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("Flush after close: %v", err)
	}
}
