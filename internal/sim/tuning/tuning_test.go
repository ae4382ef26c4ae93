package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"voxelcore.ai/internal/sim/voxel/coord"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_OverridesDefaults(t *testing.T) {
	p := writeFile(t, "chunk_size: [32, 64, 32]\nmax_viewing_level: 40\nfog_of_war: false\n")
	tune, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := tune.Dims(); got != (coord.Dims{X: 32, Y: 64, Z: 32}) {
		t.Fatalf("dims: got %+v", got)
	}
	if tune.MaxViewingLevel != 40 || tune.FogOfWar {
		t.Fatalf("view settings: %+v", tune)
	}
	if tune.InboxSize != Defaults().InboxSize {
		t.Fatalf("inbox_size should keep its default, got %d", tune.InboxSize)
	}
}

func TestLoad_RejectsBadChunkSize(t *testing.T) {
	for _, body := range []string{
		"chunk_size: [16, 16]\n",
		"chunk_size: [16, 0, 16]\n",
		"chunk_size: nope\n",
	} {
		if _, err := Load(writeFile(t, body)); err == nil {
			t.Fatalf("expected error for %q", body)
		}
	}
}

func TestDefaults_Valid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if Defaults().Dims() != coord.Default {
		t.Fatalf("default dims mismatch")
	}
}
