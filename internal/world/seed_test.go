package world

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/PowerMeep/GBA-PK-MMO/internal/protocol"
)

func TestLoadSeedFileMarksWalkableOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.toml")
	contents := `
[[pair]]
a = "M00001"
b = "M00002"

[[pair]]
a = "M00002"
b = "M00003"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	g := NewGraph(zap.NewNop())
	n, err := LoadSeedFile(path, g)
	if err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pairs loaded, got %d", n)
	}
	if !g.IsWalkable("M00001", "M00002") || !g.IsWalkable("M00002", "M00003") {
		t.Fatal("expected both seeded pairs to be walkable")
	}
	if g.IsNotWalkable("M00001", "M00002") {
		t.Fatal("seeding must never mark a pair non-walkable")
	}
}

func TestLoadSeedFileNeverOverridesNotWalkable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.toml")
	contents := `
[[pair]]
a = "M00001"
b = "M00002"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}

	g := NewGraph(zap.NewNop())
	g.ObserveTransition("M00002", "M00001", protocol.TransitionFadeout)

	if _, err := LoadSeedFile(path, g); err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if g.IsWalkable("M00001", "M00002") {
		t.Fatal("seeding must not override a pair already marked non-walkable")
	}
	if !g.IsNotWalkable("M00001", "M00002") {
		t.Fatal("expected pair to remain non-walkable after seeding")
	}
}

func TestLoadSeedFileMissingPath(t *testing.T) {
	g := NewGraph(zap.NewNop())
	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.toml"), g); err == nil {
		t.Fatal("expected an error loading a nonexistent seed file")
	}
}
