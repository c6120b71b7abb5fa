package world

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/PowerMeep/GBA-PK-MMO/internal/protocol"
)

// seedFile is the TOML shape of an adjacency seed file:
//
//	[[pair]]
//	a = "M00001"
//	b = "M00002"
type seedFile struct {
	Pair []seedPair `toml:"pair"`
}

type seedPair struct {
	A string `toml:"a"`
	B string `toml:"b"`
}

// LoadSeedFile reads a TOML adjacency seed file and marks every listed
// pair walkable in graph. It does not touch notWalkable and never
// overrides a pair already marked non-walkable — it only gives the graph
// a non-empty starting point; all of Graph's runtime rules still govern
// everything learned afterward.
func LoadSeedFile(path string, graph *Graph) (int, error) {
	var f seedFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return 0, fmt.Errorf("world: decode adjacency seed file %s: %w", path, err)
	}
	for _, p := range f.Pair {
		graph.SeedWalkable(protocol.MapId(p.A), protocol.MapId(p.B))
	}
	return len(f.Pair), nil
}
