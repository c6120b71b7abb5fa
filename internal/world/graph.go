package world

import (
	"go.uber.org/zap"

	"github.com/PowerMeep/GBA-PK-MMO/internal/protocol"
)

// pairKey is an unordered pair of maps, used as a set key for the
// symmetric walkable/notWalkable relations.
type pairKey struct {
	a, b protocol.MapId
}

func makePairKey(a, b protocol.MapId) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// Graph records, from observed client map transitions, which map pairs are
// mutually visible. It is pure in-memory state with monotonic rules: once
// a pair is marked non-walkable it can never walk again for the life of
// the process (see spec.md §9 open question 2 — no repair is attempted).
//
// Graph is not safe for concurrent use on its own; callers serialize
// access through World's mutex.
type Graph struct {
	walkable    map[pairKey]struct{}
	notWalkable map[pairKey]struct{}
	log         *zap.Logger
}

func NewGraph(log *zap.Logger) *Graph {
	return &Graph{
		walkable:    make(map[pairKey]struct{}),
		notWalkable: make(map[pairKey]struct{}),
		log:         log,
	}
}

// ObserveTransition records a client-reported transition between
// currentMap and previousMap. The client's transition flag is unreliable
// (NORMAL even through doors, not always FADEOUT on the way back); the
// asymmetric policy below — promote on NORMAL, demote permanently on
// FADEOUT — converges to a conservative graph at the cost of never
// re-promoting a pair once it's marked non-walkable.
func (g *Graph) ObserveTransition(currentMap, previousMap protocol.MapId, kind protocol.TransitionKind) {
	if currentMap == "" || previousMap == "" || currentMap == previousMap {
		return
	}
	key := makePairKey(currentMap, previousMap)
	if _, blocked := g.notWalkable[key]; blocked {
		return
	}

	switch kind {
	case protocol.TransitionNormal:
		g.walkable[key] = struct{}{}
	case protocol.TransitionFadeout:
		delete(g.walkable, key)
		g.notWalkable[key] = struct{}{}
	default:
		g.log.Info("unknown transition kind, ignoring",
			zap.ByteString("kind", []byte{byte(kind)}),
			zap.String("currentMap", string(currentMap)),
			zap.String("previousMap", string(previousMap)),
		)
	}
}

// SeedWalkable preloads a pair as walkable without treating it as an
// observed player transition (no logging as such, and it never promotes a
// pair that is already non-walkable). Used only by the optional startup
// adjacency seed file.
func (g *Graph) SeedWalkable(a, b protocol.MapId) {
	if a == "" || b == "" || a == b {
		return
	}
	key := makePairKey(a, b)
	if _, blocked := g.notWalkable[key]; blocked {
		return
	}
	g.walkable[key] = struct{}{}
}

// NeighborsOf returns {mapID} ∪ {m | (mapID, m) is walkable} — the set of
// maps whose occupants should see and be seen by occupants of mapID.
func (g *Graph) NeighborsOf(mapID protocol.MapId) map[protocol.MapId]struct{} {
	neighbors := map[protocol.MapId]struct{}{mapID: {}}
	for key := range g.walkable {
		switch mapID {
		case key.a:
			neighbors[key.b] = struct{}{}
		case key.b:
			neighbors[key.a] = struct{}{}
		}
	}
	return neighbors
}

// IsWalkable reports whether a and b are currently in the walkable
// relation (for tests and diagnostics).
func (g *Graph) IsWalkable(a, b protocol.MapId) bool {
	_, ok := g.walkable[makePairKey(a, b)]
	return ok
}

// IsNotWalkable reports whether a and b are currently in the notWalkable
// relation (for tests and diagnostics).
func (g *Graph) IsNotWalkable(a, b protocol.MapId) bool {
	_, ok := g.notWalkable[makePairKey(a, b)]
	return ok
}

// WalkableCount returns the number of pairs currently marked walkable.
func (g *Graph) WalkableCount() int {
	return len(g.walkable)
}

// NotWalkableCount returns the number of pairs currently marked
// non-walkable.
func (g *Graph) NotWalkableCount() int {
	return len(g.notWalkable)
}
