package world

import (
	"sync"

	"go.uber.org/zap"

	"github.com/PowerMeep/GBA-PK-MMO/internal/protocol"
)

// World owns the Adjacency Graph and Session Registry for the life of the
// process. A single coarse mutex protects both, held only during
// structural updates (register, deregister, moveTo, observeTransition,
// occupant snapshots) — never during socket I/O. Callers must collect
// targets under the lock and perform writes after releasing it.
type World struct {
	mu       sync.Mutex
	Graph    *Graph
	Registry *Registry
	log      *zap.Logger
}

func NewWorld(maxPlayers int, log *zap.Logger) *World {
	return &World{
		Graph:    NewGraph(log),
		Registry: NewRegistry(maxPlayers),
		log:      log,
	}
}

// TryRegister attempts to admit sess under nick. On RegisterReconnect, it
// also returns the prior occupant under nick so the caller can tear it
// down before calling Insert.
func (w *World) TryRegister(nick string, sess Occupant) (RegisterOutcome, Occupant) {
	w.mu.Lock()
	defer w.mu.Unlock()
	outcome := w.Registry.TryRegister(nick, sess)
	if outcome == RegisterReconnect {
		existing, _ := w.Registry.LookupByNick(nick)
		return outcome, existing
	}
	return outcome, nil
}

// Insert unconditionally installs sess under nick (used after the caller
// tears down a reconnecting session's prior occupant).
func (w *World) Insert(nick string, sess Occupant) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Registry.Insert(nick, sess)
}

// LookupByNick returns the session currently registered under nick.
func (w *World) LookupByNick(nick string) (Occupant, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Registry.LookupByNick(nick)
}

// Snapshot returns every currently registered session, safe to range over
// without holding the lock. Used by the Liveness Ticker.
func (w *World) Snapshot() []Occupant {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Occupant, 0, len(w.Registry.byNick))
	for _, sess := range w.Registry.byNick {
		out = append(out, sess)
	}
	return out
}

// UpdatePosition applies a reported position update for sess: if newMap
// differs from oldMap (or sess had no map yet), it diffs the
// old/new neighborhoods for bidirectional EXIT targets, records the
// transition in the Graph (only when sess had a prior map — a brand-new
// session's first map is not a "transition"), moves sess in the Registry,
// and collects peer-replay targets. It always returns the current
// fan-out targets (occupants of sess's neighborhood, excluding sess) for
// the rewritten position frame.
//
// All socket writes happen after the caller releases the returned
// snapshots — UpdatePosition itself never touches a socket.
func (w *World) UpdatePosition(sess Occupant, oldMap protocol.MapId, hadOldMap bool, newMap protocol.MapId, kind protocol.TransitionKind) (exitTargets, replayTargets, fanoutTargets []Occupant) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !hadOldMap || newMap != oldMap {
		if hadOldMap {
			oldNeighbors := w.Graph.NeighborsOf(oldMap)
			newNeighbors := w.Graph.NeighborsOf(newMap)
			for m := range oldNeighbors {
				if _, stillVisible := newNeighbors[m]; stillVisible {
					continue
				}
				for _, o := range w.Registry.OccupantsOf(m) {
					if o == sess {
						continue
					}
					exitTargets = append(exitTargets, o)
				}
			}
			w.Graph.ObserveTransition(newMap, oldMap, kind)
		}

		w.Registry.MoveTo(sess, oldMap, hadOldMap, newMap)

		for m := range w.Graph.NeighborsOf(newMap) {
			for _, o := range w.Registry.OccupantsOf(m) {
				if o == sess {
					continue
				}
				replayTargets = append(replayTargets, o)
			}
		}
	}

	for m := range w.Graph.NeighborsOf(newMap) {
		for _, o := range w.Registry.OccupantsOf(m) {
			if o == sess {
				continue
			}
			fanoutTargets = append(fanoutTargets, o)
		}
	}
	return exitTargets, replayTargets, fanoutTargets
}

// Teardown deregisters sess and, if it had a map, returns the occupants of
// its neighborhood (excluding itself) that should receive an EXIT
// bulletin. Idempotent: tearing down a session already removed from the
// registry under nick is a no-op on the registry (Registry.Deregister
// only removes an entry that still points at sess).
func (w *World) Teardown(sess Occupant, nick string, mapID protocol.MapId, hadMap bool) []Occupant {
	w.mu.Lock()
	defer w.mu.Unlock()

	var targets []Occupant
	if hadMap {
		for m := range w.Graph.NeighborsOf(mapID) {
			for _, o := range w.Registry.OccupantsOf(m) {
				if o == sess {
					continue
				}
				targets = append(targets, o)
			}
		}
	}
	w.Registry.Deregister(nick, sess, mapID, hadMap)
	return targets
}

// Count returns the number of registered sessions.
func (w *World) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Registry.Count()
}

// AdjacencyCounts returns the current size of the walkable and
// notWalkable relations, for metrics.
func (w *World) AdjacencyCounts() (walkable, notWalkable int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Graph.WalkableCount(), w.Graph.NotWalkableCount()
}
