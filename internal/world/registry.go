package world

import "github.com/PowerMeep/GBA-PK-MMO/internal/protocol"

// Occupant is the minimal view the registry needs of a connected session —
// satisfied by *relay.Session without an import cycle between the relay
// and world packages.
type Occupant interface {
	Nick() string
	RemoteIP() string
}

// RegisterOutcome reports the result of a registration attempt.
type RegisterOutcome int

const (
	RegisterOK RegisterOutcome = iota
	RegisterReconnect
	RegisterNameTaken
	RegisterFull
)

// Registry is the process-wide mapping from player nickname to active
// session, and from map identifier to the sessions currently located on
// it. Not safe for concurrent use on its own; callers serialize access
// through World's mutex.
type Registry struct {
	maxPlayers int
	byNick     map[string]Occupant
	byMap      map[protocol.MapId][]Occupant
}

func NewRegistry(maxPlayers int) *Registry {
	return &Registry{
		maxPlayers: maxPlayers,
		byNick:     make(map[string]Occupant),
		byMap:      make(map[protocol.MapId][]Occupant),
	}
}

// TryRegister attempts to insert sess under nick. See RegisterOutcome for
// the four possible results.
//
// Per spec.md §9 open question 1, the server-full guard is implemented as
// the evidently intended `len(byNick) >= maxPlayers` check (the original
// source's guard was an inert chained comparison that never fired).
func (r *Registry) TryRegister(nick string, sess Occupant) RegisterOutcome {
	if existing, ok := r.byNick[nick]; ok {
		if existing.RemoteIP() == sess.RemoteIP() {
			return RegisterReconnect
		}
		return RegisterNameTaken
	}
	if len(r.byNick) >= r.maxPlayers {
		return RegisterFull
	}
	r.byNick[nick] = sess
	return RegisterOK
}

// Insert unconditionally installs sess under nick, overwriting any prior
// occupant. Used after the caller has torn down a reconnecting session's
// old occupant (spec.md §9 open question 3).
func (r *Registry) Insert(nick string, sess Occupant) {
	r.byNick[nick] = sess
}

// Deregister removes sess from byNick (only if it is still the current
// occupant under nick — teardown is idempotent) and from byMap[mapID] if
// present.
func (r *Registry) Deregister(nick string, sess Occupant, mapID protocol.MapId, hasMap bool) {
	if current, ok := r.byNick[nick]; ok && current == sess {
		delete(r.byNick, nick)
	}
	if hasMap {
		r.removeFromMap(mapID, sess)
	}
}

// MoveTo removes sess from byMap[oldMap] (if oldMap was set) and inserts
// it into byMap[newMap].
func (r *Registry) MoveTo(sess Occupant, oldMap protocol.MapId, hadOldMap bool, newMap protocol.MapId) {
	if hadOldMap {
		r.removeFromMap(oldMap, sess)
	}
	r.byMap[newMap] = append(r.byMap[newMap], sess)
}

func (r *Registry) removeFromMap(mapID protocol.MapId, sess Occupant) {
	occupants := r.byMap[mapID]
	for i, o := range occupants {
		if o == sess {
			occupants = append(occupants[:i], occupants[i+1:]...)
			break
		}
	}
	if len(occupants) == 0 {
		delete(r.byMap, mapID)
	} else {
		r.byMap[mapID] = occupants
	}
}

// LookupByNick returns the session currently registered under nick.
func (r *Registry) LookupByNick(nick string) (Occupant, bool) {
	sess, ok := r.byNick[nick]
	return sess, ok
}

// OccupantsOf returns the sessions currently located on mapID. The
// returned slice is a fresh copy safe to use after the registry lock is
// released.
func (r *Registry) OccupantsOf(mapID protocol.MapId) []Occupant {
	occupants := r.byMap[mapID]
	if len(occupants) == 0 {
		return nil
	}
	out := make([]Occupant, len(occupants))
	copy(out, occupants)
	return out
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	return len(r.byNick)
}
