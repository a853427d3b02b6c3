package world

import (
	"errors"
	"sort"

	"github.com/sauerbraten/arena/internal/player"
	"github.com/sauerbraten/arena/internal/transport"
)

var (
	ErrDuplicateID = errors.New("an actor with that id already exists")
	ErrSecondLocal = errors.New("a local authority actor already exists")
)

// Roster holds the actors of a session, one per connected peer. It is owned
// by the game loop and not safe for concurrent use.
type Roster struct {
	actors map[transport.PeerID]*player.Actor
	local  *player.Actor
}

func NewRoster() *Roster {
	return &Roster{actors: map[transport.PeerID]*player.Actor{}}
}

// Add registers a. It refuses a second actor for the same peer or a second
// local authority actor; names are not checked here.
func (r *Roster) Add(a *player.Actor) error {
	if _, ok := r.actors[a.ID]; ok {
		return ErrDuplicateID
	}
	if a.IsLocalAuthority() {
		if r.local != nil {
			return ErrSecondLocal
		}
		r.local = a
	}
	r.actors[a.ID] = a
	return nil
}

// Remove deletes and returns the actor of peer id, if any.
func (r *Roster) Remove(id transport.PeerID) (*player.Actor, bool) {
	a, ok := r.actors[id]
	if !ok {
		return nil, false
	}
	delete(r.actors, id)
	if a == r.local {
		r.local = nil
	}
	return a, true
}

func (r *Roster) ByID(id transport.PeerID) (*player.Actor, bool) {
	a, ok := r.actors[id]
	return a, ok
}

func (r *Roster) ByName(name string) (*player.Actor, bool) {
	for _, a := range r.actors {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Local returns the actor this process has authority over.
func (r *Roster) Local() *player.Actor { return r.local }

// ForEach calls do for every actor in ascending id order.
func (r *Roster) ForEach(do func(a *player.Actor)) {
	ids := make([]transport.PeerID, 0, len(r.actors))
	for id := range r.actors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		do(r.actors[id])
	}
}

func (r *Roster) Len() int { return len(r.actors) }

// Clear removes every actor, e.g. when the session ends.
func (r *Roster) Clear() {
	r.actors = map[transport.PeerID]*player.Actor{}
	r.local = nil
}
