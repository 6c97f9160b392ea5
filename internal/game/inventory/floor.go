package inventory

import (
	"sort"
	"sync"

	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
)

// Floor tracks ownerless equippables lying in the world.
// It is thread-safe via sync.RWMutex so server binaries can read it from status handlers.
type Floor struct {
	mu    sync.RWMutex
	items map[actor.ID]*equippable.Equippable
}

// NewFloor creates an empty Floor.
func NewFloor() *Floor {
	return &Floor{items: make(map[actor.ID]*equippable.Equippable)}
}

// Drop places item on the floor.
//
// Precondition: item is non-nil.
func (f *Floor) Drop(item *equippable.Equippable) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID()] = item
}

// PickUp removes and returns the item with id.
//
// Postcondition: ok is false, and the floor unchanged, when no such item lies there.
func (f *Floor) PickUp(id actor.ID) (item *equippable.Equippable, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok = f.items[id]
	if ok {
		delete(f.items, id)
	}
	return item, ok
}

// Get returns the item with id without removing it.
func (f *Floor) Get(id actor.ID) (*equippable.Equippable, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	item, ok := f.items[id]
	return item, ok
}

// Items returns a snapshot of the floor ordered by id.
//
// Postcondition: the returned slice is a copy.
func (f *Floor) Items() []*equippable.Equippable {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*equippable.Equippable, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of items on the floor.
func (f *Floor) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}
