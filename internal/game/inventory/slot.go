// Package inventory provides the equippable inventory component of a pawn: tagged
// slots, the equip/unequip state machine, and the drop pipeline that returns items to
// the world.
package inventory

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
)

// SlotConfig declares one inventory slot.
type SlotConfig struct {
	Tag      gametag.Tag `mapstructure:"tag" yaml:"tag"`
	MaxItems int         `mapstructure:"max_items" yaml:"max_items"`
}

// Validate reports an error if the slot is unusable.
func (c SlotConfig) Validate() error {
	var errs []error
	if !c.Tag.IsValid() {
		errs = append(errs, errors.New("tag must not be empty"))
	}
	if c.MaxItems < 1 {
		errs = append(errs, fmt.Errorf("max_items must be >= 1, got %d", c.MaxItems))
	}
	if len(errs) > 0 {
		return fmt.Errorf("slot %q: %v", c.Tag, errs)
	}
	return nil
}

// Slot is an ordered, bounded list of items sharing a slot tag.
type Slot struct {
	Tag      gametag.Tag
	MaxItems int
	Items    []*equippable.Equippable
}

// NewSlot returns an empty slot for cfg.
func NewSlot(cfg SlotConfig) *Slot {
	return &Slot{Tag: cfg.Tag, MaxItems: cfg.MaxItems}
}

// IsFull reports whether the slot holds MaxItems items.
func (s *Slot) IsFull() bool {
	return len(s.Items) >= s.MaxItems
}

// IndexOf returns the index of item, or -1.
func (s *Slot) IndexOf(item *equippable.Equippable) int {
	for i, it := range s.Items {
		if it == item {
			return i
		}
	}
	return -1
}

// Add appends item.
//
// Postcondition: returns false, leaving the slot unchanged, when item is nil, already
// held, or the slot is full.
func (s *Slot) Add(item *equippable.Equippable) bool {
	if item == nil || s.IsFull() || s.IndexOf(item) >= 0 {
		return false
	}
	s.Items = append(s.Items, item)
	return true
}

// Remove deletes item, preserving the order of the rest.
//
// Postcondition: returns false when item is not held.
func (s *Slot) Remove(item *equippable.Equippable) bool {
	i := s.IndexOf(item)
	if i < 0 {
		return false
	}
	s.Items = append(s.Items[:i], s.Items[i+1:]...)
	return true
}

// Snapshot returns a copy of the held items.
func (s *Slot) Snapshot() []*equippable.Equippable {
	out := make([]*equippable.Equippable, len(s.Items))
	copy(out, s.Items)
	return out
}
