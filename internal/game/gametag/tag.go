// Package gametag provides hierarchical gameplay tags and a counted tag container.
//
// Tags are dotted names such as "EquippableSlot.Primary". A tag matches any of its
// dotted ancestors, so "Team.Survivor" matches "Team".
package gametag

import (
	"sort"
	"strings"
)

// Tag is a dotted hierarchical gameplay tag name.
type Tag string

// Well-known tags used by the gameplay core.
const (
	// None is the empty, invalid tag.
	None Tag = ""

	// SlotNone classifies equippables that do not occupy a real slot.
	SlotNone Tag = "EquippableSlot.NoSlot"

	// ChangingEquippable is applied to a character while it swaps equippables.
	ChangingEquippable Tag = "Character.IsChangingEquippable"

	// Team tags form an open set; new teams are added by naming them.
	TeamNone     Tag = "Team.None"
	TeamSurvivor Tag = "Team.Survivor"
	TeamZombie   Tag = "Team.Zombie"
)

// IsValid reports whether t names a tag.
func (t Tag) IsValid() bool {
	return t != None
}

// String returns the tag name.
func (t Tag) String() string {
	return string(t)
}

// MatchesTag reports whether t equals parent or is a dotted descendant of parent.
//
// Postcondition: an invalid tag never matches and never is matched.
func (t Tag) MatchesTag(parent Tag) bool {
	if !t.IsValid() || !parent.IsValid() {
		return false
	}
	if t == parent {
		return true
	}
	return strings.HasPrefix(string(t), string(parent)+".")
}

// Parent returns the immediate parent tag, or None for a root tag.
func (t Tag) Parent() Tag {
	i := strings.LastIndexByte(string(t), '.')
	if i < 0 {
		return None
	}
	return t[:i]
}

// Container holds loose tags with reference counts.
// The zero value is ready to use. It is not safe for concurrent use.
type Container struct {
	counts map[Tag]int
}

// Add increments the count of tag.
//
// Precondition: tag must be valid; invalid tags are ignored.
func (c *Container) Add(tag Tag) {
	if !tag.IsValid() {
		return
	}
	if c.counts == nil {
		c.counts = make(map[Tag]int)
	}
	c.counts[tag]++
}

// Remove decrements the count of tag, deleting it at zero.
//
// Postcondition: returns false when tag was not present.
func (c *Container) Remove(tag Tag) bool {
	n, ok := c.counts[tag]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(c.counts, tag)
	} else {
		c.counts[tag] = n - 1
	}
	return true
}

// Count returns the reference count for exactly tag.
func (c *Container) Count(tag Tag) int {
	return c.counts[tag]
}

// HasExact reports whether tag itself is present.
func (c *Container) HasExact(tag Tag) bool {
	return c.counts[tag] > 0
}

// HasMatching reports whether any held tag matches tag (equal or descendant).
func (c *Container) HasMatching(tag Tag) bool {
	for held := range c.counts {
		if held.MatchesTag(tag) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct tags held.
func (c *Container) Len() int {
	return len(c.counts)
}

// Tags returns a sorted snapshot of the distinct tags held.
//
// Postcondition: returned slice is a copy.
func (c *Container) Tags() []Tag {
	out := make([]Tag, 0, len(c.counts))
	for t := range c.counts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
