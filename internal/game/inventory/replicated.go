package inventory

import (
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
)

// Remote carries inventory RPCs to the other side of the connection. Server methods
// reach the authority, Client methods reach the owning client, and Multicast methods
// reach every remote observer; the component has already applied a multicast locally.
type Remote interface {
	ServerAttemptEquip(item *equippable.Equippable)
	ClientAttemptEquip(item *equippable.Equippable)
	ServerSetCurrentEquippable(item *equippable.Equippable)
	ClientSetCurrentEquippable(item *equippable.Equippable)
	ServerDropEquippable(item *equippable.Equippable, instant, dontFindNext bool)
	ClientDropEquippable(item *equippable.Equippable, instant, dontFindNext bool)
	MulticastVisuallyUnEquip(item *equippable.Equippable)
	MulticastReceiveDropInformation(item *equippable.Equippable, loc geom.Vector, rot geom.Rotator, impulse geom.Vector)
}

type nopRemote struct{}

func (nopRemote) ServerAttemptEquip(*equippable.Equippable)               {}
func (nopRemote) ClientAttemptEquip(*equippable.Equippable)               {}
func (nopRemote) ServerSetCurrentEquippable(*equippable.Equippable)       {}
func (nopRemote) ClientSetCurrentEquippable(*equippable.Equippable)       {}
func (nopRemote) ServerDropEquippable(*equippable.Equippable, bool, bool) {}
func (nopRemote) ClientDropEquippable(*equippable.Equippable, bool, bool) {}
func (nopRemote) MulticastVisuallyUnEquip(*equippable.Equippable)         {}
func (nopRemote) MulticastReceiveDropInformation(*equippable.Equippable, geom.Vector, geom.Rotator, geom.Vector) {
}

// HandleServerAttemptEquip runs a client's AttemptEquip on the authority.
func (c *Component) HandleServerAttemptEquip(item *equippable.Equippable) {
	c.AttemptEquip(item, true)
}

// HandleClientAttemptEquip runs the authority's AttemptEquip on the owning client.
func (c *Component) HandleClientAttemptEquip(item *equippable.Equippable) {
	c.AttemptEquip(item, true)
}

// HandleServerSetCurrentEquippable applies a client's equip on the authority.
func (c *Component) HandleServerSetCurrentEquippable(item *equippable.Equippable) {
	c.SetCurrentEquippable(item, true)
}

// HandleClientSetCurrentEquippable applies the authority's equip on the owning client.
func (c *Component) HandleClientSetCurrentEquippable(item *equippable.Equippable) {
	c.SetCurrentEquippable(item, true)
}

// HandleServerDropEquippable runs a client's drop request on the authority.
func (c *Component) HandleServerDropEquippable(item *equippable.Equippable, instant, dontFindNext bool) {
	c.DropEquippable(item, true, dontFindNext, instant)
}

// HandleClientDropEquippable runs the authority's drop on the owning client.
func (c *Component) HandleClientDropEquippable(item *equippable.Equippable, instant, dontFindNext bool) {
	c.DropEquippable(item, true, dontFindNext, instant)
}

// MulticastVisuallyUnEquip detaches item from the third person body here and on every
// remote observer.
func (c *Component) MulticastVisuallyUnEquip(item *equippable.Equippable) {
	c.HandleMulticastVisuallyUnEquip(item)
	c.remote().MulticastVisuallyUnEquip(item)
}

// HandleMulticastVisuallyUnEquip detaches item from the third person body.
func (c *Component) HandleMulticastVisuallyUnEquip(item *equippable.Equippable) {
	net := c.owner.Net()
	if net.Role == netrole.RoleAutonomousProxy && net.IsListenServerOrStandalone() {
		return
	}
	if item != nil {
		item.DetachFromPawn(false, false)
	}
}

// ApplyReplicatedCurrentEquippable receives CurrentEquippable on a simulated proxy.
func (c *Component) ApplyReplicatedCurrentEquippable(item *equippable.Equippable) {
	old := c.current
	if old == item {
		return
	}
	c.current = item
	c.onRepCurrentEquippable(old)
}

func (c *Component) onRepCurrentEquippable(old *equippable.Equippable) {
	if c.current != nil {
		c.current.AttachToPawn(false)
	}
	c.broadcastCurrentChanged(old)
}

// ApplyReplicatedChangeStatus receives EquippableChangeStatus.
func (c *Component) ApplyReplicatedChangeStatus(s Status) {
	old := c.status
	if old == s {
		return
	}
	c.status = s
	c.onRepEquippableChangeStatus(old)
}

func (c *Component) onRepEquippableChangeStatus(Status) {
	if c.current == nil {
		return
	}
	switch c.status {
	case StatusUnequipping:
		c.current.DetachFromPawn(false, false)
	case StatusEquipping:
		c.current.AttachToPawn(false)
	}
}

// ApplyReplicatedInventory receives EquippableInventory on the owning client. Slots are
// matched by tag; unknown tags are appended. Items new to the inventory are announced and
// a pending drop whose item has left the inventory is cleared.
func (c *Component) ApplyReplicatedInventory(slots []*Slot) {
	before := make(map[*equippable.Equippable]bool)
	for _, item := range c.AllEquippables() {
		before[item] = true
	}
	for _, in := range slots {
		s := c.FindInventorySlotByTag(in.Tag)
		if s == nil {
			s = &Slot{Tag: in.Tag}
			c.slots = append(c.slots, s)
		}
		s.MaxItems = in.MaxItems
		s.Items = s.Items[:0]
		for _, item := range in.Items {
			if item != nil {
				s.Items = append(s.Items, item)
			}
		}
	}
	if d := c.desiredToDrop.Get(); d == nil || !c.FindEquippableInInventory(d) {
		c.desiredToDrop.Reset()
	}
	var added bool
	for _, s := range c.slots {
		for _, item := range s.Items {
			if before[item] {
				continue
			}
			added = true
			for _, fn := range c.addedObservers {
				fn(item, s.Tag, s)
			}
		}
	}
	if added && c.cfg.AutoEquipOnPickUp {
		c.equipIfEmptyHanded()
	}
}
