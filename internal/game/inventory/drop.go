package inventory

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
	"github.com/cory-johannsen/spawnmaster/internal/metrics"
)

// DropEquippable drops item from the inventory. A request for the item already waiting
// to drop is ignored. Dropping the current item first switches away from it, to the next
// item unless dontFindNext is set, finishing the switch at once when instantIfCurrent is
// set; the authority drops it once it is no longer current. Any other item drops at once.
// Clients forward the request to the authority.
func (c *Component) DropEquippable(item *equippable.Equippable, fromReplication, dontFindNext, instantIfCurrent bool) {
	if item == nil || c.desiredToDrop.Is(item) {
		return
	}
	net := c.owner.Net()
	if item == c.current && net.DrivesLocally() {
		if !dontFindNext {
			c.NextEquippable()
		}
		if instantIfCurrent {
			c.deps.Timers.Clear(&c.unequipTimer)
			c.onUnEquipFinish()
		} else if !c.desired.IsValid() {
			c.SetDesiredEquippable(nil)
		}
	}

	if !net.HasAuthority() {
		c.desiredToDrop = equippable.MakeRef(item)
		if !fromReplication {
			c.remote().ServerDropEquippable(item, instantIfCurrent, dontFindNext)
		}
		return
	}
	if !fromReplication && net.MirrorToClient() {
		c.remote().ClientDropEquippable(item, instantIfCurrent, dontFindNext)
	}
	if !c.FindEquippableInInventory(item) {
		c.logger.Warn("DropEquippable: item is not in inventory", zap.String("item", debugName(item)))
		return
	}
	if item != c.current {
		c.performDrop(item)
		return
	}
	c.desiredToDrop = equippable.MakeRef(item)
}

// DropCurrentEquippable drops the current item.
func (c *Component) DropCurrentEquippable(instant bool) {
	c.DropEquippable(c.current, false, false, instant)
}

// DropAllEquippables drops every held item, the current one last. Authority only.
func (c *Component) DropAllEquippables() {
	if !c.owner.Net().HasAuthority() {
		return
	}
	for _, item := range c.AllEquippables() {
		if item != c.current {
			c.DropEquippable(item, false, false, false)
		}
	}
	if c.current != nil {
		c.DropEquippable(c.current, false, true, true)
	}
}

// ForceDropCurrentEquippableBeforeDestroy drops the current item without waiting for an
// unequip, for owners about to be destroyed.
func (c *Component) ForceDropCurrentEquippableBeforeDestroy() {
	if c.current == nil {
		return
	}
	c.desiredToDrop = equippable.MakeRef(c.current)
	c.CheckPerformEquippableDrop(true)
}

// CheckPerformEquippableDrop drops the item waiting to drop once it is no longer
// current, or immediately when force is set. Authority only.
func (c *Component) CheckPerformEquippableDrop(force bool) {
	item := c.desiredToDrop.Get()
	if !c.owner.Net().HasAuthority() || item == nil {
		return
	}
	if item == c.current && !force {
		return
	}
	c.performDrop(item)
	c.desiredToDrop.Reset()
}

// performDrop removes item from its slot, releases it with a re-pickup cooldown and
// throws it from the owner's eyes.
func (c *Component) performDrop(item *equippable.Equippable) bool {
	if !c.RemoveFromSlotInventory(item) {
		c.logger.Warn("could not remove dropped item from its slot", zap.String("item", debugName(item)))
		return false
	}
	if item == c.current {
		c.deps.Timers.Clear(&c.unequipTimer)
		c.deps.Timers.Clear(&c.equipTimer)
		item.RemoveAbilitiesFromOwner()
		item.DetachFromPawn(true, true)
		c.MulticastVisuallyUnEquip(item)
		c.current = nil
		c.broadcastCurrentChanged(item)
		c.setStatus(StatusIdle)
	}
	item.SetDropTime(c.cfg.RePickUpTime)
	item.SetOwner(nil)

	eye, aim := c.owner.EyesViewPoint()
	loc := eye.Add(c.cfg.RelativeDropLocation)
	rot := c.owner.Rotation().Sub(geom.Rotator{Pitch: 90})
	impulse := aim.Vector().Scale(c.cfg.DropVelocity).Add(geom.Vector{Z: c.cfg.UpVelocity})
	item.ReceiveDropInformation(loc, rot, impulse)
	c.remote().MulticastReceiveDropInformation(item, loc, rot, impulse)

	metrics.EquippablesDropped.Inc()
	c.logger.Info("dropped equippable", zap.String("item", debugName(item)))
	for _, fn := range c.droppedObservers {
		fn(item)
	}
	return true
}
