package inventory

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
)

// SetDesiredEquippable requests a switch to item; nil requests empty hands. Only the
// side controlling the pawn may initiate. When no unequip is running the switch starts
// immediately, otherwise item is queued and equipped when the unequip finishes.
// Selecting the current item while it is being put away cancels the switch.
func (c *Component) SetDesiredEquippable(item *equippable.Equippable) {
	if !c.owner.Net().CanInitiate() {
		return
	}
	if item == nil && c.current == nil && !c.IsUnequipTimerActive() {
		c.desired.Reset()
		return
	}
	if c.current != nil && item == c.current {
		if c.IsUnequipTimerActive() {
			c.desired = equippable.MakeRef(item)
		}
		return
	}
	if !c.IsUnequipTimerActive() {
		c.AttemptEquip(item, false)
	}
	if c.current != item {
		c.desired = equippable.MakeRef(item)
	}
}

// AttemptEquip starts putting the current item away so item can be equipped, mirroring
// the request to the other side unless it came from there. With nothing equipped item
// is equipped directly. A local request while an unequip is running is ignored.
func (c *Component) AttemptEquip(item *equippable.Equippable, fromReplication bool) {
	c.logger.Debug("AttemptEquip",
		zap.String("item", debugName(item)),
		zap.Bool("from_replication", fromReplication),
		zap.Bool("authority", c.owner.Net().HasAuthority()),
	)
	if c.current == nil {
		c.SetCurrentEquippable(item, fromReplication)
		return
	}
	if fromReplication {
		c.beginUnEquipping()
		return
	}
	if c.IsUnequipTimerActive() {
		return
	}
	net := c.owner.Net()
	switch {
	case net.MirrorToClient():
		c.remote().ClientAttemptEquip(item)
	case !net.HasAuthority():
		c.remote().ServerAttemptEquip(item)
	}
	c.beginUnEquipping()
}

// beginUnEquipping puts the current item away. The controlling side plays the unequip
// montages and schedules onUnEquipFinish; the remote authority only strips abilities and
// publishes the status for observers.
func (c *Component) beginUnEquipping() {
	net := c.owner.Net()
	if net.DrivesLocally() {
		if c.IsUnequipTimerActive() {
			return
		}
		c.deps.Timers.Clear(&c.equipTimer)
		c.applyChangingTag()
		length := c.playUnequipMontages()
		delay := length - unequipLead
		if delay < 0 {
			delay = 0
		}
		c.deps.Timers.Set(&c.unequipTimer, delay, c.onUnEquipFinish)
		if c.current != nil {
			c.current.RemoveAbilitiesFromOwner()
		}
		if net.IsListenServerOrStandaloneLocalController() {
			c.setStatus(StatusUnequipping)
		}
		return
	}
	c.deps.Timers.Clear(&c.equipTimer)
	if c.current != nil {
		c.current.RemoveAbilitiesFromOwner()
	}
	c.setStatus(StatusUnequipping)
}

func (c *Component) applyChangingTag() {
	sys := c.owner.AbilitySystem()
	if sys == nil {
		c.logger.Error("owner has no ability system")
		return
	}
	if !sys.HasMatchingTag(gametag.ChangingEquippable) {
		sys.AddLooseTag(gametag.ChangingEquippable)
	}
}

func (c *Component) removeChangingTag() {
	if sys := c.owner.AbilitySystem(); sys != nil && sys.HasExactTag(gametag.ChangingEquippable) {
		sys.RemoveLooseTag(gametag.ChangingEquippable)
	}
}

// playUnequipMontages plays the arms and item unequip montages in first person and
// returns how long the unequip lasts.
func (c *Component) playUnequipMontages() time.Duration {
	length := MinUnequipTime
	if c.current == nil {
		return length
	}
	def := c.current.Def()
	hands := c.owner.MeshOfType(animation.MeshFirstPersonHands)
	if anim := hands.AnimInstance(); anim != nil {
		m, _ := c.deps.Montages.Get(def.UnequipArmsMontage)
		if l := anim.Play(m, 1, 0); l > 0 {
			length = seconds(l)
		}
	} else {
		c.logger.Warn("first person hands have no animation instance")
	}
	if anim := c.current.MeshOfType(animation.MeshFirstPersonEquippable).AnimInstance(); anim != nil {
		m, _ := c.deps.Montages.Get(def.UnequipEquippableMontage)
		anim.Play(m, 1, 0)
	}
	return length
}

// onUnEquipFinish completes the running unequip: the queued item becomes current when
// it is still held, otherwise the pawn ends up empty handed.
func (c *Component) onUnEquipFinish() {
	if !c.owner.Net().DrivesLocally() {
		return
	}
	if d := c.desired.Get(); d != nil && c.FindEquippableInInventory(d) {
		c.setCurrentEquippable(d, false, true)
		c.desired.Reset()
	} else {
		c.logger.Debug("unequip finished with nothing queued")
		c.desired.Reset()
		c.setCurrentEquippable(nil, false, true)
		c.removeChangingTag()
	}
}

// SetCurrentEquippable makes item current. It does not unequip; callers go through
// AttemptEquip unless nothing is equipped.
func (c *Component) SetCurrentEquippable(item *equippable.Equippable, fromReplication bool) {
	c.setCurrentEquippable(item, fromReplication, false)
}

func (c *Component) setCurrentEquippable(item *equippable.Equippable, fromReplication, reequip bool) {
	net := c.owner.Net()
	if item == nil {
		c.logger.Debug("SetCurrentEquippable with nil item", zap.Bool("from_replication", fromReplication), zap.Stringer("mode", net.Mode))
	}
	if fromReplication && net.HasAuthority() && item != nil && !c.FindEquippableInInventory(item) {
		c.logger.Warn("SetCurrentEquippable: item is not in inventory", zap.String("item", debugName(item)))
		return
	}
	old := c.current
	if !fromReplication {
		if old != nil && old == item && !reequip {
			return
		}
		if net.MirrorToClient() {
			c.remote().ClientSetCurrentEquippable(item)
			c.current = item
		} else {
			if !net.IsListenServerOrStandaloneLocalController() {
				c.remote().ServerSetCurrentEquippable(item)
			}
			if old != nil {
				old.DetachFromPawn(true, false)
				if net.HasAuthority() {
					old.RemoveAbilitiesFromOwner()
				}
			}
			c.current = item
			if item != nil {
				item.AttachToPawn(true)
			}
			c.broadcastCurrentChanged(old)
			c.setStatus(StatusEquipping)
		}
	} else {
		if old != nil {
			old.DetachFromPawn(true, false)
		}
		c.current = item
		if item != nil {
			item.AttachToPawn(true)
		}
		if net.HasAuthority() && old != nil {
			old.RemoveAbilitiesFromOwner()
		}
		if net.IsListenServerOrStandalone() {
			c.onRepCurrentEquippable(old)
		} else {
			c.broadcastCurrentChanged(old)
		}
		c.setStatus(StatusEquipping)
	}
	if c.current != nil {
		c.current.SetHasBeenPickedUpBefore(true)
	}
	if net.HasAuthority() {
		c.CheckPerformEquippableDrop(false)
		if c.current != nil {
			c.current.AddAbilitiesToOwner()
		}
	}
	c.beginEquipFinish()
}

// beginEquipFinish schedules the end of the equip transition after the equip montage.
func (c *Component) beginEquipFinish() {
	var length time.Duration
	net := c.owner.Net()
	if item := c.current; item != nil {
		m, ok := c.deps.Montages.Get(item.Def().EquipMontage)
		switch {
		case !ok:
		case net.DrivesLocally():
			if anim := c.owner.MeshOfType(animation.MeshFirstPersonHands).AnimInstance(); anim != nil {
				length = seconds(anim.Play(m, 1, 0))
			}
		default:
			length = seconds(m.Length)
		}
	}
	c.deps.Timers.Set(&c.equipTimer, length, c.onEquipFinish)
}

func (c *Component) onEquipFinish() {
	net := c.owner.Net()
	c.setStatus(StatusIdle)
	if net.DrivesLocally() && !c.IsUnequipTimerActive() {
		c.removeChangingTag()
	}
	item := c.current
	if item == nil {
		return
	}
	item.OnIdle()
	for _, fn := range c.idleObservers {
		fn(item)
	}
}

// NextEquippable queues the next equippable item after the selection: later in the same
// slot first, then the following slots in order, wrapping around. Items being dropped
// and items that cannot equip are skipped.
func (c *Component) NextEquippable() {
	c.cycleEquippable(1)
}

// PreviousEquippable is NextEquippable in reverse order.
func (c *Component) PreviousEquippable() {
	c.cycleEquippable(-1)
}

func (c *Component) cycleEquippable(dir int) {
	if !c.owner.Net().CanInitiate() {
		return
	}
	from := c.Selection()
	c.desired.Reset()
	items := c.AllEquippables()
	n := len(items)
	start := -1
	for i, item := range items {
		if item == from {
			start = i
			break
		}
	}
	for step := 1; step <= n; step++ {
		var idx int
		switch {
		case start >= 0:
			idx = ((start+dir*step)%n + n) % n
		case dir > 0:
			idx = step - 1
		default:
			idx = n - step
		}
		cand := items[idx]
		if cand == from || c.desiredToDrop.Is(cand) || !cand.CanEquip() {
			continue
		}
		c.SetDesiredEquippable(cand)
		return
	}
}

func debugName(item *equippable.Equippable) string {
	if item == nil {
		return "None"
	}
	return item.Name() + "_" + item.ID().Short()
}
