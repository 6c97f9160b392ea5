package world

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/ability"
	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/inventory"
	"github.com/cory-johannsen/spawnmaster/internal/metrics"
	"github.com/cory-johannsen/spawnmaster/internal/replication"
)

const componentEquippable = "equippable"

// Replicated property names.
const (
	PropCurrentEquippable           = "CurrentEquippable"
	PropEquippableInventory         = "EquippableInventory"
	PropEquippableChangeStatus      = "EquippableChangeStatus"
	PropRepAnimMontageInfoForMeshes = "RepAnimMontageInfoForMeshes"
	PropActivatableAbilities        = "ActivatableAbilities"
	PropOwner                       = "Owner"
	PropNeedsRechambering           = "NeedsRechambering"
)

// condition limits which connections receive a property.
type condition uint8

const (
	condNone condition = iota
	condOwnerOnly
	condSimulatedOnly
	condSkipOwner
)

func (c condition) allows(isOwner bool) bool {
	switch c {
	case condOwnerOnly:
		return isOwner
	case condSimulatedOnly, condSkipOwner:
		return !isOwner
	default:
		return true
	}
}

type property struct {
	component string
	name      string
	cond      condition
	value     any
}

// repSlot is the replicated form of an inventory slot.
type repSlot struct {
	Tag      gametag.Tag `json:"tag"`
	MaxItems int         `json:"max_items"`
	Items    []string    `json:"items"`
}

type propertyValue[T any] struct {
	Value T `json:"value"`
}

// propertiesOf returns the replicated properties of actor id and the connection that
// owns it.
func (w *World) propertiesOf(id actor.ID) (string, []property) {
	if p, ok := w.pawns[id]; ok {
		inv, sys := p.Inventory(), p.AbilitySystem()
		slots := make([]repSlot, 0, len(inv.Slots()))
		for _, s := range inv.Slots() {
			rs := repSlot{Tag: s.Tag, MaxItems: s.MaxItems, Items: []string{}}
			for _, item := range s.Items {
				rs.Items = append(rs.Items, idOf(item))
			}
			slots = append(slots, rs)
		}
		return p.OwnerConn(), []property{
			{componentInventory, PropCurrentEquippable, condSimulatedOnly, idOf(inv.Current())},
			{componentInventory, PropEquippableInventory, condOwnerOnly, slots},
			{componentInventory, PropEquippableChangeStatus, condNone, inv.Status()},
			{componentAbility, PropRepAnimMontageInfoForMeshes, condNone, sys.RepAnimMontageInfoForMeshes()},
			{componentAbility, PropActivatableAbilities, condOwnerOnly, sys.ActivatableAbilities()},
		}
	}
	if item, ok := w.items[id]; ok {
		var ownerConn string
		if owner := w.ownerPawn(item); owner != nil {
			ownerConn = owner.OwnerConn()
		}
		return ownerConn, []property{
			{componentEquippable, PropOwner, condNone, string(item.OwnerID())},
			{componentEquippable, PropNeedsRechambering, condSkipOwner, item.NeedsRechambering()},
		}
	}
	return "", nil
}

// flushProperties sends every property that changed since it was last sent to each
// peer. Equippables go first so an item's owner is known before any inventory that
// holds it.
func (w *World) flushProperties() {
	var ids []actor.ID
	for _, item := range w.Equippables() {
		ids = append(ids, item.ID())
	}
	for _, p := range w.Pawns() {
		ids = append(ids, p.ID())
	}
	for _, connID := range w.peerOrder {
		pr := w.peers[connID]
		for _, id := range ids {
			ownerConn, props := w.propertiesOf(id)
			isOwner := ownerConn != "" && ownerConn == pr.id
			for _, prop := range props {
				if prop.cond.allows(isOwner) {
					w.sendProperty(pr, id, prop)
				}
			}
		}
	}
}

func (w *World) sendProperty(pr *peer, id actor.ID, prop property) {
	digest, err := json.Marshal(prop.value)
	if err != nil {
		w.logger.Error("encoding property", zap.String("property", prop.name), zap.Error(err))
		return
	}
	key := string(id) + "/" + prop.component + "." + prop.name
	if pr.shadow[key] == string(digest) {
		return
	}
	payload, err := replication.Encode(propertyValue[any]{Value: prop.value})
	if err != nil {
		w.logger.Error("encoding property", zap.String("property", prop.name), zap.Error(err))
		return
	}
	if err := pr.conn.Send(replication.Envelope{
		Kind:      replication.KindProperty,
		Actor:     id,
		Component: prop.component,
		Method:    prop.name,
		Payload:   payload,
	}); err != nil {
		w.logger.Warn("property send failed", zap.String("conn", pr.id), zap.String("property", prop.name), zap.Error(err))
		return
	}
	pr.shadow[key] = string(digest)
	metrics.PropertyUpdates.WithLabelValues(prop.component, prop.name).Inc()
}

func decodeValue[T any](env replication.Envelope) (T, error) {
	var v propertyValue[T]
	err := replication.Decode(env.Payload, &v)
	return v.Value, err
}

// applyProperty installs a replicated property on the client copy of an actor and runs
// its change handler.
func (w *World) applyProperty(env replication.Envelope) {
	var err error
	switch env.Component {
	case componentEquippable:
		item, ok := w.items[env.Actor]
		if !ok {
			w.logger.Debug("property for unknown equippable", zap.String("actor", env.Actor.Short()))
			return
		}
		err = w.applyEquippableProperty(item, env)
	case componentInventory, componentAbility:
		p, ok := w.pawns[env.Actor]
		if !ok {
			w.logger.Debug("property for unknown pawn", zap.String("actor", env.Actor.Short()))
			return
		}
		switch env.Method {
		case PropCurrentEquippable:
			var id string
			if id, err = decodeValue[string](env); err == nil {
				if item, ok := w.resolveItem(id); ok {
					p.Inventory().ApplyReplicatedCurrentEquippable(item)
				}
			}
		case PropEquippableInventory:
			var slots []repSlot
			if slots, err = decodeValue[[]repSlot](env); err == nil {
				p.Inventory().ApplyReplicatedInventory(w.resolveSlots(slots))
			}
		case PropEquippableChangeStatus:
			var s inventory.Status
			if s, err = decodeValue[inventory.Status](env); err == nil {
				p.Inventory().ApplyReplicatedChangeStatus(s)
			}
		case PropRepAnimMontageInfoForMeshes:
			var recs []ability.RepMontage
			if recs, err = decodeValue[[]ability.RepMontage](env); err == nil {
				p.AbilitySystem().SetRepAnimMontageInfoForMeshes(recs)
				p.AbilitySystem().OnRepReplicatedAnimMontage()
			}
		case PropActivatableAbilities:
			var list []ability.Granted
			if list, err = decodeValue[[]ability.Granted](env); err == nil {
				p.AbilitySystem().SetActivatableAbilities(list)
			}
		default:
			w.logger.Warn("unknown pawn property", zap.String("property", env.Method))
		}
	default:
		w.logger.Warn("unknown property component", zap.String("component", env.Component))
	}
	if err != nil {
		w.logger.Warn("malformed property", zap.String("property", env.Method), zap.Error(err))
	}
}

func (w *World) applyEquippableProperty(item *equippable.Equippable, env replication.Envelope) error {
	switch env.Method {
	case PropOwner:
		id, err := decodeValue[string](env)
		if err != nil {
			return err
		}
		if owner, ok := w.pawns[actor.ID(id)]; ok {
			item.SetOwner(owner)
			w.floor.PickUp(item.ID())
		} else {
			item.SetOwner(nil)
			w.floor.Drop(item)
		}
	case PropNeedsRechambering:
		v, err := decodeValue[bool](env)
		if err != nil {
			return err
		}
		item.SetNeedsRechambering(v)
	default:
		w.logger.Warn("unknown equippable property", zap.String("property", env.Method))
	}
	return nil
}

func (w *World) resolveSlots(in []repSlot) []*inventory.Slot {
	out := make([]*inventory.Slot, 0, len(in))
	for _, rs := range in {
		s := &inventory.Slot{Tag: rs.Tag, MaxItems: rs.MaxItems}
		for _, id := range rs.Items {
			if item, ok := w.items[actor.ID(id)]; ok {
				s.Items = append(s.Items, item)
			} else {
				w.logger.Debug("replicated inventory names unknown item", zap.String("item", id))
			}
		}
		out = append(out, s)
	}
	return out
}
