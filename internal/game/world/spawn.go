package world

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/ability"
	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/character"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
	"github.com/cory-johannsen/spawnmaster/internal/game/inventory"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/replication"
)

// ErrNotAuthority is returned by operations only a server world may perform.
var ErrNotAuthority = errors.New("world: operation requires authority")

const (
	spawnPawn       = "pawn"
	spawnEquippable = "equippable"
)

type spawnArgs struct {
	Name     string       `json:"name,omitempty"`
	Owner    string       `json:"owner,omitempty"`
	Team     gametag.Tag  `json:"team,omitempty"`
	Class    string       `json:"class,omitempty"`
	Location geom.Vector  `json:"location"`
	Rotation geom.Rotator `json:"rotation"`
}

// SpawnPawn spawns a pawn controlled by connection ownerConn on team at the team's next
// player start. An empty ownerConn is the host's pawn on a listen server or standalone
// world and an uncontrolled pawn on a dedicated server. The pawn receives the starting
// loadout.
//
// Postcondition: Returns the pawn, replicated to every peer, or a non-nil error.
func (w *World) SpawnPawn(ownerConn, name string, team gametag.Tag) (*character.Pawn, error) {
	if !w.cfg.Mode.IsServer() {
		return nil, ErrNotAuthority
	}
	net := netrole.Context{
		Role:              netrole.RoleAuthority,
		Mode:              w.cfg.Mode,
		LocallyControlled: ownerConn == "" && (w.cfg.Mode == netrole.ModeListenServer || w.cfg.Mode == netrole.ModeStandalone),
	}
	loc, rot := w.nextStart(team)
	p, err := w.buildPawn(character.Spec{
		ID:        actor.NewID(),
		Name:      name,
		OwnerConn: ownerConn,
		Team:      team,
		Net:       net,
		EyeHeight: w.cfg.EyeHeight,
		Location:  loc,
		Rotation:  rot,
	})
	if err != nil {
		return nil, err
	}
	w.broadcast(w.spawnEnvelope(p.ID()))
	for _, class := range w.cfg.StartingLoadout {
		item, err := w.SpawnEquippable(class, p.Location(), geom.Rotator{})
		if err != nil {
			w.logger.Warn("spawning loadout item", zap.String("class", class), zap.Error(err))
			continue
		}
		item.ExplicitlySpawnedIn()
		if !p.Inventory().GiveExistingEquippable(item) {
			w.logger.Info("loadout item left on the floor", zap.String("pawn", p.Name()), zap.String("class", class))
		}
	}
	return p, nil
}

func (w *World) nextStart(team gametag.Tag) (geom.Vector, geom.Rotator) {
	if w.content.Level == nil {
		return geom.Vector{}, geom.Rotator{}
	}
	starts := w.content.Level.StartsFor(team)
	if len(starts) == 0 {
		return geom.Vector{}, geom.Rotator{}
	}
	s := starts[w.spawnCount[team]%len(starts)]
	w.spawnCount[team]++
	return s.Location, s.Rotation
}

func (w *World) buildPawn(spec character.Spec) (*character.Pawn, error) {
	if _, dup := w.pawns[spec.ID]; dup {
		return nil, fmt.Errorf("world: pawn %s already exists", spec.ID)
	}
	p, err := character.Build(spec, character.Deps{
		Ability: ability.Deps{
			Abilities:       w.content.Abilities,
			Montages:        w.content.Montages,
			Scripts:         w.content.Scripts,
			Config:          w.cfg.Ability,
			Logger:          w.logger,
			IsPlayingReplay: w.IsPlayingReplay,
		},
		Inventory: inventory.Deps{
			Timers:   w.timers,
			Montages: w.content.Montages,
			Logger:   w.logger,
		},
		InventoryConfig: w.cfg.Inventory,
	})
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	p.Inventory().SetRemote(&inventoryRemote{w: w, p: p})
	p.AbilitySystem().SetRemote(&abilityRemote{w: w, p: p})
	p.Inventory().OnEquippableDropped(func(item *equippable.Equippable) {
		w.floor.Drop(item)
	})
	p.Inventory().OnEquippableAdded(func(item *equippable.Equippable, _ gametag.Tag, _ *inventory.Slot) {
		w.floor.PickUp(item.ID())
	})
	w.pawns[p.ID()] = p
	w.order = append(w.order, p.ID())
	w.logger.Info("pawn spawned",
		zap.String("pawn", p.Name()),
		zap.String("id", p.ID().Short()),
		zap.Stringer("role", p.Net().Role),
		zap.String("owner_conn", p.OwnerConn()),
	)
	return p, nil
}

// SpawnEquippable places a new equippable of class on the floor.
//
// Postcondition: Returns the item, replicated to every peer, or a non-nil error.
func (w *World) SpawnEquippable(class string, loc geom.Vector, rot geom.Rotator) (*equippable.Equippable, error) {
	if !w.cfg.Mode.IsServer() {
		return nil, ErrNotAuthority
	}
	item, err := w.buildEquippable(actor.NewID(), class, loc, rot)
	if err != nil {
		return nil, err
	}
	w.broadcast(w.spawnEnvelope(item.ID()))
	return item, nil
}

func (w *World) buildEquippable(id actor.ID, class string, loc geom.Vector, rot geom.Rotator) (*equippable.Equippable, error) {
	def, ok := w.content.Equippables.Get(class)
	if !ok {
		return nil, fmt.Errorf("world: unknown equippable class %q", class)
	}
	if _, dup := w.items[id]; dup {
		return nil, fmt.Errorf("world: equippable %s already exists", id)
	}
	item := equippable.New(id, def, equippable.Deps{
		Abilities: w.content.Abilities,
		Scripts:   w.content.Scripts,
		Clock:     w.timers,
		Logger:    w.logger,
	})
	item.SetTransform(loc, rot)
	w.items[id] = item
	w.order = append(w.order, id)
	w.floor.Drop(item)
	return item, nil
}

// PopulateLevel spawns every item the level places on the floor.
func (w *World) PopulateLevel() error {
	if w.content.Level == nil {
		return nil
	}
	var errs []error
	for _, s := range w.content.Level.ItemSpawns {
		if _, err := w.SpawnEquippable(s.Class, s.Location, s.Rotation); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DestroyActor removes a pawn or equippable from the world and every peer. A pawn
// drops everything it holds first; an owned equippable is dropped by its owner first.
func (w *World) DestroyActor(id actor.ID) error {
	if !w.cfg.Mode.IsServer() {
		return ErrNotAuthority
	}
	if p, ok := w.pawns[id]; ok {
		inv := p.Inventory()
		inv.ForceDropCurrentEquippableBeforeDestroy()
		for _, item := range inv.AllEquippables() {
			inv.DropEquippable(item, false, true, true)
		}
		w.removeActor(id)
		return nil
	}
	item, ok := w.items[id]
	if !ok {
		return fmt.Errorf("world: no actor %s", id)
	}
	if owner := w.ownerPawn(item); owner != nil {
		inv := owner.Inventory()
		if inv.Current() == item {
			inv.ForceDropCurrentEquippableBeforeDestroy()
		} else {
			inv.DropEquippable(item, false, true, true)
		}
	}
	w.removeActor(id)
	return nil
}

func (w *World) removeActor(id actor.ID) {
	if item, ok := w.items[id]; ok {
		w.floor.PickUp(id)
		item.Destroy()
		delete(w.items, id)
	}
	delete(w.pawns, id)
	w.removeFromOrder(id)
	for _, pr := range w.peers {
		pr.forget(id)
	}
	if w.cfg.Mode.IsServer() {
		w.broadcast(replication.Envelope{Kind: replication.KindDestroy, Actor: id})
	}
	w.logger.Info("actor destroyed", zap.String("id", id.Short()))
}

func (w *World) ownerPawn(item *equippable.Equippable) *character.Pawn {
	if item == nil {
		return nil
	}
	return w.pawns[item.OwnerID()]
}

// TryPickUp hands a floor item to p when its re-pickup cooldown has passed and p's
// inventory accepts it.
//
// Postcondition: Returns true only on a server world when item moved into p's inventory.
func (w *World) TryPickUp(p *character.Pawn, item *equippable.Equippable) bool {
	if p == nil || item == nil || !p.Net().HasAuthority() {
		return false
	}
	if _, onFloor := w.floor.Get(item.ID()); !onFloor || !item.CanPickUp(w.timers.Now()) {
		w.logger.Debug("pickup refused", zap.String("pawn", p.Name()), zap.String("item", item.Class()))
		return false
	}
	return p.Inventory().GiveExistingEquippable(item)
}

// RequestPickUp picks item up for p: directly on a server world, through
// ServerRequestPickUp on the owning client.
func (w *World) RequestPickUp(p *character.Pawn, itemID actor.ID) bool {
	if p == nil {
		return false
	}
	if p.Net().HasAuthority() {
		item, ok := w.items[itemID]
		return ok && w.TryPickUp(p, item)
	}
	w.callServer(p, componentPawn, MethodServerRequestPickUp, itemArgs{Item: string(itemID)})
	return false
}

func (w *World) spawnEnvelope(id actor.ID) replication.Envelope {
	env := replication.Envelope{Kind: replication.KindSpawn, Actor: id}
	var args spawnArgs
	if p, ok := w.pawns[id]; ok {
		env.Component = spawnPawn
		args = spawnArgs{Name: p.Name(), Owner: p.OwnerConn(), Team: p.Team(), Location: p.Location(), Rotation: p.Rotation()}
	} else if item, ok := w.items[id]; ok {
		env.Component = spawnEquippable
		args = spawnArgs{Class: item.Class(), Location: item.Location(), Rotation: item.Rotation()}
	}
	payload, err := replication.Encode(args)
	if err != nil {
		w.logger.Error("encoding spawn", zap.Error(err))
	}
	env.Payload = payload
	return env
}

// applySpawn creates the client copy of a replicated actor. The pawn is the autonomous
// proxy when this client's connection owns it.
func (w *World) applySpawn(env replication.Envelope) {
	var args spawnArgs
	if err := replication.Decode(env.Payload, &args); err != nil {
		w.logger.Warn("malformed spawn", zap.Error(err))
		return
	}
	if _, exists := w.pawns[env.Actor]; exists {
		return
	}
	if _, exists := w.items[env.Actor]; exists {
		return
	}
	switch env.Component {
	case spawnPawn:
		owned := args.Owner != "" && args.Owner == w.localConn
		role := netrole.RoleSimulatedProxy
		if owned {
			role = netrole.RoleAutonomousProxy
		}
		_, err := w.buildPawn(character.Spec{
			ID:        env.Actor,
			Name:      args.Name,
			OwnerConn: args.Owner,
			Team:      args.Team,
			Net:       netrole.Context{Role: role, Mode: w.cfg.Mode, LocallyControlled: owned},
			EyeHeight: w.cfg.EyeHeight,
			Location:  args.Location,
			Rotation:  args.Rotation,
		})
		if err != nil {
			w.logger.Warn("replicated pawn spawn failed", zap.Error(err))
		}
	case spawnEquippable:
		if _, err := w.buildEquippable(env.Actor, args.Class, args.Location, args.Rotation); err != nil {
			w.logger.Warn("replicated equippable spawn failed", zap.Error(err))
		}
	default:
		w.logger.Warn("unknown spawn type", zap.String("type", env.Component))
	}
}
