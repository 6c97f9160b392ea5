package equippable

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/ability"
	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/scripting"
)

// FirstPerson is the pawn an equippable attaches to. It exposes meshes by type and the
// ability system granted abilities are added to.
type FirstPerson interface {
	ID() actor.ID
	Net() netrole.Context
	MeshOfType(t animation.MeshType) *animation.Mesh
	AbilitySystem() *ability.System
}

// Clock reports elapsed world time.
type Clock interface {
	Now() time.Duration
}

// Deps are the collaborators an Equippable needs. Scripts is optional.
type Deps struct {
	Abilities *ability.Registry
	Scripts   *scripting.Manager
	Clock     Clock
	Logger    *zap.Logger
}

// Equippable is an item actor that lives either in a pawn's inventory or on the floor.
// It is not safe for concurrent use.
type Equippable struct {
	id     actor.ID
	def    *Def
	deps   Deps
	logger *zap.Logger

	owner  FirstPerson
	meshes map[animation.MeshType]*animation.Mesh

	location    geom.Vector
	rotation    geom.Rotator
	lastImpulse geom.Vector
	simulating  bool

	dropTime              time.Duration
	hasBeenPickedUpBefore bool
	attachedFirstPerson   bool
	attachedThirdPerson   bool
	needsRechambering     bool
	destroyed             bool

	subscribed map[*ability.System]bool

	ownerObservers   []func(old FirstPerson)
	droppedObservers []func(loc geom.Vector, rot geom.Rotator, impulse geom.Vector)
}

// New returns an ownerless equippable of def.
//
// Precondition: def, deps.Clock and deps.Logger must be non-nil.
// Postcondition: the item is valid, unowned and simulating physics.
func New(id actor.ID, def *Def, deps Deps) *Equippable {
	if def == nil {
		panic("equippable.New: def must not be nil")
	}
	if deps.Clock == nil {
		panic("equippable.New: clock must not be nil")
	}
	if deps.Logger == nil {
		panic("equippable.New: logger must not be nil")
	}
	e := &Equippable{
		id:         id,
		def:        def,
		deps:       deps,
		logger:     deps.Logger.With(zap.String("equippable", def.ID), zap.String("id", id.Short())),
		simulating: true,
		subscribed: make(map[*ability.System]bool),
	}
	e.meshes = map[animation.MeshType]*animation.Mesh{
		animation.MeshFirstPersonEquippable: animation.NewMesh(animation.MeshFirstPersonEquippable, id),
		animation.MeshThirdPersonEquippable: animation.NewMesh(animation.MeshThirdPersonEquippable, id),
	}
	e.setMeshesVisible(false, true)
	e.needsRechambering = def.Rechamber.Enabled() && def.Rechamber.StartUnchambered
	return e
}

// ID returns the actor id.
func (e *Equippable) ID() actor.ID { return e.id }

// Class returns the concrete item class.
func (e *Equippable) Class() string { return e.def.ID }

// Name returns the display name.
func (e *Equippable) Name() string { return e.def.Name }

// Def returns the item definition.
func (e *Equippable) Def() *Def { return e.def }

// SlotTag returns the inventory slot the item occupies.
func (e *Equippable) SlotTag() gametag.Tag { return e.def.Slot }

// MeshOfType returns the item's first or third person mesh, or nil.
func (e *Equippable) MeshOfType(t animation.MeshType) *animation.Mesh {
	return e.meshes[t]
}

// IsValid reports whether the item exists and has not been destroyed. Safe on nil.
func (e *Equippable) IsValid() bool {
	return e != nil && !e.destroyed
}

// Destroy marks the item destroyed. Every Ref to it resolves to nil afterwards.
func (e *Equippable) Destroy() {
	e.destroyed = true
}

// Owner returns the owning pawn, or nil.
func (e *Equippable) Owner() FirstPerson { return e.owner }

// OwnerID returns the owning pawn's id, or actor.NoID.
func (e *Equippable) OwnerID() actor.ID {
	if e.owner == nil {
		return actor.NoID
	}
	return e.owner.ID()
}

// OnOwnerChanged registers fn to run after the owner changes.
func (e *Equippable) OnOwnerChanged(fn func(old FirstPerson)) {
	e.ownerObservers = append(e.ownerObservers, fn)
}

// OnDropInformation registers fn to run when a drop transform is received.
func (e *Equippable) OnDropInformation(fn func(loc geom.Vector, rot geom.Rotator, impulse geom.Vector)) {
	e.droppedObservers = append(e.droppedObservers, fn)
}

// SetOwner assigns the owning pawn. A nil owner releases the item to the floor: it is
// detached and simulates physics.
func (e *Equippable) SetOwner(owner FirstPerson) {
	old := e.owner
	if old == owner {
		return
	}
	e.owner = owner
	if owner == nil {
		e.attachedFirstPerson = false
		e.attachedThirdPerson = false
		e.setMeshesVisible(false, true)
		e.simulating = true
	} else {
		e.simulating = false
		e.watchRechamber(owner)
	}
	for _, fn := range e.ownerObservers {
		fn(old)
	}
}

// SimulatingPhysics reports whether the item is loose in the world.
func (e *Equippable) SimulatingPhysics() bool { return e.simulating }

// HasBeenPickedUpBefore reports whether the item has ever been equipped.
func (e *Equippable) HasBeenPickedUpBefore() bool { return e.hasBeenPickedUpBefore }

// SetHasBeenPickedUpBefore records that the item has been equipped.
func (e *Equippable) SetHasBeenPickedUpBefore(v bool) { e.hasBeenPickedUpBefore = v }

// SetDropTime starts the re-pickup cooldown.
func (e *Equippable) SetDropTime(cooldown time.Duration) {
	e.dropTime = e.deps.Clock.Now() + cooldown
}

// DropTime returns the world time the item becomes pickable again.
func (e *Equippable) DropTime() time.Duration { return e.dropTime }

// CanPickUp reports whether the item is unowned and its re-pickup cooldown has passed.
func (e *Equippable) CanPickUp(now time.Duration) bool {
	return e.IsValid() && e.owner == nil && now >= e.dropTime
}

// Location returns the world location.
func (e *Equippable) Location() geom.Vector { return e.location }

// Rotation returns the world rotation.
func (e *Equippable) Rotation() geom.Rotator { return e.rotation }

// LastImpulse returns the impulse of the most recent drop.
func (e *Equippable) LastImpulse() geom.Vector { return e.lastImpulse }

// SetTransform places the item, as spawning does.
func (e *Equippable) SetTransform(loc geom.Vector, rot geom.Rotator) {
	e.location = loc
	e.rotation = rot
}

// ReceiveDropInformation applies a drop transform and launch impulse.
func (e *Equippable) ReceiveDropInformation(loc geom.Vector, rot geom.Rotator, impulse geom.Vector) {
	e.location = loc
	e.rotation = rot
	e.lastImpulse = impulse
	e.simulating = true
	e.setMeshesVisible(false, true)
	for _, fn := range e.droppedObservers {
		fn(loc, rot, impulse)
	}
}

// CanEquip reports whether the item may become current. A CanEquipHook may veto.
func (e *Equippable) CanEquip() bool {
	if !e.IsValid() {
		return false
	}
	if e.def.CanEquipHook == "" || e.deps.Scripts == nil {
		return true
	}
	return e.deps.Scripts.CallPredicate(ScriptScope, e.def.CanEquipHook, true, map[string]any{
		"id":                 string(e.id),
		"class":              e.def.ID,
		"slot":               e.def.Slot.String(),
		"owner":              string(e.OwnerID()),
		"needs_rechambering": e.needsRechambering,
	})
}

// AttachToPawn attaches the first or third person mesh to the owner.
func (e *Equippable) AttachToPawn(firstPerson bool) {
	if e.owner == nil {
		e.logger.Warn("AttachToPawn: no owner")
		return
	}
	e.simulating = false
	if firstPerson {
		e.attachedFirstPerson = true
		e.meshes[animation.MeshFirstPersonEquippable].Visible = true
		return
	}
	e.attachedThirdPerson = true
	e.meshes[animation.MeshThirdPersonEquippable].Visible = true
}

// DetachFromPawn detaches the first or third person mesh. A dropped item keeps its third
// person mesh visible on the floor.
func (e *Equippable) DetachFromPawn(firstPerson, dropped bool) {
	if firstPerson {
		e.attachedFirstPerson = false
		e.meshes[animation.MeshFirstPersonEquippable].Visible = false
	} else {
		e.attachedThirdPerson = false
		e.meshes[animation.MeshThirdPersonEquippable].Visible = dropped
	}
}

// IsAttached reports whether the first or third person mesh is attached.
func (e *Equippable) IsAttached(firstPerson bool) bool {
	if firstPerson {
		return e.attachedFirstPerson
	}
	return e.attachedThirdPerson
}

func (e *Equippable) setMeshesVisible(firstPerson, thirdPerson bool) {
	e.meshes[animation.MeshFirstPersonEquippable].Visible = firstPerson
	e.meshes[animation.MeshThirdPersonEquippable].Visible = thirdPerson
}

// AddAbilitiesToOwner grants the item's abilities to the owner. Only the authority grants.
func (e *Equippable) AddAbilitiesToOwner() {
	sys := e.authoritySystem()
	if sys == nil {
		return
	}
	for _, id := range e.def.Abilities {
		def, ok := e.deps.Abilities.Get(id)
		if !ok {
			e.logger.Warn("AddAbilitiesToOwner: unknown ability", zap.String("ability", id))
			continue
		}
		sys.Give(def, e.id)
	}
}

// RemoveAbilitiesFromOwner clears every ability this item granted. Only the authority clears.
func (e *Equippable) RemoveAbilitiesFromOwner() {
	if sys := e.authoritySystem(); sys != nil {
		sys.ClearBySource(e.id)
	}
}

func (e *Equippable) authoritySystem() *ability.System {
	if e.owner == nil || !e.owner.Net().HasAuthority() {
		return nil
	}
	return e.owner.AbilitySystem()
}

// NeedsRechambering reports whether the next idle triggers a rechamber.
func (e *Equippable) NeedsRechambering() bool { return e.needsRechambering }

// SetNeedsRechambering is the replicated setter for the rechamber flag.
func (e *Equippable) SetNeedsRechambering(v bool) { e.needsRechambering = v }

// ExplicitlySpawnedIn is called when a pawn is handed the item at spawn.
func (e *Equippable) ExplicitlySpawnedIn() {
	if e.def.Rechamber.Enabled() && e.def.Rechamber.SpawnUnchambered {
		e.needsRechambering = true
	}
}

// OnIdle runs when the item finishes equipping. An item that needs rechambering
// activates its rechamber ability on the side that drives the owner.
func (e *Equippable) OnIdle() {
	if !e.needsRechambering || e.owner == nil {
		return
	}
	if !e.owner.Net().CanInitiate() {
		return
	}
	e.owner.AbilitySystem().TryActivateByTag(e.def.Rechamber.AbilityTag)
}

func (e *Equippable) watchRechamber(owner FirstPerson) {
	if !e.def.Rechamber.Enabled() {
		return
	}
	sys := owner.AbilitySystem()
	if sys == nil || e.subscribed[sys] {
		return
	}
	e.subscribed[sys] = true
	sys.OnAbilityActivated(func(spec *ability.Spec) {
		if e.owner == nil || e.owner.AbilitySystem() != sys || spec.Source != e.id {
			return
		}
		switch {
		case spec.Def.HasTag(e.def.Rechamber.AbilityTag):
			e.needsRechambering = false
		case e.def.Rechamber.TriggerTag.IsValid() && spec.Def.HasTag(e.def.Rechamber.TriggerTag):
			e.needsRechambering = true
		}
	})
}
