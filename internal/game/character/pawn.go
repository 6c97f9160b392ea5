// Package character defines the player pawn: the actor that owns an ability system and
// an equippable inventory and carries the first person and third person meshes.
package character

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cory-johannsen/spawnmaster/internal/game/ability"
	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
	"github.com/cory-johannsen/spawnmaster/internal/game/inventory"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
)

// DefaultEyeHeight is the eye offset above the pawn location.
const DefaultEyeHeight = 64

// Spec describes a pawn to build.
type Spec struct {
	ID   actor.ID
	Name string
	// OwnerConn is the replication connection controlling the pawn; empty for the
	// hosting player or an uncontrolled pawn.
	OwnerConn string
	Team      gametag.Tag
	Net       netrole.Context
	EyeHeight float64
	Location  geom.Vector
	Rotation  geom.Rotator
}

// Deps are the collaborators handed to the pawn's ability system and inventory.
type Deps struct {
	Ability         ability.Deps
	Inventory       inventory.Deps
	InventoryConfig inventory.Config
}

// Pawn is a player-controlled character. It is not safe for concurrent use.
type Pawn struct {
	id        actor.ID
	name      string
	ownerConn string
	team      gametag.Tag
	net       netrole.Context
	eyeHeight float64

	location geom.Vector
	rotation geom.Rotator
	control  geom.Rotator

	meshes map[animation.MeshType]*animation.Mesh
	sys    *ability.System
	inv    *inventory.Component
}

// Build constructs a pawn with its hands and body meshes, ability system and inventory.
//
// Precondition: spec.ID and spec.Name must be non-empty and spec.Net must have a resolved role.
// Postcondition: Returns a Pawn with nothing equipped, or a non-nil error.
func Build(spec Spec, deps Deps) (*Pawn, error) {
	if !spec.ID.IsValid() {
		return nil, errors.New("character: pawn id must not be empty")
	}
	if spec.Name == "" {
		return nil, errors.New("character: pawn name must not be empty")
	}
	if err := spec.Net.Validate(); err != nil {
		return nil, fmt.Errorf("character: pawn %q: %w", spec.Name, err)
	}
	if deps.Ability.Logger == nil || deps.Inventory.Logger == nil || deps.Inventory.Timers == nil {
		return nil, errors.New("character: logger and timers must not be nil")
	}
	team := spec.Team
	if !team.IsValid() {
		team = gametag.TeamNone
	}
	eye := spec.EyeHeight
	if eye <= 0 {
		eye = DefaultEyeHeight
	}
	p := &Pawn{
		id:        spec.ID,
		name:      spec.Name,
		ownerConn: spec.OwnerConn,
		team:      team,
		net:       spec.Net,
		eyeHeight: eye,
		location:  spec.Location,
		rotation:  spec.Rotation,
		control:   spec.Rotation,
		meshes: map[animation.MeshType]*animation.Mesh{
			animation.MeshFirstPersonHands: animation.NewMesh(animation.MeshFirstPersonHands, spec.ID),
			animation.MeshThirdPersonBody:  animation.NewMesh(animation.MeshThirdPersonBody, spec.ID),
		},
	}
	p.sys = ability.NewSystem(p, deps.Ability)
	p.inv = inventory.NewComponent(p, deps.InventoryConfig, deps.Inventory)
	return p, nil
}

func (p *Pawn) ID() actor.ID                    { return p.id }
func (p *Pawn) Name() string                    { return p.name }
func (p *Pawn) OwnerConn() string               { return p.ownerConn }
func (p *Pawn) Team() gametag.Tag               { return p.team }
func (p *Pawn) Net() netrole.Context            { return p.net }
func (p *Pawn) AbilitySystem() *ability.System  { return p.sys }
func (p *Pawn) Inventory() *inventory.Component { return p.inv }

// MeshOfType returns the pawn mesh of type t, or nil.
func (p *Pawn) MeshOfType(t animation.MeshType) *animation.Mesh {
	return p.meshes[t]
}

// Meshes returns the pawn meshes ordered by type.
func (p *Pawn) Meshes() []*animation.Mesh {
	out := make([]*animation.Mesh, 0, len(p.meshes))
	for _, m := range p.meshes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func (p *Pawn) Location() geom.Vector     { return p.location }
func (p *Pawn) SetLocation(v geom.Vector) { p.location = v }
func (p *Pawn) Rotation() geom.Rotator    { return p.rotation }

// SetRotation turns the pawn and its aim together.
func (p *Pawn) SetRotation(r geom.Rotator) {
	p.rotation = r
	p.control = r
}

// SetControlRotation changes where the pawn aims without turning its body.
func (p *Pawn) SetControlRotation(r geom.Rotator) { p.control = r }

// EyesViewPoint returns the eye location and aim rotation.
func (p *Pawn) EyesViewPoint() (geom.Vector, geom.Rotator) {
	return p.location.Add(geom.Vector{Z: p.eyeHeight}), p.control
}

// IsFriendly reports whether other is on the same team. Pawns without a team are
// friendly to nobody.
func (p *Pawn) IsFriendly(other *Pawn) bool {
	if other == nil || p.team == gametag.TeamNone {
		return false
	}
	return p.team == other.team
}
