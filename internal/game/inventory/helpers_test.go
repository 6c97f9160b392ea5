package inventory_test

import (
	"fmt"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/ability"
	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
	"github.com/cory-johannsen/spawnmaster/internal/game/inventory"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/game/timer"
)

// tb is satisfied by both *testing.T and *rapid.T.
type tb interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

var (
	standaloneNet = netrole.Context{Role: netrole.RoleAuthority, Mode: netrole.ModeStandalone, LocallyControlled: true}
	dedicatedNet  = netrole.Context{Role: netrole.RoleAuthority, Mode: netrole.ModeDedicatedServer}
	clientNet     = netrole.Context{Role: netrole.RoleAutonomousProxy, Mode: netrole.ModeClient, LocallyControlled: true}
	simulatedNet  = netrole.Context{Role: netrole.RoleSimulatedProxy, Mode: netrole.ModeClient}
)

const (
	slotPrimary   gametag.Tag = "EquippableSlot.Primary"
	slotSecondary gametag.Tag = "EquippableSlot.Secondary"
	slotMelee     gametag.Tag = "EquippableSlot.Melee"
)

// unequipDelay is the arms_unequip length less the finish lead.
const unequipDelay = 490 * time.Millisecond

type fakePawn struct {
	id     actor.ID
	name   string
	net    netrole.Context
	meshes map[animation.MeshType]*animation.Mesh
	sys    *ability.System
	eye    geom.Vector
	aim    geom.Rotator
	rot    geom.Rotator
}

func (p *fakePawn) ID() actor.ID                   { return p.id }
func (p *fakePawn) Name() string                   { return p.name }
func (p *fakePawn) Net() netrole.Context           { return p.net }
func (p *fakePawn) AbilitySystem() *ability.System { return p.sys }
func (p *fakePawn) Rotation() geom.Rotator         { return p.rot }
func (p *fakePawn) EyesViewPoint() (geom.Vector, geom.Rotator) {
	return p.eye, p.aim
}
func (p *fakePawn) MeshOfType(t animation.MeshType) *animation.Mesh {
	return p.meshes[t]
}

type env struct {
	timers    *timer.Manager
	montages  *animation.Library
	abilities *ability.Registry
	defs      map[string]*equippable.Def
}

func montage(name string, length float64) *animation.Montage {
	m := &animation.Montage{Name: name, Length: length}
	m.Normalize()
	return m
}

func newEnv(t tb) *env {
	t.Helper()
	lib, err := animation.NewLibrary(
		montage("arms_unequip", 0.5),
		montage("rifle_equip", 0.4),
	)
	require.NoError(t, err)
	reg, err := ability.NewRegistry(
		&ability.Def{ID: "rifle_fire", Tags: []gametag.Tag{"Ability.Fire"}},
		&ability.Def{ID: "pistol_fire", Tags: []gametag.Tag{"Ability.Fire"}},
		&ability.Def{ID: "knife_slash", Tags: []gametag.Tag{"Ability.Melee"}},
	)
	require.NoError(t, err)
	defs := map[string]*equippable.Def{}
	for _, d := range []*equippable.Def{
		{ID: "rifle", Name: "Rifle", Slot: slotPrimary, Abilities: []string{"rifle_fire"}, EquipMontage: "rifle_equip", UnequipArmsMontage: "arms_unequip"},
		{ID: "shotgun", Name: "Shotgun", Slot: slotPrimary, UnequipArmsMontage: "arms_unequip"},
		{ID: "pistol", Name: "Pistol", Slot: slotSecondary, Abilities: []string{"pistol_fire"}, UnequipArmsMontage: "arms_unequip"},
		{ID: "knife", Name: "Knife", Slot: slotMelee, Abilities: []string{"knife_slash"}},
		{ID: "charm", Name: "Charm", Slot: gametag.SlotNone},
	} {
		defs[d.ID] = d
	}
	return &env{timers: timer.NewManager(), montages: lib, abilities: reg, defs: defs}
}

func (e *env) pawn(t tb, net netrole.Context) *fakePawn {
	t.Helper()
	id := actor.NewID()
	p := &fakePawn{
		id:   id,
		name: "pawn_" + id.Short(),
		net:  net,
		meshes: map[animation.MeshType]*animation.Mesh{
			animation.MeshFirstPersonHands: animation.NewMesh(animation.MeshFirstPersonHands, id),
			animation.MeshThirdPersonBody:  animation.NewMesh(animation.MeshThirdPersonBody, id),
		},
		eye: geom.Vector{Z: 160},
		rot: geom.Rotator{Yaw: 45},
	}
	p.sys = ability.NewSystem(p, ability.Deps{Abilities: e.abilities, Montages: e.montages, Config: ability.DefaultConfig(), Logger: zap.NewNop()})
	return p
}

func (e *env) item(t tb, class string) *equippable.Equippable {
	t.Helper()
	def, ok := e.defs[class]
	require.True(t, ok, "unknown class %s", class)
	return equippable.New(actor.NewID(), def, equippable.Deps{Abilities: e.abilities, Clock: e.timers, Logger: zap.NewNop()})
}

func testConfig() inventory.Config {
	cfg := inventory.DefaultConfig()
	cfg.StartingSlots = []inventory.SlotConfig{
		{Tag: slotPrimary, MaxItems: 2},
		{Tag: slotSecondary, MaxItems: 1},
		{Tag: slotMelee, MaxItems: 1},
	}
	return cfg
}

func (e *env) component(t tb, p *fakePawn, cfg inventory.Config, remote inventory.Remote) *inventory.Component {
	t.Helper()
	return inventory.NewComponent(p, cfg, inventory.Deps{Timers: e.timers, Montages: e.montages, Remote: remote, Logger: zap.NewNop()})
}

// recRemote records every RPC the component sends.
type recRemote struct {
	calls []string
}

func (r *recRemote) record(method string, item *equippable.Equippable, extra ...any) {
	name := "nil"
	if item != nil {
		name = item.Class()
	}
	call := method + "(" + name
	for _, x := range extra {
		call += fmt.Sprintf(",%v", x)
	}
	r.calls = append(r.calls, call+")")
}

func (r *recRemote) ServerAttemptEquip(item *equippable.Equippable) {
	r.record("ServerAttemptEquip", item)
}
func (r *recRemote) ClientAttemptEquip(item *equippable.Equippable) {
	r.record("ClientAttemptEquip", item)
}
func (r *recRemote) ServerSetCurrentEquippable(item *equippable.Equippable) {
	r.record("ServerSetCurrentEquippable", item)
}
func (r *recRemote) ClientSetCurrentEquippable(item *equippable.Equippable) {
	r.record("ClientSetCurrentEquippable", item)
}
func (r *recRemote) ServerDropEquippable(item *equippable.Equippable, instant, dontFindNext bool) {
	r.record("ServerDropEquippable", item, instant, dontFindNext)
}
func (r *recRemote) ClientDropEquippable(item *equippable.Equippable, instant, dontFindNext bool) {
	r.record("ClientDropEquippable", item, instant, dontFindNext)
}
func (r *recRemote) MulticastVisuallyUnEquip(item *equippable.Equippable) {
	r.record("MulticastVisuallyUnEquip", item)
}
func (r *recRemote) MulticastReceiveDropInformation(item *equippable.Equippable, _ geom.Vector, _ geom.Rotator, _ geom.Vector) {
	r.record("MulticastReceiveDropInformation", item)
}

func (r *recRemote) reset() { r.calls = nil }
