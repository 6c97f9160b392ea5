package equippable_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/spawnmaster/internal/game/ability"
	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/game/timer"
	"github.com/cory-johannsen/spawnmaster/internal/scripting"
)

type fakePawn struct {
	id     actor.ID
	net    netrole.Context
	meshes map[animation.MeshType]*animation.Mesh
	sys    *ability.System
}

func (p *fakePawn) ID() actor.ID                   { return p.id }
func (p *fakePawn) Net() netrole.Context           { return p.net }
func (p *fakePawn) AbilitySystem() *ability.System { return p.sys }
func (p *fakePawn) MeshOfType(t animation.MeshType) *animation.Mesh {
	return p.meshes[t]
}

var (
	authorityNet = netrole.Context{Role: netrole.RoleAuthority, Mode: netrole.ModeDedicatedServer}
	ownerNet     = netrole.Context{Role: netrole.RoleAutonomousProxy, Mode: netrole.ModeClient, LocallyControlled: true}
)

func abilities(t *testing.T) *ability.Registry {
	t.Helper()
	reg, err := ability.NewRegistry(
		&ability.Def{ID: "shotgun_fire", Tags: []gametag.Tag{"Ability.Fire"}},
		&ability.Def{ID: "shotgun_pump", Tags: []gametag.Tag{"Ability.Rechamber"}},
	)
	require.NoError(t, err)
	return reg
}

func newPawn(t *testing.T, net netrole.Context, reg *ability.Registry) *fakePawn {
	t.Helper()
	id := actor.NewID()
	p := &fakePawn{
		id:  id,
		net: net,
		meshes: map[animation.MeshType]*animation.Mesh{
			animation.MeshFirstPersonHands: animation.NewMesh(animation.MeshFirstPersonHands, id),
			animation.MeshThirdPersonBody:  animation.NewMesh(animation.MeshThirdPersonBody, id),
		},
	}
	p.sys = ability.NewSystem(p, ability.Deps{Abilities: reg, Config: ability.DefaultConfig(), Logger: zap.NewNop()})
	return p
}

func shotgunDef() *equippable.Def {
	return &equippable.Def{
		ID:        "shotgun",
		Name:      "Shotgun",
		Slot:      "EquippableSlot.Primary",
		Abilities: []string{"shotgun_fire", "shotgun_pump"},
		Rechamber: equippable.RechamberDef{AbilityTag: "Ability.Rechamber", TriggerTag: "Ability.Fire"},
	}
}

func newItem(t *testing.T, def *equippable.Def, clock *timer.Manager, reg *ability.Registry, scripts *scripting.Manager) *equippable.Equippable {
	t.Helper()
	return equippable.New(actor.NewID(), def, equippable.Deps{Abilities: reg, Scripts: scripts, Clock: clock, Logger: zap.NewNop()})
}

func TestNew_StartsOnFloor(t *testing.T) {
	item := newItem(t, shotgunDef(), timer.NewManager(), abilities(t), nil)
	assert.True(t, item.IsValid())
	assert.Nil(t, item.Owner())
	assert.True(t, item.SimulatingPhysics())
	assert.Equal(t, "shotgun", item.Class())
	assert.Equal(t, gametag.Tag("EquippableSlot.Primary"), item.SlotTag())
	assert.False(t, item.MeshOfType(animation.MeshFirstPersonEquippable).Visible)
	assert.True(t, item.MeshOfType(animation.MeshThirdPersonEquippable).Visible)
}

func TestNew_PanicsWithoutClock(t *testing.T) {
	assert.Panics(t, func() {
		equippable.New(actor.NewID(), shotgunDef(), equippable.Deps{Logger: zap.NewNop()})
	})
}

func TestRef_GetRevalidates(t *testing.T) {
	item := newItem(t, shotgunDef(), timer.NewManager(), abilities(t), nil)
	ref := equippable.MakeRef(item)
	assert.Same(t, item, ref.Get())
	assert.True(t, ref.Is(item))
	item.Destroy()
	assert.Nil(t, ref.Get())
	assert.False(t, ref.IsValid())
	assert.False(t, ref.Is(item))

	var empty equippable.Ref
	assert.Nil(t, empty.Get())
	ref = equippable.MakeRef(newItem(t, shotgunDef(), timer.NewManager(), abilities(t), nil))
	ref.Reset()
	assert.False(t, ref.IsValid())
}

func TestCanPickUp_HonoursCooldownAndOwner(t *testing.T) {
	clock := timer.NewManager()
	reg := abilities(t)
	item := newItem(t, shotgunDef(), clock, reg, nil)
	item.SetDropTime(2 * time.Second)
	assert.False(t, item.CanPickUp(clock.Now()))
	clock.Advance(2 * time.Second)
	assert.True(t, item.CanPickUp(clock.Now()))

	item.SetOwner(newPawn(t, authorityNet, reg))
	assert.False(t, item.CanPickUp(clock.Now()))
	item.SetOwner(nil)
	item.Destroy()
	assert.False(t, item.CanPickUp(clock.Now()))
}

func TestAbilities_GrantedOnlyOnAuthority(t *testing.T) {
	reg := abilities(t)
	server := newPawn(t, authorityNet, reg)
	item := newItem(t, shotgunDef(), timer.NewManager(), reg, nil)
	item.SetOwner(server)
	item.AddAbilitiesToOwner()
	assert.Len(t, server.sys.Specs(), 2)
	item.RemoveAbilitiesFromOwner()
	assert.Empty(t, server.sys.Specs())

	client := newPawn(t, ownerNet, reg)
	other := newItem(t, shotgunDef(), timer.NewManager(), reg, nil)
	other.SetOwner(client)
	other.AddAbilitiesToOwner()
	assert.Empty(t, client.sys.Specs())
}

func TestAttachDetach(t *testing.T) {
	reg := abilities(t)
	item := newItem(t, shotgunDef(), timer.NewManager(), reg, nil)
	item.AttachToPawn(true)
	assert.False(t, item.IsAttached(true), "no owner")

	item.SetOwner(newPawn(t, ownerNet, reg))
	item.AttachToPawn(true)
	assert.True(t, item.IsAttached(true))
	assert.True(t, item.MeshOfType(animation.MeshFirstPersonEquippable).Visible)
	item.AttachToPawn(false)
	assert.True(t, item.IsAttached(false))
	item.DetachFromPawn(true, false)
	assert.False(t, item.IsAttached(true))
	assert.False(t, item.MeshOfType(animation.MeshFirstPersonEquippable).Visible)
	item.DetachFromPawn(false, true)
	assert.False(t, item.IsAttached(false))
	assert.True(t, item.MeshOfType(animation.MeshThirdPersonEquippable).Visible)
}

func TestSetOwner_NotifiesAndReleases(t *testing.T) {
	reg := abilities(t)
	pawn := newPawn(t, authorityNet, reg)
	item := newItem(t, shotgunDef(), timer.NewManager(), reg, nil)
	var olds []equippable.FirstPerson
	item.OnOwnerChanged(func(old equippable.FirstPerson) { olds = append(olds, old) })
	item.SetOwner(pawn)
	item.SetOwner(pawn)
	assert.False(t, item.SimulatingPhysics())
	item.AttachToPawn(false)
	item.SetOwner(nil)
	assert.True(t, item.SimulatingPhysics())
	assert.False(t, item.IsAttached(false))
	require.Len(t, olds, 2)
	assert.Nil(t, olds[0])
	assert.Equal(t, pawn.ID(), olds[1].ID())
}

func TestReceiveDropInformation(t *testing.T) {
	item := newItem(t, shotgunDef(), timer.NewManager(), abilities(t), nil)
	var got geom.Vector
	item.OnDropInformation(func(_ geom.Vector, _ geom.Rotator, impulse geom.Vector) { got = impulse })
	loc := geom.Vector{X: 1, Y: 2, Z: 3}
	rot := geom.Rotator{Pitch: -90}
	imp := geom.Vector{X: 300, Z: 100}
	item.ReceiveDropInformation(loc, rot, imp)
	assert.Equal(t, loc, item.Location())
	assert.Equal(t, rot, item.Rotation())
	assert.Equal(t, imp, item.LastImpulse())
	assert.Equal(t, imp, got)
}

func TestCanEquip_LuaHook(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "equip.lua"), []byte(`
		function shotgun_ready(ctx) return ctx.needs_rechambering == false end
	`), 0o644))
	mgr := scripting.NewManager(zap.NewNop())
	t.Cleanup(mgr.Close)
	require.NoError(t, mgr.LoadScope(equippable.ScriptScope, dir, 0))

	def := shotgunDef()
	def.CanEquipHook = "shotgun_ready"
	item := newItem(t, def, timer.NewManager(), abilities(t), mgr)
	assert.True(t, item.CanEquip())
	item.SetNeedsRechambering(true)
	assert.False(t, item.CanEquip())
	item.Destroy()
	assert.False(t, item.CanEquip())
}

func TestRechamber_FireSetsAndPumpClears(t *testing.T) {
	reg := abilities(t)
	pawn := newPawn(t, netrole.Context{Role: netrole.RoleAuthority, Mode: netrole.ModeListenServer, LocallyControlled: true}, reg)
	item := newItem(t, shotgunDef(), timer.NewManager(), reg, nil)
	item.SetOwner(pawn)
	item.AddAbilitiesToOwner()

	require.True(t, pawn.sys.TryActivateByTag("Ability.Fire"))
	assert.True(t, item.NeedsRechambering())
	item.OnIdle()
	assert.False(t, item.NeedsRechambering(), "idle activates the rechamber ability")
}

func TestRechamber_SpawnUnchambered(t *testing.T) {
	def := shotgunDef()
	def.Rechamber.SpawnUnchambered = true
	item := newItem(t, def, timer.NewManager(), abilities(t), nil)
	assert.False(t, item.NeedsRechambering())
	item.ExplicitlySpawnedIn()
	assert.True(t, item.NeedsRechambering())

	def2 := shotgunDef()
	def2.Rechamber.StartUnchambered = true
	assert.True(t, newItem(t, def2, timer.NewManager(), abilities(t), nil).NeedsRechambering())
}

func TestRechamber_IgnoresOtherSources(t *testing.T) {
	reg := abilities(t)
	pawn := newPawn(t, authorityNet, reg)
	item := newItem(t, shotgunDef(), timer.NewManager(), reg, nil)
	item.SetOwner(pawn)
	fire, _ := reg.Get("shotgun_fire")
	pawn.sys.Give(fire, actor.NewID())
	require.True(t, pawn.sys.TryActivateByTag("Ability.Fire"))
	assert.False(t, item.NeedsRechambering())
}

func TestProperty_CanPickUp_MatchesCooldown(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		clock := timer.NewManager()
		reg, _ := ability.NewRegistry()
		item := equippable.New(actor.NewID(), shotgunDef(), equippable.Deps{Abilities: reg, Clock: clock, Logger: zap.NewNop()})
		cooldown := time.Duration(rapid.Int64Range(0, 10_000).Draw(rt, "cooldown")) * time.Millisecond
		elapsed := time.Duration(rapid.Int64Range(0, 10_000).Draw(rt, "elapsed")) * time.Millisecond
		item.SetDropTime(cooldown)
		clock.Advance(elapsed)
		if got, want := item.CanPickUp(clock.Now()), elapsed >= cooldown; got != want {
			rt.Fatalf("CanPickUp = %v, want %v (cooldown %v elapsed %v)", got, want, cooldown, elapsed)
		}
	})
}
