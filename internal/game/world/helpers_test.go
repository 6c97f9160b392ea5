package world

import (
	"fmt"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/ability"
	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/game/character"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
	"github.com/cory-johannsen/spawnmaster/internal/game/inventory"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/replication"
)

// tb is satisfied by both *testing.T and *rapid.T.
type tb interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

const (
	tickDT = 50 * time.Millisecond
	// settleTicks covers an unequip, an equip and a round trip with room to spare.
	settleTicks = 40

	slotPrimary   gametag.Tag = "EquippableSlot.Primary"
	slotSecondary gametag.Tag = "EquippableSlot.Secondary"
	slotMelee     gametag.Tag = "EquippableSlot.Melee"

	tagStunned gametag.Tag = "State.Stunned"
)

func montage(name string, length float64) *animation.Montage {
	m := &animation.Montage{Name: name, Length: length}
	m.Normalize()
	return m
}

func testContent(t tb) Content {
	t.Helper()
	lib, err := animation.NewLibrary(
		montage("arms_unequip", 0.5),
		montage("rifle_equip", 0.4),
		montage("rifle_fire", 1.0),
	)
	require.NoError(t, err)
	abilities, err := ability.NewRegistry(
		&ability.Def{
			ID:        "rifle_fire",
			Tags:      []gametag.Tag{"Ability.Fire"},
			BlockedBy: []gametag.Tag{tagStunned},
			Montage:   "rifle_fire",
			Mesh:      animation.MeshThirdPersonBody,
		},
		&ability.Def{ID: "pistol_fire", Tags: []gametag.Tag{"Ability.Fire"}},
		&ability.Def{ID: "knife_slash", Tags: []gametag.Tag{"Ability.Melee"}},
	)
	require.NoError(t, err)
	items, err := equippable.NewRegistry(
		&equippable.Def{ID: "rifle", Name: "Rifle", Slot: slotPrimary, Abilities: []string{"rifle_fire"}, EquipMontage: "rifle_equip", UnequipArmsMontage: "arms_unequip"},
		&equippable.Def{ID: "pistol", Name: "Pistol", Slot: slotSecondary, Abilities: []string{"pistol_fire"}, UnequipArmsMontage: "arms_unequip"},
		&equippable.Def{ID: "knife", Name: "Knife", Slot: slotMelee, Abilities: []string{"knife_slash"}},
	)
	require.NoError(t, err)
	return Content{
		Montages:    lib,
		Abilities:   abilities,
		Equippables: items,
		Level: &Level{
			ID:   "test",
			Name: "Test",
			PlayerStarts: []PlayerStart{
				{Team: gametag.TeamSurvivor, Location: geom.Vector{X: 100}},
				{Team: gametag.TeamNone, Location: geom.Vector{X: -100}},
			},
			ItemSpawns: []ItemSpawn{
				{Class: "knife", Location: geom.Vector{X: 50}},
			},
		},
	}
}

func testConfig(mode netrole.NetMode) Config {
	cfg := Config{
		Mode:      mode,
		Inventory: inventory.DefaultConfig(),
		Ability:   ability.DefaultConfig(),
	}
	if mode.IsServer() {
		cfg.SpawnOnJoin = true
		cfg.Teams = []gametag.Tag{gametag.TeamSurvivor, gametag.TeamZombie}
		cfg.StartingLoadout = []string{"rifle", "pistol"}
	}
	return cfg
}

func newWorld(t tb, mode netrole.NetMode) *World {
	t.Helper()
	w, err := New(testConfig(mode), testContent(t), zap.NewNop())
	require.NoError(t, err)
	return w
}

// match is a server world and the client worlds joined to it over pipes.
type match struct {
	t       tb
	server  *World
	clients []*World
	conns   []replication.Conn
}

func newMatch(t tb, mode netrole.NetMode) *match {
	t.Helper()
	return &match{t: t, server: newWorld(t, mode)}
}

// join connects a new client world as name. Its connection id is conn-N.
func (m *match) join(name string) *World {
	m.t.Helper()
	id := fmt.Sprintf("conn-%d", len(m.clients)+1)
	serverEnd, clientEnd := replication.NewPipe(id, "server", 0, nil)
	client := newWorld(m.t, netrole.ModeClient)
	m.server.AddConnection(serverEnd)
	require.NoError(m.t, client.ConnectToServer(clientEnd, name))
	m.clients = append(m.clients, client)
	m.conns = append(m.conns, clientEnd)
	return client
}

// raw attaches a connection the test drives by hand and returns the test's end.
func (m *match) raw(id string) replication.Conn {
	serverEnd, testEnd := replication.NewPipe(id, "server", 0, nil)
	m.server.AddConnection(serverEnd)
	return testEnd
}

func (m *match) step(n int) {
	for i := 0; i < n; i++ {
		m.server.Tick(tickDT)
		for _, c := range m.clients {
			c.Tick(tickDT)
		}
	}
}

func (m *match) settle() { m.step(settleTicks) }

// stepUntil steps until cond holds, failing after max steps.
func (m *match) stepUntil(max int, cond func() bool) {
	m.t.Helper()
	for i := 0; i < max; i++ {
		if cond() {
			return
		}
		m.step(1)
	}
	require.True(m.t, cond(), "condition not met after %d steps", max)
}

// serverPawn returns the server's copy of the pawn client c controls.
func (m *match) serverPawn(c *World) *character.Pawn {
	m.t.Helper()
	p := m.server.PawnOwnedBy(c.LocalConnID())
	require.NotNil(m.t, p, "server has no pawn for %s", c.LocalConnID())
	return p
}

func itemIDs(p *character.Pawn) []string {
	var out []string
	for _, item := range p.Inventory().AllEquippables() {
		out = append(out, string(item.ID()))
	}
	return out
}

func slotIDs(p *character.Pawn) map[gametag.Tag][]string {
	out := make(map[gametag.Tag][]string)
	for _, s := range p.Inventory().Slots() {
		ids := []string{}
		for _, item := range s.Items {
			ids = append(ids, string(item.ID()))
		}
		out[s.Tag] = ids
	}
	return out
}

func currentClass(p *character.Pawn) string {
	if cur := p.Inventory().Current(); cur != nil {
		return cur.Class()
	}
	return ""
}

func envelope(t tb, kind replication.Kind, component, method string, args any) replication.Envelope {
	t.Helper()
	payload, err := replication.Encode(args)
	require.NoError(t, err)
	return replication.Envelope{Kind: kind, Component: component, Method: method, Payload: payload}
}
