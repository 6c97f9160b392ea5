// Package world drives one side of a match: it owns the timers, pawns, equippables and
// floor of a single process side, advances them once per tick and routes replication
// envelopes to and from its peers.
//
// A World is not safe for concurrent use. Only AddConnection and Post may be called from
// other goroutines; everything else runs on the goroutine that calls Tick.
package world

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/ability"
	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/game/character"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/inventory"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/game/session"
	"github.com/cory-johannsen/spawnmaster/internal/game/timer"
	"github.com/cory-johannsen/spawnmaster/internal/metrics"
	"github.com/cory-johannsen/spawnmaster/internal/replication"
)

// Config tunes a world.
type Config struct {
	Mode      netrole.NetMode
	Inventory inventory.Config
	Ability   ability.Config
	EyeHeight float64
	// SpawnOnJoin spawns a pawn for every connection that says hello.
	SpawnOnJoin bool
	// Teams are balanced across joining connections in order.
	Teams []gametag.Tag
	// StartingLoadout lists the equippable classes handed to every spawned pawn.
	StartingLoadout []string
	// DebugPrintInterval prints every inventory to DebugWriter at this interval; zero
	// disables printing.
	DebugPrintInterval time.Duration
	DebugWriter        io.Writer
}

// World is one process side of a match.
type World struct {
	cfg     Config
	content Content
	logger  *zap.Logger

	timers   *timer.Manager
	floor    *inventory.Floor
	sessions *session.Manager

	pawns map[actor.ID]*character.Pawn
	items map[actor.ID]*equippable.Equippable
	order []actor.ID

	peers     map[string]*peer
	peerOrder []string
	server    *peer
	localConn string

	spawnCount map[gametag.Tag]int
	replay     bool
	sinceDebug time.Duration

	mu       sync.Mutex
	posted   []func()
	incoming []replication.Conn
}

// New returns an empty world.
//
// Precondition: logger must be non-nil and content must validate.
// Postcondition: Returns a World with no actors or peers, or a non-nil error.
func New(cfg Config, content Content, logger *zap.Logger) (*World, error) {
	if logger == nil {
		return nil, errors.New("world: logger must not be nil")
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}
	if cfg.EyeHeight <= 0 {
		cfg.EyeHeight = character.DefaultEyeHeight
	}
	if len(cfg.Teams) == 0 {
		cfg.Teams = []gametag.Tag{gametag.TeamSurvivor}
	}
	for _, class := range cfg.StartingLoadout {
		if _, ok := content.Equippables.Get(class); !ok {
			return nil, fmt.Errorf("world: starting loadout: unknown equippable class %q", class)
		}
	}
	w := &World{
		cfg:        cfg,
		content:    content,
		logger:     logger.With(zap.Stringer("net_mode", cfg.Mode)),
		timers:     timer.NewManager(),
		floor:      inventory.NewFloor(),
		sessions:   session.NewManager(),
		pawns:      make(map[actor.ID]*character.Pawn),
		items:      make(map[actor.ID]*equippable.Equippable),
		peers:      make(map[string]*peer),
		spawnCount: make(map[gametag.Tag]int),
	}
	w.wireScripts()
	return w, nil
}

// wireScripts answers the engine.* queries Lua hooks make about actors.
func (w *World) wireScripts() {
	s := w.content.Scripts
	if s == nil {
		return
	}
	s.HasTag = func(actorID, tag string) bool {
		p, ok := w.pawns[actor.ID(actorID)]
		return ok && p.AbilitySystem().HasMatchingTag(gametag.Tag(tag))
	}
	s.TeamOf = func(actorID string) string {
		if p, ok := w.pawns[actor.ID(actorID)]; ok {
			return p.Team().String()
		}
		return ""
	}
	s.SlotLen = func(actorID, slot string) int {
		p, ok := w.pawns[actor.ID(actorID)]
		if !ok {
			return 0
		}
		items, _ := p.Inventory().SlotInventory(gametag.Tag(slot))
		return len(items)
	}
}

// Mode returns the world's net mode.
func (w *World) Mode() netrole.NetMode { return w.cfg.Mode }

// Now returns the elapsed world time.
func (w *World) Now() time.Duration { return w.timers.Now() }

// Timers returns the world's timer manager.
func (w *World) Timers() *timer.Manager { return w.timers }

// Floor returns the ownerless equippables lying in the world.
func (w *World) Floor() *inventory.Floor { return w.floor }

// Sessions returns the joined connections. Only server worlds populate it.
func (w *World) Sessions() *session.Manager { return w.sessions }

// Content returns the world's static content.
func (w *World) Content() Content { return w.content }

// LocalConnID returns the connection id the server assigned this client, or "".
func (w *World) LocalConnID() string { return w.localConn }

// Pawn returns the pawn with id.
func (w *World) Pawn(id actor.ID) (*character.Pawn, bool) {
	p, ok := w.pawns[id]
	return p, ok
}

// Equippable returns the equippable with id.
func (w *World) Equippable(id actor.ID) (*equippable.Equippable, bool) {
	item, ok := w.items[id]
	return item, ok
}

// Pawns returns every pawn in spawn order.
func (w *World) Pawns() []*character.Pawn {
	var out []*character.Pawn
	for _, id := range w.order {
		if p, ok := w.pawns[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Equippables returns every equippable in spawn order.
func (w *World) Equippables() []*equippable.Equippable {
	var out []*equippable.Equippable
	for _, id := range w.order {
		if item, ok := w.items[id]; ok {
			out = append(out, item)
		}
	}
	return out
}

// LocalPawn returns the pawn this process controls: the autonomous proxy on a client,
// the host's pawn on a listen server or standalone world.
func (w *World) LocalPawn() *character.Pawn {
	for _, p := range w.Pawns() {
		if p.Net().LocallyControlled {
			return p
		}
	}
	return nil
}

// PawnOwnedBy returns the pawn controlled by connection connID.
func (w *World) PawnOwnedBy(connID string) *character.Pawn {
	for _, p := range w.Pawns() {
		if connID != "" && p.OwnerConn() == connID {
			return p
		}
	}
	return nil
}

// SetPlayingReplay widens the montage correction threshold while a replay plays.
func (w *World) SetPlayingReplay(v bool) { w.replay = v }

// IsPlayingReplay reports whether a replay is playing.
func (w *World) IsPlayingReplay() bool { return w.replay }

// Post queues fn to run on the tick goroutine at the start of the next Tick. Safe for
// concurrent use.
func (w *World) Post(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.posted = append(w.posted, fn)
}

// Tick advances the world by dt: posted work and new connections, inbound envelopes,
// timers, animation, montage replication upkeep, outbound property replication and the
// debug overlay, in that order.
//
// Precondition: dt >= 0.
func (w *World) Tick(dt time.Duration) {
	start := time.Now()
	defer func() { metrics.TickDuration.Observe(time.Since(start).Seconds()) }()

	w.mu.Lock()
	posted, incoming := w.posted, w.incoming
	w.posted, w.incoming = nil, nil
	w.mu.Unlock()
	for _, fn := range posted {
		fn()
	}
	for _, c := range incoming {
		w.attach(c)
	}

	w.pollPeers()
	w.timers.Advance(dt)

	secs := dt.Seconds()
	for _, id := range w.order {
		for _, mesh := range w.meshesOf(id) {
			if anim := mesh.AnimInstance(); anim != nil {
				anim.Advance(secs)
			}
		}
	}
	for _, p := range w.Pawns() {
		sys := p.AbilitySystem()
		sys.Tick()
		sys.RetryPendingMontageRep()
	}

	if w.cfg.Mode.IsServer() {
		w.flushProperties()
	}
	w.debugPrint(dt)
}

func (w *World) meshesOf(id actor.ID) []*animation.Mesh {
	if p, ok := w.pawns[id]; ok {
		return p.Meshes()
	}
	if item, ok := w.items[id]; ok {
		return []*animation.Mesh{
			item.MeshOfType(animation.MeshFirstPersonEquippable),
			item.MeshOfType(animation.MeshThirdPersonEquippable),
		}
	}
	return nil
}

func (w *World) debugPrint(dt time.Duration) {
	if w.cfg.DebugPrintInterval <= 0 || w.cfg.DebugWriter == nil {
		return
	}
	w.sinceDebug += dt
	if w.sinceDebug < w.cfg.DebugPrintInterval {
		return
	}
	w.sinceDebug = 0
	w.PrintDebug(w.cfg.DebugWriter)
}

// PrintDebug writes every pawn's inventory to out.
func (w *World) PrintDebug(out io.Writer) {
	for _, p := range w.Pawns() {
		p.Inventory().PrintDebug(out)
	}
}

func (w *World) removeFromOrder(id actor.ID) {
	for i, v := range w.order {
		if v == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			return
		}
	}
}
