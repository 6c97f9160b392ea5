package ability

import (
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/scripting"
)

// ScriptScope is the scripting scope ability hooks are looked up in.
const ScriptScope = "abilities"

// Avatar is the actor an ability system belongs to and animates.
type Avatar interface {
	ID() actor.ID
	Net() netrole.Context
	MeshOfType(t animation.MeshType) *animation.Mesh
}

// Remote carries ability RPCs to the other side of the connection. Implementations
// route ServerTryActivate to the authority and the Client* calls to the owning client.
type Remote interface {
	ServerTryActivate(abilityID string, key uint32)
	ClientActivateFailed(key uint32)
	ClientActivateSucceeded(key uint32)
}

// Config tunes montage replication.
type Config struct {
	// ErrorThreshold is the position error in seconds above which observers snap.
	ErrorThreshold float64
	// ReplayThreshold replaces ErrorThreshold while a replay is playing.
	ReplayThreshold float64
	// Debug logs every received montage update.
	Debug bool
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{ErrorThreshold: 0.1, ReplayThreshold: 0.5}
}

// Deps are the collaborators a System needs. Scripts, Remote, IsPlayingReplay and
// ReadyForReplicatedMontage are optional.
type Deps struct {
	Abilities                 *Registry
	Montages                  *animation.Library
	Scripts                   *scripting.Manager
	Remote                    Remote
	Config                    Config
	Logger                    *zap.Logger
	IsPlayingReplay           func() bool
	ReadyForReplicatedMontage func(mesh *animation.Mesh) bool
}

// Handle identifies a granted ability within one System.
type Handle uint32

// Spec is a granted ability.
type Spec struct {
	Handle Handle
	Def    *Def
	Source actor.ID

	currentMontages map[animation.MeshType]*animation.Montage
}

// CurrentMontageForMesh returns the montage this ability last played on t.
func (s *Spec) CurrentMontageForMesh(t animation.MeshType) *animation.Montage {
	return s.currentMontages[t]
}

// CueEvent is the lifecycle event of a local gameplay cue.
type CueEvent uint8

const (
	CueExecuted CueEvent = iota
	CueOnActive
	CueWhileActive
	CueRemoved
)

type prediction struct {
	mesh    *animation.Mesh
	montage *animation.Montage
}

// System is the ability system of one avatar. It is not safe for concurrent use.
type System struct {
	avatar Avatar
	deps   Deps
	logger *zap.Logger

	tags       gametag.Container
	specs      map[Handle]*Spec
	nextHandle Handle

	local             map[animation.MeshType]*LocalMontage
	rep               []RepMontage
	applied           map[animation.MeshType]*appliedRep
	pendingMontageRep bool
	hooked            map[*animation.Instance]bool

	nextKey     uint32
	activeKey   uint32
	predictions map[uint32][]prediction

	cueObservers       []func(tag gametag.Tag, ev CueEvent)
	activatedObservers []func(spec *Spec)
	endedObservers     []func(spec *Spec)
}

// NewSystem returns an ability system for avatar.
//
// Precondition: avatar and deps.Logger must be non-nil.
// Postcondition: no abilities are granted and no montage is tracked.
func NewSystem(avatar Avatar, deps Deps) *System {
	if avatar == nil {
		panic("ability.NewSystem: avatar must not be nil")
	}
	if deps.Logger == nil {
		panic("ability.NewSystem: logger must not be nil")
	}
	return &System{
		avatar:      avatar,
		deps:        deps,
		logger:      deps.Logger.With(zap.String("component", "ability"), zap.String("avatar", avatar.ID().Short())),
		specs:       make(map[Handle]*Spec),
		local:       make(map[animation.MeshType]*LocalMontage),
		applied:     make(map[animation.MeshType]*appliedRep),
		hooked:      make(map[*animation.Instance]bool),
		predictions: make(map[uint32][]prediction),
	}
}

// SetRemote installs the RPC sender. Worlds call this once the avatar is registered.
func (s *System) SetRemote(r Remote) {
	s.deps.Remote = r
}

// AddLooseTag adds one count of tag.
func (s *System) AddLooseTag(tag gametag.Tag) {
	s.tags.Add(tag)
}

// RemoveLooseTag removes one count of tag and reports whether it was present.
func (s *System) RemoveLooseTag(tag gametag.Tag) bool {
	return s.tags.Remove(tag)
}

// HasMatchingTag reports whether any owned tag matches tag hierarchically.
func (s *System) HasMatchingTag(tag gametag.Tag) bool {
	return s.tags.HasMatching(tag)
}

// HasExactTag reports whether tag itself is owned.
func (s *System) HasExactTag(tag gametag.Tag) bool {
	return s.tags.HasExact(tag)
}

// LooseTags returns the owned tags in sorted order.
func (s *System) LooseTags() []gametag.Tag {
	return s.tags.Tags()
}

// Give grants def to the avatar on behalf of source.
//
// Precondition: def must be non-nil.
// Postcondition: returns a handle unique within this System.
func (s *System) Give(def *Def, source actor.ID) Handle {
	s.nextHandle++
	h := s.nextHandle
	s.specs[h] = &Spec{Handle: h, Def: def, Source: source, currentMontages: make(map[animation.MeshType]*animation.Montage)}
	s.logger.Debug("ability granted",
		zap.String("ability", def.ID),
		zap.String("source", source.Short()),
	)
	return h
}

// Clear removes the ability bound to h. Unknown handles are ignored.
func (s *System) Clear(h Handle) {
	spec, ok := s.specs[h]
	if !ok {
		return
	}
	delete(s.specs, h)
	s.clearAnimatingAbility(spec)
}

// ClearBySource removes every ability granted by source and returns how many were
// removed.
func (s *System) ClearBySource(source actor.ID) int {
	n := 0
	for h, spec := range s.specs {
		if spec.Source == source {
			delete(s.specs, h)
			s.clearAnimatingAbility(spec)
			n++
		}
	}
	if n > 0 {
		s.logger.Debug("abilities cleared", zap.String("source", source.Short()), zap.Int("count", n))
	}
	return n
}

// Specs returns the granted abilities in handle order.
func (s *System) Specs() []*Spec {
	out := make([]*Spec, 0, len(s.specs))
	for _, spec := range s.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// FindByDefID returns the first granted ability with the given definition ID.
func (s *System) FindByDefID(id string) *Spec {
	for _, spec := range s.Specs() {
		if spec.Def.ID == id {
			return spec
		}
	}
	return nil
}

// OnCue registers fn to receive local gameplay cue events.
func (s *System) OnCue(fn func(tag gametag.Tag, ev CueEvent)) {
	s.cueObservers = append(s.cueObservers, fn)
}

// OnAbilityActivated registers fn to be called after an ability activates on this side.
func (s *System) OnAbilityActivated(fn func(spec *Spec)) {
	s.activatedObservers = append(s.activatedObservers, fn)
}

// OnAbilityEnded registers fn to be called when an ability's montage finishes.
func (s *System) OnAbilityEnded(fn func(spec *Spec)) {
	s.endedObservers = append(s.endedObservers, fn)
}

// ExecuteCueLocal fires a one-shot cue without replicating it.
func (s *System) ExecuteCueLocal(tag gametag.Tag) {
	s.fireCue(tag, CueExecuted)
}

// AddCueLocal activates a persistent cue without replicating it.
func (s *System) AddCueLocal(tag gametag.Tag) {
	s.fireCue(tag, CueOnActive)
	s.fireCue(tag, CueWhileActive)
}

// RemoveCueLocal removes a persistent cue without replicating it.
func (s *System) RemoveCueLocal(tag gametag.Tag) {
	s.fireCue(tag, CueRemoved)
}

func (s *System) fireCue(tag gametag.Tag, ev CueEvent) {
	if !tag.IsValid() {
		return
	}
	for _, fn := range s.cueObservers {
		fn(tag, ev)
	}
}

// TryActivateByTag activates the first granted ability (in handle order) whose tags
// match tag.
//
// Postcondition: returns true when an ability activated on this side. On a client the
// activation is predictive and may still be rejected by the authority.
func (s *System) TryActivateByTag(tag gametag.Tag) bool {
	for _, spec := range s.Specs() {
		if !spec.Def.HasTag(tag) {
			continue
		}
		return s.tryActivate(spec)
	}
	s.logger.Debug("no ability matches tag", zap.String("tag", tag.String()))
	return false
}

func (s *System) canActivate(spec *Spec) bool {
	for _, blocked := range spec.Def.BlockedBy {
		if s.tags.HasMatching(blocked) {
			return false
		}
	}
	if spec.Def.Hook != "" && s.deps.Scripts != nil {
		return s.deps.Scripts.CallPredicate(ScriptScope, spec.Def.Hook, true, map[string]any{
			"ability":   spec.Def.ID,
			"avatar":    string(s.avatar.ID()),
			"source":    string(spec.Source),
			"authority": s.avatar.Net().HasAuthority(),
			"tags":      tagStrings(s.tags.Tags()),
		})
	}
	return true
}

func (s *System) tryActivate(spec *Spec) bool {
	net := s.avatar.Net()
	net.MustValidate("ability.TryActivate")
	if net.Role == netrole.RoleSimulatedProxy {
		return false
	}
	if !s.canActivate(spec) {
		return false
	}
	if net.HasAuthority() {
		s.activate(spec)
		return true
	}
	s.nextKey++
	s.activeKey = s.nextKey
	s.activate(spec)
	key := s.activeKey
	s.activeKey = 0
	if s.deps.Remote != nil {
		s.deps.Remote.ServerTryActivate(spec.Def.ID, key)
	}
	return true
}

func (s *System) activate(spec *Spec) {
	def := spec.Def
	if def.Montage != "" {
		m, ok := s.deps.Montages.Get(def.Montage)
		mesh := s.avatar.MeshOfType(def.Mesh)
		switch {
		case !ok:
			s.logger.Warn("ability montage not found", zap.String("ability", def.ID), zap.String("montage", def.Montage))
		case mesh == nil:
			s.logger.Warn("ability mesh not found", zap.String("ability", def.ID), zap.Stringer("mesh", def.Mesh))
		default:
			s.PlayMontageForMesh(mesh, spec, m, def.Rate(), def.StartSection, 0, true)
		}
	}
	s.ExecuteCueLocal(def.Cue)
	for _, fn := range s.activatedObservers {
		fn(spec)
	}
}

// ServerTryActivate handles a client's predictive activation on the authority.
//
// Precondition: the avatar has authority.
func (s *System) ServerTryActivate(abilityID string, key uint32) {
	spec := s.FindByDefID(abilityID)
	ok := spec != nil
	if !ok {
		s.logger.Warn("client activated an ability it was not granted", zap.String("ability", abilityID))
	} else {
		ok = s.canActivate(spec)
		if ok {
			s.activate(spec)
		}
	}
	if s.deps.Remote == nil {
		return
	}
	if ok {
		s.deps.Remote.ClientActivateSucceeded(key)
	} else {
		s.deps.Remote.ClientActivateFailed(key)
	}
}

// ClientActivateFailed ends every montage predicted under key.
func (s *System) ClientActivateFailed(key uint32) {
	preds := s.predictions[key]
	delete(s.predictions, key)
	for _, p := range preds {
		s.OnPredictiveMontageRejectedForMesh(p.mesh, p.montage)
	}
}

// ClientActivateSucceeded confirms the prediction made under key.
func (s *System) ClientActivateSucceeded(key uint32) {
	delete(s.predictions, key)
}

// PendingPredictions returns the number of unconfirmed predictive activations.
func (s *System) PendingPredictions() int {
	return len(s.predictions)
}

func tagStrings(tags []gametag.Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}
