package ability

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/metrics"
)

// PredictionRejectFadeTime is the blend-out applied to a predicted montage the
// authority refused.
const PredictionRejectFadeTime = 0.25

// LocalMontage is the montage most recently played on one mesh on this side.
type LocalMontage struct {
	Montage        *animation.Montage
	Ability        *Spec
	PlayInstanceID uint8
}

// appliedRep is what an observer last started from a replicated record.
type appliedRep struct {
	Montage        string
	PlayInstanceID uint8
}

func nextPlayInstanceID(id uint8) uint8 {
	if id < math.MaxUint8 {
		return id + 1
	}
	return 0
}

// LocalMontageForMesh returns the local record for mesh type t, creating it on first use.
func (s *System) LocalMontageForMesh(t animation.MeshType) *LocalMontage {
	if l, ok := s.local[t]; ok {
		return l
	}
	l := &LocalMontage{}
	s.local[t] = l
	return l
}

// repFor returns the replicated record for mesh type t, creating it on first use.
func (s *System) repFor(t animation.MeshType) *RepMontage {
	for i := range s.rep {
		if s.rep[i].Mesh == t {
			return &s.rep[i]
		}
	}
	s.rep = append(s.rep, RepMontage{Mesh: t})
	return &s.rep[len(s.rep)-1]
}

// ownedAnim returns mesh's animation instance when mesh belongs to the avatar.
func (s *System) ownedAnim(mesh *animation.Mesh) *animation.Instance {
	if mesh == nil || mesh.Owner != s.avatar.ID() {
		return nil
	}
	return mesh.Anim
}

func (s *System) hookEnded(anim *animation.Instance, t animation.MeshType) {
	if s.hooked[anim] {
		return
	}
	s.hooked[anim] = true
	anim.OnEnded(func(m *animation.Montage, _ bool) {
		l := s.local[t]
		if l == nil || l.Montage != m || l.Ability == nil {
			return
		}
		spec := l.Ability
		l.Ability = nil
		for _, fn := range s.endedObservers {
			fn(spec)
		}
	})
}

func (s *System) clearAnimatingAbility(spec *Spec) {
	for _, l := range s.local {
		if l.Ability == spec {
			l.Ability = nil
		}
	}
}

// PlayMontageForMesh plays m on mesh on behalf of spec and records it locally. On the
// authority with replicate set, the replicated record is refreshed with a new play
// instance id. On a client inside a predictive activation the montage is remembered so
// a rejection can stop it.
//
// Postcondition: returns the montage length, or -1 when nothing played.
func (s *System) PlayMontageForMesh(mesh *animation.Mesh, spec *Spec, m *animation.Montage, rate float64, startSection string, startTime float64, replicate bool) float64 {
	duration := -1.0
	anim := mesh.AnimInstance()
	if anim == nil || m == nil {
		return duration
	}
	duration = anim.Play(m, rate, startTime)
	if duration <= 0 {
		return duration
	}

	local := s.LocalMontageForMesh(mesh.Type)
	local.Montage = m
	local.Ability = spec
	local.PlayInstanceID = nextPlayInstanceID(local.PlayInstanceID)
	if spec != nil {
		spec.currentMontages[mesh.Type] = m
		s.hookEnded(anim, mesh.Type)
	}
	if m.RootMotion {
		s.logger.Debug("playing root motion montage",
			zap.String("montage", m.Name),
			zap.Stringer("role", s.avatar.Net().Role),
		)
	}
	if startSection != "" {
		anim.JumpToSection(startSection, m)
	}

	if s.avatar.Net().HasAuthority() {
		if replicate {
			rep := s.repFor(mesh.Type)
			rep.Montage = m.Name
			rep.PlayInstanceID = nextPlayInstanceID(rep.PlayInstanceID)
			rep.SectionIDToPlay = 0
			if startSection != "" {
				rep.SectionIDToPlay = uint8(m.SectionIndex(startSection) + 1)
			}
			s.UpdateReplicatedDataForMesh(mesh)
		}
	} else if s.activeKey != 0 {
		s.predictions[s.activeKey] = append(s.predictions[s.activeKey], prediction{mesh: mesh, montage: m})
	}
	return duration
}

// PlayMontageSimulatedForMesh plays m on an avatar-owned mesh without ability or
// replication bookkeeping.
//
// Postcondition: returns the montage length, or -1 when nothing played.
func (s *System) PlayMontageSimulatedForMesh(mesh *animation.Mesh, m *animation.Montage, rate float64) float64 {
	duration := -1.0
	anim := s.ownedAnim(mesh)
	if anim == nil || m == nil {
		return duration
	}
	duration = anim.Play(m, rate, 0)
	if duration > 0 {
		s.LocalMontageForMesh(mesh.Type).Montage = m
	}
	return duration
}

// CurrentMontageStopForMesh stops the locally recorded montage on mesh. A negative
// overrideBlendOut uses the montage's own blend-out time.
func (s *System) CurrentMontageStopForMesh(mesh *animation.Mesh, overrideBlendOut float64) {
	anim := s.ownedAnim(mesh)
	if anim == nil {
		return
	}
	m := s.LocalMontageForMesh(mesh.Type).Montage
	if m == nil || anim.IsStopped(m) {
		return
	}
	blendOut := overrideBlendOut
	if blendOut < 0 {
		blendOut = m.BlendOut
	}
	anim.Stop(blendOut, m)
	if s.avatar.Net().HasAuthority() {
		s.UpdateReplicatedDataForMesh(mesh)
	}
}

// CurrentMontageForMesh returns the locally recorded montage on mesh while it is still
// active, or nil.
func (s *System) CurrentMontageForMesh(mesh *animation.Mesh) *animation.Montage {
	anim := s.ownedAnim(mesh)
	if anim == nil {
		return nil
	}
	m := s.LocalMontageForMesh(mesh.Type).Montage
	if m != nil && anim.IsActive(m) {
		return m
	}
	return nil
}

// AnimatingAbilityFromAnyMesh returns the ability animating any mesh, or nil. Only one
// ability animates at a time.
func (s *System) AnimatingAbilityFromAnyMesh() *Spec {
	types := make([]animation.MeshType, 0, len(s.local))
	for t := range s.local {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		if a := s.local[t].Ability; a != nil {
			return a
		}
	}
	return nil
}

// UpdateReplicatedDataForMesh copies mesh's live playback state into its replicated
// record.
//
// Precondition: the avatar has authority; violating it panics.
func (s *System) UpdateReplicatedDataForMesh(mesh *animation.Mesh) {
	if !s.avatar.Net().HasAuthority() {
		panic("ability: UpdateReplicatedDataForMesh called without authority")
	}
	s.updateReplicatedData(s.repFor(mesh.Type), mesh)
}

func (s *System) updateReplicatedData(rep *RepMontage, mesh *animation.Mesh) {
	anim := mesh.AnimInstance()
	local := s.LocalMontageForMesh(mesh.Type)
	if anim == nil || local.Montage == nil {
		return
	}
	m := local.Montage
	rep.Montage = m.Name

	stopped := anim.IsStopped(m)
	switch {
	case !stopped:
		rep.PlayRate = anim.PlayRate(m)
		rep.Position = anim.Position(m)
		rep.BlendTime = anim.BlendTime(m)
	case anim.IsActive(m):
		// Blending out: observers stop with the same blend-out time.
		rep.BlendTime = anim.BlendTime(m)
	}
	rep.IsStopped = stopped

	current := m.SectionIndexFromPosition(rep.Position)
	if current == animation.IndexNone {
		rep.NextSectionID = 0
		return
	}
	next := anim.NextSectionID(m, current)
	if next >= math.MaxUint8 {
		s.logger.Error("next section id does not fit the replicated byte",
			zap.Int("next_section_id", next),
			zap.Float64("position", rep.Position),
			zap.Int("current_section_id", current),
			zap.String("montage", m.Name),
		)
	}
	rep.NextSectionID = uint8(next + 1)
}

// OnPredictiveMontageRejectedForMesh fades out a predicted montage that is still playing.
func (s *System) OnPredictiveMontageRejectedForMesh(mesh *animation.Mesh, m *animation.Montage) {
	anim := s.ownedAnim(mesh)
	if anim == nil || m == nil {
		return
	}
	if anim.IsPlaying(m) {
		anim.Stop(PredictionRejectFadeTime, m)
		metrics.MontageCorrections.WithLabelValues(metrics.CorrectionPredictMiss).Inc()
	}
}

// IsReadyForReplicatedMontageForMesh reports whether mesh may receive replicated montage
// state. Deps.ReadyForReplicatedMontage adds checks beyond having an animation instance.
func (s *System) IsReadyForReplicatedMontageForMesh(mesh *animation.Mesh) bool {
	if mesh.AnimInstance() == nil {
		return false
	}
	return s.deps.ReadyForReplicatedMontage == nil || s.deps.ReadyForReplicatedMontage(mesh)
}

// Tick refreshes every replicated record from live playback on the authority.
func (s *System) Tick() {
	if !s.avatar.Net().HasAuthority() {
		return
	}
	for i := range s.rep {
		if mesh := s.avatar.MeshOfType(s.rep[i].Mesh); mesh != nil {
			s.updateReplicatedData(&s.rep[i], mesh)
		}
	}
}

// PendingMontageRep reports whether a replicated update is waiting for a mesh.
func (s *System) PendingMontageRep() bool {
	return s.pendingMontageRep
}

// RetryPendingMontageRep reprocesses replicated montage state deferred by an unready mesh.
func (s *System) RetryPendingMontageRep() {
	if s.pendingMontageRep {
		s.OnRepReplicatedAnimMontage()
	}
}

func (s *System) errorThreshold() float64 {
	if s.deps.IsPlayingReplay != nil && s.deps.IsPlayingReplay() {
		return s.deps.Config.ReplayThreshold
	}
	return s.deps.Config.ErrorThreshold
}

// OnRepReplicatedAnimMontage reconciles observer playback with the replicated records.
// It restarts playback when montage identity or play instance changes, then corrects
// play rate, stop state, section links and position. A mesh that is not ready defers
// the whole update until the next replicated update or RetryPendingMontageRep.
func (s *System) OnRepReplicatedAnimMontage() {
	threshold := s.errorThreshold()
	for i := range s.rep {
		rep := &s.rep[i]
		if rep.SkipPlayRate {
			rep.PlayRate = 1
		}

		mesh := s.avatar.MeshOfType(rep.Mesh)
		anim := s.ownedAnim(mesh)
		if anim == nil || !s.IsReadyForReplicatedMontageForMesh(mesh) {
			s.pendingMontageRep = true
			metrics.MontageCorrections.WithLabelValues(metrics.CorrectionPendingDefer).Inc()
			return
		}
		s.pendingMontageRep = false

		if s.avatar.Net().LocallyControlled {
			continue
		}
		if s.deps.Config.Debug {
			s.logger.Warn("replicated montage update",
				zap.String("montage", rep.Montage),
				zap.Float64("play_rate", rep.PlayRate),
				zap.Float64("position", rep.Position),
				zap.Float64("blend_time", rep.BlendTime),
				zap.Uint8("next_section_id", rep.NextSectionID),
				zap.Bool("is_stopped", rep.IsStopped),
				zap.Uint8("play_instance_id", rep.PlayInstanceID),
			)
		}
		if rep.Montage == "" {
			continue
		}
		m, ok := s.deps.Montages.Get(rep.Montage)
		if !ok {
			s.logger.Warn("replicated montage not found", zap.String("montage", rep.Montage))
			continue
		}
		s.applyRep(rep, mesh, anim, m, threshold)
	}
}

func (s *System) applyRep(rep *RepMontage, mesh *animation.Mesh, anim *animation.Instance, m *animation.Montage, threshold float64) {
	applied, ok := s.applied[mesh.Type]
	if !ok {
		applied = &appliedRep{}
		s.applied[mesh.Type] = applied
	}
	if applied.Montage != rep.Montage || applied.PlayInstanceID != rep.PlayInstanceID {
		if s.PlayMontageSimulatedForMesh(mesh, m, rep.PlayRate) > 0 {
			applied.Montage = rep.Montage
			applied.PlayInstanceID = rep.PlayInstanceID
			metrics.MontageCorrections.WithLabelValues(metrics.CorrectionRestart).Inc()
			if id := int(rep.SectionIDToPlay) - 1; id != animation.IndexNone {
				if name := m.SectionName(id); name != "" {
					anim.JumpToSection(name, m)
				}
			}
		}
	}
	if s.LocalMontageForMesh(mesh.Type).Montage != m {
		s.logger.Warn("simulated montage playback failed", zap.String("montage", m.Name))
		return
	}

	if rate := anim.PlayRate(m); rate != rep.PlayRate && rep.PlayRate > 0 {
		anim.SetPlayRate(m, rep.PlayRate)
		metrics.MontageCorrections.WithLabelValues(metrics.CorrectionPlayRate).Inc()
	}

	// Stopping is handled first so a section change cannot pop the blend.
	if rep.IsStopped {
		if !anim.IsStopped(m) {
			s.CurrentMontageStopForMesh(mesh, rep.BlendTime)
			metrics.MontageCorrections.WithLabelValues(metrics.CorrectionStop).Inc()
		}
		return
	}
	if rep.SkipPositionCorrection {
		return
	}

	repSection := m.SectionIndexFromPosition(rep.Position)
	repNext := int(rep.NextSectionID) - 1
	if repSection != animation.IndexNone {
		if anim.NextSectionID(m, repSection) != repNext {
			anim.SetNextSection(m.SectionName(repSection), m.SectionName(repNext), m)
			metrics.MontageCorrections.WithLabelValues(metrics.CorrectionNextSection).Inc()
		}
		current := m.SectionIndexFromPosition(anim.Position(m))
		if current != repSection && current != repNext {
			anim.SetPosition(m, m.SectionStart(repSection))
			metrics.MontageCorrections.WithLabelValues(metrics.CorrectionTeleport).Inc()
		}
	}

	currentPos := anim.Position(m)
	currentSection := m.SectionIndexFromPosition(currentPos)
	delta := rep.Position - currentPos
	if currentSection != repSection || math.Abs(delta) <= threshold {
		return
	}
	dt := 0.0
	if math.Abs(rep.PlayRate) > 1e-8 {
		dt = delta / rep.PlayRate
	}
	// Notifies behind the current position already fired.
	if dt >= 0 {
		anim.TriggerNotifies(m, currentPos, rep.Position)
	}
	anim.SetPosition(m, rep.Position)
	metrics.MontageCorrections.WithLabelValues(metrics.CorrectionPosition).Inc()
}
