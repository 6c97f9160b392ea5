package ability

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
)

// RepMontage is the replicated montage state of one mesh. Section ids are stored plus
// one so zero can mean none.
type RepMontage struct {
	Mesh                   animation.MeshType `json:"mesh"`
	Montage                string             `json:"montage"`
	PlayRate               float64            `json:"play_rate"`
	Position               float64            `json:"position"`
	BlendTime              float64            `json:"blend_time"`
	NextSectionID          uint8              `json:"next_section_id"`
	SectionIDToPlay        uint8              `json:"section_id_to_play"`
	IsStopped              bool               `json:"is_stopped"`
	PlayInstanceID         uint8              `json:"play_instance_id"`
	SkipPositionCorrection bool               `json:"skip_position_correction,omitempty"`
	SkipPlayRate           bool               `json:"skip_play_rate,omitempty"`
}

// Granted is the replicated form of a granted ability.
type Granted struct {
	Handle Handle   `json:"handle"`
	DefID  string   `json:"def"`
	Source actor.ID `json:"source"`
}

// RepAnimMontageInfoForMeshes returns a copy of the replicated montage records.
func (s *System) RepAnimMontageInfoForMeshes() []RepMontage {
	out := make([]RepMontage, len(s.rep))
	copy(out, s.rep)
	return out
}

// SetRepAnimMontageInfoForMeshes installs replicated montage records received from the
// authority. Callers follow with OnRepReplicatedAnimMontage.
func (s *System) SetRepAnimMontageInfoForMeshes(recs []RepMontage) {
	s.rep = append(s.rep[:0], recs...)
}

// SetSkipFlags marks the replicated record of mesh type t to skip play-rate or position
// correction on observers.
//
// Precondition: the avatar has authority.
func (s *System) SetSkipFlags(t animation.MeshType, skipPlayRate, skipPositionCorrection bool) {
	rep := s.repFor(t)
	rep.SkipPlayRate = skipPlayRate
	rep.SkipPositionCorrection = skipPositionCorrection
}

// ActivatableAbilities returns the granted abilities in replicated form.
func (s *System) ActivatableAbilities() []Granted {
	specs := s.Specs()
	out := make([]Granted, len(specs))
	for i, spec := range specs {
		out[i] = Granted{Handle: spec.Handle, DefID: spec.Def.ID, Source: spec.Source}
	}
	return out
}

// SetActivatableAbilities replaces the granted abilities with the authority's list.
// Entries whose definition is unknown locally are skipped and logged.
func (s *System) SetActivatableAbilities(list []Granted) {
	keep := make(map[Handle]bool, len(list))
	for _, g := range list {
		def, ok := s.deps.Abilities.Get(g.DefID)
		if !ok {
			s.logger.Warn("replicated ability definition not found", zap.String("ability", g.DefID))
			continue
		}
		keep[g.Handle] = true
		if existing, ok := s.specs[g.Handle]; ok && existing.Def == def {
			continue
		}
		s.specs[g.Handle] = &Spec{Handle: g.Handle, Def: def, Source: g.Source, currentMontages: make(map[animation.MeshType]*animation.Montage)}
		if g.Handle > s.nextHandle {
			s.nextHandle = g.Handle
		}
	}
	for h, spec := range s.specs {
		if !keep[h] {
			delete(s.specs, h)
			s.clearAnimatingAbility(spec)
		}
	}
}
