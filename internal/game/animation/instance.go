package animation

type montageInstance struct {
	montage        *Montage
	position       float64
	playRate       float64
	blendTime      float64
	stopped        bool
	blendRemaining float64
	nextSections   []int
}

func newMontageInstance(m *Montage, rate, start float64) *montageInstance {
	next := make([]int, len(m.Sections))
	for i, s := range m.Sections {
		next[i] = IndexNone
		if s.Next != "" {
			next[i] = m.SectionIndex(s.Next)
		}
	}
	return &montageInstance{
		montage:      m,
		position:     clamp(start, 0, m.Length),
		playRate:     rate,
		blendTime:    m.BlendIn,
		nextSections: next,
	}
}

// Instance plays montages for one mesh. It is not safe for concurrent use.
type Instance struct {
	active   []*montageInstance
	notifies []func(m *Montage, notify string)
	ended    []func(m *Montage, interrupted bool)
}

// NewInstance returns an idle animation instance.
func NewInstance() *Instance {
	return &Instance{}
}

// OnNotify registers fn to receive notify events.
func (a *Instance) OnNotify(fn func(m *Montage, notify string)) {
	a.notifies = append(a.notifies, fn)
}

// OnEnded registers fn to receive montage end events. interrupted is true when the
// montage was stopped before reaching its end.
func (a *Instance) OnEnded(fn func(m *Montage, interrupted bool)) {
	a.ended = append(a.ended, fn)
}

// Play starts m at startTime with the given rate, stopping whatever montage was playing.
//
// Postcondition: returns the montage length on success and 0 when m is nil, has no
// length or rate is not positive.
func (a *Instance) Play(m *Montage, rate, startTime float64) float64 {
	if m == nil || m.Length <= 0 || rate <= 0 {
		return 0
	}
	for _, inst := range a.active {
		if !inst.stopped {
			a.stopInstance(inst, inst.montage.BlendOut, true)
		}
	}
	a.prune()
	a.active = append(a.active, newMontageInstance(m, rate, startTime))
	return m.Length
}

// Stop blends out m over blendOut seconds. A nil m stops every playing montage.
func (a *Instance) Stop(blendOut float64, m *Montage) {
	for _, inst := range a.active {
		if inst.stopped || (m != nil && inst.montage != m) {
			continue
		}
		a.stopInstance(inst, blendOut, true)
	}
	a.prune()
}

func (a *Instance) stopInstance(inst *montageInstance, blendOut float64, interrupted bool) {
	inst.stopped = true
	inst.blendTime = blendOut
	inst.blendRemaining = blendOut
	for _, fn := range a.ended {
		fn(inst.montage, interrupted)
	}
}

func (a *Instance) prune() {
	kept := a.active[:0]
	for _, inst := range a.active {
		if inst.stopped && inst.blendRemaining <= 0 {
			continue
		}
		kept = append(kept, inst)
	}
	a.active = kept
}

// instanceFor prefers the playing instance of m over one that is blending out.
func (a *Instance) instanceFor(m *Montage) *montageInstance {
	var found *montageInstance
	for _, inst := range a.active {
		if inst.montage != m {
			continue
		}
		if !inst.stopped {
			return inst
		}
		found = inst
	}
	return found
}

// IsActive reports whether m is playing or blending out.
func (a *Instance) IsActive(m *Montage) bool {
	return m != nil && a.instanceFor(m) != nil
}

// IsPlaying reports whether m is playing and not blending out.
func (a *Instance) IsPlaying(m *Montage) bool {
	inst := a.instanceFor(m)
	return inst != nil && !inst.stopped
}

// IsStopped reports whether m has no playing instance.
func (a *Instance) IsStopped(m *Montage) bool {
	return !a.IsPlaying(m)
}

// Current returns the playing montage, or nil.
func (a *Instance) Current() *Montage {
	for _, inst := range a.active {
		if !inst.stopped {
			return inst.montage
		}
	}
	return nil
}

// Position returns the playback position of m in seconds.
func (a *Instance) Position(m *Montage) float64 {
	if inst := a.instanceFor(m); inst != nil {
		return inst.position
	}
	return 0
}

// SetPosition moves the playback position of m without firing notifies.
func (a *Instance) SetPosition(m *Montage, pos float64) {
	if inst := a.instanceFor(m); inst != nil {
		inst.position = clamp(pos, 0, m.Length)
	}
}

// PlayRate returns the play rate of m, or 0 when it is not active.
func (a *Instance) PlayRate(m *Montage) float64 {
	if inst := a.instanceFor(m); inst != nil {
		return inst.playRate
	}
	return 0
}

// SetPlayRate changes the play rate of m.
func (a *Instance) SetPlayRate(m *Montage, rate float64) {
	if inst := a.instanceFor(m); inst != nil {
		inst.playRate = rate
	}
}

// BlendTime returns the current blend time of m.
func (a *Instance) BlendTime(m *Montage) float64 {
	if inst := a.instanceFor(m); inst != nil {
		return inst.blendTime
	}
	return 0
}

// JumpToSection moves m (or the playing montage when m is nil) to the start of the
// named section.
//
// Postcondition: returns false when there is no such montage or section.
func (a *Instance) JumpToSection(section string, m *Montage) bool {
	if m == nil {
		m = a.Current()
	}
	inst := a.instanceFor(m)
	if inst == nil {
		return false
	}
	idx := m.SectionIndex(section)
	if idx == IndexNone {
		return false
	}
	inst.position = m.SectionStart(idx)
	return true
}

// NextSectionID returns the section that follows sectionID for the active m.
func (a *Instance) NextSectionID(m *Montage, sectionID int) int {
	inst := a.instanceFor(m)
	if inst == nil || sectionID < 0 || sectionID >= len(inst.nextSections) {
		return IndexNone
	}
	return inst.nextSections[sectionID]
}

// SetNextSection links section from to section to for the active m. An unknown to
// unlinks from.
func (a *Instance) SetNextSection(from, to string, m *Montage) bool {
	inst := a.instanceFor(m)
	if inst == nil {
		return false
	}
	idx := m.SectionIndex(from)
	if idx == IndexNone {
		return false
	}
	inst.nextSections[idx] = m.SectionIndex(to)
	return true
}

// TriggerNotifies fires the notifies of m with times in (from, to].
func (a *Instance) TriggerNotifies(m *Montage, from, to float64) {
	if m == nil || to <= from {
		return
	}
	for _, n := range m.Notifies {
		if n.Time > from && n.Time <= to {
			for _, fn := range a.notifies {
				fn(m, n.Name)
			}
		}
	}
}

// Advance moves every active montage forward by dt seconds, following section links,
// ending montages that run off an unlinked section and completing blend-outs.
func (a *Instance) Advance(dt float64) {
	if dt <= 0 {
		return
	}
	// Iterate over a snapshot; callbacks may start new montages.
	snapshot := append([]*montageInstance(nil), a.active...)
	for _, inst := range snapshot {
		if inst.stopped {
			inst.blendRemaining -= dt
			continue
		}
		if inst.playRate <= 0 {
			continue
		}
		a.advanceInstance(inst, dt*inst.playRate)
	}
	a.prune()
}

func (a *Instance) advanceInstance(inst *montageInstance, delta float64) {
	m := inst.montage
	for delta > 0 && !inst.stopped {
		section := m.SectionIndexFromPosition(inst.position)
		end := m.SectionEnd(section)
		if inst.position+delta < end {
			a.TriggerNotifies(m, inst.position, inst.position+delta)
			inst.position += delta
			return
		}
		a.TriggerNotifies(m, inst.position, end)
		delta -= end - inst.position
		next := IndexNone
		if section >= 0 && section < len(inst.nextSections) {
			next = inst.nextSections[section]
		}
		if next == IndexNone {
			inst.position = end
			a.stopInstance(inst, m.BlendOut, false)
			return
		}
		inst.position = m.SectionStart(next)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
