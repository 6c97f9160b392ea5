// Package animation provides montage assets and a headless montage player.
//
// The player tracks playback position, play rate, section chaining, blend-out and
// notifies. It does not pose skeletons; it exists so timing-dependent gameplay and
// montage replication behave identically on dedicated servers and clients.
package animation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// IndexNone marks a missing section.
const IndexNone = -1

// DefaultSectionName is used when a montage declares no sections.
const DefaultSectionName = "Default"

// Section is a named span of a montage starting at Start and ending at the next
// section's start or the montage length. Next links playback to another section when
// this one ends; an empty Next ends the montage.
type Section struct {
	Name  string  `yaml:"name"`
	Start float64 `yaml:"start"`
	Next  string  `yaml:"next"`
}

// Notify is a named event fired when playback crosses Time.
type Notify struct {
	Name string  `yaml:"name"`
	Time float64 `yaml:"time"`
}

// Montage is a timed animation asset with sections and blend parameters.
type Montage struct {
	Name       string    `yaml:"name"`
	Length     float64   `yaml:"length"`
	BlendIn    float64   `yaml:"blend_in"`
	BlendOut   float64   `yaml:"blend_out"`
	RootMotion bool      `yaml:"root_motion"`
	Sections   []Section `yaml:"sections"`
	Notifies   []Notify  `yaml:"notifies"`
}

// Normalize fills in a default section and sorts sections and notifies by time.
//
// Postcondition: len(m.Sections) >= 1 and m.Sections[0].Start == 0 when Validate passes.
func (m *Montage) Normalize() {
	if len(m.Sections) == 0 {
		m.Sections = []Section{{Name: DefaultSectionName}}
	}
	sort.SliceStable(m.Sections, func(i, j int) bool { return m.Sections[i].Start < m.Sections[j].Start })
	sort.SliceStable(m.Notifies, func(i, j int) bool { return m.Notifies[i].Time < m.Notifies[j].Time })
}

// Validate checks that the montage satisfies its invariants.
//
// Precondition: Normalize has been called.
// Postcondition: returns nil iff all fields are valid.
func (m *Montage) Validate() error {
	var errs []error
	if m.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if m.Length <= 0 {
		errs = append(errs, fmt.Errorf("length must be > 0, got %v", m.Length))
	}
	if m.BlendIn < 0 || m.BlendOut < 0 {
		errs = append(errs, errors.New("blend times must be >= 0"))
	}
	if len(m.Sections) > 0 && m.Sections[0].Start != 0 {
		errs = append(errs, errors.New("first section must start at 0"))
	}
	seen := make(map[string]bool, len(m.Sections))
	for _, s := range m.Sections {
		if s.Name == "" {
			errs = append(errs, errors.New("section name must not be empty"))
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate section %q", s.Name))
		}
		seen[s.Name] = true
		if s.Start < 0 || s.Start >= m.Length {
			errs = append(errs, fmt.Errorf("section %q start %v outside [0, %v)", s.Name, s.Start, m.Length))
		}
	}
	for _, s := range m.Sections {
		if s.Next != "" && !seen[s.Next] {
			errs = append(errs, fmt.Errorf("section %q links to unknown section %q", s.Name, s.Next))
		}
	}
	for _, n := range m.Notifies {
		if n.Time < 0 || n.Time > m.Length {
			errs = append(errs, fmt.Errorf("notify %q time %v outside [0, %v]", n.Name, n.Time, m.Length))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("montage %q validation failed: %v", m.Name, errs)
	}
	return nil
}

// SectionIndex returns the index of the named section, or IndexNone.
func (m *Montage) SectionIndex(name string) int {
	for i, s := range m.Sections {
		if s.Name == name {
			return i
		}
	}
	return IndexNone
}

// SectionName returns the name of section idx, or "" when idx is out of range.
func (m *Montage) SectionName(idx int) string {
	if idx < 0 || idx >= len(m.Sections) {
		return ""
	}
	return m.Sections[idx].Name
}

// SectionStart returns the start time of section idx, or 0 when idx is out of range.
func (m *Montage) SectionStart(idx int) float64 {
	if idx < 0 || idx >= len(m.Sections) {
		return 0
	}
	return m.Sections[idx].Start
}

// SectionEnd returns the end time of section idx.
func (m *Montage) SectionEnd(idx int) float64 {
	if idx+1 < len(m.Sections) && idx >= 0 {
		return m.Sections[idx+1].Start
	}
	return m.Length
}

// SectionIndexFromPosition returns the section containing pos, or IndexNone when pos is
// outside the montage.
func (m *Montage) SectionIndexFromPosition(pos float64) int {
	if pos < 0 || pos > m.Length {
		return IndexNone
	}
	idx := IndexNone
	for i, s := range m.Sections {
		if s.Start <= pos {
			idx = i
		}
	}
	return idx
}

// LoadMontages reads all *.yaml and *.yml files from dir. Each file holds one montage.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid montages or the first encountered error.
func LoadMontages(dir string) ([]*Montage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadMontages: cannot read directory %q: %w", dir, err)
	}
	var out []*Montage
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadMontages: cannot read file %q: %w", path, err)
		}
		var m Montage
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("LoadMontages: cannot parse file %q: %w", path, err)
		}
		m.Normalize()
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("LoadMontages: invalid montage in %q: %w", path, err)
		}
		out = append(out, &m)
	}
	return out, nil
}

// Library indexes montages by name.
type Library struct {
	montages map[string]*Montage
}

// NewLibrary builds a Library from ms.
//
// Precondition: every montage has been normalized and validated.
// Postcondition: returns an error on duplicate names.
func NewLibrary(ms ...*Montage) (*Library, error) {
	l := &Library{montages: make(map[string]*Montage, len(ms))}
	for _, m := range ms {
		if _, dup := l.montages[m.Name]; dup {
			return nil, fmt.Errorf("animation: Library: montage %q already registered", m.Name)
		}
		l.montages[m.Name] = m
	}
	return l, nil
}

// Get returns the named montage. A nil Library or empty name yields (nil, false).
func (l *Library) Get(name string) (*Montage, bool) {
	if l == nil || name == "" {
		return nil, false
	}
	m, ok := l.montages[name]
	return m, ok
}

// Len returns the number of montages held.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.montages)
}
