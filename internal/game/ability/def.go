// Package ability implements the per-pawn ability system: loose gameplay tags, granted
// abilities with predictive activation, local gameplay cues and the montage replication
// layer that keeps observer animation in step with the authority.
package ability

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
)

// Def is a static ability definition loaded from content.
type Def struct {
	ID string `yaml:"id"`
	// Tags identify the ability for TryActivateByTag.
	Tags []gametag.Tag `yaml:"tags"`
	// BlockedBy cancels activation while the owner carries a matching loose tag.
	BlockedBy    []gametag.Tag      `yaml:"blocked_by"`
	Montage      string             `yaml:"montage"`
	Mesh         animation.MeshType `yaml:"mesh"`
	PlayRate     float64            `yaml:"play_rate"`
	StartSection string             `yaml:"start_section"`
	// Hook names a Lua predicate run before activation. A false result cancels.
	Hook string `yaml:"hook"`
	// Cue is executed locally on every side that activates the ability.
	Cue gametag.Tag `yaml:"cue"`
}

// Validate checks that the definition satisfies its invariants.
//
// Postcondition: returns nil iff all fields are valid.
func (d *Def) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if len(d.Tags) == 0 {
		errs = append(errs, errors.New("at least one tag is required"))
	}
	for _, t := range d.Tags {
		if !t.IsValid() {
			errs = append(errs, errors.New("tags must not be empty"))
		}
	}
	if d.PlayRate < 0 {
		errs = append(errs, fmt.Errorf("play_rate must be >= 0, got %v", d.PlayRate))
	}
	if len(errs) > 0 {
		return fmt.Errorf("ability %q validation failed: %v", d.ID, errs)
	}
	return nil
}

// Rate returns the play rate, defaulting to 1.
func (d *Def) Rate() float64 {
	if d.PlayRate <= 0 {
		return 1
	}
	return d.PlayRate
}

// HasTag reports whether any of the ability's tags matches tag.
func (d *Def) HasTag(tag gametag.Tag) bool {
	for _, t := range d.Tags {
		if t.MatchesTag(tag) {
			return true
		}
	}
	return false
}

// LoadDefs reads all *.yaml and *.yml files from dir. Each file holds a list of
// ability definitions.
//
// Precondition: dir is a readable directory path.
// Postcondition: returns all valid definitions or the first encountered error.
func LoadDefs(dir string) ([]*Def, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("LoadDefs: cannot read directory %q: %w", dir, err)
	}
	var out []*Def
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadDefs: cannot read file %q: %w", path, err)
		}
		var defs []*Def
		if err := yaml.Unmarshal(data, &defs); err != nil {
			return nil, fmt.Errorf("LoadDefs: cannot parse file %q: %w", path, err)
		}
		for _, d := range defs {
			if err := d.Validate(); err != nil {
				return nil, fmt.Errorf("LoadDefs: invalid ability in %q: %w", path, err)
			}
		}
		out = append(out, defs...)
	}
	return out, nil
}

// Registry indexes ability definitions by ID.
type Registry struct {
	defs map[string]*Def
}

// NewRegistry builds a Registry from defs.
//
// Postcondition: returns an error on duplicate IDs.
func NewRegistry(defs ...*Def) (*Registry, error) {
	r := &Registry{defs: make(map[string]*Def, len(defs))}
	for _, d := range defs {
		if _, dup := r.defs[d.ID]; dup {
			return nil, fmt.Errorf("ability: Registry: %q already registered", d.ID)
		}
		r.defs[d.ID] = d
	}
	return r, nil
}

// Get returns the definition with the given ID.
func (r *Registry) Get(id string) (*Def, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns every registered ID in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
