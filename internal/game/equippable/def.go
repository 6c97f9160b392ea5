// Package equippable provides equippable item definitions and the item actor the
// inventory equips, drops and hands back to the world.
package equippable

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
)

// ScriptScope is the scripting scope CanEquip hooks are looked up in.
const ScriptScope = "equippables"

// RechamberDef configures manual rechambering. When TriggerTag is set, activating an
// ability granted by the item whose tags match TriggerTag marks the item as needing a
// rechamber; the next time the item goes idle the AbilityTag ability is activated.
type RechamberDef struct {
	AbilityTag       gametag.Tag `yaml:"ability_tag"`
	TriggerTag       gametag.Tag `yaml:"trigger_tag"`
	StartUnchambered bool        `yaml:"start_unchambered"`
	SpawnUnchambered bool        `yaml:"spawn_unchambered"`
}

// Enabled reports whether the item rechambers.
func (r RechamberDef) Enabled() bool {
	return r.AbilityTag.IsValid()
}

// Def is a static equippable definition. ID is the item's concrete class; an
// inventory holds at most one item per class.
type Def struct {
	ID                       string       `yaml:"id"`
	Name                     string       `yaml:"name"`
	Slot                     gametag.Tag  `yaml:"slot"`
	Abilities                []string     `yaml:"abilities"`
	EquipMontage             string       `yaml:"equip_montage"`
	UnequipArmsMontage       string       `yaml:"unequip_arms_montage"`
	UnequipEquippableMontage string       `yaml:"unequip_equippable_montage"`
	CanEquipHook             string       `yaml:"can_equip_hook"`
	Rechamber                RechamberDef `yaml:"rechamber"`
}

// Validate checks that the definition satisfies its invariants.
//
// Postcondition: returns nil iff all fields are valid.
func (d *Def) Validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if d.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if !d.Slot.IsValid() {
		errs = append(errs, errors.New("slot must not be empty"))
	}
	if d.Rechamber.TriggerTag.IsValid() && !d.Rechamber.AbilityTag.IsValid() {
		errs = append(errs, errors.New("rechamber.trigger_tag requires rechamber.ability_tag"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("equippable %q validation failed: %v", d.ID, errs)
	}
	return nil
}

// LoadDefs reads all *.yaml and *.yml files from dir. Each file holds a list of
// equippable definitions.
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
				return nil, fmt.Errorf("LoadDefs: invalid equippable in %q: %w", path, err)
			}
		}
		out = append(out, defs...)
	}
	return out, nil
}

// Registry indexes equippable definitions by class.
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
			return nil, fmt.Errorf("equippable: Registry: %q already registered", d.ID)
		}
		r.defs[d.ID] = d
	}
	return r, nil
}

// Get returns the definition for class id.
func (r *Registry) Get(id string) (*Def, bool) {
	if r == nil {
		return nil, false
	}
	d, ok := r.defs[id]
	return d, ok
}

// All returns every definition sorted by ID.
func (r *Registry) All() []*Def {
	out := make([]*Def, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
