package world

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/ability"
	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/scripting"
)

// Content is the static data a world is built from. Scripts and Level are optional.
type Content struct {
	Montages    *animation.Library
	Abilities   *ability.Registry
	Equippables *equippable.Registry
	Scripts     *scripting.Manager
	Level       *Level
}

// ContentDirs locates content on disk. Scripts holds one subdirectory per scripting
// scope; a missing subdirectory means the scope has no hooks. Level is a file path.
type ContentDirs struct {
	Montages    string `mapstructure:"montages"`
	Abilities   string `mapstructure:"abilities"`
	Equippables string `mapstructure:"equippables"`
	Scripts     string `mapstructure:"scripts"`
	Level       string `mapstructure:"level"`
}

// LoadContent reads every content directory and cross-checks the result.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns validated Content or a non-nil error.
func LoadContent(dirs ContentDirs, scriptLimit int, logger *zap.Logger) (Content, error) {
	var c Content
	montages, err := animation.LoadMontages(dirs.Montages)
	if err != nil {
		return c, fmt.Errorf("world: loading montages: %w", err)
	}
	if c.Montages, err = animation.NewLibrary(montages...); err != nil {
		return c, fmt.Errorf("world: %w", err)
	}
	abilities, err := ability.LoadDefs(dirs.Abilities)
	if err != nil {
		return c, fmt.Errorf("world: loading abilities: %w", err)
	}
	if c.Abilities, err = ability.NewRegistry(abilities...); err != nil {
		return c, fmt.Errorf("world: %w", err)
	}
	items, err := equippable.LoadDefs(dirs.Equippables)
	if err != nil {
		return c, fmt.Errorf("world: loading equippables: %w", err)
	}
	if c.Equippables, err = equippable.NewRegistry(items...); err != nil {
		return c, fmt.Errorf("world: %w", err)
	}
	if dirs.Scripts != "" {
		c.Scripts = scripting.NewManager(logger)
		for _, scope := range []string{ability.ScriptScope, equippable.ScriptScope} {
			dir := filepath.Join(dirs.Scripts, scope)
			if _, err := os.Stat(dir); err != nil {
				logger.Info("no scripts for scope", zap.String("scope", scope), zap.String("dir", dir))
				continue
			}
			if err := c.Scripts.LoadScope(scope, dir, scriptLimit); err != nil {
				return c, fmt.Errorf("world: loading %s scripts: %w", scope, err)
			}
		}
	}
	if dirs.Level != "" {
		if c.Level, err = LoadLevelFromFile(dirs.Level); err != nil {
			return c, fmt.Errorf("world: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	logger.Info("content loaded",
		zap.Int("montages", c.Montages.Len()),
		zap.Int("abilities", len(c.Abilities.IDs())),
		zap.Int("equippables", len(c.Equippables.All())),
	)
	return c, nil
}

// Validate checks that every name one definition uses resolves to another definition.
//
// Postcondition: Returns nil iff all references resolve; otherwise every violation joined.
func (c Content) Validate() error {
	var errs []error
	if c.Montages == nil || c.Abilities == nil || c.Equippables == nil {
		return errors.New("world: content requires montages, abilities and equippables")
	}
	montage := func(owner, name string) {
		if name == "" {
			return
		}
		if _, ok := c.Montages.Get(name); !ok {
			errs = append(errs, fmt.Errorf("%s: unknown montage %q", owner, name))
		}
	}
	for _, id := range c.Abilities.IDs() {
		def, _ := c.Abilities.Get(id)
		montage("ability "+id, def.Montage)
	}
	for _, def := range c.Equippables.All() {
		owner := "equippable " + def.ID
		for _, a := range def.Abilities {
			if _, ok := c.Abilities.Get(a); !ok {
				errs = append(errs, fmt.Errorf("%s: unknown ability %q", owner, a))
			}
		}
		montage(owner, def.EquipMontage)
		montage(owner, def.UnequipArmsMontage)
		montage(owner, def.UnequipEquippableMontage)
	}
	if c.Level != nil {
		for _, s := range c.Level.ItemSpawns {
			if _, ok := c.Equippables.Get(s.Class); !ok {
				errs = append(errs, fmt.Errorf("level %s: unknown equippable class %q", c.Level.ID, s.Class))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("world: invalid content: %w", errors.Join(errs...))
	}
	return nil
}
