package world

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
)

// yamlLevelFile is the top-level YAML structure for level files.
type yamlLevelFile struct {
	Level yamlLevel `yaml:"level"`
}

type yamlLevel struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	PlayerStarts []yamlPlayerStart `yaml:"player_starts"`
	ItemSpawns   []yamlItemSpawn   `yaml:"item_spawns"`
}

type yamlPlayerStart struct {
	Team     string      `yaml:"team"`
	Location geom.Vector `yaml:"location"`
	Yaw      float64     `yaml:"yaw"`
}

type yamlItemSpawn struct {
	Class    string      `yaml:"class"`
	Location geom.Vector `yaml:"location"`
	Yaw      float64     `yaml:"yaw"`
}

// PlayerStart is a pawn spawn point. A start with TeamNone serves every team.
type PlayerStart struct {
	Team     gametag.Tag
	Location geom.Vector
	Rotation geom.Rotator
}

// ItemSpawn places an equippable of Class on the floor when the level is populated.
type ItemSpawn struct {
	Class    string
	Location geom.Vector
	Rotation geom.Rotator
}

// Level is the static layout a server world populates.
type Level struct {
	// ID uniquely identifies this level.
	ID string
	// Name is the display name of the level.
	Name string
	// Description summarizes the level.
	Description  string
	PlayerStarts []PlayerStart
	ItemSpawns   []ItemSpawn
}

// Validate checks level invariants.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (l *Level) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("level ID must not be empty")
	}
	if l.Name == "" {
		return fmt.Errorf("level %q: name must not be empty", l.ID)
	}
	if len(l.PlayerStarts) == 0 {
		return fmt.Errorf("level %q: must contain at least one player start", l.ID)
	}
	for i, s := range l.PlayerStarts {
		if !s.Team.MatchesTag("Team") {
			return fmt.Errorf("level %q: player start %d: team %q is not a Team tag", l.ID, i, s.Team)
		}
	}
	for i, s := range l.ItemSpawns {
		if s.Class == "" {
			return fmt.Errorf("level %q: item spawn %d: class must not be empty", l.ID, i)
		}
	}
	return nil
}

// StartsFor returns the starts usable by team: the team's own starts, or the shared
// TeamNone starts when it has none.
func (l *Level) StartsFor(team gametag.Tag) []PlayerStart {
	var own, shared []PlayerStart
	for _, s := range l.PlayerStarts {
		switch s.Team {
		case team:
			own = append(own, s)
		case gametag.TeamNone:
			shared = append(shared, s)
		}
	}
	if len(own) > 0 {
		return own
	}
	return shared
}

// LoadLevelFromFile reads and validates a single level YAML file.
//
// Precondition: path must point to a valid YAML level file.
// Postcondition: Returns a validated Level or a non-nil error.
func LoadLevelFromFile(path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading level file %s: %w", path, err)
	}
	return LoadLevelFromBytes(data)
}

// LoadLevelFromBytes parses and validates a level from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the level schema.
// Postcondition: Returns a validated Level or a non-nil error.
func LoadLevelFromBytes(data []byte) (*Level, error) {
	var file yamlLevelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing level YAML: %w", err)
	}

	level := convertYAMLLevel(file.Level)
	if err := level.Validate(); err != nil {
		return nil, fmt.Errorf("validating level: %w", err)
	}

	return level, nil
}

// LoadLevelsFromDir loads all YAML files in a directory as levels.
//
// Precondition: dir must be a valid directory path.
// Postcondition: Returns all validated levels or the first error encountered.
func LoadLevelsFromDir(dir string) ([]*Level, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading level directory %s: %w", dir, err)
	}

	var levels []*Level
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		level, err := LoadLevelFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading level from %s: %w", name, err)
		}
		levels = append(levels, level)
	}

	if len(levels) == 0 {
		return nil, fmt.Errorf("no level files found in %s", dir)
	}

	return levels, nil
}

// convertYAMLLevel converts the parsed YAML structures into domain types.
func convertYAMLLevel(yl yamlLevel) *Level {
	level := &Level{
		ID:          yl.ID,
		Name:        yl.Name,
		Description: strings.TrimSpace(yl.Description),
	}
	for _, ys := range yl.PlayerStarts {
		team := gametag.Tag(ys.Team)
		if !team.IsValid() {
			team = gametag.TeamNone
		}
		level.PlayerStarts = append(level.PlayerStarts, PlayerStart{
			Team:     team,
			Location: ys.Location,
			Rotation: geom.Rotator{Yaw: ys.Yaw},
		})
	}
	for _, yi := range yl.ItemSpawns {
		level.ItemSpawns = append(level.ItemSpawns, ItemSpawn{
			Class:    yi.Class,
			Location: yi.Location,
			Rotation: geom.Rotator{Yaw: yi.Yaw},
		})
	}
	return level
}
