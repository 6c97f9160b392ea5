// Package config provides Viper-based configuration loading for the game server and
// its clients.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cory-johannsen/spawnmaster/internal/game/ability"
	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/inventory"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/game/world"
)

// ServerConfig holds top-level server settings.
type ServerConfig struct {
	// NetMode is one of "standalone", "dedicated_server", "listen_server" or "client".
	NetMode string `mapstructure:"net_mode"`
	// TickRate is the number of world ticks per second.
	TickRate int `mapstructure:"tick_rate"`
	// HostName names the listen server host's own pawn.
	HostName string `mapstructure:"host_name"`
}

// Mode returns the parsed net mode.
//
// Precondition: Validate has accepted the configuration.
func (s ServerConfig) Mode() netrole.NetMode {
	m, _ := netrole.ParseNetMode(s.NetMode)
	return m
}

// TickInterval returns the wall-clock duration of one tick.
//
// Precondition: TickRate > 0.
func (s ServerConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TickRate)
}

// ReplicationConfig holds the gRPC replication transport settings.
type ReplicationConfig struct {
	// GRPCHost is the bind/connect address for the replication service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the replication service.
	GRPCPort int `mapstructure:"grpc_port"`
	// OutboxSize bounds the envelopes queued per connection before sends fail.
	OutboxSize int `mapstructure:"outbox_size"`
	// PipeLatency delays in-memory pipe deliveries by this many polls.
	PipeLatency int `mapstructure:"pipe_latency"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (r ReplicationConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.GRPCHost, r.GRPCPort)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	// ListenAddr serves /metrics; empty disables the endpoint.
	ListenAddr string `mapstructure:"listen_addr"`
}

// MontageConfig tunes montage replication.
type MontageConfig struct {
	ErrorThreshold  float64 `mapstructure:"error_threshold"`
	ReplayThreshold float64 `mapstructure:"replay_threshold"`
	Debug           bool    `mapstructure:"debug"`
}

// Ability converts the section into the ability system's configuration.
func (m MontageConfig) Ability() ability.Config {
	return ability.Config{ErrorThreshold: m.ErrorThreshold, ReplayThreshold: m.ReplayThreshold, Debug: m.Debug}
}

// DebugConfig holds the debug overlay settings.
type DebugConfig struct {
	// PrintInventoryInterval prints every inventory at this interval; zero disables it.
	PrintInventoryInterval time.Duration `mapstructure:"print_inventory_interval"`
}

// ContentConfig locates the content tree.
type ContentConfig struct {
	world.ContentDirs `mapstructure:",squash"`
	// ScriptInstructionLimit caps the Lua instructions one hook call may run; zero uses
	// the scripting default.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// WorldConfig holds match rules.
type WorldConfig struct {
	Teams           []string `mapstructure:"teams"`
	StartingLoadout []string `mapstructure:"starting_loadout"`
	SpawnOnJoin     bool     `mapstructure:"spawn_on_join"`
	EyeHeight       float64  `mapstructure:"eye_height"`
}

// TeamTags returns Teams as tags.
func (w WorldConfig) TeamTags() []gametag.Tag {
	out := make([]gametag.Tag, len(w.Teams))
	for i, t := range w.Teams {
		out[i] = gametag.Tag(t)
	}
	return out
}

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Replication ReplicationConfig `mapstructure:"replication"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Inventory   inventory.Config  `mapstructure:"inventory"`
	Montage     MontageConfig     `mapstructure:"montage"`
	Debug       DebugConfig       `mapstructure:"debug"`
	Content     ContentConfig     `mapstructure:"content"`
	World       WorldConfig       `mapstructure:"world"`
}

// WorldConfig assembles the world configuration for mode.
func (c Config) WorldConfig(mode netrole.NetMode) world.Config {
	return world.Config{
		Mode:               mode,
		Inventory:          c.Inventory,
		Ability:            c.Montage.Ability(),
		EyeHeight:          c.World.EyeHeight,
		SpawnOnJoin:        c.World.SpawnOnJoin,
		Teams:              c.World.TeamTags(),
		StartingLoadout:    c.World.StartingLoadout,
		DebugPrintInterval: c.Debug.PrintInventoryInterval,
	}
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, err := range []error{
		validateServer(c.Server),
		validateReplication(c.Replication),
		validateLogging(c.Logging),
		validateInventory(c.Inventory),
		validateMontage(c.Montage),
		validateContent(c.Content),
		validateWorld(c.World),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Debug.PrintInventoryInterval < 0 {
		errs = append(errs, "debug.print_inventory_interval must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if _, err := netrole.ParseNetMode(s.NetMode); err != nil {
		errs = append(errs, fmt.Sprintf("server.net_mode must be one of [standalone, dedicated_server, listen_server, client], got %q", s.NetMode))
	}
	if s.TickRate < 1 || s.TickRate > 1000 {
		errs = append(errs, fmt.Sprintf("server.tick_rate must be 1-1000, got %d", s.TickRate))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateReplication(r ReplicationConfig) error {
	var errs []string
	if r.GRPCHost == "" {
		errs = append(errs, "replication.grpc_host must not be empty")
	}
	if r.GRPCPort < 1 || r.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("replication.grpc_port must be 1-65535, got %d", r.GRPCPort))
	}
	if r.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("replication.outbox_size must be >= 1, got %d", r.OutboxSize))
	}
	if r.PipeLatency < 0 {
		errs = append(errs, fmt.Sprintf("replication.pipe_latency must be >= 0, got %d", r.PipeLatency))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateInventory(inv inventory.Config) error {
	var errs []string
	if len(inv.StartingSlots) == 0 {
		errs = append(errs, "inventory.starting_slots must not be empty")
	}
	seen := make(map[gametag.Tag]bool, len(inv.StartingSlots))
	for i, s := range inv.StartingSlots {
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("inventory.starting_slots[%d]: %v", i, err))
		}
		if seen[s.Tag] {
			errs = append(errs, fmt.Sprintf("inventory.starting_slots[%d]: duplicate tag %q", i, s.Tag))
		}
		seen[s.Tag] = true
	}
	if inv.RePickUpTime < 0 {
		errs = append(errs, "inventory.re_pick_up_time must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMontage(m MontageConfig) error {
	if m.ErrorThreshold <= 0 || m.ReplayThreshold <= 0 {
		return fmt.Errorf("montage thresholds must be > 0, got error_threshold=%v replay_threshold=%v", m.ErrorThreshold, m.ReplayThreshold)
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.Montages == "" {
		errs = append(errs, "content.montages must not be empty")
	}
	if c.Abilities == "" {
		errs = append(errs, "content.abilities must not be empty")
	}
	if c.Equippables == "" {
		errs = append(errs, "content.equippables must not be empty")
	}
	if c.ScriptInstructionLimit < 0 {
		errs = append(errs, "content.script_instruction_limit must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateWorld(w WorldConfig) error {
	var errs []string
	for _, t := range w.TeamTags() {
		if !t.MatchesTag("Team") {
			errs = append(errs, fmt.Sprintf("world.teams: %q is not a Team tag", t))
		}
	}
	if w.EyeHeight < 0 {
		errs = append(errs, "world.eye_height must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with SM_ prefix
	v.SetEnvPrefix("SM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults installs every default on v.
func SetDefaults(v *viper.Viper) { setDefaults(v) }

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.net_mode", "dedicated_server")
	v.SetDefault("server.tick_rate", 30)
	v.SetDefault("server.host_name", "host")

	v.SetDefault("replication.grpc_host", "127.0.0.1")
	v.SetDefault("replication.grpc_port", 50061)
	v.SetDefault("replication.outbox_size", 1024)
	v.SetDefault("replication.pipe_latency", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.listen_addr", ":9100")

	inv := inventory.DefaultConfig()
	slots := make([]map[string]any, len(inv.StartingSlots))
	for i, s := range inv.StartingSlots {
		slots[i] = map[string]any{"tag": s.Tag.String(), "max_items": s.MaxItems}
	}
	v.SetDefault("inventory.starting_slots", slots)
	v.SetDefault("inventory.re_pick_up_time", inv.RePickUpTime.String())
	v.SetDefault("inventory.relative_drop_location", map[string]any{
		"x": inv.RelativeDropLocation.X,
		"y": inv.RelativeDropLocation.Y,
		"z": inv.RelativeDropLocation.Z,
	})
	v.SetDefault("inventory.drop_velocity", inv.DropVelocity)
	v.SetDefault("inventory.up_velocity", inv.UpVelocity)
	v.SetDefault("inventory.disallow_slotless_equippables", inv.DisallowSlotlessEquippables)
	v.SetDefault("inventory.auto_equip_on_pick_up", inv.AutoEquipOnPickUp)

	montage := ability.DefaultConfig()
	v.SetDefault("montage.error_threshold", montage.ErrorThreshold)
	v.SetDefault("montage.replay_threshold", montage.ReplayThreshold)
	v.SetDefault("montage.debug", false)

	v.SetDefault("debug.print_inventory_interval", "0s")

	v.SetDefault("content.montages", "content/montages")
	v.SetDefault("content.abilities", "content/abilities")
	v.SetDefault("content.equippables", "content/equippables")
	v.SetDefault("content.scripts", "content/scripts")
	v.SetDefault("content.level", "content/levels/warehouse.yaml")
	v.SetDefault("content.script_instruction_limit", 0)

	v.SetDefault("world.teams", []string{gametag.TeamSurvivor.String(), gametag.TeamZombie.String()})
	v.SetDefault("world.starting_loadout", []string{})
	v.SetDefault("world.spawn_on_join", true)
	v.SetDefault("world.eye_height", 0)
}
