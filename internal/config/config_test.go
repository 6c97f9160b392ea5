package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/spawnmaster/internal/game/gametag"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
	"github.com/cory-johannsen/spawnmaster/internal/game/inventory"
	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
	"github.com/cory-johannsen/spawnmaster/internal/game/world"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			NetMode:  "dedicated_server",
			TickRate: 30,
			HostName: "host",
		},
		Replication: ReplicationConfig{
			GRPCHost:   "127.0.0.1",
			GRPCPort:   50061,
			OutboxSize: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Inventory: inventory.DefaultConfig(),
		Montage: MontageConfig{
			ErrorThreshold:  0.1,
			ReplayThreshold: 0.5,
		},
		Content: ContentConfig{
			ContentDirs: world.ContentDirs{
				Montages:    "content/montages",
				Abilities:   "content/abilities",
				Equippables: "content/equippables",
			},
		},
		World: WorldConfig{
			Teams: []string{"Team.Survivor", "Team.Zombie"},
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestReplicationAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "127.0.0.1:50061", cfg.Replication.Addr())
}

func TestServerMode(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, netrole.ModeDedicatedServer, cfg.Server.Mode())
	cfg.Server.NetMode = "listen_server"
	assert.Equal(t, netrole.ModeListenServer, cfg.Server.Mode())
}

func TestServerTickInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Server.TickRate = 20
	assert.Equal(t, 50*time.Millisecond, cfg.Server.TickInterval())
}

func TestWorldConfig(t *testing.T) {
	cfg := validConfig()
	cfg.World.StartingLoadout = []string{"rifle"}
	cfg.World.SpawnOnJoin = true
	cfg.Debug.PrintInventoryInterval = 2 * time.Second
	cfg.Montage.Debug = true

	wc := cfg.WorldConfig(netrole.ModeListenServer)
	assert.Equal(t, netrole.ModeListenServer, wc.Mode)
	assert.Equal(t, []gametag.Tag{gametag.TeamSurvivor, gametag.TeamZombie}, wc.Teams)
	assert.Equal(t, []string{"rifle"}, wc.StartingLoadout)
	assert.True(t, wc.SpawnOnJoin)
	assert.Equal(t, 2*time.Second, wc.DebugPrintInterval)
	assert.True(t, wc.Ability.Debug)
	assert.Equal(t, 0.1, wc.Ability.ErrorThreshold)
	assert.Equal(t, inventory.DefaultConfig(), wc.Inventory)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
server:
  net_mode: listen_server
  tick_rate: 20
replication:
  grpc_host: 0.0.0.0
  grpc_port: 50099
logging:
  level: debug
  format: console
inventory:
  starting_slots:
    - tag: EquippableSlot.Primary
      max_items: 2
  re_pick_up_time: 500ms
  relative_drop_location: {x: 10, y: 0, z: -20}
debug:
  print_inventory_interval: 3s
content:
  montages: m
  abilities: a
  equippables: e
  scripts: s
  level: l.yaml
world:
  teams: [Team.Survivor]
  starting_loadout: [rifle, pistol]
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, netrole.ModeListenServer, cfg.Server.Mode())
	assert.Equal(t, 20, cfg.Server.TickRate)
	assert.Equal(t, "0.0.0.0:50099", cfg.Replication.Addr())
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Inventory.StartingSlots, 1)
	assert.Equal(t, inventory.SlotConfig{Tag: "EquippableSlot.Primary", MaxItems: 2}, cfg.Inventory.StartingSlots[0])
	assert.Equal(t, 500*time.Millisecond, cfg.Inventory.RePickUpTime)
	assert.Equal(t, geom.Vector{X: 10, Z: -20}, cfg.Inventory.RelativeDropLocation)
	assert.Equal(t, 3*time.Second, cfg.Debug.PrintInventoryInterval)
	assert.Equal(t, "m", cfg.Content.Montages)
	assert.Equal(t, "l.yaml", cfg.Content.Level)
	assert.Equal(t, []string{"rifle", "pistol"}, cfg.World.StartingLoadout)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, netrole.ModeDedicatedServer, cfg.Server.Mode())
	assert.Equal(t, 30, cfg.Server.TickRate)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, inventory.DefaultConfig(), cfg.Inventory)
	assert.Equal(t, 0.1, cfg.Montage.ErrorThreshold)
	assert.Equal(t, []string{"Team.Survivor", "Team.Zombie"}, cfg.World.Teams)
	assert.True(t, cfg.World.SpawnOnJoin)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SM_SERVER_TICK_RATE", "60")
	dir := t.TempDir()
	path := filepath.Join(dir, "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  tick_rate: 20\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Server.TickRate)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestLoadFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("server.net_mode", "peer_to_peer")
	_, err := LoadFromViper(v)
	assert.ErrorContains(t, err, "server.net_mode")
}

func TestValidateNetMode(t *testing.T) {
	for _, mode := range []string{"standalone", "dedicated_server", "listen_server", "client"} {
		cfg := validConfig()
		cfg.Server.NetMode = mode
		assert.NoError(t, cfg.Validate(), "mode %q should be valid", mode)
	}
	cfg := validConfig()
	cfg.Server.NetMode = "invalid"
	assert.Error(t, cfg.Validate())
}

func TestValidateTickRate(t *testing.T) {
	cfg := validConfig()
	cfg.Server.TickRate = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		cfg := validConfig()
		cfg.Logging.Format = format
		assert.NoError(t, cfg.Validate(), "format %q should be valid", format)
	}
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateReplicationHostEmpty(t *testing.T) {
	cfg := validConfig()
	cfg.Replication.GRPCHost = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateReplicationOutbox(t *testing.T) {
	cfg := validConfig()
	cfg.Replication.OutboxSize = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateInventorySlots(t *testing.T) {
	cfg := validConfig()
	cfg.Inventory.StartingSlots = nil
	assert.ErrorContains(t, cfg.Validate(), "inventory.starting_slots must not be empty")

	cfg = validConfig()
	cfg.Inventory.StartingSlots = []inventory.SlotConfig{
		{Tag: "EquippableSlot.Primary", MaxItems: 1},
		{Tag: "EquippableSlot.Primary", MaxItems: 1},
	}
	assert.ErrorContains(t, cfg.Validate(), "duplicate tag")

	cfg = validConfig()
	cfg.Inventory.StartingSlots = []inventory.SlotConfig{{Tag: "EquippableSlot.Primary"}}
	assert.ErrorContains(t, cfg.Validate(), "max_items")
}

func TestValidateMontageThresholds(t *testing.T) {
	cfg := validConfig()
	cfg.Montage.ErrorThreshold = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateContentDirs(t *testing.T) {
	cfg := validConfig()
	cfg.Content.Abilities = ""
	assert.ErrorContains(t, cfg.Validate(), "content.abilities")
}

func TestValidateWorldTeams(t *testing.T) {
	cfg := validConfig()
	cfg.World.Teams = []string{"Team.Survivor", "EquippableSlot.Primary"}
	assert.ErrorContains(t, cfg.Validate(), "is not a Team tag")
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	cfg := validConfig()
	cfg.Server.TickRate = 0
	cfg.Replication.GRPCPort = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.tick_rate")
	assert.Contains(t, err.Error(), "replication.grpc_port")
	assert.Contains(t, err.Error(), "logging.format")
}

// Property-based tests

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(1, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Replication.GRPCPort = port
		err := cfg.Validate()
		if err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}

func TestPropertyInvalidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// Generate ports outside valid range
		port := rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(t, "port")
		cfg := validConfig()
		cfg.Replication.GRPCPort = port
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("invalid port %d accepted", port)
		}
	})
}

func TestPropertyTickIntervalTimesRateIsOneSecond(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rate := rapid.SampledFrom([]int{1, 2, 4, 5, 8, 10, 20, 25, 40, 50, 100}).Draw(t, "rate")
		s := ServerConfig{TickRate: rate}
		if got := s.TickInterval() * time.Duration(rate); got != time.Second {
			t.Fatalf("rate %d: interval*rate = %v", rate, got)
		}
	})
}
