package netrole_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/spawnmaster/internal/game/netrole"
)

func TestParseNetMode(t *testing.T) {
	for _, m := range []netrole.NetMode{
		netrole.ModeStandalone, netrole.ModeDedicatedServer, netrole.ModeListenServer, netrole.ModeClient,
	} {
		got, err := netrole.ParseNetMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := netrole.ParseNetMode("peer")
	assert.Error(t, err)
}

func TestContext_CanInitiate(t *testing.T) {
	cases := []struct {
		name string
		ctx  netrole.Context
		want bool
	}{
		{"autonomous", netrole.Context{Role: netrole.RoleAutonomousProxy, Mode: netrole.ModeClient, LocallyControlled: true}, true},
		{"simulated", netrole.Context{Role: netrole.RoleSimulatedProxy, Mode: netrole.ModeClient}, false},
		{"dedicated authority", netrole.Context{Role: netrole.RoleAuthority, Mode: netrole.ModeDedicatedServer}, false},
		{"listen local", netrole.Context{Role: netrole.RoleAuthority, Mode: netrole.ModeListenServer, LocallyControlled: true}, true},
		{"listen remote pawn", netrole.Context{Role: netrole.RoleAuthority, Mode: netrole.ModeListenServer}, false},
		{"standalone local", netrole.Context{Role: netrole.RoleAuthority, Mode: netrole.ModeStandalone, LocallyControlled: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.ctx.CanInitiate())
		})
	}
}

func TestContext_MirrorDirection(t *testing.T) {
	dedicated := netrole.Context{Role: netrole.RoleAuthority, Mode: netrole.ModeDedicatedServer}
	assert.True(t, dedicated.MirrorToClient())
	assert.False(t, dedicated.DrivesLocally())

	listen := netrole.Context{Role: netrole.RoleAuthority, Mode: netrole.ModeListenServer, LocallyControlled: true}
	assert.False(t, listen.MirrorToClient())
	assert.True(t, listen.DrivesLocally())

	client := netrole.Context{Role: netrole.RoleAutonomousProxy, Mode: netrole.ModeClient, LocallyControlled: true}
	assert.False(t, client.MirrorToClient())
	assert.True(t, client.DrivesLocally())
}

func TestContext_MustValidatePanicsOnNone(t *testing.T) {
	assert.Panics(t, func() {
		netrole.Context{}.MustValidate("test")
	})
	assert.NotPanics(t, func() {
		netrole.Context{Role: netrole.RoleAuthority}.MustValidate("test")
	})
}

func TestNetMode_DisplayName(t *testing.T) {
	assert.Equal(t, "Listen Server", netrole.ModeListenServer.DisplayName())
	assert.Equal(t, "Dedicated Server", netrole.ModeDedicatedServer.DisplayName())
	assert.Equal(t, "None", netrole.NetMode(42).DisplayName())
}
