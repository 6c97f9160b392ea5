// Package netrole models network roles and modes and answers the per-operation
// question of whether the acting side may mutate state directly or must mirror the
// request to its counterpart.
package netrole

import (
	"fmt"
	"strings"
)

// Role is the local network role of an actor.
type Role uint8

const (
	// RoleNone is an unresolved role and always a programming error at runtime.
	RoleNone Role = iota
	// RoleSimulatedProxy is a client-side copy of an actor the client does not control.
	RoleSimulatedProxy
	// RoleAutonomousProxy is a client-side copy of the actor the client controls.
	RoleAutonomousProxy
	// RoleAuthority owns canonical state.
	RoleAuthority
)

var roleNames = [...]string{"None", "SimulatedProxy", "AutonomousProxy", "Authority"}

// String returns the role name.
func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", r)
}

// NetMode is the network mode of the process hosting a world.
type NetMode uint8

const (
	ModeStandalone NetMode = iota
	ModeDedicatedServer
	ModeListenServer
	ModeClient
)

var modeNames = map[NetMode]string{
	ModeStandalone:      "standalone",
	ModeDedicatedServer: "dedicated_server",
	ModeListenServer:    "listen_server",
	ModeClient:          "client",
}

// String returns the config spelling of the mode.
func (m NetMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("NetMode(%d)", m)
}

// DisplayName returns the human-readable connection type used by debug output.
func (m NetMode) DisplayName() string {
	switch m {
	case ModeClient:
		return "Client"
	case ModeStandalone:
		return "Standalone"
	case ModeListenServer:
		return "Listen Server"
	case ModeDedicatedServer:
		return "Dedicated Server"
	default:
		return "None"
	}
}

// IsServer reports whether worlds in this mode hold authority over spawned actors.
func (m NetMode) IsServer() bool {
	return m != ModeClient
}

// ParseNetMode converts a config string to a NetMode.
//
// Postcondition: returns an error for unknown modes.
func ParseNetMode(s string) (NetMode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(name, s) {
			return m, nil
		}
	}
	return ModeStandalone, fmt.Errorf("netrole: unknown net mode %q", s)
}

// Context is the role information an actor component consults before mutating state.
type Context struct {
	Role              Role
	Mode              NetMode
	LocallyControlled bool
}

// HasAuthority reports whether the actor is the canonical copy.
func (c Context) HasAuthority() bool {
	return c.Role == RoleAuthority
}

// IsListenServerOrStandalone reports whether the hosting process is both server and player.
func (c Context) IsListenServerOrStandalone() bool {
	return c.Mode == ModeListenServer || c.Mode == ModeStandalone
}

// IsListenServerOrStandaloneLocalController reports whether the actor is the server-side
// actor controlled by the hosting player. Such an actor runs the client-side code paths.
func (c Context) IsListenServerOrStandaloneLocalController() bool {
	return c.IsListenServerOrStandalone() && c.LocallyControlled
}

// CanInitiate reports whether the actor may start equip transitions. Simulated proxies
// and remote-owned server copies may not.
func (c Context) CanInitiate() bool {
	return c.Role == RoleAutonomousProxy || c.IsListenServerOrStandaloneLocalController()
}

// DrivesLocally reports whether the actor runs the locally predicted code paths
// (timers, first-person animation) rather than the server bookkeeping path.
func (c Context) DrivesLocally() bool {
	return !c.HasAuthority() || c.IsListenServerOrStandaloneLocalController()
}

// MirrorToClient reports the direction of a mirrored request: true means
// server→client, false means client→server.
func (c Context) MirrorToClient() bool {
	return c.HasAuthority() && !c.IsListenServerOrStandaloneLocalController()
}

// Validate returns an error if the role is unresolved.
func (c Context) Validate() error {
	if c.Role == RoleNone {
		return fmt.Errorf("netrole: role is %s in mode %s", c.Role, c.Mode)
	}
	return nil
}

// MustValidate panics if the role is unresolved.
func (c Context) MustValidate(who string) {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("%s: %v", who, err))
	}
}
