package world

import (
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/game/character"
	"github.com/cory-johannsen/spawnmaster/internal/game/equippable"
	"github.com/cory-johannsen/spawnmaster/internal/game/geom"
	"github.com/cory-johannsen/spawnmaster/internal/metrics"
	"github.com/cory-johannsen/spawnmaster/internal/replication"
)

const (
	componentInventory = "inventory"
	componentAbility   = "ability"
	componentPawn      = "pawn"
)

// RPC method names as they travel in envelopes.
const (
	MethodServerAttemptEquip              = "ServerAttemptEquip"
	MethodClientAttemptEquip              = "ClientAttemptEquip"
	MethodServerSetCurrentEquippable      = "ServerSetCurrentEquippable"
	MethodClientSetCurrentEquippable      = "ClientSetCurrentEquippable"
	MethodServerDropEquippable            = "ServerDropEquippable"
	MethodClientDropEquippable            = "ClientDropEquippable"
	MethodMulticastVisuallyUnEquip        = "MulticastVisuallyUnEquip"
	MethodMulticastReceiveDropInformation = "MulticastReceiveDropInformation"
	MethodServerTryActivate               = "ServerTryActivate"
	MethodClientActivateFailed            = "ClientActivateFailed"
	MethodClientActivateSucceeded         = "ClientActivateSucceeded"
	MethodServerRequestPickUp             = "ServerRequestPickUp"
)

// Rejection reasons recorded on the RPCsRejected counter.
const (
	rejectNotOwner     = "not_owner"
	rejectDirection    = "wrong_direction"
	rejectUnknownActor = "unknown_actor"
	rejectUnknownItem  = "unknown_item"
	rejectMalformed    = "malformed"
	rejectUnknown      = "unknown_method"
)

type itemArgs struct {
	Item         string `json:"item,omitempty"`
	Instant      bool   `json:"instant,omitempty"`
	DontFindNext bool   `json:"dont_find_next,omitempty"`
}

type dropInfoArgs struct {
	Item     string       `json:"item"`
	Location geom.Vector  `json:"location"`
	Rotation geom.Rotator `json:"rotation"`
	Impulse  geom.Vector  `json:"impulse"`
}

type activateArgs struct {
	Ability string `json:"ability,omitempty"`
	Key     uint32 `json:"key"`
}

func idOf(item *equippable.Equippable) string {
	if item == nil {
		return ""
	}
	return string(item.ID())
}

// inventoryRemote routes one pawn's inventory RPCs.
type inventoryRemote struct {
	w *World
	p *character.Pawn
}

func (r *inventoryRemote) ServerAttemptEquip(item *equippable.Equippable) {
	r.w.callServer(r.p, componentInventory, MethodServerAttemptEquip, itemArgs{Item: idOf(item)})
}

func (r *inventoryRemote) ClientAttemptEquip(item *equippable.Equippable) {
	r.w.callClient(r.p, componentInventory, MethodClientAttemptEquip, itemArgs{Item: idOf(item)})
}

func (r *inventoryRemote) ServerSetCurrentEquippable(item *equippable.Equippable) {
	r.w.callServer(r.p, componentInventory, MethodServerSetCurrentEquippable, itemArgs{Item: idOf(item)})
}

func (r *inventoryRemote) ClientSetCurrentEquippable(item *equippable.Equippable) {
	r.w.callClient(r.p, componentInventory, MethodClientSetCurrentEquippable, itemArgs{Item: idOf(item)})
}

func (r *inventoryRemote) ServerDropEquippable(item *equippable.Equippable, instant, dontFindNext bool) {
	r.w.callServer(r.p, componentInventory, MethodServerDropEquippable, itemArgs{Item: idOf(item), Instant: instant, DontFindNext: dontFindNext})
}

func (r *inventoryRemote) ClientDropEquippable(item *equippable.Equippable, instant, dontFindNext bool) {
	r.w.callClient(r.p, componentInventory, MethodClientDropEquippable, itemArgs{Item: idOf(item), Instant: instant, DontFindNext: dontFindNext})
}

func (r *inventoryRemote) MulticastVisuallyUnEquip(item *equippable.Equippable) {
	r.w.callMulticast(r.p, componentInventory, MethodMulticastVisuallyUnEquip, itemArgs{Item: idOf(item)})
}

func (r *inventoryRemote) MulticastReceiveDropInformation(item *equippable.Equippable, loc geom.Vector, rot geom.Rotator, impulse geom.Vector) {
	r.w.callMulticast(r.p, componentInventory, MethodMulticastReceiveDropInformation, dropInfoArgs{Item: idOf(item), Location: loc, Rotation: rot, Impulse: impulse})
}

// abilityRemote routes one pawn's ability RPCs.
type abilityRemote struct {
	w *World
	p *character.Pawn
}

func (r *abilityRemote) ServerTryActivate(abilityID string, key uint32) {
	r.w.callServer(r.p, componentAbility, MethodServerTryActivate, activateArgs{Ability: abilityID, Key: key})
}

func (r *abilityRemote) ClientActivateFailed(key uint32) {
	r.w.callClient(r.p, componentAbility, MethodClientActivateFailed, activateArgs{Key: key})
}

func (r *abilityRemote) ClientActivateSucceeded(key uint32) {
	r.w.callClient(r.p, componentAbility, MethodClientActivateSucceeded, activateArgs{Key: key})
}

func (w *World) rpcEnvelope(p *character.Pawn, component, method string, args any) (replication.Envelope, bool) {
	payload, err := replication.Encode(args)
	if err != nil {
		w.logger.Error("encoding rpc", zap.String("method", method), zap.Error(err))
		return replication.Envelope{}, false
	}
	return replication.Envelope{Kind: replication.KindRPC, Actor: p.ID(), Component: component, Method: method, Payload: payload}, true
}

// callServer runs a server RPC locally on the authority, sends it to the server from
// the owning client and drops it anywhere else.
func (w *World) callServer(p *character.Pawn, component, method string, args any) {
	env, ok := w.rpcEnvelope(p, component, method, args)
	if !ok {
		return
	}
	net := p.Net()
	switch {
	case net.HasAuthority():
		w.invoke(p, env)
	case net.LocallyControlled && w.server != nil:
		w.send(w.server, env)
	default:
		w.logger.Debug("dropping server rpc", zap.String("method", method), zap.String("pawn", p.Name()))
	}
}

// callClient sends a client RPC from the authority to the owning connection, or runs it
// locally for the host's own pawn.
func (w *World) callClient(p *character.Pawn, component, method string, args any) {
	if !p.Net().HasAuthority() {
		return
	}
	env, ok := w.rpcEnvelope(p, component, method, args)
	if !ok {
		return
	}
	if p.OwnerConn() == "" {
		if p.Net().LocallyControlled {
			w.invoke(p, env)
		}
		return
	}
	if pr, ok := w.peers[p.OwnerConn()]; ok {
		w.send(pr, env)
	}
}

// callMulticast fans a multicast out from the authority to every peer. The caller has
// already applied it locally.
func (w *World) callMulticast(p *character.Pawn, component, method string, args any) {
	if !p.Net().HasAuthority() {
		return
	}
	env, ok := w.rpcEnvelope(p, component, method, args)
	if !ok {
		return
	}
	w.broadcast(env)
}

func reject(method, reason string) {
	metrics.RPCsRejected.WithLabelValues(method, reason).Inc()
}

// handleRPC checks an inbound RPC's direction and ownership before running it. Servers
// accept only Server RPCs, and only for pawns the sending connection owns; clients accept
// only Client and Multicast RPCs.
func (w *World) handleRPC(from *peer, env replication.Envelope) {
	p, ok := w.pawns[env.Actor]
	if !ok {
		reject(env.Method, rejectUnknownActor)
		w.logger.Debug("rpc for unknown actor", zap.String("method", env.Method), zap.String("actor", env.Actor.Short()))
		return
	}
	if w.cfg.Mode.IsServer() {
		if !strings.HasPrefix(env.Method, "Server") {
			reject(env.Method, rejectDirection)
			w.logger.Warn("client sent a non-server rpc", zap.String("conn", from.id), zap.String("method", env.Method))
			return
		}
		if p.OwnerConn() != from.id {
			reject(env.Method, rejectNotOwner)
			w.logger.Warn("rpc from connection that does not own the pawn",
				zap.String("conn", from.id),
				zap.String("method", env.Method),
				zap.String("pawn", p.Name()),
			)
			return
		}
	} else if !strings.HasPrefix(env.Method, "Client") && !strings.HasPrefix(env.Method, "Multicast") {
		reject(env.Method, rejectDirection)
		w.logger.Warn("server sent a server rpc", zap.String("method", env.Method))
		return
	}
	metrics.RPCsReceived.WithLabelValues(env.Component, env.Method).Inc()
	w.invoke(p, env)
}

// resolveItem maps an item id to an equippable. An empty id is a nil item.
func (w *World) resolveItem(id string) (*equippable.Equippable, bool) {
	if id == "" {
		return nil, true
	}
	item, ok := w.items[actor.ID(id)]
	return item, ok
}

// invoke runs an RPC against p.
func (w *World) invoke(p *character.Pawn, env replication.Envelope) {
	switch env.Component {
	case componentInventory, componentPawn:
		w.invokeItemRPC(p, env)
	case componentAbility:
		var args activateArgs
		if err := replication.Decode(env.Payload, &args); err != nil {
			reject(env.Method, rejectMalformed)
			return
		}
		sys := p.AbilitySystem()
		switch env.Method {
		case MethodServerTryActivate:
			sys.ServerTryActivate(args.Ability, args.Key)
		case MethodClientActivateFailed:
			sys.ClientActivateFailed(args.Key)
		case MethodClientActivateSucceeded:
			sys.ClientActivateSucceeded(args.Key)
		default:
			reject(env.Method, rejectUnknown)
		}
	default:
		reject(env.Method, rejectUnknown)
	}
}

func (w *World) invokeItemRPC(p *character.Pawn, env replication.Envelope) {
	if env.Method == MethodMulticastReceiveDropInformation {
		var args dropInfoArgs
		if err := replication.Decode(env.Payload, &args); err != nil {
			reject(env.Method, rejectMalformed)
			return
		}
		item, ok := w.resolveItem(args.Item)
		if !ok || item == nil {
			reject(env.Method, rejectUnknownItem)
			return
		}
		item.ReceiveDropInformation(args.Location, args.Rotation, args.Impulse)
		return
	}
	var args itemArgs
	if err := replication.Decode(env.Payload, &args); err != nil {
		reject(env.Method, rejectMalformed)
		return
	}
	item, ok := w.resolveItem(args.Item)
	if !ok {
		reject(env.Method, rejectUnknownItem)
		w.logger.Debug("rpc names unknown item", zap.String("method", env.Method), zap.String("item", args.Item))
		return
	}
	inv := p.Inventory()
	switch env.Method {
	case MethodServerAttemptEquip:
		inv.HandleServerAttemptEquip(item)
	case MethodClientAttemptEquip:
		inv.HandleClientAttemptEquip(item)
	case MethodServerSetCurrentEquippable:
		inv.HandleServerSetCurrentEquippable(item)
	case MethodClientSetCurrentEquippable:
		inv.HandleClientSetCurrentEquippable(item)
	case MethodServerDropEquippable:
		inv.HandleServerDropEquippable(item, args.Instant, args.DontFindNext)
	case MethodClientDropEquippable:
		inv.HandleClientDropEquippable(item, args.Instant, args.DontFindNext)
	case MethodMulticastVisuallyUnEquip:
		inv.HandleMulticastVisuallyUnEquip(item)
	case MethodServerRequestPickUp:
		w.TryPickUp(p, item)
	default:
		reject(env.Method, rejectUnknown)
	}
}
