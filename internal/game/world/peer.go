package world

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/spawnmaster/internal/game/actor"
	"github.com/cory-johannsen/spawnmaster/internal/metrics"
	"github.com/cory-johannsen/spawnmaster/internal/replication"
)

type helloArgs struct {
	ConnID string `json:"conn_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// peer is the far end of one replication connection plus the property values last
// sent to it.
type peer struct {
	id     string
	conn   replication.Conn
	shadow map[string]string
}

func newPeer(c replication.Conn) *peer {
	return &peer{id: c.ID(), conn: c, shadow: make(map[string]string)}
}

// forget drops the shadow state of actor id.
func (pr *peer) forget(id actor.ID) {
	prefix := string(id) + "/"
	for k := range pr.shadow {
		if strings.HasPrefix(k, prefix) {
			delete(pr.shadow, k)
		}
	}
}

// AddConnection joins a client connection to a server world at the start of the next
// Tick. The client is sent its connection id and every existing actor. Safe for
// concurrent use.
func (w *World) AddConnection(c replication.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.incoming = append(w.incoming, c)
}

func (w *World) attach(c replication.Conn) {
	if !w.cfg.Mode.IsServer() {
		w.logger.Warn("client world refused a connection", zap.String("conn", c.ID()))
		_ = c.Close()
		return
	}
	if _, dup := w.peers[c.ID()]; dup {
		w.logger.Warn("duplicate connection id", zap.String("conn", c.ID()))
		_ = c.Close()
		return
	}
	pr := newPeer(c)
	w.peers[pr.id] = pr
	w.peerOrder = append(w.peerOrder, pr.id)
	metrics.Connections.WithLabelValues(w.cfg.Mode.String()).Inc()
	w.logger.Info("connection attached", zap.String("conn", pr.id))

	hello, _ := replication.Encode(helloArgs{ConnID: pr.id})
	w.send(pr, replication.Envelope{Kind: replication.KindHello, Payload: hello})
	for _, id := range w.order {
		w.send(pr, w.spawnEnvelope(id))
	}
}

// ConnectToServer attaches a client world to its server and introduces the player as
// name.
func (w *World) ConnectToServer(c replication.Conn, name string) error {
	if w.cfg.Mode.IsServer() {
		return errors.New("world: only client worlds connect to a server")
	}
	if w.server != nil {
		return errors.New("world: already connected")
	}
	w.server = newPeer(c)
	metrics.Connections.WithLabelValues(w.cfg.Mode.String()).Inc()
	hello, err := replication.Encode(helloArgs{Name: name})
	if err != nil {
		return err
	}
	return c.Send(replication.Envelope{Kind: replication.KindHello, Payload: hello})
}

// Connected reports whether a client world still has a live server connection.
func (w *World) Connected() bool {
	return w.server != nil && !w.server.conn.Closed()
}

// RemoveConnection detaches connID, destroying the pawns it controls.
func (w *World) RemoveConnection(connID string) {
	pr, ok := w.peers[connID]
	if !ok {
		return
	}
	delete(w.peers, connID)
	for i, id := range w.peerOrder {
		if id == connID {
			w.peerOrder = append(w.peerOrder[:i], w.peerOrder[i+1:]...)
			break
		}
	}
	_ = pr.conn.Close()
	metrics.Connections.WithLabelValues(w.cfg.Mode.String()).Dec()
	if _, err := w.sessions.Remove(connID); err == nil {
		w.logger.Info("session ended", zap.String("conn", connID))
	}
	for _, p := range w.Pawns() {
		if p.OwnerConn() == connID {
			if err := w.DestroyActor(p.ID()); err != nil {
				w.logger.Warn("destroying pawn of closed connection", zap.Error(err))
			}
		}
	}
	w.logger.Info("connection removed", zap.String("conn", connID))
}

func (w *World) send(pr *peer, env replication.Envelope) {
	if err := pr.conn.Send(env); err != nil {
		w.logger.Warn("replication send failed", zap.String("conn", pr.id), zap.String("kind", string(env.Kind)), zap.Error(err))
		return
	}
	if env.Kind == replication.KindRPC {
		metrics.RPCsSent.WithLabelValues(env.Component, env.Method).Inc()
	}
}

func (w *World) broadcast(env replication.Envelope) {
	for _, id := range w.peerOrder {
		w.send(w.peers[id], env)
	}
}

func (w *World) pollPeers() {
	if w.server != nil {
		if w.server.conn.Closed() {
			return
		}
		for _, env := range w.server.conn.Poll() {
			w.handleFromServer(env)
		}
		return
	}
	for _, id := range append([]string(nil), w.peerOrder...) {
		pr, ok := w.peers[id]
		if !ok {
			continue
		}
		for _, env := range pr.conn.Poll() {
			w.handleFromClient(pr, env)
		}
		if pr.conn.Closed() {
			w.RemoveConnection(id)
		}
	}
}

func (w *World) handleFromServer(env replication.Envelope) {
	switch env.Kind {
	case replication.KindHello:
		var args helloArgs
		if err := replication.Decode(env.Payload, &args); err != nil {
			w.logger.Warn("malformed hello", zap.Error(err))
			return
		}
		w.localConn = args.ConnID
		w.logger.Info("connected to server", zap.String("conn", args.ConnID))
	case replication.KindSpawn:
		w.applySpawn(env)
	case replication.KindDestroy:
		if _, ok := w.pawns[env.Actor]; ok {
			w.removeActor(env.Actor)
		} else if _, ok := w.items[env.Actor]; ok {
			w.removeActor(env.Actor)
		}
	case replication.KindRPC:
		w.handleRPC(w.server, env)
	case replication.KindProperty:
		w.applyProperty(env)
	}
}

func (w *World) handleFromClient(pr *peer, env replication.Envelope) {
	switch env.Kind {
	case replication.KindHello:
		var args helloArgs
		if err := replication.Decode(env.Payload, &args); err != nil || args.Name == "" {
			w.logger.Warn("malformed hello", zap.String("conn", pr.id), zap.Error(err))
			return
		}
		w.join(pr, args.Name)
	case replication.KindRPC:
		w.handleRPC(pr, env)
	default:
		w.logger.Warn("client sent a server-only envelope", zap.String("conn", pr.id), zap.String("kind", string(env.Kind)))
	}
}

// join registers the connection's session on the smallest team and spawns its pawn
// when SpawnOnJoin is set.
func (w *World) join(pr *peer, name string) {
	team := w.sessions.SmallestTeam(w.cfg.Teams...)
	if _, err := w.sessions.Add(pr.id, name, team); err != nil {
		w.logger.Warn("join refused", zap.String("conn", pr.id), zap.Error(err))
		return
	}
	w.logger.Info("session joined", zap.String("conn", pr.id), zap.String("name", name), zap.Stringer("team", team))
	if !w.cfg.SpawnOnJoin {
		return
	}
	p, err := w.SpawnPawn(pr.id, name, team)
	if err != nil {
		w.logger.Warn("spawning joined pawn", zap.String("conn", pr.id), zap.Error(err))
		return
	}
	_ = w.sessions.SetPawn(pr.id, p.ID())
}
