package replication

import (
	"sync"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

type pending struct {
	msg  *structpb.Struct
	wait int
}

// pipeEnd is one end of an in-memory pipe. Envelopes pass through their wire form so
// the pipe sees exactly what the gRPC transport would.
type pipeEnd struct {
	id      string
	latency int
	logger  *zap.Logger
	peer    *pipeEnd

	mu     sync.Mutex
	inbox  []pending
	closed bool
}

// NewPipe returns two connected ends named aID and bID. Each envelope becomes visible
// to Poll on the far end after latency further polls.
//
// Precondition: latency >= 0.
func NewPipe(aID, bID string, latency int, logger *zap.Logger) (Conn, Conn) {
	if latency < 0 {
		latency = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &pipeEnd{id: aID, latency: latency, logger: logger}
	b := &pipeEnd{id: bID, latency: latency, logger: logger}
	a.peer, b.peer = b, a
	return a, b
}

func (p *pipeEnd) ID() string { return p.id }

func (p *pipeEnd) Send(e Envelope) error {
	if p.Closed() {
		return ErrClosed
	}
	msg, err := e.ToStruct()
	if err != nil {
		return err
	}
	p.peer.mu.Lock()
	defer p.peer.mu.Unlock()
	p.peer.inbox = append(p.peer.inbox, pending{msg: msg, wait: p.latency})
	return nil
}

func (p *pipeEnd) Poll() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Envelope
	kept := p.inbox[:0]
	for _, in := range p.inbox {
		if in.wait > 0 {
			in.wait--
			kept = append(kept, in)
			continue
		}
		e, err := FromStruct(in.msg)
		if err != nil {
			p.logger.Warn("dropping malformed envelope", zap.String("conn", p.id), zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	p.inbox = kept
	return out
}

func (p *pipeEnd) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether either end has been closed.
func (p *pipeEnd) Closed() bool {
	return p.closedLocal() || p.peer.closedLocal()
}

func (p *pipeEnd) closedLocal() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
