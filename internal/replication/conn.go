package replication

import "errors"

// ErrClosed is returned by Send on a closed connection.
var ErrClosed = errors.New("replication: connection closed")

// Conn is one side of a replication channel. Send never blocks on the network; Poll
// returns every envelope received since the last Poll, in arrival order. Implementations
// are safe for concurrent use.
type Conn interface {
	ID() string
	Send(e Envelope) error
	Poll() []Envelope
	Close() error
	Closed() bool
}
