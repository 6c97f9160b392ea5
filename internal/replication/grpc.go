package replication

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified replication service.
const ServiceName = "spawnmaster.replication.v1.Replication"

const channelMethod = "/" + ServiceName + "/Channel"

type channelServer interface {
	serveChannel(stream grpc.ServerStream) error
}

// ServiceDesc describes the replication service: one bidi stream of
// google.protobuf.Struct envelopes per connection.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*channelServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Channel",
			Handler:       channelHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "spawnmaster/replication/v1/replication.proto",
}

func channelHandler(srv any, stream grpc.ServerStream) error {
	return srv.(channelServer).serveChannel(stream)
}

// Server accepts replication streams and hands each one to accept as a Conn.
type Server struct {
	logger     *zap.Logger
	outboxSize int
	accept     func(Conn)
}

// NewServer returns a Server that calls accept for every new stream. accept runs on the
// stream goroutine and must not block.
//
// Precondition: logger and accept must be non-nil.
func NewServer(logger *zap.Logger, outboxSize int, accept func(Conn)) *Server {
	if logger == nil {
		panic("replication.NewServer: logger must not be nil")
	}
	if accept == nil {
		panic("replication.NewServer: accept must not be nil")
	}
	return &Server{logger: logger, outboxSize: outboxSize, accept: accept}
}

// Register installs the service on g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&ServiceDesc, s)
}

func (s *Server) serveChannel(stream grpc.ServerStream) error {
	c := newStreamConn(uuid.NewString(), stream, s.outboxSize, s.logger)
	s.logger.Info("replication stream opened", zap.String("conn", c.id))
	s.accept(c)
	err := c.run(stream.Context())
	s.logger.Info("replication stream closed", zap.String("conn", c.id), zap.Error(err))
	return err
}

// Dial opens a replication stream to addr. With no options the connection is insecure.
// The returned Conn is named "server".
func Dial(ctx context.Context, addr string, outboxSize int, logger *zap.Logger, opts ...grpc.DialOption) (Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("replication: dialing %s: %w", addr, err)
	}
	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := cc.NewStream(streamCtx, &ServiceDesc.Streams[0], channelMethod)
	if err != nil {
		cancel()
		_ = cc.Close()
		return nil, fmt.Errorf("replication: opening stream to %s: %w", addr, err)
	}
	c := newStreamConn("server", stream, outboxSize, logger)
	c.release = func() {
		cancel()
		_ = cc.Close()
	}
	go func() {
		if err := c.run(streamCtx); err != nil {
			logger.Warn("replication stream ended", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return c, nil
}

type msgStream interface {
	SendMsg(m any) error
	RecvMsg(m any) error
}

// streamConn adapts a gRPC stream to Conn. A writer goroutine drains the outbox so Send
// never blocks the caller's tick.
type streamConn struct {
	id     string
	stream msgStream
	out    *outbox
	logger *zap.Logger

	mu    sync.Mutex
	inbox []Envelope

	done      chan struct{}
	closeOnce sync.Once
	release   func()
}

func newStreamConn(id string, stream msgStream, outboxSize int, logger *zap.Logger) *streamConn {
	return &streamConn{
		id:     id,
		stream: stream,
		out:    newOutbox(id, outboxSize),
		logger: logger.With(zap.String("conn", id)),
		done:   make(chan struct{}),
	}
}

func (c *streamConn) ID() string { return c.id }

func (c *streamConn) Send(e Envelope) error {
	msg, err := e.ToStruct()
	if err != nil {
		return err
	}
	return c.out.Push(msg)
}

func (c *streamConn) Poll() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.inbox
	c.inbox = nil
	return out
}

func (c *streamConn) Close() error {
	c.closeOnce.Do(func() {
		c.out.Close()
		close(c.done)
		if c.release != nil {
			c.release()
		}
	})
	return nil
}

func (c *streamConn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// run pumps the stream until it fails, ctx ends or the conn is closed.
func (c *streamConn) run(ctx context.Context) error {
	go c.write()
	recvErr := make(chan error, 1)
	go func() { recvErr <- c.read() }()
	var err error
	select {
	case err = <-recvErr:
	case <-ctx.Done():
	case <-c.done:
	}
	_ = c.Close()
	if err == nil || errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
		return nil
	}
	return err
}

func (c *streamConn) read() error {
	for {
		msg := &structpb.Struct{}
		if err := c.stream.RecvMsg(msg); err != nil {
			return err
		}
		e, err := FromStruct(msg)
		if err != nil {
			c.logger.Warn("dropping malformed envelope", zap.Error(err))
			continue
		}
		c.mu.Lock()
		c.inbox = append(c.inbox, e)
		c.mu.Unlock()
	}
}

func (c *streamConn) write() {
	for msg := range c.out.Events() {
		if err := c.stream.SendMsg(msg); err != nil {
			c.logger.Warn("replication send failed", zap.Error(err))
			_ = c.Close()
			return
		}
	}
}
