package outstation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/danmuck/wireprobe/internal/protocol/iec104/apci"
	"github.com/danmuck/wireprobe/internal/protocol/iec104/asdu"
)

// Stats are cumulative counters across all connections.
type Stats struct {
	Connections int64
	Active      int32
	FramesIn    int64
	FramesOut   int64
}

// Server is a scriptable IEC-104 controlled station.
type Server struct {
	behavior Behavior
	log      zerolog.Logger
	ln       net.Listener

	connections *atomic.Int64
	active      *atomic.Int32
	framesIn    *atomic.Int64
	framesOut   *atomic.Int64
	closed      *atomic.Bool

	mu       sync.Mutex
	received []apci.Frame
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

func New(b Behavior, logger zerolog.Logger) *Server {
	return &Server{
		behavior:    b.withDefaults(),
		log:         logger.With().Str("component", "iec104.outstation").Logger(),
		connections: atomic.NewInt64(0),
		active:      atomic.NewInt32(0),
		framesIn:    atomic.NewInt64(0),
		framesOut:   atomic.NewInt64(0),
		closed:      atomic.NewBool(false),
		conns:       make(map[net.Conn]struct{}),
	}
}

// Start listens on addr and serves in the background until ctx ends or
// Close is called.
func Start(ctx context.Context, addr string, b Behavior, logger zerolog.Logger) (*Server, error) {
	s := New(b, logger)
	if err := s.Listen(addr); err != nil {
		return nil, err
	}
	go func() {
		if err := s.Serve(ctx); err != nil {
			s.log.Warn().Err(err).Msg("serve stopped")
		}
	}()
	return s, nil
}

func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("outstation: listen %s: %w", addr, err)
	}
	s.ln = ln
	return nil
}

// Addr is the bound listener address, or "" before Listen.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Serve accepts connections on the listener opened by Listen.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("outstation: serve before listen")
	}
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	s.log.Info().Str("addr", s.Addr()).Msg("listening")
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() || ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if s.closed.Load() {
			_ = conn.Close()
			return nil
		}
		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.connections.Load(),
		Active:      s.active.Load(),
		FramesIn:    s.framesIn.Load(),
		FramesOut:   s.framesOut.Load(),
	}
}

// Received is a copy of every frame read from clients, in arrival order.
func (s *Server) Received() []apci.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]apci.Frame, len(s.received))
	copy(out, s.received)
	return out
}

// ReceivedTypes lists the type ids of inbound I-frames.
func (s *Server) ReceivedTypes() []asdu.TypeID {
	var out []asdu.TypeID
	for _, f := range s.Received() {
		if f.Kind == apci.KindI && len(f.ASDU) > 0 {
			out = append(out, asdu.TypeID(f.ASDU[0]))
		}
	}
	return out
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) record(f apci.Frame) {
	s.framesIn.Inc()
	s.mu.Lock()
	s.received = append(s.received, f)
	s.mu.Unlock()
}
