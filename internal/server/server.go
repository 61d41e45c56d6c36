package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"

	"github.com/mv82/webpool/internal/backoff"
	"github.com/mv82/webpool/internal/logger"
	"github.com/mv82/webpool/pkg/pool"
)

// Config defines the listener configuration
type Config struct {
	// Addr is the address to listen on
	Addr string

	// MaxAccept limits how many connections are accepted before the
	// listener shuts itself down. Zero means unlimited.
	MaxAccept int

	// SuccessPage is the file served for a matching request line
	SuccessPage string

	// NotFoundPage is the file served for everything else
	NotFoundPage string
}

// Option configures a Server before Start
type Option func(*Server)

// WithClock sets the clock used for accept retry delays
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// Server accepts connections and hands each one to the worker pool as a job.
// The accept loop is the only producer; the pool bounds how many connections
// are served concurrently.
type Server struct {
	cfg     Config
	pool    *pool.Pool
	handler *Handler
	log     *logger.Logger
	clock   quartz.Clock

	listener  net.Listener
	done      chan struct{}
	closeOnce sync.Once
	started   int32

	// statistics
	accepted int64
	dropped  int64
}

// New creates a Server serving connections from the given pool
func New(cfg Config, p *pool.Pool, log *logger.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		pool:    p,
		handler: NewHandler(cfg.SuccessPage, cfg.NotFoundPage, log),
		log:     log,
		clock:   quartz.NewReal(),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start binds the listener and launches the accept loop in the background
func (s *Server) Start() error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return fmt.Errorf("server is already started")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		atomic.StoreInt32(&s.started, 0)
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.serve(ln)
	return nil
}

// serve adopts the listener and starts accepting
func (s *Server) serve(ln net.Listener) {
	s.listener = ln
	s.log.Infof("listening on %s", ln.Addr())
	go s.acceptLoop()
}

// Stop closes the listener and waits for the accept loop to exit. Connections
// already handed to the pool keep being served; draining them is the pool's
// shutdown job.
func (s *Server) Stop() {
	if atomic.LoadInt32(&s.started) == 0 {
		return
	}
	s.closeListener()
	<-s.done
}

// Done returns a channel closed when the accept loop has exited, whether
// through Stop or the accept limit.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Addr returns the bound listener address, or nil before Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Accepted returns how many connections the listener has accepted
func (s *Server) Accepted() int64 {
	return atomic.LoadInt64(&s.accepted)
}

// Dropped returns how many accepted connections were closed unserved because
// the pool refused them
func (s *Server) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

func (s *Server) closeListener() {
	s.closeOnce.Do(func() {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Warnf("failed to close listener: %v", err)
		}
	})
}

func (s *Server) acceptLoop() {
	defer close(s.done)

	strategy := backoff.NewExponential(5*time.Millisecond,
		backoff.WithMaxDelay(time.Second),
		backoff.WithJitter(backoff.EqualJitter))
	attempt := 0

	for {
		if s.cfg.MaxAccept > 0 && atomic.LoadInt64(&s.accepted) >= int64(s.cfg.MaxAccept) {
			s.log.Infof("accept limit of %d connections reached, shutting down listener", s.cfg.MaxAccept)
			s.closeListener()
			return
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			// treat everything else as transient; a dead listener
			// surfaces as net.ErrClosed once Stop closes it
			attempt++
			delay := strategy.NextDelay(attempt)
			s.log.Warnf("accept failed: %v, retrying in %v", err, delay)
			timer := s.clock.NewTimer(delay)
			<-timer.C
			continue
		}
		attempt = 0
		atomic.AddInt64(&s.accepted, 1)
		s.log.Debugf("accepted connection from %s", conn.RemoteAddr())

		c := conn
		if err := s.pool.SubmitFunc(func() { s.handler.Handle(c) }); err != nil {
			// the pool is shutting down; drop the connection instead of
			// crashing the acceptor
			atomic.AddInt64(&s.dropped, 1)
			s.log.Warnf("dropping connection from %s: %v", c.RemoteAddr(), err)
			c.Close()
		}
	}
}
