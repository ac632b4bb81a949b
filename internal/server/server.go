package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KilimcininKorOglu/obaber/internal/codec"
	"github.com/KilimcininKorOglu/obaber/internal/config"
	"github.com/KilimcininKorOglu/obaber/internal/digester"
	"github.com/KilimcininKorOglu/obaber/internal/ldap"
	"github.com/KilimcininKorOglu/obaber/internal/logging"
	"github.com/KilimcininKorOglu/obaber/internal/metrics"
)

// Server errors
var (
	// ErrServerRunning is returned by Serve when the server already serves a listener
	ErrServerRunning = errors.New("server: already running")
	// ErrServerNotRunning is returned by Shutdown when the server is not serving
	ErrServerNotRunning = errors.New("server: not running")
)

// acceptRetryDelay is the pause after a failed Accept.
const acceptRetryDelay = 5 * time.Millisecond

// Server is the LDAP front end. The exported fields may be set before the
// first call to Serve; nil fields get defaults.
type Server struct {
	Config  *config.Config
	Logger  logging.Logger
	Handler *Handler
	Metrics *metrics.Metrics

	initOnce sync.Once
	codec    *codec.Codec

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Connection]struct{}
	done     chan struct{}
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewServer creates a server for cfg whose handler authenticates the
// configured root DN.
func NewServer(cfg *config.Config, logger logging.Logger, m *metrics.Metrics) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Server{
		Config:  cfg,
		Logger:  logger,
		Handler: NewDirectoryHandler(cfg.Directory),
		Metrics: m,
	}
}

// NewDirectoryHandler returns the default handler with binds checked
// against the root identity of dir.
func NewDirectoryHandler(dir config.DirectoryConfig) *Handler {
	h := NewHandler()
	h.SetBindHandler(CreateBindHandler(NewBindHandler(&BindConfig{
		AllowAnonymous: true,
		RootDN:         dir.RootDN,
		RootPassword:   dir.RootPassword,
	})))
	return h
}

func (s *Server) init() {
	s.initOnce.Do(func() {
		if s.Config == nil {
			s.Config = config.DefaultConfig()
		}
		if s.Logger == nil {
			s.Logger = logging.NewNop()
		}
		if s.Handler == nil {
			s.Handler = NewDirectoryHandler(s.Config.Directory)
		}
		opts := codec.Options{Decoder: s.Config.Codec.DecoderOptions()}
		s.codec = newCodec(opts, s.Config.Codec.Strict, digester.MultiMonitor{
			digester.LogMonitor{Logger: s.Logger},
			s.Metrics.Monitor(),
		})
		s.conns = make(map[*Connection]struct{})
		if !s.Config.Codec.Strict {
			s.Logger.Warn("codec strict mode is off; messages that fail to decode are dropped without a response")
		}
	})
}

// newCodec returns a codec over the LDAP rules.
func newCodec(opts codec.Options, strict bool, monitor digester.Monitor) *codec.Codec {
	opts.AbortOnRuleFailure = strict
	opts.Monitor = monitor
	return codec.New(ldap.NewRegistry(), opts)
}

// ListenAndServe listens on the configured address and serves until ctx
// is done or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.init()
	ln, err := net.Listen("tcp", s.Config.Server.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Shutdown is called.
// It returns nil after a shutdown and takes ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.init()

	s.mu.Lock()
	if s.running.Load() {
		s.mu.Unlock()
		ln.Close()
		return ErrServerRunning
	}
	s.listener = ln
	s.done = make(chan struct{})
	done := s.done
	s.running.Store(true)
	s.mu.Unlock()

	s.Logger.Info("LDAP server started",
		"address", ln.Addr().String())

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Config.Server.WriteTimeout+time.Second)
			defer cancel()
			_ = s.Shutdown(shutdownCtx)
		case <-done:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-done:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.Logger.Warn("accept error",
				"error", err.Error())
			time.Sleep(acceptRetryDelay)
			continue
		}

		c, ok := s.register(conn)
		if !ok {
			continue
		}
		go s.handleConnection(c)
	}
}

// register reserves a slot for conn under the connection limit. A rejected
// connection is sent a Busy notice and closed.
func (s *Server) register(conn net.Conn) (*Connection, bool) {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		conn.Close()
		return nil, false
	}
	if limit := s.Config.Server.MaxConnections; limit > 0 && len(s.conns) >= limit {
		s.mu.Unlock()
		s.Metrics.ConnectionRejected()
		s.Logger.Warn("connection limit reached",
			"client", conn.RemoteAddr().String(),
			"max_connections", limit)
		s.reject(conn)
		return nil, false
	}
	c := NewConnection(conn, s)
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()
	return c, true
}

// reject tells the client the server is busy and closes conn.
func (s *Server) reject(conn net.Conn) {
	defer conn.Close()
	data, err := ldap.NewNoticeOfDisconnection(ldap.ResultBusy, "too many connections").Encode()
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, _ = conn.Write(data)
}

func (s *Server) handleConnection(c *Connection) {
	defer s.wg.Done()

	s.Metrics.ConnectionOpened()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		s.Metrics.ConnectionClosed(time.Since(c.startTime))
	}()

	c.Handle()
}

// Shutdown stops accepting connections, sends every open connection a
// Notice of Disconnection, and waits for their goroutines until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		return ErrServerNotRunning
	}
	s.running.Store(false)
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	conns := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.disconnect(ldap.ResultUnavailable, "server shutting down")
		c.Close()
	}

	waitCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		s.Logger.Info("LDAP server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the address of the active listener, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveConnections returns the number of open client connections.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// SetLogLevel changes the server log level when the logger supports it.
func (s *Server) SetLogLevel(level logging.Level) {
	if ls, ok := s.Logger.(logging.LevelSetter); ok {
		ls.SetLevel(level)
	}
}
