// SPDX-License-Identifier: GPL-3.0-or-later
//
// Ported from: original_source/source/connection.c
// (aws_http_server_new, aws_http_server_release, s_http_server_clean_up,
// s_server_bootstrap_on_accept_channel_setup,
// s_server_bootstrap_on_accept_channel_shutdown,
// s_server_bootstrap_on_server_listener_destroy).
//

package httpcore

import (
	"crypto/tls"
	"log/slog"
	"net"
	"sync"

	"github.com/bassosimone/runtimex"
)

// ServerOptions configures [NewServer].
type ServerOptions struct {
	// Network is the listener network; defaults to "tcp".
	Network string

	// Address is the listener address, e.g. ":8080".
	Address string

	// IsUsingTLS selects whether accepted connections are TLS-wrapped
	// using Config.TLSConfig.
	IsUsingTLS bool

	// Config supplies the TLS config, logger, and other ambient
	// settings. If nil, [NewConfig] is used.
	Config *Config

	// InitialWindowSize is passed through to the connection factory.
	InitialWindowSize int

	// OnIncomingConnection is invoked synchronously for every accepted
	// connection. It must call [*Connection.ConfigureServer] before
	// returning; if it doesn't, the connection is closed with
	// [CodeReactionRequired]. Required.
	OnIncomingConnection func(conn *Connection)
}

// Server listens for and dispatches incoming server connections.
//
// Construct with [NewServer]; release with [*Server.Release].
type Server struct {
	opts   *ServerOptions
	cfg    *Config
	logger SLogger

	listener net.Listener

	mu                  sync.Mutex
	isShuttingDown      bool
	channelToConnection map[*Channel]*Connection
}

// NewServer starts listening on opts.Address and returns a [*Server] that
// dispatches each accepted connection to opts.OnIncomingConnection.
//
// Fails with [CodeInvalidArgument] if opts, opts.Address, or
// opts.OnIncomingConnection is missing.
func NewServer(opts *ServerOptions) (*Server, error) {
	assertLibraryInitialized()

	if opts == nil || opts.Address == "" || opts.OnIncomingConnection == nil {
		return nil, newError("NewServer", CodeInvalidArgument)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = NewConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = DefaultSLogger()
	}

	network := opts.Network
	if network == "" {
		network = "tcp"
	}

	srv := &Server{
		opts:                opts,
		cfg:                 cfg,
		logger:              logger,
		channelToConnection: make(map[*Channel]*Connection),
	}

	// Lock held across listener creation, matching aws_http_server_new's
	// lock scope over the bootstrap's new_socket_listener call: nothing
	// can observe isShuttingDown or the connection map until the
	// listener itself exists.
	srv.mu.Lock()
	var (
		listener net.Listener
		err      error
	)
	if opts.IsUsingTLS {
		runtimex.Assert(cfg.TLSConfig != nil)
		listener, err = tls.Listen(network, opts.Address, cfg.TLSConfig)
	} else {
		listener, err = net.Listen(network, opts.Address)
	}
	srv.mu.Unlock()
	if err != nil {
		return nil, wrapError("NewServer", CodeConnectionClosed, err)
	}

	srv.listener = listener
	go srv.acceptLoop()
	return srv, nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) acceptLoop() {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			s.logger.Debug("acceptLoopDone", slog.Any("err", err))
			return
		}
		go s.onAccept(nc)
	}
}

func (s *Server) onAccept(nc net.Conn) {
	var alpn string
	if csp, ok := nc.(interface{ ConnectionState() tls.ConnectionState }); ok {
		alpn = csp.ConnectionState().NegotiatedProtocol
	}
	nc = observeConn(nc, s.cfg.ErrClassifier, s.logger, s.cfg.TimeNow)

	ch := NewChannel(nc, alpn)
	if s.opts.IsUsingTLS {
		slot := NewChannelSlot(ch)
		if err := ch.InsertSlotEnd(slot); err != nil {
			ch.Shutdown(err)
			return
		}
		slot.SetHandler(&tlsSlotHandler{negotiatedProtocol: alpn})
	}

	s.mu.Lock()
	if s.isShuttingDown {
		s.mu.Unlock()
		ch.Shutdown(newError("onAccept", CodeServerClosed))
		return
	}
	s.mu.Unlock()

	conn, err := newConnection(newConnectionOptions{
		Channel:           ch,
		Role:              RoleServer,
		IsUsingTLS:        s.opts.IsUsingTLS,
		InitialWindowSize: s.opts.InitialWindowSize,
		Logger:            s.logger,
		ErrClassifier:     s.cfg.ErrClassifier,
	})
	if err != nil {
		s.logger.Warn("serverConnectionFactoryFailed", slog.Any("err", err))
		ch.Shutdown(err)
		return
	}

	ch.SetOnShutdownComplete(func(shutdownErr error) {
		s.mu.Lock()
		_, wasTracked := s.channelToConnection[ch]
		delete(s.channelToConnection, ch)
		s.mu.Unlock()

		if wasTracked {
			if onShutdown := conn.serverData.OnShutdown; onShutdown != nil {
				onShutdown(conn, shutdownErr)
			}
		}
	})

	s.mu.Lock()
	if s.isShuttingDown {
		s.mu.Unlock()
		ch.Shutdown(newError("onAccept", CodeServerClosed))
		return
	}
	s.channelToConnection[ch] = conn
	s.mu.Unlock()

	s.opts.OnIncomingConnection(conn)

	if conn.serverData.OnIncomingRequest == nil {
		s.logger.Warn("onIncomingConnectionDidNotConfigureServer", slog.String("spanID", conn.SpanID))
		conn.Close()
		ch.Shutdown(newError("onAccept", CodeReactionRequired))
		return
	}

	if err := conn.vtable.NewServerRequestHandler(conn); err != nil {
		s.logger.Warn("newServerRequestHandlerFailed", slog.Any("err", err))
		ch.Shutdown(err)
	}
}

// Release idempotently shuts down every connection currently tracked by
// the server and stops accepting new ones. Safe to call more than once;
// only the first call has an effect.
func (s *Server) Release() {
	s.mu.Lock()
	if s.isShuttingDown {
		s.mu.Unlock()
		return
	}
	s.isShuttingDown = true

	// Channel.Shutdown only schedules work onto the channel's own
	// event-loop goroutine and returns immediately, so it's safe to call
	// while still holding s.mu: shutdown-complete callbacks (which
	// re-acquire s.mu) run later, asynchronously, never from inside this
	// call. Holding the lock across the whole iteration, matching
	// aws_http_server_release, keeps onAccept's racing registration from
	// ever adding a channel after this loop has already passed it by.
	for ch := range s.channelToConnection {
		ch.Shutdown(newError("Server.Release", CodeServerClosed))
	}
	s.mu.Unlock()

	// Destroying the listener happens outside the lock, matching
	// aws_http_server_release's ordering.
	s.listener.Close()
}
