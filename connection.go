// SPDX-License-Identifier: GPL-3.0-or-later
//
// Ported from: original_source/source/connection.c
// (struct aws_http_connection and aws_http_connection_* functions)
//

package httpcore

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/bassosimone/runtimex"
)

// Role is the fixed tag that selects which of [ClientData] / [ServerData] a
// [*Connection] carries.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// ClientData holds the client-only callbacks and state of a [*Connection].
// Empty for now — client connections carry no role-specific state beyond
// what [*Connection] itself tracks — but kept as a distinct type alongside
// [ServerData] for symmetry and forward compatibility.
type ClientData struct{}

// ServerData holds the server-only callbacks and state of a [*Connection].
//
// A server connection is "configured" iff OnIncomingRequest is set; see
// [*Connection.ConfigureServer].
type ServerData struct {
	OnIncomingRequest func(stream *Stream)
	OnShutdown        func(conn *Connection, err error)
}

// Connection is the central, abstract handle this package hands back to
// callers. It is role-tagged (client or server) and version-tagged
// (HTTP/1.0, HTTP/1.1, or HTTP/2 — though HTTP/2 is never actually
// constructed yet), and dispatches every operation through its bound
// [ProtocolHandler].
type Connection struct {
	role    Role
	version Version

	channel     *Channel
	channelSlot *Slot
	vtable      ProtocolHandler

	refcount atomic.Int32

	userData any

	clientData *ClientData
	serverData *ServerData

	Logger        SLogger
	ErrClassifier ErrClassifier
	SpanID        string
}

// protocolReporter is implemented by the handler of the slot immediately
// upstream of a connection's slot when the channel uses TLS: it reports
// the ALPN protocol negotiated during the handshake.
type protocolReporter interface {
	Protocol() string
}

// newConnectionOptions bundles newConnection's inputs, mirroring
// struct-of-options used throughout this package's public API.
type newConnectionOptions struct {
	Channel           *Channel
	Role              Role
	IsUsingTLS        bool
	InitialWindowSize int
	Logger            SLogger
	ErrClassifier     ErrClassifier
}

// newConnection determines the HTTP version, constructs the role- and
// version-specific engine, and splices it into the channel's pipeline.
//
// On any failure after slot allocation, the partially constructed slot is
// removed (and the handler destroyed, if constructed but not yet bound)
// before returning the error; no user callback is invoked from here — that
// is the caller's responsibility (see client.go, server.go).
func newConnection(opts newConnectionOptions) (*Connection, error) {
	logger := opts.Logger
	if logger == nil {
		logger = DefaultSLogger()
	}

	slot := NewChannelSlot(opts.Channel)
	if err := opts.Channel.InsertSlotEnd(slot); err != nil {
		logger.Error("newConnection: failed to insert slot", slog.Any("err", err))
		return nil, wrapError("newConnection", CodeUnknown, err)
	}

	version := Version1_1
	if opts.IsUsingTLS {
		left := slot.adjLeft
		if left == nil || left.handler == nil {
			opts.Channel.RemoveSlot(slot)
			return nil, newError("newConnection", CodeInvalidState)
		}
		reporter, ok := left.handler.(protocolReporter)
		if !ok {
			opts.Channel.RemoveSlot(slot)
			return nil, newError("newConnection", CodeInvalidState)
		}
		version = ALPNToVersion(reporter.Protocol(), logger)
	}

	var (
		vtable ProtocolHandler
		err    error
	)
	switch version {
	case Version1_1, Version1_0:
		if opts.Role == RoleServer {
			vtable, err = newH1Server(opts.InitialWindowSize)
		} else {
			vtable, err = newH1Client(opts.InitialWindowSize)
		}
	case Version2:
		// HTTP/2 construction paths exist (see h2connection.go) but are
		// gated: declared not yet supported, matching original_source's
		// "lol nice try" fatal assertion.
		runtimex.Assert(false)
		return nil, newError("newConnection", CodeUnsupportedProtocol)
	default:
		err = newError("newConnection", CodeUnsupportedProtocol)
	}

	if err != nil || vtable == nil {
		opts.Channel.RemoveSlot(slot)
		return nil, wrapError("newConnection", CodeUnsupportedProtocol, err)
	}

	slot.SetHandler(vtable)

	conn := &Connection{
		role:          opts.Role,
		version:       version,
		channel:       opts.Channel,
		channelSlot:   slot,
		vtable:        vtable,
		Logger:        logger,
		ErrClassifier: opts.ErrClassifier,
		SpanID:        NewSpanID(),
	}
	if opts.Role == RoleServer {
		conn.serverData = &ServerData{}
	} else {
		conn.clientData = &ClientData{}
	}
	conn.refcount.Store(1)

	opts.Channel.AcquireHold()

	return conn, nil
}

// Acquire atomically increments the connection's refcount.
func (c *Connection) Acquire() {
	c.refcount.Add(1)
}

// Release atomically decrements the connection's refcount. Iff the
// pre-decrement value was 1, it initiates channel shutdown (with a nil/
// success error — the channel may already be shutting down, which is
// harmless) and releases this connection's hold on the channel. Physical
// destruction happens later, when the channel's own hold-count reaches
// zero.
func (c *Connection) Release() {
	prev := c.refcount.Add(-1) + 1
	runtimex.Assert(prev != 0)
	if prev == 1 {
		c.Logger.Debug("connectionRefcountZero", slog.String("spanID", c.SpanID))
		c.channel.Shutdown(nil)
		c.channel.ReleaseHold()
	}
}

// Close dispatches to the connection's [ProtocolHandler]. Safe to call
// multiple times.
func (c *Connection) Close() {
	c.vtable.Close(c)
}

// CloseOnContextDone arranges for the connection to be closed when ctx is
// done (cancelled or deadline exceeded), giving responsive cleanup on
// external cancellation (e.g. SIGINT via signal.NotifyContext) instead of
// waiting for a per-operation timeout to notice. Call the returned stop
// function once the caller no longer needs the watcher — e.g. right after
// a normal [*Connection.Release] — so its goroutine does not linger.
//
// Suited to pipelines where the context lifetime matches the intended
// connection lifetime (CLI tools, one-shot fetches). Do not use it for a
// connection that will be returned to a pool or otherwise outlive the
// context that created it.
func (c *Connection) CloseOnContextDone(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, c.Close)
}

// IsOpen dispatches to the connection's [ProtocolHandler].
func (c *Connection) IsOpen() bool {
	return c.vtable.IsOpen(c)
}

// IsClient reports whether this is a client connection.
func (c *Connection) IsClient() bool {
	return c.clientData != nil
}

// IsServer reports whether this is a server connection.
func (c *Connection) IsServer() bool {
	return c.serverData != nil
}

// GetChannel returns the channel underlying this connection.
func (c *Connection) GetChannel() *Channel {
	return c.channel
}

// UpdateWindow dispatches to the connection's [ProtocolHandler].
func (c *Connection) UpdateWindow(increment int) {
	c.vtable.UpdateWindow(c, increment)
}

// GetVersion returns the connection's immutable negotiated HTTP version.
func (c *Connection) GetVersion() Version {
	return c.version
}

// UserData returns the opaque owner-supplied value set via
// [*Connection.SetUserData] or [*Connection.ConfigureServer].
func (c *Connection) UserData() any {
	return c.userData
}

// SetUserData sets the opaque owner-supplied value.
func (c *Connection) SetUserData(v any) {
	c.userData = v
}

// ClientData returns this connection's client role data, or nil if this is
// a server connection.
func (c *Connection) ClientData() *ClientData {
	return c.clientData
}

// ServerData returns this connection's server role data, or nil if this is
// a client connection.
func (c *Connection) ServerData() *ServerData {
	return c.serverData
}

// ConfigureServer installs onIncomingRequest and onShutdown on a server
// connection, and must be called synchronously from within the server's
// OnIncomingConnection callback (see [NewServer]); failure to do so is
// detected there and closes the connection.
//
// Fails with [CodeInvalidArgument] if onIncomingRequest is nil,
// [CodeInvalidState] if this is a client connection, and
// [CodeInvalidState] if the connection is already configured.
func (c *Connection) ConfigureServer(userData any, onIncomingRequest func(*Stream), onShutdown func(*Connection, error)) error {
	if onIncomingRequest == nil {
		return newError("ConfigureServer", CodeInvalidArgument)
	}
	if c.serverData == nil {
		c.Logger.Warn("ConfigureServer called on client connection")
		return newError("ConfigureServer", CodeInvalidState)
	}
	if c.serverData.OnIncomingRequest != nil {
		c.Logger.Warn("ConfigureServer called on already-configured connection")
		return newError("ConfigureServer", CodeInvalidState)
	}

	c.userData = userData
	c.serverData.OnIncomingRequest = onIncomingRequest
	c.serverData.OnShutdown = onShutdown
	return nil
}

// NewClientRequestStream issues opts as a new request on this connection.
// Fails with [CodeInvalidState] if this is a server connection.
func (c *Connection) NewClientRequestStream(ctx context.Context, opts *RequestOptions) (*Stream, error) {
	if c.clientData == nil {
		return nil, newError("NewClientRequestStream", CodeInvalidState)
	}
	return c.vtable.NewClientRequestStream(ctx, c, opts)
}
