// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop connect.go (ConnectFunc/Dialer) and tls.go
// (TLSHandshakeFunc/TLSEngine/TLSConn), and
// original_source/source/connection.c (aws_http_client_connect_internal's
// dispatch through the system bootstrap's new_socket_channel /
// new_tls_socket_channel).
//

package httpcore

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"net"

	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
)

// Dialer abstracts [*net.Dialer.DialContext]. Swapping it out (see
// [Config.Dialer]) is how tests substitute an in-memory transport.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// SystemVTable is a process-wide, unsynchronized-by-design override point
// for how this package establishes the underlying transport of a client
// connection attempt. It mirrors
// aws_http_connection_set_system_vtable: callers are expected to set it
// once, at process start or in test setup, before any connection attempt
// races with the assignment.
type SystemVTable struct {
	// NewSocketChannel establishes a plaintext [*Channel].
	NewSocketChannel func(ctx context.Context, cfg *Config, network, address string, logger SLogger) (*Channel, error)

	// NewTLSSocketChannel establishes a [*Channel] over a freshly
	// TLS-handshaked connection, with a TLS slot inserted so the
	// subsequent connection slot can read the negotiated ALPN protocol.
	NewTLSSocketChannel func(ctx context.Context, cfg *Config, network, address string, logger SLogger) (*Channel, error)
}

var systemVTable = SystemVTable{
	NewSocketChannel:    defaultNewSocketChannel,
	NewTLSSocketChannel: defaultNewTLSSocketChannel,
}

// SetSystemVTable overrides the package-wide [SystemVTable]. Not
// synchronized: call it before any connection attempt can race with it,
// typically from an init function or from test setup.
func SetSystemVTable(vtable SystemVTable) {
	systemVTable = vtable
}

// tlsSlotHandler is bound to the slot inserted immediately upstream of a
// connection's own slot on a TLS channel. It exists solely so
// [newConnection] can read the negotiated ALPN protocol off the slot
// pipeline via [protocolReporter], rather than reaching past the slot
// abstraction into the channel directly.
type tlsSlotHandler struct {
	negotiatedProtocol string
}

var _ ChannelHandler = &tlsSlotHandler{}
var _ protocolReporter = &tlsSlotHandler{}

func (h *tlsSlotHandler) OnChannelShutdown(err error) {}
func (h *tlsSlotHandler) Protocol() string            { return h.negotiatedProtocol }

func defaultNewSocketChannel(ctx context.Context, cfg *Config, network, address string, logger SLogger) (*Channel, error) {
	conn, err := dial(ctx, cfg, network, address, logger)
	if err != nil {
		return nil, err
	}
	conn = observeConn(conn, cfg.ErrClassifier, logger, cfg.TimeNow)
	return NewChannel(conn, ""), nil
}

func defaultNewTLSSocketChannel(ctx context.Context, cfg *Config, network, address string, logger SLogger) (*Channel, error) {
	conn, err := dial(ctx, cfg, network, address, logger)
	if err != nil {
		return nil, err
	}
	conn = observeConn(conn, cfg.ErrClassifier, logger, cfg.TimeNow)
	tlsConn, err := tlsHandshake(ctx, cfg, conn, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	alpn := tlsConn.ConnectionState().NegotiatedProtocol
	ch := NewChannel(tlsConn, alpn)
	slot := NewChannelSlot(ch)
	if err := ch.InsertSlotEnd(slot); err != nil {
		ch.Shutdown(err)
		return nil, err
	}
	slot.SetHandler(&tlsSlotHandler{negotiatedProtocol: alpn})
	return ch, nil
}

func dial(ctx context.Context, cfg *Config, network, address string, logger SLogger) (net.Conn, error) {
	t0 := cfg.TimeNow()
	deadline, _ := ctx.Deadline()
	logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)
	conn, err := cfg.Dialer.DialContext(ctx, network, address)
	logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", cfg.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", cfg.TimeNow()),
	)
	if err != nil {
		return nil, wrapError("dial", CodeConnectionClosed, err)
	}
	return conn, nil
}

// tlsConn is the minimal surface this package needs from a handshaked TLS
// connection; satisfied by [*tls.Conn].
type tlsConn interface {
	ConnectionState() tls.ConnectionState
	HandshakeContext(ctx context.Context) error
	net.Conn
}

func tlsHandshake(ctx context.Context, cfg *Config, conn net.Conn, logger SLogger) (tlsConn, error) {
	runtimex.Assert(cfg.TLSConfig != nil)
	config := cfg.TLSConfig.Clone()
	config.Time = cfg.TimeNow

	tconn := tls.Client(conn, config)

	t0 := cfg.TimeNow()
	deadline, _ := ctx.Deadline()
	logger.Info(
		"tlsHandshakeStart",
		slog.Time("deadline", deadline),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t", t0),
		slog.Any("tlsOfferedProtocols", config.NextProtos),
		slog.String("tlsServerName", config.ServerName),
		slog.Bool("tlsSkipVerify", config.InsecureSkipVerify),
	)
	err := tconn.HandshakeContext(ctx)
	state := tconn.ConnectionState()
	logger.Info(
		"tlsHandshakeDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", cfg.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", cfg.TimeNow()),
		slog.String("tlsCipherSuite", tls.CipherSuiteName(state.CipherSuite)),
		slog.String("tlsNegotiatedProtocol", state.NegotiatedProtocol),
		slog.Any("tlsOfferedProtocols", config.NextProtos),
		slog.Any("tlsPeerCerts", peerCerts(state, err)),
		slog.String("tlsServerName", config.ServerName),
		slog.Bool("tlsSkipVerify", config.InsecureSkipVerify),
		slog.String("tlsVersion", tls.VersionName(state.Version)),
	)
	if err != nil {
		return nil, wrapError("tlsHandshake", CodeConnectionClosed, err)
	}
	return tconn, nil
}

func peerCerts(state tls.ConnectionState, err error) (out [][]byte) {
	out = [][]byte{}

	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		out = append(out, hostnameErr.Certificate.Raw)
		return
	}
	var authorityErr x509.UnknownAuthorityError
	if errors.As(err, &authorityErr) {
		out = append(out, authorityErr.Cert.Raw)
		return
	}
	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) {
		out = append(out, invalidErr.Cert.Raw)
		return
	}
	for _, cert := range state.PeerCertificates {
		out = append(out, cert.Raw)
	}
	return
}
