// SPDX-License-Identifier: GPL-3.0-or-later
//
// Ported from: original_source/source/connection.c
// (aws_http_client_connect_internal, s_client_bootstrap_on_channel_setup,
// s_client_bootstrap_on_channel_shutdown).
//

package httpcore

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
)

// ClientConnectOptions configures [ClientConnect].
type ClientConnectOptions struct {
	// Network is the transport network to dial; defaults to "tcp".
	Network string

	// HostName is the remote host to connect to.
	HostName string

	// Port is the remote port to connect to.
	Port uint16

	// Address overrides the dialed address (normally
	// net.JoinHostPort(HostName, Port)); mainly useful for tests that
	// dial a loopback listener on a different host than HostName.
	Address string

	// IsUsingTLS selects whether to TLS-handshake before constructing the
	// connection.
	IsUsingTLS bool

	// Config supplies the dialer, TLS config, logger, and other ambient
	// settings. If nil, [NewConfig] is used.
	Config *Config

	// InitialWindowSize is passed through to the connection factory.
	InitialWindowSize int

	// UserData is attached to the resulting [*Connection] on success.
	UserData any

	// OnSetup is invoked exactly once, with either a usable, open
	// connection and a nil error, or a nil connection and a non-nil
	// error. Required.
	OnSetup func(conn *Connection, err error)

	// OnShutdown is invoked at most once, after OnSetup has fired with a
	// non-nil connection, when that connection's channel finishes
	// shutting down.
	OnShutdown func(conn *Connection, err error)
}

// clientBootstrapRecord tracks whether OnSetup has already fired, routing
// a subsequent channel shutdown to either OnSetup (if the channel shut
// down before OnSetup fired, e.g. because the connection factory failed
// on an already-established channel) or OnShutdown.
type clientBootstrapRecord struct {
	onSetup    func(conn *Connection, err error)
	onShutdown func(conn *Connection, err error)
	setupDone  atomic.Bool
	conn       *Connection
}

func (r *clientBootstrapRecord) invokeSetup(conn *Connection, err error) {
	if !r.setupDone.CompareAndSwap(false, true) {
		return
	}
	r.conn = conn
	if r.onSetup != nil {
		r.onSetup(conn, err)
	}
}

func (r *clientBootstrapRecord) onChannelShutdownComplete(err error) {
	if !r.setupDone.Load() {
		// The channel shut down before OnSetup fired (e.g. the
		// connection factory failed after the dial and handshake had
		// produced a channel; a failed dial or handshake never gets a
		// channel and reports to OnSetup directly): route to OnSetup,
		// coercing a nil error to unknown since a shutdown with no
		// recorded cause is still a failure to report.
		if err == nil {
			err = newError("ClientConnect", CodeUnknown)
		}
		r.invokeSetup(nil, err)
		return
	}
	if r.onShutdown != nil {
		r.onShutdown(r.conn, err)
	}
}

// ClientConnect asynchronously establishes a client connection. It never
// blocks: the dial, optional TLS handshake, and connection construction
// all happen on a background goroutine, with the outcome delivered to
// opts.OnSetup.
//
// Fails synchronously with [CodeInvalidArgument] if opts, opts.HostName,
// or opts.OnSetup is missing.
func ClientConnect(ctx context.Context, opts *ClientConnectOptions) error {
	assertLibraryInitialized()

	if opts == nil || opts.HostName == "" || opts.OnSetup == nil {
		return newError("ClientConnect", CodeInvalidArgument)
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
	address := opts.Address
	if address == "" {
		address = net.JoinHostPort(opts.HostName, strconv.Itoa(int(opts.Port)))
	}

	record := &clientBootstrapRecord{onSetup: opts.OnSetup, onShutdown: opts.OnShutdown}

	go func() {
		var (
			ch  *Channel
			err error
		)
		if opts.IsUsingTLS {
			ch, err = systemVTable.NewTLSSocketChannel(ctx, cfg, network, address, logger)
		} else {
			ch, err = systemVTable.NewSocketChannel(ctx, cfg, network, address, logger)
		}
		if err != nil {
			record.invokeSetup(nil, err)
			return
		}

		ch.SetOnShutdownComplete(record.onChannelShutdownComplete)

		conn, err := newConnection(newConnectionOptions{
			Channel:           ch,
			Role:              RoleClient,
			IsUsingTLS:        opts.IsUsingTLS,
			InitialWindowSize: opts.InitialWindowSize,
			Logger:            logger,
			ErrClassifier:     cfg.ErrClassifier,
		})
		if err != nil {
			logger.Warn("clientConnectionFactoryFailed", slog.Any("err", err))
			ch.Shutdown(err)
			return
		}

		conn.SetUserData(opts.UserData)
		record.invokeSetup(conn, nil)
	}()

	return nil
}
