// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop config.go
//

package httpcore

import (
	"crypto/tls"
	"net"
	"time"
)

// Config holds common configuration for httpcore operations.
//
// Pass this to [NewServer] and [ClientConnect] to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by the default [SystemVTable] to establish the
	// underlying TCP connection for a client [ClientConnect] attempt.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// TLSConfig is cloned and used by the default [SystemVTable] when a
	// client connection uses TLS, and is passed as is to [tls.Listen] by
	// [NewServer] when [ServerOptions.IsUsingTLS] is set. Its NextProtos controls ALPN
	// offering; since HTTP/2 is not actually supported yet (see
	// [ProtocolHandler], version.go), it should be left as ["http/1.1"]
	// or empty.
	//
	// Set by [NewConfig] to nil (TLS callers must supply one explicitly).
	TLSConfig *tls.Config

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewConfig] to [DefaultSLogger].
	Logger SLogger

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// InitialWindowSize is a receive-flow-control window size, meaningful
	// only for versions that have flow control (currently none). Neither
	// [ClientConnect] nor [NewServer] reads it: they pass
	// [ClientConnectOptions.InitialWindowSize] and
	// [ServerOptions.InitialWindowSize] to the connection factory instead.
	//
	// Set by [NewConfig] to 0.
	InitialWindowSize int
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: DefaultErrClassifier,
		Logger:        DefaultSLogger(),
		TimeNow:       time.Now,
	}
}
