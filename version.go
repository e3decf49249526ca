// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/source/connection.c (s_connection_new, ALPN mapping)
//

package httpcore

import "log/slog"

// Version is the negotiated HTTP protocol version of a [Connection].
type Version int

const (
	// VersionUnknown is the invalid zero value.
	VersionUnknown Version = iota

	// Version1_0 is HTTP/1.0.
	Version1_0

	// Version1_1 is HTTP/1.1.
	Version1_1

	// Version2 is HTTP/2. The connection factory never actually
	// constructs an engine for this version yet; see [ProtocolHandler].
	Version2
)

// String implements [fmt.Stringer].
func (v Version) String() string {
	switch v {
	case Version1_0:
		return "HTTP/1.0"
	case Version1_1:
		return "HTTP/1.1"
	case Version2:
		return "HTTP/2"
	default:
		return "HTTP/unknown"
	}
}

const (
	alpnProtocolHTTP11 = "http/1.1"
	alpnProtocolHTTP2  = "h2"
)

// ALPNToVersion maps an ALPN-negotiated protocol identifier to an HTTP
// version. An absent ALPN selection (proto == "") and any unrecognized,
// non-empty protocol both default to HTTP/1.1; the latter case logs a
// warning through logger.
func ALPNToVersion(proto string, logger SLogger) Version {
	switch proto {
	case "", alpnProtocolHTTP11:
		return Version1_1
	case alpnProtocolHTTP2:
		return Version2
	default:
		logger.Warn(
			"unrecognizedALPNProtocol",
			slog.String("alpnProtocol", proto),
		)
		return Version1_1
	}
}
