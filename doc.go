// SPDX-License-Identifier: GPL-3.0-or-later

// Package httpcore provides the connection core of an asynchronous,
// event-driven HTTP client/server library: a protocol-agnostic connection
// lifecycle and dispatch layer sitting on top of a generic byte-oriented
// [Channel] abstraction.
//
// # Core Abstraction
//
// Callers never talk to a version-specific engine directly. Instead they
// get back an opaque [*Connection]: a role-tagged (client or server),
// version-tagged (HTTP/1.1 today, HTTP/2 planned but gated, see
// [ProtocolHandler]) handle that dispatches every operation through a small
// vtable. The hard engineering lives in three places:
//
//   - Version negotiation and connection construction (newConnection):
//     turning a freshly set-up [Channel] into a typed [*Connection] and
//     splicing a protocol engine into its slot pipeline.
//   - Connection and server lifecycle management: reference-counted
//     connections ([*Connection.Acquire], [*Connection.Release]), two-phase
//     graceful server shutdown ([*Server.Release]), and the callback
//     ordering contract documented on [ClientConnect] and [NewServer].
//   - The protocol-agnostic dispatch surface ([ProtocolHandler]) that every
//     version-specific engine implements.
//
// # Available Primitives
//
// Connection establishment:
//   - [ClientConnect]: asynchronously dials a host/port and hands back a
//     client [*Connection] via callback.
//   - [NewServer] / [*Server.Release]: accepts inbound connections on a
//     listening socket and hands each one to an on-incoming-connection
//     callback for configuration.
//   - [Channel]: the ordered slot pipeline every accepted or dialed
//     connection lives inside.
//
// HTTP:
//   - [Connection]: the abstract, role- and version-tagged handle described
//     above.
//   - [Stream]: an in-flight request/response exchange created via
//     [*Connection.NewClientRequestStream] or dispatched to
//     [ServerData.OnIncomingRequest] once [*Connection.ConfigureServer] has
//     run.
//
// Composition utilities: none. Unlike a dial pipeline, the connection
// core's control flow is callback-driven and branches on shared, lock-
// protected state (the server's channel-to-connection registry); it does
// not factor into a chain of single-input/single-output stages, so this
// package does not provide one.
//
// # Connection Lifecycle
//
// A [*Connection] is reference counted. [*Connection.Acquire] increments
// the count; [*Connection.Release] decrements it and, on the 1→0
// transition, initiates shutdown of the underlying [Channel] and releases
// the core's own hold on it. The channel stops its event-loop goroutine
// later, when its own hold-count reaches zero.
//
// # Observability
//
// All primitives support structured logging via [SLogger] (compatible with
// [log/slog]). By default, logging is disabled. Set [Config.Logger] to a
// custom [*slog.Logger] to enable logging. Error classification is
// configurable via [ErrClassifier]; by default transport errors are
// classified with github.com/bassosimone/errclass and library-raised
// errors classify themselves via [Code.Classify].
//
// Use [NewSpanID] to generate a unique, time-ordered identifier for each
// connection or stream, then attach it to the logger with
// [*slog.Logger.With]. All log entries for a connection's lifetime
// (accept/dial, configure, requests, shutdown) share the same spanID.
//
// # Concurrency
//
// A [Channel] is bound to a single event-loop goroutine; all of its
// handler callbacks serialize on that goroutine. Public operations on
// [*Connection] and [*Server] are safe for concurrent use from any
// goroutine. The only other shared mutable state in this package is the
// server's channel-to-connection registry, protected by a single mutex.
//
// # Design Boundaries
//
// This package intentionally implements only the connection core. The
// following are out of scope:
//
//   - DNS resolution and proxy support (callers supply a resolved endpoint
//     or a pre-established connection).
//   - A connection-manager / pooling layer that multiplexes across
//     connections.
//   - A byte-optimal HTTP/1.1 or HTTP/2 wire codec; the engines in this
//     package exist so THE CORE is runnable end to end, not to compete with
//     a dedicated parser.
//   - A CLI.
package httpcore
