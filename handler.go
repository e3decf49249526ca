// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/source/connection.c call sites of
// connection->vtable->* (struct aws_http_connection_vtable).
//

package httpcore

import "context"

// RequestOptions describes an outgoing (client) or a dispatched (server)
// HTTP request.
type RequestOptions struct {
	Method string
	Path   string
	Header map[string][]string
	Host   string

	// Body, if non-nil, is sent as the whole request body up front. Leave
	// it nil and set Streaming instead to supply the body incrementally
	// via [Stream.Write] after the stream is returned.
	Body []byte

	// Streaming requests that [*Connection.NewClientRequestStream] return
	// the [*Stream] before the round trip completes, so the caller can
	// push the outgoing request body incrementally via [Stream.Write]
	// (e.g. a chunked upload) instead of supplying it all via Body. Has no
	// effect if Body is also set.
	Streaming bool
}

// ProtocolHandler is the capability set every version-specific engine
// (currently only HTTP/1.1, see h1connection.go) must implement. It is the
// vtable a [*Connection] dispatches every operation through.
//
// Every [ProtocolHandler] also embeds [ChannelHandler] so the same value
// plugs directly into the connection's [Slot].
type ProtocolHandler interface {
	ChannelHandler

	// Close idempotently initiates protocol-level close of conn.
	Close(conn *Connection)

	// IsOpen reports whether conn is still open.
	IsOpen(conn *Connection) bool

	// UpdateWindow adjusts conn's receive-flow-control window by the
	// given non-negative increment. A no-op for versions without flow
	// control.
	UpdateWindow(conn *Connection, increment int)

	// NewClientRequestStream issues opts as a new request on conn and
	// returns the resulting [*Stream]. Client connections only.
	NewClientRequestStream(ctx context.Context, conn *Connection, opts *RequestOptions) (*Stream, error)

	// NewServerRequestHandler arranges for conn to read and dispatch
	// incoming requests to its configured on_incoming_request callback.
	// Server connections only.
	NewServerRequestHandler(conn *Connection) error

	// StreamWriteOutgoingData writes buf to stream's outgoing body: the
	// request body for a client stream opened with
	// [RequestOptions.Streaming], or the response body for a server
	// stream after [Stream.Respond] was called with [StreamResponseBody].
	// Fails with [CodeMissingBodyStream] if stream has no outgoing body to
	// write to.
	StreamWriteOutgoingData(stream *Stream, buf []byte) (int, error)

	// StreamReadIncomingData reads from stream's incoming body: the
	// response body for a client stream, or the request body for a
	// server stream. Fails with [CodeDataNotAvailable] if stream has no
	// incoming body.
	StreamReadIncomingData(stream *Stream, buf []byte) (int, error)
}
