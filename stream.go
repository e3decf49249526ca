// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop httpconn.go (RoundTrip) and httpbody.go
// (lazy body-stream logging), generalized into the minimal surface implied
// by ProtocolHandler's stream_write_outgoing_data/stream_read_incoming_data.
//

package httpcore

import (
	"io"
	"net/http"
)

// Stream represents an in-flight HTTP request/response exchange, created
// via [*Connection.NewClientRequestStream] or handed to
// [ServerData.OnIncomingRequest].
//
// The caller is responsible for calling [Stream.Close] when done.
type Stream struct {
	// StatusCode is the response status code. Zero until a response has
	// been received (client streams) or until the handler has written
	// one (server streams, informational only).
	StatusCode int

	// Header is the request or response header block, depending on role.
	Header http.Header

	// Method, Path, and Host describe the request. Populated on both
	// client streams (echoing the [RequestOptions] that created them) and
	// server streams (parsed off the wire).
	Method string
	Path   string
	Host   string

	body    io.ReadCloser
	writer  io.WriteCloser
	conn    *Connection
	respond func(statusCode int, header http.Header, body io.Reader) error
}

// StreamResponseBody, passed to [Stream.Respond] as the body argument,
// defers the response body to incremental [Stream.Write] calls instead of
// sending a fixed body (or, for a nil body, an empty one) immediately.
var StreamResponseBody io.Reader = streamResponseBodySentinel{}

type streamResponseBodySentinel struct{}

func (streamResponseBodySentinel) Read([]byte) (int, error) { return 0, io.EOF }

// Respond writes statusCode, header, and body as the response to a server
// stream. A nil body sends an empty response body; pass
// [StreamResponseBody] to instead push the body incrementally via
// [Stream.Write] after Respond returns. Fails with [CodeInvalidState] on a
// client stream, and with [CodeStreamClosed] if already responded to.
func (s *Stream) Respond(statusCode int, header http.Header, body io.Reader) error {
	if s.respond == nil {
		return newError("Stream.Respond", CodeInvalidState)
	}
	return s.respond(statusCode, header, body)
}

// Read dispatches to [ProtocolHandler.StreamReadIncomingData]: it reads
// from the stream's incoming body (the response body for a client stream,
// the request body for a server stream).
func (s *Stream) Read(buf []byte) (int, error) {
	return s.conn.vtable.StreamReadIncomingData(s, buf)
}

// Write dispatches to [ProtocolHandler.StreamWriteOutgoingData]: it writes
// to the stream's outgoing body (the request body for a client stream
// opened with [RequestOptions.Streaming], the response body for a server
// stream after [Stream.Respond] was called with [StreamResponseBody]).
func (s *Stream) Write(buf []byte) (int, error) {
	return s.conn.vtable.StreamWriteOutgoingData(s, buf)
}

// Close closes the stream's outgoing writer and incoming body, if any.
func (s *Stream) Close() error {
	var err error
	if s.writer != nil {
		err = s.writer.Close()
	}
	if s.body != nil {
		if berr := s.body.Close(); err == nil {
			err = berr
		}
	}
	return err
}

// Connection returns the [*Connection] this stream belongs to.
func (s *Stream) Connection() *Connection {
	return s.conn
}
