// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop httpconn.go (the "h2" branch of
// HTTPConnFunc.Call, which builds a *http2.Transport over a single-use
// dialer). Gated off here: see newConnection's Version2 case.
//

package httpcore

import (
	"context"
	"net"

	"golang.org/x/net/http2"
)

// newH2Client would construct an HTTP/2 client [ProtocolHandler]. It is
// never actually invoked: [newConnection] fatally asserts before reaching
// here whenever ALPN negotiates "h2" (see Version2 in version.go),
// matching original_source's handling of HTTP/2 as a connection version it
// only ever fails towards. It exists, typed against
// [golang.org/x/net/http2], to document the shape adding real HTTP/2
// support would take and to keep the dependency's import live.
func newH2Client(conn net.Conn) (ProtocolHandler, error) {
	_ = &http2.Transport{}
	return nil, newError("newH2Client", CodeUnsupportedProtocol)
}

// newH2Server mirrors [newH2Client] for the server role.
func newH2Server(conn net.Conn) (ProtocolHandler, error) {
	_ = &http2.Server{}
	return nil, newError("newH2Server", CodeUnsupportedProtocol)
}

// h2Engine is the unreachable [ProtocolHandler] shape for HTTP/2; its
// methods exist only to document the vtable HTTP/2 would need to fill in
// and are never constructed (see [newH2Client], [newH2Server]).
type h2Engine struct{}

func (e *h2Engine) OnChannelShutdown(err error) {}
func (e *h2Engine) Close(conn *Connection)      {}
func (e *h2Engine) IsOpen(conn *Connection) bool { return false }
func (e *h2Engine) UpdateWindow(conn *Connection, increment int) {}
func (e *h2Engine) NewClientRequestStream(ctx context.Context, conn *Connection, opts *RequestOptions) (*Stream, error) {
	return nil, newError("NewClientRequestStream", CodeUnsupportedProtocol)
}
func (e *h2Engine) NewServerRequestHandler(conn *Connection) error {
	return newError("NewServerRequestHandler", CodeUnsupportedProtocol)
}
func (e *h2Engine) StreamWriteOutgoingData(stream *Stream, buf []byte) (int, error) {
	return 0, newError("StreamWriteOutgoingData", CodeUnsupportedProtocol)
}
func (e *h2Engine) StreamReadIncomingData(stream *Stream, buf []byte) (int, error) {
	return 0, newError("StreamReadIncomingData", CodeUnsupportedProtocol)
}
