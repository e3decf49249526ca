// SPDX-License-Identifier: GPL-3.0-or-later
//
// Exercises the full client-dial / server-accept / HTTP/1.1 request path
// end to end over a real loopback TCP listener, including a server that
// synthesises its own listening channel and a client that dials it.
//

package httpcore

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientServerRoundTrip(t *testing.T) {
	requestReceived := make(chan *Stream, 1)

	srv, err := NewServer(&ServerOptions{
		Address: "127.0.0.1:0",
		OnIncomingConnection: func(conn *Connection) {
			err := conn.ConfigureServer(nil, func(stream *Stream) {
				requestReceived <- stream
				_ = stream.Respond(200, map[string][]string{
					"Content-Type": {"text/plain"},
				}, nil)
			}, nil)
			require.NoError(t, err)
		},
	})
	require.NoError(t, err)
	defer srv.Release()

	setupDone := make(chan struct{})
	var clientConn *Connection
	var setupErr error

	addr := srv.Addr().(*net.TCPAddr)
	err = ClientConnect(context.Background(), &ClientConnectOptions{
		HostName: "127.0.0.1",
		Address:  srv.Addr().String(),
		Port:     uint16(addr.Port),
		OnSetup: func(conn *Connection, err error) {
			clientConn = conn
			setupErr = err
			close(setupDone)
		},
	})
	require.NoError(t, err)

	select {
	case <-setupDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client connection setup")
	}
	require.NoError(t, setupErr)
	require.NotNil(t, clientConn)
	defer clientConn.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream, err := clientConn.NewClientRequestStream(ctx, &RequestOptions{
		Method: "GET",
		Path:   "/",
		Host:   "example.test",
	})
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, 200, stream.StatusCode)

	select {
	case <-requestReceived:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the incoming request")
	}

	_, _ = io.ReadAll(stream)
}

func TestClientConnectRejectsMissingOptions(t *testing.T) {
	err := ClientConnect(context.Background(), nil)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))

	err = ClientConnect(context.Background(), &ClientConnectOptions{})
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))

	err = ClientConnect(context.Background(), &ClientConnectOptions{HostName: "example.test"})
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
}

func TestClientConnectReportsDialFailure(t *testing.T) {
	setupDone := make(chan struct{})
	var setupErr error

	err := ClientConnect(context.Background(), &ClientConnectOptions{
		HostName: "127.0.0.1",
		Port:     1, // nothing listens here
		OnSetup: func(conn *Connection, err error) {
			setupErr = err
			close(setupDone)
		},
	})
	require.NoError(t, err)

	select {
	case <-setupDone:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dial failure to be reported")
	}
	assert.Error(t, setupErr)
}
