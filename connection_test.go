// SPDX-License-Identifier: GPL-3.0-or-later

package httpcore

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChannel(t *testing.T) (*Channel, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { server.Close() })
	return NewChannel(client, ""), client
}

func TestNewConnectionPlaintextClient(t *testing.T) {
	ch, _ := newTestChannel(t)

	conn, err := newConnection(newConnectionOptions{
		Channel:       ch,
		Role:          RoleClient,
		Logger:        DefaultSLogger(),
		ErrClassifier: DefaultErrClassifier,
	})
	require.NoError(t, err)
	require.NotNil(t, conn)

	assert.True(t, conn.IsClient())
	assert.False(t, conn.IsServer())
	assert.Equal(t, Version1_1, conn.GetVersion())
	assert.Same(t, ch, conn.GetChannel())
}

func TestNewConnectionServerRole(t *testing.T) {
	ch, _ := newTestChannel(t)

	conn, err := newConnection(newConnectionOptions{
		Channel:       ch,
		Role:          RoleServer,
		Logger:        DefaultSLogger(),
		ErrClassifier: DefaultErrClassifier,
	})
	require.NoError(t, err)
	assert.True(t, conn.IsServer())
	assert.False(t, conn.IsClient())
}

func TestConnectionConfigureServerValidation(t *testing.T) {
	ch, _ := newTestChannel(t)
	clientConn, err := newConnection(newConnectionOptions{
		Channel: ch, Role: RoleClient, Logger: DefaultSLogger(), ErrClassifier: DefaultErrClassifier,
	})
	require.NoError(t, err)

	// Missing onIncomingRequest.
	err = clientConn.ConfigureServer(nil, nil, nil)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))

	// Called on a client connection.
	err = clientConn.ConfigureServer(nil, func(*Stream) {}, nil)
	assert.Equal(t, CodeInvalidState, CodeOf(err))

	ch2, _ := newTestChannel(t)
	serverConn, err := newConnection(newConnectionOptions{
		Channel: ch2, Role: RoleServer, Logger: DefaultSLogger(), ErrClassifier: DefaultErrClassifier,
	})
	require.NoError(t, err)

	require.NoError(t, serverConn.ConfigureServer("userdata", func(*Stream) {}, nil))
	assert.Equal(t, "userdata", serverConn.UserData())

	// Already configured.
	err = serverConn.ConfigureServer(nil, func(*Stream) {}, nil)
	assert.Equal(t, CodeInvalidState, CodeOf(err))
}

func TestConnectionReleaseTriggersChannelShutdown(t *testing.T) {
	ch, _ := newTestChannel(t)
	conn, err := newConnection(newConnectionOptions{
		Channel: ch, Role: RoleClient, Logger: DefaultSLogger(), ErrClassifier: DefaultErrClassifier,
	})
	require.NoError(t, err)

	var shutdownErr error
	done := make(chan struct{})
	ch.SetOnShutdownComplete(func(err error) {
		shutdownErr = err
		close(done)
	})

	conn.Release()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("channel did not shut down after connection released")
	}
	assert.NoError(t, shutdownErr)
}

func TestConnectionCloseOnContextDone(t *testing.T) {
	ch, _ := newTestChannel(t)
	conn, err := newConnection(newConnectionOptions{
		Channel: ch, Role: RoleClient, Logger: DefaultSLogger(), ErrClassifier: DefaultErrClassifier,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stop := conn.CloseOnContextDone(ctx)
	defer stop()

	assert.True(t, conn.IsOpen())
	cancel()

	require.Eventually(t, func() bool { return !conn.IsOpen() }, time.Second, 10*time.Millisecond)
}

func TestConnectionAcquireDelaysRelease(t *testing.T) {
	ch, _ := newTestChannel(t)
	conn, err := newConnection(newConnectionOptions{
		Channel: ch, Role: RoleClient, Logger: DefaultSLogger(), ErrClassifier: DefaultErrClassifier,
	})
	require.NoError(t, err)

	conn.Acquire()

	done := make(chan struct{})
	ch.SetOnShutdownComplete(func(error) { close(done) })

	conn.Release()
	select {
	case <-done:
		t.Fatal("channel shut down before matching Release for Acquire")
	case <-time.After(50 * time.Millisecond):
	}

	conn.Release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("channel did not shut down after final Release")
	}
}
