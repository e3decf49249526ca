// SPDX-License-Identifier: GPL-3.0-or-later

package httpcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewServerRejectsMissingOptions(t *testing.T) {
	_, err := NewServer(nil)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))

	_, err = NewServer(&ServerOptions{})
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))

	_, err = NewServer(&ServerOptions{Address: "127.0.0.1:0"})
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
}

func TestNewServerListensOnRequestedAddress(t *testing.T) {
	srv, err := NewServer(&ServerOptions{
		Address:              "127.0.0.1:0",
		OnIncomingConnection: func(conn *Connection) {},
	})
	assert.NoError(t, err)
	assert.NotNil(t, srv)
	defer srv.Release()

	assert.NotEmpty(t, srv.Addr().String())
}

func TestServerReleaseIsIdempotent(t *testing.T) {
	srv, err := NewServer(&ServerOptions{
		Address:              "127.0.0.1:0",
		OnIncomingConnection: func(conn *Connection) {},
	})
	assert.NoError(t, err)

	srv.Release()
	srv.Release() // must not panic or block
}
