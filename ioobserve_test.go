// SPDX-License-Identifier: GPL-3.0-or-later

package httpcore

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveConnLogsReadWriteAndClose(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	logger, records := newCapturingLogger()
	oc := observeConn(client, DefaultErrClassifier, logger, time.Now)

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 5)
		_, _ = oc.Read(buf)
		close(done)
	}()

	_, err := server.Write([]byte("hello"))
	require.NoError(t, err)
	<-done

	require.NoError(t, oc.Close())
	assert.ErrorIs(t, oc.Close(), net.ErrClosed)

	names := recordNames(*records)
	assert.Contains(t, names, "readStart")
	assert.Contains(t, names, "readDone")
	assert.Contains(t, names, "closeStart")
	assert.Contains(t, names, "closeDone")
}

func TestObserveConnWriteLogging(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	logger, records := newCapturingLogger()
	oc := observeConn(client, DefaultErrClassifier, logger, time.Now)

	go func() {
		buf := make([]byte, 5)
		_, _ = server.Read(buf)
	}()
	_, err := oc.Write([]byte("hello"))
	require.NoError(t, err)

	names := recordNames(*records)
	assert.Contains(t, names, "writeStart")
	assert.Contains(t, names, "writeDone")
}
