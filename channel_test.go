// SPDX-License-Identifier: GPL-3.0-or-later

package httpcore

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelInsertAndRemoveSlot(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ch := NewChannel(client, "")
	defer ch.ReleaseHold()
	ch.AcquireHold()

	s1 := NewChannelSlot(ch)
	s2 := NewChannelSlot(ch)

	require.NoError(t, ch.InsertSlotEnd(s1))
	require.NoError(t, ch.InsertSlotEnd(s2))

	assert.Same(t, s1, s2.adjLeft)
	assert.Same(t, s2, s1.adjRight)

	ch.RemoveSlot(s1)
	assert.Nil(t, s2.adjLeft)
}

func TestChannelInsertSlotEndRejectsNil(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()
	ch := NewChannel(client, "")
	defer ch.AcquireAndRelease()

	err := ch.InsertSlotEnd(nil)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
}

// AcquireAndRelease is a tiny test helper: acquire then immediately
// release a hold, so deferred cleanup always drives the channel to
// teardown even when a test never calls AcquireHold itself.
func (ch *Channel) AcquireAndRelease() {
	ch.AcquireHold()
	ch.ReleaseHold()
}

type shutdownRecorder struct {
	ch chan error
}

func (r *shutdownRecorder) OnChannelShutdown(err error) {
	r.ch <- err
}

func TestChannelShutdownNotifiesHandlers(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ch := NewChannel(client, "")
	ch.AcquireHold()

	slot := NewChannelSlot(ch)
	require.NoError(t, ch.InsertSlotEnd(slot))
	rec := &shutdownRecorder{ch: make(chan error, 1)}
	slot.SetHandler(rec)

	wantErr := newError("test", CodeConnectionClosed)
	ch.Shutdown(wantErr)

	select {
	case got := <-rec.ch:
		assert.Equal(t, wantErr, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for shutdown notification")
	}

	ch.ReleaseHold()
}

func TestChannelShutdownIsIdempotent(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ch := NewChannel(client, "")
	ch.AcquireHold()

	ch.Shutdown(newError("first", CodeConnectionClosed))
	ch.Shutdown(newError("second", CodeServerClosed))

	assert.Equal(t, CodeConnectionClosed, CodeOf(ch.shutdownErr))

	ch.ReleaseHold()
}

func TestChannelShutdownWithoutHoldDoesNotLeakGoroutine(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ch := NewChannel(client, "")

	ch.Shutdown(nil)

	select {
	case <-ch.stop:
		// event loop was stopped, as expected
	case <-time.After(time.Second):
		t.Fatal("channel event loop was not stopped after shutdown with no holds")
	}
}

func TestChannelReleaseHoldTriggersTeardownAtZero(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	ch := NewChannel(client, "")
	ch.AcquireHold()
	ch.AcquireHold()

	ch.ReleaseHold()
	select {
	case <-ch.stop:
		t.Fatal("channel torn down before all holds released")
	case <-time.After(50 * time.Millisecond):
	}

	ch.ReleaseHold()
	select {
	case <-ch.stop:
	case <-time.After(time.Second):
		t.Fatal("channel did not tear down after last hold released")
	}
}
