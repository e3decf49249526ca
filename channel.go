// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/source/connection.c (slot/channel operations
// consumed by s_connection_new) and bassosimone-nop observeconn.go/cancelwatch.go
// (the net.Conn decorator pattern, generalized into a slot pipeline).
//

package httpcore

import (
	"net"
	"sync"
	"sync/atomic"
)

// ChannelHandler is the capability every object bound into a [Slot] must
// implement.
//
// Byte-level push/pull between slots is not modeled here: the version-
// specific engines in this package (see h1connection.go) read and write the
// channel's underlying [net.Conn] directly via [Channel.Conn], since no
// byte-level wire codec is in this package's scope (see doc.go Design
// Boundaries). What the slot pipeline faithfully preserves is ordering,
// insertion/removal, and shutdown propagation.
type ChannelHandler interface {
	// OnChannelShutdown is called, on the channel's event-loop goroutine,
	// once the channel has finished shutting down.
	OnChannelShutdown(err error)
}

// Slot is a position in a [Channel]'s pipeline. It holds at most one
// handler and is linked to its left/right neighbours.
type Slot struct {
	channel  *Channel
	handler  ChannelHandler
	adjLeft  *Slot
	adjRight *Slot
}

// Handler returns the handler currently bound to this slot, or nil.
func (s *Slot) Handler() ChannelHandler {
	return s.handler
}

// SetHandler binds h into this slot.
func (s *Slot) SetHandler(h ChannelHandler) {
	s.handler = h
}

// NewChannelSlot allocates a new, unlinked slot for ch.
func NewChannelSlot(ch *Channel) *Slot {
	return &Slot{channel: ch}
}

// Channel is an ordered, bidirectional pipeline of [Slot]s over one
// underlying [net.Conn]. A channel is bound to a single event-loop
// goroutine: every handler callback for a channel is scheduled onto that
// goroutine and therefore serializes with every other callback for the
// same channel, satisfying the single-I/O-thread model external callers
// rely on.
//
// A channel has its own hold-count, independent of any [*Connection]
// refcount: [Channel.AcquireHold] / [Channel.ReleaseHold] extend the
// channel's physical lifetime (see [Connection.Release]), while shutdown
// (closing the underlying conn) is triggered separately by [Channel.Shutdown].
// Once holds reaches zero the channel stops its event-loop goroutine (see
// [Channel.ReleaseHold]).
type Channel struct {
	conn          net.Conn
	negotiatedALPN string

	mu    sync.Mutex
	slots []*Slot

	holds atomic.Int32

	shutdownOnce sync.Once
	shutdownErr  error
	shutdownDone chan struct{}
	onShutdown   func(err error)

	tasks chan func()
	stop  chan struct{}
	wg    sync.WaitGroup
}

// SetOnShutdownComplete registers the callback [Channel.Shutdown] invokes
// once every slot handler has been notified. Not synchronized against
// concurrent [Channel.Shutdown] calls, by design (mirroring
// [SetSystemVTable]): callers register this once, synchronously, right
// after constructing the channel and before any other goroutine can reach
// it, not in response to events that race with shutdown.
func (ch *Channel) SetOnShutdownComplete(cb func(err error)) {
	ch.onShutdown = cb
}

// NewChannel wraps conn into a new [*Channel] with an empty slot pipeline
// and a running event loop. negotiatedALPN is the ALPN protocol identifier
// negotiated during the TLS handshake, if any ("" for plaintext channels).
func NewChannel(conn net.Conn, negotiatedALPN string) *Channel {
	ch := &Channel{
		conn:           conn,
		negotiatedALPN: negotiatedALPN,
		shutdownDone:   make(chan struct{}),
		tasks:          make(chan func(), 64),
		stop:           make(chan struct{}),
	}
	ch.wg.Add(1)
	go ch.loop()
	return ch
}

// loop is the channel's single event-loop goroutine. Every task submitted
// via schedule runs here, serialized with every other task for this
// channel.
func (ch *Channel) loop() {
	defer ch.wg.Done()
	for {
		select {
		case fn := <-ch.tasks:
			fn()
		case <-ch.stop:
			// Drain whatever is still queued before exiting, so a
			// shutdown callback enqueued just before stop fires still runs.
			for {
				select {
				case fn := <-ch.tasks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// schedule runs fn on the channel's event-loop goroutine.
func (ch *Channel) schedule(fn func()) {
	select {
	case ch.tasks <- fn:
	case <-ch.stop:
	}
}

// Conn returns the channel's underlying [net.Conn].
func (ch *Channel) Conn() net.Conn {
	return ch.conn
}

// NegotiatedALPN returns the ALPN protocol identifier negotiated during the
// TLS handshake, or "" for a plaintext channel or one where ALPN was not
// negotiated.
func (ch *Channel) NegotiatedALPN() string {
	return ch.negotiatedALPN
}

// InsertSlotEnd appends slot to the end of the channel's pipeline, linking
// it to the current right-most slot (if any).
func (ch *Channel) InsertSlotEnd(slot *Slot) error {
	if slot == nil {
		return newError("InsertSlotEnd", CodeInvalidArgument)
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()

	slot.channel = ch
	if n := len(ch.slots); n > 0 {
		last := ch.slots[n-1]
		last.adjRight = slot
		slot.adjLeft = last
	}
	ch.slots = append(ch.slots, slot)
	return nil
}

// RemoveSlot unlinks slot from the pipeline. Used to unwind a partially
// constructed connection (see newConnection).
func (ch *Channel) RemoveSlot(slot *Slot) {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	for i, s := range ch.slots {
		if s == slot {
			ch.slots = append(ch.slots[:i], ch.slots[i+1:]...)
			break
		}
	}
	if slot.adjLeft != nil {
		slot.adjLeft.adjRight = slot.adjRight
	}
	if slot.adjRight != nil {
		slot.adjRight.adjLeft = slot.adjLeft
	}
	slot.adjLeft = nil
	slot.adjRight = nil
}

// AcquireHold increments the channel's hold-count, extending its physical
// lifetime beyond any single owner releasing its own reference.
func (ch *Channel) AcquireHold() {
	ch.holds.Add(1)
}

// ReleaseHold decrements the channel's hold-count. Once it reaches zero, the
// channel schedules its teardown, which stops the event-loop goroutine after
// any already-queued task has run. This does not wait for or trigger
// shutdown: the underlying connection is closed only by [Channel.Shutdown],
// and the slot pipeline is left as it is.
func (ch *Channel) ReleaseHold() {
	if ch.holds.Add(-1) == 0 {
		ch.schedule(ch.teardown)
	}
}

// Shutdown idempotently initiates channel shutdown with the given error
// (nil/success is valid: "the channel may already be shutting down, this
// is harmless"). Every slot handler's OnChannelShutdown is invoked, in
// order, on the event-loop goroutine, followed by the callback registered
// via [Channel.SetOnShutdownComplete], if any.
//
// Only the error passed to the first caller to reach this method takes
// effect; later callers' errors are discarded, matching the "idempotent,
// first-wins" semantics of the original channel shutdown.
func (ch *Channel) Shutdown(err error) {
	ch.shutdownOnce.Do(func() {
		ch.shutdownErr = err
		ch.schedule(func() {
			ch.conn.Close()

			ch.mu.Lock()
			slots := append([]*Slot(nil), ch.slots...)
			ch.mu.Unlock()

			for _, s := range slots {
				if s.handler != nil {
					s.handler.OnChannelShutdown(err)
				}
			}

			close(ch.shutdownDone)
			if ch.onShutdown != nil {
				ch.onShutdown(err)
			}

			// If no hold was ever acquired (e.g. shutdown triggered by a
			// failed connection factory before step 6 of newConnection
			// ran), nothing will ever call ReleaseHold to stop the event
			// loop: stop it now instead of leaking the goroutine.
			if ch.holds.Load() == 0 {
				ch.teardown()
			}
		})
	})
}

// teardown runs once the channel's hold-count has reached zero. It stops
// the event-loop goroutine after draining any queued task.
func (ch *Channel) teardown() {
	select {
	case <-ch.stop:
		// already stopped
	default:
		close(ch.stop)
	}
}
