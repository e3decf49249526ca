// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop observeconn.go (ObserveConnFunc/observedConn),
// generalized from a standalone [Func] stage into a decorator applied to
// every [net.Conn] a [Channel] is constructed over.
//

package httpcore

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"
)

// observeConn wraps conn so every I/O operation emits structured log
// events: readStart/readDone and writeStart/writeDone at Debug level,
// closeStart/closeDone at Info level (once, even if Close is called more
// than once). See [SLogger] for this package's level conventions.
func observeConn(conn net.Conn, errClass ErrClassifier, logger SLogger, timeNow func() time.Time) net.Conn {
	return &observedConn{
		conn:     conn,
		errClass: errClass,
		laddr:    safeconn.LocalAddr(conn),
		logger:   logger,
		protocol: safeconn.Network(conn),
		raddr:    safeconn.RemoteAddr(conn),
		timeNow:  timeNow,
	}
}

type observedConn struct {
	closeOnce sync.Once
	conn      net.Conn
	errClass  ErrClassifier
	laddr     string
	logger    SLogger
	protocol  string
	raddr     string
	timeNow   func() time.Time
}

var _ net.Conn = &observedConn{}

// Close implements [net.Conn]. Subsequent calls return [net.ErrClosed].
func (c *observedConn) Close() (err error) {
	err = net.ErrClosed
	c.closeOnce.Do(func() {
		t0 := c.timeNow()
		c.logger.Info(
			"closeStart",
			slog.String("localAddr", c.laddr),
			slog.String("protocol", c.protocol),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t", t0),
		)

		err = c.conn.Close()

		c.logger.Info(
			"closeDone",
			slog.Any("err", err),
			slog.String("errClass", c.errClass.Classify(err)),
			slog.String("localAddr", c.laddr),
			slog.String("protocol", c.protocol),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t0", t0),
			slog.Time("t", c.timeNow()),
		)
	})
	return
}

func (c *observedConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *observedConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *observedConn) Read(buf []byte) (int, error) {
	t0 := c.timeNow()
	c.logger.Debug(
		"readStart",
		slog.Int("ioBufferSize", len(buf)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", t0),
	)

	count, err := c.conn.Read(buf)

	c.logger.Debug(
		"readDone",
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", c.errClass.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.timeNow()),
	)
	return count, err
}

func (c *observedConn) Write(data []byte) (int, error) {
	t0 := c.timeNow()
	c.logger.Debug(
		"writeStart",
		slog.Int("ioBufferSize", len(data)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", t0),
	)

	count, err := c.conn.Write(data)

	c.logger.Debug(
		"writeDone",
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", c.errClass.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.timeNow()),
	)
	return count, err
}

func (c *observedConn) SetDeadline(t time.Time) error {
	c.logger.Debug(
		"setDeadline",
		slog.Time("deadline", t),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", c.timeNow()),
	)
	return c.conn.SetDeadline(t)
}

func (c *observedConn) SetReadDeadline(t time.Time) error {
	c.logger.Debug(
		"setReadDeadline",
		slog.Time("deadline", t),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", c.timeNow()),
	)
	return c.conn.SetReadDeadline(t)
}

func (c *observedConn) SetWriteDeadline(t time.Time) error {
	c.logger.Debug(
		"setWriteDeadline",
		slog.Time("deadline", t),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", c.timeNow()),
	)
	return c.conn.SetWriteDeadline(t)
}
