// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop httpconn.go (RoundTrip, HTTPConnFunc's
// ALPN-based transport selection) and httpbody.go (lazy body-stream
// logging), generalized into this package's [ProtocolHandler] vtable for
// both connection roles.
//

package httpcore

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bassosimone/safeconn"
	"github.com/bassosimone/sud"
)

// h1Engine implements [ProtocolHandler] for HTTP/1.0 and HTTP/1.1, for
// either connection role.
type h1Engine struct {
	initialWindowSize int

	initOnce sync.Once
	txp      http.RoundTripper
	closeTxp func()

	mu           sync.Mutex
	closed       bool
	serverLoopOn bool
}

func newH1Client(initialWindowSize int) (ProtocolHandler, error) {
	return &h1Engine{initialWindowSize: initialWindowSize}, nil
}

func newH1Server(initialWindowSize int) (ProtocolHandler, error) {
	return &h1Engine{initialWindowSize: initialWindowSize}, nil
}

// OnChannelShutdown implements [ChannelHandler].
func (e *h1Engine) OnChannelShutdown(err error) {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

// Close implements [ProtocolHandler].
func (e *h1Engine) Close(conn *Connection) {
	e.mu.Lock()
	already := e.closed
	e.closed = true
	closeTxp := e.closeTxp
	e.mu.Unlock()
	if already {
		return
	}
	if closeTxp != nil {
		closeTxp()
	}
	conn.GetChannel().Conn().Close()
}

// IsOpen implements [ProtocolHandler].
func (e *h1Engine) IsOpen(conn *Connection) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed
}

// UpdateWindow implements [ProtocolHandler]. HTTP/1.x has no flow control,
// so this is a logged no-op.
func (e *h1Engine) UpdateWindow(conn *Connection, increment int) {
	conn.Logger.Debug("updateWindowNoop", slog.Int("increment", increment))
}

// StreamWriteOutgoingData implements [ProtocolHandler].
func (e *h1Engine) StreamWriteOutgoingData(stream *Stream, buf []byte) (int, error) {
	if stream.writer == nil {
		return 0, newError("StreamWriteOutgoingData", CodeMissingBodyStream)
	}
	return stream.writer.Write(buf)
}

// StreamReadIncomingData implements [ProtocolHandler].
func (e *h1Engine) StreamReadIncomingData(stream *Stream, buf []byte) (int, error) {
	if stream.body == nil {
		return 0, newError("StreamReadIncomingData", CodeDataNotAvailable)
	}
	return stream.body.Read(buf)
}

// singleUseTransport lazily builds an [http.RoundTripper] bound to the
// connection's single underlying [net.Conn], matching bassosimone-nop's
// HTTPConnFunc: [sud.NewSingleUseDialer] prevents the transport from ever
// dialing a second connection.
func (e *h1Engine) singleUseTransport(conn *Connection) http.RoundTripper {
	e.initOnce.Do(func() {
		nc := conn.GetChannel().Conn()
		dialer := sud.NewSingleUseDialer(nc)
		txp := &http.Transport{
			DialContext:        dialer.DialContext,
			DialTLSContext:     dialer.DialContext,
			DisableKeepAlives:  true,
			DisableCompression: false,
		}
		e.txp = txp
		e.closeTxp = txp.CloseIdleConnections
	})
	return e.txp
}

// NewClientRequestStream implements [ProtocolHandler]. Unless
// opts.Streaming is set, it performs the round trip synchronously and
// returns once the response headers have arrived (the stream's incoming
// body is then read lazily via [Stream.Read]). With opts.Streaming set and
// opts.Body nil, it instead returns immediately with an outgoing pipe
// wired to [Stream.Write], and runs the round trip in the background; the
// response headers and body become available to [Stream.Read] once the
// server responds.
func (e *h1Engine) NewClientRequestStream(ctx context.Context, conn *Connection, opts *RequestOptions) (*Stream, error) {
	nc := conn.GetChannel().Conn()

	url := opts.Path
	if !strings.Contains(url, "://") {
		scheme := "http"
		if _, ok := nc.(interface{ ConnectionState() tls.ConnectionState }); ok {
			scheme = "https"
		}
		host := opts.Host
		url = scheme + "://" + host + opts.Path
	}

	stream := &Stream{
		Method: opts.Method,
		Path:   opts.Path,
		Host:   opts.Host,
		conn:   conn,
	}

	var body io.Reader
	streaming := opts.Streaming && opts.Body == nil
	switch {
	case opts.Body != nil:
		body = bytes.NewReader(opts.Body)
	case streaming:
		pr, pw := io.Pipe()
		body = pr
		stream.writer = pw
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, url, body)
	if err != nil {
		return nil, wrapError("NewClientRequestStream", CodeInvalidPath, err)
	}
	if streaming {
		req.ContentLength = -1
	}
	for k, vs := range opts.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if opts.Host != "" {
		req.Host = opts.Host
	}

	t0 := time.Now()
	deadline, _ := ctx.Deadline()
	conn.Logger.Info(
		"httpRoundTripStart",
		slog.Time("deadline", deadline),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpRequestHeaders", req.Header),
		slog.String("localAddr", safeconn.LocalAddr(nc)),
		slog.String("remoteAddr", safeconn.RemoteAddr(nc)),
		slog.Time("t", t0),
	)

	if streaming {
		respCh := make(chan h1RoundTripResult, 1)
		go func() {
			resp, err := e.singleUseTransport(conn).RoundTrip(req)
			respCh <- h1RoundTripResult{resp: resp, err: err}
		}()
		stream.body = &pendingResponseBody{
			respCh: respCh,
			stream: stream,
			conn:   conn,
			laddr:  safeconn.LocalAddr(nc),
			raddr:  safeconn.RemoteAddr(nc),
			t0:     t0,
		}
		return stream, nil
	}

	resp, err := e.singleUseTransport(conn).RoundTrip(req)

	var statusCode int
	var headers http.Header
	if resp != nil {
		statusCode = resp.StatusCode
		headers = resp.Header
	}
	conn.Logger.Info(
		"httpRoundTripDone",
		slog.Any("err", err),
		slog.String("errClass", conn.ErrClassifier.Classify(err)),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpResponseHeaders", headers),
		slog.Int("httpResponseStatusCode", statusCode),
		slog.Time("t0", t0),
		slog.Time("t", time.Now()),
	)
	if err != nil {
		return nil, wrapError("NewClientRequestStream", CodeConnectionClosed, err)
	}

	stream.StatusCode = statusCode
	stream.Header = resp.Header
	stream.body = wrapBodyWithLogging(
		resp.Body, conn.ErrClassifier, conn.Logger,
		safeconn.LocalAddr(nc), safeconn.RemoteAddr(nc), time.Now,
	)
	return stream, nil
}

// h1RoundTripResult carries a background RoundTrip's outcome to the
// [*pendingResponseBody] awaiting it.
type h1RoundTripResult struct {
	resp *http.Response
	err  error
}

// pendingResponseBody is a [*Stream]'s incoming body when the round trip
// that will produce it is still running in the background (see
// [RequestOptions.Streaming]). The first [Read] or [Close] blocks until
// the round trip completes, then delegates to the real response body.
type pendingResponseBody struct {
	respCh <-chan h1RoundTripResult
	stream *Stream
	conn   *Connection
	laddr  string
	raddr  string
	t0     time.Time

	once sync.Once
	body io.ReadCloser
	err  error
}

func (b *pendingResponseBody) await() {
	b.once.Do(func() {
		result := <-b.respCh
		b.err = result.err

		var statusCode int
		var headers http.Header
		if result.resp != nil {
			statusCode = result.resp.StatusCode
			headers = result.resp.Header
		}
		b.conn.Logger.Info(
			"httpRoundTripDone",
			slog.Any("err", b.err),
			slog.String("errClass", b.conn.ErrClassifier.Classify(b.err)),
			slog.String("httpMethod", b.stream.Method),
			slog.String("httpUrl", b.stream.Path),
			slog.Any("httpResponseHeaders", headers),
			slog.Int("httpResponseStatusCode", statusCode),
			slog.Time("t0", b.t0),
			slog.Time("t", time.Now()),
		)
		if b.err != nil {
			return
		}

		b.stream.StatusCode = statusCode
		b.stream.Header = headers
		b.body = wrapBodyWithLogging(
			result.resp.Body, b.conn.ErrClassifier, b.conn.Logger,
			b.laddr, b.raddr, time.Now,
		)
	})
}

func (b *pendingResponseBody) Read(buf []byte) (int, error) {
	b.await()
	if b.err != nil {
		return 0, wrapError("Stream.Read", CodeConnectionClosed, b.err)
	}
	return b.body.Read(buf)
}

func (b *pendingResponseBody) Close() error {
	b.await()
	if b.body == nil {
		return nil
	}
	return b.body.Close()
}

// NewServerRequestHandler implements [ProtocolHandler]. It starts (once) a
// background goroutine reading successive HTTP/1.x requests off the
// connection's [net.Conn] and dispatching each to
// [ServerData.OnIncomingRequest]. The goroutine exits on the first error
// reading a request (or if OnIncomingRequest is unset) and then shuts down
// the channel; [ServerData.OnShutdown] is invoked from the channel's
// shutdown-complete callback registered in server.go. Errors writing a
// response are returned from [Stream.Respond] and do not end the loop.
func (e *h1Engine) NewServerRequestHandler(conn *Connection) error {
	e.mu.Lock()
	if e.serverLoopOn {
		e.mu.Unlock()
		return newError("NewServerRequestHandler", CodeInvalidState)
	}
	e.serverLoopOn = true
	e.mu.Unlock()

	go e.serverLoop(conn)
	return nil
}

func (e *h1Engine) serverLoop(conn *Connection) {
	nc := conn.GetChannel().Conn()
	reader := bufio.NewReader(nc)

	var loopErr error
	for {
		req, err := http.ReadRequest(reader)
		if err != nil {
			loopErr = err
			break
		}

		var respMu sync.Mutex
		var responded atomic.Bool
		stream := &Stream{
			Method: req.Method,
			Path:   req.URL.RequestURI(),
			Host:   req.Host,
			Header: req.Header,
			body:   req.Body,
			conn:   conn,
		}
		stream.respond = func(statusCode int, header http.Header, body io.Reader) error {
			respMu.Lock()
			defer respMu.Unlock()
			if !responded.CompareAndSwap(false, true) {
				return newError("Stream.Respond", CodeStreamClosed)
			}
			stream.StatusCode = statusCode
			resp := &http.Response{
				StatusCode: statusCode,
				Status:     http.StatusText(statusCode),
				Proto:      "HTTP/1.1",
				ProtoMajor: 1,
				ProtoMinor: 1,
				Header:     header,
			}
			if body == StreamResponseBody {
				// Deferred body: wire an outgoing pipe so the handler can
				// push the response body incrementally via Stream.Write
				// after Respond returns.
				pr, pw := io.Pipe()
				resp.TransferEncoding = []string{"chunked"}
				resp.Body = pr
				stream.writer = pw
				go func() {
					if err := resp.Write(nc); err != nil {
						conn.Logger.Warn("streamingResponseWriteFailed", slog.Any("err", err))
					}
				}()
				return nil
			}
			if rc, ok := body.(io.ReadCloser); ok {
				resp.Body = rc
			} else if body != nil {
				resp.Body = io.NopCloser(body)
			}
			return resp.Write(nc)
		}

		handler := conn.serverData.OnIncomingRequest
		if handler == nil {
			loopErr = newError("serverLoop", CodeReactionRequired)
			break
		}
		handler(stream)
	}

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	conn.Logger.Debug("serverLoopDone", slog.Any("err", loopErr))
	// The server bootstrap's shutdown-complete callback (see server.go)
	// is the single place that invokes ServerData.OnShutdown; this just
	// triggers it.
	conn.GetChannel().Shutdown(loopErr)
}

// wrapBodyWrapper lazily logs httpBodyStreamStart on the first Read and
// httpBodyStreamDone on Close (only if a Read happened), mirroring
// bassosimone-nop's httpBodyWrapper.
type wrapBodyWrapper struct {
	body      io.ReadCloser
	didRead   atomic.Bool
	errClass  ErrClassifier
	laddr     string
	logger    SLogger
	closeOnce sync.Once
	raddr     string
	readOnce  sync.Once
	t0        time.Time
	timeNow   func() time.Time
}

func wrapBodyWithLogging(body io.ReadCloser, errClass ErrClassifier, logger SLogger, laddr, raddr string, timeNow func() time.Time) io.ReadCloser {
	return &wrapBodyWrapper{
		body:     body,
		errClass: errClass,
		laddr:    laddr,
		logger:   logger,
		raddr:    raddr,
		timeNow:  timeNow,
	}
}

func (b *wrapBodyWrapper) Read(buf []byte) (int, error) {
	b.readOnce.Do(func() {
		b.t0 = b.timeNow()
		b.didRead.Store(true)
		b.logger.Info(
			"httpBodyStreamStart",
			slog.String("localAddr", b.laddr),
			slog.String("remoteAddr", b.raddr),
			slog.Time("t", b.t0),
		)
	})
	return b.body.Read(buf)
}

func (b *wrapBodyWrapper) Close() (err error) {
	b.closeOnce.Do(func() {
		err = b.body.Close()
		if b.didRead.Load() {
			b.logger.Info(
				"httpBodyStreamDone",
				slog.Any("err", err),
				slog.String("errClass", b.errClass.Classify(err)),
				slog.String("localAddr", b.laddr),
				slog.String("remoteAddr", b.raddr),
				slog.Time("t0", b.t0),
				slog.Time("t", b.timeNow()),
			)
		}
	})
	return
}
