// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: original_source/include/aws/http/http.h (enum aws_http_errors)
//

package httpcore

import (
	"errors"
	"fmt"
)

// Code identifies the kind of an [*Error], mirroring the named error kinds
// in the original library's error taxonomy.
type Code int

const (
	CodeUnknown Code = iota
	CodeHeaderNotFound
	CodeInvalidHeaderField
	CodeInvalidHeaderName
	CodeInvalidHeaderValue
	CodeInvalidMethod
	CodeInvalidPath
	CodeInvalidStatusCode
	CodeMissingBodyStream
	CodeInvalidBodyStream
	CodeConnectionClosed
	CodeSwitchedProtocols
	CodeUnsupportedProtocol
	CodeReactionRequired
	CodeDataNotAvailable
	CodeOutgoingStreamLengthIncorrect
	CodeCallbackFailure
	CodeWebsocketUpgradeFailure
	CodeWebsocketCloseFrameSent
	CodeWebsocketIsMidchannelHandler
	CodeConnectionManagerInvalidStateForAcquire
	CodeConnectionManagerVendedConnectionUnderflow
	CodeServerClosed
	CodeProxyTLSConnectFailed
	CodeConnectionManagerShuttingDown
	CodeProtocolError
	CodeStreamClosed
	CodeInvalidFrameSize

	// The following are not part of the original library's HTTP-specific
	// range; they mirror its generic AWS_ERROR_INVALID_ARGUMENT /
	// AWS_ERROR_INVALID_STATE / AWS_ERROR_OVERFLOW_DETECTED / AWS_ERROR_UNKNOWN.
	CodeInvalidArgument
	CodeInvalidState
	CodeOverflowDetected
)

var codeNames = map[Code]string{
	CodeUnknown:                      "unknown",
	CodeHeaderNotFound:               "header-not-found",
	CodeInvalidHeaderField:           "invalid-header-field",
	CodeInvalidHeaderName:            "invalid-header-name",
	CodeInvalidHeaderValue:           "invalid-header-value",
	CodeInvalidMethod:                "invalid-method",
	CodeInvalidPath:                  "invalid-path",
	CodeInvalidStatusCode:            "invalid-status-code",
	CodeMissingBodyStream:            "missing-body-stream",
	CodeInvalidBodyStream:            "invalid-body-stream",
	CodeConnectionClosed:             "connection-closed",
	CodeSwitchedProtocols:            "switched-protocols",
	CodeUnsupportedProtocol:          "unsupported-protocol",
	CodeReactionRequired:             "reaction-required",
	CodeDataNotAvailable:             "data-not-available",
	CodeOutgoingStreamLengthIncorrect: "outgoing-stream-length-incorrect",
	CodeCallbackFailure:              "callback-failure",
	CodeWebsocketUpgradeFailure:      "websocket-upgrade-failure",
	CodeWebsocketCloseFrameSent:      "websocket-close-frame-sent",
	CodeWebsocketIsMidchannelHandler: "websocket-is-midchannel-handler",
	CodeConnectionManagerInvalidStateForAcquire:    "connection-manager-invalid-state-for-acquire",
	CodeConnectionManagerVendedConnectionUnderflow: "connection-manager-vended-connection-underflow",
	CodeServerClosed:                "server-closed",
	CodeProxyTLSConnectFailed:       "proxy-tls-connect-failed",
	CodeConnectionManagerShuttingDown: "connection-manager-shutting-down",
	CodeProtocolError:               "protocol-error",
	CodeStreamClosed:                "stream-closed",
	CodeInvalidFrameSize:            "invalid-frame-size",
	CodeInvalidArgument:             "invalid-argument",
	CodeInvalidState:                "invalid-state",
	CodeOverflowDetected:            "overflow-detected",
}

// String implements [fmt.Stringer].
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// Classify returns the same short label as [Code.String]. It exists so a
// [Code] satisfies the shape expected by [ErrClassifier]-style consumers
// without needing an [*Error] wrapper first.
func (c Code) Classify() string {
	return c.String()
}

// Error is the error type raised by this package's operations.
//
// Unlike the original C library's thread-local "last error" plus boolean
// return, every operation in this package returns its error directly: Go's
// multi-value returns already give each call its own error value, so there
// is no shared/thread-local slot to reimplement.
type Error struct {
	// Code identifies the kind of failure.
	Code Code

	// Op names the operation that failed (e.g. "ConfigureServer").
	Op string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("httpcore: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("httpcore: %s: %s", e.Op, e.Code)
}

// Unwrap implements the errors.Unwrap protocol.
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, code Code) error {
	return &Error{Code: code, Op: op}
}

func wrapError(op string, code Code, err error) error {
	return &Error{Code: code, Op: op, Err: err}
}

// CodeOf extracts the [Code] from err, or [CodeUnknown] if err is nil or
// was not raised by this package.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
