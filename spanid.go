// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop spanid.go
//

package httpcore

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// A span is the lifetime of one connection or one stream: accept/dial
// through configuration, requests, and shutdown. Attach the span ID to a
// connection or stream's logger with [*slog.Logger.With] so that every log
// entry for that lifetime can be correlated.
//
// The span terminology is borrowed from OTel.
//
// This function panics if the system random number generator fails, which
// should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
