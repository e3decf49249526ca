// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: aws-c-http include/aws/http/http.h
//

package httpcore

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/bassosimone/runtimex"
)

var (
	libraryInitOnce    sync.Once
	libraryInitialized atomic.Bool
)

// LibraryInit initializes process-wide state used by this package. It is
// idempotent: calling it more than once has no additional effect.
//
// Go has no separate allocator to wire in (unlike the C library this
// package's semantics are grounded on), so this call exists purely to
// preserve the init/clean_up lifecycle contract that [ClientConnect] and
// [NewServer] check.
func LibraryInit() {
	libraryInitOnce.Do(func() {
		libraryInitialized.Store(true)
	})
}

// LibraryCleanUp tears down process-wide state. It is idempotent.
//
// After calling this, a fresh [LibraryInit] call is required before
// [ClientConnect] or [NewServer] can be used again.
func LibraryCleanUp() {
	libraryInitialized.Store(false)
	libraryInitOnce = sync.Once{}
}

// assertLibraryInitialized fatally asserts that [LibraryInit] has run.
// [ClientConnect] and [NewServer] call this first; no other function in
// this package checks whether the library is initialized.
func assertLibraryInitialized() {
	runtimex.Assert(libraryInitialized.Load())
}

// StatusText returns the standard reason phrase for code (e.g. 404 ->
// "Not Found"), or "" if code is not recognized.
func StatusText(code int) string {
	return http.StatusText(code)
}

// Exported method-name byte views, mirroring the C library's
// aws_http_method_* constants.
var (
	MethodGet     = []byte("GET")
	MethodHead    = []byte("HEAD")
	MethodPost    = []byte("POST")
	MethodPut     = []byte("PUT")
	MethodDelete  = []byte("DELETE")
	MethodConnect = []byte("CONNECT")
	MethodOptions = []byte("OPTIONS")
)

// Log subject tags, for use as a structured-log attribute, e.g.
// slog.String("subject", httpcore.LogSubjectServer).
const (
	LogSubjectGeneral           = "general"
	LogSubjectConnection        = "connection"
	LogSubjectServer            = "server"
	LogSubjectStream            = "stream"
	LogSubjectConnectionManager = "connection-manager"
	LogSubjectWebsocket         = "websocket"
	LogSubjectWebsocketSetup    = "websocket-setup"
)
