// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop errclassifier.go
//

package httpcore

import (
	"errors"

	"github.com/bassosimone/errclass"
)

// ErrClassifier classifies errors into categorical strings for analysis.
//
// Implementations map errors to short, descriptive labels (e.g., "ETIMEDOUT",
// "ECONNRESET") that facilitate systematic analysis of connection results.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier classifies transport-level errors (timeouts,
// connection resets, and so on) using [github.com/bassosimone/errclass],
// and library-raised errors using their own [Code.Classify].
var DefaultErrClassifier = ErrClassifierFunc(func(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code.Classify()
	}
	return errclass.New(err)
})
