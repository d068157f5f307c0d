// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tpdio

import "fmt"

// DomainError is implemented by errors that should be routed to
// [ErrorPolicy.CatchDomainError] instead of [ErrorPolicy.CatchStandardError].
//
// Go has no [boost::exception] hierarchy to distinguish "domain-specific"
// failures from generic ones, so the distinction is made explicit: an
// error returned from a work item's Apply, or recovered from its panic,
// is routed to CatchDomainError when it implements DomainError, to
// CatchStandardError when it is merely an error, and to
// CatchUnknownError when the recovered panic value is not an error at
// all.
type DomainError interface {
	error
	domainError()
}

// WriteError wraps a failure from the sink's io.Writer surfaced while
// applying a writer work item. It implements [DomainError].
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("tpdio: write failed: %v", e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }
func (*WriteError) domainError()    {}

// ReadError wraps a failure from the source's io.Reader surfaced while
// applying a reader work item. It implements [DomainError].
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("tpdio: read failed: %v", e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }
func (*ReadError) domainError()    {}

// assertf panics with a "tpdio: "-prefixed message when cond is false.
//
// Protocol violations (uninitialized channel, a non-empty transaction
// handed to beginInsert/tryConsume, a broken switchPages invariant) are
// programmer errors, not recoverable run-time conditions, so they panic
// unconditionally rather than being gated behind a build tag the way
// [RaceEnabled] gates race-detector-only test logic.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("tpdio: "+format, args...))
	}
}
