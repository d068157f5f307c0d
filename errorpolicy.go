// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tpdio

import "code.hybscloud.com/atomix"

// ErrorPolicy is consulted on the consumer side whenever a work item's
// apply fails, either by returning an error or by panicking. Go has no
// exception hierarchy to distinguish "domain-specific" failures from
// generic ones, so the three handlers are dispatched by what the
// consumer recovered: an error implementing [DomainError] goes to
// CatchDomainError, any other error goes to CatchStandardError, and a
// recovered panic value that is not an error at all goes to
// CatchUnknownError.
//
// Handlers run on the consumer goroutine and must not block; a slow
// handler delays every item behind it in the same drain pass.
type ErrorPolicy interface {
	CatchDomainError(err DomainError)
	CatchStandardError(err error)
	CatchUnknownError(v any)
}

// NopErrorPolicy discards every failure. It is the default policy used
// when a [Stream] is constructed without one.
type NopErrorPolicy struct{}

func (NopErrorPolicy) CatchDomainError(DomainError) {}
func (NopErrorPolicy) CatchStandardError(error)     {}
func (NopErrorPolicy) CatchUnknownError(any)         {}

// CountingErrorPolicy tallies failures by category instead of acting
// on them. It is intended for tests and metrics collection; counters
// are safe to read concurrently with Catch* calls.
type CountingErrorPolicy struct {
	domainErrors   atomix.Uint64
	standardErrors atomix.Uint64
	unknownErrors  atomix.Uint64
}

func (p *CountingErrorPolicy) CatchDomainError(DomainError) { p.domainErrors.AddAcqRel(1) }
func (p *CountingErrorPolicy) CatchStandardError(error)      { p.standardErrors.AddAcqRel(1) }
func (p *CountingErrorPolicy) CatchUnknownError(any)         { p.unknownErrors.AddAcqRel(1) }

// DomainErrors returns the number of DomainError failures caught so far.
func (p *CountingErrorPolicy) DomainErrors() uint64 { return p.domainErrors.LoadAcquire() }

// StandardErrors returns the number of plain-error failures caught so far.
func (p *CountingErrorPolicy) StandardErrors() uint64 { return p.standardErrors.LoadAcquire() }

// UnknownErrors returns the number of non-error panic values caught so far.
func (p *CountingErrorPolicy) UnknownErrors() uint64 { return p.unknownErrors.LoadAcquire() }

// Total returns the sum of every category caught so far.
func (p *CountingErrorPolicy) Total() uint64 {
	return p.domainErrors.LoadAcquire() + p.standardErrors.LoadAcquire() + p.unknownErrors.LoadAcquire()
}
