// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tpdio provides an asynchronous, formatted-output byte stream
// over a two-page disruptor channel.
//
// A foreground goroutine enqueues output operations (formatted writes,
// raw writes, manipulators, input-parse requests, completion
// callbacks) at near-constant latency: each submission bump-allocates
// a work item into a page and returns without touching the underlying
// io.Writer/io.Reader. A background goroutine, driven by a [Driver] of
// the caller's choosing, later drains the queued items in order and
// applies them to the sink and/or source.
//
// # Quick start
//
//	sink := os.Stdout
//	driver := tpdio.NewPollingDriver(10 * time.Millisecond)
//	s := tpdio.NewStream(sink, nil, driver)
//	defer s.Close()
//
//	s.SubmitFormatted("request id=")
//	s.SubmitFormatted(requestID)
//	s.SubmitBytes([]byte("\n"))
//
// # Drivers
//
// The channel itself never decides when the consumer runs; that's the
// job of a [Driver]:
//
//	tpdio.IdleDriver{}             // caller pumps RunOnce/DrainUntilEmpty manually
//	tpdio.NewPollingDriver(period)  // fixed-period background goroutine
//	tpdio.NewWaitingDriver()        // sleeps until WorkAvailable wakes it
//	tpdio.NewSpinningDriver()       // back-to-back draining, lowest latency
//
// One driver can be shared by several Streams; it multiplexes them
// internally.
//
// # Error handling
//
// Failures from a work item's apply — an io.Writer/io.Reader error, or
// a panic recovered while applying it — never propagate back to the
// goroutine that submitted the item; by the time the failure surfaces,
// that goroutine may be long gone. Instead they are routed to an
// [ErrorPolicy] on the consumer goroutine:
//
//	s := tpdio.NewStream(sink, nil, driver, tpdio.WithErrorPolicy(&myPolicy{}))
//
// [NopErrorPolicy] (the default) discards every failure.
// [CountingErrorPolicy] tallies them by category for tests and metrics.
//
// # Concurrency model
//
// The channel is built for one producer and one consumer contending on
// a pair of spinlocks, not for wide fan-in or fan-out: a second
// concurrent producer is correct but waits behind the first's
// insertLock, while a second consumer does not wait: its RunOnce
// reports nothing applied (TooManyConsumers) while consumeLock is held.
// Durability, reordering/batching beyond one page, and producer
// back-pressure are all explicitly out of scope — a producer never
// blocks; the page it's writing into simply grows.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic counters
// and flags with explicit acquire/release ordering, [code.hybscloud.com/spin]
// for CPU pause instructions in its spinlocks and [SpinningDriver], and
// [code.hybscloud.com/iox] for adaptive backoff in [PollingDriver].
package tpdio
