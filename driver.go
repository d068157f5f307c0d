// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tpdio

import (
	"sync"
	"time"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// runner is the subset of [Stream] a [Driver] needs to schedule drains.
// It is satisfied by *Stream; kept as an interface here purely so this
// file doesn't need to know about Stream's other fields.
type runner interface {
	RunOnce() bool
}

// Driver is the external scheduler of the consumer side. A [Stream]
// calls WorkAvailable immediately after every successful enqueue
// (unless suppressed); the driver decides, on its own schedule, when
// to call the stream's RunOnce. The driver's behavior is opaque to the
// stream — this package supplies four, but a caller may implement its
// own (bridging to an existing event loop, for instance).
type Driver interface {
	// Register adds a stream the driver is responsible for draining.
	Register(s runner)
	// Unregister removes a stream; it will no longer be drained by
	// this driver's background activity.
	Unregister(s runner)
	// WorkAvailable is called by a registered stream right after an
	// enqueue. Implementations must not block the caller.
	WorkAvailable()
}

// registry is the stream list shared by the polling, waiting, and
// spinning drivers — the Go analogue of the original service's
// spinlock-guarded vector of registered streams.
type registry struct {
	mu      sync.Mutex
	streams []runner
}

func (r *registry) Register(s runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams = append(r.streams, s)
}

func (r *registry) Unregister(s runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.streams {
		if existing == s {
			r.streams = append(r.streams[:i], r.streams[i+1:]...)
			return
		}
	}
}

// runAll calls RunOnce on every registered stream and reports whether
// any of them applied at least one item.
func (r *registry) runAll() bool {
	r.mu.Lock()
	streams := append([]runner(nil), r.streams...)
	r.mu.Unlock()

	any := false
	for _, s := range streams {
		if s.RunOnce() {
			any = true
		}
	}
	return any
}

// IdleDriver never drains on its own; the caller is responsible for
// invoking Stream.RunOnce or Stream.DrainUntilEmpty itself. Useful for
// tests and deterministic single-goroutine use.
type IdleDriver struct{}

func (IdleDriver) Register(runner)   {}
func (IdleDriver) Unregister(runner) {}
func (IdleDriver) WorkAvailable()    {}

// PollingDriver drains its registered streams on a fixed-period
// background goroutine, additionally backing off with [iox.Backoff]
// on ticks that found nothing to do. This gives the lowest enqueue
// latency among the drivers that don't spin, at the cost of bounded
// additional latency up to the polling period.
type PollingDriver struct {
	registry
	period time.Duration
	done   chan struct{}
	closed sync.Once
}

// NewPollingDriver starts a background goroutine that calls RunOnce on
// every registered stream every period, backing off when idle.
func NewPollingDriver(period time.Duration) *PollingDriver {
	assertf(period > 0, "tpdio: NewPollingDriver given a non-positive period")
	d := &PollingDriver{period: period, done: make(chan struct{})}
	go d.loop()
	return d
}

func (d *PollingDriver) WorkAvailable() {}

func (d *PollingDriver) loop() {
	var backoff iox.Backoff
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			if d.runAll() {
				backoff.Reset()
			} else {
				backoff.Wait()
			}
		}
	}
}

// Close stops the background polling goroutine. It does not drain any
// remaining work; callers should drain registered streams first.
func (d *PollingDriver) Close() {
	d.closed.Do(func() { close(d.done) })
}

// WaitingDriver blocks a background goroutine on a condition variable
// between drains, waking only when WorkAvailable is signalled. This
// gives the lowest power consumption among the supplied drivers, at
// the cost of one wakeup per WorkAvailable call unless the caller
// suppresses the notification (see [SuppressWorkAvailable]).
type WaitingDriver struct {
	registry
	mu      sync.Mutex
	cond    *sync.Cond
	pending bool
	closed  bool
	done    chan struct{}
}

// NewWaitingDriver starts a background goroutine that sleeps until
// WorkAvailable is called, then drains every registered stream.
func NewWaitingDriver() *WaitingDriver {
	d := &WaitingDriver{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.loop()
	return d
}

func (d *WaitingDriver) WorkAvailable() {
	d.mu.Lock()
	d.pending = true
	d.mu.Unlock()
	d.cond.Signal()
}

func (d *WaitingDriver) loop() {
	for {
		d.mu.Lock()
		for !d.pending && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		d.pending = false
		d.mu.Unlock()

		for d.runAll() {
			// keep draining while productive, then go back to sleep
		}
	}
}

// Close wakes and stops the background goroutine. It does not drain
// any remaining work; callers should drain registered streams first.
func (d *WaitingDriver) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()
}

// SpinningDriver drains its registered streams back-to-back on a
// dedicated goroutine, pausing with [spin.Wait] only between
// unproductive passes. This gives the lowest end-to-end latency of the
// supplied drivers at the cost of continuous CPU usage.
type SpinningDriver struct {
	registry
	done chan struct{}
}

// NewSpinningDriver starts the dedicated draining goroutine.
func NewSpinningDriver() *SpinningDriver {
	d := &SpinningDriver{done: make(chan struct{})}
	go d.loop()
	return d
}

func (d *SpinningDriver) WorkAvailable() {}

func (d *SpinningDriver) loop() {
	sw := spin.Wait{}
	for {
		select {
		case <-d.done:
			return
		default:
		}
		if !d.runAll() {
			sw.Once()
		}
	}
}

// Close stops the background spinning goroutine. It does not drain any
// remaining work; callers should drain registered streams first.
func (d *SpinningDriver) Close() {
	close(d.done)
}
