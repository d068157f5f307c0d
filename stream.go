// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tpdio

import (
	"io"

	"code.hybscloud.com/atomix"
)

// Option configures a [Stream] at construction. Following the
// teacher's fluent-builder convention (options.go's Builder) without
// the multi-algorithm selection logic that doesn't apply here: a
// Stream has only a couple of independent knobs, so functional options
// fit better than a dedicated builder type.
type Option func(*Stream)

// WithErrorPolicy overrides the default [NopErrorPolicy].
func WithErrorPolicy(policy ErrorPolicy) Option {
	return func(s *Stream) { s.policy = policy }
}

// SuppressWorkAvailable stops Stream from calling its driver's
// WorkAvailable after every enqueue. Use this when the caller already
// drives the stream on a tight loop (e.g. an [IdleDriver] or a
// manually-pumped event loop) and the notification would be wasted
// work, mirroring the original's suppress_work_available_call_ flag.
func SuppressWorkAvailable() Option {
	return func(s *Stream) { s.suppressWorkAvailable = true }
}

// Stream is the async formatted-output facade: it owns one [TPD]
// channel, one sink, one source, and a reference to an external
// [Driver]. Submissions never block on I/O; they bump-allocate a work
// item into the producer page and return. The driver eventually calls
// RunOnce, which drains the consumer page by applying every item to
// sink/source in order.
//
// A Stream's sink and source may each be nil if the caller never
// submits the corresponding kind of work item. Submitting one without
// the matching handle configured is not rejected at submission; the
// item panics when applied on the consumer goroutine, and that panic
// is recovered and routed to the ErrorPolicy's CatchUnknownError.
type Stream struct {
	tpd    TPD
	page1  *Page
	page2  *Page
	sink   io.Writer
	source io.Reader
	driver Driver
	policy ErrorPolicy

	suppressWorkAvailable bool
	closed                atomix.Uint64 // 0 while open, 1 once Close has run
}

const (
	streamOpen   = 0
	streamClosed = 1
)

// NewStream constructs a Stream over sink and/or source, registers it
// with driver, and returns it ready for use. Either sink or source may
// be nil.
func NewStream(sink io.Writer, source io.Reader, driver Driver, opts ...Option) *Stream {
	assertf(driver != nil, "tpdio: NewStream given a nil driver")

	s := &Stream{
		sink:   sink,
		source: source,
		driver: driver,
		policy: NopErrorPolicy{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.page1 = NewPage()
	s.page2 = NewPage()
	s.tpd.Init(s.page1, s.page2)
	s.driver.Register(s)
	return s
}

// Warmup primes the inserter's page ahead of the first submission, so
// that call doesn't pay for a cold page clear.
func (s *Stream) Warmup() { s.tpd.WarmupBeforeInserting() }

// submit opens an insert transaction, lets populate fill in the
// allocated slot, commits, and signals the driver. Concurrent callers
// are serialized by the TPD's own insertLock (held for the duration of
// the transaction), not by anything in Stream: this is the contended
// spinlock the package's Non-goals describe as the multi-producer
// throughput ceiling.
func (s *Stream) submit(populate func(*workItemNode)) {
	assertf(s.closed.LoadAcquire() == streamOpen, "tpdio: submit called on a closed Stream")

	var tx InsertTransaction
	s.tpd.BeginInsert(&tx)
	slot := tx.Page().allocate()
	populate(slot)
	tx.Commit()

	if !s.suppressWorkAvailable {
		s.driver.WorkAvailable()
	}
}

// SubmitFormatted enqueues value to be written to the sink with
// fmt.Fprint's default formatting, in the order submitted relative to
// every other submission.
func (s *Stream) SubmitFormatted(value any) {
	s.submit(func(n *workItemNode) {
		n.kind = kindFormattedWriter
		n.value = value
	})
}

// SubmitBytes enqueues a write of an owned copy of b to the sink.
func (s *Stream) SubmitBytes(b []byte) {
	owned := make([]byte, len(b))
	copy(owned, b)
	s.submit(func(n *workItemNode) {
		n.kind = kindBytesWriter
		n.bytes = owned
	})
}

// SubmitManipulator enqueues an arbitrary function to run against the
// sink, for cases formatted/raw writes don't cover (e.g. wrapping
// another io.Writer's method the caller needs invoked on the consumer
// goroutine).
func (s *Stream) SubmitManipulator(manip func(io.Writer) error) {
	assertf(manip != nil, "tpdio: SubmitManipulator given a nil function")
	s.submit(func(n *workItemNode) {
		n.kind = kindManipulator
		n.manip = manip
	})
}

// SubmitReader enqueues a read from the source into r, reported to
// onRead (if non-nil) once applied. r is borrowed only for the
// duration of the consumer's call to r.ReadFrom.
func (s *Stream) SubmitReader(r io.ReaderFrom, onRead func(n int64, err error)) {
	assertf(r != nil, "tpdio: SubmitReader given a nil reader")
	s.submit(func(n *workItemNode) {
		n.kind = kindReader
		n.readerOf = r
		n.onRead = onRead
	})
}

// SubmitCallback enqueues a completion notification: cb runs on the
// consumer goroutine once every submission made before it has been
// applied.
func (s *Stream) SubmitCallback(cb func()) {
	assertf(cb != nil, "tpdio: SubmitCallback given a nil function")
	s.submit(func(n *workItemNode) {
		n.kind = kindCallback
		n.callback = cb
	})
}

// RunOnce attempts a single consume transaction and, if one was
// opened, drains it. It reports whether any item was applied. This is
// the entry point a [Driver] calls; callers driving a Stream manually
// (with an [IdleDriver]) can call it directly too.
//
// RunOnce deliberately does not reset the page once it's drained: that
// is left for the producer side (BeginInsert/WarmupBeforeInserting) to
// do lazily the next time it takes ownership of the page, so the
// page's storage bounces between CPU caches once per cycle instead of
// twice.
func (s *Stream) RunOnce() bool {
	var tx ConsumeTransaction
	result := s.tpd.TryConsume(&tx)
	if !result.Consumed() {
		return false
	}
	defer tx.Commit()

	page := tx.Page()
	empty := page.empty()
	page.drain(s.sink, s.source, s.policy)
	return !empty
}

// TryDrain is an alias for RunOnce kept for symmetry with the
// original's try_drain: a single, non-blocking attempt to consume and
// apply one page's worth of work.
func (s *Stream) TryDrain() bool { return s.RunOnce() }

// DrainUntilEmpty opens and drains consume transactions until the
// channel reports no more work; an attempt that finds the queue
// non-empty but cannot open a transaction (the producer or another
// consumer holds a lock) is retried. It blocks the calling goroutine for as long as work keeps
// arriving from some other producer; callers on a background driver
// goroutine should prefer this over a bare loop of RunOnce when they
// want to catch up fully before sleeping again.
func (s *Stream) DrainUntilEmpty() {
	for {
		var tx ConsumeTransaction
		result := s.tpd.TryConsume(&tx)
		if !result.Consumed() {
			if !result.QueueNotEmpty() {
				return
			}
			continue
		}
		tx.Page().drain(s.sink, s.source, s.policy)
		tx.Commit()
	}
}

// Flush drains everything currently queued and, if the sink supports
// it, flushes it downstream.
func (s *Stream) Flush() {
	s.DrainUntilEmpty()
	type flusher interface{ Flush() error }
	if f, ok := s.sink.(flusher); ok {
		_ = f.Flush()
	}
}

// Close unregisters the Stream from its driver and then blocks,
// draining synchronously, until the channel is empty. This mirrors
// the original facade's destruction sequence and is required to avoid
// losing queued work.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwapAcqRel(streamOpen, streamClosed) {
		return nil
	}

	s.driver.Unregister(s)
	for !s.tpd.Empty() {
		s.DrainUntilEmpty()
	}
	return nil
}
