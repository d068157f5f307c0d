// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tpdio

import "code.hybscloud.com/atomix"

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill a cache line after one 8-byte field.
type padShort [64 - 8]byte

// ConsumeOutcome is the bitset a [TPD.TryConsume] result carries. It
// mirrors the three independent facts a caller needs: did a transaction
// actually get opened, is the queue provably non-empty, and did the
// attempt lose a race against too many concurrent consumers.
type ConsumeOutcome uint8

const (
	consumeNoMoreWork       ConsumeOutcome = 0
	consumeConsumed         ConsumeOutcome = 1 << 0
	consumeQueueNotEmpty    ConsumeOutcome = 1 << 1
	consumeConsumerCongestion ConsumeOutcome = 1 << 2
)

// ConsumeResult reports the outcome of a [TPD.TryConsume] attempt.
type ConsumeResult struct{ outcome ConsumeOutcome }

// Consumed reports whether the transaction was opened and holds a page
// the caller must drain and commit.
func (r ConsumeResult) Consumed() bool { return r.outcome&consumeConsumed != 0 }

// QueueNotEmpty reports whether the queue is known to hold unconsumed
// work, even when this attempt did not itself consume anything.
func (r ConsumeResult) QueueNotEmpty() bool { return r.outcome&consumeQueueNotEmpty != 0 }

// TooManyConsumers reports whether this attempt lost the consumer
// spinlock to another concurrent consumer. The queue is not empty, and
// the caller may retry.
func (r ConsumeResult) TooManyConsumers() bool { return r.outcome&consumeConsumerCongestion != 0 }

// InsertResult reports whether [TPD.BeginInsert] handed the caller a
// freshly cleared page or one that already had items queued on it.
type InsertResult struct{ freshPage bool }

// FreshPage reports whether the transaction's page had no prior
// consumer-visible items, i.e. this insert is the first into the page
// since the consumer last saw it emptied.
func (r InsertResult) FreshPage() bool { return r.freshPage }

// InsertTransaction is the producer-side handle returned by
// [TPD.BeginInsert]. The caller must allocate work items into Page and
// call Commit exactly once.
type InsertTransaction struct {
	page   *Page
	parent *TPD
}

// Page returns the page the producer should allocate work items into.
// It is nil until the transaction has been opened by BeginInsert.
func (t *InsertTransaction) Page() *Page { return t.page }

// Commit releases the producer spinlock and, if the consumer
// complained that it could not switch pages on its own, switches pages
// on the consumer's behalf before releasing. Commit is safe to call
// more than once; only the first call after a successful BeginInsert
// has any effect.
func (t *InsertTransaction) Commit() {
	if t.parent == nil {
		return
	}
	p := t.parent
	if p.inserterSwitchedPages != p.consumerCouldntSwitch.LoadRelaxed() {
		if p.consumeLock.tryLock() {
			if !(p.lastEnqueuedSeqNum.LoadRelaxed() > p.lastConsumedSeqNum.LoadRelaxed()) {
				p.switchPages()
				p.inserterSwitchedPages = p.consumerCouldntSwitch.LoadRelaxed()
			}
			p.consumeLock.unlock()
		}
	}
	p.insertLock.unlock()
	t.parent = nil
	t.page = nil
}

// ConsumeTransaction is the consumer-side handle returned by
// [TPD.TryConsume] when [ConsumeResult.Consumed] is true. The caller
// must drain Page and call Commit exactly once.
type ConsumeTransaction struct {
	page   *Page
	parent *TPD
}

// Page returns the page the consumer should drain.
func (t *ConsumeTransaction) Page() *Page { return t.page }

// Commit releases the consumer spinlock and, if the producer is
// currently idle and has something waiting on the next page, switches
// pages before releasing.
func (t *ConsumeTransaction) Commit() {
	if t.parent == nil {
		return
	}
	p := t.parent
	if p.insertLock.tryLock() {
		if p.lastInsertedSeqNum.LoadRelaxed() > p.lastEnqueuedSeqNum.LoadRelaxed() {
			p.switchPages()
		}
		p.insertLock.unlock()
	}
	p.consumeLock.unlock()
	t.parent = nil
	t.page = nil
}

// TPD is the two-page disruptor channel described in spec.md §4.3: a
// single-producer/single-consumer-oriented, lock-disciplined channel
// over exactly two [Page]s, with cooperative page-swapping driven by
// whichever side is currently least busy.
//
// TPD is not safe to copy after Init. Its zero value is uninitialized;
// call Init before any other method.
//
// The field layout below partitions state across four 64-byte cache
// lines, exactly as the channel it's grounded on does: each comment
// names which side writes that line, so a reader can tell at a glance
// why the padding is there instead of having to infer it from access
// patterns scattered across the file.
type TPD struct {
	// cache line 1: written only by the inserter (producer) thread.
	insertLock            spinlock
	lastInsertedSeqNum    atomix.Uint64
	inserterSwitchedPages uint64
	seqNoGenerator        uint64
	_                     padShort

	// cache line 2: written only by the consumer thread.
	consumeLock        spinlock
	lastConsumedSeqNum atomix.Uint64
	_                  padShort

	// cache line 3: written by whichever side ends up switching pages,
	// which in the steady state is "whichever side is least busy".
	inserter            *Page
	consumer            *Page
	lastEnqueuedSeqNum   atomix.Uint64
	_                    pad

	// cache line 4: touched by the consumer, very occasionally, and
	// read by the inserter on every commit.
	consumerCouldntSwitch atomix.Uint64
	_                     padShort
}

// NewTPD returns an uninitialized channel. Call Init before use.
func NewTPD() *TPD {
	t := &TPD{}
	t.seqNoGenerator = 1
	return t
}

// Init supplies the channel's two pages. It must be called exactly
// once, before any other method, and never concurrently with another
// method call.
func (t *TPD) Init(page1, page2 *Page) {
	assertf(!t.Initialized(), "tpd: Init called on an already-initialized channel")
	assertf(page1 != nil && page2 != nil, "tpd: Init given a nil page")

	t.inserter = page1
	t.consumer = page2
	t.seqNoGenerator = 1
	t.lastInsertedSeqNum.StoreRelaxed(1)
	t.lastEnqueuedSeqNum.StoreRelaxed(1)
	t.lastConsumedSeqNum.StoreRelaxed(1)
	t.consumerCouldntSwitch.StoreRelaxed(0)
	t.inserterSwitchedPages = 0

	t.consumer.setSequenceNumber(0)
	t.inserter.setSequenceNumber(0)
}

// Initialized reports whether Init has been called.
func (t *TPD) Initialized() bool { return t.inserter != nil && t.consumer != nil }

// Empty reports whether every inserted item has been consumed. It is a
// dirty read with respect to a concurrently running producer or
// consumer and is intended for diagnostics, not for gating work.
func (t *TPD) Empty() bool {
	assertf(t.Initialized(), "tpd: Empty called before Init")
	return t.lastInsertedSeqNum.LoadRelaxed() == t.lastConsumedSeqNum.LoadRelaxed()
}

// Size returns the number of inserts performed but not yet consumed,
// based on a dirty (unsynchronized) pair of reads. The read order
// matters only to keep the subtraction from wrapping negative under
// normal operation; the result is always a best-effort estimate.
func (t *TPD) Size() uint64 {
	assertf(t.Initialized(), "tpd: Size called before Init")
	c := t.lastConsumedSeqNum.LoadRelaxed()
	i := t.lastInsertedSeqNum.LoadRelaxed()
	return i - c
}

// WarmupBeforeInserting optionally primes the inserter's page ahead of
// the first BeginInsert, so that call doesn't pay for a cold clear
// when it's on a latency-sensitive path. It is safe but unnecessary to
// skip.
func (t *TPD) WarmupBeforeInserting() {
	assertf(t.Initialized(), "tpd: WarmupBeforeInserting called before Init")
	t.insertLock.lock()
	defer t.insertLock.unlock()

	isn := t.inserter.sequenceNumber()
	esn := t.lastEnqueuedSeqNum.LoadRelaxed()
	if isn < esn {
		t.inserter.reset()
		t.inserter.setSequenceNumber(esn)
	}
}

// BeginInsert opens a producer transaction on the given, freshly
// zero-valued transaction. The caller must allocate its work items
// into transaction.Page() and then call transaction.Commit().
func (t *TPD) BeginInsert(transaction *InsertTransaction) InsertResult {
	assertf(t.Initialized(), "tpd: BeginInsert called before Init")
	assertf(transaction.page == nil, "tpd: BeginInsert given an open or uncommitted transaction")

	t.insertLock.lock()
	t.seqNoGenerator++
	sequenceNumber := t.seqNoGenerator

	transaction.page = t.inserter
	transaction.parent = t

	result := InsertResult{freshPage: false}
	isn := t.inserter.sequenceNumber()
	esn := t.lastEnqueuedSeqNum.LoadRelaxed()
	if isn <= esn {
		result.freshPage = true
		if isn < esn {
			t.inserter.reset()
		}
	}

	t.inserter.setSequenceNumber(sequenceNumber)
	t.lastInsertedSeqNum.StoreRelaxed(sequenceNumber)
	return result

	// transaction.Commit releases insertLock and may switch pages.
}

// TryConsume attempts to open a consumer transaction on the given,
// freshly zero-valued transaction. When the result's Consumed method
// reports true, the caller must drain transaction.Page() and then call
// transaction.Commit(); otherwise the transaction was left unopened
// and the caller owns nothing to release.
func (t *TPD) TryConsume(transaction *ConsumeTransaction) ConsumeResult {
	assertf(t.Initialized(), "tpd: TryConsume called before Init")
	assertf(transaction.page == nil, "tpd: TryConsume given an open or uncommitted transaction")

	if !(t.lastEnqueuedSeqNum.LoadRelaxed() > t.lastConsumedSeqNum.LoadRelaxed()) {
		locked := t.insertLock.tryLock()
		if !locked {
			// the inserter is mid-transaction, so we cannot switch
			// pages ourselves; complain so it switches on our behalf.
			t.consumerCouldntSwitch.AddAcqRel(1)
			return ConsumeResult{outcome: consumeQueueNotEmpty}
		}
		switchable := t.lastInsertedSeqNum.LoadRelaxed() > t.lastEnqueuedSeqNum.LoadRelaxed()
		if !switchable {
			t.insertLock.unlock()
			return ConsumeResult{outcome: consumeNoMoreWork}
		}
		if !t.consumeLock.tryLock() {
			// another consumer holds the consumer page; switching now
			// would hand that page back to the producer mid-drain.
			t.insertLock.unlock()
			return ConsumeResult{outcome: consumeQueueNotEmpty | consumeConsumerCongestion}
		}
		t.switchPages()
		t.insertLock.unlock()
		if !(t.lastEnqueuedSeqNum.LoadRelaxed() > t.lastConsumedSeqNum.LoadRelaxed()) {
			t.consumeLock.unlock()
			return ConsumeResult{outcome: consumeNoMoreWork}
		}
	} else if !t.consumeLock.tryLock() {
		return ConsumeResult{outcome: consumeQueueNotEmpty | consumeConsumerCongestion}
	}

	transaction.page = t.consumer
	transaction.parent = t
	t.lastConsumedSeqNum.StoreRelaxed(t.consumer.sequenceNumber())
	return ConsumeResult{outcome: consumeConsumed | consumeQueueNotEmpty}

	// transaction.Commit releases consumeLock and may switch pages.
}

// switchPages swaps the inserter and consumer page pointers. The
// caller must hold both insertLock and consumeLock.
func (t *TPD) switchPages() {
	t.inserter, t.consumer = t.consumer, t.inserter

	assertf(t.consumer.sequenceNumber() > t.lastEnqueuedSeqNum.LoadRelaxed(),
		"tpd: switchPages invariant violated: consumer page is not fresher than last enqueued")
	t.lastEnqueuedSeqNum.StoreRelaxed(t.consumer.sequenceNumber())
}
