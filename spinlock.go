// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tpdio

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// spinlock is a single-word mutual-exclusion lock for the TPD's two
// cooperative locks (§4.3: the producer lock and the consumer lock).
//
// Unlike the FAA-based queues in the teacher package, the TPD needs a
// true mutual-exclusion lock rather than a lock-free CAS loop over a
// data slot: lock and tryLock must provide the acquire/release fence
// the channel's unsynchronized counter reads and writes depend on
// (spec.md §5). A single atomix.Uint64 used as a 0/1 flag, claimed via
// CompareAndSwapAcqRel and released via StoreRelease, gives exactly
// that fence using the same primitive the teacher's queues already use
// for their CAS retry loops (mpmc.go, mpsc.go, ...).
type spinlock struct {
	state atomix.Uint64
}

const (
	spinlockUnlocked = 0
	spinlockLocked   = 1
)

// lock blocks, spinning with [spin.Wait], until the lock is acquired.
func (l *spinlock) lock() {
	if l.state.CompareAndSwapAcqRel(spinlockUnlocked, spinlockLocked) {
		return
	}
	sw := spin.Wait{}
	for !l.state.CompareAndSwapAcqRel(spinlockUnlocked, spinlockLocked) {
		sw.Once()
	}
}

// tryLock attempts to acquire the lock without blocking.
func (l *spinlock) tryLock() bool {
	return l.state.CompareAndSwapAcqRel(spinlockUnlocked, spinlockLocked)
}

// unlock releases the lock. The caller must hold it.
func (l *spinlock) unlock() {
	l.state.StoreRelease(spinlockUnlocked)
}
