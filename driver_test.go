// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tpdio_test

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/tpdio"
)

// =============================================================================
// Drivers — each must eventually drain a registered Stream after
// WorkAvailable, without the test itself busy-looping.
// =============================================================================

// drainWatcher wraps a bytes.Buffer and signals a channel once it has seen
// at least wantLen bytes, so a driver test can block on a channel receive
// instead of polling the buffer.
type drainWatcher struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	wantLen int
	done    chan struct{}
	closed  bool
}

func newDrainWatcher(wantLen int) *drainWatcher {
	return &drainWatcher{wantLen: wantLen, done: make(chan struct{})}
}

func (w *drainWatcher) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.buf.Write(p)
	if !w.closed && w.buf.Len() >= w.wantLen {
		w.closed = true
		close(w.done)
	}
	return n, err
}

func TestPollingDriverDrainsAfterWorkAvailable(t *testing.T) {
	d := tpdio.NewPollingDriver(time.Millisecond)
	defer d.Close()

	w := newDrainWatcher(1)
	s := tpdio.NewStream(w, nil, d)
	defer s.Close()

	s.SubmitBytes([]byte("x"))

	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("PollingDriver never drained the submitted item")
	}
}

func TestWaitingDriverDrainsAfterWorkAvailable(t *testing.T) {
	d := tpdio.NewWaitingDriver()
	defer d.Close()

	w := newDrainWatcher(1)
	s := tpdio.NewStream(w, nil, d)
	defer s.Close()

	s.SubmitBytes([]byte("x"))

	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("WaitingDriver never drained the submitted item")
	}
}

func TestSpinningDriverDrainsAfterWorkAvailable(t *testing.T) {
	d := tpdio.NewSpinningDriver()
	defer d.Close()

	w := newDrainWatcher(1)
	s := tpdio.NewStream(w, nil, d)
	defer s.Close()

	s.SubmitBytes([]byte("x"))

	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("SpinningDriver never drained the submitted item")
	}
}

// TestIdleDriverNeverDrainsOnItsOwn checks that an IdleDriver leaves a
// submitted item queued until the caller explicitly drains.
func TestIdleDriverNeverDrainsOnItsOwn(t *testing.T) {
	var buf bytes.Buffer
	s := tpdio.NewStream(&buf, nil, tpdio.IdleDriver{})
	defer s.Close()

	s.SubmitBytes([]byte("x"))
	time.Sleep(20 * time.Millisecond)

	if buf.Len() != 0 {
		t.Fatalf("IdleDriver drained without being asked: buf = %q", buf.String())
	}

	s.DrainUntilEmpty()
	if buf.String() != "x" {
		t.Fatalf("after manual drain: got %q, want %q", buf.String(), "x")
	}
}

// TestDriverMultiplexesSeveralStreams checks that one driver instance drains
// every Stream registered with it, not just the first.
func TestDriverMultiplexesSeveralStreams(t *testing.T) {
	d := tpdio.NewSpinningDriver()
	defer d.Close()

	const streams = 4
	watchers := make([]*drainWatcher, streams)
	ss := make([]*tpdio.Stream, streams)
	for i := range watchers {
		watchers[i] = newDrainWatcher(1)
		ss[i] = tpdio.NewStream(watchers[i], nil, d)
	}
	defer func() {
		for _, s := range ss {
			s.Close()
		}
	}()

	for _, s := range ss {
		s.SubmitBytes([]byte("x"))
	}

	for i, w := range watchers {
		select {
		case <-w.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("stream %d was never drained by the shared driver", i)
		}
	}
}

// TestSuppressWorkAvailableStillDrainsUnderPolling checks that suppressing
// the per-submission notification doesn't starve a stream forever when it's
// registered with a driver that polls on its own schedule.
func TestSuppressWorkAvailableStillDrainsUnderPolling(t *testing.T) {
	d := tpdio.NewPollingDriver(time.Millisecond)
	defer d.Close()

	w := newDrainWatcher(1)
	s := tpdio.NewStream(w, nil, d, tpdio.SuppressWorkAvailable())
	defer s.Close()

	s.SubmitBytes([]byte("x"))

	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("stream with suppressed WorkAvailable was never drained by PollingDriver")
	}
}
