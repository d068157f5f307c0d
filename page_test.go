// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tpdio

import (
	"bytes"
	"fmt"
	"io"
	"testing"
)

// =============================================================================
// Page basic allocation / drain / reset
//
// Page's allocator surface is unexported (the TPD is its only caller), so
// these tests live in package tpdio rather than tpdio_test.
// =============================================================================

func allocateFormatted(p *Page, v any) {
	n := p.allocate()
	n.kind = kindFormattedWriter
	n.value = v
}

func allocateBytes(p *Page, b []byte) {
	n := p.allocate()
	n.kind = kindBytesWriter
	n.bytes = b
}

func TestPageEmptyInitially(t *testing.T) {
	p := NewPage()
	var buf bytes.Buffer
	p.drain(&buf, nil, nil)
	if buf.Len() != 0 {
		t.Fatalf("drain on a fresh page wrote %q, want nothing", buf.String())
	}
}

func TestPageDrainAppliesInOrder(t *testing.T) {
	p := NewPage()
	for i := 0; i < 5; i++ {
		allocateFormatted(p, i)
	}

	var buf bytes.Buffer
	p.drain(&buf, nil, nil)
	want := "01234"
	if buf.String() != want {
		t.Fatalf("drain: got %q, want %q", buf.String(), want)
	}
}

func TestPageResetClearsAndRearms(t *testing.T) {
	p := NewPage()
	allocateFormatted(p, "x")
	p.reset()

	var buf bytes.Buffer
	p.drain(&buf, nil, nil)
	if buf.Len() != 0 {
		t.Fatalf("drain after reset wrote %q, want nothing", buf.String())
	}

	allocateFormatted(p, "y")
	buf.Reset()
	p.drain(&buf, nil, nil)
	if buf.String() != "y" {
		t.Fatalf("drain after reuse: got %q, want %q", buf.String(), "y")
	}
}

// TestPageGrowthCrossesStoragePageBoundary forces at least one storage-page
// boundary crossing and checks every item still drains exactly once, in
// order, despite the page-break node spliced in at the boundary.
func TestPageGrowthCrossesStoragePageBoundary(t *testing.T) {
	p := NewPage()
	const n = 10000
	for i := 0; i < n; i++ {
		allocateFormatted(p, i)
	}

	var buf bytes.Buffer
	p.drain(&buf, nil, nil)

	var want bytes.Buffer
	for i := 0; i < n; i++ {
		fmt.Fprint(&want, i)
	}
	if buf.String() != want.String() {
		t.Fatalf("drain across growth: length got %d, want %d", buf.Len(), want.Len())
	}
}

func TestPageEmptyReportsAllocationState(t *testing.T) {
	p := NewPage()
	if !p.empty() {
		t.Fatalf("empty: fresh page reported non-empty")
	}
	allocateFormatted(p, 1)
	if p.empty() {
		t.Fatalf("empty: page with one allocation reported empty")
	}
	p.reset()
	if !p.empty() {
		t.Fatalf("empty: page reported non-empty immediately after reset")
	}
}

// TestPageDrainContinuesPastFailingItem checks that one item's write error
// does not stop the rest of the page from draining.
func TestPageDrainContinuesPastFailingItem(t *testing.T) {
	p := NewPage()
	allocateFormatted(p, "a")
	allocateBytes(p, []byte("b"))
	allocateFormatted(p, "c")

	sink := &failingWriter{failAfter: 1}
	policy := &CountingErrorPolicy{}
	p.drain(sink, nil, policy)

	if policy.Total() == 0 {
		t.Fatalf("CountingErrorPolicy saw no failures, want at least one")
	}
	if sink.calls != 3 {
		t.Fatalf("writer calls: got %d, want 3 (drain must not stop at the failing item)", sink.calls)
	}
}

// TestPageDrainRecoversPanic checks that a manipulator panicking mid-drain is
// recovered and routed to the policy, not propagated to the caller.
func TestPageDrainRecoversPanic(t *testing.T) {
	p := NewPage()
	n := p.allocate()
	n.kind = kindManipulator
	n.manip = func(w io.Writer) error {
		panic("boom")
	}
	allocateFormatted(p, "after")

	var buf bytes.Buffer
	policy := &CountingErrorPolicy{}
	p.drain(&buf, nil, policy)

	if policy.UnknownErrors() != 1 {
		t.Fatalf("UnknownErrors: got %d, want 1", policy.UnknownErrors())
	}
	if buf.String() != "after" {
		t.Fatalf("drain after recovered panic: got %q, want %q", buf.String(), "after")
	}
}

// failingWriter fails every call at or after failAfter, counting how many
// times Write was invoked regardless of outcome.
type failingWriter struct {
	calls     int
	failAfter int
}

func (w *failingWriter) Write(b []byte) (int, error) {
	w.calls++
	if w.calls > w.failAfter {
		return 0, fmt.Errorf("boom")
	}
	return len(b), nil
}
