// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tpdio

import (
	"fmt"
	"io"
)

// workItemKind tags the closed set of work-item shapes a [Page] can
// hold. spec.md's Design Notes prefer "a tagged variant with at most
// ~6 shapes... over open polymorphism" for exactly this reason: no
// work item kind is ever added by a caller, only the per-value
// formatting of kindFormattedWriter is specialized (by whatever type
// the caller passes to [Stream.SubmitFormatted]).
type workItemKind uint8

const (
	kindPageBreak workItemKind = iota
	kindFormattedWriter
	kindBytesWriter
	kindManipulator
	kindReader
	kindCallback
)

// workItemNode is one slot in a [Page]'s intrusive, insertion-ordered
// list. next is the "next-slot header" of spec.md §3: nil is the
// sentinel that terminates a [Page.drain] walk. Only the fields that
// matter for kind are populated; the others stay zero.
//
// A single tagged struct (rather than an interface per work item) is
// the Go-idiomatic reading of "placement construction: no runtime
// construction of objects at raw pointers is needed — the bump page
// returns a typed slot... and a constructor builds the variant
// directly" (spec.md, Design Notes): the "typed slot" here is this
// struct, sized once, reused by every submission.
type workItemNode struct {
	next *workItemNode
	kind workItemKind

	value    any                   // kindFormattedWriter: a copy of the submitted value
	bytes    []byte                // kindBytesWriter: an owned copy of the submitted bytes
	manip    func(io.Writer) error // kindManipulator
	readerOf io.ReaderFrom         // kindReader: caller-owned, borrowed for the call's duration
	onRead   func(n int64, err error)
	callback func() // kindCallback
}

// reset clears every field so the slot holds no references once the
// node's apply has run and the page is recycled; this is what lets the
// garbage collector reclaim whatever a formatted value or bytes copy
// pointed at.
func (n *workItemNode) reset() {
	*n = workItemNode{}
}

// apply executes the work item against the given sink/source per
// spec.md §4.2: a writer kind reads sink and ignores source, a reader
// kind reads source and ignores sink, a neutral kind (callback,
// page-break) needs neither. It must complete in bounded time from the
// consumer's perspective; blocking I/O on the sink/source is
// permitted but degrades latency, exactly as spec.md documents.
func (n *workItemNode) apply(sink io.Writer, source io.Reader) (err error) {
	switch n.kind {
	case kindPageBreak:
		// do exactly nothing, mirroring original_source's page_break::apply
		return nil
	case kindFormattedWriter:
		assertf(sink != nil, "formatted write submitted but no sink configured")
		_, err = fmt.Fprint(sink, n.value)
		if err != nil {
			return &WriteError{Err: err}
		}
		return nil
	case kindBytesWriter:
		assertf(sink != nil, "byte write submitted but no sink configured")
		_, err = sink.Write(n.bytes)
		if err != nil {
			return &WriteError{Err: err}
		}
		return nil
	case kindManipulator:
		assertf(sink != nil, "manipulator submitted but no sink configured")
		if err = n.manip(sink); err != nil {
			return &WriteError{Err: err}
		}
		return nil
	case kindReader:
		assertf(source != nil, "reader submitted but no source configured")
		read, rerr := n.readerOf.ReadFrom(source)
		if n.onRead != nil {
			n.onRead(read, rerr)
		}
		if rerr != nil {
			return &ReadError{Err: rerr}
		}
		return nil
	case kindCallback:
		n.callback()
		return nil
	default:
		assertf(false, "unknown work item kind %d", n.kind)
		return nil
	}
}
