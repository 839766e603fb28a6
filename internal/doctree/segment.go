/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package doctree

import (
	"errors"
	"fmt"
	"slices"

	"turnip/internal/errs"
)

// ErrIndexOutOfRange is returned by InsertHeader for an index outside [0, len].
var ErrIndexOutOfRange = errors.New("segment index out of range")

// DocSegment is a section: a header, the blocks that follow it, and its
// subsections. Every subsegment's weight is strictly greater than the segment's own.
type DocSegment struct {
	header      Header
	Contents    *BlockScope
	subsegments []*DocSegment
}

// NewDocSegment builds a segment. contents may be nil for an empty body.
func NewDocSegment(h Header, contents *BlockScope, subsegments ...*DocSegment) (*DocSegment, error) {
	if isNil(h) {
		return nil, &errs.StructuralTypeError{Container: "DocSegment", Index: -1, Value: h, Want: "Header"}
	}
	if contents == nil {
		contents = &BlockScope{}
	}
	seg := &DocSegment{header: h, Contents: contents}
	for i, sub := range subsegments {
		if sub == nil {
			return nil, &errs.StructuralTypeError{Container: "DocSegment.subsegments", Index: i, Value: sub, Want: "*DocSegment"}
		}
		if err := seg.PushSubsegment(sub); err != nil {
			return nil, err
		}
	}
	return seg, nil
}

func (s *DocSegment) Header() Header { return s.header }
func (s *DocSegment) Weight() int64  { return s.header.HeaderWeight() }

func (s *DocSegment) Subsegments() []*DocSegment { return slices.Clone(s.subsegments) }

func (s *DocSegment) Children() []any {
	out := []any{s.header, s.Contents}
	for _, sub := range s.subsegments {
		out = append(out, sub)
	}
	return out
}

// PushSubsegment appends sub directly as the last child.
func (s *DocSegment) PushSubsegment(sub *DocSegment) error {
	if sub == nil {
		return &errs.StructuralTypeError{Container: "DocSegment.subsegments", Index: len(s.subsegments), Value: sub, Want: "*DocSegment"}
	}
	if sub.Weight() <= s.Weight() {
		return &errs.WeightOrderError{Parent: s.Weight(), Got: sub.Weight()}
	}
	s.subsegments = append(s.subsegments, sub)
	return nil
}

// AppendHeader opens a new segment for h at the end of this segment's subtree.
// The header nests under the most recent open descendant whose weight is
// smaller, or becomes a direct child. h must be deeper than s.
func (s *DocSegment) AppendHeader(h Header) (*DocSegment, error) {
	if isNil(h) {
		return nil, &errs.StructuralTypeError{Container: "DocSegment", Index: -1, Value: h, Want: "Header"}
	}
	if h.HeaderWeight() <= s.Weight() {
		return nil, &errs.WeightOrderError{Parent: s.Weight(), Got: h.HeaderWeight()}
	}
	seg := &DocSegment{header: h, Contents: &BlockScope{}}
	appendSegment(&s.subsegments, seg)
	return seg, nil
}

// InsertHeader places a segment for h at index among the direct children.
// See insertHeader for the placement rules.
func (s *DocSegment) InsertHeader(index int, h Header) (*DocSegment, error) {
	if isNil(h) {
		return nil, &errs.StructuralTypeError{Container: "DocSegment", Index: -1, Value: h, Want: "Header"}
	}
	if h.HeaderWeight() <= s.Weight() {
		return nil, &errs.WeightOrderError{Parent: s.Weight(), Got: h.HeaderWeight()}
	}
	return insertHeader(&s.subsegments, index, h)
}

// Document is the root: contents before the first header, then the top-level segments.
type Document struct {
	Contents *BlockScope
	segments []*DocSegment
}

// NewDocument builds a document. contents may be nil.
func NewDocument(contents *BlockScope, segments ...*DocSegment) (*Document, error) {
	if contents == nil {
		contents = &BlockScope{}
	}
	if err := checkTyped("Document.segments", "*DocSegment", segments); err != nil {
		return nil, err
	}
	return &Document{Contents: contents, segments: slices.Clone(segments)}, nil
}

// DocumentOf builds a document from dynamically typed segment values.
func DocumentOf(contents *BlockScope, segments []any) (*Document, error) {
	segs, err := itemsOf[*DocSegment]("Document.segments", "*DocSegment", segments)
	if err != nil {
		return nil, err
	}
	return NewDocument(contents, segs...)
}

func (d *Document) Segments() []*DocSegment { return slices.Clone(d.segments) }

func (d *Document) Children() []any {
	out := []any{d.Contents}
	for _, seg := range d.segments {
		out = append(out, seg)
	}
	return out
}

// PushSegment appends seg as the last top-level segment.
func (d *Document) PushSegment(seg *DocSegment) error {
	if seg == nil {
		return &errs.StructuralTypeError{Container: "Document.segments", Index: len(d.segments), Value: seg, Want: "*DocSegment"}
	}
	d.segments = append(d.segments, seg)
	return nil
}

// AppendHeader opens a new segment for h at the end of the document, nesting
// it under the most recent open segment whose weight is smaller.
func (d *Document) AppendHeader(h Header) (*DocSegment, error) {
	if isNil(h) {
		return nil, &errs.StructuralTypeError{Container: "Document", Index: -1, Value: h, Want: "Header"}
	}
	seg := &DocSegment{header: h, Contents: &BlockScope{}}
	appendSegment(&d.segments, seg)
	return seg, nil
}

// AppendSegment places an already built segment by the same rule as AppendHeader.
func (d *Document) AppendSegment(seg *DocSegment) error {
	if seg == nil {
		return &errs.StructuralTypeError{Container: "Document.segments", Index: len(d.segments), Value: seg, Want: "*DocSegment"}
	}
	appendSegment(&d.segments, seg)
	return nil
}

// InsertHeader places a segment for h at index among the top-level segments.
func (d *Document) InsertHeader(index int, h Header) (*DocSegment, error) {
	if isNil(h) {
		return nil, &errs.StructuralTypeError{Container: "Document", Index: -1, Value: h, Want: "Header"}
	}
	return insertHeader(&d.segments, index, h)
}

// Last returns the deepest most recently opened segment, or nil when the
// document has no segments. New blocks belong to its contents.
func (d *Document) Last() *DocSegment {
	if len(d.segments) == 0 {
		return nil
	}
	seg := d.segments[len(d.segments)-1]
	for len(seg.subsegments) > 0 {
		seg = seg.subsegments[len(seg.subsegments)-1]
	}
	return seg
}

// appendSegment delegates to the last sibling while it is shallower than seg,
// otherwise seg becomes a new sibling at this level.
func appendSegment(list *[]*DocSegment, seg *DocSegment) {
	if n := len(*list); n > 0 {
		last := (*list)[n-1]
		if seg.Weight() > last.Weight() {
			appendSegment(&last.subsegments, seg)
			return
		}
	}
	*list = append(*list, seg)
}

// insertHeader places a new segment for h at index within list.
// With A the sibling before index and B the sibling at index:
//   - A shallower than h: A swallows the segment at the end of its subtree.
//   - no B, or h not shallower than B: plain sibling at index.
//   - otherwise the new segment adopts the run of siblings starting at B that
//     are deeper than h, and takes their place.
func insertHeader(list *[]*DocSegment, index int, h Header) (*DocSegment, error) {
	segs := *list
	if index < 0 || index > len(segs) {
		return nil, fmt.Errorf("insert at %d of %d: %w", index, len(segs), ErrIndexOutOfRange)
	}
	w := h.HeaderWeight()
	seg := &DocSegment{header: h, Contents: &BlockScope{}}
	if index > 0 && segs[index-1].Weight() < w {
		appendSegment(&segs[index-1].subsegments, seg)
		return seg, nil
	}
	end := index
	for end < len(segs) && segs[end].Weight() > w {
		end++
	}
	seg.subsegments = append(seg.subsegments, segs[index:end]...)
	out := make([]*DocSegment, 0, len(segs)-(end-index)+1)
	out = append(out, segs[:index]...)
	out = append(out, seg)
	out = append(out, segs[end:]...)
	*list = out
	return seg, nil
}
