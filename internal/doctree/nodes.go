/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package doctree holds the typed document tree produced by the parser:
// inline and block nodes, the sentence/paragraph containers, and the
// Document/DocSegment section hierarchy.
//
// Capabilities are interfaces. A node is Inline if it has an InlineNode method,
// a Block if it has a BlockNode method, and a Header if it is a Block that also
// reports a weight. Containers check their element types on construction and on
// every push; nothing is silently coerced or dropped.
package doctree

import (
	"reflect"
	"slices"

	"turnip/internal/errs"
)

// Inline is any node usable where inline content is expected.
type Inline interface {
	InlineNode()
}

// Block is any node usable where block content is expected.
type Block interface {
	BlockNode()
}

// Header is a Block carrying the weight that decides section nesting.
// Smaller weights are shallower.
type Header interface {
	Block
	HeaderWeight() int64
}

// Parent is implemented by custom nodes whose children should be visible to Walk.
type Parent interface {
	Children() []any
}

// InlineMarker can be embedded by custom node types to declare the Inline capability.
type InlineMarker struct{}

func (InlineMarker) InlineNode() {}

// BlockMarker can be embedded by custom node types to declare the Block capability.
type BlockMarker struct{}

func (BlockMarker) BlockNode() {}

// Text is an immutable run of characters.
type Text string

func (Text) InlineNode() {}

func (t Text) String() string { return string(t) }

// Raw is an immutable run of characters that renderers must emit without escaping.
type Raw string

func (Raw) InlineNode() {}

func (r Raw) String() string { return string(r) }

// InlineScope is an ordered run of Inline nodes created by an inline {...} region.
type InlineScope struct {
	items []Inline
}

func (*InlineScope) InlineNode() {}

// NewInlineScope builds a scope from already-typed items. Nil items are rejected.
func NewInlineScope(items ...Inline) (*InlineScope, error) {
	if err := checkTyped("InlineScope", "Inline", items); err != nil {
		return nil, err
	}
	return &InlineScope{items: slices.Clone(items)}, nil
}

// InlineScopeOf builds a scope from dynamically typed values, each of which must be Inline.
func InlineScopeOf(values []any) (*InlineScope, error) {
	items, err := itemsOf[Inline]("InlineScope", "Inline", values)
	if err != nil {
		return nil, err
	}
	return &InlineScope{items: items}, nil
}

// Push appends n.
func (s *InlineScope) Push(n Inline) error {
	if isNil(n) {
		return &errs.StructuralTypeError{Container: "InlineScope", Index: len(s.items), Value: n, Want: "Inline"}
	}
	s.items = append(s.items, n)
	return nil
}

func (s *InlineScope) Items() []Inline { return slices.Clone(s.items) }
func (s *InlineScope) Len() int        { return len(s.items) }
func (s *InlineScope) Children() []any { return toAny(s.items) }

// Sentence is an ordered run of Inline nodes forming one sentence.
type Sentence struct {
	items []Inline
}

func NewSentence(items ...Inline) (*Sentence, error) {
	if err := checkTyped("Sentence", "Inline", items); err != nil {
		return nil, err
	}
	return &Sentence{items: slices.Clone(items)}, nil
}

func SentenceOf(values []any) (*Sentence, error) {
	items, err := itemsOf[Inline]("Sentence", "Inline", values)
	if err != nil {
		return nil, err
	}
	return &Sentence{items: items}, nil
}

func (s *Sentence) Push(n Inline) error {
	if isNil(n) {
		return &errs.StructuralTypeError{Container: "Sentence", Index: len(s.items), Value: n, Want: "Inline"}
	}
	s.items = append(s.items, n)
	return nil
}

func (s *Sentence) Items() []Inline { return slices.Clone(s.items) }
func (s *Sentence) Len() int        { return len(s.items) }
func (s *Sentence) Children() []any { return toAny(s.items) }

// Paragraph is an ordered run of Sentences.
type Paragraph struct {
	sentences []*Sentence
}

func (*Paragraph) BlockNode() {}

func NewParagraph(sentences ...*Sentence) (*Paragraph, error) {
	if err := checkTyped("Paragraph", "*Sentence", sentences); err != nil {
		return nil, err
	}
	return &Paragraph{sentences: slices.Clone(sentences)}, nil
}

func ParagraphOf(values []any) (*Paragraph, error) {
	items, err := itemsOf[*Sentence]("Paragraph", "*Sentence", values)
	if err != nil {
		return nil, err
	}
	return &Paragraph{sentences: items}, nil
}

func (p *Paragraph) Push(s *Sentence) error {
	if s == nil {
		return &errs.StructuralTypeError{Container: "Paragraph", Index: len(p.sentences), Value: s, Want: "*Sentence"}
	}
	p.sentences = append(p.sentences, s)
	return nil
}

func (p *Paragraph) Sentences() []*Sentence { return slices.Clone(p.sentences) }
func (p *Paragraph) Len() int               { return len(p.sentences) }
func (p *Paragraph) Children() []any        { return toAny(p.sentences) }

// BlockScope is an ordered run of Blocks created by a block {...} region.
type BlockScope struct {
	items []Block
}

func (*BlockScope) BlockNode() {}

func NewBlockScope(items ...Block) (*BlockScope, error) {
	if err := checkTyped("BlockScope", "Block", items); err != nil {
		return nil, err
	}
	return &BlockScope{items: slices.Clone(items)}, nil
}

func BlockScopeOf(values []any) (*BlockScope, error) {
	items, err := itemsOf[Block]("BlockScope", "Block", values)
	if err != nil {
		return nil, err
	}
	return &BlockScope{items: items}, nil
}

func (s *BlockScope) Push(b Block) error {
	if isNil(b) {
		return &errs.StructuralTypeError{Container: "BlockScope", Index: len(s.items), Value: b, Want: "Block"}
	}
	s.items = append(s.items, b)
	return nil
}

func (s *BlockScope) Items() []Block  { return slices.Clone(s.items) }
func (s *BlockScope) Len() int        { return len(s.items) }
func (s *BlockScope) Children() []any { return toAny(s.items) }

func itemsOf[T any](container, want string, values []any) ([]T, error) {
	out := make([]T, 0, len(values))
	for i, v := range values {
		t, ok := v.(T)
		if !ok || isNil(v) {
			return nil, &errs.StructuralTypeError{Container: container, Index: i, Value: v, Want: want}
		}
		out = append(out, t)
	}
	return out, nil
}

func checkTyped[T any](container, want string, items []T) error {
	for i, it := range items {
		if isNil(it) {
			return &errs.StructuralTypeError{Container: container, Index: i, Value: nil, Want: want}
		}
	}
	return nil
}

func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// isNil catches both untyped nil and typed nil pointers stored in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
