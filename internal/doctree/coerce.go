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
	"reflect"
	"strconv"

	"turnip/internal/errs"
)

// Coercion turns arbitrary values (typically returned by embedded code) into
// tree nodes. Each function tries, in order:
//  1. the value already has the target capability: returned as-is;
//  2. the value is a sequence whose items all have the element capability:
//     wrapped in the matching scope, order preserved;
//  3. the value is a string, integer or float: converted to Text;
//  4. otherwise a CoercionError naming the value and the target.
//
// A lone Sentence coerces to a Block as a one-sentence Paragraph. A sequence of
// Sentences does not: joining them into one paragraph is never guessed.

// CoerceToInline converts v to an Inline.
func CoerceToInline(v any) (Inline, error) {
	if err := halfHeader(v); err != nil {
		return nil, err
	}
	if n, ok := v.(Inline); ok && !isNil(n) {
		return n, nil
	}
	if items, ok := sequence(v); ok {
		if scope, err := InlineScopeOf(items); err == nil {
			return scope, nil
		}
		return nil, &errs.CoercionError{Value: v, Target: "Inline", Reason: "sequence holds non-inline items"}
	}
	if s, ok := scalarText(v); ok {
		return Text(s), nil
	}
	return nil, &errs.CoercionError{Value: v, Target: "Inline"}
}

// CoerceToInlineScope converts v to an InlineScope.
func CoerceToInlineScope(v any) (*InlineScope, error) {
	if scope, ok := v.(*InlineScope); ok && scope != nil {
		return scope, nil
	}
	if items, ok := sequence(v); ok {
		scope, err := InlineScopeOf(items)
		if err != nil {
			return nil, &errs.CoercionError{Value: v, Target: "InlineScope", Reason: "sequence holds non-inline items"}
		}
		return scope, nil
	}
	n, err := CoerceToInline(v)
	if err != nil {
		return nil, &errs.CoercionError{Value: v, Target: "InlineScope"}
	}
	return &InlineScope{items: []Inline{n}}, nil
}

// CoerceToBlock converts v to a Block.
func CoerceToBlock(v any) (Block, error) {
	if b, ok := v.(Block); ok && !isNil(b) {
		return b, nil
	}
	if s, ok := v.(*Sentence); ok && s != nil {
		return &Paragraph{sentences: []*Sentence{s}}, nil
	}
	if items, ok := sequence(v); ok {
		if allSentences(items) && len(items) > 0 {
			return nil, &errs.CoercionError{Value: v, Target: "Block", Reason: "a list of sentences is not wrapped into a paragraph; build the Paragraph explicitly"}
		}
		scope, err := BlockScopeOf(items)
		if err != nil {
			return nil, &errs.CoercionError{Value: v, Target: "Block", Reason: "sequence holds non-block items"}
		}
		return scope, nil
	}
	if s, ok := scalarText(v); ok {
		return paragraphOf(Text(s)), nil
	}
	if n, ok := v.(Inline); ok && !isNil(n) {
		return paragraphOf(n), nil
	}
	return nil, &errs.CoercionError{Value: v, Target: "Block"}
}

// CoerceToBlockScope converts v to a BlockScope.
func CoerceToBlockScope(v any) (*BlockScope, error) {
	if scope, ok := v.(*BlockScope); ok && scope != nil {
		return scope, nil
	}
	b, err := CoerceToBlock(v)
	if err != nil {
		return nil, err
	}
	if scope, ok := b.(*BlockScope); ok {
		return scope, nil
	}
	return &BlockScope{items: []Block{b}}, nil
}

// CoerceToDocSegment accepts only values that already are segments.
func CoerceToDocSegment(v any) (*DocSegment, error) {
	if seg, ok := v.(*DocSegment); ok && seg != nil {
		return seg, nil
	}
	return nil, &errs.CoercionError{Value: v, Target: "DocSegment"}
}

// Kind tags a Classified value.
type Kind int

const (
	KindNone Kind = iota
	KindInline
	KindBlock
	KindHeader
	KindSegment
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInline:
		return "inline"
	case KindBlock:
		return "block"
	case KindHeader:
		return "header"
	case KindSegment:
		return "segment"
	case KindSequence:
		return "sequence"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Classified is the tagged result of Classify. Exactly the field matching Kind is set.
type Classified struct {
	Kind    Kind
	Inline  Inline
	Block   Block
	Header  Header
	Segment *DocSegment
	Items   []any // raw items of a sequence, classified by the caller one by one
}

// Classify decides which single capability a value provides, trying segment,
// header, block, inline, sentence, sequence and scalar in that order.
// nil classifies as KindNone.
func Classify(v any) (Classified, error) {
	if isNil(v) {
		return Classified{Kind: KindNone}, nil
	}
	if seg, ok := v.(*DocSegment); ok {
		return Classified{Kind: KindSegment, Segment: seg}, nil
	}
	if h, ok := v.(Header); ok {
		return Classified{Kind: KindHeader, Header: h, Block: h}, nil
	}
	if err := halfHeader(v); err != nil {
		return Classified{}, err
	}
	if b, ok := v.(Block); ok {
		return Classified{Kind: KindBlock, Block: b}, nil
	}
	if n, ok := v.(Inline); ok {
		return Classified{Kind: KindInline, Inline: n}, nil
	}
	if s, ok := v.(*Sentence); ok {
		return Classified{Kind: KindBlock, Block: &Paragraph{sentences: []*Sentence{s}}}, nil
	}
	if items, ok := sequence(v); ok {
		if allSentences(items) && len(items) > 0 {
			return Classified{}, &errs.CoercionError{Value: v, Target: "Block", Reason: "a list of sentences is not wrapped into a paragraph; build the Paragraph explicitly"}
		}
		return Classified{Kind: KindSequence, Items: items}, nil
	}
	if s, ok := scalarText(v); ok {
		return Classified{Kind: KindInline, Inline: Text(s)}, nil
	}
	return Classified{}, &errs.CoercionError{Value: v, Target: "Inline, Block or DocSegment"}
}

// halfHeader rejects values carrying a header weight without being a Block.
// Such a value would otherwise slip through as an Inline.
func halfHeader(v any) error {
	if _, ok := v.(interface{ HeaderWeight() int64 }); !ok {
		return nil
	}
	if _, ok := v.(Block); ok {
		return nil
	}
	return &errs.StructuralTypeError{Container: "Header", Index: -1, Value: v, Want: "a Block with HeaderWeight"}
}

func paragraphOf(n Inline) *Paragraph {
	return &Paragraph{sentences: []*Sentence{{items: []Inline{n}}}}
}

func allSentences(items []any) bool {
	for _, it := range items {
		if _, ok := it.(*Sentence); !ok {
			return false
		}
	}
	return true
}

// sequence reports whether v is a slice or array (other than []byte) and returns its items.
func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// scalarText renders strings, integers and floats in their display form.
// Booleans are not scalars here.
func scalarText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int:
		return strconv.Itoa(x), true
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(x).Int(), 10), true
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(x).Uint(), 10), true
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	}
	return "", false
}
