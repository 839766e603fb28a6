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

import "strings"

// Children returns the direct children of a node in document order.
func Children(n any) []any {
	if p, ok := n.(Parent); ok {
		return p.Children()
	}
	return nil
}

// Walk visits n and its descendants depth-first, pre-order. Returning false
// from fn skips the children of the node just visited.
func Walk(n any, fn func(n any, depth int) bool) {
	walk(n, 0, fn)
}

func walk(n any, depth int, fn func(any, int) bool) {
	if isNil(n) {
		return
	}
	if !fn(n, depth) {
		return
	}
	for _, c := range Children(n) {
		walk(c, depth+1, fn)
	}
}

// PlainText flattens a node to its readable text. Sentences are joined by a
// space, blocks by a blank line.
func PlainText(n any) string {
	var b strings.Builder
	plainText(&b, n)
	return strings.TrimSpace(b.String())
}

func plainText(b *strings.Builder, n any) {
	switch x := n.(type) {
	case nil:
	case Text:
		b.WriteString(string(x))
	case Raw:
		b.WriteString(string(x))
	case Anchor:
	case Backref:
		if isNil(x.Label) {
			b.WriteString(x.ID)
			return
		}
		plainText(b, x.Label)
	case *Paragraph:
		for i, s := range x.sentences {
			if i > 0 {
				b.WriteByte(' ')
			}
			plainText(b, s)
		}
	case *BlockScope:
		for i, blk := range x.items {
			if i > 0 {
				b.WriteString("\n\n")
			}
			plainText(b, blk)
		}
	case *DocSegment:
		plainText(b, x.header)
		b.WriteString("\n\n")
		plainText(b, x.Contents)
		for _, sub := range x.subsegments {
			b.WriteString("\n\n")
			plainText(b, sub)
		}
	case *Document:
		plainText(b, x.Contents)
		for _, seg := range x.segments {
			b.WriteString("\n\n")
			plainText(b, seg)
		}
	case Parent:
		for _, c := range x.Children() {
			plainText(b, c)
		}
	}
}
