/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"turnip/internal/doctree"
)

// Row types written by ExtractRows. Blocks of other Go types are stored under their
// lower-cased type name (a *builtins.CodeBlock becomes "codeblock").
const (
	RowSegment   = "segment"
	RowParagraph = "paragraph"
)

// Row is one searchable unit of a document.
//
// Path locates the row inside its document: "s2.1" is the first subsegment of the
// second top-level segment, "s2.1/p3" the third row in that segment's contents and
// "p1" the first row before any segment.
type Row struct {
	Type    string
	Path    string
	Weight  sql.NullInt64
	Text    string
	Anchors []doctree.Anchor
	Refs    []doctree.Backref
}

// ExtractRows flattens doc into index rows in document order.
func ExtractRows(doc *doctree.Document) []Row {
	if doc == nil {
		return nil
	}
	var rows []Row
	rows = blockRows(rows, "", doc.Contents)
	for i, seg := range doc.Segments() {
		rows = segmentRows(rows, fmt.Sprintf("s%d", i+1), seg)
	}
	return rows
}

func segmentRows(rows []Row, path string, seg *doctree.DocSegment) []Row {
	r := Row{Type: RowSegment, Path: path, Weight: sql.NullInt64{Int64: seg.Weight(), Valid: true}}
	fill(&r, seg.Header())
	rows = append(rows, r)
	rows = blockRows(rows, path, seg.Contents)
	for i, sub := range seg.Subsegments() {
		rows = segmentRows(rows, fmt.Sprintf("%s.%d", path, i+1), sub)
	}
	return rows
}

// blockRows emits one row per leaf block. Block scopes and blocks holding other
// blocks (quotes) are flattened.
func blockRows(rows []Row, prefix string, scope *doctree.BlockScope) []Row {
	if scope == nil {
		return rows
	}
	var visit func(b doctree.Block)
	visit = func(b doctree.Block) {
		switch x := b.(type) {
		case *doctree.BlockScope:
			for _, c := range x.Items() {
				visit(c)
			}
			return
		case *doctree.Paragraph:
			rows = appendLeaf(rows, prefix, RowParagraph, x)
			return
		}
		if nested := childBlocks(b); len(nested) > 0 {
			for _, c := range nested {
				visit(c)
			}
			return
		}
		rows = appendLeaf(rows, prefix, typeName(b), b)
	}
	for _, b := range scope.Items() {
		visit(b)
	}
	return rows
}

func appendLeaf(rows []Row, prefix, typ string, n any) []Row {
	count := 1
	for i := len(rows) - 1; i >= 0 && rowParent(rows[i].Path) == prefix && rows[i].Type != RowSegment; i-- {
		count++
	}
	p := fmt.Sprintf("p%d", count)
	if prefix != "" {
		p = prefix + "/" + p
	}
	r := Row{Type: typ, Path: p}
	fill(&r, n)
	return append(rows, r)
}

func rowParent(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return ""
}

func fill(r *Row, n any) {
	r.Text = doctree.PlainText(n)
	doctree.Walk(n, func(c any, _ int) bool {
		switch x := c.(type) {
		case doctree.Anchor:
			r.Anchors = append(r.Anchors, x)
		case doctree.Backref:
			r.Refs = append(r.Refs, x)
		}
		return true
	})
}

// childBlocks returns the blocks directly below b, looking through block scopes.
func childBlocks(b doctree.Block) []doctree.Block {
	var out []doctree.Block
	for _, c := range doctree.Children(b) {
		if cb, ok := c.(doctree.Block); ok {
			out = append(out, cb)
		}
	}
	return out
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}
