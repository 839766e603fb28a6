/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"
	"strings"

	"turnip/internal/doctree"
)

const outlineWidth = 60

// Outline writes one line per block-level node, indented by depth, with a
// shortened plain-text preview. Segments show their weight.
func Outline(w io.Writer, doc *doctree.Document) error {
	var err error
	doctree.Walk(doc, func(n any, depth int) bool {
		if err != nil {
			return false
		}
		indent := strings.Repeat("  ", depth)
		switch x := n.(type) {
		case *doctree.Document:
			_, err = fmt.Fprintln(w, "document")
			return true
		case *doctree.DocSegment:
			_, err = fmt.Fprintf(w, "%ssegment w=%d %q\n", indent, x.Weight(), preview(x.Header()))
			return true
		case *doctree.BlockScope:
			return true
		case doctree.Header:
			return false
		case doctree.Block:
			_, err = fmt.Fprintf(w, "%s%s %q\n", indent, Tree(x).Type, preview(x))
			return false
		}
		return false
	})
	return err
}

func preview(n any) string {
	s := strings.Join(strings.Fields(doctree.PlainText(n)), " ")
	if r := []rune(s); len(r) > outlineWidth {
		s = string(r[:outlineWidth-3]) + "..."
	}
	return s
}
