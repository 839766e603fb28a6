/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package parser

import (
	"strings"
	"unicode/utf8"

	"turnip/internal/doctree"
	"turnip/internal/source"
)

// frame is one open scope. Block-level frames (document, block) collect
// sentences into paragraphs; inline frames collect a flat run of inlines.
type frame struct {
	kind       frameKind
	openPos    source.Pos
	builder    *Builder
	builderPos source.Pos

	items []doctree.Inline // current sentence, or the inline scope's content
	text  strings.Builder  // pending text, merged into one Text when flushed

	para        []*doctree.Sentence
	blocks      *doctree.BlockScope // nil for the document frame
	lineContent bool
}

func (f *frame) inSentence() bool {
	return len(f.items) > 0 || strings.TrimSpace(f.text.String()) != ""
}

func (f *frame) flushText(trimRight bool) {
	s := f.text.String()
	f.text.Reset()
	if trimRight {
		s = strings.TrimRight(s, " \t")
	}
	if s != "" {
		f.items = append(f.items, doctree.Text(s))
	}
}

// appendText adds literal text. Block-level frames drop whitespace at the
// start of a sentence.
func (f *frame) appendText(s string) {
	if f.kind != inlineFrame && len(f.items) == 0 && f.text.Len() == 0 {
		s = strings.TrimLeft(s, " \t")
	}
	f.text.WriteString(s)
}

// closers may follow sentence-ending punctuation and still belong to the sentence.
const closers = "\"')]”’"

// sentenceEnd returns the index just past the first sentence terminator in s
// that is followed by a space or tab, or -1.
func sentenceEnd(s string) int {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		j := i
		for j < len(s) {
			c, n := utf8.DecodeRuneInString(s[j:])
			if !strings.ContainsRune(closers, c) {
				break
			}
			j += n
		}
		if j < len(s) && (s[j] == ' ' || s[j] == '\t') {
			return j
		}
	}
	return -1
}
