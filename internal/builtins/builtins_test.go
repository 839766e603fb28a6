/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package builtins_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnip/internal/builtins"
	"turnip/internal/doctree"
	"turnip/internal/errs"
	"turnip/internal/parser"
	"turnip/internal/script"
	"turnip/internal/source"
)

func parse(t *testing.T, text string, opts parser.Options) (*doctree.Document, *doctree.AnchorRegistry, error) {
	t.Helper()
	env := script.NewEnv()
	reg := doctree.NewAnchorRegistry()
	builtins.Install(env, reg)
	opts.Anchors = reg
	doc, err := parser.ParseString("test.tt", text, env, opts)
	return doc, reg, err
}

func find[T any](n any) []T {
	var out []T
	doctree.Walk(n, func(c any, _ int) bool {
		if v, ok := c.(T); ok {
			out = append(out, v)
		}
		return true
	})
	return out
}

func TestSectionWeights(t *testing.T) {
	doc, _, err := parse(t, "[chapter]{One}\n[section]{Two}\n[subsection]{Three}\n", parser.Options{})
	require.NoError(t, err)
	headings := find[*builtins.Heading](doc)
	require.Len(t, headings, 3)
	assert.Equal(t, []int64{builtins.ChapterWeight, builtins.SectionWeight, builtins.SubsectionWeight},
		[]int64{headings[0].Weight, headings[1].Weight, headings[2].Weight})
	assert.Equal(t, "Three", doctree.PlainText(headings[2].Title))
}

func TestListingSetsLanguage(t *testing.T) {
	doc, _, err := parse(t, "[listing(\"go\")]#{\nx := 1\n}#\n[code]#{plain}#\n", parser.Options{})
	require.NoError(t, err)
	blocks := find[*builtins.CodeBlock](doc)
	require.Len(t, blocks, 2)
	assert.Equal(t, "go", blocks[0].Lang)
	assert.Equal(t, "x := 1", blocks[0].Text)
	assert.Equal(t, "", blocks[1].Lang)
	assert.Equal(t, "plain", blocks[1].Text)
}

func TestInlineRaw(t *testing.T) {
	doc, _, err := parse(t, "Say [raw]#{<b>}# now.\n", parser.Options{})
	require.NoError(t, err)
	assert.Equal(t, []doctree.Raw{"<b>"}, find[doctree.Raw](doc))
	assert.Empty(t, find[*builtins.CodeBlock](doc))
}

func TestHeaderWithID(t *testing.T) {
	doc, reg, err := parse(t, "[header(3, id=\"intro\")]{Intro}\n", parser.Options{})
	require.NoError(t, err)
	require.Len(t, doc.Segments(), 1)
	h, ok := doc.Segments()[0].Header().(*builtins.Heading)
	require.True(t, ok)
	assert.Equal(t, int64(3), h.Weight)
	require.NotNil(t, h.Anchor)
	assert.Equal(t, doctree.Anchor{Kind: "section", ID: "intro"}, *h.Anchor)
	assert.Equal(t, []doctree.Anchor{{Kind: "section", ID: "intro"}}, reg.Anchors())

	_, _, err = parse(t, "[header(1, id=\"intro\")]{A}\n[header(1, id=\"intro\")]{B}\n", parser.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAnchor), "%v", err)
}

func TestAnchorAutoNumbers(t *testing.T) {
	doc, reg, err := parse(t, "A [anchor(\"fig\")] b [anchor(\"fig\")] c [anchor(\"tab\")].\n", parser.Options{})
	require.NoError(t, err)
	want := []doctree.Anchor{{Kind: "fig", ID: "1"}, {Kind: "fig", ID: "2"}, {Kind: "tab", ID: "1"}}
	assert.Equal(t, want, reg.Anchors())
	assert.Equal(t, want, find[doctree.Anchor](doc))

	_, _, err = parse(t, "[anchor(\"fig\", \"42\")]\n", parser.Options{})
	assert.True(t, errors.Is(err, errs.ErrAnchor), "%v", err)
}

func TestRefAndUnresolved(t *testing.T) {
	doc, reg, err := parse(t, "[anchor(\"fig\", \"map\")] See [ref(\"map\")] and [ref(\"gone\", \"fig\", \"label\")].\n", parser.Options{})
	require.NoError(t, err)
	refs := find[doctree.Backref](doc)
	require.Len(t, refs, 2)
	assert.Equal(t, doctree.Text("label"), refs[1].Label)

	missing := builtins.Unresolved(doc, reg)
	require.Len(t, missing, 1)
	assert.True(t, errors.Is(missing[0], errs.ErrAnchor))
	assert.Contains(t, missing[0].Error(), "gone")
}

func TestInclude(t *testing.T) {
	opts := parser.Options{Resolver: source.MapResolver{"part.tt": "Included.\n"}}
	doc, _, err := parse(t, "Before.\n\n[include(\"part.tt\")]\n", opts)
	require.NoError(t, err)
	assert.Contains(t, doctree.PlainText(doc), "Included.")

	_, _, err = parse(t, "[include(\"\")]\n", opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestImportRestoresShadowedBuiltin(t *testing.T) {
	_, _, err := parse(t, "[emph = 1]\n[emph]{x}\n", parser.Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCoercion), "%v", err)

	doc, _, err := parse(t, "[emph = 1]\n[import turnip]\nSo [emph]{very} good.\n", parser.Options{})
	require.NoError(t, err)
	em := find[*builtins.Emph](doc)
	require.Len(t, em, 1)
	assert.Equal(t, "very", doctree.PlainText(em[0].Content))
}

func TestQuoteOpenWithTrailingComment(t *testing.T) {
	doc, _, err := parse(t, "[quote]{ # cited from the notes\n  Quoted words.\n}\n", parser.Options{})
	require.NoError(t, err)
	q := find[*builtins.Quote](doc)
	require.Len(t, q, 1)
	assert.Equal(t, "Quoted words.", doctree.PlainText(q[0].Content))
}
