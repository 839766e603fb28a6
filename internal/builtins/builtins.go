/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package builtins provides the default names documents can use in embedded
// code: section headers, emphasis and quote builders, code listings, includes,
// anchors and references.
package builtins

import (
	"fmt"
	"strings"

	"turnip/internal/doctree"
	"turnip/internal/parser"
	"turnip/internal/script"
)

// Header weights of the named section builders.
const (
	ChapterWeight    int64 = 0
	SectionWeight    int64 = 1
	SubsectionWeight int64 = 2
)

// Heading is the Header produced by the section builders.
type Heading struct {
	doctree.BlockMarker
	Weight int64
	Title  *doctree.InlineScope
	Anchor *doctree.Anchor
}

func (h *Heading) HeaderWeight() int64 { return h.Weight }

func (h *Heading) Children() []any {
	if h.Anchor != nil {
		return []any{*h.Anchor, h.Title}
	}
	return []any{h.Title}
}

// Emph is emphasised inline content.
type Emph struct {
	doctree.InlineMarker
	Content *doctree.InlineScope
}

func (e *Emph) Children() []any { return []any{e.Content} }

// Quote is a block quotation.
type Quote struct {
	doctree.BlockMarker
	Content *doctree.BlockScope
}

func (q *Quote) Children() []any { return []any{q.Content} }

// CodeBlock is a verbatim listing.
type CodeBlock struct {
	doctree.BlockMarker
	Lang string
	Text string
}

func (c *CodeBlock) Children() []any { return []any{doctree.Raw(c.Text)} }

// Install defines every builtin in env and registers them as module "turnip"
// so a document can restore them with "import turnip" after shadowing one.
// Anchors are created in reg.
func Install(env *script.Env, reg *doctree.AnchorRegistry) {
	names := Names(reg)
	env.Update(names)
	env.RegisterModule("turnip", names)
}

// Names returns the builtins bound to reg.
func Names(reg *doctree.AnchorRegistry) map[string]any {
	return map[string]any{
		"chapter":    headingBuilder("chapter", ChapterWeight, nil),
		"section":    headingBuilder("section", SectionWeight, nil),
		"subsection": headingBuilder("subsection", SubsectionWeight, nil),
		"header":     script.Func(headerFunc(reg)),
		"emph": &parser.Builder{Name: "emph", Inlines: func(s *doctree.InlineScope) (any, error) {
			return &Emph{Content: s}, nil
		}},
		"quote": &parser.Builder{Name: "quote", Blocks: func(s *doctree.BlockScope) (any, error) {
			return &Quote{Content: s}, nil
		}},
		"code":    codeBuilder(""),
		"listing": script.Func(listing),
		"raw": &parser.Builder{Name: "raw", Raw: func(s string) (any, error) {
			return doctree.Raw(s), nil
		}},
		"include": script.Func(include),
		"anchor":  script.Func(anchorFunc(reg)),
		"ref":     script.Func(ref),
	}
}

func headingBuilder(name string, weight int64, anchor *doctree.Anchor) *parser.Builder {
	return &parser.Builder{Name: name, Inlines: func(title *doctree.InlineScope) (any, error) {
		return &Heading{Weight: weight, Title: title, Anchor: anchor}, nil
	}}
}

// header(weight, id="") returns a heading builder of any weight, optionally
// anchored as ("section", id).
func headerFunc(reg *doctree.AnchorRegistry) script.Func {
	return func(args []any, kwargs map[string]any) (any, error) {
		w, err := script.IntArg(args, kwargs, 0, "weight")
		if err != nil {
			return nil, fmt.Errorf("header: %w", err)
		}
		id, err := script.StringArg(args, kwargs, 1, "id", "")
		if err != nil {
			return nil, fmt.Errorf("header: %w", err)
		}
		var anchor *doctree.Anchor
		if id != "" {
			a, err := reg.Register("section", id)
			if err != nil {
				return nil, err
			}
			anchor = &a
		}
		return headingBuilder("header", w, anchor), nil
	}
}

func codeBuilder(lang string) *parser.Builder {
	return &parser.Builder{Name: "code", Raw: func(s string) (any, error) {
		return &CodeBlock{Lang: lang, Text: strings.Trim(s, "\n")}, nil
	}}
}

// listing(lang) is code with a language tag.
func listing(args []any, kwargs map[string]any) (any, error) {
	lang, err := script.StringArg(args, kwargs, 0, "lang", "")
	if err != nil {
		return nil, fmt.Errorf("listing: %w", err)
	}
	return codeBuilder(lang), nil
}

func include(args []any, kwargs map[string]any) (any, error) {
	path, err := script.StringArg(args, kwargs, 0, "path", "")
	if err != nil {
		return nil, fmt.Errorf("include: %w", err)
	}
	if path == "" {
		return nil, fmt.Errorf("include: path is required")
	}
	return parser.IncludePath{Path: path}, nil
}

// anchor(kind, id="") creates an anchor; without id the next number for kind is used.
func anchorFunc(reg *doctree.AnchorRegistry) script.Func {
	return func(args []any, kwargs map[string]any) (any, error) {
		kind, err := script.StringArg(args, kwargs, 0, "kind", "")
		if err != nil {
			return nil, fmt.Errorf("anchor: %w", err)
		}
		id, err := script.StringArg(args, kwargs, 1, "id", "")
		if err != nil {
			return nil, fmt.Errorf("anchor: %w", err)
		}
		if id == "" {
			return reg.Auto(kind)
		}
		return reg.Register(kind, id)
	}
}

// ref(id, kind="", label="") refers to an anchor. Resolution happens after parsing.
func ref(args []any, kwargs map[string]any) (any, error) {
	id, err := script.StringArg(args, kwargs, 0, "id", "")
	if err != nil {
		return nil, fmt.Errorf("ref: %w", err)
	}
	if id == "" {
		return nil, fmt.Errorf("ref: id is required")
	}
	kind, err := script.StringArg(args, kwargs, 1, "kind", "")
	if err != nil {
		return nil, fmt.Errorf("ref: %w", err)
	}
	label, err := script.StringArg(args, kwargs, 2, "label", "")
	if err != nil {
		return nil, fmt.Errorf("ref: %w", err)
	}
	b := doctree.Backref{ID: id, Kind: kind}
	if label != "" {
		b.Label = doctree.Text(label)
	}
	return b, nil
}

// Unresolved returns the backrefs in doc that do not resolve in reg.
func Unresolved(doc *doctree.Document, reg *doctree.AnchorRegistry) []error {
	var out []error
	doctree.Walk(doc, func(n any, _ int) bool {
		if b, ok := n.(doctree.Backref); ok {
			if _, err := reg.Resolve(b); err != nil {
				out = append(out, err)
			}
		}
		return true
	})
	return out
}
