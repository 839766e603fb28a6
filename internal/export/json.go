/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export turns parsed documents into outside formats: an indented JSON
// tree checked against an embedded JSON schema, and a readable text outline.
package export

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"turnip/internal/builtins"
	"turnip/internal/doctree"
)

//go:embed schema.json
var schemaJSON []byte

// ErrInvalid is returned by Validate when the data does not match the schema.
var ErrInvalid = errors.New("document JSON does not conform to schema")

// Node is the JSON form of one tree node. Type discriminates the variant.
type Node struct {
	Type     string  `json:"type"`
	Text     string  `json:"text,omitempty"`
	Weight   *int64  `json:"weight,omitempty"`
	Kind     string  `json:"kind,omitempty"`
	ID       string  `json:"id,omitempty"`
	Lang     string  `json:"lang,omitempty"`
	Header   *Node   `json:"header,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Tree converts any tree node to its JSON form.
func Tree(n any) *Node {
	switch x := n.(type) {
	case *doctree.Document:
		return &Node{Type: "document", Children: nodes(x.Children())}
	case *doctree.DocSegment:
		w := x.Weight()
		out := &Node{Type: "segment", Weight: &w, Header: Tree(x.Header()), Children: []*Node{Tree(x.Contents)}}
		for _, sub := range x.Subsegments() {
			out.Children = append(out.Children, Tree(sub))
		}
		return out
	case *doctree.BlockScope:
		return &Node{Type: "block_scope", Children: nodes(x.Children())}
	case *doctree.Paragraph:
		return &Node{Type: "paragraph", Children: nodes(x.Children())}
	case *doctree.Sentence:
		return &Node{Type: "sentence", Children: nodes(x.Children())}
	case *doctree.InlineScope:
		return &Node{Type: "inline_scope", Children: nodes(x.Children())}
	case doctree.Text:
		return &Node{Type: "text", Text: string(x)}
	case doctree.Raw:
		return &Node{Type: "raw", Text: string(x)}
	case doctree.Anchor:
		return &Node{Type: "anchor", Kind: x.Kind, ID: x.ID}
	case doctree.Backref:
		return &Node{Type: "backref", Kind: x.Kind, ID: x.ID, Children: nodes(x.Children())}
	case *builtins.Heading:
		w := x.Weight
		out := &Node{Type: "heading", Weight: &w, Children: []*Node{Tree(x.Title)}}
		if x.Anchor != nil {
			out.Kind, out.ID = x.Anchor.Kind, x.Anchor.ID
		}
		return out
	case *builtins.Emph:
		return &Node{Type: "emph", Children: []*Node{Tree(x.Content)}}
	case *builtins.Quote:
		return &Node{Type: "quote", Children: []*Node{Tree(x.Content)}}
	case *builtins.CodeBlock:
		return &Node{Type: "code_block", Lang: x.Lang, Text: x.Text}
	}
	// Nodes from other packages keep their Go type name.
	out := &Node{Type: strings.TrimPrefix(fmt.Sprintf("%T", n), "*")}
	if h, ok := n.(doctree.Header); ok {
		w := h.HeaderWeight()
		out.Weight = &w
	}
	out.Children = nodes(doctree.Children(n))
	return out
}

func nodes(children []any) []*Node {
	if len(children) == 0 {
		return nil
	}
	out := make([]*Node, 0, len(children))
	for _, c := range children {
		out = append(out, Tree(c))
	}
	return out
}

// JSON renders doc as indented JSON.
func JSON(doc *doctree.Document) ([]byte, error) {
	b, err := json.MarshalIndent(Tree(doc), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return b, nil
}

// Validate checks JSON produced by JSON (or by hand) against the embedded schema.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// Schema returns the embedded JSON schema.
func Schema() []byte { return append([]byte(nil), schemaJSON...) }
