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
	"strconv"
	"strings"
	"unicode"

	"turnip/internal/errs"
)

// Anchor is a referenceable location, unique per (Kind, ID) within a document.
// It renders inline where it is defined.
type Anchor struct {
	Kind string
	ID   string
}

func (Anchor) InlineNode() {}

func (a Anchor) String() string { return a.Kind + ":" + a.ID }

// Backref points at an Anchor by ID. Kind is optional and only needed when the
// ID is used by anchors of several kinds. Label, when set, overrides the
// rendered text of the reference.
type Backref struct {
	ID    string
	Kind  string
	Label Inline
}

func (Backref) InlineNode() {}

func (b Backref) Children() []any {
	if isNil(b.Label) {
		return nil
	}
	return []any{b.Label}
}

type anchorKey struct{ kind, id string }

// AnchorRegistry hands out anchors and resolves backrefs. It is single-writer:
// one registry belongs to one parse.
type AnchorRegistry struct {
	byKey    map[anchorKey]Anchor
	byID     map[string][]Anchor
	order    []Anchor
	counters map[string]int
}

func NewAnchorRegistry() *AnchorRegistry {
	return &AnchorRegistry{
		byKey:    map[anchorKey]Anchor{},
		byID:     map[string][]Anchor{},
		counters: map[string]int{},
	}
}

// Register creates the anchor (kind, id). User ids must contain at least one
// letter so they never collide with the numeric ids from Auto.
func (r *AnchorRegistry) Register(kind, id string) (Anchor, error) {
	if strings.TrimSpace(kind) == "" {
		return Anchor{}, &errs.AnchorError{Kind: kind, ID: id, Reason: "kind is required"}
	}
	if !strings.ContainsFunc(id, unicode.IsLetter) {
		return Anchor{}, &errs.AnchorError{Kind: kind, ID: id, Reason: "id must contain at least one letter"}
	}
	return r.add(Anchor{Kind: kind, ID: id})
}

// Auto creates an anchor of kind with the next numeric id for that kind.
func (r *AnchorRegistry) Auto(kind string) (Anchor, error) {
	if strings.TrimSpace(kind) == "" {
		return Anchor{}, &errs.AnchorError{Kind: kind, Reason: "kind is required"}
	}
	r.counters[kind]++
	return r.add(Anchor{Kind: kind, ID: strconv.Itoa(r.counters[kind])})
}

func (r *AnchorRegistry) add(a Anchor) (Anchor, error) {
	k := anchorKey{a.Kind, a.ID}
	if _, dup := r.byKey[k]; dup {
		return Anchor{}, &errs.AnchorError{Kind: a.Kind, ID: a.ID, Reason: "already registered"}
	}
	r.byKey[k] = a
	r.byID[a.ID] = append(r.byID[a.ID], a)
	r.order = append(r.order, a)
	return a, nil
}

// Resolve finds the anchor a backref points at.
func (r *AnchorRegistry) Resolve(b Backref) (Anchor, error) {
	if b.Kind != "" {
		if a, ok := r.byKey[anchorKey{b.Kind, b.ID}]; ok {
			return a, nil
		}
		return Anchor{}, &errs.AnchorError{Kind: b.Kind, ID: b.ID, Reason: "no such anchor"}
	}
	switch found := r.byID[b.ID]; len(found) {
	case 0:
		return Anchor{}, &errs.AnchorError{ID: b.ID, Reason: "no such anchor"}
	case 1:
		return found[0], nil
	default:
		kinds := make([]string, len(found))
		for i, a := range found {
			kinds[i] = a.Kind
		}
		return Anchor{}, &errs.AnchorError{ID: b.ID, Reason: "ambiguous between kinds " + strings.Join(kinds, ", ")}
	}
}

// Anchors returns every anchor in registration order.
func (r *AnchorRegistry) Anchors() []Anchor { return append([]Anchor(nil), r.order...) }
