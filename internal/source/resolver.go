/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when no candidate location holds the requested file.
var ErrNotFound = errors.New("source not found")

// Resolver maps a logical include name, as written in a document, to a Source.
type Resolver interface {
	Resolve(from *Source, name string) (*Source, error)
}

// DirResolver resolves relative names against the including source's directory
// first and then against each of Roots in order. Absolute names are used as-is.
type DirResolver struct {
	Roots []string
}

func (r DirResolver) Resolve(from *Source, name string) (*Source, error) {
	if name == "" {
		return nil, fmt.Errorf("empty include name: %w", ErrNotFound)
	}
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return nil, fmt.Errorf("include %s: %w", name, ErrNotFound)
		}
		return FromPath(name), nil
	}
	candidates := make([]string, 0, len(r.Roots)+1)
	candidates = append(candidates, filepath.Join(from.Dir(), name))
	for _, root := range r.Roots {
		candidates = append(candidates, filepath.Join(root, name))
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return FromPath(c), nil
		}
	}
	return nil, fmt.Errorf("include %s (searched %d locations): %w", name, len(candidates), ErrNotFound)
}

// MapResolver serves sources from memory, keyed by include name. Useful for
// generated content and tests.
type MapResolver map[string]string

func (m MapResolver) Resolve(_ *Source, name string) (*Source, error) {
	text, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("include %s: %w", name, ErrNotFound)
	}
	return FromString(name, text), nil
}
