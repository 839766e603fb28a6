/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package source provides the handles the lexer reads from. A Source is either
// backed by an in-memory string or by a file that is read on first use; both
// behave identically downstream.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"
)

// Source is a named piece of document text.
type Source struct {
	Name string
	Path string // empty for in-memory sources

	text   string
	loaded bool
}

// FromString returns an in-memory source. name is used in diagnostics only.
func FromString(name, text string) *Source {
	if name == "" {
		name = "<string>"
	}
	return &Source{Name: name, text: text, loaded: true}
}

// FromPath returns a file-backed source. The file is not touched until Text is called.
func FromPath(path string) *Source {
	return &Source{Name: path, Path: path}
}

// Text returns the full source text, reading the backing file on first call.
func (s *Source) Text() (string, error) {
	if s == nil {
		return "", errors.New("nil source")
	}
	if s.loaded {
		return s.text, nil
	}
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("read source %s: %w", s.Path, err)
	}
	s.text = string(b)
	s.loaded = true
	return s.text, nil
}

// Dir returns the directory a relative include from this source resolves against.
// In-memory sources resolve against the working directory.
func (s *Source) Dir() string {
	if s == nil || s.Path == "" {
		return "."
	}
	return filepath.Dir(s.Path)
}

func (s *Source) String() string { return s.Name }

// Pos is a location inside a source. Line and Column are 1-based; Column counts runes.
type Pos struct {
	Source string
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string {
	name := p.Source
	if name == "" {
		name = "<unknown>"
	}
	return name + ":" + strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// IsValid reports whether the position was set by a scanner.
func (p Pos) IsValid() bool { return p.Line > 0 }

// Advance returns the position after consuming text starting at p.
func (p Pos) Advance(text string) Pos {
	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		text = text[size:]
		p.Offset += size
		if r == '\n' {
			p.Line++
			p.Column = 1
			continue
		}
		p.Column++
	}
	return p
}
