/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package lexer turns document text into a lazy stream of structural events:
// scope opens and closes, raw regions, embedded code regions, escapes, text runs
// and newlines. Comments are dropped here. Every event carries its start and end
// position so the parser can report precise diagnostics and detect adjacency
// (a code region immediately followed by a scope open is a scope builder).
//
// Syntax:
//
//	[code]  [-code-]  [--code--]   embedded code; N dashes close with N dashes + ]
//	{<newline>                     block scope open
//	{                              inline scope open
//	}                              block close when first on its line, inline close otherwise
//	#{raw}#  ##{raw}##             raw region, N hashes close with } + N hashes
//	# ...                          comment to end of line
//	\<punct>                       literal punctuation character
//	\<newline>                     line continuation
package lexer

import (
	"iter"
	"strconv"
	"strings"
	"unicode/utf8"

	"turnip/internal/errs"
	"turnip/internal/source"
)

// Kind identifies an event.
type Kind int

const (
	EOF Kind = iota
	Text
	Escaped
	Newline
	BlockOpen
	InlineOpen
	BlockClose
	InlineClose
	Raw
	Code
)

var kindNames = [...]string{
	EOF:         "EOF",
	Text:        "Text",
	Escaped:     "Escaped",
	Newline:     "Newline",
	BlockOpen:   "BlockOpen",
	InlineOpen:  "InlineOpen",
	BlockClose:  "BlockClose",
	InlineClose: "InlineClose",
	Raw:         "Raw",
	Code:        "Code",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Event is one unit of scanned input.
type Event struct {
	Kind  Kind
	Value string // text, escaped character, raw content or code source
	Start source.Pos
	End   source.Pos
}

func (e Event) String() string {
	if e.Value == "" {
		return e.Kind.String() + "@" + e.Start.String()
	}
	return e.Kind.String() + "(" + strconv.Quote(e.Value) + ")@" + e.Start.String()
}

const eof = -1

// punctuation that may follow the escape character.
const escapable = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Lexer scans one Source. It is not restartable: scan a fresh Source with a new Lexer.
type Lexer struct {
	input       string
	pos         source.Pos
	atLineStart bool
	err         error
}

// New prepares a lexer over src, loading its text.
func New(src *source.Source) (*Lexer, error) {
	text, err := src.Text()
	if err != nil {
		return nil, err
	}
	l := &Lexer{
		input:       text,
		pos:         source.Pos{Source: src.Name, Line: 1, Column: 1},
		atLineStart: true,
	}
	if !utf8.ValidString(text) {
		bad := l.pos
		for i, r := range text {
			if r == utf8.RuneError {
				if _, size := utf8.DecodeRuneInString(text[i:]); size == 1 {
					bad = l.pos.Advance(text[:i])
					break
				}
			}
		}
		l.err = &errs.LexError{Pos: bad, Msg: "invalid UTF-8 in source"}
	}
	return l, nil
}

// Pos returns the current scan position.
func (l *Lexer) Pos() source.Pos { return l.pos }

// Events returns the remaining events as a sequence. Iteration stops after EOF
// or after the first error.
func (l *Lexer) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			ev, err := l.Next()
			if !yield(ev, err) || err != nil || ev.Kind == EOF {
				return
			}
		}
	}
}

// Tokenize scans src to completion.
func Tokenize(src *source.Source) ([]Event, error) {
	l, err := New(src)
	if err != nil {
		return nil, err
	}
	var out []Event
	for ev, err := range l.Events() {
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// Next returns the next event. After EOF it keeps returning EOF; after an error
// it keeps returning that error.
func (l *Lexer) Next() (Event, error) {
	if l.err != nil {
		return Event{}, l.err
	}
	ev, err := l.scan()
	if err != nil {
		l.err = err
	}
	return ev, err
}

func (l *Lexer) scan() (Event, error) {
	for {
		if l.atLineStart {
			l.skipBlanks()
		}
		start := l.pos
		switch r := l.peek(); r {
		case eof:
			return Event{Kind: EOF, Start: start, End: start}, nil
		case '\n', '\r':
			l.newline()
			l.atLineStart = true
			return l.event(Newline, "", start), nil
		case '\\':
			ev, ok, err := l.escape(start)
			if err != nil {
				return Event{}, err
			}
			if !ok {
				continue
			}
			return ev, nil
		case '#':
			if n := l.count('#'); l.byteAt(n) == '{' {
				return l.raw(start, n)
			}
			lineComment := l.atLineStart
			for r := l.peek(); r != eof && r != '\n' && r != '\r'; r = l.peek() {
				l.advance()
			}
			if lineComment && l.peek() != eof {
				l.newline()
			}
		case '[':
			return l.code(start)
		case '{':
			l.advance()
			if l.restOfLineBlank() {
				l.skipBlanks()
				l.skipComment()
				l.newline()
				l.atLineStart = true
				return l.event(BlockOpen, "", start), nil
			}
			l.atLineStart = false
			return l.event(InlineOpen, "", start), nil
		case '}':
			l.advance()
			kind := InlineClose
			if l.atLineStart {
				kind = BlockClose
			}
			l.atLineStart = false
			return l.event(kind, "", start), nil
		default:
			return l.text(start), nil
		}
	}
}

func (l *Lexer) event(k Kind, value string, start source.Pos) Event {
	return Event{Kind: k, Value: value, Start: start, End: l.pos}
}

func (l *Lexer) text(start source.Pos) Event {
	i := l.pos.Offset
	for i < len(l.input) && !strings.ContainsRune("\\#[{}\n\r", rune(l.input[i])) {
		i++
	}
	value := l.input[l.pos.Offset:i]
	l.advanceBytes(i - l.pos.Offset)
	l.atLineStart = false
	return l.event(Text, value, start)
}

func (l *Lexer) escape(start source.Pos) (Event, bool, error) {
	l.advance()
	switch r := l.peek(); {
	case r == eof:
		return Event{}, false, &errs.LexError{Pos: start, Msg: "escape character at end of input"}
	case r == '\n' || r == '\r':
		l.newline()
		l.skipBlanks()
		l.atLineStart = false
		return Event{}, false, nil
	case r < utf8.RuneSelf && strings.ContainsRune(escapable, r):
		l.advance()
		l.atLineStart = false
		return l.event(Escaped, string(r), start), true, nil
	default:
		return Event{}, false, &errs.LexError{Pos: start, Msg: "invalid escape \\" + string(r)}
	}
}

func (l *Lexer) raw(start source.Pos, hashes int) (Event, error) {
	open := hashes + 1
	closing := "}" + strings.Repeat("#", hashes)
	body := l.input[l.pos.Offset+open:]
	end := strings.Index(body, closing)
	if end < 0 {
		return Event{}, &errs.LexError{Pos: start, Msg: "unterminated raw scope (expected " + strconv.Quote(closing) + ")"}
	}
	l.advanceBytes(open)
	l.advanceBytes(end)
	l.advanceBytes(len(closing))
	l.atLineStart = false
	return l.event(Raw, body[:end], start), nil
}

func (l *Lexer) code(start source.Pos) (Event, error) {
	l.advance()
	dashes := l.count('-')
	closing := strings.Repeat("-", dashes) + "]"
	body := l.input[l.pos.Offset+dashes:]
	end := strings.Index(body, closing)
	if end < 0 {
		return Event{}, &errs.LexError{Pos: start, Msg: "unterminated embedded code (expected " + strconv.Quote(closing) + ")"}
	}
	l.advanceBytes(dashes)
	l.advanceBytes(end)
	l.advanceBytes(len(closing))
	l.atLineStart = false
	return l.event(Code, body[:end], start), nil
}

// restOfLineBlank reports whether only spaces/tabs, optionally followed by a
// comment, remain before the next newline.
func (l *Lexer) restOfLineBlank() bool {
	for i := l.pos.Offset; i < len(l.input); i++ {
		switch l.input[i] {
		case ' ', '\t':
		case '\n', '\r':
			return true
		case '#':
			j := i
			for j < len(l.input) && l.input[j] == '#' {
				j++
			}
			if j < len(l.input) && l.input[j] == '{' {
				return false
			}
			return strings.ContainsAny(l.input[j:], "\r\n")
		default:
			return false
		}
	}
	return false
}

// skipComment drops a trailing comment up to, not including, the newline.
func (l *Lexer) skipComment() {
	if l.peek() != '#' {
		return
	}
	for r := l.peek(); r != eof && r != '\n' && r != '\r'; r = l.peek() {
		l.advance()
	}
}

func (l *Lexer) skipBlanks() {
	for {
		if r := l.peek(); r != ' ' && r != '\t' {
			return
		}
		l.advance()
	}
}

// newline consumes "\n", "\r\n" or a lone "\r".
func (l *Lexer) newline() {
	if l.peek() == '\r' {
		l.advanceBytes(1)
		l.pos.Line++
		l.pos.Column = 1
		if l.peek() == '\n' {
			l.pos.Offset++
		}
		return
	}
	l.advance()
}

// count returns how many consecutive bytes equal to c start at the current offset.
func (l *Lexer) count(c byte) int {
	n := 0
	for l.byteAt(n) == c {
		n++
	}
	return n
}

func (l *Lexer) byteAt(i int) byte {
	if j := l.pos.Offset + i; j < len(l.input) {
		return l.input[j]
	}
	return 0
}

func (l *Lexer) peek() rune {
	if l.pos.Offset >= len(l.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos.Offset:])
	return r
}

func (l *Lexer) advance() {
	if l.pos.Offset >= len(l.input) {
		return
	}
	_, size := utf8.DecodeRuneInString(l.input[l.pos.Offset:])
	l.advanceBytes(size)
}

func (l *Lexer) advanceBytes(n int) {
	l.pos = l.pos.Advance(l.input[l.pos.Offset : l.pos.Offset+n])
}
