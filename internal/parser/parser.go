/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package parser is the scope stack machine. It pulls events from the lexer,
// evaluates embedded code through an Evaluator, hands finished scopes to
// builders, coerces every produced value into the tree and assembles the
// Document. Included sources are parsed by plain recursion into the same frame
// stack and environment.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"turnip/internal/doctree"
	"turnip/internal/errs"
	"turnip/internal/lexer"
	tlog "turnip/internal/log"
	"turnip/internal/script"
	"turnip/internal/source"
)

// DefaultMaxIncludeDepth bounds nested includes, which also stops include cycles.
const DefaultMaxIncludeDepth = 16

// Options tune a parse. The zero value is usable.
type Options struct {
	Evaluator       Evaluator          // default ScriptEvaluator
	Resolver        source.Resolver    // default DirResolver with no extra roots
	MaxIncludeDepth int                // default DefaultMaxIncludeDepth
	Anchors         *doctree.AnchorRegistry
	Logger          *slog.Logger
}

// Parser holds the state of one parse. It is not safe for concurrent use and
// must not share its environment with another running parse.
type Parser struct {
	env  *script.Env
	opts Options
	log  *slog.Logger

	doc      *doctree.Document
	stack    []*frame
	depth    int
	includes int
	cur      *source.Source
	activity State
}

// New prepares a parser. A nil env gets a fresh empty environment.
func New(env *script.Env, opts Options) *Parser {
	if env == nil {
		env = script.NewEnv()
	}
	if opts.Evaluator == nil {
		opts.Evaluator = ScriptEvaluator{}
	}
	if opts.Resolver == nil {
		opts.Resolver = source.DirResolver{}
	}
	if opts.MaxIncludeDepth <= 0 {
		opts.MaxIncludeDepth = DefaultMaxIncludeDepth
	}
	if opts.Anchors == nil {
		opts.Anchors = doctree.NewAnchorRegistry()
	}
	l := opts.Logger
	if l == nil {
		l = tlog.WithComponent("parser")
	}
	return &Parser{env: env, opts: opts, log: l}
}

// Parse reads src to completion into a new Document using env as the shared
// document environment.
func Parse(src *source.Source, env *script.Env, opts Options) (*doctree.Document, error) {
	return New(env, opts).Parse(src)
}

// ParseString is Parse over an in-memory source.
func ParseString(name, text string, env *script.Env, opts Options) (*doctree.Document, error) {
	return Parse(source.FromString(name, text), env, opts)
}

// Env returns the environment shared by every code region of the parse.
func (p *Parser) Env() *script.Env { return p.env }

// Anchors returns the registry anchors are created in.
func (p *Parser) Anchors() *doctree.AnchorRegistry { return p.opts.Anchors }

// Includes reports how many sources the last Parse inserted.
func (p *Parser) Includes() int { return p.includes }

// State reports what the machine is currently doing.
func (p *Parser) State() State {
	if p.activity != Idle {
		return p.activity
	}
	if len(p.stack) == 0 {
		return Idle
	}
	switch p.stack[len(p.stack)-1].kind {
	case blockFrame:
		return InBlockScope
	case inlineFrame:
		return InInlineScope
	}
	return Idle
}

// Parse runs the machine over src. The first error aborts the parse and no
// partial document is returned.
func (p *Parser) Parse(src *source.Source) (*doctree.Document, error) {
	doc, err := doctree.NewDocument(nil)
	if err != nil {
		return nil, err
	}
	p.doc = doc
	p.stack = []*frame{{kind: documentFrame, openPos: source.Pos{Source: src.Name, Line: 1, Column: 1}}}
	p.depth = 0
	p.includes = 0
	if err := p.run(src); err != nil {
		return nil, err
	}
	return p.doc, nil
}

type stream struct {
	lx     *lexer.Lexer
	peeked *lexer.Event
}

func (s *stream) next() (lexer.Event, error) {
	if s.peeked != nil {
		ev := *s.peeked
		s.peeked = nil
		return ev, nil
	}
	return s.lx.Next()
}

func (s *stream) peek() (lexer.Event, error) {
	if s.peeked == nil {
		ev, err := s.lx.Next()
		if err != nil {
			return ev, err
		}
		s.peeked = &ev
	}
	return *s.peeked, nil
}

// run feeds one source into the current stack. Frames below base belong to the
// including source and cannot be closed from here.
func (p *Parser) run(src *source.Source) error {
	lx, err := lexer.New(src)
	if err != nil {
		return err
	}
	prev := p.cur
	p.cur = src
	defer func() { p.cur = prev }()

	st := &stream{lx: lx}
	base := len(p.stack)
	for {
		ev, err := st.next()
		if err != nil {
			return err
		}
		top := p.top()
		switch ev.Kind {
		case lexer.EOF:
			if len(p.stack) > base {
				return &errs.LexError{Pos: top.openPos, Msg: top.kind.String() + " is never closed"}
			}
			return p.endParagraph(top)
		case lexer.Text:
			if top.kind == inlineFrame {
				top.appendText(ev.Value)
				continue
			}
			if err := p.addText(top, ev.Value); err != nil {
				return err
			}
		case lexer.Escaped:
			top.appendText(ev.Value)
			top.lineContent = true
		case lexer.Newline:
			err = p.newline(top, ev)
		case lexer.InlineOpen:
			p.push(&frame{kind: inlineFrame, openPos: ev.Start})
		case lexer.BlockOpen:
			err = p.openBlock(ev, nil, source.Pos{})
		case lexer.InlineClose, lexer.BlockClose:
			err = p.close(ev, base)
		case lexer.Raw:
			top.lineContent = true
			err = p.emit(top, doctree.Raw(ev.Value), ev.Start)
		case lexer.Code:
			err = p.code(st, ev)
		}
		if err != nil {
			return err
		}
	}
}

func (p *Parser) top() *frame { return p.stack[len(p.stack)-1] }

func (p *Parser) push(f *frame) {
	if f.kind == blockFrame {
		f.blocks = &doctree.BlockScope{}
	}
	p.stack = append(p.stack, f)
}

func (p *Parser) pop() *frame {
	f := p.top()
	p.stack = p.stack[:len(p.stack)-1]
	return f
}

// addText splits a text run into sentences.
func (p *Parser) addText(f *frame, s string) error {
	f.lineContent = true
	for s != "" {
		i := sentenceEnd(s)
		if i < 0 {
			f.appendText(s)
			return nil
		}
		f.appendText(s[:i])
		if err := p.endSentence(f); err != nil {
			return err
		}
		s = strings.TrimLeft(s[i:], " \t")
	}
	return nil
}

func (p *Parser) newline(f *frame, ev lexer.Event) error {
	if f.kind == inlineFrame {
		return &errs.LexError{Pos: ev.Start, Msg: fmt.Sprintf("inline scope opened at %s not closed before end of line", f.openPos)}
	}
	if f.lineContent {
		f.lineContent = false
		return p.endSentence(f)
	}
	return p.endParagraph(f)
}

func (p *Parser) endSentence(f *frame) error {
	f.flushText(true)
	if len(f.items) == 0 {
		return nil
	}
	s, err := doctree.NewSentence(f.items...)
	if err != nil {
		return err
	}
	f.items = nil
	f.para = append(f.para, s)
	return nil
}

func (p *Parser) endParagraph(f *frame) error {
	if f.kind == inlineFrame {
		return nil
	}
	if err := p.endSentence(f); err != nil {
		return err
	}
	if len(f.para) == 0 {
		return nil
	}
	para, err := doctree.NewParagraph(f.para...)
	if err != nil {
		return err
	}
	f.para = nil
	return p.target(f).Push(para)
}

// target is where finished blocks of a block-level frame go. In the document
// frame that is the contents of the most recently opened segment.
func (p *Parser) target(f *frame) *doctree.BlockScope {
	if f.kind == blockFrame {
		return f.blocks
	}
	if last := p.doc.Last(); last != nil {
		return last.Contents
	}
	return p.doc.Contents
}

func (p *Parser) openBlock(ev lexer.Event, b *Builder, builderPos source.Pos) error {
	top := p.top()
	if top.kind == inlineFrame {
		return &errs.ScopeMismatchError{Pos: ev.Start, Got: "block scope open", Open: top.kind.String(), OpenPos: top.openPos}
	}
	if top.inSentence() {
		return &errs.ScopeMismatchError{Pos: ev.Start, Got: "block scope open in the middle of a sentence", Open: top.kind.String(), OpenPos: top.openPos}
	}
	if err := p.endParagraph(top); err != nil {
		return err
	}
	p.push(&frame{kind: blockFrame, openPos: ev.Start, builder: b, builderPos: builderPos})
	return nil
}

func (p *Parser) close(ev lexer.Event, base int) error {
	got, want := "inline scope close", inlineFrame
	if ev.Kind == lexer.BlockClose {
		got, want = "block scope close", blockFrame
	}
	if len(p.stack) <= base {
		return &errs.ScopeMismatchError{Pos: ev.Start, Got: got}
	}
	top := p.top()
	if top.kind != want {
		return &errs.ScopeMismatchError{Pos: ev.Start, Got: got, Open: top.kind.String(), OpenPos: top.openPos}
	}
	f := p.pop()
	parent := p.top()
	parent.lineContent = true

	var content any
	if f.kind == inlineFrame {
		f.flushText(false)
		scope, err := doctree.NewInlineScope(f.items...)
		if err != nil {
			return err
		}
		content = scope
		if f.builder != nil {
			content, err = p.guard("build", f.builderPos, func() (any, error) { return f.builder.Inlines(scope) })
			if err != nil {
				return err
			}
		}
	} else {
		if err := p.endParagraph(f); err != nil {
			return err
		}
		content = f.blocks
		if f.builder != nil {
			var err error
			content, err = p.guard("build", f.builderPos, func() (any, error) { return f.builder.Blocks(f.blocks) })
			if err != nil {
				return err
			}
		}
	}
	return p.emit(parent, content, f.openPos)
}

// code evaluates an embedded code region. When the next event is a scope or
// raw open touching the region, the value must be a Builder for that scope.
func (p *Parser) code(st *stream, ev lexer.Event) error {
	p.log.Debug("evaluate", "at", ev.Start.String(), "len", len(ev.Value))
	v, err := p.evaluate(ev)
	if err != nil {
		return err
	}
	next, err := st.peek()
	if err != nil {
		return err
	}
	adjacent := next.Start.Offset == ev.End.Offset
	if !adjacent || (next.Kind != lexer.BlockOpen && next.Kind != lexer.InlineOpen && next.Kind != lexer.Raw) {
		top := p.top()
		top.lineContent = true
		return p.emit(top, v, ev.Start)
	}

	b, ok := v.(*Builder)
	if !ok || b == nil {
		return &errs.CoercionError{Value: v, Target: "scope builder", Reason: "code directly followed by a scope must evaluate to a builder"}
	}
	if _, err := st.next(); err != nil {
		return err
	}
	switch next.Kind {
	case lexer.Raw:
		if b.Raw == nil {
			return &errs.CoercionError{Value: b, Target: "raw builder", Reason: b.String() + " does not accept raw content"}
		}
		p.activity = InRawScope
		res, err := p.guard("build", ev.Start, func() (any, error) { return b.Raw(next.Value) })
		p.activity = Idle
		if err != nil {
			return err
		}
		top := p.top()
		top.lineContent = true
		return p.emit(top, res, next.Start)
	case lexer.InlineOpen:
		if b.Inlines == nil {
			return &errs.CoercionError{Value: b, Target: "inline builder", Reason: b.String() + " does not accept an inline scope"}
		}
		p.push(&frame{kind: inlineFrame, openPos: next.Start, builder: b, builderPos: ev.Start})
		return nil
	default:
		if b.Blocks == nil {
			return &errs.CoercionError{Value: b, Target: "block builder", Reason: b.String() + " does not accept a block scope"}
		}
		return p.openBlock(next, b, ev.Start)
	}
}

func (p *Parser) evaluate(ev lexer.Event) (any, error) {
	p.activity = InEmbeddedCode
	defer func() { p.activity = Idle }()
	return p.guard("eval", ev.Start, func() (any, error) {
		return p.opts.Evaluator.Evaluate(ev.Value, p.env, ev.Start)
	})
}

// guard runs user code. Failures become a TurnipTextError holding the original
// error as Cause; an error that already is one (from a nested parse) passes
// through so the innermost cause survives any include depth.
func (p *Parser) guard(op string, at source.Pos, fn func() (any, error)) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, &errs.TurnipTextError{Pos: at, Op: op, Cause: &errs.PanicError{Value: r}}
		}
	}()
	v, err = fn()
	if err != nil {
		var tte *errs.TurnipTextError
		if errors.As(err, &tte) {
			return nil, err
		}
		return nil, &errs.TurnipTextError{Pos: at, Op: op, Cause: err}
	}
	return v, nil
}

// emit places a produced value into frame f.
func (p *Parser) emit(f *frame, v any, at source.Pos) error {
	switch x := v.(type) {
	case InsertSource:
		return p.include(f, x.Source, v, at)
	case *InsertSource:
		if x != nil {
			return p.include(f, x.Source, v, at)
		}
	case IncludePath:
		return p.includePath(f, x.Path, v, at)
	case *IncludePath:
		if x != nil {
			return p.includePath(f, x.Path, v, at)
		}
	}

	c, err := doctree.Classify(v)
	if err != nil {
		return err
	}
	switch c.Kind {
	case doctree.KindNone:
		return nil
	case doctree.KindInline:
		f.flushText(false)
		f.items = append(f.items, c.Inline)
		return nil
	case doctree.KindSequence:
		for _, item := range c.Items {
			if err := p.emit(f, item, at); err != nil {
				return err
			}
		}
		return nil
	}

	if f.kind == inlineFrame {
		return &errs.CoercionError{Value: v, Target: "Inline", Reason: "inline scopes only hold inline content"}
	}
	if f.inSentence() {
		return &errs.CoercionError{Value: v, Target: "Inline", Reason: "a " + c.Kind.String() + " cannot appear in the middle of a sentence"}
	}
	if err := p.endParagraph(f); err != nil {
		return err
	}
	switch c.Kind {
	case doctree.KindHeader:
		if f.kind != documentFrame {
			return &errs.StructuralTypeError{Container: f.kind.String(), Index: -1, Value: v, Want: "Block (headers are only allowed at document level)"}
		}
		_, err := p.doc.AppendHeader(c.Header)
		return err
	case doctree.KindSegment:
		if f.kind != documentFrame {
			return &errs.StructuralTypeError{Container: f.kind.String(), Index: -1, Value: v, Want: "Block (segments are only allowed at document level)"}
		}
		return p.doc.AppendSegment(c.Segment)
	default:
		return p.target(f).Push(c.Block)
	}
}

func (p *Parser) includePath(f *frame, name string, v any, at source.Pos) error {
	src, err := p.opts.Resolver.Resolve(p.cur, name)
	if err != nil {
		return &errs.TurnipTextError{Pos: at, Op: "include", Cause: err}
	}
	return p.include(f, src, v, at)
}

// include parses src into frame f, which must be at a block position.
func (p *Parser) include(f *frame, src *source.Source, v any, at source.Pos) error {
	if src == nil {
		return &errs.CoercionError{Value: v, Target: "source", Reason: "nil source"}
	}
	if f.kind == inlineFrame || f.inSentence() {
		return &errs.CoercionError{Value: v, Target: "Block", Reason: "sources can only be inserted at block level"}
	}
	if p.depth >= p.opts.MaxIncludeDepth {
		return &errs.LexError{Pos: at, Msg: fmt.Sprintf("include depth %d exceeded while inserting %s", p.opts.MaxIncludeDepth, src.Name)}
	}
	if err := p.endParagraph(f); err != nil {
		return err
	}
	p.depth++
	p.includes++
	defer func() { p.depth-- }()
	p.log.Debug("include enter", "source", src.Name, "depth", p.depth, "at", at.String())
	if err := p.run(src); err != nil {
		return err
	}
	p.log.Debug("include leave", "source", src.Name, "depth", p.depth)
	return nil
}
