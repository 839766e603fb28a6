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
	"strconv"

	"turnip/internal/doctree"
	"turnip/internal/script"
	"turnip/internal/source"
)

// Builder is what code directly in front of a scope must evaluate to. The
// closure matching the scope kind receives the finished content exactly once
// and its result is emitted in place of the scope. Closures left nil make the
// builder reject that scope kind.
type Builder struct {
	Name    string
	Blocks  func(*doctree.BlockScope) (any, error)
	Inlines func(*doctree.InlineScope) (any, error)
	Raw     func(string) (any, error)
}

func (b *Builder) String() string {
	if b.Name == "" {
		return "builder"
	}
	return "builder " + strconv.Quote(b.Name)
}

// InsertSource splices another source at the current block position.
type InsertSource struct {
	Source *source.Source
}

// IncludePath is InsertSource by name; the name goes through the parser's Resolver.
type IncludePath struct {
	Path string
}

// Evaluator runs the text of one embedded code region against the shared environment.
type Evaluator interface {
	Evaluate(code string, env *script.Env, at source.Pos) (any, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(code string, env *script.Env, at source.Pos) (any, error)

func (f EvaluatorFunc) Evaluate(code string, env *script.Env, at source.Pos) (any, error) {
	return f(code, env, at)
}

// ScriptEvaluator evaluates code with the built-in script interpreter.
type ScriptEvaluator struct{}

func (ScriptEvaluator) Evaluate(code string, env *script.Env, at source.Pos) (any, error) {
	return script.Eval(at.String(), code, env)
}
