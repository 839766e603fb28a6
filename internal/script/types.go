/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	ErrUndefined     = errors.New("undefined name")
	ErrNotCallable   = errors.New("value is not callable")
	ErrUnknownModule = errors.New("unknown module")
)

// Func is the calling convention for host functions exposed to scripts.
type Func func(args []any, kwargs map[string]any) (any, error)

// Error is a syntax or evaluation error raised by the interpreter itself.
// Errors returned by host functions pass through untouched.
type Error struct {
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Line == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Env is the mutable namespace shared by every code region of one parse.
// Assignments made in one region are visible to all later ones.
type Env struct {
	vars    map[string]any
	modules map[string]map[string]any
}

func NewEnv() *Env {
	return &Env{vars: map[string]any{}, modules: map[string]map[string]any{}}
}

func (e *Env) Set(name string, v any) { e.vars[name] = v }

func (e *Env) Get(name string) (any, bool) {
	v, ok := e.vars[name]
	return v, ok
}

// SetFunc is Set for host functions.
func (e *Env) SetFunc(name string, fn Func) { e.vars[name] = fn }

// Update copies every entry of vars into the environment.
func (e *Env) Update(vars map[string]any) { maps.Copy(e.vars, vars) }

// Names lists the defined names, sorted.
func (e *Env) Names() []string { return slices.Sorted(maps.Keys(e.vars)) }

// RegisterModule makes members importable with "import name".
func (e *Env) RegisterModule(name string, members map[string]any) {
	e.modules[name] = maps.Clone(members)
}

// Import copies the members of a registered module into the namespace.
func (e *Env) Import(name string) error {
	m, ok := e.modules[name]
	if !ok {
		return fmt.Errorf("import %s: %w", name, ErrUnknownModule)
	}
	maps.Copy(e.vars, m)
	return nil
}
