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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalLiterals(t *testing.T) {
	env := NewEnv()
	cases := map[string]any{
		`"hi\n"`:      "hi\n",
		`42`:          int64(42),
		`-7`:          int64(-7),
		`2.5`:         2.5,
		`true`:        true,
		`false`:       false,
		`none`:        nil,
		``:            nil,
		`[1, "a", ]`:  []any{int64(1), "a"},
		`("paren")`:   "paren",
		`x = 1`:       nil,
		`x = 1; x`:    int64(1),
		"y = 2\n y  ": int64(2),
	}
	for src, want := range cases {
		got, err := Eval("t", src, env)
		require.NoError(t, err, src)
		assert.Equal(t, want, got, src)
	}
}

func TestEvalCallsWithKwargs(t *testing.T) {
	env := NewEnv()
	var gotArgs []any
	var gotKw map[string]any
	env.SetFunc("f", func(args []any, kwargs map[string]any) (any, error) {
		gotArgs, gotKw = args, kwargs
		return "done", nil
	})
	v, err := Eval("t", `f(1, name="x", flag=true)`, env)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, []any{int64(1)}, gotArgs)
	assert.Equal(t, map[string]any{"name": "x", "flag": true}, gotKw)
}

func TestEvalChainedCalls(t *testing.T) {
	env := NewEnv()
	env.SetFunc("adder", func(args []any, _ map[string]any) (any, error) {
		base := args[0].(int64)
		return Func(func(args []any, _ map[string]any) (any, error) {
			return base + args[0].(int64), nil
		}), nil
	})
	v, err := Eval("t", `adder(2)(3)`, env)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)
}

func TestEnvPersistsAcrossRegions(t *testing.T) {
	env := NewEnv()
	_, err := Eval("a", `title = "Intro"`, env)
	require.NoError(t, err)
	v, err := Eval("b", `title`, env)
	require.NoError(t, err)
	assert.Equal(t, "Intro", v)
	assert.Contains(t, env.Names(), "title")
}

func TestImport(t *testing.T) {
	env := NewEnv()
	env.RegisterModule("greek", map[string]any{"alpha": "α"})
	v, err := Eval("t", "import greek\nalpha", env)
	require.NoError(t, err)
	assert.Equal(t, "α", v)

	_, err = Eval("t", "import nope", env)
	assert.ErrorIs(t, err, ErrUnknownModule)
}

func TestHostErrorIdentity(t *testing.T) {
	boom := errors.New("boom")
	env := NewEnv()
	env.SetFunc("fail", func([]any, map[string]any) (any, error) { return nil, boom })
	_, err := Eval("t", `fail()`, env)
	assert.Same(t, boom, err)
}

func TestEvalErrors(t *testing.T) {
	env := NewEnv()
	env.Set("n", int64(1))

	_, err := Eval("t", `missing`, env)
	assert.ErrorIs(t, err, ErrUndefined)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Line)

	_, err = Eval("t", `n()`, env)
	assert.ErrorIs(t, err, ErrNotCallable)

	_, err = Eval("t", `f(`, env)
	require.ErrorAs(t, err, &se)
	assert.NotEmpty(t, se.Message)
}

func TestArgHelpers(t *testing.T) {
	args := []any{"pos"}
	kw := map[string]any{"kind": "figure", "w": int64(3)}
	s, err := StringArg(args, kw, 0, "id", "")
	require.NoError(t, err)
	assert.Equal(t, "pos", s)
	s, err = StringArg(args, kw, 1, "kind", "")
	require.NoError(t, err)
	assert.Equal(t, "figure", s)
	s, err = StringArg(args, kw, 1, "label", "dflt")
	require.NoError(t, err)
	assert.Equal(t, "dflt", s)
	w, err := IntArg(args, kw, 1, "w")
	require.NoError(t, err)
	assert.Equal(t, int64(3), w)
	_, err = IntArg(args, kw, 0, "w")
	assert.Error(t, err)
}

func TestHostFuncReadsKeywordArgs(t *testing.T) {
	env := NewEnv()
	env.SetFunc("label", func(args []any, kwargs map[string]any) (any, error) {
		return Arg(args, kwargs, 1, "text", "none"), nil
	})
	v, err := Eval("t", `label("id", text="shown")`, env)
	require.NoError(t, err)
	assert.Equal(t, "shown", v)

	v, err = Eval("t", `label("id")`, env)
	require.NoError(t, err)
	assert.Equal(t, "none", v)
}
