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

import "fmt"

// Eval compiles and runs src in env. The result is the value of the last
// expression statement, or nil when the program ends with an import or an
// assignment (or is empty).
func Eval(name, src string, env *Env) (any, error) {
	prog, err := Compile(name, src)
	if err != nil {
		return nil, err
	}
	return prog.Run(env)
}

// Run executes the program against env.
func (p *Program) Run(env *Env) (any, error) {
	var last any
	for _, st := range p.Stmts {
		switch {
		case st.Import != nil:
			if err := env.Import(*st.Import); err != nil {
				return nil, &Error{Line: st.Pos.Line, Column: st.Pos.Column, Message: err.Error(), Err: err}
			}
			last = nil
		case st.Assign != nil:
			v, err := st.Assign.Value.eval(env)
			if err != nil {
				return nil, err
			}
			env.Set(st.Assign.Name, v)
			last = nil
		case st.Expr != nil:
			v, err := st.Expr.eval(env)
			if err != nil {
				return nil, err
			}
			last = v
		}
	}
	return last, nil
}

func (x *Expr) eval(env *Env) (any, error) {
	v, err := x.Primary.eval(env)
	if err != nil {
		return nil, err
	}
	for _, c := range x.Calls {
		fn, ok := v.(Func)
		if !ok {
			return nil, &Error{Line: c.Pos.Line, Column: c.Pos.Column, Message: fmt.Sprintf("cannot call %T", v), Err: ErrNotCallable}
		}
		var args []any
		var kwargs map[string]any
		for _, a := range c.Args {
			av, err := a.Value.eval(env)
			if err != nil {
				return nil, err
			}
			if a.Name == nil {
				args = append(args, av)
				continue
			}
			if kwargs == nil {
				kwargs = map[string]any{}
			}
			kwargs[*a.Name] = av
		}
		// Host errors are returned as-is so callers can match them by identity.
		if v, err = fn(args, kwargs); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (p *Primary) eval(env *Env) (any, error) {
	switch {
	case p.None:
		return nil, nil
	case p.True:
		return true, nil
	case p.False:
		return false, nil
	case p.Float != nil:
		return *p.Float, nil
	case p.Int != nil:
		return *p.Int, nil
	case p.String != nil:
		return *p.String, nil
	case p.List != nil:
		out := make([]any, 0, len(p.List.Items))
		for _, it := range p.List.Items {
			v, err := it.eval(env)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case p.Ident != nil:
		v, ok := env.Get(*p.Ident)
		if !ok {
			return nil, &Error{Line: p.Pos.Line, Column: p.Pos.Column, Message: fmt.Sprintf("%s is not defined", *p.Ident), Err: ErrUndefined}
		}
		return v, nil
	case p.Paren != nil:
		return p.Paren.eval(env)
	}
	return nil, &Error{Line: p.Pos.Line, Column: p.Pos.Column, Message: "empty expression"}
}

// Args helpers for host functions.

// Arg returns positional argument i or the keyword argument name, whichever is
// present, or def.
func Arg(args []any, kwargs map[string]any, i int, name string, def any) any {
	if i < len(args) {
		return args[i]
	}
	if v, ok := kwargs[name]; ok {
		return v
	}
	return def
}

// StringArg is Arg constrained to strings.
func StringArg(args []any, kwargs map[string]any, i int, name, def string) (string, error) {
	switch v := Arg(args, kwargs, i, name, def).(type) {
	case string:
		return v, nil
	case nil:
		return def, nil
	default:
		return "", fmt.Errorf("argument %s: want string, got %T", name, v)
	}
}

// IntArg is Arg constrained to integers.
func IntArg(args []any, kwargs map[string]any, i int, name string) (int64, error) {
	switch v := Arg(args, kwargs, i, name, nil).(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case nil:
		return 0, fmt.Errorf("argument %s is required", name)
	default:
		return 0, fmt.Errorf("argument %s: want int, got %T", name, v)
	}
}
