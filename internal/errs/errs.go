/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package errs defines the error taxonomy of the parser core. Every typed error
// unwraps to one of the sentinels below so callers can branch with errors.Is and
// inspect details with errors.As.
package errs

import (
	"errors"
	"fmt"

	"turnip/internal/source"
)

// Sentinel errors, one per kind.
var (
	// ErrLex marks malformed or unterminated low-level syntax.
	ErrLex = errors.New("lex error")
	// ErrScopeMismatch marks a close marker that does not match the innermost open scope.
	ErrScopeMismatch = errors.New("scope mismatch")
	// ErrCoercion marks a value that cannot become the capability a position requires.
	ErrCoercion = errors.New("coercion error")
	// ErrStructuralType marks a container receiving an element of the wrong type.
	ErrStructuralType = errors.New("structural type error")
	// ErrWeightOrder marks a segment insertion that breaks strict weight nesting.
	ErrWeightOrder = errors.New("weight order error")
	// ErrTurnipText marks a failure raised by embedded code or a scope builder.
	ErrTurnipText = errors.New("turnip text error")
	// ErrAnchor marks an invalid or duplicate anchor, or an unresolvable backref.
	ErrAnchor = errors.New("anchor error")
)

// LexError reports bad syntax at a scanner position.
type LexError struct {
	Pos source.Pos
	Msg string
}

func (e *LexError) Error() string { return fmt.Sprintf("%s: %s", e.Pos, e.Msg) }

func (e *LexError) Unwrap() error { return ErrLex }

// ScopeMismatchError reports a close marker (or an open marker in a forbidden
// place) that does not fit the innermost open scope.
type ScopeMismatchError struct {
	Pos     source.Pos
	Got     string // what was found, e.g. "block close"
	Open    string // innermost open scope kind, empty when nothing is open
	OpenPos source.Pos
}

func (e *ScopeMismatchError) Error() string {
	if e.Open == "" {
		return fmt.Sprintf("%s: unexpected %s with no open scope", e.Pos, e.Got)
	}
	return fmt.Sprintf("%s: unexpected %s inside %s opened at %s", e.Pos, e.Got, e.Open, e.OpenPos)
}

func (e *ScopeMismatchError) Unwrap() error { return ErrScopeMismatch }

// CoercionError names the value that could not be converted and the target capability.
type CoercionError struct {
	Value  any
	Target string
	Reason string
}

func (e *CoercionError) Error() string {
	msg := fmt.Sprintf("cannot coerce %s to %s", Describe(e.Value), e.Target)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *CoercionError) Unwrap() error { return ErrCoercion }

// StructuralTypeError reports a container element that violates the container's element type.
type StructuralTypeError struct {
	Container string
	Index     int // -1 when not applicable
	Value     any
	Want      string
}

func (e *StructuralTypeError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s element %d: expected %s, got %s", e.Container, e.Index, e.Want, Describe(e.Value))
	}
	return fmt.Sprintf("%s: expected %s, got %s", e.Container, e.Want, Describe(e.Value))
}

func (e *StructuralTypeError) Unwrap() error { return ErrStructuralType }

// WeightOrderError reports a child segment whose weight is not strictly greater than its parent's.
type WeightOrderError struct {
	Parent int64
	Got    int64
}

func (e *WeightOrderError) Error() string {
	return fmt.Sprintf("segment weight %d must be greater than parent weight %d", e.Got, e.Parent)
}

func (e *WeightOrderError) Unwrap() error { return ErrWeightOrder }

// AnchorError reports anchor registration or backref resolution problems.
type AnchorError struct {
	Kind   string
	ID     string
	Reason string
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("anchor %s:%s: %s", e.Kind, e.ID, e.Reason)
}

func (e *AnchorError) Unwrap() error { return ErrAnchor }

// TurnipTextError wraps any failure raised by embedded code or a scope builder.
// Unwrap returns the original cause untouched so both errors.Is(err, cause) and
// errors.As reach it.
type TurnipTextError struct {
	Pos   source.Pos
	Op    string // "eval" or "build"
	Cause error
}

func (e *TurnipTextError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Pos, e.Op, e.Cause)
}

func (e *TurnipTextError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrTurnipText) hold while Unwrap still exposes the cause.
func (e *TurnipTextError) Is(target error) bool { return target == ErrTurnipText }

// PanicError carries a value recovered from a panicking callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Describe renders a value for diagnostics: its Go type and a short form of it.
func Describe(v any) string {
	if v == nil {
		return "nil"
	}
	s := fmt.Sprintf("%v", v)
	if r := []rune(s); len(r) > 40 {
		s = string(r[:37]) + "..."
	}
	return fmt.Sprintf("%T(%s)", v, s)
}
