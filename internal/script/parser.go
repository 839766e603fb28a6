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
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Grammar of the embedded language:
//
//	program   = { stmt [";"] }
//	stmt      = "import" ident | ident "=" expr | expr
//	expr      = primary { "(" [ arg { "," arg } [","] ] ")" }
//	arg       = [ ident "=" ] expr
//	primary   = "none" | "true" | "false" | float | int | string | list | ident | "(" expr ")"
//	list      = "[" [ expr { "," expr } [","] ] "]"

//nolint:govet // participle grammar tags are not standard struct tags
type Program struct {
	Stmts []*Stmt `( @@ ";"* )*`
}

//nolint:govet
type Stmt struct {
	Pos    lexer.Position
	Import *string `(  "import" @Ident`
	Assign *Assign ` | @@`
	Expr   *Expr   ` | @@ )`
}

//nolint:govet
type Assign struct {
	Name  string `@Ident "="`
	Value *Expr  `@@`
}

//nolint:govet
type Expr struct {
	Pos     lexer.Position
	Primary *Primary `@@`
	Calls   []*Call  `@@*`
}

//nolint:govet
type Call struct {
	Pos  lexer.Position
	Args []*CallArg `"(" ( @@ ( "," @@ )* ","? )? ")"`
}

//nolint:govet
type CallArg struct {
	Name  *string `( @Ident "=" )?`
	Value *Expr   `@@`
}

//nolint:govet
type Primary struct {
	Pos    lexer.Position
	None   bool     `(  @"none"`
	True   bool     ` | @"true"`
	False  bool     ` | @"false"`
	Float  *float64 ` | @Float`
	Int    *int64   ` | @Int`
	String *string  ` | @String`
	List   *List    ` | @@`
	Ident  *string  ` | @Ident`
	Paren  *Expr    ` | "(" @@ ")" )`
}

//nolint:govet
type List struct {
	Items []*Expr `"[" ( @@ ( "," @@ )* ","? )? "]"`
}

// Order matters: floats before ints, keywords are plain identifiers.
var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Float", Pattern: `[-+]?\d+\.\d+([eE][-+]?\d+)?`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},
	{Name: "Punct", Pattern: `[(),=;\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var scriptParser = participle.MustBuild[Program](
	participle.Lexer(scriptLexer),
	participle.Elide("Comment", "Whitespace"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
)

// Compile parses src without running it. name appears in syntax error positions.
func Compile(name, src string) (*Program, error) {
	prog, err := scriptParser.ParseString(name, src)
	if err != nil {
		if pe, ok := err.(participle.Error); ok {
			pos := pe.Position()
			return nil, &Error{Line: pos.Line, Column: pos.Column, Message: pe.Message()}
		}
		return nil, &Error{Message: err.Error()}
	}
	return prog, nil
}
