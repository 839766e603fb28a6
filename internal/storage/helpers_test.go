/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"testing"

	"turnip/internal/builtins"
	"turnip/internal/doctree"
	"turnip/internal/parser"
	"turnip/internal/script"
)

const sampleDoc = `Intro line.

[chapter]{One [anchor("sec", "one")]}
Hello there. See [ref("fig")].
[code]#{x := 1}#
[section]{Inner}
[quote]{
  Quoted words.
}
[chapter]{Two}
Closing [anchor("figure", "fig")] words.
`

func parseDoc(t testing.TB, name, text string) *doctree.Document {
	t.Helper()
	env := script.NewEnv()
	reg := doctree.NewAnchorRegistry()
	builtins.Install(env, reg)
	doc, err := parser.ParseString(name, text, env, parser.Options{Anchors: reg})
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return doc
}
