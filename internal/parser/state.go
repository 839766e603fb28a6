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

import "strconv"

// State is what the machine is doing, for diagnostics.
type State int

const (
	Idle State = iota
	InBlockScope
	InInlineScope
	InRawScope
	InEmbeddedCode
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case InBlockScope:
		return "InBlockScope"
	case InInlineScope:
		return "InInlineScope"
	case InRawScope:
		return "InRawScope"
	case InEmbeddedCode:
		return "InEmbeddedCode"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

type frameKind int

const (
	documentFrame frameKind = iota
	blockFrame
	inlineFrame
)

func (k frameKind) String() string {
	switch k {
	case documentFrame:
		return "document"
	case blockFrame:
		return "block scope"
	default:
		return "inline scope"
	}
}
