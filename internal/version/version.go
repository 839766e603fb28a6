/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package version exposes build metadata, set via -ldflags at release time:
//
//	go build -ldflags "-X turnip/internal/version.Version=v1.2.0 -X turnip/internal/version.Commit=abc123"
package version

import "runtime/debug"

var (
	Version = "dev"
	Commit  = ""
)

// String returns the version, with the commit when known. For dev builds the
// VCS revision recorded by the Go toolchain is used as the commit.
func String() string {
	commit := Commit
	if commit == "" && Version == "dev" {
		commit = vcsRevision()
	}
	if commit == "" {
		return Version
	}
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return Version + " (" + commit + ")"
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}
