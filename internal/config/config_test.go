/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

type memStore struct{ m map[string]string }

func (s *memStore) Get(service, key string) (string, error) {
	v, ok := s.m[service+"/"+key]
	if !ok {
		return "", os.ErrNotExist
	}
	return v, nil
}
func (s *memStore) Set(service, key, value string) error { s.m[service+"/"+key] = value; return nil }
func (s *memStore) Delete(service, key string) error {
	delete(s.m, service+"/"+key)
	return nil
}

// isolate points the config dir at a temp dir and swaps in an in-memory keyring.
func isolate(t *testing.T) *memStore {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("AppData", dir)
	ms := &memStore{m: map[string]string{}}
	old := SetTokenStore(ms)
	t.Cleanup(func() { SetTokenStore(old) })
	return ms
}

func TestEnvOverridesDSN(t *testing.T) {
	isolate(t)
	t.Setenv(EnvPgDSN, "postgres://u@db.test/turnip")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.DSN, "postgres://u@db.test/turnip"; got != want {
		t.Fatalf("Backend.DSN = %q, want %q", got, want)
	}
	if env, ok := EnvOverrideFor("backend.dsn"); !ok || env != EnvPgDSN {
		t.Fatalf("EnvOverrideFor(backend.dsn) = %q, %v", env, ok)
	}
	if _, ok := EnvOverrideFor("index.dir_name"); ok {
		t.Fatalf("index.dir_name should not be overridden")
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestEnvOverridesParser(t *testing.T) {
	isolate(t)
	t.Setenv(EnvIncludePath, "a"+string(os.PathListSeparator)+" "+string(os.PathListSeparator)+"b")
	t.Setenv(EnvMaxIncludeDepth, "4")
	t.Setenv(EnvIndexDir, ".idx")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(cfg.Parser.IncludePaths, []string{"a", "b"}) {
		t.Fatalf("IncludePaths = %#v", cfg.Parser.IncludePaths)
	}
	if cfg.Parser.MaxIncludeDepth != 4 || cfg.Index.DirName != ".idx" {
		t.Fatalf("parser/index overrides not applied: %#v %#v", cfg.Parser, cfg.Index)
	}
}

func TestBadMaxIncludeDepthIgnored(t *testing.T) {
	isolate(t)
	t.Setenv(EnvMaxIncludeDepth, "-3")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Parser.MaxIncludeDepth != 16 {
		t.Fatalf("expected default depth, got %d", cfg.Parser.MaxIncludeDepth)
	}
}

func TestMergeIncludesParser(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Parser: ParserConfig{IncludePaths: []string{"lib"}, MaxIncludeDepth: 3}}
	mergeInto(&dst, &src)
	if len(dst.Parser.IncludePaths) != 1 || dst.Parser.MaxIncludeDepth != 3 {
		t.Fatalf("parser fields not merged: %#v", dst.Parser)
	}
	if dst.Index.DirName != ".turnip" {
		t.Fatalf("empty dir_name should keep default, got %q", dst.Index.DirName)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/tt.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/tt.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/tmp/tt.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/tmp/tt.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestSaveLoadRoundTripWithPassword(t *testing.T) {
	ms := isolate(t)
	cfg := Defaults()
	cfg.Backend.DSN = "postgres://localhost/tt"
	cfg.Parser.IncludePaths = []string{"shared"}
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ms.m[keyringService+"/"+keyringPassword] != "s3cret" {
		t.Fatalf("password not stored in keyring: %#v", ms.m)
	}
	path, _ := ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if strings.Contains(string(data), "s3cret") {
		t.Fatalf("password leaked into config file")
	}
	got, pw, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if pw != "s3cret" || got.Backend.DSN != cfg.Backend.DSN || got.Parser.IncludePaths[0] != "shared" {
		t.Fatalf("round trip mismatch: %#v pw=%q", got, pw)
	}
	if err := ForgetPassword(); err != nil {
		t.Fatalf("ForgetPassword: %v", err)
	}
	if _, pw, _ = Load(); pw != "" {
		t.Fatalf("password still present after ForgetPassword")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	isolate(t)
	path, _ := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("parser: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed yaml")
	}
}

func TestEffectiveTimeout(t *testing.T) {
	if got := (BackendConfig{}).EffectiveTimeout(); got != "15000ms" {
		t.Fatalf("default timeout = %q", got)
	}
	if got := (BackendConfig{TimeoutMs: 250}).EffectiveTimeout(); got != "250ms" {
		t.Fatalf("timeout = %q", got)
	}
}
