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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

// ParserConfig controls include resolution for documents parsed by the CLI.
type ParserConfig struct {
	IncludePaths    []string `yaml:"include_paths"`
	MaxIncludeDepth int      `yaml:"max_include_depth"`
}

type IndexConfig struct {
	DirName string `yaml:"dir_name"`
}

type BackendConfig struct {
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Password is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Parser        ParserConfig  `yaml:"parser"`
	Index         IndexConfig   `yaml:"index"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false},
		Parser:        ParserConfig{MaxIncludeDepth: 16},
		Index:         IndexConfig{DirName: ".turnip"},
		Backend:       BackendConfig{TimeoutMs: 15000},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvIncludePath      = "TT_INCLUDE_PATH"
	EnvMaxIncludeDepth  = "TT_MAX_INCLUDE_DEPTH"
	EnvIndexDir         = "TT_INDEX_DIR"
	EnvPgDSN            = "TT_PG_DSN"
	EnvBackendTimeoutMs = "TT_BACKEND_TIMEOUT_MS"
	EnvTelemetryOptIn   = "TT_TELEMETRY_OPT_IN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "TT_LOG_LEVEL"
	EnvLogFormat = "TT_LOG_FORMAT"
	EnvLogSource = "TT_LOG_SOURCE"
	EnvLogFile   = "TT_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService  = "turnip"
	keyringPassword = "backend_password"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = &osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// SetTokenStore swaps the secret store and returns the previous one.
func SetTokenStore(ts TokenStore) TokenStore {
	old := tokenStore
	tokenStore = ts
	return old
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (k *osKeyring) Get(service, key string) (string, error) { return keyringGet(service, key) }
func (k *osKeyring) Set(service, key, value string) error   { return keyringSet(service, key, value) }
func (k *osKeyring) Delete(service, key string) error       { return keyringDelete(service, key) }

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "turnip")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "turnip")
	default: // linux and others
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "turnip")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "turnip")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend password from keyring (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	pw, _ := tokenStore.Get(keyringService, keyringPassword)
	return cfg, pw, nil
}

// Save writes the user config YAML and persists the password into OS keyring (if non-empty).
func Save(cfg AppConfig, password string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if password != "" {
		if err := tokenStore.Set(keyringService, keyringPassword, password); err != nil {
			return err
		}
	}
	return nil
}

// ForgetPassword removes the backend password from the keyring.
func ForgetPassword() error {
	return tokenStore.Delete(keyringService, keyringPassword)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if len(src.Parser.IncludePaths) > 0 {
		dst.Parser.IncludePaths = append([]string(nil), src.Parser.IncludePaths...)
	}
	if src.Parser.MaxIncludeDepth > 0 {
		dst.Parser.MaxIncludeDepth = src.Parser.MaxIncludeDepth
	}
	if strings.TrimSpace(src.Index.DirName) != "" {
		dst.Index.DirName = strings.TrimSpace(src.Index.DirName)
	}
	if src.Backend.DSN != "" {
		dst.Backend.DSN = src.Backend.DSN
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvIncludePath)); v != "" {
		var paths []string
		for _, p := range filepath.SplitList(v) {
			if p = strings.TrimSpace(p); p != "" {
				paths = append(paths, p)
			}
		}
		cfg.Parser.IncludePaths = paths
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxIncludeDepth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Parser.MaxIncludeDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvIndexDir)); v != "" {
		cfg.Index.DirName = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPgDSN)); v != "" {
		cfg.Backend.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideEnv = map[string]string{
	"parser.include_paths":     EnvIncludePath,
	"parser.max_include_depth": EnvMaxIncludeDepth,
	"index.dir_name":           EnvIndexDir,
	"backend.dsn":              EnvPgDSN,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideEnv[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// EffectiveTimeout returns the backend timeout as a duration-like milliseconds string.
func (b BackendConfig) EffectiveTimeout() string {
	if b.TimeoutMs <= 0 {
		return fmt.Sprintf("%dms", Defaults().Backend.TimeoutMs)
	}
	return fmt.Sprintf("%dms", b.TimeoutMs)
}
