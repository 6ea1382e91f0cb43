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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type EditorConfig struct {
	SnapThreshold      float64 `yaml:"snap_threshold"`
	HistoryLimit       int     `yaml:"history_limit"`
	AutosaveIntervalMs int     `yaml:"autosave_interval_ms"`
	Preview            bool    `yaml:"preview"`
}

type CanvasConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type StorageConfig struct {
	SnapshotKeep int `yaml:"snapshot_keep"`
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool `yaml:"telemetry_opt_in"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Editor        EditorConfig  `yaml:"editor"`
	Canvas        CanvasConfig  `yaml:"canvas"`
	Storage       StorageConfig `yaml:"storage"`
	General       GeneralConfig `yaml:"general"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor:        EditorConfig{SnapThreshold: 5, HistoryLimit: 0, AutosaveIntervalMs: 30000},
		Canvas:        CanvasConfig{Width: 800, Height: 600},
		Storage:       StorageConfig{SnapshotKeep: 20},
		General:       GeneralConfig{TelemetryOptIn: false},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000, Addr: ":8080"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvSnapThreshold    = "PB_SNAP_THRESHOLD"
	EnvHistoryLimit     = "PB_HISTORY_LIMIT"
	EnvAutosaveMs       = "PB_AUTOSAVE_INTERVAL_MS"
	EnvSnapshotKeep     = "PB_SNAPSHOT_KEEP"
	EnvBackendURL       = "PB_BACKEND_URL"
	EnvBackendTimeoutMs = "PB_BACKEND_TIMEOUT_MS"
	EnvBackendAddr      = "PB_ADDR"
	EnvDatabaseURL      = "PB_DATABASE_URL"
	EnvRedisURL         = "PB_REDIS_URL"
	EnvTelemetryOptIn   = "PB_TELEMETRY_OPT_IN"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "PB_LOG_LEVEL"
	EnvLogFormat = "PB_LOG_FORMAT"
	EnvLogSource = "PB_LOG_SOURCE"
	EnvLogFile   = "PB_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "PageBuilder"
	keyringToken   = "backend_token"
)

// TokenStore abstracts the keyring, so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var tokenStore TokenStore = osKeyring{}

// SetTokenStore swaps the token backend and returns the previous one.
func SetTokenStore(ts TokenStore) TokenStore {
	prev := tokenStore
	tokenStore = ts
	return prev
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigPath returns the per-user config file path. PB_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv("PB_CONFIG")); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "pagebuilder", "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the backend token from keyring (not kept inside the struct; returned separately).
// A missing keyring entry or an unavailable keyring yields an empty token.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
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
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// ClearToken removes the stored backend token.
func ClearToken() error {
	err := tokenStore.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Editor.SnapThreshold > 0 {
		dst.Editor.SnapThreshold = src.Editor.SnapThreshold
	}
	if src.Editor.HistoryLimit > 0 {
		dst.Editor.HistoryLimit = src.Editor.HistoryLimit
	}
	if src.Editor.AutosaveIntervalMs > 0 {
		dst.Editor.AutosaveIntervalMs = src.Editor.AutosaveIntervalMs
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.Editor.Preview = src.Editor.Preview
	if src.Canvas.Width > 0 {
		dst.Canvas.Width = src.Canvas.Width
	}
	if src.Canvas.Height > 0 {
		dst.Canvas.Height = src.Canvas.Height
	}
	if src.Storage.SnapshotKeep > 0 {
		dst.Storage.SnapshotKeep = src.Storage.SnapshotKeep
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	if src.Backend.Addr != "" {
		dst.Backend.Addr = src.Backend.Addr
	}
	if src.Backend.DatabaseURL != "" {
		dst.Backend.DatabaseURL = src.Backend.DatabaseURL
	}
	if src.Backend.RedisURL != "" {
		dst.Backend.RedisURL = src.Backend.RedisURL
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

func envBool(name string) (bool, bool) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	if v == "" {
		return false, false
	}
	return v == "1" || v == "true" || v == "on" || v == "yes", true
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func envString(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	return v, v != ""
}

func applyEnvOverrides(cfg *AppConfig) {
	if v, ok := envString(EnvSnapThreshold); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Editor.SnapThreshold = f
		}
	}
	if n, ok := envInt(EnvHistoryLimit); ok && n >= 0 {
		cfg.Editor.HistoryLimit = n
	}
	if n, ok := envInt(EnvAutosaveMs); ok && n > 0 {
		cfg.Editor.AutosaveIntervalMs = n
	}
	if n, ok := envInt(EnvSnapshotKeep); ok && n > 0 {
		cfg.Storage.SnapshotKeep = n
	}
	if v, ok := envString(EnvBackendURL); ok {
		cfg.Backend.BaseURL = v
	}
	if n, ok := envInt(EnvBackendTimeoutMs); ok {
		cfg.Backend.TimeoutMs = n
	}
	if v, ok := envString(EnvBackendAddr); ok {
		cfg.Backend.Addr = v
	}
	if v, ok := envString(EnvDatabaseURL); ok {
		cfg.Backend.DatabaseURL = v
	}
	if v, ok := envString(EnvRedisURL); ok {
		cfg.Backend.RedisURL = v
	}
	if b, ok := envBool(EnvTelemetryOptIn); ok {
		cfg.General.TelemetryOptIn = b
	}
	// logging overrides
	if v, ok := envString(EnvLogLevel); ok {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v, ok := envString(EnvLogFormat); ok {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if b, ok := envBool(EnvLogSource); ok {
		cfg.Logging.Source = b
	}
	if v, ok := envString(EnvLogFile); ok {
		cfg.Logging.File = v
	}
}

var envByKey = map[string]string{
	"editor.snap_threshold":       EnvSnapThreshold,
	"editor.history_limit":        EnvHistoryLimit,
	"editor.autosave_interval_ms": EnvAutosaveMs,
	"storage.snapshot_keep":       EnvSnapshotKeep,
	"backend.base_url":            EnvBackendURL,
	"backend.timeout_ms":          EnvBackendTimeoutMs,
	"backend.addr":                EnvBackendAddr,
	"backend.database_url":        EnvDatabaseURL,
	"backend.redis_url":           EnvRedisURL,
	"general.telemetry_opt_in":    EnvTelemetryOptIn,
	"logging.level":               EnvLogLevel,
	"logging.format":              EnvLogFormat,
	"logging.source":              EnvLogSource,
	"logging.file":                EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envByKey[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the backend request timeout.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// AutosaveInterval returns the minimum gap between autosave snapshots.
func (e EditorConfig) AutosaveInterval() time.Duration {
	if e.AutosaveIntervalMs <= 0 {
		return time.Duration(Defaults().Editor.AutosaveIntervalMs) * time.Millisecond
	}
	return time.Duration(e.AutosaveIntervalMs) * time.Millisecond
}
