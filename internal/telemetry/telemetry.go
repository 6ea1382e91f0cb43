/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry is an opt-in event sender for anonymous command usage and
// optional crash uploads. Nothing is sent unless opted in and an endpoint is set.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	applog "pagebuilder/internal/log"
	"pagebuilder/internal/version"
)

// Config holds runtime configuration for telemetry and crash uploads.
//
// Environment variables (read by FromEnv):
// - PB_TELEMETRY_OPT_IN: "1", "true", "yes" to enable metrics
// - PB_TELEMETRY_URL: URL to POST JSON events to
// - PB_CRASH_UPLOAD_URL: URL to POST crash reports to
// - PB_TELEMETRY_TIMEOUT_MS: request timeout, default 1500ms
// - PB_TELEMETRY_DEBUG: if set, logs send attempts
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("PB_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("PB_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("PB_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("PB_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("PB_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Client is an async sender; it drops events silently on errors and never
// blocks the caller. The queue is bounded.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan map[string]any
	wg     sync.WaitGroup
	once   sync.Once
	closed chan struct{}

	mu       sync.Mutex
	commands map[string]int
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the package client, creating it from the environment on first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// SetDefault installs c as the package client and returns the previous one.
func SetDefault(c *Client) *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultClient
	defaultClient = c
	return prev
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:      cfg,
		log:      applog.WithComponent("telemetry"),
		cli:      &http.Client{Timeout: cfg.Timeout},
		q:        make(chan map[string]any, 64),
		closed:   make(chan struct{}),
		commands: make(map[string]int),
	}
	go c.loop()
	return c
}

// Enabled reports whether telemetry is opted in and an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues a small JSON event if enabled. props must not carry personal data.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		payload[k] = v
	}
	select {
	case <-c.closed:
	case c.q <- payload:
	default:
		// queue full
	}
}

// Command records one invocation of an editor command. Only the command name
// is sent. It fits editor.Options.OnCommand.
func (c *Client) Command(name string) {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	c.commands[name]++
	n := c.commands[name]
	c.mu.Unlock()
	c.Event("command", map[string]any{"command": name, "count": n})
}

// CommandCounts returns how often each command was recorded in this process.
func (c *Client) CommandCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.commands))
	for k, v := range c.commands {
		out[k] = v
	}
	return out
}

// Flush waits until queued events are sent, ctx is done, or 500ms pass.
func (c *Client) Flush(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for len(c.q) > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the background sender and waits for in-flight crash uploads.
func (c *Client) Close() {
	c.once.Do(func() { close(c.closed) })
	c.wg.Wait()
}

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			buf, err := json.Marshal(item)
			if err != nil {
				continue
			}
			c.post(c.cfg.EventsURL, "application/json", buf, "telemetry event")
		}
	}
}

func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug(what+" failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug(what+" sent", slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a serialized crash report to the crash URL if opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	b := append([]byte(nil), report...)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b, "crash upload")
	}()
}

// Event queues an event on the default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// UploadCrash uploads through the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }
