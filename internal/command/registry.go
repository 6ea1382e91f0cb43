/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package command runs named editor operations and keeps their undo history.
//
// Every invocation executes the command's forward action immediately. Commands
// flagged with PushQueue are recorded in a linear History; invoking one after
// an undo discards the undone tail.
package command

import (
	"errors"
	"fmt"
	"log/slog"

	"pagebuilder/internal/events"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidArgs    = errors.New("invalid command arguments")
)

// Command describes one named operation.
type Command struct {
	Name string
	// Keyboard is the shortcut as written by events.Key.String, e.g. "ctrl+z".
	Keyboard string
	// PushQueue records the command in history.
	PushQueue bool
	Execute   func(args ...any) (Record, error)
	// Init runs once on Start and may return a teardown run on Close.
	Init func() (teardown func())
}

// Options configures a Registry.
type Options struct {
	// HistoryLimit caps the history depth; 0 keeps everything.
	HistoryLimit int
	// OnInvoke is called with the name of every successfully invoked command.
	OnInvoke func(name string)
	Logger   *slog.Logger
}

// Registry holds the registered commands and their shared history.
// It is not safe for concurrent use.
type Registry struct {
	history   *History
	commands  map[string]Command
	order     []string
	teardowns []func()
	started   bool
	onInvoke  func(string)
	log       *slog.Logger
}

func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		history:  NewHistory(opts.HistoryLimit),
		commands: make(map[string]Command),
		onInvoke: opts.OnInvoke,
		log:      opts.Logger,
	}
}

// Register adds c, replacing a command with the same name. Commands registered
// after Start have their Init run immediately.
func (r *Registry) Register(c Command) {
	if _, ok := r.commands[c.Name]; !ok {
		r.order = append(r.order, c.Name)
	}
	r.commands[c.Name] = c
	if r.started && c.Init != nil {
		if td := c.Init(); td != nil {
			r.teardowns = append(r.teardowns, td)
		}
	}
}

// Start runs the Init hook of every registered command. It is idempotent.
func (r *Registry) Start() {
	if r.started {
		return
	}
	r.started = true
	for _, name := range r.order {
		if c := r.commands[name]; c.Init != nil {
			if td := c.Init(); td != nil {
				r.teardowns = append(r.teardowns, td)
			}
		}
	}
}

// Close runs every teardown returned by Init hooks.
func (r *Registry) Close() {
	for _, td := range r.teardowns {
		td()
	}
	r.teardowns = nil
	r.started = false
}

// Invoke executes the named command and applies its forward action.
func (r *Registry) Invoke(name string, args ...any) error {
	c, ok := r.commands[name]
	if !ok {
		return fmt.Errorf("invoke %q: %w", name, ErrUnknownCommand)
	}
	rec, err := c.Execute(args...)
	if err != nil {
		return fmt.Errorf("invoke %q: %w", name, err)
	}
	if rec.Redo != nil {
		rec.Redo()
	}
	if c.PushQueue {
		if n := r.history.Push(rec); n > 0 {
			r.log.Debug("history truncated", slog.String("command", name), slog.Int("discarded", n))
		}
	}
	r.log.Debug("command invoked", slog.String("command", name), slog.Int("current", r.history.Current()))
	if r.onInvoke != nil {
		r.onInvoke(name)
	}
	return nil
}

// HandleKey invokes the command bound to k. It reports whether a binding
// matched; hosts cancel their default key action when it did.
func (r *Registry) HandleKey(k events.Key) bool {
	ks := k.String()
	matched := false
	for _, name := range r.order {
		c := r.commands[name]
		if c.Keyboard == "" || c.Keyboard != ks {
			continue
		}
		if err := r.Invoke(name); err != nil {
			r.log.Warn("keyboard command failed", slog.String("command", name), slog.Any("err", err))
		}
		matched = true
	}
	return matched
}

// Commands returns the registered command names in registration order.
func (r *Registry) Commands() []string { return append([]string(nil), r.order...) }

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.commands[name]
	return ok
}

// History exposes the shared history for hosts (toolbar state, tests).
func (r *Registry) History() *History { return r.history }
