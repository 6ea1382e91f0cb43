/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package registry maps block keys to the components that render them.
// The engine never looks inside a Component; it only passes Key through.
package registry

import "sync"

// Component describes a palette entry. Preview is what the palette shows,
// Render is what a placed block shows. Both are opaque to the editor.
type Component struct {
	Key     string
	Label   string
	Preview string
	Render  string
}

// Registry keeps components in registration order and indexed by key.
type Registry struct {
	mu    sync.RWMutex
	list  []Component
	byKey map[string]Component
}

func New() *Registry { return &Registry{byKey: make(map[string]Component)} }

// Default returns a registry with the built-in text, button and input components.
func Default() *Registry {
	r := New()
	r.Register(Component{Key: "text", Label: "Text", Preview: "preview text", Render: "text"})
	r.Register(Component{Key: "button", Label: "Button", Preview: "[ button ]", Render: "[ button ]"})
	r.Register(Component{Key: "input", Label: "Input", Preview: "[ input.... ]", Render: "[ input.... ]"})
	return r
}

// Register adds c. Registering a key twice replaces the earlier entry in place.
func (r *Registry) Register(c Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKey[c.Key]; ok {
		for i := range r.list {
			if r.list[i].Key == c.Key {
				r.list[i] = c
			}
		}
	} else {
		r.list = append(r.list, c)
	}
	r.byKey[c.Key] = c
}

// Lookup returns the component registered under key.
func (r *Registry) Lookup(key string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byKey[key]
	return c, ok
}

// List returns the components in registration order.
func (r *Registry) List() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Component(nil), r.list...)
}
