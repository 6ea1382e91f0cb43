/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package events holds the drag signal bus and the input event structs hosts
// feed into the editor.
package events

import "sync"

// Topic names a bus channel.
type Topic string

const (
	// TopicStart is published when a drag that may change the document begins.
	TopicStart Topic = "start"
	// TopicEnd is published when that drag is over.
	TopicEnd Topic = "end"
)

// Handler receives a published signal.
type Handler func()

type subscription struct {
	id int
	fn Handler
}

// Bus is a minimal named-topic publish/subscribe channel.
// Handlers run synchronously on the publisher's goroutine, in subscription order.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[Topic][]subscription
}

func NewBus() *Bus { return &Bus{subs: make(map[Topic][]subscription)} }

// On subscribes fn to topic and returns a function that removes the subscription.
// Calling the returned function more than once is harmless.
func (b *Bus) On(topic Topic, fn Handler) (off func()) {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[topic] = append(b.subs[topic], subscription{id: id, fn: fn})
	b.mu.Unlock()
	return func() { b.off(topic, id) }
}

func (b *Bus) off(topic Topic, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[topic]
	for i, s := range list {
		if s.id == id {
			b.subs[topic] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Emit calls every handler subscribed to topic.
func (b *Bus) Emit(topic Topic) {
	b.mu.Lock()
	list := append([]subscription(nil), b.subs[topic]...)
	b.mu.Unlock()
	for _, s := range list {
		s.fn()
	}
}

// Subscribers returns the number of handlers on topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}
