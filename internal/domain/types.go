/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the page document edited on the canvas.
// The JSON shape is the persisted/exported form: a container plus a flat list of blocks.

import (
	"encoding/json"
	"fmt"
)

// Container is the canvas area blocks are positioned in, in pixels.
type Container struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Block is a positioned, typed element placed on the canvas.
// Key names the component that renders it; Top/Left are offsets from the
// container's top-left corner. Width and Height stay nil until the renderer
// reports them.
type Block struct {
	Key         string   `json:"key"`
	Top         float64  `json:"top"`
	Left        float64  `json:"left"`
	ZIndex      int      `json:"zIndex"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Focus       bool     `json:"focus"`
	AlignCenter bool     `json:"alignCenter,omitempty"`
}

// HasGeometry reports whether both rendered dimensions are known.
func (b *Block) HasGeometry() bool { return b != nil && b.Width != nil && b.Height != nil }

// Size returns the rendered size, or zeros when it has not been reported.
func (b *Block) Size() (w, h float64) {
	if b.Width != nil {
		w = *b.Width
	}
	if b.Height != nil {
		h = *b.Height
	}
	return w, h
}

// SetSize records rendered dimensions.
func (b *Block) SetSize(w, h float64) {
	b.Width = Float(w)
	b.Height = Float(h)
}

// Rect returns the block bounds. Missing dimensions are zero.
func (b *Block) Rect() Rect {
	w, h := b.Size()
	return Rect{X: b.Left, Y: b.Top, Width: w, Height: h}
}

// Clone returns a deep copy of the block.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := *b
	if b.Width != nil {
		c.Width = Float(*b.Width)
	}
	if b.Height != nil {
		c.Height = Float(*b.Height)
	}
	return &c
}

// Equal reports whether b and o hold the same values.
func (b *Block) Equal(o *Block) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.Key == o.Key && b.Top == o.Top && b.Left == o.Left && b.ZIndex == o.ZIndex &&
		b.Focus == o.Focus && b.AlignCenter == o.AlignCenter &&
		floatEqual(b.Width, o.Width) && floatEqual(b.Height, o.Height)
}

func floatEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Document is the page being edited: container geometry plus blocks in insertion order.
// Blocks are shared by pointer; a committed change replaces the slice, never edits it in place.
type Document struct {
	Container Container `json:"container"`
	Blocks    []*Block  `json:"blocks"`
}

// NewDocument returns an empty document with the given container size.
func NewDocument(width, height float64) Document {
	return Document{Container: Container{Width: width, Height: height}, Blocks: []*Block{}}
}

// Clone returns a deep copy; no block is shared with d.
func (d Document) Clone() Document {
	return Document{Container: d.Container, Blocks: CloneBlocks(d.Blocks)}
}

// WithBlocks returns a copy of d that uses blocks as its block list.
func (d Document) WithBlocks(blocks []*Block) Document {
	return Document{Container: d.Container, Blocks: blocks}
}

// IndexOf returns the index of b in d.Blocks by identity, or -1.
func (d Document) IndexOf(b *Block) int {
	for i, x := range d.Blocks {
		if x == b {
			return i
		}
	}
	return -1
}

// CloneBlocks deep copies a block list. The result is never nil.
func CloneBlocks(blocks []*Block) []*Block {
	out := make([]*Block, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Clone())
	}
	return out
}

// Rect is an axis aligned rectangle in canvas pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point lies inside r (right/bottom edges exclusive).
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Marshal encodes a document in its persisted form (indented JSON).
func Marshal(d Document) ([]byte, error) {
	if d.Blocks == nil {
		d.Blocks = []*Block{}
	}
	return json.MarshalIndent(d, "", "  ")
}

// Unmarshal decodes a document previously produced by Marshal or an import.
func Unmarshal(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	if d.Blocks == nil {
		d.Blocks = []*Block{}
	}
	for i, b := range d.Blocks {
		if b == nil {
			return Document{}, fmt.Errorf("decode document: block %d is null", i)
		}
	}
	return d, nil
}

// MarshalBlock encodes a single block for the block export dialog.
func MarshalBlock(b *Block) ([]byte, error) { return json.MarshalIndent(b, "", "  ") }

// UnmarshalBlock decodes a single block.
func UnmarshalBlock(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode block: %w", err)
	}
	return &b, nil
}
