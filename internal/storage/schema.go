/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"pagebuilder/internal/domain"
)

//go:embed page.schema.json
var pageSchemaJSON []byte

// ErrInvalidDocument wraps every parse or validation failure of page or block JSON.
var ErrInvalidDocument = errors.New("invalid document")

var (
	schemaOnce  sync.Once
	pageSchema  *gojsonschema.Schema
	blockSchema *gojsonschema.Schema
	schemaErr   error
)

func loadSchemas() {
	pageSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(pageSchemaJSON))
	if schemaErr != nil {
		return
	}
	// the block schema reuses the page schema's definitions
	var raw map[string]any
	if schemaErr = json.Unmarshal(pageSchemaJSON, &raw); schemaErr != nil {
		return
	}
	blockSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewGoLoader(map[string]any{
		"$schema":     raw["$schema"],
		"$ref":        "#/definitions/block",
		"definitions": raw["definitions"],
	}))
}

// PageSchema returns the embedded JSON schema for page documents.
func PageSchema() []byte { return append([]byte(nil), pageSchemaJSON...) }

// ValidateDocument checks page JSON against the page schema.
func ValidateDocument(data []byte) error { return validate(data, func() *gojsonschema.Schema { return pageSchema }) }

// ValidateBlock checks single block JSON against the block definition.
func ValidateBlock(data []byte) error { return validate(data, func() *gojsonschema.Schema { return blockSchema }) }

func validate(data []byte, pick func() *gojsonschema.Schema) error {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return fmt.Errorf("load schema: %w", schemaErr)
	}
	res, err := pick().Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		// gojsonschema reports malformed JSON here
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
}

// ParseDocument validates and decodes page JSON.
func ParseDocument(data []byte) (domain.Document, error) {
	if err := ValidateDocument(data); err != nil {
		return domain.Document{}, err
	}
	doc, err := domain.Unmarshal(data)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

// ParseBlock validates and decodes a single block.
func ParseBlock(data []byte) (*domain.Block, error) {
	if err := ValidateBlock(data); err != nil {
		return nil, err
	}
	b, err := domain.UnmarshalBlock(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return b, nil
}
