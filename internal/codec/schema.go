/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package codec

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"postcanvas/internal/domain"
	"postcanvas/internal/theme"
)

// graphSchema is the structural contract for persisted page graphs. It is
// deliberately loose about optional fields so older documents keep loading;
// semantic checks (version tag, bitmap payloads) happen after unmarshal.
const graphSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "elements"],
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "elements": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "kind": {"enum": ["text", "image"]},
          "x": {"type": "number"},
          "y": {"type": "number"},
          "zIndex": {"type": "integer"},
          "origin": {"enum": ["center", "top-left"]},
          "content": {"type": "string"},
          "fontSize": {"type": "number"},
          "fontFamily": {"type": "string"},
          "textAlign": {"enum": ["left", "center", "right"]},
          "boundingWidth": {"type": "number"},
          "fill": {
            "type": "object",
            "required": ["r", "g", "b", "a"],
            "properties": {
              "r": {"type": "integer", "minimum": 0, "maximum": 255},
              "g": {"type": "integer", "minimum": 0, "maximum": 255},
              "b": {"type": "integer", "minimum": 0, "maximum": 255},
              "a": {"type": "integer", "minimum": 0, "maximum": 255}
            }
          },
          "bitmap": {"type": "string"},
          "scale": {"type": "number"}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(graphSchema))
	})
	return schema, schemaErr
}

func validateGraphJSON(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile graph schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return corrupt("invalid JSON", err)
	}
	if !res.Valid() {
		var b strings.Builder
		for i, desc := range res.Errors() {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(desc.String())
		}
		return corrupt("schema violation: "+b.String(), nil)
	}
	return nil
}

func defaultTextColor(thm domain.Theme) domain.Color {
	return theme.Lookup(thm).TextColor
}
