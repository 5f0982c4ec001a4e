package openapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidSchema is wrapped by every failure reported by ValidateSchemas.
var ErrInvalidSchema = errors.New("invalid schema")

// ValidateSchemas checks every component schema against the JSON Schema
// metaschema of v (Draft 4 for 3.0, Draft 2020-12 for 3.1) and compiles
// it. Each schema is checked on its own, next to a copy of the whole
// registry so references between components resolve.
func ValidateSchemas(v Version, schemas map[string]*Schema) error {
	if len(schemas) == 0 {
		return nil
	}

	defs, draft := "$defs", jsonschema.Draft2020
	if v.Is30() {
		defs, draft = "definitions", jsonschema.Draft4
	}

	c := jsonschema.NewCompiler()
	c.DefaultDraft(draft)

	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := compileSchema(c, defs, name, schemas); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrInvalidSchema, name, err))
		}
	}
	return errors.Join(errs...)
}

func compileSchema(c *jsonschema.Compiler, defs, name string, schemas map[string]*Schema) error {
	raw, err := json.Marshal(map[string]any{
		defs:         map[string]*Schema{name: schemas[name]},
		"components": map[string]any{"schemas": schemas},
	})
	if err != nil {
		return err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}

	loc := "schemas/" + name + ".json"
	if err := c.AddResource(loc, doc); err != nil {
		return err
	}
	_, err = c.Compile(loc + "#/" + defs + "/" + name)
	return err
}
