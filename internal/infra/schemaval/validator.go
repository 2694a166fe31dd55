// Package schemaval validates event payloads against tenant-registered
// JSON Schema definitions.
package schemaval

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hspiira/timeline-sub001/internal/domain"
)

const compiledCacheMax = 256

// Validator compiles JSON Schema definitions (draft 2020-12) and checks
// payloads against them. Compiled schemas are cached per schema record;
// a definition never changes once registered, so entries never go stale.
type Validator struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{compiled: make(map[string]*jsonschema.Schema)}
}

// ValidatePayload checks payload against the schema's definition. Schema
// violations come back as domain validation errors naming the schema
// clause so callers can surface them to API clients.
func (v *Validator) ValidatePayload(schema domain.EventSchema, payload map[string]any) error {
	compiled, err := v.compiledFor(schema)
	if err != nil {
		return err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if err := compiled.Validate(payload); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return domain.NewValidationError("payload", leafMessage(verr))
		}
		return domain.NewValidationError("payload", err.Error())
	}
	return nil
}

// CheckDefinition compiles a candidate definition without caching it.
func (v *Validator) CheckDefinition(definition map[string]any) error {
	if _, err := compile("inline.schema.json", definition); err != nil {
		return domain.NewValidationError("schema_definition", err.Error())
	}
	return nil
}

func (v *Validator) compiledFor(schema domain.EventSchema) (*jsonschema.Schema, error) {
	key := fmt.Sprintf("%s/%s/%d", schema.TenantID, schema.EventType, schema.Version)

	v.mu.RLock()
	compiled, ok := v.compiled[key]
	v.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := compile(fmt.Sprintf("%s.schema.json", key), schema.Definition)
	if err != nil {
		return nil, domain.NewValidationError("schema_definition", err.Error())
	}

	v.mu.Lock()
	if len(v.compiled) >= compiledCacheMax {
		v.compiled = make(map[string]*jsonschema.Schema)
	}
	v.compiled[key] = compiled
	v.mu.Unlock()
	return compiled, nil
}

func compile(name string, definition map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(definition)
	if err != nil {
		return nil, fmt.Errorf("encode schema definition: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "https://timeline.schemas.local/" + name
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("load schema definition: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema definition: %w", err)
	}
	return compiled, nil
}

// leafMessage walks to the most specific cause so the error names the
// offending field instead of the schema root.
func leafMessage(verr *jsonschema.ValidationError) string {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	loc := verr.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, verr.Message)
}
