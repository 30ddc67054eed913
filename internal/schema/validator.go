// Package schema type-checks raw event payloads against a per-event-type
// JSON schema. An event whose type is unknown or whose detail fails shape
// validation is dropped from the live path; malformed input will not
// become valid on retry.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/harborlab/leasealert/internal/event"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ValidationError marks an event as malformed or of unknown type.
// It is fatal but non-blocking: the event is logged and dropped,
// never retried and never dead-lettered.
type ValidationError struct {
	EventID   string
	EventType string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("event %s (%s): %s", e.EventID, e.EventType, e.Reason)
}

// Validator holds one compiled schema per known event type.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles all embedded schemas. The schema file name (without
// extension) is the event type it validates.
func New() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(entries))}
	for _, entry := range entries {
		name := entry.Name()
		eventType := strings.TrimSuffix(name, path.Ext(name))

		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}

		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("https://leasealert.schemas.local/%s.schema.json", eventType)
		if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("load schema %s: %w", name, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[eventType] = compiled
	}
	return v, nil
}

// Known reports whether eventType has a registered schema.
func (v *Validator) Known(eventType string) bool {
	_, ok := v.schemas[eventType]
	return ok
}

// Validate checks the envelope's detail against the schema for its type.
// A nil return means the envelope may continue down the pipeline.
func (v *Validator) Validate(env *event.Envelope) error {
	sch, ok := v.schemas[env.Type]
	if !ok {
		return &ValidationError{
			EventID:   env.ID,
			EventType: env.Type,
			Reason:    "unknown event type",
		}
	}

	var detail interface{}
	if err := json.Unmarshal(env.Detail, &detail); err != nil {
		return &ValidationError{
			EventID:   env.ID,
			EventType: env.Type,
			Reason:    fmt.Sprintf("detail is not valid JSON: %s", err),
		}
	}
	if err := sch.Validate(detail); err != nil {
		return &ValidationError{
			EventID:   env.ID,
			EventType: env.Type,
			Reason:    fmt.Sprintf("detail failed schema validation: %s", err),
		}
	}
	return nil
}
