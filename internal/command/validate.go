package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	compileOnce sync.Once
	compiled    map[Type]*jsonschema.Schema
	compileErr  error
)

// compileAll lazily compiles every registered payload schema. Compilation
// errors mean a schema in this package is malformed, which is a programming
// error rather than something a caller can recover from at the call site.
func compileAll() {
	compiled = make(map[Type]*jsonschema.Schema, len(payloadSchemas))
	for typ, raw := range payloadSchemas {
		url := "mem://" + string(typ) + ".json"
		c := jsonschema.NewCompiler()
		if err := c.AddResource(url, strings.NewReader(raw)); err != nil {
			compileErr = fmt.Errorf("command: add schema resource %s: %w", typ, err)
			return
		}
		schema, err := c.Compile(url)
		if err != nil {
			compileErr = fmt.Errorf("command: compile schema %s: %w", typ, err)
			return
		}
		compiled[typ] = schema
	}
}

// Validate checks that cmd.Type is a recognised command type and that its
// Payload conforms to that type's JSON Schema.
func Validate(cmd Command) error {
	compileOnce.Do(compileAll)
	if compileErr != nil {
		return compileErr
	}

	schema, ok := compiled[cmd.Type]
	if !ok {
		return fmt.Errorf("command: unknown command type %q", cmd.Type)
	}

	var instance any
	dec := json.NewDecoder(bytes.NewReader(cmd.Payload))
	dec.UseNumber()
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("command: payload is not valid JSON: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("command: payload failed validation: %w", err)
	}
	return nil
}
