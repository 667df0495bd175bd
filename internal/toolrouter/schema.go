package toolrouter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"
)

// GenerateSchema reflects a Go struct into a JSON Schema document for a
// tool's parameters, grounded on the teacher's internal/config/schema.go
// JSONSchema() (github.com/invopop/jsonschema.Reflector).
func GenerateSchema(params any) (json.RawMessage, error) {
	r := &jsonschema.Reflector{
		FieldNameTag: "json",
		// Tool parameter schemas are sent to model providers, which expect
		// a self-contained schema rather than $ref/$defs indirection.
		ExpandedStruct: true,
	}
	schema := r.Reflect(params)
	out, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("toolrouter: reflect schema: %w", err)
	}
	return out, nil
}

var (
	compileMu    sync.Mutex
	compileCache = map[string]*jsonschemav5.Schema{}
)

// ValidateAgainstSchema validates params against a JSON Schema document,
// grounded on the teacher's pkg/pluginsdk/validation.go compileSchema/
// ValidateConfig (github.com/santhosh-tekuri/jsonschema/v5), generalized
// from plugin-config validation to tool-call-parameter validation and with
// the compiled-schema cache keyed by schema bytes.
func ValidateAgainstSchema(schema json.RawMessage, params json.RawMessage) error {
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(params, &decoded); err != nil {
		return fmt.Errorf("decode parameters: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("parameters invalid: %w", err)
	}
	return nil
}

func compileSchema(schema json.RawMessage) (*jsonschemav5.Schema, error) {
	key := string(schema)

	compileMu.Lock()
	defer compileMu.Unlock()

	if cached, ok := compileCache[key]; ok {
		return cached, nil
	}

	compiler := jsonschemav5.NewCompiler()
	if err := compiler.AddResource("tool.schema.json", bytes.NewReader(schema)); err != nil {
		return nil, err
	}
	compiled, err := compiler.Compile("tool.schema.json")
	if err != nil {
		return nil, err
	}
	compileCache[key] = compiled
	return compiled, nil
}
