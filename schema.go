package qjunit

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var configSchemaData []byte

var compileConfigSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(configSchemaData))
	if err != nil {
		return nil, fmt.Errorf("unmarshal config schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("config.schema.json", doc); err != nil {
		return nil, fmt.Errorf("add config schema resource: %w", err)
	}

	schema, err := compiler.Compile("config.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}

	return schema, nil
})

// ValidateSchema checks a YAML config document against the embedded JSON
// schema. An empty document is valid.
func ValidateSchema(data []byte) error {
	schema, err := compileConfigSchema()
	if err != nil {
		return err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if doc == nil {
		return nil
	}

	// Round-trip through JSON so the validator sees JSON-typed values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}
