package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

var (
	// ErrInvalidDocument indicates a policy document failing schema validation.
	ErrInvalidDocument = errors.New("invalid policy document")
	// ErrInvalidArguments indicates operator-modified tool arguments that do
	// not satisfy the tool's declared argument schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// ValidateDocument checks a raw policy document against the generated schema
// before it is uploaded to the host.
func ValidateDocument(raw []byte) error {
	schema, err := DocumentSchema()
	if err != nil {
		return err
	}
	if err := validateAgainst(schema, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return nil
}

// ValidateArguments checks operator-modified arguments against the argument
// schema carried on the confirmation request. An empty schema accepts any
// valid JSON object.
func ValidateArguments(schema, args json.RawMessage) error {
	if len(bytes.TrimSpace(args)) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidArguments)
	}
	if !json.Valid(args) {
		return fmt.Errorf("%w: not valid json", ErrInvalidArguments)
	}
	if len(bytes.TrimSpace(schema)) == 0 {
		return nil
	}
	if err := validateAgainst(schema, args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

func validateAgainst(schema, instance []byte) error {
	schemaObj, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return fmt.Errorf("decode schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", schemaObj); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	instanceObj, err := jsonschema.UnmarshalJSON(bytes.NewReader(instance))
	if err != nil {
		return fmt.Errorf("decode instance: %w", err)
	}
	return compiled.Validate(instanceObj)
}
