package policy

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// DocumentSchema derives the JSON schema for policy documents from the Go
// types, so the wire contract and the structs cannot drift apart.
func DocumentSchema() (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(&Document{})
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal policy schema: %w", err)
	}
	return raw, nil
}
