package policy

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"reins/internal/protocol"
)

func TestRuleForFallsBackToDefault(t *testing.T) {
	t.Parallel()

	doc := DefaultDocument()

	if got := doc.RuleFor("delete_page").Tier; got != protocol.RiskCritical {
		t.Fatalf("delete_page tier = %q, want critical", got)
	}
	if got := doc.RuleFor("unknown_tool").Tier; got != doc.Default.Tier {
		t.Fatalf("unknown tool tier = %q, want default %q", got, doc.Default.Tier)
	}
}

func TestRuleTimeout(t *testing.T) {
	t.Parallel()

	if got := (Rule{TimeoutSeconds: 30}).Timeout(); got != 30*time.Second {
		t.Fatalf("Timeout() = %v, want 30s", got)
	}
	if got := (Rule{}).Timeout(); got != DefaultTimeout {
		t.Fatalf("zero budget should fall back to default, got %v", got)
	}
}

func TestValidateDocumentAcceptsDefaults(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(DefaultDocument())
	if err != nil {
		t.Fatalf("marshal default document: %v", err)
	}
	if err := ValidateDocument(raw); err != nil {
		t.Fatalf("ValidateDocument(defaults) = %v", err)
	}
}

func TestValidateDocumentRejectsMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"wrong version type", `{"version":"one","default":{"tier":"low"}}`},
		{"unknown tier", `{"version":1,"default":{"tier":"galactic"}}`},
		{"negative timeout", `{"version":1,"default":{"tier":"low","timeout_seconds":-5}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := ValidateDocument([]byte(tc.raw)); !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestValidateArguments(t *testing.T) {
	t.Parallel()

	schema := json.RawMessage(`{
		"type": "object",
		"properties": {"path": {"type": "string"}},
		"required": ["path"],
		"additionalProperties": false
	}`)

	if err := ValidateArguments(schema, json.RawMessage(`{"path":"/tmp/x"}`)); err != nil {
		t.Fatalf("valid arguments rejected: %v", err)
	}
	if err := ValidateArguments(schema, json.RawMessage(`{"path":7}`)); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("expected ErrInvalidArguments, got %v", err)
	}
	if err := ValidateArguments(schema, json.RawMessage(`{"other":true}`)); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("missing required field should fail, got %v", err)
	}
	if err := ValidateArguments(nil, json.RawMessage(`{"anything":true}`)); err != nil {
		t.Fatalf("empty schema should accept valid json, got %v", err)
	}
	if err := ValidateArguments(schema, json.RawMessage(`not json`)); !errors.Is(err, ErrInvalidArguments) {
		t.Fatalf("invalid json should fail, got %v", err)
	}
}
