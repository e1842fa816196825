// Package policy models the risk policy governing tool-call confirmation:
// which tier a tool falls into, whether the operator must confirm it, and how
// long a confirmation may stay pending.
package policy

import (
	"strings"
	"time"

	"reins/internal/protocol"
)

// DefaultTimeout bounds how long a confirmation may wait for the operator
// when the rule does not set its own budget.
const DefaultTimeout = 2 * time.Minute

// Rule is the confirmation policy for one tool (or the fallback).
type Rule struct {
	Tier                 protocol.RiskTier `json:"tier" jsonschema:"enum=low,enum=medium,enum=high,enum=critical"`
	RequireConfirmation  bool              `json:"require_confirmation"`
	RequireDoubleConfirm bool              `json:"require_double_confirm"`
	AllowModification    bool              `json:"allow_modification"`
	TimeoutSeconds       int               `json:"timeout_seconds,omitempty" jsonschema:"minimum=0"`
}

// Timeout returns the rule's pending-time budget.
func (r Rule) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Document is the risk policy document exchanged with the agent host.
type Document struct {
	Version int             `json:"version" jsonschema:"minimum=1"`
	Default Rule            `json:"default"`
	Tools   map[string]Rule `json:"tools,omitempty"`
}

// DefaultDocument returns the policy applied when the host has none
// configured: everything above low risk needs confirmation, critical needs
// a second one.
func DefaultDocument() Document {
	return Document{
		Version: 1,
		Default: Rule{
			Tier:                protocol.RiskMedium,
			RequireConfirmation: true,
			AllowModification:   true,
			TimeoutSeconds:      120,
		},
		Tools: map[string]Rule{
			"read_page": {
				Tier: protocol.RiskLow,
			},
			"delete_page": {
				Tier:                 protocol.RiskCritical,
				RequireConfirmation:  true,
				RequireDoubleConfirm: true,
				TimeoutSeconds:       60,
			},
		},
	}
}

// RuleFor resolves the rule for a tool name, falling back to the default.
func (d Document) RuleFor(tool string) Rule {
	name := strings.TrimSpace(tool)
	if rule, ok := d.Tools[name]; ok {
		return rule
	}
	return d.Default
}
