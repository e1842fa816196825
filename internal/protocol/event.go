package protocol

import "encoding/json"

// Kind identifies stream event variants.
type Kind string

const (
	KindInit                 Kind = "init"
	KindStart                Kind = "start"
	KindContentDelta         Kind = "content_delta"
	KindSummary              Kind = "summary"
	KindComplete             Kind = "complete"
	KindError                Kind = "error"
	KindState                Kind = "state"
	KindToolCallProposed     Kind = "tool_call"
	KindToolCallExecuting    Kind = "tool_executing"
	KindToolResult           Kind = "tool_result"
	KindConfirmationRequired Kind = "confirmation_required"
	KindFinal                Kind = "final"
	KindDone                 Kind = "done"
)

// RiskTier classifies how dangerous a proposed tool call is judged to be.
type RiskTier string

const (
	RiskLow      RiskTier = "low"
	RiskMedium   RiskTier = "medium"
	RiskHigh     RiskTier = "high"
	RiskCritical RiskTier = "critical"
)

// Rank orders tiers from least to most dangerous. Unknown tiers rank highest.
func (t RiskTier) Rank() int {
	switch t {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return 3
	}
}

// Valid reports whether t is one of the known tiers.
func (t RiskTier) Valid() bool {
	switch t {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// ToolCall is a host-proposed tool invocation.
type ToolCall struct {
	ID        string          `json:"tool_call_id"`
	Name      string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult carries the host-side execution result for a tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// ConfirmationRequest asks the operator to approve a proposed tool call.
type ConfirmationRequest struct {
	ID                   string          `json:"id"`
	ToolCallID           string          `json:"tool_call_id"`
	ToolName             string          `json:"tool_name"`
	Arguments            json.RawMessage `json:"arguments,omitempty"`
	ArgumentsSchema      json.RawMessage `json:"arguments_schema,omitempty"`
	RiskTier             RiskTier        `json:"risk_tier"`
	Justification        string          `json:"justification,omitempty"`
	AllowModification    bool            `json:"allow_modification"`
	RequireDoubleConfirm bool            `json:"require_double_confirm"`
	TimeoutSeconds       int             `json:"timeout_seconds"`
}

// Event is the typed protocol event. Exactly one payload field is set per kind.
type Event struct {
	Kind         Kind
	SessionID    string
	Delta        string
	Summary      string
	State        json.RawMessage
	ToolCall     *ToolCall
	ToolResult   *ToolResult
	Confirmation *ConfirmationRequest
	Err          error
}

// Terminal reports whether the event closes the stream outright.
func (e Event) Terminal() bool {
	switch e.Kind {
	case KindComplete, KindFinal, KindError, KindDone:
		return true
	}
	return false
}

// EndsStream reports whether no further records may be dispatched from the
// transport that produced e. A confirmation request suspends the exchange
// rather than closing it, but the read loop still stops.
func (e Event) EndsStream() bool {
	return e.Terminal() || e.Kind == KindConfirmationRequired
}
