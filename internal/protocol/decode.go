package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	// ErrMalformedRecord indicates a candidate record that could not be
	// decoded. Callers drop the record and keep consuming the stream.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrUnknownKind indicates a record with an unrecognized discriminant.
	ErrUnknownKind = errors.New("unknown event kind")
)

// HostError is a structured error record emitted by the agent host.
type HostError struct {
	Message string
}

func (e *HostError) Error() string {
	if e.Message == "" {
		return "agent host error"
	}
	return "agent host error: " + e.Message
}

// wireRecord is the superset of fields any structured record may carry.
type wireRecord struct {
	Type         string               `json:"type"`
	SessionID    string               `json:"session_id"`
	Delta        string               `json:"delta"`
	Summary      string               `json:"summary"`
	State        json.RawMessage      `json:"state"`
	ToolCallID   string               `json:"tool_call_id"`
	ToolName     string               `json:"tool_name"`
	Arguments    json.RawMessage      `json:"arguments"`
	Content      string               `json:"content"`
	IsError      bool                 `json:"is_error"`
	Confirmation *ConfirmationRequest `json:"confirmation"`
	Message      string               `json:"message"`
}

// DecodeRecord classifies one candidate record string into a typed event.
// The DoneSentinel payload decodes to a KindDone event; everything else must
// be a JSON object with a "type" discriminant from the closed kind set.
func DecodeRecord(raw string) (Event, error) {
	if raw == DoneSentinel {
		return Event{Kind: KindDone}, nil
	}
	if !gjson.Valid(raw) {
		return Event{}, fmt.Errorf("%w: not valid json", ErrMalformedRecord)
	}

	discriminant := gjson.Get(raw, "type").String()
	if discriminant == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformedRecord)
	}

	var rec wireRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	switch Kind(discriminant) {
	case KindInit:
		if rec.SessionID == "" {
			return Event{}, fmt.Errorf("%w: init without session_id", ErrMalformedRecord)
		}
		return Event{Kind: KindInit, SessionID: rec.SessionID}, nil

	case KindStart:
		return Event{Kind: KindStart}, nil

	case KindContentDelta:
		return Event{Kind: KindContentDelta, Delta: rec.Delta}, nil

	case KindSummary:
		return Event{Kind: KindSummary, Summary: rec.Summary}, nil

	case KindState:
		return Event{Kind: KindState, State: append(json.RawMessage(nil), rec.State...)}, nil

	case KindToolCallProposed:
		if rec.ToolCallID == "" || rec.ToolName == "" {
			return Event{}, fmt.Errorf("%w: tool_call without id or name", ErrMalformedRecord)
		}
		return Event{Kind: KindToolCallProposed, ToolCall: &ToolCall{
			ID:        rec.ToolCallID,
			Name:      rec.ToolName,
			Arguments: append(json.RawMessage(nil), rec.Arguments...),
		}}, nil

	case KindToolCallExecuting:
		if rec.ToolCallID == "" {
			return Event{}, fmt.Errorf("%w: tool_executing without tool_call_id", ErrMalformedRecord)
		}
		return Event{Kind: KindToolCallExecuting, ToolCall: &ToolCall{ID: rec.ToolCallID, Name: rec.ToolName}}, nil

	case KindToolResult:
		if rec.ToolCallID == "" {
			return Event{}, fmt.Errorf("%w: tool_result without tool_call_id", ErrMalformedRecord)
		}
		return Event{Kind: KindToolResult, ToolResult: &ToolResult{
			ToolCallID: rec.ToolCallID,
			Content:    rec.Content,
			IsError:    rec.IsError,
		}}, nil

	case KindConfirmationRequired:
		if rec.Confirmation == nil || rec.Confirmation.ID == "" {
			return Event{}, fmt.Errorf("%w: confirmation_required without confirmation payload", ErrMalformedRecord)
		}
		confirmation := *rec.Confirmation
		if !confirmation.RiskTier.Valid() {
			confirmation.RiskTier = RiskCritical
		}
		return Event{Kind: KindConfirmationRequired, Confirmation: &confirmation}, nil

	case KindComplete:
		return Event{Kind: KindComplete}, nil

	case KindFinal:
		return Event{Kind: KindFinal}, nil

	case KindError:
		return Event{Kind: KindError, Err: &HostError{Message: rec.Message}}, nil

	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownKind, discriminant)
	}
}
