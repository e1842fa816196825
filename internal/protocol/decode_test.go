package protocol

import (
	"errors"
	"testing"
)

func TestDecodeRecordSentinel(t *testing.T) {
	t.Parallel()

	ev, err := DecodeRecord("[DONE]")
	if err != nil {
		t.Fatalf("DecodeRecord([DONE]) error = %v", err)
	}
	if ev.Kind != KindDone || !ev.Terminal() {
		t.Fatalf("sentinel decoded to %+v", ev)
	}
}

func TestDecodeRecordVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{"init", `{"type":"init","session_id":"s-1"}`, KindInit},
		{"start", `{"type":"start"}`, KindStart},
		{"delta", `{"type":"content_delta","delta":"hi"}`, KindContentDelta},
		{"summary", `{"type":"summary","summary":"short"}`, KindSummary},
		{"state", `{"type":"state","state":{"phase":"planning"}}`, KindState},
		{"tool call", `{"type":"tool_call","tool_call_id":"t-1","tool_name":"write_file","arguments":{"path":"a"}}`, KindToolCallProposed},
		{"tool executing", `{"type":"tool_executing","tool_call_id":"t-1"}`, KindToolCallExecuting},
		{"tool result", `{"type":"tool_result","tool_call_id":"t-1","content":"ok"}`, KindToolResult},
		{"complete", `{"type":"complete"}`, KindComplete},
		{"final", `{"type":"final"}`, KindFinal},
		{"error", `{"type":"error","message":"boom"}`, KindError},
		{
			"confirmation",
			`{"type":"confirmation_required","confirmation":{"id":"c-1","tool_call_id":"t-1","tool_name":"delete_page","risk_tier":"high","timeout_seconds":30}}`,
			KindConfirmationRequired,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ev, err := DecodeRecord(tc.raw)
			if err != nil {
				t.Fatalf("DecodeRecord() error = %v", err)
			}
			if ev.Kind != tc.want {
				t.Fatalf("kind = %q, want %q", ev.Kind, tc.want)
			}
		})
	}
}

func TestDecodeRecordMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{"type":"start"`},
		{"missing type", `{"delta":"x"}`},
		{"init without session", `{"type":"init"}`},
		{"tool call without name", `{"type":"tool_call","tool_call_id":"t-1"}`},
		{"confirmation without payload", `{"type":"confirmation_required"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := DecodeRecord(tc.raw); !errors.Is(err, ErrMalformedRecord) {
				t.Fatalf("expected ErrMalformedRecord, got %v", err)
			}
		})
	}

	if _, err := DecodeRecord(`{"type":"mystery"}`); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestDecodeRecordErrorCarriesMessage(t *testing.T) {
	t.Parallel()

	ev, err := DecodeRecord(`{"type":"error","message":"model overloaded"}`)
	if err != nil {
		t.Fatalf("DecodeRecord() error = %v", err)
	}
	var hostErr *HostError
	if !errors.As(ev.Err, &hostErr) {
		t.Fatalf("expected HostError, got %T", ev.Err)
	}
	if hostErr.Message != "model overloaded" {
		t.Fatalf("message = %q", hostErr.Message)
	}
}

func TestDecodeRecordConfirmationDefaultsUnknownTier(t *testing.T) {
	t.Parallel()

	ev, err := DecodeRecord(`{"type":"confirmation_required","confirmation":{"id":"c-1","tool_call_id":"t-1","tool_name":"x","risk_tier":"galactic"}}`)
	if err != nil {
		t.Fatalf("DecodeRecord() error = %v", err)
	}
	if ev.Confirmation.RiskTier != RiskCritical {
		t.Fatalf("unknown tier should fall back to critical, got %q", ev.Confirmation.RiskTier)
	}
}

func TestEndsStream(t *testing.T) {
	t.Parallel()

	ending := []Kind{KindComplete, KindFinal, KindError, KindDone, KindConfirmationRequired}
	for _, kind := range ending {
		if !(Event{Kind: kind}).EndsStream() {
			t.Fatalf("kind %q should end the stream", kind)
		}
	}
	if (Event{Kind: KindContentDelta}).EndsStream() {
		t.Fatalf("content delta must not end the stream")
	}
	if (Event{Kind: KindConfirmationRequired}).Terminal() {
		t.Fatalf("confirmation suspends, it is not terminal")
	}
}
