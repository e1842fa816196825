package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"reins/internal/protocol"
)

func pendingGate(t *testing.T, req protocol.ConfirmationRequest) *Gate {
	t.Helper()
	if req.ID == "" {
		req.ID = "c-1"
	}
	if req.ToolCallID == "" {
		req.ToolCallID = "t-1"
	}
	if req.ToolName == "" {
		req.ToolName = "delete_page"
	}
	return newGate(&req, nil)
}

func TestGateApproveResolvesOnce(t *testing.T) {
	t.Parallel()

	gate := pendingGate(t, protocol.ConfirmationRequest{
		RiskTier:       protocol.RiskMedium,
		Arguments:      json.RawMessage(`{"page":"home"}`),
		TimeoutSeconds: 60,
	})

	resolved, err := gate.Approve(nil)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if !resolved {
		t.Fatalf("single approve should resolve a non-critical gate")
	}

	res, ok := gate.Resolution()
	if !ok || res.State != GateApproved || !res.Approved {
		t.Fatalf("resolution = %+v, ok = %v", res, ok)
	}
	if string(res.Arguments) != `{"page":"home"}` || res.Modified {
		t.Fatalf("approval should carry original arguments: %+v", res)
	}

	// At-most-once resolution: later calls are no-ops.
	if resolved, _ := gate.Approve(nil); resolved {
		t.Fatalf("second approve should be a no-op")
	}
	if gate.Reject("too late") {
		t.Fatalf("reject after approval should be a no-op")
	}
	if res2, _ := gate.Resolution(); res2.State != GateApproved {
		t.Fatalf("resolution changed after no-op calls: %+v", res2)
	}
}

func TestGateApproveWithModifiedArguments(t *testing.T) {
	t.Parallel()

	gate := pendingGate(t, protocol.ConfirmationRequest{
		RiskTier:          protocol.RiskHigh,
		Arguments:         json.RawMessage(`{"path":"/prod"}`),
		AllowModification: true,
		TimeoutSeconds:    60,
	})

	resolved, err := gate.Approve(json.RawMessage(`{"path":"/staging"}`))
	if err != nil || !resolved {
		t.Fatalf("Approve(modified) = %v, %v", resolved, err)
	}
	res, _ := gate.Resolution()
	if !res.Modified || string(res.Arguments) != `{"path":"/staging"}` {
		t.Fatalf("resolution = %+v", res)
	}
}

func TestGateRejectsModificationWhenForbidden(t *testing.T) {
	t.Parallel()

	gate := pendingGate(t, protocol.ConfirmationRequest{
		RiskTier:       protocol.RiskHigh,
		TimeoutSeconds: 60,
	})

	if _, err := gate.Approve(json.RawMessage(`{"x":1}`)); !errors.Is(err, ErrModificationNotAllowed) {
		t.Fatalf("expected ErrModificationNotAllowed, got %v", err)
	}
	if gate.Resolved() {
		t.Fatalf("failed modification attempt must not resolve the gate")
	}
}

// TestGateCriticalDoubleConfirmation verifies a single approve does not
// resolve a critical gate that mandates double confirmation.
func TestGateCriticalDoubleConfirmation(t *testing.T) {
	t.Parallel()

	gate := pendingGate(t, protocol.ConfirmationRequest{
		RiskTier:             protocol.RiskCritical,
		RequireDoubleConfirm: true,
		AllowModification:    true,
		Arguments:            json.RawMessage(`{"page":"home"}`),
		TimeoutSeconds:       60,
	})

	resolved, err := gate.Approve(json.RawMessage(`{"page":"sandbox"}`))
	if err != nil {
		t.Fatalf("first Approve() error = %v", err)
	}
	if resolved || gate.Resolved() {
		t.Fatalf("first confirm must not resolve a critical gate")
	}
	if gate.State() != GateAwaitingSecond {
		t.Fatalf("state = %q, want awaiting second confirmation", gate.State())
	}

	resolved, err = gate.Approve(nil)
	if err != nil || !resolved {
		t.Fatalf("second Approve() = %v, %v", resolved, err)
	}
	res, _ := gate.Resolution()
	if res.State != GateApproved {
		t.Fatalf("state = %q", res.State)
	}
	if !res.Modified || string(res.Arguments) != `{"page":"sandbox"}` {
		t.Fatalf("staged modified arguments lost: %+v", res)
	}
}

func TestGateRejectWhileAwaitingSecond(t *testing.T) {
	t.Parallel()

	gate := pendingGate(t, protocol.ConfirmationRequest{
		RiskTier:             protocol.RiskCritical,
		RequireDoubleConfirm: true,
		TimeoutSeconds:       60,
	})

	if _, err := gate.Approve(nil); err != nil {
		t.Fatalf("first Approve() error = %v", err)
	}
	if !gate.Reject("changed my mind") {
		t.Fatalf("reject should resolve an awaiting-second gate")
	}
	res, _ := gate.Resolution()
	if res.State != GateRejected || res.Reason != "changed my mind" {
		t.Fatalf("resolution = %+v", res)
	}
}

// TestGateExpiryEqualsRejection verifies the countdown resolves the gate to
// a synthesized rejection that no later action can alter.
func TestGateExpiryEqualsRejection(t *testing.T) {
	t.Parallel()

	gate := pendingGate(t, protocol.ConfirmationRequest{
		RiskTier:       protocol.RiskMedium,
		TimeoutSeconds: 1,
	})
	// Shrink the budget without waiting a full second.
	gate.mu.Lock()
	gate.deadline = time.Now().Add(50 * time.Millisecond)
	gate.mu.Unlock()

	res, err := gate.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if res.State != GateExpired || res.Approved {
		t.Fatalf("resolution = %+v, want expired", res)
	}
	if res.Reason != TimeoutReason {
		t.Fatalf("reason = %q, want %q", res.Reason, TimeoutReason)
	}

	if resolved, _ := gate.Approve(nil); resolved {
		t.Fatalf("approve after expiry must be a no-op")
	}
	if after, _ := gate.Resolution(); after.State != GateExpired {
		t.Fatalf("resolution changed after expiry: %+v", after)
	}
}

func TestGateDecisionBeatsCountdown(t *testing.T) {
	t.Parallel()

	gate := pendingGate(t, protocol.ConfirmationRequest{
		RiskTier:       protocol.RiskLow,
		TimeoutSeconds: 600,
	})

	done := make(chan Resolution, 1)
	go func() {
		res, err := gate.Wait(context.Background())
		if err != nil {
			t.Errorf("Wait() error = %v", err)
		}
		done <- res
	}()

	time.Sleep(20 * time.Millisecond)
	if !gate.Reject("operator said no") {
		t.Fatalf("reject should resolve pending gate")
	}

	select {
	case res := <-done:
		if res.State != GateRejected || res.Reason != "operator said no" {
			t.Fatalf("resolution = %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Wait did not observe the decision")
	}
}

func TestGateWaitCancellationDoesNotResolve(t *testing.T) {
	t.Parallel()

	gate := pendingGate(t, protocol.ConfirmationRequest{
		RiskTier:       protocol.RiskLow,
		TimeoutSeconds: 600,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gate.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if gate.Resolved() {
		t.Fatalf("canceling the wait must not resolve the gate")
	}
	if gate.State() != GatePending {
		t.Fatalf("state = %q, want pending", gate.State())
	}
}
