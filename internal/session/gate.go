package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"reins/internal/protocol"
)

// GateState is the confirmation gate lifecycle state.
type GateState string

const (
	GatePending        GateState = "pending"
	GateAwaitingSecond GateState = "awaiting_second_confirmation"
	GateApproved       GateState = "approved"
	GateRejected       GateState = "rejected"
	GateExpired        GateState = "expired"
)

// TimeoutReason is the synthesized rejection reason when the time budget
// runs out before any operator action.
const TimeoutReason = "timed out"

const defaultGateTimeout = 2 * time.Minute

// ErrModificationNotAllowed rejects modified arguments on a request whose
// policy forbids them.
var ErrModificationNotAllowed = errors.New("argument modification is not permitted for this request")

// Resolution is the single, final outcome of a confirmation gate.
type Resolution struct {
	State    GateState
	Approved bool
	// Arguments carries the approved tool arguments: the operator's
	// replacement when modified, otherwise the original proposal.
	Arguments json.RawMessage
	Modified  bool
	Reason    string
}

// Gate pauses the agent loop around one proposed tool call until the
// operator decides or the time budget expires, whichever comes first. A gate
// resolves exactly once; later approve/reject calls are no-ops.
type Gate struct {
	mu sync.Mutex

	req      protocol.ConfirmationRequest
	state    GateState
	deadline time.Time

	// staged holds the arguments of the first confirm while a critical
	// request waits for its second.
	staged         json.RawMessage
	stagedModified bool

	resolution Resolution
	decided    chan Resolution

	// notify, when set, runs after every state transition so subscribers
	// can re-read the gate. Invoked with the gate lock released.
	notify func()
}

func newGate(req *protocol.ConfirmationRequest, notify func()) *Gate {
	budget := defaultGateTimeout
	if req.TimeoutSeconds > 0 {
		budget = time.Duration(req.TimeoutSeconds) * time.Second
	}
	return &Gate{
		req:      *req,
		state:    GatePending,
		deadline: time.Now().Add(budget),
		decided:  make(chan Resolution, 1),
		notify:   notify,
	}
}

func (g *Gate) notifyChanged() {
	if g.notify != nil {
		g.notify()
	}
}

// Request returns the confirmation request the gate guards.
func (g *Gate) Request() protocol.ConfirmationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.req
}

// State returns the current gate state.
func (g *Gate) State() GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Resolved reports whether the gate reached a final state.
func (g *Gate) Resolved() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolvedLocked()
}

func (g *Gate) resolvedLocked() bool {
	switch g.state {
	case GateApproved, GateRejected, GateExpired:
		return true
	}
	return false
}

// Remaining returns the time budget left before auto-rejection.
func (g *Gate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	remaining := time.Until(g.deadline)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Resolution returns the final outcome once the gate has resolved.
func (g *Gate) Resolution() (Resolution, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.resolvedLocked() {
		return Resolution{}, false
	}
	return g.resolution, true
}

// Approve records an operator approval, optionally with replacement
// arguments. For a critical request mandating double confirmation the first
// call only advances to the awaiting-second sub-state; resolved reports
// whether the gate reached its final state.
func (g *Gate) Approve(modifiedArgs json.RawMessage) (resolved bool, err error) {
	g.mu.Lock()

	if g.resolvedLocked() {
		g.mu.Unlock()
		return false, nil
	}
	if len(modifiedArgs) > 0 && !g.req.AllowModification {
		g.mu.Unlock()
		return false, ErrModificationNotAllowed
	}

	if g.state == GatePending && g.req.RiskTier == protocol.RiskCritical && g.req.RequireDoubleConfirm {
		g.staged = append(json.RawMessage(nil), modifiedArgs...)
		g.stagedModified = len(modifiedArgs) > 0
		g.state = GateAwaitingSecond
		g.mu.Unlock()
		g.notifyChanged()
		return false, nil
	}

	args := modifiedArgs
	modified := len(modifiedArgs) > 0
	if !modified && g.stagedModified {
		args = g.staged
		modified = true
	}
	if !modified {
		args = g.req.Arguments
	}

	g.resolveLocked(Resolution{
		State:     GateApproved,
		Approved:  true,
		Arguments: append(json.RawMessage(nil), args...),
		Modified:  modified,
	})
	g.mu.Unlock()
	g.notifyChanged()
	return true, nil
}

// Reject records an explicit operator rejection.
func (g *Gate) Reject(reason string) bool {
	g.mu.Lock()
	if g.resolvedLocked() {
		g.mu.Unlock()
		return false
	}
	g.resolveLocked(Resolution{
		State:  GateRejected,
		Reason: reason,
	})
	g.mu.Unlock()
	g.notifyChanged()
	return true
}

// expire converts a lapsed time budget into a synthesized rejection.
func (g *Gate) expire() {
	g.mu.Lock()
	if g.resolvedLocked() {
		g.mu.Unlock()
		return
	}
	g.resolveLocked(Resolution{
		State:  GateExpired,
		Reason: TimeoutReason,
	})
	g.mu.Unlock()
	g.notifyChanged()
}

func (g *Gate) resolveLocked(res Resolution) {
	g.state = res.State
	g.resolution = res
	g.decided <- res
}

// Wait blocks until the gate resolves or ctx is done. The countdown runs
// concurrently with the operator decision; the first to occur wins and the
// other has no effect. Canceling ctx abandons the wait without resolving the
// gate.
func (g *Gate) Wait(ctx context.Context) (Resolution, error) {
	timer := time.NewTimer(g.Remaining())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	case res := <-g.decided:
		return res, nil
	case <-timer.C:
		g.expire()
		// A decision may have raced the timer; either way exactly one
		// resolution sits in the channel.
		select {
		case <-ctx.Done():
			return Resolution{}, ctx.Err()
		case res := <-g.decided:
			return res, nil
		}
	}
}
