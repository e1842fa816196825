// Package chat drives one conversation end to end: it opens streaming
// exchanges against the agent host, feeds their events into the session
// state, parks on the confirmation gate when the host asks for approval, and
// resumes the paused loop once the operator (or the countdown) decides.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"reins/internal/audit"
	"reins/internal/policy"
	"reins/internal/protocol"
	"reins/internal/session"
	"reins/internal/transcript"
	"reins/internal/upload"
)

// Stream is one in-flight streaming exchange. Cancel aborts it without
// surfacing an error; the event channel closes when the exchange ends.
type Stream interface {
	Events() <-chan protocol.Event
	Cancel()
}

// Host is the remote agent service as seen by the runner.
type Host interface {
	OpenSession(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, sessionID, content string, attachments []protocol.Attachment, params protocol.ModelParams) (Stream, error)
	Continue(ctx context.Context, sessionID string, cont protocol.Continuation) (Stream, error)
	ResolveConfirmation(ctx context.Context, confirmationID string, approved bool, reason string) error
}

var (
	// ErrHostRequired and ErrSessionRequired guard construction.
	ErrHostRequired    = errors.New("chat host is required")
	ErrSessionRequired = errors.New("chat session is required")
	// ErrStreamActive rejects a send while another exchange is in flight:
	// a session has at most one active stream.
	ErrStreamActive = errors.New("a stream is already active for this session")
	// ErrNoPendingConfirmation rejects approve/reject with nothing to decide.
	ErrNoPendingConfirmation = errors.New("no confirmation is pending")
)

// Config wires a runner.
type Config struct {
	Host    Host
	Session *session.Session
	// Audit records every gate resolution. Optional; defaults to a nop log
	// recorder.
	Audit audit.Recorder
	// Transcript mirrors the conversation to local storage. Optional.
	Transcript *transcript.Store
	Logger     *zap.Logger
	// Params is replayed on every exchange, including continuations.
	Params protocol.ModelParams
}

// Runner owns the send/confirm/resume loop for one session.
type Runner struct {
	host       Host
	session    *session.Session
	audit      audit.Recorder
	transcript *transcript.Store
	logger     *zap.Logger
	params     protocol.ModelParams

	mu sync.Mutex
	// claimed spans the whole Send call; active is the current transport
	// within it. Both gate the one-stream-per-session invariant.
	claimed bool
	active  Stream
	// staged attachments ride along with the next Send.
	attachments []protocol.Attachment
}

// New constructs a runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Host == nil {
		return nil, ErrHostRequired
	}
	if cfg.Session == nil {
		return nil, ErrSessionRequired
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := cfg.Audit
	if recorder == nil {
		recorder = audit.NewLogRecorder(logger)
	}
	return &Runner{
		host:       cfg.Host,
		session:    cfg.Session,
		audit:      recorder,
		transcript: cfg.Transcript,
		logger:     logger,
		params:     cfg.Params,
	}, nil
}

// Session exposes the conversation state for subscribers.
func (r *Runner) Session() *session.Session {
	return r.session
}

// Send delivers one user message and drives the exchange to completion,
// including any confirmation pauses and resumptions. It blocks until the
// loop reaches a terminal state, so callers run it off the UI loop.
func (r *Runner) Send(ctx context.Context, text string) error {
	if r.session.ConfirmationOutstanding() {
		return session.ErrConfirmationPending
	}
	if !r.claimActive() {
		return ErrStreamActive
	}
	defer r.releaseActive()

	if r.session.ID() == "" {
		id, err := r.host.OpenSession(ctx)
		if err != nil {
			return err
		}
		if err := r.session.Apply(protocol.Event{Kind: protocol.KindInit, SessionID: id}); err != nil {
			return err
		}
	}

	r.session.AppendUserMessage(text)
	r.record(transcript.Entry{Type: transcript.TypeUserMessage, Content: text})

	stream, err := r.host.SendMessage(ctx, r.session.ID(), text, r.takeAttachments(), r.params)
	if err != nil {
		return err
	}
	return r.drive(ctx, stream)
}

// Attach stages one stabilized asset to ride along with the next message.
func (r *Runner) Attach(asset upload.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachments = append(r.attachments, protocol.Attachment{
		Name:   asset.Name,
		SHA256: asset.SHA256,
		Data:   asset.Data,
	})
}

func (r *Runner) takeAttachments() []protocol.Attachment {
	r.mu.Lock()
	defer r.mu.Unlock()
	staged := r.attachments
	r.attachments = nil
	return staged
}

// drive consumes exchanges until the loop reaches a terminal state,
// traversing confirmation pauses as they arise.
func (r *Runner) drive(ctx context.Context, stream Stream) error {
	for {
		r.setActive(stream)
		suspended, err := r.consume(ctx, stream)
		r.setActive(nil)
		if err != nil {
			return err
		}
		if !suspended {
			return nil
		}

		resumed, err := r.resolveConfirmation(ctx)
		if err != nil {
			return err
		}
		if resumed == nil {
			return nil
		}
		stream = resumed
	}
}

// consume drains one stream into the session. It reports whether the
// exchange suspended on a confirmation request rather than terminating.
func (r *Runner) consume(ctx context.Context, stream Stream) (suspended bool, err error) {
	var hostErr error
	for {
		select {
		case <-ctx.Done():
			stream.Cancel()
			return false, ctx.Err()
		case ev, ok := <-stream.Events():
			if !ok {
				return suspended, hostErr
			}
			if applyErr := r.session.Apply(ev); applyErr != nil {
				// A bad event poisons neither the stream nor the session.
				r.logger.Warn("event not applied",
					zap.String("kind", string(ev.Kind)),
					zap.Error(applyErr),
				)
				continue
			}
			switch ev.Kind {
			case protocol.KindError:
				hostErr = ev.Err
			case protocol.KindConfirmationRequired:
				suspended = true
			}
		}
	}
}

// resolveConfirmation waits out the gate and acts on its resolution: an
// approval opens the continuation stream, anything else reports the
// rejection and frees the session immediately.
func (r *Runner) resolveConfirmation(ctx context.Context) (Stream, error) {
	gate := r.session.Gate()
	if gate == nil {
		return nil, errors.New("stream suspended without a confirmation gate")
	}
	req := gate.Request()

	res, err := gate.Wait(ctx)
	if err != nil {
		return nil, err
	}

	r.recordResolution(req, res)
	r.session.ClearGate()

	if !res.Approved {
		reason := res.Reason
		if reason == "" {
			reason = "rejected by operator"
		}
		if err := r.session.RejectToolCall(req.ToolCallID, reason); err != nil {
			r.logger.Warn("ledger reject failed", zap.Error(err))
		}
		if err := r.host.ResolveConfirmation(ctx, req.ID, false, reason); err != nil {
			// Best effort: the local ledger already reflects the decision.
			r.logger.Warn("resolve confirmation failed",
				zap.String("confirmation_id", req.ID),
				zap.Error(err),
			)
		}
		return nil, nil
	}

	cont := protocol.Continuation{
		ConfirmationID: req.ID,
		ToolCallID:     req.ToolCallID,
		Approved:       true,
		Params:         r.params,
	}
	if res.Modified {
		cont.Arguments = res.Arguments
		if err := r.session.ReplaceToolCallArguments(req.ToolCallID, res.Arguments); err != nil {
			r.logger.Warn("ledger argument replacement failed", zap.Error(err))
		}
	}
	return r.host.Continue(ctx, r.session.ID(), cont)
}

// Approve forwards an operator approval to the pending gate, validating any
// replacement arguments against the request's argument schema first.
func (r *Runner) Approve(modifiedArgs json.RawMessage) error {
	gate := r.session.Gate()
	if gate == nil || gate.Resolved() {
		return ErrNoPendingConfirmation
	}
	if len(modifiedArgs) > 0 {
		if err := policy.ValidateArguments(gate.Request().ArgumentsSchema, modifiedArgs); err != nil {
			return err
		}
	}
	_, err := gate.Approve(modifiedArgs)
	return err
}

// Reject forwards an operator rejection to the pending gate.
func (r *Runner) Reject(reason string) error {
	gate := r.session.Gate()
	if gate == nil || gate.Resolved() {
		return ErrNoPendingConfirmation
	}
	gate.Reject(reason)
	return nil
}

// CancelActive aborts the in-flight exchange, if any. A pending gate is
// untouched: cancellation never resolves a confirmation.
func (r *Runner) CancelActive() {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()
	if active != nil {
		active.Cancel()
	}
}

// Busy reports whether an exchange is in flight.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil || r.claimed
}

func (r *Runner) recordResolution(req protocol.ConfirmationRequest, res session.Resolution) {
	decision := audit.DecisionRejected
	switch res.State {
	case session.GateApproved:
		decision = audit.DecisionApproved
	case session.GateExpired:
		decision = audit.DecisionExpired
	}
	r.audit.Record(audit.Entry{
		SessionID:      r.session.ID(),
		ConfirmationID: req.ID,
		ToolName:       req.ToolName,
		RiskTier:       req.RiskTier,
		Decision:       decision,
		Reason:         res.Reason,
		Modified:       res.Modified,
		Timestamp:      time.Now().UTC(),
	})
	r.record(transcript.Entry{
		Type:       transcript.TypeConfirmation,
		ToolCallID: req.ToolCallID,
		Content:    string(decision),
		Name:       req.ToolName,
	})
}

func (r *Runner) record(entry transcript.Entry) {
	if r.transcript == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.transcript.Append(ctx, r.session.ID(), entry); err != nil {
		r.logger.Warn("transcript append failed", zap.Error(err))
	}
}

func (r *Runner) claimActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimed || r.active != nil {
		return false
	}
	r.claimed = true
	return true
}

func (r *Runner) releaseActive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimed = false
	r.active = nil
}

func (r *Runner) setActive(stream Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = stream
}
