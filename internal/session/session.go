// Package session owns the client-side state of one conversation with the
// agent host: the ordered message history, the in-flight tool-call ledger,
// and the confirmation gate pausing the loop around a proposed tool call.
//
// Mutation happens only through Apply (stream events) and the explicit
// operator actions; the rendering layer observes state through snapshots and
// change notices, never by reaching into the structs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"reins/internal/protocol"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser       Role = "user"
	RoleAgent      Role = "agent"
	RoleToolResult Role = "tool_result"
)

// ToolStatus is the ledger status of a proposed tool call. Transitions are
// monotone; a terminal status is never reopened.
type ToolStatus string

const (
	ToolPending   ToolStatus = "pending"
	ToolExecuting ToolStatus = "executing"
	ToolSuccess   ToolStatus = "success"
	ToolError     ToolStatus = "error"
	ToolRejected  ToolStatus = "rejected"
)

func (s ToolStatus) terminal() bool {
	switch s {
	case ToolSuccess, ToolError, ToolRejected:
		return true
	}
	return false
}

func (s ToolStatus) rank() int {
	switch s {
	case ToolPending:
		return 0
	case ToolExecuting:
		return 1
	default:
		return 2
	}
}

// ToolCallRecord tracks one proposed tool invocation.
type ToolCallRecord struct {
	ID        string
	Name      string
	Arguments json.RawMessage
	Status    ToolStatus
	// Result holds the success or error payload once terminal.
	Result  string
	IsError bool
	// Reason explains a rejection.
	Reason string
}

// Message is one entry in the conversation history. Content grows while the
// owning stream is live and freezes once it reaches a terminal event.
type Message struct {
	ID          string
	Role        Role
	Content     string
	ToolCallIDs []string
	CreatedAt   time.Time

	final bool
}

// NoticeKind classifies state-change notifications.
type NoticeKind string

const (
	NoticeHistory NoticeKind = "history"
	NoticeLedger  NoticeKind = "ledger"
	NoticeGate    NoticeKind = "gate"
	NoticeStatus  NoticeKind = "status"
)

// Notice is a best-effort change signal for subscribers. It carries no
// payload; subscribers re-read snapshots.
type Notice struct {
	Kind NoticeKind
}

const subscriberBuffer = 64

var (
	// ErrConfirmationPending rejects work that would overlap a paused
	// exchange: a session has at most one outstanding confirmation, and no
	// new stream may open until it resolves.
	ErrConfirmationPending = errors.New("a confirmation is pending for this session")
	// ErrUnknownToolCall indicates an event referencing a tool call the
	// ledger never saw.
	ErrUnknownToolCall = errors.New("unknown tool call")
)

// Session is the client-side conversation state.
type Session struct {
	mu sync.Mutex

	id       string
	messages []Message
	ledger   map[string]*ToolCallRecord
	order    []string

	gate      *Gate
	summary   string
	lastState json.RawMessage

	subscribers []chan Notice
}

// New creates a session. The id may be empty; the init event binds it.
func New(id string) *Session {
	return &Session{
		id:     id,
		ledger: map[string]*ToolCallRecord{},
	}
}

// ID returns the session identity.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Subscribe returns a change-notice channel. Notices are dropped rather than
// blocking the event loop when a subscriber lags.
func (s *Session) Subscribe() <-chan Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Notice, subscriberBuffer)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Session) publish(kind NoticeKind) {
	for _, ch := range s.subscribers {
		select {
		case ch <- Notice{Kind: kind}:
		default:
		}
	}
}

// AppendUserMessage records operator input in the history.
func (s *Session) AppendUserMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC(),
		final:     true,
	})
	s.publish(NoticeHistory)
}

// Apply dispatches one typed stream event into the session state. This is
// the only path by which stream consumption mutates the conversation.
func (s *Session) Apply(ev protocol.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case protocol.KindInit:
		if s.id == "" {
			s.id = ev.SessionID
		}
		s.publish(NoticeStatus)
		return nil

	case protocol.KindStart:
		s.ensureActiveAgentMessage()
		s.publish(NoticeHistory)
		return nil

	case protocol.KindContentDelta:
		msg := s.ensureActiveAgentMessage()
		msg.Content += ev.Delta
		s.publish(NoticeHistory)
		return nil

	case protocol.KindSummary:
		s.summary = ev.Summary
		s.publish(NoticeStatus)
		return nil

	case protocol.KindState:
		s.lastState = append(json.RawMessage(nil), ev.State...)
		s.publish(NoticeStatus)
		return nil

	case protocol.KindToolCallProposed:
		return s.proposeToolCall(ev.ToolCall)

	case protocol.KindToolCallExecuting:
		return s.advanceToolCall(ev.ToolCall.ID, ToolExecuting, "", false)

	case protocol.KindToolResult:
		status := ToolSuccess
		if ev.ToolResult.IsError {
			status = ToolError
		}
		if err := s.advanceToolCall(ev.ToolResult.ToolCallID, status, ev.ToolResult.Content, ev.ToolResult.IsError); err != nil {
			return err
		}
		s.messages = append(s.messages, Message{
			ID:        uuid.NewString(),
			Role:      RoleToolResult,
			Content:   ev.ToolResult.Content,
			CreatedAt: time.Now().UTC(),
			final:     true,
		})
		s.publish(NoticeHistory)
		return nil

	case protocol.KindConfirmationRequired:
		return s.attachGateLocked(ev.Confirmation)

	case protocol.KindComplete, protocol.KindFinal, protocol.KindDone, protocol.KindError:
		s.finalizeActiveMessage()
		s.publish(NoticeStatus)
		return nil

	default:
		return fmt.Errorf("unhandled event kind %q", ev.Kind)
	}
}

func (s *Session) proposeToolCall(call *protocol.ToolCall) error {
	if _, exists := s.ledger[call.ID]; exists {
		// Re-proposal of a known call is a no-op; the ledger is authoritative.
		return nil
	}
	record := &ToolCallRecord{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: append(json.RawMessage(nil), call.Arguments...),
		Status:    ToolPending,
	}
	s.ledger[call.ID] = record
	s.order = append(s.order, call.ID)

	msg := s.ensureActiveAgentMessage()
	msg.ToolCallIDs = append(msg.ToolCallIDs, call.ID)
	s.publish(NoticeLedger)
	return nil
}

func (s *Session) advanceToolCall(id string, status ToolStatus, result string, isError bool) error {
	record, ok := s.ledger[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToolCall, id)
	}
	if record.Status.terminal() || status.rank() <= record.Status.rank() {
		// Monotone ledger: ignore stale or repeated transitions.
		return nil
	}
	record.Status = status
	if status.terminal() {
		record.Result = result
		record.IsError = isError
	}
	s.publish(NoticeLedger)
	return nil
}

// RejectToolCall marks a call rejected with the given reason. Terminal
// records are left untouched.
func (s *Session) RejectToolCall(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.ledger[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToolCall, id)
	}
	if record.Status.terminal() {
		return nil
	}
	record.Status = ToolRejected
	record.Reason = reason
	s.publish(NoticeLedger)
	return nil
}

// ReplaceToolCallArguments swaps in operator-modified arguments so the
// ledger reflects what was actually approved.
func (s *Session) ReplaceToolCallArguments(id string, args json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.ledger[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToolCall, id)
	}
	if record.Status.terminal() {
		return nil
	}
	record.Arguments = append(json.RawMessage(nil), args...)
	s.publish(NoticeLedger)
	return nil
}

func (s *Session) attachGateLocked(req *protocol.ConfirmationRequest) error {
	if s.gate != nil && !s.gate.Resolved() {
		return ErrConfirmationPending
	}
	s.gate = newGate(req, s.gateChanged)
	s.publish(NoticeGate)
	return nil
}

// gateChanged relays gate transitions (awaiting-second, resolution) to
// subscribers. The gate invokes it with its own lock released.
func (s *Session) gateChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publish(NoticeGate)
}

// Gate returns the active confirmation gate, or nil.
func (s *Session) Gate() *Gate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate
}

// ClearGate discards a resolved gate. A pending gate is never cleared; it
// resolves only by decision or expiry.
func (s *Session) ClearGate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil && s.gate.Resolved() {
		s.gate = nil
		s.publish(NoticeGate)
	}
}

// ConfirmationOutstanding reports whether a confirmation blocks new work.
func (s *Session) ConfirmationOutstanding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate != nil && !s.gate.Resolved()
}

// Messages returns a snapshot of the history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Ledger returns tool-call records in proposal order.
func (s *Session) Ledger() []ToolCallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolCallRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.ledger[id])
	}
	return out
}

// ToolCall returns one ledger record by id.
func (s *Session) ToolCall(id string) (ToolCallRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.ledger[id]
	if !ok {
		return ToolCallRecord{}, false
	}
	return *record, true
}

// Summary returns the latest host-provided summary.
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// LastState returns the latest raw host state snapshot.
func (s *Session) LastState() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(json.RawMessage(nil), s.lastState...)
}

func (s *Session) ensureActiveAgentMessage() *Message {
	if n := len(s.messages); n > 0 {
		last := &s.messages[n-1]
		if last.Role == RoleAgent && !last.final {
			return last
		}
	}
	s.messages = append(s.messages, Message{
		ID:        uuid.NewString(),
		Role:      RoleAgent,
		CreatedAt: time.Now().UTC(),
	})
	return &s.messages[len(s.messages)-1]
}

func (s *Session) finalizeActiveMessage() {
	if n := len(s.messages); n > 0 {
		last := &s.messages[n-1]
		if last.Role == RoleAgent && !last.final {
			last.final = true
		}
	}
}
