// Package audit records resolved confirmation requests. Entries are
// write-once: a resolution produces exactly one entry and nothing updates it
// afterwards.
package audit

import (
	"time"

	"go.uber.org/zap"

	"reins/internal/protocol"
)

// Decision is the recorded outcome of a confirmation request.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionExpired  Decision = "expired"
)

// Entry is one immutable audit record.
type Entry struct {
	ID             string            `json:"id"`
	SessionID      string            `json:"session_id"`
	ConfirmationID string            `json:"confirmation_id"`
	ToolName       string            `json:"tool_name"`
	RiskTier       protocol.RiskTier `json:"risk_tier"`
	Decision       Decision          `json:"decision"`
	Reason         string            `json:"reason,omitempty"`
	Modified       bool              `json:"modified,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Recorder persists audit entries.
// Record() must NEVER block the caller.
type Recorder interface {
	Record(entry Entry)
	Close() error
}

// LogRecorder writes audit entries to the structured log. It is the fallback
// when no journal path is configured.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder returns a log-backed recorder.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(entry Entry) {
	r.logger.Info("confirmation resolved",
		zap.String("confirmation_id", entry.ConfirmationID),
		zap.String("session_id", entry.SessionID),
		zap.String("tool_name", entry.ToolName),
		zap.String("risk_tier", string(entry.RiskTier)),
		zap.String("decision", string(entry.Decision)),
		zap.String("reason", entry.Reason),
		zap.Bool("modified", entry.Modified),
	)
}

func (r *LogRecorder) Close() error { return nil }
