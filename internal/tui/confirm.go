package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"reins/internal/protocol"
	"reins/internal/session"
)

// ConfirmModel renders one pending confirmation: risk badge, tool call,
// justification, and the countdown racing the operator's decision.
type ConfirmModel struct {
	Request        protocol.ConfirmationRequest
	AwaitingSecond bool
	Editing        bool

	gate          *session.Gate
	showCountdown bool
	remaining     time.Duration
}

// NewConfirmModel constructs the panel for a pending gate.
func NewConfirmModel(gate *session.Gate, showCountdown bool) *ConfirmModel {
	return &ConfirmModel{
		Request:       gate.Request(),
		gate:          gate,
		showCountdown: showCountdown,
		remaining:     gate.Remaining(),
	}
}

// RefreshCountdown re-reads the remaining budget from the gate.
func (m *ConfirmModel) RefreshCountdown() {
	if m.gate != nil {
		m.remaining = m.gate.Remaining()
	}
}

// Render draws the confirmation panel.
func (m *ConfirmModel) Render(width int, theme Theme) string {
	req := m.Request

	lines := []string{
		"Confirmation required  " + riskBadge(req.RiskTier, theme),
		"",
		"tool: " + req.ToolName,
	}

	if args := prettyJSON(req.Arguments); args != "" {
		lines = append(lines, "args:")
		lines = append(lines, indentLines(args, "  ")...)
	}
	if just := strings.TrimSpace(req.Justification); just != "" {
		lines = append(lines, "why:  "+just)
	}
	if m.showCountdown {
		lines = append(lines, "", "expires in "+formatCountdown(m.remaining))
	}

	lines = append(lines, "")
	switch {
	case m.Editing:
		lines = append(lines, "Editing arguments. Enter to approve, Esc to abort edit.")
	case m.AwaitingSecond:
		lines = append(lines, theme.RiskCriticalStyle.Render("CRITICAL")+" press y again to confirm, n to reject")
	default:
		hints := "y approve   n reject"
		if req.AllowModification {
			hints += "   e edit args"
		}
		lines = append(lines, hints)
	}

	return renderPanel(width, theme.ConfirmStyle, strings.Join(lines, "\n"))
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

func indentLines(text, prefix string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, line := range raw {
		out = append(out, prefix+line)
	}
	return out
}

func formatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
