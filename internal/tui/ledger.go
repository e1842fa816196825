package tui

import (
	"strings"

	"reins/internal/session"
)

// LedgerModel renders the tool-call ledger and the running summary.
type LedgerModel struct {
	Summary string
	records []session.ToolCallRecord
}

// NewLedgerModel constructs an empty ledger panel.
func NewLedgerModel() LedgerModel {
	return LedgerModel{}
}

// SetRecords replaces the displayed records.
func (m *LedgerModel) SetRecords(records []session.ToolCallRecord) {
	m.records = records
}

// Render draws the ledger panel.
func (m LedgerModel) Render(width int, theme Theme) string {
	lines := []string{"Tool calls"}
	if len(m.records) == 0 {
		lines = append(lines, "(none yet)")
	}
	for _, record := range m.records {
		marker := statusMarker(record.Status)
		lines = append(lines, marker+" "+record.Name)
		if record.Status == session.ToolRejected && record.Reason != "" {
			lines = append(lines, "    "+record.Reason)
		}
	}
	if summary := strings.TrimSpace(m.Summary); summary != "" {
		lines = append(lines, "", "Summary", summary)
	}
	return renderPanel(width, theme.PanelStyle, strings.Join(lines, "\n"))
}

func statusMarker(status session.ToolStatus) string {
	switch status {
	case session.ToolPending:
		return "?"
	case session.ToolExecuting:
		return "~"
	case session.ToolSuccess:
		return "+"
	case session.ToolError:
		return "x"
	case session.ToolRejected:
		return "-"
	default:
		return " "
	}
}
