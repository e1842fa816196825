package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme contains style tokens used by the terminal UI.
type Theme struct {
	Name                      string
	StatusBarStyle            lipgloss.Style
	PanelStyle                lipgloss.Style
	ConfirmStyle              lipgloss.Style
	UserPrefixStyle           lipgloss.Style
	AgentPrefixStyle          lipgloss.Style
	ToolPrefixStyle           lipgloss.Style
	InputPromptStyle          lipgloss.Style
	InputTextStyle            lipgloss.Style
	InputPlaceholderTextStyle lipgloss.Style
	RiskLowStyle              lipgloss.Style
	RiskMediumStyle           lipgloss.Style
	RiskHighStyle             lipgloss.Style
	RiskCriticalStyle         lipgloss.Style
}

// ResolveTheme returns the configured theme or the dark default.
func ResolveTheme(name string) Theme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light":
		return newLightTheme()
	default:
		return newDarkTheme()
	}
}

func riskStyles() (low, medium, high, critical lipgloss.Style) {
	badge := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	low = badge.Foreground(lipgloss.Color("16")).Background(lipgloss.Color("42"))
	medium = badge.Foreground(lipgloss.Color("16")).Background(lipgloss.Color("220"))
	high = badge.Foreground(lipgloss.Color("230")).Background(lipgloss.Color("208"))
	critical = badge.Foreground(lipgloss.Color("230")).Background(lipgloss.Color("196"))
	return low, medium, high, critical
}

func newDarkTheme() Theme {
	border := lipgloss.Color("63")
	alert := lipgloss.Color("196")
	muted := lipgloss.Color("245")
	low, medium, high, critical := riskStyles()
	return Theme{
		Name: "dark",
		StatusBarStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("63")).
			Padding(0, 1),
		PanelStyle: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(border).
			Padding(0, 1),
		ConfirmStyle: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(alert).
			Padding(0, 1),
		UserPrefixStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		AgentPrefixStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
		ToolPrefixStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("111")).Bold(true),
		InputPromptStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		InputTextStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		InputPlaceholderTextStyle: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true),
		RiskLowStyle:      low,
		RiskMediumStyle:   medium,
		RiskHighStyle:     high,
		RiskCriticalStyle: critical,
	}
}

func newLightTheme() Theme {
	border := lipgloss.Color("246")
	alert := lipgloss.Color("160")
	muted := lipgloss.Color("240")
	low, medium, high, critical := riskStyles()
	return Theme{
		Name: "light",
		StatusBarStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("16")).
			Background(lipgloss.Color("189")).
			Padding(0, 1),
		PanelStyle: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(border).
			Padding(0, 1),
		ConfirmStyle: lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(alert).
			Padding(0, 1),
		UserPrefixStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("25")).Bold(true),
		AgentPrefixStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("94")).Bold(true),
		ToolPrefixStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("31")).Bold(true),
		InputPromptStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("25")).Bold(true),
		InputTextStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("16")),
		InputPlaceholderTextStyle: lipgloss.NewStyle().
			Foreground(muted).
			Italic(true),
		RiskLowStyle:      low,
		RiskMediumStyle:   medium,
		RiskHighStyle:     high,
		RiskCriticalStyle: critical,
	}
}
