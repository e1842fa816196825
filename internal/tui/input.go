package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// InputModel wraps the single-line prompt at the bottom of the screen.
type InputModel struct {
	inner textinput.Model
}

// NewInputModel constructs a focused input line.
func NewInputModel(prompt, placeholder string) InputModel {
	inner := textinput.New()
	inner.Prompt = prompt + " "
	inner.Placeholder = placeholder
	inner.CharLimit = 0
	inner.Focus()
	return InputModel{inner: inner}
}

// Value returns current raw input text.
func (m InputModel) Value() string {
	return m.inner.Value()
}

// SetValue replaces input text.
func (m *InputModel) SetValue(value string) {
	m.inner.SetValue(value)
	m.inner.CursorEnd()
}

// Clear resets input text.
func (m *InputModel) Clear() {
	m.inner.Reset()
}

// HandleKey feeds one key into the input and reports the submit key.
func (m *InputModel) HandleKey(msg tea.KeyMsg) (submitted bool) {
	if msg.Type == tea.KeyEnter {
		return true
	}
	m.inner, _ = m.inner.Update(msg)
	return false
}

// Render draws the input line.
func (m InputModel) Render(width int, theme Theme) string {
	m.inner.PromptStyle = theme.InputPromptStyle
	m.inner.TextStyle = theme.InputTextStyle
	m.inner.PlaceholderStyle = theme.InputPlaceholderTextStyle

	line := m.inner.View()
	if width > 0 {
		return lipgloss.NewStyle().Width(width).Render(line)
	}
	return line
}
