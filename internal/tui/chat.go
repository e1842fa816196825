package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

const defaultChatLimit = 500

// ChatMessage is one rendered chat item.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatModel buffers conversation lines and scrolls them through a viewport.
// While following, the newest lines stay visible; scrolling up pins the view
// until the operator returns to the bottom.
type ChatModel struct {
	messages    []ChatMessage
	maxMessages int

	vp     viewport.Model
	follow bool
}

// NewChatModel creates a chat buffer with a retention limit.
func NewChatModel(maxMessages int) ChatModel {
	limit := maxMessages
	if limit <= 0 {
		limit = defaultChatLimit
	}
	return ChatModel{
		maxMessages: limit,
		vp:          viewport.New(0, 0),
		follow:      true,
	}
}

// Append records one message when content is non-empty.
func (m *ChatModel) Append(role, content string) {
	text := strings.TrimSpace(content)
	if text == "" {
		return
	}
	m.messages = append(m.messages, ChatMessage{
		Role:    strings.TrimSpace(role),
		Content: text,
	})
	if overflow := len(m.messages) - m.maxMessages; overflow > 0 {
		m.messages = append([]ChatMessage(nil), m.messages[overflow:]...)
	}
}

// Messages returns a defensive copy of buffered messages.
func (m ChatModel) Messages() []ChatMessage {
	copied := make([]ChatMessage, len(m.messages))
	copy(copied, m.messages)
	return copied
}

// Clear removes all buffered chat messages.
func (m *ChatModel) Clear() {
	m.messages = nil
	m.vp.SetContent("")
	m.vp.GotoTop()
	m.follow = true
}

// SetViewportHeight configures the visible line count for chat content.
// 0 means unconstrained.
func (m *ChatModel) SetViewportHeight(height int) {
	if height < 0 {
		height = 0
	}
	m.vp.Height = height
}

// ScrollUp moves the viewport up by lines.
func (m *ChatModel) ScrollUp(lines int) {
	if lines <= 0 {
		return
	}
	m.vp.LineUp(lines)
	m.follow = m.vp.AtBottom()
}

// ScrollDown moves the viewport down by lines.
func (m *ChatModel) ScrollDown(lines int) {
	if lines <= 0 {
		return
	}
	m.vp.LineDown(lines)
	m.follow = m.vp.AtBottom()
}

// PageUp scrolls one viewport up.
func (m *ChatModel) PageUp() {
	m.vp.ViewUp()
	m.follow = m.vp.AtBottom()
}

// PageDown scrolls one viewport down.
func (m *ChatModel) PageDown() {
	m.vp.ViewDown()
	m.follow = m.vp.AtBottom()
}

// ScrollToTop jumps to the oldest buffered lines.
func (m *ChatModel) ScrollToTop() {
	m.vp.GotoTop()
	m.follow = false
}

// ScrollToBottom jumps back to the most recent lines and resumes following.
func (m *ChatModel) ScrollToBottom() {
	m.vp.GotoBottom()
	m.follow = true
}

// Render draws the chat lines inside a panel.
func (m *ChatModel) Render(width int, theme Theme) string {
	if len(m.messages) == 0 {
		return renderPanel(width, theme.PanelStyle, "No messages yet.")
	}

	lines := m.renderLines(theme)
	if m.vp.Height <= 0 {
		return renderPanel(width, theme.PanelStyle, strings.Join(lines, "\n"))
	}

	m.vp.Width = width
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.follow {
		m.vp.GotoBottom()
	}
	return renderPanel(width, theme.PanelStyle, m.vp.View())
}

func (m ChatModel) renderLines(theme Theme) []string {
	lines := make([]string, 0, len(m.messages))
	for _, message := range m.messages {
		prefix, style := rolePrefix(message.Role, theme)
		raw := strings.Split(message.Content, "\n")
		lines = append(lines, style.Render(prefix)+" "+raw[0])
		if len(raw) > 1 {
			lines = append(lines, raw[1:]...)
		}
	}
	return lines
}

func rolePrefix(role string, theme Theme) (string, lipgloss.Style) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "agent":
		return "agent:", theme.AgentPrefixStyle
	case "tool":
		return "tool:", theme.ToolPrefixStyle
	default:
		return "user:", theme.UserPrefixStyle
	}
}

func renderPanel(width int, style lipgloss.Style, content string) string {
	if width > 0 {
		return style.Width(width).Render(content)
	}
	return style.Render(content)
}
