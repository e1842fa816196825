package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"reins/internal/chat"
	"reins/internal/client"
	"reins/internal/protocol"
	"reins/internal/session"
	"reins/internal/upload"
)

const (
	defaultAppWidth      = 100
	defaultPanelWidth    = 40
	minimumChatWidth     = 40
	minimumPanelVisible  = 26
	remoteRequestTimeout = 10 * time.Second
)

// AppConfig configures the root BubbleTea model.
type AppConfig struct {
	Version       string
	ModelName     string
	ThemeName     string
	ShowCountdown bool
	Runner        *chat.Runner
	Remote        *client.Client
	Upload        upload.Config
}

type sendDoneMsg struct {
	Err error
}

type noticeMsg struct {
	Notice session.Notice
}

type tickMsg time.Time

type remoteResultMsg struct {
	Lines []string
	Err   error
}

// App is the root TUI model. It renders the conversation on the left and,
// while a confirmation is outstanding, the confirmation panel on the right;
// otherwise the tool-call ledger fills that slot.
type App struct {
	theme         Theme
	showCountdown bool

	runner *chat.Runner
	remote *client.Client
	upload upload.Config

	width  int
	height int

	status  StatusModel
	chat    ChatModel
	input   InputModel
	ledger  LedgerModel
	confirm *ConfirmModel

	notices <-chan session.Notice
	sending bool
}

// NewApp constructs the root TUI model.
func NewApp(cfg AppConfig) *App {
	model := &App{
		theme:         ResolveTheme(cfg.ThemeName),
		showCountdown: cfg.ShowCountdown,
		runner:        cfg.Runner,
		remote:        cfg.Remote,
		upload:        cfg.Upload,
		status:        NewStatusModel(cfg.Version, cfg.ModelName, ""),
		chat:          NewChatModel(0),
		input:         NewInputModel(">", "Type a message, or /attach /pending /audit /quit"),
		ledger:        NewLedgerModel(),
	}
	if cfg.Runner != nil {
		model.notices = cfg.Runner.Session().Subscribe()
	}
	if model.width == 0 {
		model.width = defaultAppWidth
	}
	model.status.SetState("idle")
	return model
}

// Init arms the notice listener and the countdown ticker.
func (m *App) Init() tea.Cmd {
	return tea.Batch(waitForNotice(m.notices), tickCommand())
}

// Update applies state changes from user input and session notices.
func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chat.SetViewportHeight(m.chatViewportHeight())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case noticeMsg:
		m.syncFromSession()
		return m, waitForNotice(m.notices)

	case tickMsg:
		if m.confirm != nil {
			m.confirm.RefreshCountdown()
		}
		return m, tickCommand()

	case sendDoneMsg:
		m.sending = false
		if msg.Err != nil {
			m.appendErrorMessage(msg.Err.Error())
		} else {
			m.status.SetState("idle")
		}
		m.syncFromSession()
		return m, nil

	case remoteResultMsg:
		if msg.Err != nil {
			m.appendErrorMessage(msg.Err.Error())
			return m, nil
		}
		for _, line := range msg.Lines {
			m.chat.Append("agent", line)
		}
		return m, nil
	}

	return m, nil
}

// View renders status bar, body, and input line.
func (m *App) View() string {
	width := m.width
	if width <= 0 {
		width = defaultAppWidth
	}

	statusLine := m.status.Render(width, m.theme)
	body := m.renderBody(width)
	inputLine := m.input.Render(width, m.theme)
	return strings.Join([]string{statusLine, body, inputLine}, "\n")
}

func (m *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// A displayed confirmation captures decision keys until it resolves.
	if m.confirm != nil && !m.confirm.Editing {
		switch msg.String() {
		case "y":
			if err := m.runner.Approve(nil); err != nil {
				m.appendErrorMessage(err.Error())
			}
			return m, nil
		case "n":
			if err := m.runner.Reject("rejected by operator"); err != nil {
				m.appendErrorMessage(err.Error())
			}
			return m, nil
		case "e":
			if m.confirm.Request.AllowModification {
				m.confirm.Editing = true
				m.input.SetValue(string(m.confirm.Request.Arguments))
			}
			return m, nil
		}
		if msg.Type == tea.KeyEsc {
			// Esc aborts the stream but leaves the decision open.
			m.runner.CancelActive()
			return m, nil
		}
		return m, nil
	}

	if m.confirm != nil && m.confirm.Editing {
		if msg.Type == tea.KeyEsc {
			m.confirm.Editing = false
			m.input.Clear()
			return m, nil
		}
		if submitted := m.input.HandleKey(msg); submitted {
			edited := strings.TrimSpace(m.input.Value())
			m.input.Clear()
			m.confirm.Editing = false
			if err := m.runner.Approve(json.RawMessage(edited)); err != nil {
				m.appendErrorMessage(err.Error())
			}
		}
		return m, nil
	}

	if m.handleChatScrollKey(msg) {
		return m, nil
	}
	if msg.Type == tea.KeyEsc {
		m.runner.CancelActive()
		return m, nil
	}

	if submitted := m.input.HandleKey(msg); submitted {
		content := strings.TrimSpace(m.input.Value())
		m.input.Clear()
		return m, m.handleInputSubmit(content)
	}
	return m, nil
}

func (m *App) handleInputSubmit(content string) tea.Cmd {
	if content == "" {
		return nil
	}
	if strings.HasPrefix(content, "/") {
		return m.handleSlashCommand(content)
	}
	if m.sending || m.runner.Busy() {
		m.appendErrorMessage("a stream is already active")
		return nil
	}

	m.sending = true
	m.status.SetState("streaming")
	runner := m.runner
	return func() tea.Msg {
		return sendDoneMsg{Err: runner.Send(context.Background(), content)}
	}
}

func (m *App) handleSlashCommand(content string) tea.Cmd {
	fields := strings.Fields(content)
	switch fields[0] {
	case "/quit":
		return tea.Quit
	case "/pending":
		return m.fetchPendingCommand()
	case "/audit":
		return m.fetchAuditCommand()
	case "/attach":
		if len(fields) != 2 {
			m.appendErrorMessage("usage: /attach <path>")
			return nil
		}
		return m.attachCommand(fields[1])
	default:
		m.appendErrorMessage("unknown command " + fields[0])
		return nil
	}
}

// attachCommand stabilizes a file off the UI loop and stages it on the
// runner for the next message.
func (m *App) attachCommand(path string) tea.Cmd {
	runner := m.runner
	cfg := m.upload
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), remoteRequestTimeout)
		defer cancel()
		asset, err := upload.Stabilize(ctx, upload.FileSource(path), cfg)
		if err != nil {
			return remoteResultMsg{Err: err}
		}
		runner.Attach(*asset)
		return remoteResultMsg{Lines: []string{
			fmt.Sprintf("Attached %s (%d bytes, sha256 %.12s) to the next message.", asset.Name, len(asset.Data), asset.SHA256),
		}}
	}
}

func (m *App) fetchPendingCommand() tea.Cmd {
	remote := m.remote
	if remote == nil {
		m.appendErrorMessage("remote client is not configured")
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), remoteRequestTimeout)
		defer cancel()
		pending, err := remote.PendingConfirmations(ctx)
		if err != nil {
			return remoteResultMsg{Err: err}
		}
		if len(pending) == 0 {
			return remoteResultMsg{Lines: []string{"No pending confirmations."}}
		}
		lines := make([]string, 0, len(pending))
		for _, req := range pending {
			lines = append(lines, fmt.Sprintf("%s  %s  [%s]", req.ID, req.ToolName, req.RiskTier))
		}
		return remoteResultMsg{Lines: lines}
	}
}

func (m *App) fetchAuditCommand() tea.Cmd {
	remote := m.remote
	if remote == nil {
		m.appendErrorMessage("remote client is not configured")
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), remoteRequestTimeout)
		defer cancel()
		entries, err := remote.AuditLog(ctx, 20)
		if err != nil {
			return remoteResultMsg{Err: err}
		}
		if len(entries) == 0 {
			return remoteResultMsg{Lines: []string{"Audit log is empty."}}
		}
		lines := make([]string, 0, len(entries))
		for _, entry := range entries {
			lines = append(lines, fmt.Sprintf("%s  %s  %s  %s",
				entry.Timestamp.Format(time.DateTime), entry.ToolName, entry.Decision, entry.Reason))
		}
		return remoteResultMsg{Lines: lines}
	}
}

// syncFromSession rebuilds the view models from session state.
func (m *App) syncFromSession() {
	s := m.runner.Session()
	m.status.SessionID = s.ID()

	m.chat.Clear()
	for _, message := range s.Messages() {
		switch message.Role {
		case session.RoleUser:
			m.chat.Append("user", message.Content)
		case session.RoleAgent:
			m.chat.Append("agent", message.Content)
		case session.RoleToolResult:
			m.chat.Append("tool", message.Content)
		}
	}

	m.ledger.SetRecords(s.Ledger())
	if summary := s.Summary(); summary != "" {
		m.ledger.Summary = summary
	}

	gate := s.Gate()
	switch {
	case gate != nil && !gate.Resolved():
		if m.confirm == nil || m.confirm.Request.ID != gate.Request().ID {
			m.confirm = NewConfirmModel(gate, m.showCountdown)
		}
		m.confirm.AwaitingSecond = gate.State() == session.GateAwaitingSecond
		m.status.SetState("awaiting confirmation")
	default:
		m.confirm = nil
		if m.sending {
			m.status.SetState("streaming")
		} else {
			m.status.SetState("idle")
		}
	}
}

func (m *App) appendErrorMessage(errText string) {
	m.chat.Append("agent", "Error: "+strings.TrimSpace(errText))
	m.status.SetState("error")
}

func (m *App) renderBody(width int) string {
	m.chat.SetViewportHeight(m.chatViewportHeight())

	panelWidth := defaultPanelWidth
	if width/3 < panelWidth {
		panelWidth = width / 3
	}
	if panelWidth < minimumPanelVisible {
		panelWidth = minimumPanelVisible
	}

	chatWidth := width - panelWidth - 1
	if chatWidth < minimumChatWidth {
		chatWidth = minimumChatWidth
		panelWidth = width - chatWidth - 1
	}

	chatView := m.chat.Render(chatWidth, m.theme)
	if panelWidth <= 0 {
		return chatView
	}

	var panelView string
	if m.confirm != nil {
		panelView = m.confirm.Render(panelWidth, m.theme)
	} else {
		panelView = m.ledger.Render(panelWidth, m.theme)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chatView, panelView)
}

func (m *App) handleChatScrollKey(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyUp:
		m.chat.ScrollUp(1)
		return true
	case tea.KeyDown:
		m.chat.ScrollDown(1)
		return true
	case tea.KeyPgUp:
		m.chat.PageUp()
		return true
	case tea.KeyPgDown:
		m.chat.PageDown()
		return true
	case tea.KeyHome:
		m.chat.ScrollToTop()
		return true
	case tea.KeyEnd:
		m.chat.ScrollToBottom()
		return true
	default:
		return false
	}
}

func (m *App) chatViewportHeight() int {
	if m.height <= 0 {
		return 0
	}

	const nonBodyRows = 2 // status + input
	bodyHeight := m.height - nonBodyRows
	if bodyHeight < 1 {
		return 1
	}

	contentHeight := bodyHeight - m.theme.PanelStyle.GetVerticalFrameSize()
	if contentHeight < 1 {
		return 1
	}
	return contentHeight
}

func waitForNotice(notices <-chan session.Notice) tea.Cmd {
	if notices == nil {
		return nil
	}
	return func() tea.Msg {
		notice, ok := <-notices
		if !ok {
			return nil
		}
		return noticeMsg{Notice: notice}
	}
}

func tickCommand() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func riskBadge(tier protocol.RiskTier, theme Theme) string {
	label := strings.ToUpper(string(tier))
	switch tier {
	case protocol.RiskLow:
		return theme.RiskLowStyle.Render(label)
	case protocol.RiskMedium:
		return theme.RiskMediumStyle.Render(label)
	case protocol.RiskHigh:
		return theme.RiskHighStyle.Render(label)
	default:
		return theme.RiskCriticalStyle.Render(label)
	}
}
