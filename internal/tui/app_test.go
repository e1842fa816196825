package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"reins/internal/chat"
	"reins/internal/protocol"
	"reins/internal/session"
)

type stubHost struct{}

func (stubHost) OpenSession(context.Context) (string, error) {
	return "", errors.New("not scripted")
}

func (stubHost) SendMessage(context.Context, string, string, []protocol.Attachment, protocol.ModelParams) (chat.Stream, error) {
	return nil, errors.New("not scripted")
}

func (stubHost) Continue(context.Context, string, protocol.Continuation) (chat.Stream, error) {
	return nil, errors.New("not scripted")
}

func (stubHost) ResolveConfirmation(context.Context, string, bool, string) error {
	return nil
}

func newTestApp(t *testing.T, s *session.Session) *App {
	t.Helper()
	runner, err := chat.New(chat.Config{Host: stubHost{}, Session: s})
	if err != nil {
		t.Fatalf("chat.New() error = %v", err)
	}
	return NewApp(AppConfig{
		Version:       "test",
		ModelName:     "atlas-medium",
		ShowCountdown: true,
		Runner:        runner,
	})
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// pumpNotice feeds the next session notice through Update the way the live
// event loop would.
func pumpNotice(t *testing.T, app *App) {
	t.Helper()
	select {
	case notice, ok := <-app.notices:
		if !ok {
			t.Fatalf("notice channel closed")
		}
		app.Update(noticeMsg{Notice: notice})
	case <-time.After(time.Second):
		t.Fatalf("no session notice arrived")
	}
}

func TestSyncFromSessionBuildsChatAndLedger(t *testing.T) {
	t.Parallel()

	s := session.New("s-1")
	s.AppendUserMessage("hello")
	if err := s.Apply(protocol.Event{Kind: protocol.KindContentDelta, Delta: "hi there"}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := s.Apply(protocol.Event{Kind: protocol.KindToolCallProposed, ToolCall: &protocol.ToolCall{
		ID: "t-1", Name: "read_page",
	}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	app := newTestApp(t, s)
	app.syncFromSession()

	messages := app.chat.Messages()
	if len(messages) != 2 {
		t.Fatalf("chat messages = %d, want 2", len(messages))
	}
	if messages[0].Role != "user" || messages[1].Role != "agent" {
		t.Fatalf("roles = %q, %q", messages[0].Role, messages[1].Role)
	}

	rendered := app.ledger.Render(40, app.theme)
	if !strings.Contains(rendered, "read_page") {
		t.Fatalf("ledger render missing tool name: %q", rendered)
	}
	if app.status.SessionID != "s-1" {
		t.Fatalf("status session = %q", app.status.SessionID)
	}
}

func TestConfirmationPanelAppearsAndApproves(t *testing.T) {
	t.Parallel()

	s := session.New("s-1")
	if err := s.Apply(protocol.Event{Kind: protocol.KindConfirmationRequired, Confirmation: &protocol.ConfirmationRequest{
		ID: "c-1", ToolCallID: "t-1", ToolName: "delete_page",
		Arguments: json.RawMessage(`{"page":"home"}`), RiskTier: protocol.RiskHigh,
		AllowModification: true, TimeoutSeconds: 60,
	}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	app := newTestApp(t, s)
	app.syncFromSession()
	if app.confirm == nil {
		t.Fatalf("confirmation panel not shown")
	}

	rendered := app.confirm.Render(48, app.theme)
	for _, want := range []string{"delete_page", "HIGH", "e edit args", "expires in"} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("confirm render missing %q: %q", want, rendered)
		}
	}

	app.Update(keyMsg("y"))
	gate := s.Gate()
	if gate == nil || !gate.Resolved() {
		t.Fatalf("approve key did not resolve the gate")
	}
	res, _ := gate.Resolution()
	if res.State != session.GateApproved {
		t.Fatalf("resolution = %+v", res)
	}
}

func TestConfirmationPanelRejectKey(t *testing.T) {
	t.Parallel()

	s := session.New("s-1")
	if err := s.Apply(protocol.Event{Kind: protocol.KindConfirmationRequired, Confirmation: &protocol.ConfirmationRequest{
		ID: "c-1", ToolCallID: "t-1", ToolName: "delete_page",
		RiskTier: protocol.RiskMedium, TimeoutSeconds: 60,
	}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	app := newTestApp(t, s)
	app.syncFromSession()

	app.Update(keyMsg("n"))
	res, ok := s.Gate().Resolution()
	if !ok || res.State != session.GateRejected {
		t.Fatalf("resolution = %+v, ok = %v", res, ok)
	}
	if res.Reason != "rejected by operator" {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestEditKeyLoadsArgumentsIntoInput(t *testing.T) {
	t.Parallel()

	s := session.New("s-1")
	if err := s.Apply(protocol.Event{Kind: protocol.KindConfirmationRequired, Confirmation: &protocol.ConfirmationRequest{
		ID: "c-1", ToolCallID: "t-1", ToolName: "delete_page",
		Arguments: json.RawMessage(`{"page":"home"}`), RiskTier: protocol.RiskHigh,
		AllowModification: true, TimeoutSeconds: 60,
	}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	app := newTestApp(t, s)
	app.syncFromSession()

	app.Update(keyMsg("e"))
	if !app.confirm.Editing {
		t.Fatalf("edit key did not enter editing mode")
	}
	if app.input.Value() != `{"page":"home"}` {
		t.Fatalf("input value = %q", app.input.Value())
	}

	// Esc abandons the edit without resolving anything.
	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if app.confirm.Editing {
		t.Fatalf("esc did not leave editing mode")
	}
	if s.Gate().Resolved() {
		t.Fatalf("edit flow resolved the gate")
	}
}

func TestCriticalPanelShowsSecondConfirmHint(t *testing.T) {
	t.Parallel()

	s := session.New("s-1")
	if err := s.Apply(protocol.Event{Kind: protocol.KindConfirmationRequired, Confirmation: &protocol.ConfirmationRequest{
		ID: "c-1", ToolCallID: "t-1", ToolName: "delete_page",
		RiskTier: protocol.RiskCritical, RequireDoubleConfirm: true, TimeoutSeconds: 60,
	}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	app := newTestApp(t, s)
	app.syncFromSession()

	// The first press must reach the panel through the notice path alone;
	// the gate publishes its awaiting-second transition.
	app.Update(keyMsg("y"))
	pumpNotice(t, app)
	if s.Gate().Resolved() {
		t.Fatalf("one approval resolved a critical double-confirm gate")
	}
	if !app.confirm.AwaitingSecond {
		t.Fatalf("panel did not pick up the awaiting-second state")
	}

	rendered := app.confirm.Render(48, app.theme)
	if !strings.Contains(rendered, "press y again") {
		t.Fatalf("missing second-confirm hint: %q", rendered)
	}

	app.Update(keyMsg("y"))
	res, _ := s.Gate().Resolution()
	if res.State != session.GateApproved {
		t.Fatalf("resolution = %+v", res)
	}
}

func TestUnknownSlashCommand(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, session.New("s-1"))
	app.handleSlashCommand("/bogus")

	messages := app.chat.Messages()
	if len(messages) != 1 || !strings.Contains(messages[0].Content, "unknown command /bogus") {
		t.Fatalf("messages = %+v", messages)
	}
}

func TestFormatCountdown(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   time.Duration
		want string
	}{
		{90 * time.Second, "1:30"},
		{5 * time.Second, "0:05"},
		{-time.Second, "0:00"},
	}
	for _, tc := range cases {
		if got := formatCountdown(tc.in); got != tc.want {
			t.Fatalf("formatCountdown(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStatusBarBranding(t *testing.T) {
	t.Parallel()

	status := NewStatusModel("1.0.0", "atlas-medium", "s-1")
	line := status.Render(0, ResolveTheme("dark"))
	for _, want := range []string{"reins 1.0.0", "atlas-medium", "session: s-1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("status line missing %q: %q", want, line)
		}
	}
}
