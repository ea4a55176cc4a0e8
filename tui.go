package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/poonai/grimpoteuthis/internal/login"
)

const (
	usernameInput = iota
	passwordInput
	otpInput
)

type snapshotMsg login.Snapshot

type submitDoneMsg struct{}

// chanListener forwards flow snapshots to the model. A full channel drops
// the snapshot; the model reads the flow again once a submission ends.
type chanListener chan login.Snapshot

func (c chanListener) FlowChanged(s login.Snapshot) {
	select {
	case c <- s:
	default:
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7F5283"))
	errStyle   = titleStyle.Copy().
			Background(lipgloss.Color("#EB1D36"))
)

type model struct {
	ctx     context.Context
	flow    *login.Flow
	updates chan login.Snapshot
	inputs  []textinput.Model
	focus   int
	snap    login.Snapshot
	waiting bool
	spinner spinner.Model
	result  string
}

func newModel(ctx context.Context, flow *login.Flow, updates chan login.Snapshot) *model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	inputs := make([]textinput.Model, 3)
	for i := range inputs {
		in := textinput.New()
		in.CharLimit = 128
		switch i {
		case usernameInput:
			in.Prompt = "Username: "
			in.Placeholder = "octocat"
		case passwordInput:
			in.Prompt = "Password: "
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		case otpInput:
			in.Prompt = "One-time password: "
			in.Placeholder = "123456"
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
			in.CharLimit = 10
		}
		inputs[i] = in
	}
	inputs[usernameInput].Focus()

	snap := flow.Snapshot()
	inputs[usernameInput].SetValue(snap.Username)
	inputs[passwordInput].SetValue(snap.Password)

	return &model{
		ctx:     ctx,
		flow:    flow,
		updates: updates,
		inputs:  inputs,
		snap:    snap,
		spinner: s,
	}
}

func (m *model) Init() tea.Cmd {
	return waitForSnapshot(m.updates)
}

func waitForSnapshot(ch chan login.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-ch)
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			// leaving the screen discards the session.
			m.result = errStyle.Render("login cancelled")
			return m, tea.Quit
		case "tab", "down":
			m.moveFocus(1)
			return m, nil
		case "shift+tab", "up":
			m.moveFocus(-1)
			return m, nil
		case "enter":
			cmd := m.submit()
			if cmd == nil {
				return m, nil
			}
			var tick tea.Cmd
			m.spinner, tick = m.spinner.Update(spinner.Tick())
			return m, tea.Batch(cmd, tick)
		}
		if m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		m.bind()
		return m, cmd
	case snapshotMsg:
		// inputs are only rewritten from the flow once a submission ends,
		// so a late snapshot can not undo typing.
		if m.waiting {
			s := login.Snapshot(msg)
			m.snap.ErrorMessage = s.ErrorMessage
			m.snap.Busy = s.Busy
		}
		return m, waitForSnapshot(m.updates)
	case submitDoneMsg:
		m.waiting = false
		m.snap = m.flow.Snapshot()
		m.inputs[usernameInput].SetValue(m.snap.Username)
		m.inputs[passwordInput].SetValue(m.snap.Password)
		m.inputs[otpInput].SetValue(m.snap.OneTimePassword)
		if m.snap.State == login.Authenticated {
			m.result = titleStyle.Render(m.snap.ErrorMessage)
			return m, tea.Quit
		}
		if m.snap.RequireOneTimePassword && m.focus != otpInput {
			m.setFocus(otpInput)
		}
		return m, nil
	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var tick tea.Cmd
		m.spinner, tick = m.spinner.Update(msg)
		return m, tick
	}
	return m, nil
}

// bind pushes the focused input into the flow.
func (m *model) bind() {
	v := m.inputs[m.focus].Value()
	switch m.focus {
	case usernameInput:
		m.flow.SetUsername(v)
	case passwordInput:
		m.flow.SetPassword(v)
	case otpInput:
		m.flow.SetOneTimePassword(v)
	}
}

// submit runs the command of the focused form: the one-time password
// field completes a challenge, the others send credentials.
func (m *model) submit() tea.Cmd {
	if m.waiting {
		return nil
	}
	var run func() bool
	if m.focus == otpInput {
		if !m.flow.CanSubmitOneTimePassword() {
			return nil
		}
		otp := m.inputs[otpInput].Value()
		run = func() bool { return m.flow.SubmitOneTimePassword(m.ctx, otp) }
	} else {
		if !m.flow.CanSubmitCredentials() {
			return nil
		}
		username := m.inputs[usernameInput].Value()
		password := m.inputs[passwordInput].Value()
		run = func() bool { return m.flow.SubmitCredentials(m.ctx, username, password) }
	}
	m.waiting = true
	return func() tea.Msg {
		run()
		return submitDoneMsg{}
	}
}

func (m *model) visibleInputs() int {
	if m.snap.RequireOneTimePassword {
		return 3
	}
	return 2
}

func (m *model) moveFocus(delta int) {
	n := m.visibleInputs()
	m.setFocus(((m.focus+delta)%n + n) % n)
}

func (m *model) setFocus(i int) {
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sign in to GitHub"))
	b.WriteString("\n\n")
	for i := 0; i < m.visibleInputs(); i++ {
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	switch {
	case m.waiting:
		b.WriteString(fmt.Sprintf("%sTalking to GitHub", m.spinner.View()))
	case m.snap.ErrorMessage != "" && m.snap.State != login.Authenticated:
		b.WriteString(errStyle.Render(m.snap.ErrorMessage))
	default:
		b.WriteString(m.snap.ErrorMessage)
	}
	b.WriteString("\n\ntab: next field • enter: submit • esc: quit\n")
	return b.String()
}
