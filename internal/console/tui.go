package console

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

var tuiSpinnerFrames = []string{"|", "/", "-", "\\"}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

func runTUI(ctx context.Context, opts Options) error {
	model := newTUIModel(ctx, opts)
	prog := tea.NewProgram(
		model,
		tea.WithInput(opts.In),
		tea.WithOutput(opts.Out),
	)
	_, err := prog.Run()
	return err
}

type tickMsg time.Time

type commandDoneMsg struct {
	line    string
	outcome chat.Outcome
}

type pollDoneMsg struct {
	notices []chat.Notice
}

// tuiModel owns the session for the whole run: at any moment at most one
// command or one monitor poll is in flight, guarded by busy. Input typed
// during a long collaborator call stays in the textinput untouched.
type tuiModel struct {
	ctx  context.Context
	opts Options

	input textinput.Model
	lines []string

	width  int
	height int

	busy         bool
	spinnerFrame int
	lastPoll     time.Time
}

func newTUIModel(ctx context.Context, opts Options) tuiModel {
	inp := textinput.New()
	inp.Prompt = "> "
	inp.Placeholder = `try "help"`
	inp.Focus()

	m := tuiModel{
		ctx:      ctx,
		opts:     opts,
		input:    inp,
		lastPoll: time.Now(),
	}
	for _, line := range strings.Split(WelcomeText, "\n") {
		m.lines = append(m.lines, line)
	}
	m.lines = append(m.lines, "")
	return m
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tuiTickCmd())
}

func tuiTickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m tuiModel) pollInterval() time.Duration {
	if m.opts.Monitor != nil && m.opts.Monitor.Interval > 0 {
		return m.opts.Monitor.Interval
	}
	return chat.DefaultPollInterval
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			if m.busy {
				m.lines = append(m.lines, faintStyle.Render("(still working, try again in a moment)"))
				return m, nil
			}
			m.input.Reset()
			m.lines = append(m.lines, "> "+line)
			m.busy = true
			return m, m.runCommandCmd(line)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(tuiSpinnerFrames)
		if !m.busy && m.opts.Monitor != nil && time.Since(m.lastPoll) >= m.pollInterval() {
			m.busy = true
			m.lastPoll = time.Now()
			return m, tea.Batch(m.runPollCmd(), tuiTickCmd())
		}
		return m, tuiTickCmd()

	case commandDoneMsg:
		m.busy = false
		if msg.outcome.Degraded {
			m.lines = append(m.lines, faintStyle.Render("(relay unavailable, processed locally)"))
		}
		text := formatResult(msg.outcome.Result)
		for _, line := range strings.Split(text, "\n") {
			if !msg.outcome.Result.OK {
				line = failStyle.Render(line)
			}
			m.lines = append(m.lines, line)
		}
		if msg.outcome.Quit {
			return m, tea.Quit
		}
		return m, nil

	case pollDoneMsg:
		m.busy = false
		for _, n := range msg.notices {
			m.lines = append(m.lines, noticeStyle.Render(formatNotice(n)))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m tuiModel) runCommandCmd(line string) tea.Cmd {
	return func() tea.Msg {
		outcome := m.opts.Pipeline.HandleCommand(m.ctx, line)
		return commandDoneMsg{line: line, outcome: outcome}
	}
}

func (m tuiModel) runPollCmd() tea.Cmd {
	return func() tea.Msg {
		return pollDoneMsg{notices: m.opts.Monitor.Poll(m.ctx)}
	}
}

func (m tuiModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.headerLine()))
	b.WriteString("\n")

	visible := m.lines
	if m.height > 4 && len(visible) > m.height-4 {
		visible = visible[len(visible)-(m.height-4):]
	}
	for _, line := range visible {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(m.statusLine()))
	return b.String()
}

func (m tuiModel) headerLine() string {
	mode := "standalone"
	if m.opts.Session != nil && strings.TrimSpace(m.opts.Session.Mode) != "" {
		mode = m.opts.Session.Mode
	}
	return "Conversation Assistant — " + mode
}

func (m tuiModel) statusLine() string {
	parts := make([]string, 0, 3)
	if m.busy {
		parts = append(parts, tuiSpinnerFrames[m.spinnerFrame]+" working")
	}
	if m.opts.Session != nil && m.opts.Session.AutoReply {
		parts = append(parts, "auto-reply on")
	}
	parts = append(parts, "ctrl+c to quit")
	return strings.Join(parts, "  ·  ")
}
