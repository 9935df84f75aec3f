package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/dekkonot/open-cloud-execute/internal/models"
	"github.com/dekkonot/open-cloud-execute/internal/services"
)

const maxLogLines = 10

type Model struct {
	stage       services.RunStage
	path        string
	state       models.TaskState
	attempts    int
	elapsed     time.Duration
	nextDelay   time.Duration
	pollTimeout time.Duration
	logs        []string
	spinner     spinner.Model
	progress    progress.Model
	width       int
	height      int
	quit        bool
	finished    bool
	err         error
}

// RunUpdate carries a progress event of the run into the model.
type RunUpdate struct {
	Event services.RunEvent
}

type LogMessage struct {
	Message string
}

// Finished is sent once the run has returned.
type Finished struct {
	Result *services.RunResult
	Err    error
}

func NewModel(pollTimeout time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	pr := progress.New(progress.WithDefaultGradient())

	return Model{
		stage:       services.StageSubmitting,
		pollTimeout: pollTimeout,
		logs:        []string{},
		spinner:     sp,
		progress:    pr,
		width:       80,
		height:      24,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.handleKeyMsg(msg) {
			m.quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m = m.handleWindowSizeMsg(msg)

	case RunUpdate:
		m = m.handleRunUpdate(msg)

	case LogMessage:
		m = m.handleLogMessage(msg)

	case Finished:
		m = m.handleFinished(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		if progressModel, ok := progressModel.(progress.Model); ok {
			m.progress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "ctrl+c":
		return true
	}
	return false
}

func (m Model) handleWindowSizeMsg(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.progress.Width = max(msg.Width-40, 10)
	return m
}

func (m Model) handleRunUpdate(msg RunUpdate) Model {
	e := msg.Event
	if e.Stage != m.stage {
		m = m.handleLogMessage(LogMessage{Message: fmt.Sprintf("Stage: %s", e.Stage)})
	}
	m.stage = e.Stage
	if e.Task != nil {
		m.path = e.Task.Path
		if m.state == "" {
			m.state = e.Task.State
		}
	}
	if e.Poll != nil {
		if e.Poll.State != m.state {
			m = m.handleLogMessage(LogMessage{Message: fmt.Sprintf("Task is %s", e.Poll.State)})
		}
		m.state = e.Poll.State
		m.attempts = e.Poll.Number
		m.elapsed = e.Poll.Elapsed
		m.nextDelay = e.Poll.NextDelay
	}
	return m
}

func (m Model) handleLogMessage(msg LogMessage) Model {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s",
		time.Now().Format("15:04:05"), msg.Message))
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
	return m
}

func (m Model) handleFinished(msg Finished) Model {
	m.finished = true
	m.err = msg.Err
	if msg.Result != nil && msg.Result.Final != nil {
		m.state = msg.Result.Final.State
	}
	if msg.Err != nil {
		return m.handleLogMessage(LogMessage{Message: fmt.Sprintf("Error: %v", msg.Err)})
	}
	return m.handleLogMessage(LogMessage{Message: fmt.Sprintf("Finished as %s", m.state)})
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render("Open Cloud Luau Execution"))
	s.WriteString("\n\n")

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	summary := fmt.Sprintf("Queries: %d | Elapsed: %v | Timeout: %v",
		m.attempts, m.elapsed.Round(time.Millisecond), m.pollTimeout)
	s.WriteString(summaryStyle.Render(summary))
	s.WriteString("\n\n")

	taskSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1).
		Width(m.width - 2)

	var task strings.Builder
	task.WriteString("Task\n")
	task.WriteString(strings.Repeat("─", 60) + "\n")

	path := m.path
	if path == "" {
		path = "(not created yet)"
	}
	task.WriteString(fmt.Sprintf("Path:  %s\n", truncate(path, 90)))

	stateStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(getStateColor(m.state)))
	line := fmt.Sprintf("%s %-10s", getStageIcon(m.stage, m.finished), m.stage)
	if !m.finished {
		line += " " + m.spinner.View()
	}
	if m.state != "" {
		line += " " + stateStyle.Render(string(m.state))
	}
	task.WriteString(line + "\n")

	if m.stage == services.StageAwaiting && !m.finished {
		task.WriteString(m.progress.ViewAs(m.deadlineFraction()))
		if m.nextDelay > 0 {
			task.WriteString(fmt.Sprintf(" next query in %v", m.nextDelay.Round(time.Millisecond)))
		}
		task.WriteString("\n")
	}

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		task.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	}

	s.WriteString(taskSectionStyle.Render(task.String()))
	s.WriteString("\n\n")

	logSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2).
		Height(maxLogLines + 1)

	var logSection strings.Builder
	logSection.WriteString("Recent Events\n")
	for _, log := range m.logs {
		logSection.WriteString(log + "\n")
	}

	s.WriteString(logSectionStyle.Render(logSection.String()))
	s.WriteString("\n\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	s.WriteString(footerStyle.Render("Press 'q' to quit | Logs: logs/open-cloud-execute_*.log"))

	return s.String()
}

// deadlineFraction is how much of the poll deadline has been used.
func (m Model) deadlineFraction() float64 {
	if m.pollTimeout <= 0 {
		return 0
	}
	return min(float64(m.elapsed)/float64(m.pollTimeout), 1)
}

func getStageIcon(stage services.RunStage, finished bool) string {
	if finished {
		return "■"
	}
	switch stage {
	case services.StageSubmitting:
		return "↑"
	case services.StageAwaiting:
		return "…"
	case services.StageLogs:
		return "≡"
	case services.StageDone:
		return "✓"
	default:
		return "?"
	}
}

func getStateColor(state models.TaskState) string {
	switch state {
	case models.TaskStateComplete:
		return "82"
	case models.TaskStateFailed:
		return "196"
	case models.TaskStateCancelled:
		return "214"
	default:
		return "39"
	}
}

// truncate shortens s to max display cells without splitting a character.
func truncate(s string, max int) string {
	return ansi.Truncate(s, max, "...")
}
