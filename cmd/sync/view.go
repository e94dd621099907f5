package main

import (
	"strings"

	"lazychat/internal/saas"
	"lazychat/internal/syncer"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 40

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeNoSync
	outcomeUnknown
	outcomeFailed
)

type (
	initiatingMsg struct{}
	progressMsg   struct{ progress saas.Progress }
	outcomeMsg    struct {
		outcome outcome
		text    string
	}
	lastSyncMsg string
	cooldownMsg string
	controlMsg  syncer.Control
)

type styles struct {
	title    lipgloss.Style
	syncing  lipgloss.Style
	idle     lipgloss.Style
	err      lipgloss.Style
	message  lipgloss.Style
	cooldown lipgloss.Style
	help     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("170")),
		syncing:  r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		idle:     r.NewStyle().Foreground(lipgloss.Color("10")),
		err:      r.NewStyle().Foreground(lipgloss.Color("9")),
		message:  r.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		cooldown: r.NewStyle().Foreground(lipgloss.Color("39")),
		help:     r.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// syncModel renders one sync run. It quits once the run has an outcome the
// user can act on: a failure, nothing to do, or a running cooldown. In status
// mode an enabled sync control also ends the run.
type syncModel struct {
	styles     styles
	statusOnly bool
	bar        progress.Model
	percent    float64
	showBar    bool
	status     string
	lastSync   string
	cooldown   string
	quitting   bool
}

func newSyncModel(r *lipgloss.Renderer, statusOnly bool) syncModel {
	return syncModel{
		styles:     newStyles(r),
		statusOnly: statusOnly,
		bar: progress.New(
			progress.WithWidth(barWidth),
			progress.WithSolidFill("39"),
			progress.WithoutPercentage(),
			progress.WithColorProfile(r.ColorProfile()),
		),
	}
}

func (m syncModel) Init() tea.Cmd {
	return nil
}

func (m syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m.quit()
		}
	case tea.WindowSizeMsg:
		m.bar.Width = min(barWidth, max(10, msg.Width-4))
	case initiatingMsg:
		m.showBar = true
		m.percent = 0
		m.status = m.styles.syncing.Render("Starting product sync...")
	case progressMsg:
		m.showBar = true
		m.percent = min(1, max(0, msg.progress.Percent/100))
		m.status = m.styles.syncing.Render("Syncing: " + syncer.Describe(msg.progress))
	case outcomeMsg:
		return m.applyOutcome(msg)
	case lastSyncMsg:
		m.lastSync = string(msg)
	case cooldownMsg:
		m.cooldown = string(msg)
		return m.quit()
	case controlMsg:
		if m.statusOnly && syncer.Control(msg) == syncer.ControlEnabled {
			return m.quit()
		}
	}
	return m, nil
}

func (m syncModel) applyOutcome(msg outcomeMsg) (tea.Model, tea.Cmd) {
	switch msg.outcome {
	case outcomeCompleted:
		m.percent = 1
		m.status = m.styles.idle.Render(msg.text)
		// the cooldown that follows a completion ends the run
		return m, nil
	case outcomeFailed:
		m.showBar = false
		m.status = m.styles.err.Render("Error: " + msg.text)
	default:
		m.showBar = false
		m.status = m.styles.message.Render(msg.text)
	}
	return m.quit()
}

func (m syncModel) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	return m, tea.Quit
}

func (m syncModel) View() string {
	var s strings.Builder

	s.WriteString(m.styles.title.Render("LazyChat product sync"))
	s.WriteString("\n\n")

	if m.showBar {
		s.WriteString(m.bar.ViewAs(m.percent))
		s.WriteString("\n")
	}
	if m.status != "" {
		s.WriteString(m.status)
		s.WriteString("\n")
	}
	if m.lastSync != "" {
		s.WriteString(m.styles.message.Render("Last sync: " + m.lastSync))
		s.WriteString("\n")
	}
	if m.cooldown != "" {
		s.WriteString(m.styles.cooldown.Render("Next sync available in " + m.cooldown))
		s.WriteString("\n")
	}
	if !m.quitting {
		s.WriteString("\n")
		s.WriteString(m.styles.help.Render("Press q to quit"))
	}
	return s.String()
}

type sender interface {
	Send(msg tea.Msg)
}

// programView forwards orchestrator output to the running program. Send
// returns once the program has exited, so a late callback never blocks.
type programView struct {
	program sender
}

func (v programView) ShowInitiating() {
	v.program.Send(initiatingMsg{})
}

func (v programView) ShowProgress(p saas.Progress) {
	v.program.Send(progressMsg{progress: p})
}

func (v programView) ShowCompleted(p saas.Progress) {
	v.program.Send(outcomeMsg{outcome: outcomeCompleted, text: messageOr(p.Message, "Sync completed.")})
}

func (v programView) ShowNoSync(p saas.Progress) {
	v.program.Send(outcomeMsg{outcome: outcomeNoSync, text: messageOr(p.Message, "No sync is running.")})
}

func (v programView) ShowUnknown(p saas.Progress) {
	v.program.Send(outcomeMsg{outcome: outcomeUnknown, text: "Unknown sync status " + p.SyncStatus + "."})
}

func (v programView) ShowError(message string) {
	v.program.Send(outcomeMsg{outcome: outcomeFailed, text: message})
}

func (v programView) ShowLastSync(lastSyncAt string) {
	v.program.Send(lastSyncMsg(lastSyncAt))
}

func (v programView) ShowCooldown(remaining string) {
	v.program.Send(cooldownMsg(remaining))
}

func (v programView) SetControl(c syncer.Control) {
	v.program.Send(controlMsg(c))
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
