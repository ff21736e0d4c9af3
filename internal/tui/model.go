// Package tui renders the fleet dashboard: one card per host, updated
// from the polling engine's snapshot stream. The model never talks to a
// host itself; it only consumes published snapshots and idle alerts.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gpuwatch/gpuwatch/internal/config"
	"github.com/gpuwatch/gpuwatch/internal/poll"
)

// SnapshotSource is the engine surface the dashboard consumes.
// *poll.Poller implements it.
type SnapshotSource interface {
	Subscribe() <-chan poll.Snapshot
	Unsubscribe(ch <-chan poll.Snapshot)
	Alerts() <-chan poll.IdleAlert
	Hosts() []config.Host
}

// alertDisplayWindow is how long an idle alert stays on the status line.
// Alerts repeat while the condition holds, so the line refreshes itself.
const alertDisplayWindow = 30 * time.Second

// spinnerFrames matches the half-circle spinner used by the CLI output.
var spinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10,
}

type snapshotMsg poll.Snapshot

type alertMsg poll.IdleAlert

// streamClosedMsg signals that the engine shut down underneath us.
type streamClosedMsg struct{}

// Model is the Bubble Tea model for the fleet dashboard.
type Model struct {
	source SnapshotSource
	snaps  <-chan poll.Snapshot
	alerts <-chan poll.IdleAlert

	snapshot *poll.Snapshot
	alert    *poll.IdleAlert
	alertAt  time.Time

	spin     spinner.Model
	now      func() time.Time
	width    int
	height   int
	quitting bool
}

// NewModel builds a dashboard wired to the given engine.
func NewModel(source SnapshotSource) Model {
	sp := spinner.New()
	sp.Spinner = spinnerFrames
	sp.Style = SpinnerStyle

	return Model{
		source: source,
		snaps:  source.Subscribe(),
		alerts: source.Alerts(),
		spin:   sp,
		now:    time.Now,
	}
}

// Init starts the spinner and both stream listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		m.waitSnapshot(),
		m.waitAlert(),
	)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			m.source.Unsubscribe(m.snaps)
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		// Only animate while waiting on the first snapshot.
		if m.snapshot == nil {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}

	case snapshotMsg:
		s := poll.Snapshot(msg)
		m.snapshot = &s
		return m, m.waitSnapshot()

	case alertMsg:
		a := poll.IdleAlert(msg)
		m.alert = &a
		m.alertAt = m.now()
		return m, m.waitAlert()

	case streamClosedMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// waitSnapshot blocks on the snapshot stream and converts the next
// snapshot into a message.
func (m Model) waitSnapshot() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.snaps
		if !ok {
			return streamClosedMsg{}
		}
		return snapshotMsg(s)
	}
}

// waitAlert blocks on the idle alert stream.
func (m Model) waitAlert() tea.Cmd {
	return func() tea.Msg {
		a, ok := <-m.alerts
		if !ok {
			return streamClosedMsg{}
		}
		return alertMsg(a)
	}
}

// activeAlert returns the alert to display, or nil once it has aged out.
// The engine re-raises alerts on every idle check, so a live condition
// keeps the line fresh.
func (m Model) activeAlert() *poll.IdleAlert {
	if m.alert == nil || m.now().Sub(m.alertAt) > alertDisplayWindow {
		return nil
	}
	return m.alert
}

// Run starts the dashboard program and blocks until the user quits.
func Run(source SnapshotSource) error {
	p := tea.NewProgram(NewModel(source), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
