package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/mowerble/internal/mower"
	"github.com/muurk/mowerble/internal/ui"
)

// DefaultInterval is how often the status refreshes on its own
const DefaultInterval = 30 * time.Second

// Controller is the part of a connected mower the dashboard drives.
// *mower.Mower implements it.
type Controller interface {
	Report(ctx context.Context) (*mower.Report, error)
	Override(ctx context.Context, hours float64) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Park(ctx context.Context) error
}

// Messages for async operations
type (
	reportMsg struct {
		report *mower.Report
		err    error
	}
	actionMsg struct {
		action string
		err    error
	}
	tickMsg time.Time
)

// Model is a live status screen for one connected mower
type Model struct {
	ctx      context.Context
	mower    Controller
	title    string
	interval time.Duration

	// Mower state
	Report    *mower.Report
	Err       error
	Status    string // result of the last action
	Busy      string // action in flight, empty when idle
	UpdatedAt time.Time

	// Override hours entry
	Entering bool
	Hours    textinput.Model

	// UI state
	Width     int
	Spinner   spinner.Model
	Help      help.Model
	Keys      keyMap
	InputKeys inputKeyMap
}

// New creates a dashboard for a connected mower. ctx bounds every call;
// interval <= 0 disables automatic refresh.
func New(ctx context.Context, m Controller, title string, interval time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ui.PrimaryColor)

	hours := textinput.New()
	hours.Placeholder = "3"
	hours.CharLimit = 5
	hours.Width = 8

	return Model{
		ctx:       ctx,
		mower:     m,
		title:     title,
		interval:  interval,
		Busy:      "Loading",
		Hours:     hours,
		Width:     ui.GetTerminalWidth(),
		Spinner:   s,
		Help:      help.New(),
		Keys:      newKeyMap(),
		InputKeys: newInputKeyMap(),
	}
}

// Init starts the first refresh
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.Spinner.Tick, m.tick())
}

func (m Model) refresh() tea.Cmd {
	ctx, c := m.ctx, m.mower
	return func() tea.Msg {
		r, err := c.Report(ctx)
		return reportMsg{report: r, err: err}
	}
}

func (m Model) tick() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(ctx)}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Entering {
			return m.updateEntering(msg)
		}
		return m.updateNormal(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Help.Width = msg.Width

	case reportMsg:
		m.Busy = ""
		m.Err = msg.err
		if msg.report != nil {
			m.Report = msg.report
			m.UpdatedAt = time.Now()
		}

	case actionMsg:
		m.Err = msg.err
		if msg.err != nil {
			m.Busy = ""
			m.Status = msg.action + " failed"
			return m, nil
		}
		// Show the effect of the action
		m.Status = msg.action + " sent"
		m.Busy = "Refreshing"
		return m, m.refresh()

	case tickMsg:
		// Skipped while busy; commands on one connection are sequential
		if m.Busy != "" {
			return m, m.tick()
		}
		m.Busy = "Refreshing"
		return m, tea.Batch(m.refresh(), m.tick())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.Keys.Quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, m.Keys.Help) {
		m.Help.ShowAll = !m.Help.ShowAll
		return m, nil
	}
	if m.Busy != "" {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.Keys.Refresh):
		m.Busy = "Refreshing"
		return m, m.refresh()
	case key.Matches(msg, m.Keys.Override):
		m.Entering = true
		m.Hours.SetValue("")
		return m, m.Hours.Focus()
	case key.Matches(msg, m.Keys.Pause):
		m.Busy = "Pausing"
		return m, m.run("Pause", m.mower.Pause)
	case key.Matches(msg, m.Keys.Resume):
		m.Busy = "Resuming"
		return m, m.run("Resume", m.mower.Resume)
	case key.Matches(msg, m.Keys.Park):
		m.Busy = "Parking"
		return m, m.run("Park", m.mower.Park)
	}
	return m, nil
}

func (m Model) updateEntering(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	switch {
	case key.Matches(msg, m.InputKeys.Cancel):
		m.Entering = false
		m.Hours.Blur()
		return m, nil

	case key.Matches(msg, m.InputKeys.Confirm):
		text := strings.TrimSpace(m.Hours.Value())
		if text == "" {
			text = m.Hours.Placeholder
		}
		hours, err := strconv.ParseFloat(text, 64)
		if err != nil || hours <= 0 {
			m.Status = fmt.Sprintf("Invalid hours %q", text)
			return m, nil
		}
		m.Entering = false
		m.Hours.Blur()
		m.Busy = "Starting override"
		return m, m.run(fmt.Sprintf("Override for %gh", hours), func(ctx context.Context) error {
			return m.mower.Override(ctx, hours)
		})
	}

	var cmd tea.Cmd
	m.Hours, cmd = m.Hours.Update(msg)
	return m, cmd
}

// View renders the dashboard
func (m Model) View() string {
	width := m.Width
	if width > ui.MaxContentWidth {
		width = ui.MaxContentWidth
	}

	var b strings.Builder
	b.WriteString(ui.HeaderTitleStyle.Render(strings.ToUpper(m.title)))
	b.WriteString("\n\n")

	if m.Report != nil {
		b.WriteString(ui.RenderReport(m.Report, width))
		b.WriteString("\n")
		b.WriteString(ui.HeaderCommandStyle.Render("Updated " + m.UpdatedAt.Format("15:04:05")))
		b.WriteString("\n")
	}

	switch {
	case m.Busy != "":
		b.WriteString("  " + m.Spinner.View() + " " + m.Busy + "...")
	case m.Status != "":
		b.WriteString("  " + m.Status)
	}
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(ui.ErrorMessageStyle.Render("  Error: " + m.Err.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.Entering {
		b.WriteString("  Override hours: " + m.Hours.View() + "\n\n")
		b.WriteString(m.Help.View(m.InputKeys))
	} else {
		b.WriteString(m.Help.View(m.Keys))
	}
	return b.String()
}

// Run shows the dashboard until the user quits
func Run(ctx context.Context, m Controller, title string, interval time.Duration) error {
	_, err := tea.NewProgram(New(ctx, m, title, interval), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
