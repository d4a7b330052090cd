package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/sift/pkg/sift/events"
	"github.com/jamesainslie/sift/pkg/sift/scanner"
	"github.com/jamesainslie/sift/pkg/sift/types"
)

// Controller is the part of a running scan the feed drives.
// *scanner.Scanner implements it.
type Controller interface {
	Pause()
	Resume()
	Stop()
	State() scanner.State
	Progress() types.ScanProgress
}

type keyMap struct {
	Pause key.Binding
	Stop  key.Binding
	Quit  key.Binding
}

var keys = keyMap{
	Pause: key.NewBinding(key.WithKeys("p", " "), key.WithHelp("p", "pause/resume")),
	Stop:  key.NewBinding(key.WithKeys("s", "ctrl+c"), key.WithHelp("s", "stop")),
	Quit:  key.NewBinding(key.WithKeys("q", "esc", "enter"), key.WithHelp("q", "quit")),
}

// eventMsg carries one scan event into the update loop.
type eventMsg events.Event

// closedMsg is sent when the subscription channel closes.
type closedMsg struct{}

// tickMsg refreshes the progress counters.
type tickMsg time.Time

const tickInterval = 200 * time.Millisecond

// Model is the live feed of one scan.
type Model struct {
	ctrl    Controller
	sub     <-chan events.Event
	target  string
	roots   []string
	spinner spinner.Model

	progress types.ScanProgress
	state    scanner.State
	matches  []types.Match
	err      error
	finished bool

	startTime time.Time
	width     int
	height    int
}

// NewModel creates a feed for ctrl that reads events from sub.
func NewModel(ctrl Controller, sub <-chan events.Event, req types.ScanRequest) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		ctrl:      ctrl,
		sub:       sub,
		target:    req.TargetHash,
		roots:     req.Roots,
		spinner:   s,
		state:     scanner.StateRunning,
		startTime: time.Now(),
		width:     80,
		height:    24,
	}
}

// Init starts the spinner, the event reader and the progress ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.sub), tick())
}

func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-sub
		if !ok {
			return closedMsg{}
		}
		return eventMsg(e)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles messages for the feed.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.handleEvent(events.Event(msg))
		if m.finished {
			return m, nil
		}
		return m, waitForEvent(m.sub)

	case closedMsg:
		m.finished = true
		return m, nil

	case tickMsg:
		if m.finished {
			return m, nil
		}
		m.progress = m.ctrl.Progress()
		m.state = m.ctrl.State()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Pause):
		if m.finished {
			return m, nil
		}
		if m.ctrl.State() == scanner.StatePaused {
			m.ctrl.Resume()
		} else {
			m.ctrl.Pause()
		}
		m.state = m.ctrl.State()

	case key.Matches(msg, keys.Stop):
		if m.finished {
			return m, tea.Quit
		}
		m.ctrl.Stop()

	case key.Matches(msg, keys.Quit):
		if m.finished {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) handleEvent(e events.Event) {
	m.progress = e.Progress
	switch e.Type {
	case events.EventMatch:
		m.matches = append(m.matches, e.Match)
	case events.EventError:
		m.err = e.Err
	case events.EventFinished:
		m.finished = true
		if st, err := scanner.ParseState(e.State); err == nil {
			m.state = st
		}
	}
}

// Matches returns the matches seen so far.
func (m Model) Matches() []types.Match { return m.matches }

// Finished reports whether the scan has reached a terminal state.
func (m Model) Finished() bool { return m.finished }

// View renders the feed.
func (m Model) View() string {
	contentWidth := max(m.width-4, 40)

	var b strings.Builder
	b.WriteString(m.renderHeader(contentWidth))
	b.WriteString("\n")
	b.WriteString(renderDivider(contentWidth))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.renderStats(contentWidth))
	b.WriteString("\n\n")
	b.WriteString(m.renderMatches(contentWidth))
	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return outerBoxStyle.Width(m.width - 2).Render(b.String())
}

func (m Model) renderHeader(width int) string {
	title := titleStyle.Render("sift")
	target := mutedTextStyle.Render(truncatePath(m.target, width-10))
	spacing := max(width-lipgloss.Width(title)-lipgloss.Width(target), 1)
	return title + strings.Repeat(" ", spacing) + target
}

func (m Model) renderStatus() string {
	switch {
	case m.err != nil:
		return errorTextStyle.Render(fmt.Sprintf("Error: %v", m.err))
	case m.finished:
		return successTextStyle.Render(fmt.Sprintf("Scan %s", strings.ToLower(m.state.String())))
	case m.state == scanner.StatePaused:
		return warningTextStyle.Render("Paused")
	default:
		return fmt.Sprintf("%s Hashing %s", m.spinner.View(), strings.Join(m.roots, ", "))
	}
}

func (m Model) renderStats(totalWidth int) string {
	boxWidth := max((totalWidth-10)/5, 10)
	elapsed := formatDuration(time.Since(m.startTime))

	return lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Queued", humanize.Comma(m.progress.Submitted), boxWidth), " ",
		renderStatBox("Hashed", humanize.Comma(m.progress.Digested), boxWidth), " ",
		renderStatBox("Bytes", humanize.IBytes(uint64(m.progress.BytesHashed)), boxWidth), " ",
		renderStatBox("Matches", humanize.Comma(m.progress.Matches), boxWidth), " ",
		renderStatBox("Time", elapsed, boxWidth),
	)
}

func renderStatBox(label, value string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		statsLabelStyle.Render(label),
		statsValueStyle.Render(value))
	return statsBoxStyle.Width(width).Render(content)
}

// renderMatches shows the most recent matches that fit the window.
func (m Model) renderMatches(width int) string {
	if len(m.matches) == 0 {
		return mutedTextStyle.Render("No matches yet")
	}

	rows := max(m.height-16, 3)
	start := max(len(m.matches)-rows, 0)

	var b strings.Builder
	if start > 0 {
		b.WriteString(mutedTextStyle.Render(fmt.Sprintf("... %d earlier", start)))
		b.WriteString("\n")
	}
	for _, match := range m.matches[start:] {
		b.WriteString(matchPathStyle.Render(truncatePath(match.Path, width)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderHelp() string {
	bindings := []key.Binding{keys.Pause, keys.Stop}
	if m.finished {
		bindings = []key.Binding{keys.Quit}
	}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, keyStyle.Render(h.Key)+" "+keyDescStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

// formatDuration formats a duration as M:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", d/time.Minute, (d%time.Minute)/time.Second)
}

// Run shows the feed until the user quits after the scan finishes. The
// returned model carries the matches seen.
func Run(ctrl Controller, sub <-chan events.Event, req types.ScanRequest) (Model, error) {
	p := tea.NewProgram(NewModel(ctrl, sub, req), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return Model{}, err
	}
	return final.(Model), nil
}
