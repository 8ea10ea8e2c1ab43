package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
	snippetWidth    = 32
)

// Model is the bubbletea inbox dashboard.
type Model struct {
	client     *Client
	interval   time.Duration
	lastUpdate time.Time
	snapshot   Snapshot
	err        error
	quitting   bool
	now        func() time.Time

	unreadHistory  []float64
	latencyHistory []float64

	readProgress progress.Model
}

// Lipgloss styles
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling client every interval.
func NewModel(client *Client, interval time.Duration) Model {
	return Model{
		client:         client,
		interval:       interval,
		now:            time.Now,
		unreadHistory:  make([]float64, 0, historySize),
		latencyHistory: make([]float64, 0, historySize),
		readProgress: progress.New(
			progress.WithGradient("#ff0000", "#00ff00"),
			progress.WithWidth(40),
		),
	}
}

// replicationBadge summarizes the backend state.
func replicationBadge(s Snapshot) string {
	switch {
	case s.Mode == "replicated" && s.Connected:
		return healthyStyle.Render("[✓] replicated")
	case s.ReplicationError != "":
		return errorStyle.Render("[✗] local (replication failed)")
	default:
		return warningStyle.Render("[-] local")
	}
}

func unreadBadge(unread int) string {
	switch {
	case unread == 0:
		return healthyStyle.Render("[✓]")
	case unread < 10:
		return warningStyle.Render("[!]")
	}
	return errorStyle.Render("[!!]")
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

type tickMsg time.Time
type snapshotMsg Snapshot
type errMsg error

// Init starts the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetch(m.client),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetch(client *Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		snap, err := client.Fetch(ctx)
		if err != nil {
			return errMsg(err)
		}
		return snapshotMsg(snap)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetch(m.client)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetch(m.client),
		)

	case snapshotMsg:
		m.snapshot = Snapshot(msg)
		m.unreadHistory = appendToHistory(m.unreadHistory, float64(m.snapshot.UnreadTotal))
		m.latencyHistory = appendToHistory(m.latencyHistory, float64(m.snapshot.Latency)/float64(time.Millisecond))
		m.lastUpdate = m.now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render(" folio Inbox ")

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(errorStyle.Render("⚠ Cannot reach the folio server") + "\n\n")
	b.WriteString(dimStyle.Render("URL: ") + valueStyle.Render(m.client.BaseURL()) + "\n")
	b.WriteString(dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n\n")
	b.WriteString(dimStyle.Render("Check that the server is running and --password is the owner password.") + "\n")
	b.WriteString(footerStyle.Render("[q] quit  [r] retry") + "\n")

	return containerStyle.Render(header + "\n" + b.String())
}

func (m Model) renderDashboard() string {
	s := m.snapshot
	var b strings.Builder

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}
	status := s.Status
	if status == "" {
		status = "waiting"
	}
	b.WriteString(headerStyle.Render(" folio Inbox ") + "\n")
	b.WriteString(fmt.Sprintf("%s   %s   %s\n",
		valueStyle.Render(status),
		replicationBadge(s),
		dimStyle.Render(lastUpdateStr)))

	b.WriteString("\n" + sectionStyle.Render("┃ Inbox") + "\n")
	b.WriteString(labelStyle.Render("  Threads: ") + valueStyle.Render(fmt.Sprintf("%d", s.Conversations)) +
		labelStyle.Render("  Spam: ") + valueStyle.Render(fmt.Sprintf("%d", s.SpamMessages)) + "\n")
	b.WriteString(labelStyle.Render("  Unread: ") +
		valueStyle.Render(fmt.Sprintf("%d in %d thread(s)", s.UnreadTotal, s.UnreadThreads)) +
		" " + unreadBadge(s.UnreadTotal) +
		"   " + createSparkline(m.unreadHistory) + "\n")

	readRatio := 1.0
	if s.Conversations > 0 {
		readRatio = float64(s.Conversations-s.UnreadThreads) / float64(s.Conversations)
	}
	b.WriteString(labelStyle.Render("  Read: ") +
		m.readProgress.ViewAs(readRatio) +
		" " + dimStyle.Render(FormatPercentage(readRatio)) + "\n")

	b.WriteString("\n" + sectionStyle.Render("┃ Server") + "\n")
	b.WriteString(labelStyle.Render("  Latency: ") + valueStyle.Render(FormatLatency(s.Latency)) +
		"        " + createSparkline(m.latencyHistory) + "\n")
	if s.Version != "" {
		b.WriteString(labelStyle.Render("  Version: ") + valueStyle.Render(s.Version) + "\n")
	}
	if s.Assistant != "" {
		b.WriteString(labelStyle.Render("  Assistant: ") + valueStyle.Render(s.Assistant) + "\n")
	}
	if s.ReplicationError != "" {
		b.WriteString(labelStyle.Render("  Replication: ") + errorStyle.Render(s.ReplicationError) + "\n")
	}

	b.WriteString("\n" + sectionStyle.Render("┃ Recent") + "\n")
	if len(s.Recent) == 0 {
		b.WriteString(dimStyle.Render("  No conversations yet.") + "\n")
	}
	now := m.now()
	for _, c := range s.Recent {
		marker := dimStyle.Render("  ")
		if c.UnreadCount > 0 {
			marker = warningStyle.Render("● ")
		}
		b.WriteString("  " + marker +
			valueStyle.Render(Truncate(c.VisitorName, 24)) + "  " +
			dimStyle.Render(Truncate(c.LastMessageSnippet, snippetWidth)) + "  " +
			labelStyle.Render(FormatAge(c.UpdatedAt, now)) + "\n")
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
	b.WriteString("\n" + footer)

	return containerStyle.Render(b.String())
}
