package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/greengate/internal/audit"
	"github.com/ShayCichocki/greengate/pkg/models"
)

const (
	headerHeight = 4
	footerHeight = 1
	// outputPreview is the number of stdout/stderr characters shown per check.
	outputPreview = 240
)

var columns = []table.Column{
	{Title: "Iter", Width: 5},
	{Title: "Checks", Width: 8},
	{Title: "Score", Width: 7},
	{Title: "Delta", Width: 8},
	{Title: "Flipped", Width: 18},
	{Title: "Strict fail", Width: 18},
	{Title: "Note", Width: 20},
}

// Headers returns the column titles matching IterationView.Row.
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.Title
	}
	return out
}

// InspectModel is the bubbletea model of the run inspector.
type InspectModel struct {
	run        *audit.Run
	iterations []IterationView

	table  table.Model
	detail viewport.Model

	detailFocused bool
	width         int
	height        int

	titleStyle   lipgloss.Style
	labelStyle   lipgloss.Style
	passStyle    lipgloss.Style
	failStyle    lipgloss.Style
	blockedStyle lipgloss.Style
	mutedStyle   lipgloss.Style
	borderStyle  lipgloss.Style
}

// NewInspectModel creates the inspector for a finished run.
func NewInspectModel(run *audit.Run) *InspectModel {
	iterations := BuildIterations(run)
	rows := make([]table.Row, len(iterations))
	for i, v := range iterations {
		rows[i] = v.Row()
	}

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(8),
		table.WithStyles(styles),
	)

	m := &InspectModel{
		run:        run,
		iterations: iterations,
		table:      t,
		detail:     viewport.New(80, 12),
		width:      80,
		height:     24,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		passStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")), // Green
		failStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")), // Red
		blockedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")), // Orange
		mutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		borderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")),
	}
	m.refreshDetail()
	return m
}

// Init implements tea.Model.
func (m *InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.detailFocused = !m.detailFocused
			if m.detailFocused {
				m.table.Blur()
			} else {
				m.table.Focus()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	if m.detailFocused {
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	before := m.table.Cursor()
	m.table, cmd = m.table.Update(msg)
	if m.table.Cursor() != before {
		m.refreshDetail()
	}
	return m, cmd
}

func (m *InspectModel) resize(width, height int) {
	m.width, m.height = width, height

	available := height - headerHeight - footerHeight - 4
	tableHeight := max(3, available/3)
	m.table.SetHeight(tableHeight)
	m.table.SetWidth(width - 2)

	m.detail.Width = width - 4
	m.detail.Height = max(3, available-tableHeight)
	m.refreshDetail()
}

// Selected returns the highlighted iteration, or nil for an empty run.
func (m *InspectModel) Selected() *IterationView {
	if len(m.iterations) == 0 {
		return nil
	}
	i := m.table.Cursor()
	if i < 0 || i >= len(m.iterations) {
		return nil
	}
	return &m.iterations[i]
}

func (m *InspectModel) refreshDetail() {
	v := m.Selected()
	if v == nil {
		m.detail.SetContent(m.mutedStyle.Render("no iterations recorded"))
		return
	}
	m.detail.SetContent(m.renderDetail(*v))
	m.detail.GotoTop()
}

func (m *InspectModel) renderDetail(v IterationView) string {
	var b strings.Builder

	b.WriteString(m.titleStyle.Render(fmt.Sprintf("Iteration %d", v.Iteration)))
	b.WriteString("\n")
	if v.Progress != nil {
		fmt.Fprintf(&b, "%s %.6f  %s %+.6f  %s %d\n",
			m.labelStyle.Render("score"), v.Progress.ProgressScore,
			m.labelStyle.Render("delta"), v.Progress.ProgressDelta,
			m.labelStyle.Render("no-progress streak"), v.Progress.ConsecutiveNoProgress)
	}

	b.WriteString("\n")
	m.renderChecks(&b, "Checks", v.Checks)

	if v.StrategySwitch != nil {
		fmt.Fprintf(&b, "\n%s %s (%s)\n",
			m.blockedStyle.Render("strategy switch:"), v.StrategySwitch.StrategySwitchTag, v.StrategySwitch.Policy)
	}
	if len(v.DiagnosticChecks) > 0 {
		b.WriteString("\n")
		m.renderChecks(&b, "Diagnostic re-run", v.DiagnosticChecks)
	}
	if v.DiagnosticResult != nil {
		fmt.Fprintf(&b, "%s progress %.6f, delta %+.6f, passed %d\n",
			m.labelStyle.Render("diagnostic:"),
			v.DiagnosticResult.DiagnosticProgress,
			v.DiagnosticResult.DiagnosticDelta,
			v.DiagnosticResult.DiagnosticPassedChecks)
	}

	if v.Timeline != nil {
		b.WriteString("\n")
		b.WriteString(m.titleStyle.Render("Checklist"))
		b.WriteString("\n")
		for _, item := range v.Timeline.ChecklistState {
			b.WriteString(m.renderItem(item))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m *InspectModel) renderChecks(b *strings.Builder, title string, checks []models.CheckResult) {
	b.WriteString(m.titleStyle.Render(title))
	b.WriteString("\n")
	for _, c := range checks {
		mark := m.passStyle.Render("PASS")
		if !c.Passed {
			mark = m.failStyle.Render("FAIL")
		}
		fmt.Fprintf(b, "  %s %s %s\n", mark, c.Name, m.mutedStyle.Render(fmt.Sprintf("(exit %d, %s)", c.ExitCode, c.Duration)))
		if c.Error != "" {
			fmt.Fprintf(b, "       %s\n", m.failStyle.Render(c.Error))
		}
		if !c.Passed {
			if out := preview(c.Stdout + c.Stderr); out != "" {
				for _, line := range strings.Split(out, "\n") {
					fmt.Fprintf(b, "       %s\n", m.mutedStyle.Render(line))
				}
			}
		}
	}
}

func (m *InspectModel) renderItem(item models.ChecklistItem) string {
	var status string
	switch item.Status {
	case models.ItemSatisfied:
		status = m.passStyle.Render("satisfied  ")
	case models.ItemBlocked:
		status = m.blockedStyle.Render("blocked    ")
	default:
		status = m.failStyle.Render("unsatisfied")
	}
	line := fmt.Sprintf("  %s %s", status, item.ItemID)
	if item.IsStrict() {
		line += m.labelStyle.Render(" [strict]")
	}
	if item.SatisfiedAtStep != nil {
		line += m.mutedStyle.Render(fmt.Sprintf(" @%d", *item.SatisfiedAtStep))
	}
	if len(item.DependsOn) > 0 {
		line += m.mutedStyle.Render(" <- " + strings.Join(item.DependsOn, ","))
	}
	return line
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) > outputPreview {
		return string(r[:outputPreview]) + "..."
	}
	return s
}

// View implements tea.Model.
func (m *InspectModel) View() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")
	b.WriteString(m.borderStyle.Render(m.detail.View()))
	b.WriteString("\n")

	focus := "table"
	if m.detailFocused {
		focus = "detail"
	}
	b.WriteString(m.mutedStyle.Render(fmt.Sprintf("↑/↓ select  tab focus (%s)  q quit", focus)))
	return b.String()
}

func (m *InspectModel) renderHeader() string {
	var b strings.Builder
	b.WriteString(m.titleStyle.Render("greengate inspect"))
	b.WriteString(m.mutedStyle.Render("  " + m.run.Dir))
	b.WriteString("\n")

	s := m.run.Summary
	if s == nil {
		b.WriteString(m.blockedStyle.Render("no summary.json: run did not finish"))
		b.WriteString("\n\n")
		return b.String()
	}

	verdict := m.passStyle.Render("PASSED")
	if !s.AllPassed {
		verdict = m.failStyle.Render("FAILED")
	}
	fmt.Fprintf(&b, "%s %s  %s %s  %s %d/%d  %s %s\n",
		m.labelStyle.Render("run"), s.RunID,
		verdict, s.TerminalState,
		m.labelStyle.Render("iterations"), s.Iterations, s.MaxIterations,
		m.labelStyle.Render("trend"), s.ProgressTrend)

	codes := "none"
	if len(s.ReasonCodes) > 0 {
		codes = strings.Join(s.ReasonCodes, " ")
	}
	fmt.Fprintf(&b, "%s %s\n", m.labelStyle.Render("reasons"), codes)
	return b.String()
}

// Inspect runs the inspector until the user quits.
func Inspect(run *audit.Run) error {
	p := tea.NewProgram(NewInspectModel(run), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
