// Package ui is a terminal browser over a database: it pages through each
// table in file order or along any of its indexes.
package ui

import (
	"fmt"
	"strings"
	"time"

	"cursordb/pkg/config"
	"cursordb/pkg/database"
	"cursordb/pkg/ui/base"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultPageSize is the number of rows read per page.
const DefaultPageSize = 20

// Options tune the browser.
type Options struct {
	PageSize int
	Light    bool
}

// Model represents the application state
type Model struct {
	database *database.Database
	conn     *database.Connection
	opts     Options

	tables  []string
	current int
	orders  []string
	order   int
	desc    bool
	pageNum int
	page    Page

	resultTable table.Model
	spinner     spinner.Model
	help        help.Model
	styles      styles
	highlighter *SchemaHighlighter
	keys        keyMap

	width     int
	height    int
	loading   bool
	showStats bool
	lastError error
	lastLoad  time.Duration
}

// NewModel opens a read-committed connection on db for browsing.
func NewModel(db *database.Database, opts Options) Model {
	if opts.PageSize < 1 {
		opts.PageSize = DefaultPageSize
	}
	conn := db.Connect()
	// Read committed takes no read locks, so pages never block writers.
	_ = conn.SetIsolation(config.ReadCommitted)

	st := newStyles(base.Palette(opts.Light))

	t := table.New(
		table.WithColumns([]table.Column{{Title: "Rows", Width: 80}}),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(opts.PageSize),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(st.palette.Primary).
		BorderBottom(true).
		Bold(true).
		Foreground(st.palette.Primary)
	s.Selected = s.Selected.
		Foreground(st.palette.Background).
		Background(st.palette.Secondary).
		Bold(false)
	t.SetStyles(s)

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(st.palette.Primary)

	m := Model{
		database:    db,
		conn:        conn,
		opts:        opts,
		resultTable: t,
		spinner:     sp,
		help:        help.New(),
		styles:      st,
		highlighter: NewSchemaHighlighter(st.palette),
		keys:        keys,
	}
	m.refreshTables()
	m.loading = len(m.tables) > 0
	return m
}

// Close releases the browser's connection.
func (m Model) Close() error {
	return m.conn.Close()
}

func (m Model) Init() tea.Cmd {
	if !m.loading {
		return nil
	}
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.loading {
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.NextTable):
			return m.selectTable(m.current + 1)
		case key.Matches(msg, m.keys.PrevTable):
			return m.selectTable(m.current - 1)
		case key.Matches(msg, m.keys.NextOrder):
			if len(m.orders) > 1 {
				m.order = (m.order + 1) % len(m.orders)
				m.pageNum = 0
				return m.startLoad()
			}
			return m, nil
		case key.Matches(msg, m.keys.Reverse):
			m.desc = !m.desc
			m.pageNum = 0
			return m.startLoad()
		case key.Matches(msg, m.keys.NextPage):
			if m.page.More {
				m.pageNum++
				return m.startLoad()
			}
			return m, nil
		case key.Matches(msg, m.keys.PrevPage):
			if m.pageNum > 0 {
				m.pageNum--
				return m.startLoad()
			}
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			m.refreshTables()
			return m.startLoad()
		case key.Matches(msg, m.keys.ShowStats):
			m.showStats = !m.showStats
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}

	case pageMsg:
		m.loading = false
		m.lastLoad = msg.duration
		m.lastError = msg.err
		if msg.err == nil {
			m.page = msg.page
			m.updateResultDisplay()
		}
		return m, nil

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.resultTable, cmd = m.resultTable.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	sections := []string{m.renderHeader(), m.renderTabs()}

	switch {
	case len(m.tables) == 0:
		sections = append(sections, m.styles.muted.Render("The database has no tables yet."))
	case m.loading:
		sections = append(sections, m.renderLoading())
	case m.lastError != nil:
		sections = append(sections, m.renderSchema(), m.renderError())
	default:
		sections = append(sections, m.renderSchema(), m.renderPage())
	}

	if m.showStats {
		sections = append(sections, m.renderStats())
	}
	sections = append(sections, m.renderStatusBar(), m.help.View(m.keys))

	return m.styles.app.Render(strings.Join(sections, "\n"))
}

func (m *Model) refreshTables() {
	m.tables = m.database.GetTables()
	if len(m.tables) == 0 {
		m.current, m.orders, m.order = 0, nil, 0
		return
	}
	m.current = base.Clamp(m.current, 0, len(m.tables)-1)
	m.orders = orders(m.database, m.tables[m.current])
	m.order = base.Clamp(m.order, 0, len(m.orders)-1)
}

func (m Model) selectTable(i int) (tea.Model, tea.Cmd) {
	if len(m.tables) == 0 {
		return m, nil
	}
	m.current = (i + len(m.tables)) % len(m.tables)
	m.orders = orders(m.database, m.tables[m.current])
	m.order, m.desc, m.pageNum = 0, false, 0
	return m.startLoad()
}

func (m Model) currentOrder() Order {
	o := Order{Descending: m.desc}
	if m.order < len(m.orders) {
		o.Index = m.orders[m.order]
	}
	return o
}

func (m Model) startLoad() (tea.Model, tea.Cmd) {
	if len(m.tables) == 0 {
		return m, nil
	}
	m.loading = true
	return m, tea.Batch(m.spinner.Tick, m.load())
}

type pageMsg struct {
	page     Page
	err      error
	duration time.Duration
}

func (m Model) load() tea.Cmd {
	conn, name, order := m.conn, m.tables[m.current], m.currentOrder()
	number, size := m.pageNum, m.opts.PageSize
	return func() tea.Msg {
		start := time.Now()
		page, err := LoadPage(conn, name, order, number, size)
		return pageMsg{page: page, err: err, duration: time.Since(start)}
	}
}

func (m *Model) updateResultDisplay() {
	columns := make([]table.Column, len(m.page.Columns))
	for i, c := range m.page.Columns {
		columns[i] = table.Column{Title: c, Width: m.calculateColumnWidth(c, i)}
	}
	rows := make([]table.Row, len(m.page.Rows))
	for i, r := range m.page.Rows {
		rows[i] = table.Row(r)
	}
	// Rows must shrink before the columns do or the table indexes past
	// the new column count.
	m.resultTable.SetRows(nil)
	m.resultTable.SetColumns(columns)
	m.resultTable.SetRows(rows)
	m.resultTable.GotoTop()
}

func (m Model) calculateColumnWidth(columnName string, index int) int {
	maxWidth := 30
	minWidth := 6

	width := len(columnName) + 2
	for _, row := range m.page.Rows {
		if index < len(row) {
			width = max(width, len(row[index])+2)
		}
	}
	return base.Clamp(width, minWidth, maxWidth)
}

// updateLayout adjusts component sizes based on window size
func (m *Model) updateLayout() {
	m.help.Width = m.width - 4
	// Header, tabs, schema, status and help take about ten lines.
	m.resultTable.SetHeight(base.Clamp(m.height-12, 3, m.opts.PageSize+1))
}

func (m Model) renderHeader() string {
	info := m.database.GetStatistics()

	title := m.styles.title.Render("cursordb browser")
	badge := m.styles.dbBadge.Render(info.Name)
	counts := m.styles.muted.Render(fmt.Sprintf("Tables: %d | Queries: %d", info.TableCount, info.QueriesExecuted))

	header := lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", badge, "  ", counts)
	sep := m.styles.muted.Render(strings.Repeat("─", max(m.width-4, 0)))
	return header + "\n" + sep
}

func (m Model) renderTabs() string {
	tabs := make([]string, len(m.tables))
	for i, name := range m.tables {
		name = base.TruncateString(name, 24)
		if i == m.current {
			tabs[i] = m.styles.activeTab.Render(name)
		} else {
			tabs[i] = m.styles.tab.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, tabs...)
}

func (m Model) renderSchema() string {
	t, err := m.database.Table(m.tables[m.current])
	if err != nil {
		return m.styles.errorText.Render(err.Error())
	}
	return m.styles.panel.Render(m.highlighter.Describe(t))
}

func (m Model) renderLoading() string {
	return lipgloss.NewStyle().
		Foreground(m.styles.palette.Primary).
		Padding(1, 0).
		Render(m.spinner.View() + " Reading " + m.tables[m.current] + "...")
}

func (m Model) renderError() string {
	icon := m.styles.errorIcon.Render(" ⚠ ERROR ")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.palette.Error).
		Padding(0, 1).
		Render(icon + " " + m.styles.errorText.Render(m.lastError.Error()))
}

func (m Model) renderPage() string {
	first := m.pageNum*m.opts.PageSize + 1
	last := first + len(m.page.Rows) - 1
	label := fmt.Sprintf("%s, %s: rows %d-%d of %d", m.page.Table, m.page.Order, first, last, m.page.Total)
	if len(m.page.Rows) == 0 {
		label = fmt.Sprintf("%s, %s: no rows", m.page.Table, m.page.Order)
	}
	return m.styles.label.Render(label) + "\n" + m.resultTable.View()
}

func (m Model) renderStats() string {
	info := m.database.GetStatistics()
	tx := m.conn.Stats()
	lines := []string{
		fmt.Sprintf("Queries executed  %d", info.QueriesExecuted),
		fmt.Sprintf("Transactions      %d", info.TransactionsCount),
		fmt.Sprintf("Errors            %d", info.ErrorCount),
		fmt.Sprintf("Browser commits   %d (%d rollbacks)", tx.Commits, tx.Rollbacks),
	}
	if s := m.page.IndexStats; s != nil && !m.loading {
		lines = append(lines,
			fmt.Sprintf("Index nodes       %d (%d compressed)", s.Nodes, s.Compressed),
			fmt.Sprintf("Index keys        %d -> %d rows", s.Keys, s.Offsets),
			fmt.Sprintf("Index depth       %d", s.MaxDepth),
		)
	}
	return m.styles.panel.Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatusBar() string {
	status := m.styles.success.Render("● Connected")
	timer := ""
	if m.lastLoad > 0 {
		timer = fmt.Sprintf(" | Last read: %v", m.lastLoad.Round(time.Microsecond))
	}
	more := ""
	if m.page.More {
		more = " | more rows"
	}
	return m.styles.statusBar.
		Width(max(m.width-4, 0)).
		Render(status + m.styles.muted.Render(timer+more))
}
