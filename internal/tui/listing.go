// Package tui provides interactive terminal UI components.
package tui

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/listado/internal/mirror"
	"github.com/lepinkainen/listado/internal/record"
)

const (
	defaultTableHeight = 20
	idColumnWidth      = 10
	nameColumnWidth    = 48
)

// PageSizes are the page sizes the browser cycles through with +/-.
var PageSizes = []int{10, 20, 50, 100}

// DefaultPageSize is used when the requested size is not in PageSizes.
const DefaultPageSize = 20

var runProgram = func(m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m, tea.WithAltScreen()).Run()
}

// Mirror is the part of the synchronizer the browser reads from.
type Mirror interface {
	GetPage(ctx context.Context, page, pageSize int) ([]record.Record, error)
	TotalPages(pageSize int) int
	State() mirror.State
	ForceRefresh(ctx context.Context) (mirror.LoadResult, error)
}

type pageLoadedMsg struct {
	page    int
	size    int
	records []record.Record
	err     error
}

type refreshedMsg struct {
	result mirror.LoadResult
	err    error
}

type listingModel struct {
	ctx       context.Context
	mirror    Mirror
	table     table.Model
	paginator paginator.Model
	page      int
	sizeIdx   int
	status    string
	err       error
	loading   bool
}

func newListingModel(ctx context.Context, m Mirror, pageSize int) *listingModel {
	sizeIdx := sizeIndex(pageSize)

	columns := []table.Column{
		{Title: "ID", Width: idColumnWidth},
		{Title: "Nombre", Width: nameColumnWidth},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(min(PageSizes[sizeIdx], defaultTableHeight)),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("62")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("237"))
	t.SetStyles(styles)

	p := paginator.New()
	p.Type = paginator.Arabic

	lm := &listingModel{
		ctx:       ctx,
		mirror:    m,
		table:     t,
		paginator: p,
		page:      1,
		sizeIdx:   sizeIdx,
	}
	lm.syncPaginator()
	return lm
}

func sizeIndex(pageSize int) int {
	for i, size := range PageSizes {
		if size == pageSize {
			return i
		}
	}
	for i, size := range PageSizes {
		if size == DefaultPageSize {
			return i
		}
	}
	return 0
}

func (m *listingModel) pageSize() int {
	return PageSizes[m.sizeIdx]
}

func (m *listingModel) totalPages() int {
	return max(m.mirror.TotalPages(m.pageSize()), 1)
}

func (m *listingModel) syncPaginator() {
	m.paginator.PerPage = m.pageSize()
	m.paginator.TotalPages = m.totalPages()
	m.paginator.Page = m.page - 1
}

func (m *listingModel) loadPage() tea.Cmd {
	page, size := m.page, m.pageSize()
	return func() tea.Msg {
		records, err := m.mirror.GetPage(m.ctx, page, size)
		return pageLoadedMsg{page: page, size: size, records: records, err: err}
	}
}

func (m *listingModel) refresh() tea.Cmd {
	return func() tea.Msg {
		result, err := m.mirror.ForceRefresh(m.ctx)
		return refreshedMsg{result: result, err: err}
	}
}

func (m *listingModel) Init() tea.Cmd { return m.loadPage() }

func (m *listingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "left", "h":
			return m, m.goToPage(m.page - 1)
		case "right", "l":
			return m, m.goToPage(m.page + 1)
		case "+":
			return m, m.setSizeIndex(m.sizeIdx + 1)
		case "-":
			return m, m.setSizeIndex(m.sizeIdx - 1)
		case "r":
			if m.loading {
				return m, nil
			}
			m.loading = true
			m.status = "Refreshing from remote..."
			return m, m.refresh()
		}
	case pageLoadedMsg:
		// drop responses for pages we already navigated away from
		if msg.page != m.page || msg.size != m.pageSize() {
			return m, nil
		}
		m.err = msg.err
		if msg.err == nil {
			m.table.SetRows(toRows(msg.records))
			m.table.GotoTop()
		}
		m.syncPaginator()
		return m, nil
	case refreshedMsg:
		m.loading = false
		m.err = msg.err
		switch {
		case msg.err != nil:
			m.status = "Refresh failed"
		case msg.result.Degraded:
			m.status = fmt.Sprintf("Remote unavailable, showing %d local records", msg.result.Count)
		default:
			m.status = fmt.Sprintf("Refreshed %d records", msg.result.Count)
		}
		m.page = 1
		m.syncPaginator()
		return m, m.loadPage()
	case tea.WindowSizeMsg:
		height := clamp(defaultTableHeight, msg.Height-8, 5)
		m.table.SetHeight(height)
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// goToPage ignores pages outside [1, totalPages].
func (m *listingModel) goToPage(page int) tea.Cmd {
	if page < 1 || page > m.totalPages() || page == m.page {
		return nil
	}
	m.page = page
	m.syncPaginator()
	return m.loadPage()
}

func (m *listingModel) setSizeIndex(idx int) tea.Cmd {
	if idx < 0 || idx >= len(PageSizes) || idx == m.sizeIdx {
		return nil
	}
	m.sizeIdx = idx
	m.page = 1
	m.syncPaginator()
	return m.loadPage()
}

func (m *listingModel) View() string {
	state := m.mirror.State()

	header := headerStyle.Render("Listado de categorías")

	summary := fmt.Sprintf("%d records | page size %d", state.RecordCount, m.pageSize())
	if state.Loading || m.loading {
		summary += " | Loading..."
	}

	footer := lipgloss.JoinHorizontal(lipgloss.Left,
		m.paginator.View(),
		lipgloss.NewStyle().Padding(0, 2).Render(""),
		metadataStyle.Render(summary),
	)

	lines := []string{header, m.table.View(), footer}
	if m.status != "" {
		lines = append(lines, statusStyle.Render(m.status))
	}
	if m.err != nil {
		lines = append(lines, errorStyle.Render("Error: "+m.err.Error()))
	}
	lines = append(lines, helpStyle.Render("←/h prev | →/l next | +/- page size | r refresh | q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func toRows(records []record.Record) []table.Row {
	rows := make([]table.Row, len(records))
	for i, r := range records {
		rows[i] = table.Row{strconv.FormatInt(r.ID, 10), truncate(r.Name, nameColumnWidth)}
	}
	return rows
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginBottom(1)

	metadataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Faint(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("161")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			MarginTop(1).
			Foreground(lipgloss.Color("244"))
)

// Browse runs the interactive listing over m until the user quits.
func Browse(ctx context.Context, m Mirror, pageSize int) error {
	finalModel, err := runProgram(newListingModel(ctx, m, pageSize))
	if err != nil {
		return err
	}
	if _, ok := finalModel.(*listingModel); !ok {
		return fmt.Errorf("unexpected program result")
	}
	return nil
}

func truncate(value string, width int) string {
	if width <= 0 || len([]rune(value)) <= width {
		return value
	}
	runes := []rune(value)
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

func clamp(defaultValue, available, minimum int) int {
	value := defaultValue
	if available > 0 && available < defaultValue {
		value = available
	}
	if value < minimum {
		value = minimum
	}
	return value
}
