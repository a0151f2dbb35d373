// Package tui is the terminal surface: a scrollable parcel table with a
// color swatch per row and a status line describing the current view.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"parcelview/internal/colorscale"
	"parcelview/internal/dataset"
	"parcelview/internal/export"
	"parcelview/internal/session"
	"parcelview/internal/style"
	"parcelview/internal/types"
	"parcelview/internal/viewstate"
)

var (
	colorAccent = lipgloss.Color("36")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
	colorRed    = lipgloss.Color("167")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	headerStyle   = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	selectedStyle = lipgloss.NewStyle().Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(colorRed)
)

// Columns shown in the terminal; the full set does not fit a typical width.
var Columns = []string{
	types.ColParcelID,
	types.ColAddress,
	types.ColCounty,
	types.ColVarianceAcres,
	types.ColAssessorAcres,
	types.ColCalculatedAcres,
	types.ColZoning,
}

const swatch = "██"

// Model is the bubbletea model for browsing one dataset inside a session.
type Model struct {
	ctx     context.Context
	mgr     *session.Manager
	sess    *session.Session
	ds      *dataset.Dataset
	scale   *colorscale.Scale
	exports string

	view   viewstate.State
	Cursor int
	Offset int
	Height int

	Status    string
	Err       error
	LoggedOut bool
}

// New returns a Model positioned on the session's current view. exportPath
// is where "e" writes the lead list.
func New(ctx context.Context, mgr *session.Manager, sess *session.Session, ds *dataset.Dataset, scale *colorscale.Scale, exportPath string) (Model, error) {
	v, err := mgr.View(ctx, sess, ds)
	if err != nil {
		return Model{}, err
	}
	m := Model{
		ctx:     ctx,
		mgr:     mgr,
		sess:    sess,
		ds:      ds,
		scale:   scale,
		exports: exportPath,
		view:    v,
		Height:  15,
	}
	if v.Selected != nil {
		m.Cursor = *v.Selected
		m.scrollTo()
	}
	return m, nil
}

// ViewState returns the current view state.
func (m Model) ViewState() viewstate.State { return m.view }

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				m.scrollTo()
			}
		case "down", "j":
			if m.Cursor < m.ds.Len()-1 {
				m.Cursor++
				m.scrollTo()
			}
		case "enter":
			m.selectRow()
		case "e":
			m.exportLeads()
		case "l":
			if err := m.mgr.Logout(m.ctx, m.sess.ID); err != nil {
				m.Err = err
				return m, nil
			}
			m.LoggedOut = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
		m.scrollTo()
	}
	return m, nil
}

func (m *Model) scrollTo() {
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m *Model) selectRow() {
	if m.ds.Len() == 0 {
		return
	}
	v, moved, err := m.mgr.Select(m.ctx, m.sess, m.ds, m.Cursor)
	if err != nil {
		m.Err = err
		return
	}
	m.Err = nil
	m.view = v
	if moved {
		m.Status = fmt.Sprintf("Centered on %s", m.ds.Parcels[m.Cursor].ParcelID)
	} else {
		m.Status = "Already centered"
	}
}

func (m *Model) exportLeads() {
	data, err := export.CSV(m.ds)
	if err == nil {
		err = export.WriteFile(m.exports, data)
	}
	if err != nil {
		m.Err = err
		return
	}
	m.Err = nil
	m.Status = fmt.Sprintf("Wrote %d parcels to %s", m.ds.Len(), m.exports)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Parcel Size Variance Explorer"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%d parcels · %s", m.ds.Len(), m.scale.Caption())))
	b.WriteString("\n")
	b.WriteString(m.legend())
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > m.ds.Len() {
		end = m.ds.Len()
	}

	rows := make([][]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		p := m.ds.Parcels[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		row := []string{cursor, lipgloss.NewStyle().Foreground(lipgloss.Color(style.For(p, m.scale).FillColor)).Render(swatch)}
		for _, col := range Columns {
			row = append(row, p.Attribute(col))
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers(append([]string{"", ""}, Headers()...)...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			idx := m.Offset + row
			switch {
			case idx == m.Cursor && col != 1:
				return cursorStyle
			case m.view.Selected != nil && idx == *m.view.Selected && col != 1:
				return selectedStyle
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.statusLine()))
	b.WriteString("\n")
	if m.Err != nil {
		b.WriteString(errorStyle.Render(m.Err.Error()))
	} else if m.Status != "" {
		b.WriteString(m.Status)
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("↑/↓ navigate  ⏎ center map  e export  l logout  q quit"))
	return b.String()
}

// Headers returns the display titles for Columns.
func Headers() []string {
	titles := make(map[string]string, len(style.TableColumns))
	for _, f := range style.TableColumns {
		titles[f.Column] = f.Title()
	}
	out := make([]string, 0, len(Columns))
	for _, col := range Columns {
		title, ok := titles[col]
		if !ok {
			title = col
		}
		out = append(out, title)
	}
	return out
}

func (m Model) legend() string {
	var b strings.Builder
	stops := m.scale.Legend(9)
	for _, s := range stops {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render("█"))
	}
	if len(stops) > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %.3g … %.3g", stops[0].Value, stops[len(stops)-1].Value)))
	}
	return b.String()
}

func (m Model) statusLine() string {
	sel := "none"
	if m.view.Selected != nil {
		sel = m.ds.Parcels[*m.view.Selected].ParcelID
	}
	return fmt.Sprintf("[%d/%d]  center %.5f, %.5f  zoom %d  selected %s",
		m.Cursor+1, m.ds.Len(), m.view.Lat(), m.view.Lon(), m.view.Zoom, sel)
}
