// Package main provides the interactive browse command for the kiler CLI.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kilerdb/kiler/internal/storage/engine"
)

// browsePageSize is how many keys one table fill loads from a scan.
const browsePageSize = 500

var (
	browseTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	browseStatusStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	browseValueStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")).
				Padding(0, 1)
)

// browseCmd handles the browse command.
func browseCmd(args []string) int {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var f dbFlags
	addDBFlags(fs, &f)
	start := fs.String("start", "", "First key to show")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help || *helpLong {
		printBrowseUsage(os.Stdout)
		return 0
	}

	db, err := f.open(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer db.Close()

	m, err := newBrowseModel(db, *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// browseModel is the bubbletea state for the key/value browser. It
// pages through the database with bounded scans: "n" loads the chunk
// after the last visible key.
type browseModel struct {
	db        *engine.DB
	keyTable  table.Model
	valueView viewport.Model
	values    map[string]string
	lastKey   string
	exhausted bool
	status    string
	width     int
	height    int
}

func newBrowseModel(db *engine.DB, start string) (*browseModel, error) {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Key", Width: 40},
			{Title: "Size", Width: 10},
		}),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("205")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	vp := viewport.New(40, 20)

	m := &browseModel{
		db:        db,
		keyTable:  t,
		valueView: vp,
		values:    make(map[string]string),
	}
	if err := m.loadPage(start, true); err != nil {
		return nil, err
	}
	return m, nil
}

// loadPage scans the next browsePageSize keys starting after (or at)
// the given key and appends them to the table.
func (m *browseModel) loadPage(from string, inclusive bool) error {
	sc, err := m.db.Scan([]byte(from), nil)
	if err != nil {
		return err
	}
	rows := m.keyTable.Rows()
	loaded := 0
	for sc.Next() {
		key := string(sc.Key())
		if !inclusive && key == from {
			continue
		}
		m.values[key] = string(sc.Value())
		rows = append(rows, table.Row{key, fmt.Sprintf("%d B", len(sc.Value()))})
		m.lastKey = key
		loaded++
		if loaded >= browsePageSize {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	m.exhausted = loaded < browsePageSize
	m.keyTable.SetRows(rows)
	m.status = fmt.Sprintf("%d keys loaded", len(rows))
	if !m.exhausted {
		m.status += " (n: load more)"
	}
	return nil
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "n":
			if !m.exhausted {
				if err := m.loadPage(m.lastKey, false); err != nil {
					m.status = fmt.Sprintf("load error: %v", err)
				}
			}
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		tableWidth := msg.Width / 2
		m.keyTable.SetHeight(msg.Height - 6)
		m.valueView.Width = msg.Width - tableWidth - 6
		m.valueView.Height = msg.Height - 8
	}

	var cmd tea.Cmd
	m.keyTable, cmd = m.keyTable.Update(msg)

	if row := m.keyTable.SelectedRow(); row != nil {
		m.valueView.SetContent(m.values[row[0]])
	}
	return m, cmd
}

func (m *browseModel) View() string {
	title := browseTitleStyle.Render("kiler browse: " + m.db.Path())
	status := browseStatusStyle.Render(m.status + "  |  q: quit, n: next page")
	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.keyTable.View(),
		browseValueStyle.Render(m.valueView.View()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, title, body, status)
}
