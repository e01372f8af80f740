// Package main provides the stat command for the kiler CLI.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/kilerdb/kiler/internal/storage"
	"github.com/kilerdb/kiler/internal/storage/engine"
)

var (
	statTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	statLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(16)

	statValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

// statCmd handles the stat command.
func statCmd(args []string) int {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var f dbFlags
	addDBFlags(fs, &f)
	plain := fs.Bool("plain", false, "Print unstyled key=value output")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help || *helpLong {
		printStatUsage(os.Stdout)
		return 0
	}

	db, err := f.open(true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer db.Close()

	st, err := db.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	printStats(os.Stdout, db.Path(), st, *plain)
	return 0
}

func printStats(w io.Writer, path string, st engine.Stats, plain bool) {
	fileBytes := st.FilePages * storage.PageSize
	usedBytes := st.PagesUsed * storage.PageSize

	if plain {
		fmt.Fprintf(w, "path=%s\n", path)
		fmt.Fprintf(w, "page_size=%d\n", storage.PageSize)
		fmt.Fprintf(w, "pages_used=%d\n", st.PagesUsed)
		fmt.Fprintf(w, "pages_free=%d\n", st.PagesFree)
		fmt.Fprintf(w, "file_pages=%d\n", st.FilePages)
		fmt.Fprintf(w, "tree_height=%d\n", st.TreeHeight)
		return
	}

	row := func(label, value string) {
		fmt.Fprintln(w, statLabelStyle.Render(label)+statValueStyle.Render(value))
	}

	fmt.Fprintln(w, statTitleStyle.Render("kiler database"))
	row("Path", path)
	row("Page size", humanize.IBytes(storage.PageSize))
	row("Pages used", fmt.Sprintf("%s (%s)", humanize.Comma(int64(st.PagesUsed)), humanize.IBytes(usedBytes)))
	row("Pages free", humanize.Comma(int64(st.PagesFree)))
	row("File size", fmt.Sprintf("%s (%s)", humanize.Comma(int64(st.FilePages)), humanize.IBytes(fileBytes)))
	row("Tree height", fmt.Sprintf("%d", st.TreeHeight))
}
