package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/notify"
	"github.com/debemdeboas/quill/internal/session"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	idColumn = lipgloss.NewStyle().Width(38)
)

const dateLayout = "2006-01-02 15:04"

func printNotices(w io.Writer, notices []notify.Notice) {
	for _, n := range notices {
		if n.Level == notify.LevelError {
			fmt.Fprintln(w, errorStyle.Render("✗ "+n.Message))
			continue
		}
		fmt.Fprintln(w, successStyle.Render("✓ "+n.Message))
	}
}

func printIdentity(w io.Writer, state session.State) {
	if state.Identity == nil {
		return
	}
	fmt.Fprintf(w, "%s %s %s\n",
		headerStyle.Render(state.Identity.AuthorName()),
		mutedStyle.Render("<"+state.Identity.Email+">"),
		mutedStyle.Render(string(state.Identity.ID)))
}

// printDocuments lists docs one per line; documents the caller may modify
// are marked with an asterisk.
func printDocuments(w io.Writer, docs []model.Document, canModify func(model.Document) bool) {
	if len(docs) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No posts yet"))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(idColumn.Render("ID")+"  TITLE"))
	for _, d := range docs {
		mark := " "
		if canModify(d) {
			mark = "*"
		}
		fmt.Fprintf(w, "%s%s %s %s\n",
			idColumn.Render(string(d.ID)),
			mark,
			titleStyle.Render(d.Title),
			mutedStyle.Render(fmt.Sprintf("by %s, %s", d.AuthorDisplayName, d.ModifiedAt.Local().Format(dateLayout))))
	}
}
