package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vulnverified/hostrecon/internal/engine"
)

var statusHeaders = []string{"Section", "Status", "Time", "Detail"}

// statusRows builds one row per section in report order.
func statusRows(report *engine.ScanReport) [][]string {
	var rows [][]string
	for _, pr := range report.Sections() {
		status, detail := "ok", ""
		switch {
		case pr.Err == nil && pr.Diagnostic == "":
		case errors.Is(pr.Err, engine.ErrNotRun):
			status = "not run"
		case len(pr.Lines) > 0:
			status = "partial"
			detail = pr.Diagnostic
		default:
			status = "failed"
			detail = pr.Diagnostic
		}
		elapsed := fmt.Sprintf("%.1fs", pr.ElapsedSecs)
		if status == "not run" {
			elapsed = "-"
		}
		rows = append(rows, []string{pr.Section.Title(), status, elapsed, truncate(detail, 50)})
	}
	return rows
}

// WriteStatusTable renders per-probe outcomes and timings as a table.
func WriteStatusTable(w io.Writer, report *engine.ScanReport, noColor bool) {
	rows := statusRows(report)

	fmt.Fprintln(w)

	if noColor {
		writeSimpleTable(w, statusHeaders, rows)
		return
	}

	t := table.New().
		Headers(statusHeaders...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
			}
			if col == 1 {
				switch rows[row][1] {
				case "failed":
					return lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
				case "partial", "not run":
					return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
				}
			}
			return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		})

	for _, row := range rows {
		t.Row(row...)
	}

	fmt.Fprintln(w, t.Render())
}

func writeSimpleTable(w io.Writer, headers []string, rows [][]string) {
	// Calculate column widths.
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprint(w, cell+strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
		}
		fmt.Fprintln(w)
	}

	writeRow(headers)

	// Separator.
	for i, width := range widths {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", width))
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		writeRow(row)
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
