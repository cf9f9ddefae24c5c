package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vulnverified/hostrecon/internal/engine"
)

// styles decorates the parts of a rendered report.
type styles struct {
	title, header, diagnostic func(string) string
}

func identity(s string) string { return s }

var (
	plainStyles = styles{title: identity, header: identity, diagnostic: identity}

	coloredStyles = styles{
		title:      lipgloss.NewStyle().Bold(true).Render,
		header:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Render,
		diagnostic: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render,
	}
)

// Render formats the report as plain text. Sections appear in report.Order;
// a missing partial renders as a placeholder and a failed one as its
// diagnostic line. The output holds no timings, so rendering the same
// report twice yields identical text.
func Render(report *engine.ScanReport) string {
	return render(report, plainStyles)
}

// RenderStyled is Render with lipgloss-styled headers and diagnostics.
func RenderStyled(report *engine.ScanReport) string {
	return render(report, coloredStyles)
}

func render(report *engine.ScanReport, st styles) string {
	var b strings.Builder

	t := report.Target
	title := fmt.Sprintf("🔍 Analysis for *%s*", t.Input)
	if t.IP != "" && t.IP != t.Input {
		title += fmt.Sprintf(" (%s)", t.IP)
	}
	b.WriteString(st.title(title))
	b.WriteString("\n")

	for _, pr := range report.Sections() {
		b.WriteString("\n")
		b.WriteString(st.header(fmt.Sprintf("--- %s %s ---", pr.Section.Icon(), pr.Section.Title())))
		b.WriteString("\n")

		lines, diag := sectionBody(pr)
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		if diag != "" {
			b.WriteString(st.diagnostic(diag))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// sectionBody returns the lines shown under a section header and the
// diagnostic, if any. Partial data keeps whatever the probe obtained.
func sectionBody(pr engine.PartialReport) ([]string, string) {
	diag := pr.Diagnostic
	if diag == "" && pr.Err != nil {
		diag = engine.Diagnostic(pr.Err)
	}
	if diag == "" && len(pr.Lines) == 0 {
		return []string{"No results"}, ""
	}
	return pr.Lines, diag
}
