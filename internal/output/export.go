package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/vulnverified/hostrecon/internal/engine"
)

// emphasisStripper removes chat-style emphasis markers from the report.
var emphasisStripper = strings.NewReplacer("*", "", "_", "")

// PlainText is the rendered report without emphasis markers, as written to
// .txt exports.
func PlainText(report *engine.ScanReport) string {
	return emphasisStripper.Replace(Render(report))
}

// Export writes the report to path. The format follows the extension:
// .txt for plain text, .pdf for a single-column PDF document.
func Export(path string, report *engine.ScanReport) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".txt" && ext != ".pdf" {
		return fmt.Errorf("unsupported export format %q (want .txt or .pdf)", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if ext == ".txt" {
		_, err = io.WriteString(f, PlainText(report))
	} else {
		err = WritePDF(f, report)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WritePDF lays the plain-text report out as a PDF. The core fonts use the
// cp1252 code page, so emoji and other runes outside it are dropped.
func WritePDF(w io.Writer, report *engine.ScanReport) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("hostrecon report: "+report.Target.Input, true)
	pdf.SetCreator("hostrecon "+Version, true)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	lines := strings.Split(strings.TrimRight(PlainText(report), "\n"), "\n")
	for i, line := range lines {
		text := tr(cp1252Only(line))
		switch {
		case i == 0:
			pdf.SetFont("Helvetica", "B", 14)
			pdf.MultiCell(0, 8, text, "", "L", false)
		case strings.HasPrefix(text, "---"):
			pdf.SetFont("Helvetica", "B", 11)
			pdf.MultiCell(0, 6, strings.Trim(text, "- "), "", "L", false)
		case text == "":
			pdf.Ln(3)
		default:
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, text, "", "L", false)
		}
	}

	return pdf.Output(w)
}

// cp1252Only drops runes the cp1252 code page cannot encode. When a
// leading emoji is dropped the space that followed it goes too.
func cp1252Only(s string) string {
	var b strings.Builder
	dropped := false
	for _, r := range s {
		if _, ok := charmap.Windows1252.EncodeRune(r); !ok {
			dropped = true
			continue
		}
		b.WriteRune(r)
	}
	if !dropped {
		return s
	}
	out := b.String()
	if strings.HasPrefix(out, " ") && !strings.HasPrefix(s, " ") {
		out = strings.TrimLeft(out, " ")
	}
	return strings.ReplaceAll(out, "  ", " ")
}
