package output

import (
	"encoding/json"
	"io"

	"github.com/vulnverified/hostrecon/internal/engine"
)

// jsonReport carries the sections in render order, placeholders included.
type jsonReport struct {
	*engine.ScanReport
	Sections []engine.PartialReport `json:"sections"`
}

// WriteJSON writes the scan report as indented JSON to w.
func WriteJSON(w io.Writer, report *engine.ScanReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(jsonReport{ScanReport: report, Sections: report.Sections()})
}
