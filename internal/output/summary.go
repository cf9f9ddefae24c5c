package output

import (
	"fmt"
	"io"

	"github.com/vulnverified/hostrecon/internal/engine"
)

// Version is set via ldflags at build time.
var Version = "dev"

// WriteHeader prints the hostrecon banner.
func WriteHeader(w io.Writer, noColor bool) {
	if noColor {
		fmt.Fprintf(w, "hostrecon %s\n\n", Version)
	} else {
		fmt.Fprintf(w, "\033[1mhostrecon %s\033[0m\n\n", Version)
	}
}

// Counts tallies section outcomes.
type Counts struct {
	OK, Partial, Failed, NotRun int
}

// CountSections classifies every section of the report.
func CountSections(report *engine.ScanReport) Counts {
	var c Counts
	for _, row := range statusRows(report) {
		switch row[1] {
		case "ok":
			c.OK++
		case "partial":
			c.Partial++
		case "failed":
			c.Failed++
		default:
			c.NotRun++
		}
	}
	return c
}

// WriteSummary prints the post-scan summary line.
func WriteSummary(w io.Writer, report *engine.ScanReport, noColor bool) {
	c := CountSections(report)

	target := report.Target.Input
	if report.Target.IP != "" && report.Target.IP != target {
		target += " (" + report.Target.IP + ")"
	}

	fmt.Fprintln(w)
	if noColor {
		fmt.Fprintf(w, "Target: %s\n", target)
		fmt.Fprintf(w, "Sections: %d ok, %d partial, %d failed, %d not run\n", c.OK, c.Partial, c.Failed, c.NotRun)
	} else {
		fmt.Fprintf(w, "\033[1mTarget:\033[0m %s\n", target)
		fmt.Fprintf(w, "\033[1mSections:\033[0m %d ok, %d partial, %d failed, %d not run\n", c.OK, c.Partial, c.Failed, c.NotRun)
	}

	if c.Failed > 0 {
		if noColor {
			fmt.Fprintf(w, "! %d section(s) could not be collected; rerun with -v for details\n", c.Failed)
		} else {
			fmt.Fprintf(w, "\033[33m!\033[0m %d section(s) could not be collected; rerun with -v for details\n", c.Failed)
		}
	}
}
