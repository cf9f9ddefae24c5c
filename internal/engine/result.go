// Package engine orchestrates the hostrecon probe battery.
package engine

import (
	"context"
	"time"

	"github.com/vulnverified/hostrecon/internal/target"
)

// Section names a report section. Each probe contributes exactly one.
type Section string

const (
	SectionGeolocation  Section = "geolocation"
	SectionDNS          Section = "dns"
	SectionBlacklist    Section = "blacklist"
	SectionHTTP         Section = "http"
	SectionSecurity     Section = "security"
	SectionTechnologies Section = "technologies"
	SectionRobots       Section = "robots"
	SectionPorts        Section = "ports"
	SectionSubdomains   Section = "subdomains"
	SectionWhois        Section = "whois"
)

// CanonicalOrder is the fixed section order of every report.
var CanonicalOrder = []Section{
	SectionGeolocation,
	SectionDNS,
	SectionBlacklist,
	SectionHTTP,
	SectionSecurity,
	SectionTechnologies,
	SectionRobots,
	SectionPorts,
	SectionSubdomains,
}

// optionalOrder lists opt-in sections, rendered after the canonical ones
// only when a probe for them is registered.
var optionalOrder = []Section{
	SectionWhois,
}

var sectionMeta = map[Section]struct{ icon, title string }{
	SectionGeolocation:  {"📍", "GeoIP"},
	SectionDNS:          {"🌐", "DNS Records"},
	SectionBlacklist:    {"🚫", "Blacklists"},
	SectionHTTP:         {"⚡", "HTTP Performance"},
	SectionSecurity:     {"🛡️", "SSL & Security"},
	SectionTechnologies: {"🧩", "Technologies"},
	SectionRobots:       {"🤖", "Robots & Sitemap"},
	SectionPorts:        {"🔌", "Open Ports"},
	SectionSubdomains:   {"🔎", "Subdomains"},
	SectionWhois:        {"ℹ️", "WHOIS"},
}

// Title returns the human-readable section title.
func (s Section) Title() string {
	if m, ok := sectionMeta[s]; ok {
		return m.title
	}
	return string(s)
}

// Icon returns the emoji shown next to the section title.
func (s Section) Icon() string {
	if m, ok := sectionMeta[s]; ok {
		return m.icon
	}
	return "•"
}

// OrderFor returns the section order for a probe set: every canonical
// section, then registered opt-in sections.
func OrderFor(probes []Probe) []Section {
	order := append([]Section(nil), CanonicalOrder...)
	registered := make(map[Section]bool, len(probes))
	for _, p := range probes {
		registered[p.Name()] = true
	}
	for _, s := range optionalOrder {
		if registered[s] {
			order = append(order, s)
		}
	}
	return order
}

// State is the lifecycle state of a scan.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
)

// PartialReport is the output of one probe: display lines plus an optional
// error. A failed probe still yields a PartialReport.
type PartialReport struct {
	Section     Section  `json:"section"`
	Lines       []string `json:"lines,omitempty"`
	Diagnostic  string   `json:"error,omitempty"`
	ElapsedSecs float64  `json:"elapsed_secs"`

	Err error `json:"-"`
}

// Failed reports whether the probe ended in an error.
func (p PartialReport) Failed() bool { return p.Err != nil }

// ScanReport is the final artifact of one scan.
type ScanReport struct {
	ID           string                    `json:"id"`
	Target       target.Target             `json:"target"`
	State        State                     `json:"state"`
	Order        []Section                 `json:"order"`
	Partials     map[Section]PartialReport `json:"sections"`
	StartedAt    time.Time                 `json:"started_at"`
	CompletedAt  time.Time                 `json:"completed_at"`
	DurationSecs float64                   `json:"duration_secs"`
}

// NewReport creates an empty pending report.
func NewReport(id string, t target.Target, order []Section) *ScanReport {
	return &ScanReport{
		ID:       id,
		Target:   t,
		State:    StatePending,
		Order:    order,
		Partials: make(map[Section]PartialReport, len(order)),
	}
}

// Sections returns one PartialReport per entry in Order. Sections without
// a result are filled with an ErrNotRun placeholder.
func (r *ScanReport) Sections() []PartialReport {
	out := make([]PartialReport, 0, len(r.Order))
	for _, s := range r.Order {
		pr, ok := r.Partials[s]
		if !ok {
			pr = PartialReport{Section: s, Err: ErrNotRun, Diagnostic: Diagnostic(ErrNotRun)}
		}
		out = append(out, pr)
	}
	return out
}

// Probe is an independent network check contributing one report section.
// Implementations must be safe to run concurrently with other probes and
// must honour ctx cancellation.
type Probe interface {
	Name() Section
	Timeout() time.Duration
	Run(ctx context.Context, t target.Target) (PartialReport, error)
}

// ProgressReporter is called by the engine to report probe progress.
type ProgressReporter interface {
	Stage(num, total int, msg string)
	Detail(msg string)
	Warn(msg string)
}
