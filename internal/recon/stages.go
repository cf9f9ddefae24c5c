package recon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/vulnverified/hostrecon/internal/engine"
	"github.com/vulnverified/hostrecon/internal/target"
	"github.com/vulnverified/hostrecon/pkg/ports"
)

// domainOnly is the body of domain-scoped sections for IP targets.
func domainOnly(what string) engine.PartialReport {
	return engine.PartialReport{Lines: []string{"skipped: " + what + " require a domain target"}}
}

// GeoProbe implements the geolocation section.
type GeoProbe struct {
	Locator      *GeoLocator
	ProbeTimeout time.Duration
}

func (p *GeoProbe) Name() engine.Section   { return engine.SectionGeolocation }
func (p *GeoProbe) Timeout() time.Duration { return p.ProbeTimeout }

func (p *GeoProbe) Run(ctx context.Context, t target.Target) (engine.PartialReport, error) {
	info, err := p.Locator.Locate(ctx, t.IP)
	if err != nil {
		return engine.PartialReport{}, err
	}
	return engine.PartialReport{Lines: GeoLines(info, t.Hostname)}, nil
}

// DNSProbe implements the DNS records section.
type DNSProbe struct {
	Server       string
	QueryTimeout time.Duration
	// ZoneTransfer enables the AXFR check when non-nil.
	ZoneTransfer *ZoneTransferChecker
	ProbeTimeout time.Duration
}

func (p *DNSProbe) Name() engine.Section   { return engine.SectionDNS }
func (p *DNSProbe) Timeout() time.Duration { return p.ProbeTimeout }

func (p *DNSProbe) Run(ctx context.Context, t target.Target) (engine.PartialReport, error) {
	if !t.IsDomain() {
		return domainOnly("DNS records"), nil
	}

	report := ResolveAll(ctx, t.Input, p.Server, p.QueryTimeout)
	lines := report.Lines()

	failed := 0
	for _, rs := range report.Records {
		if rs.Err != nil {
			failed++
		}
	}
	if failed == len(report.Records) {
		return engine.PartialReport{}, fmt.Errorf("all DNS queries against %s failed: %w", p.Server, report.Records[0].Err)
	}

	if p.ZoneTransfer != nil {
		lines = append(lines, p.ZoneTransfer.Check(ctx, t.Input, report.NS()).Line())
	}
	return engine.PartialReport{Lines: lines}, nil
}

// BlacklistProbe implements the DNSBL section.
type BlacklistProbe struct {
	Zones        []string
	Server       string
	QueryTimeout time.Duration
	ProbeTimeout time.Duration
}

func (p *BlacklistProbe) Name() engine.Section   { return engine.SectionBlacklist }
func (p *BlacklistProbe) Timeout() time.Duration { return p.ProbeTimeout }

func (p *BlacklistProbe) Run(ctx context.Context, t target.Target) (engine.PartialReport, error) {
	zones := p.Zones
	if len(zones) == 0 {
		zones = DefaultBlacklistZones
	}
	report, err := CheckBlacklists(ctx, t.IP, zones, p.Server, p.QueryTimeout)
	if err != nil {
		return engine.PartialReport{}, err
	}
	return engine.PartialReport{Lines: report.Lines()}, nil
}

// HTTPProbe implements the HTTP performance section.
type HTTPProbe struct {
	Client       *WebClient
	ProbeTimeout time.Duration
}

func (p *HTTPProbe) Name() engine.Section   { return engine.SectionHTTP }
func (p *HTTPProbe) Timeout() time.Duration { return p.ProbeTimeout }

func (p *HTTPProbe) Run(ctx context.Context, t target.Target) (engine.PartialReport, error) {
	page, err := p.Client.Fetch(ctx, t.Host())
	if err != nil {
		return engine.PartialReport{}, err
	}
	return engine.PartialReport{Lines: page.PerformanceLines()}, nil
}

// SecurityProbe implements the SSL and security headers section.
type SecurityProbe struct {
	Client *WebClient
	// TLSPort is the port dialled for the certificate, "443" when empty.
	TLSPort      string
	Now          func() time.Time
	ProbeTimeout time.Duration
}

func (p *SecurityProbe) Name() engine.Section   { return engine.SectionSecurity }
func (p *SecurityProbe) Timeout() time.Duration { return p.ProbeTimeout }

func (p *SecurityProbe) Run(ctx context.Context, t target.Target) (engine.PartialReport, error) {
	var report SecurityReport

	page, err := p.Client.Fetch(ctx, t.Host())
	if err != nil {
		report.HeadersErr = err
	} else {
		report.Present, report.Missing = CheckSecurityHeaders(page.Header)
	}

	port := p.TLSPort
	if port == "" {
		port = "443"
	}
	serverName := ""
	if t.IsDomain() {
		serverName = t.Input
	}
	report.Cert, report.CertErr = InspectCertificate(ctx, net.JoinHostPort(t.IP, port), serverName, p.Client.Timeout)

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	pr := engine.PartialReport{Lines: report.Lines(now())}

	switch {
	case report.HeadersErr != nil && report.CertErr != nil:
		return engine.PartialReport{}, errors.Join(report.HeadersErr, report.CertErr)
	case report.CertErr != nil:
		return pr, &engine.PartialDataError{Missing: "certificate", Err: report.CertErr}
	case report.HeadersErr != nil:
		return pr, &engine.PartialDataError{Missing: "security headers", Err: report.HeadersErr}
	}
	return pr, nil
}

// TechnologiesProbe implements the technologies section.
type TechnologiesProbe struct {
	Client       *WebClient
	ProbeTimeout time.Duration
}

func (p *TechnologiesProbe) Name() engine.Section   { return engine.SectionTechnologies }
func (p *TechnologiesProbe) Timeout() time.Duration { return p.ProbeTimeout }

func (p *TechnologiesProbe) Run(ctx context.Context, t target.Target) (engine.PartialReport, error) {
	page, err := p.Client.Fetch(ctx, t.Host())
	if err != nil {
		return engine.PartialReport{}, err
	}
	return engine.PartialReport{Lines: TechnologyLines(page)}, nil
}

// RobotsProbe implements the robots and sitemap section.
type RobotsProbe struct {
	Client       *WebClient
	ProbeTimeout time.Duration
}

func (p *RobotsProbe) Name() engine.Section   { return engine.SectionRobots }
func (p *RobotsProbe) Timeout() time.Duration { return p.ProbeTimeout }

func (p *RobotsProbe) Run(ctx context.Context, t target.Target) (engine.PartialReport, error) {
	origin := "https://" + t.Host()
	report, err := p.Client.InspectRobots(ctx, origin)
	if err != nil && ctx.Err() == nil {
		origin = "http://" + t.Host()
		report, err = p.Client.InspectRobots(ctx, origin)
	}
	if err != nil {
		return engine.PartialReport{}, err
	}
	return engine.PartialReport{Lines: report.Lines()}, nil
}

// PortProbe implements the open ports section.
type PortProbe struct {
	Specs          []ports.Spec
	PerPortTimeout time.Duration
	Workers        int
	// Limiter paces connect attempts; nil means unlimited.
	Limiter      *rate.Limiter
	ProbeTimeout time.Duration
}

func (p *PortProbe) Name() engine.Section   { return engine.SectionPorts }
func (p *PortProbe) Timeout() time.Duration { return p.ProbeTimeout }

func (p *PortProbe) Run(ctx context.Context, t target.Target) (engine.PartialReport, error) {
	specs := p.Specs
	if len(specs) == 0 {
		specs = ports.Catalog
	}
	results := PortScan(ctx, t.IP, specs, p.PerPortTimeout, p.Workers, p.Limiter)
	if err := ctx.Err(); err != nil {
		return engine.PartialReport{}, err
	}
	return engine.PartialReport{Lines: PortLines(results)}, nil
}

// SubdomainProbe implements the subdomains section.
type SubdomainProbe struct {
	Finder       *SubdomainFinder
	Limit        int
	ProbeTimeout time.Duration
}

func (p *SubdomainProbe) Name() engine.Section   { return engine.SectionSubdomains }
func (p *SubdomainProbe) Timeout() time.Duration { return p.ProbeTimeout }

func (p *SubdomainProbe) Run(ctx context.Context, t target.Target) (engine.PartialReport, error) {
	if !t.IsDomain() {
		return domainOnly("subdomain searches"), nil
	}
	report, err := p.Finder.Discover(ctx, t.Input, p.Limit)
	if err != nil {
		return engine.PartialReport{}, fmt.Errorf("subdomain search failed: %w", err)
	}
	return engine.PartialReport{Lines: report.Lines()}, nil
}

// WhoisProbe implements the opt-in WHOIS section.
type WhoisProbe struct {
	Lookup       *WhoisLookup
	ProbeTimeout time.Duration
}

func (p *WhoisProbe) Name() engine.Section   { return engine.SectionWhois }
func (p *WhoisProbe) Timeout() time.Duration { return p.ProbeTimeout }

func (p *WhoisProbe) Run(ctx context.Context, t target.Target) (engine.PartialReport, error) {
	if !t.IsDomain() {
		return domainOnly("WHOIS lookups"), nil
	}
	raw, err := p.Lookup.Query(ctx, t.Input)
	if err != nil {
		return engine.PartialReport{}, err
	}
	summary, err := ParseWhois(raw)
	if errors.Is(err, ErrWhoisNotFound) {
		return engine.PartialReport{Lines: []string{"Domain not found in WHOIS"}}, nil
	}
	if err != nil {
		return engine.PartialReport{}, err
	}
	return engine.PartialReport{Lines: summary.Lines()}, nil
}
