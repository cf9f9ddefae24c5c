package recon

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// DefaultBlacklistZones are the DNSBL zones queried when none are configured.
var DefaultBlacklistZones = []string{
	"zen.spamhaus.org",
	"bl.spamcop.net",
	"b.barracudacentral.org",
	"dnsbl.sorbs.net",
}

// ListingStatus is the outcome of one DNSBL query.
type ListingStatus string

const (
	ListingClean   ListingStatus = "clean"
	ListingListed  ListingStatus = "listed"
	ListingUnknown ListingStatus = "unknown"
)

// ZoneResult is the outcome for one blacklist zone.
type ZoneResult struct {
	Zone   string        `json:"zone"`
	Status ListingStatus `json:"status"`
	// Reason holds the return code for listings and the failure for unknowns.
	Reason string `json:"reason,omitempty"`
}

// BlacklistReport is the result of CheckBlacklists.
type BlacklistReport struct {
	IP      string       `json:"ip"`
	Results []ZoneResult `json:"results"`
}

// ReverseName returns the DNSBL query label for ip: reversed octets for
// IPv4, reversed nibbles for IPv6 (RFC 5782).
func ReverseName(ip string) (string, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("parse ip %q: %w", ip, err)
	}
	addr = addr.Unmap()

	if addr.Is4() {
		b := addr.As4()
		return fmt.Sprintf("%d.%d.%d.%d", b[3], b[2], b[1], b[0]), nil
	}

	b := addr.As16()
	labels := make([]string, 0, 32)
	for i := len(b) - 1; i >= 0; i-- {
		labels = append(labels, fmt.Sprintf("%x", b[i]&0x0f), fmt.Sprintf("%x", b[i]>>4))
	}
	return strings.Join(labels, "."), nil
}

// CheckBlacklists queries every zone for ip concurrently. Only NXDOMAIN
// counts as clean; any answer other than an A record or NXDOMAIN leaves the
// zone unknown.
func CheckBlacklists(ctx context.Context, ip string, zones []string, server string, timeout time.Duration) (BlacklistReport, error) {
	report := BlacklistReport{IP: ip}

	reversed, err := ReverseName(ip)
	if err != nil {
		return report, err
	}

	report.Results = make([]ZoneResult, len(zones))
	var g errgroup.Group
	for i, zone := range zones {
		g.Go(func() error {
			report.Results[i] = queryZone(ctx, reversed, zone, server, timeout)
			return nil
		})
	}
	_ = g.Wait()

	return report, nil
}

func queryZone(ctx context.Context, reversed, zone, server string, timeout time.Duration) ZoneResult {
	result := ZoneResult{Zone: zone, Status: ListingUnknown}

	in, err := exchange(ctx, reversed+"."+zone, server, dns.TypeA, timeout)
	if err != nil {
		result.Reason = shortError(err)
		return result
	}

	switch in.Rcode {
	case dns.RcodeNameError:
		result.Status = ListingClean
		return result
	case dns.RcodeSuccess:
	default:
		result.Reason = dns.RcodeToString[in.Rcode]
		return result
	}

	for _, ans := range in.Answer {
		a, ok := ans.(*dns.A)
		if !ok {
			continue
		}
		// 127.255.255.0/24 is returned by list operators to signal a refused
		// or rate-limited query, not a listing.
		if ip4 := a.A.To4(); ip4 != nil && ip4[0] == 127 && ip4[1] == 255 && ip4[2] == 255 {
			result.Reason = "query refused by list operator (" + a.A.String() + ")"
			return result
		}
		result.Status = ListingListed
		result.Reason = a.A.String()
		return result
	}

	result.Reason = "empty answer"
	return result
}

// Counts returns the number of listed, clean, and unknown zones.
func (r BlacklistReport) Counts() (listed, clean, unknown int) {
	for _, res := range r.Results {
		switch res.Status {
		case ListingListed:
			listed++
		case ListingClean:
			clean++
		default:
			unknown++
		}
	}
	return listed, clean, unknown
}

// Lines renders the report for the blacklist section.
func (r BlacklistReport) Lines() []string {
	total := len(r.Results)
	listed, clean, unknown := r.Counts()

	var lines []string
	switch {
	case listed > 0:
		var zones []string
		for _, res := range r.Results {
			if res.Status == ListingListed {
				zones = append(zones, res.Zone)
			}
		}
		lines = append(lines, fmt.Sprintf("⚠️ Listed in %d of %d blacklists: %s", listed, total, strings.Join(zones, ", ")))
	case unknown == 0:
		lines = append(lines, fmt.Sprintf("✅ IP clean — not listed in any of %d blacklists", total))
	default:
		lines = append(lines, fmt.Sprintf("Not listed in %d of %d blacklists; %d could not be checked", clean, total, unknown))
	}

	for _, res := range r.Results {
		if res.Status == ListingUnknown {
			lines = append(lines, fmt.Sprintf("could not query: %s (%s)", res.Zone, res.Reason))
		}
	}
	return lines
}

// shortError strips the query prefix added by exchange.
func shortError(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
