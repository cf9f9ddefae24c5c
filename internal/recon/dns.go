package recon

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

const (
	fallbackDNSServer = "8.8.8.8:53"
	resolvConfPath    = "/etc/resolv.conf"

	// txtPreviewLen bounds SPF and DMARC values in the report.
	txtPreviewLen = 75
)

// dnsQueryTypes is the record order of the DNS section.
var dnsQueryTypes = []uint16{
	dns.TypeA,
	dns.TypeAAAA,
	dns.TypeMX,
	dns.TypeNS,
	dns.TypeTXT,
	dns.TypeSOA,
}

var dnsTypeLabels = map[uint16]string{
	dns.TypeA:    "A (IPv4)",
	dns.TypeAAAA: "AAAA (IPv6)",
	dns.TypeMX:   "MX (Mail)",
	dns.TypeNS:   "NS (Nameservers)",
	dns.TypeTXT:  "TXT",
	dns.TypeSOA:  "SOA",
}

// DefaultDNSServer returns the first nameserver from /etc/resolv.conf as
// host:port, or 8.8.8.8:53 when none is configured.
func DefaultDNSServer() string {
	cfg, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(cfg.Servers) == 0 {
		return fallbackDNSServer
	}
	return net.JoinHostPort(cfg.Servers[0], cfg.Port)
}

// RecordSet holds the answers for one record type. Err is set only when the
// query itself failed; a name without records has no values and no error.
type RecordSet struct {
	Type   string   `json:"type"`
	Values []string `json:"values,omitempty"`
	Err    error    `json:"-"`

	qtype uint16
}

// DNSReport is the result of ResolveAll.
type DNSReport struct {
	Domain  string      `json:"domain"`
	Records []RecordSet `json:"records"`
	SPF     string      `json:"spf,omitempty"`
	DMARC   string      `json:"dmarc,omitempty"`

	dmarcErr error
}

// NS returns the nameserver hostnames found for the domain.
func (r DNSReport) NS() []string {
	for _, rs := range r.Records {
		if rs.qtype == dns.TypeNS {
			return rs.Values
		}
	}
	return nil
}

// ResolveAll queries every record type for domain against server
// concurrently. Each type fails independently of the others.
func ResolveAll(ctx context.Context, domain, server string, timeout time.Duration) DNSReport {
	report := DNSReport{
		Domain:  domain,
		Records: make([]RecordSet, len(dnsQueryTypes)),
	}

	var g errgroup.Group
	for i, qtype := range dnsQueryTypes {
		g.Go(func() error {
			report.Records[i] = queryRecordSet(ctx, domain, server, qtype, timeout)
			return nil
		})
	}
	_ = g.Wait()

	for _, rs := range report.Records {
		if rs.qtype != dns.TypeTXT {
			continue
		}
		for _, v := range rs.Values {
			lower := strings.ToLower(v)
			switch {
			case report.SPF == "" && strings.Contains(lower, "v=spf"):
				report.SPF = v
			case report.DMARC == "" && strings.Contains(lower, "v=dmarc"):
				report.DMARC = v
			}
		}
	}

	if report.DMARC == "" {
		rs := queryRecordSet(ctx, "_dmarc."+domain, server, dns.TypeTXT, timeout)
		report.dmarcErr = rs.Err
		for _, v := range rs.Values {
			if strings.Contains(strings.ToLower(v), "v=dmarc") {
				report.DMARC = v
				break
			}
		}
	}

	return report
}

// Lines renders the report for the DNS section.
func (r DNSReport) Lines() []string {
	var lines []string
	for _, rs := range r.Records {
		label := dnsTypeLabels[rs.qtype]
		switch {
		case rs.Err != nil:
			lines = append(lines, fmt.Sprintf("%s: lookup failed (%s)", label, rs.Err))
		case len(rs.Values) == 0:
			lines = append(lines, label+": not configured")
		case rs.qtype == dns.TypeTXT:
			lines = append(lines, fmt.Sprintf("%s: %d record(s)", label, len(rs.Values)))
		default:
			lines = append(lines, fmt.Sprintf("%s: %s", label, strings.Join(rs.Values, ", ")))
		}
	}

	if r.SPF != "" {
		lines = append(lines, "SPF: "+truncate(r.SPF, txtPreviewLen))
	} else {
		lines = append(lines, "SPF: not configured")
	}

	switch {
	case r.DMARC != "":
		lines = append(lines, "DMARC: "+truncate(r.DMARC, txtPreviewLen))
	case r.dmarcErr != nil:
		lines = append(lines, fmt.Sprintf("DMARC: lookup failed (%s)", r.dmarcErr))
	default:
		lines = append(lines, "DMARC: not configured")
	}
	return lines
}

func queryRecordSet(ctx context.Context, name, server string, qtype uint16, timeout time.Duration) RecordSet {
	rs := RecordSet{Type: dns.TypeToString[qtype], qtype: qtype}

	in, err := exchange(ctx, name, server, qtype, timeout)
	if err != nil {
		rs.Err = err
		return rs
	}

	switch in.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
	default:
		rs.Err = fmt.Errorf("%s", dns.RcodeToString[in.Rcode])
		return rs
	}

	for _, ans := range in.Answer {
		if v := recordValue(ans, qtype); v != "" {
			rs.Values = append(rs.Values, v)
		}
	}
	rs.Values = deduplicateStrings(rs.Values)
	switch qtype {
	case dns.TypeMX, dns.TypeNS:
		sort.Strings(rs.Values)
	}
	return rs
}

// exchange sends a single recursive query, retrying over TCP when the UDP
// answer was truncated.
func exchange(ctx context.Context, name, server string, qtype uint16, timeout time.Duration) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: timeout}
	in, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return nil, fmt.Errorf("query %s %s: %w", dns.TypeToString[qtype], name, err)
	}
	if in.Truncated {
		client.Net = "tcp"
		in, _, err = client.ExchangeContext(ctx, msg, server)
		if err != nil {
			return nil, fmt.Errorf("query %s %s over tcp: %w", dns.TypeToString[qtype], name, err)
		}
	}
	return in, nil
}

func recordValue(rr dns.RR, qtype uint16) string {
	switch v := rr.(type) {
	case *dns.A:
		if qtype == dns.TypeA {
			return v.A.String()
		}
	case *dns.AAAA:
		if qtype == dns.TypeAAAA {
			return v.AAAA.String()
		}
	case *dns.MX:
		return fmt.Sprintf("%d %s", v.Preference, trimDot(v.Mx))
	case *dns.NS:
		return trimDot(v.Ns)
	case *dns.TXT:
		return strings.Join(v.Txt, "")
	case *dns.SOA:
		return fmt.Sprintf("primary %s, admin %s, serial %d", trimDot(v.Ns), trimDot(v.Mbox), v.Serial)
	}
	return ""
}

func trimDot(s string) string {
	return strings.ToLower(strings.TrimSuffix(s, "."))
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

func deduplicateStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	var out []string
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
