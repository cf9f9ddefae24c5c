package recon

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	axfrDialTimeout = 5 * time.Second
	axfrReadTimeout = 10 * time.Second
)

// ZoneTransfer is the AXFR outcome for one nameserver.
type ZoneTransfer struct {
	Nameserver string `json:"nameserver"`
	Allowed    bool   `json:"allowed"`
	Records    int    `json:"records"`
}

// ZoneTransferResult holds the output of AXFR testing for a domain.
type ZoneTransferResult struct {
	Transfers []ZoneTransfer
	Hostnames []string
}

// Allowed returns how many nameservers permitted the transfer.
func (r *ZoneTransferResult) Allowed() int {
	n := 0
	for _, zt := range r.Transfers {
		if zt.Allowed {
			n++
		}
	}
	return n
}

// Line summarises the result for the DNS section.
func (r *ZoneTransferResult) Line() string {
	if len(r.Transfers) == 0 {
		return "Zone transfer: no nameservers to test"
	}
	allowed := r.Allowed()
	if allowed == 0 {
		return fmt.Sprintf("Zone transfer: refused by all %d nameservers", len(r.Transfers))
	}
	return fmt.Sprintf("⚠️ Zone transfer allowed on %d of %d nameservers (%d hostnames exposed)",
		allowed, len(r.Transfers), len(r.Hostnames))
}

// ZoneTransferChecker attempts AXFR against a domain's nameservers.
type ZoneTransferChecker struct {
	// Port is the nameserver port, "53" when empty.
	Port        string
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// Check attempts AXFR against each nameserver in turn. A refused transfer is
// the expected outcome and is not an error.
func (c *ZoneTransferChecker) Check(ctx context.Context, domain string, nameservers []string) *ZoneTransferResult {
	result := &ZoneTransferResult{}
	seen := make(map[string]bool)

	for _, ns := range nameservers {
		select {
		case <-ctx.Done():
			return result
		default:
		}

		transfer := ZoneTransfer{Nameserver: ns}

		hostnames, err := c.attemptAXFR(domain, ns)
		if err != nil {
			result.Transfers = append(result.Transfers, transfer)
			continue
		}

		transfer.Allowed = true
		transfer.Records = len(hostnames)
		result.Transfers = append(result.Transfers, transfer)

		for _, h := range hostnames {
			if !seen[h] {
				seen[h] = true
				result.Hostnames = append(result.Hostnames, h)
			}
		}
	}

	return result
}

// attemptAXFR performs a DNS zone transfer against a single nameserver.
func (c *ZoneTransferChecker) attemptAXFR(domain, nameserver string) ([]string, error) {
	transfer := &dns.Transfer{
		DialTimeout: orDefault(c.DialTimeout, axfrDialTimeout),
		ReadTimeout: orDefault(c.ReadTimeout, axfrReadTimeout),
	}

	msg := new(dns.Msg)
	msg.SetAxfr(dns.Fqdn(domain))

	port := c.Port
	if port == "" {
		port = "53"
	}

	channel, err := transfer.In(msg, net.JoinHostPort(nameserver, port))
	if err != nil {
		return nil, fmt.Errorf("AXFR to %s: %w", nameserver, err)
	}

	seen := make(map[string]bool)
	var hostnames []string
	domainSuffix := "." + strings.ToLower(domain)

	for envelope := range channel {
		if envelope.Error != nil {
			return nil, fmt.Errorf("AXFR envelope from %s: %w", nameserver, envelope.Error)
		}
		for _, rr := range envelope.RR {
			name := trimDot(rr.Header().Name)
			if name == "" {
				continue
			}
			if !strings.HasSuffix(name, domainSuffix) && name != strings.ToLower(domain) {
				continue
			}
			if !seen[name] {
				seen[name] = true
				hostnames = append(hostnames, name)
			}
		}
	}

	return hostnames, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
