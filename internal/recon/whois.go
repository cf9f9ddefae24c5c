package recon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
)

var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
	"2006/01/02",
}

// WhoisLookup queries WHOIS servers for domain registration data.
type WhoisLookup struct {
	// Server overrides the WHOIS server; empty follows the TLD referral.
	Server  string
	Timeout time.Duration
}

// Query returns the raw WHOIS response for domain. The underlying client
// is not context-aware, so the query runs in its own goroutine and is
// abandoned when ctx is done.
func (w *WhoisLookup) Query(ctx context.Context, domain string) (string, error) {
	client := whois.NewClient()
	if w.Timeout > 0 {
		client.SetTimeout(w.Timeout)
	}

	type result struct {
		raw string
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var servers []string
		if w.Server != "" {
			servers = append(servers, w.Server)
		}
		raw, err := client.Whois(domain, servers...)
		ch <- result{raw, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("whois query for %s: %w", domain, r.err)
		}
		return r.raw, nil
	}
}

// WhoisSummary holds the registration fields shown in the report.
type WhoisSummary struct {
	Registrar string    `json:"registrar,omitempty"`
	Country   string    `json:"country,omitempty"`
	Created   time.Time `json:"created,omitempty"`
	Expires   time.Time `json:"expires,omitempty"`
	Status    []string  `json:"status,omitempty"`

	createdRaw, expiresRaw string
}

// ErrWhoisNotFound is returned when the registry has no record.
var ErrWhoisNotFound = errors.New("domain not found in WHOIS")

// ParseWhois extracts a summary from a raw WHOIS response.
func ParseWhois(raw string) (*WhoisSummary, error) {
	info, err := whoisparser.Parse(raw)
	if err != nil {
		if errors.Is(err, whoisparser.ErrNotFoundDomain) {
			return nil, ErrWhoisNotFound
		}
		return nil, fmt.Errorf("parse whois: %w", err)
	}

	s := &WhoisSummary{}
	if info.Registrar != nil {
		s.Registrar = strings.TrimSpace(info.Registrar.Name)
		if s.Registrar == "" {
			s.Registrar = strings.TrimSpace(info.Registrar.Organization)
		}
	}
	if info.Registrant != nil {
		s.Country = strings.TrimSpace(info.Registrant.Country)
	}
	if info.Domain != nil {
		s.createdRaw = info.Domain.CreatedDate
		s.expiresRaw = info.Domain.ExpirationDate
		s.Created = parseWhoisDate(info.Domain.CreatedDate)
		s.Expires = parseWhoisDate(info.Domain.ExpirationDate)
		s.Status = deduplicateStrings(info.Domain.Status)
	}
	return s, nil
}

func parseWhoisDate(v string) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range whoisDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Lines renders the WHOIS section.
func (s *WhoisSummary) Lines() []string {
	var lines []string
	if s.Country != "" {
		country := s.Country
		if len(country) == 2 {
			if name := CountryName(country); name != "" {
				country = fmt.Sprintf("%s (%s)", name, strings.ToUpper(country))
			}
		}
		lines = append(lines, fmt.Sprintf("%s Registrant country: %s", FlagEmoji(s.Country), country))
	}
	lines = append(lines,
		"Registrar: "+orNA(s.Registrar),
		"Created: "+whoisDate(s.Created, s.createdRaw),
		"Expires: "+whoisDate(s.Expires, s.expiresRaw),
	)
	if len(s.Status) > 0 {
		lines = append(lines, "Status: "+strings.Join(s.Status, ", "))
	}
	return lines
}

func whoisDate(t time.Time, raw string) string {
	if !t.IsZero() {
		return t.Format(certDateLayout)
	}
	return orNA(raw)
}
