// Package recon implements the individual hostrecon probes.
package recon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	crtshBaseURL    = "https://crt.sh/"
	crtshMaxBody    = 50 * 1024 * 1024 // 50MB
	crtshRetryDelay = 3 * time.Second

	// DefaultSubdomainLimit is how many subdomains the report lists.
	DefaultSubdomainLimit = 15
)

type crtshEntry struct {
	NameValue string `json:"name_value"`
}

// statusError is a non-200 response from crt.sh.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	if e.code == http.StatusTooManyRequests {
		return "crt.sh rate limited (429)"
	}
	return fmt.Sprintf("crt.sh returned status %d", e.code)
}

// SubdomainFinder discovers subdomains from Certificate Transparency logs
// via crt.sh.
type SubdomainFinder struct {
	// BaseURL defaults to https://crt.sh/.
	BaseURL    string
	UserAgent  string
	Client     *http.Client
	RetryDelay time.Duration
}

// SubdomainReport lists discovered subdomains. Shown holds at most Limit
// names; Total counts all of them.
type SubdomainReport struct {
	Domain string   `json:"domain"`
	Total  int      `json:"total"`
	Limit  int      `json:"limit"`
	Shown  []string `json:"shown"`
}

// Discover queries crt.sh for certificates issued under domain and returns
// the distinct subdomains, sorted. Wildcard names and the apex itself are
// excluded.
func (f *SubdomainFinder) Discover(ctx context.Context, domain string, limit int) (SubdomainReport, error) {
	if limit <= 0 {
		limit = DefaultSubdomainLimit
	}
	report := SubdomainReport{Domain: domain, Limit: limit}

	body, err := f.fetch(ctx, f.queryURL(domain))
	if err != nil {
		return report, fmt.Errorf("crt.sh fetch for %s: %w", domain, err)
	}

	hosts, err := parseCrtshResponse(body, domain)
	if err != nil {
		return report, fmt.Errorf("crt.sh JSON parse for %s: %w", domain, err)
	}

	report.Total = len(hosts)
	if len(hosts) > limit {
		hosts = hosts[:limit]
	}
	report.Shown = hosts
	return report, nil
}

// Lines renders the subdomain section.
func (r SubdomainReport) Lines() []string {
	if r.Total == 0 {
		return []string{"No subdomains found in CT logs"}
	}
	var lines []string
	if r.Total > len(r.Shown) {
		lines = append(lines, fmt.Sprintf("Found %d subdomains (showing first %d):", r.Total, len(r.Shown)))
	} else {
		lines = append(lines, fmt.Sprintf("Found %d subdomain(s):", r.Total))
	}
	for _, h := range r.Shown {
		lines = append(lines, "  "+h)
	}
	return lines
}

func (f *SubdomainFinder) queryURL(domain string) string {
	base := f.BaseURL
	if base == "" {
		base = crtshBaseURL
	}
	q := url.Values{}
	q.Set("q", "%."+domain)
	q.Set("output", "json")
	return base + "?" + q.Encode()
}

// parseCrtshResponse extracts distinct subdomains of domain from a crt.sh
// JSON body.
func parseCrtshResponse(body []byte, domain string) ([]string, error) {
	var entries []crtshEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, err
	}

	domain = strings.ToLower(domain)
	seen := make(map[string]bool)
	var hosts []string

	for _, entry := range entries {
		// name_value can contain multiple names separated by newlines.
		for _, name := range strings.Split(entry.NameValue, "\n") {
			name = strings.TrimSpace(strings.ToLower(name))
			if name == "" || strings.HasPrefix(name, "*.") {
				continue
			}
			if !strings.HasSuffix(name, "."+domain) {
				continue
			}
			if !seen[name] {
				seen[name] = true
				hosts = append(hosts, name)
			}
		}
	}

	sort.Strings(hosts)
	return hosts, nil
}

func (f *SubdomainFinder) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	body, err := f.doRequest(ctx, rawURL)
	if err == nil {
		return body, nil
	}

	// Rate limits and client errors are not retried.
	var se *statusError
	if errors.As(err, &se) && se.code < 500 {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, err
	}

	delay := f.RetryDelay
	if delay <= 0 {
		delay = crtshRetryDelay
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(delay):
	}

	return f.doRequest(ctx, rawURL)
}

func (f *SubdomainFinder) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	ua := f.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, crtshMaxBody))
	if err != nil {
		return nil, fmt.Errorf("crt.sh read body: %w", err)
	}

	return body, nil
}
