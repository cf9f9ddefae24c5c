package recon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const (
	robotsMaxBody  = 512 << 10
	sitemapMaxBody = 5 << 20

	// robotsPathPreview bounds the disallowed paths listed in the report.
	robotsPathPreview = 5
)

// RobotsInfo is the parsed content of a robots.txt file.
type RobotsInfo struct {
	Found     bool     `json:"found"`
	Disallow  []string `json:"disallow,omitempty"`
	Sitemaps  []string `json:"sitemaps,omitempty"`
	UserAgent int      `json:"user_agent_groups"`
}

// ParseRobots reads robots.txt directives. Disallow paths are deduplicated
// across user-agent groups; empty Disallow lines allow everything and are
// skipped.
func ParseRobots(r io.Reader) RobotsInfo {
	info := RobotsInfo{Found: true}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "user-agent":
			info.UserAgent++
		case "disallow":
			if value != "" && !seen[value] {
				seen[value] = true
				info.Disallow = append(info.Disallow, value)
			}
		case "sitemap":
			if value != "" {
				info.Sitemaps = append(info.Sitemaps, value)
			}
		}
	}
	return info
}

// SitemapInfo summarises a sitemap document.
type SitemapInfo struct {
	URL     string `json:"url"`
	Found   bool   `json:"found"`
	Entries int    `json:"entries"`
	// Index is set for a sitemap index, whose <loc> entries are sitemaps.
	Index bool `json:"index"`
}

// CountSitemapEntries counts <loc> elements in a sitemap document. root is
// the document element name, "urlset" or "sitemapindex" for a valid sitemap.
func CountSitemapEntries(body []byte) (entries int, root string, err error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return entries, root, nil
		}
		if err != nil {
			return entries, root, fmt.Errorf("parse sitemap: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if root == "" {
			root = se.Name.Local
		}
		if se.Name.Local == "loc" {
			entries++
		}
	}
}

// RobotsReport combines robots.txt and sitemap inspection.
type RobotsReport struct {
	Robots  RobotsInfo  `json:"robots"`
	Sitemap SitemapInfo `json:"sitemap"`
}

// InspectRobots fetches robots.txt and the sitemap from origin
// (scheme://host). The sitemap is the first one robots.txt declares, or
// /sitemap.xml.
func (w *WebClient) InspectRobots(ctx context.Context, origin string) (RobotsReport, error) {
	var report RobotsReport

	body, _, err := w.Get(ctx, origin+"/robots.txt", robotsMaxBody)
	if err != nil {
		return report, fmt.Errorf("fetch robots.txt: %w", err)
	}
	if body != nil {
		report.Robots = ParseRobots(bytes.NewReader(body))
	}

	sitemapURL := origin + "/sitemap.xml"
	if len(report.Robots.Sitemaps) > 0 {
		sitemapURL = report.Robots.Sitemaps[0]
	}
	report.Sitemap.URL = sitemapURL

	body, _, err = w.Get(ctx, sitemapURL, sitemapMaxBody)
	if err != nil {
		return report, fmt.Errorf("fetch sitemap: %w", err)
	}
	if body != nil {
		entries, root, _ := CountSitemapEntries(body)
		// Anything else, such as an HTML soft-404 page, counts as absent.
		report.Sitemap.Found = root == "urlset" || root == "sitemapindex"
		report.Sitemap.Entries = entries
		report.Sitemap.Index = root == "sitemapindex"
	}
	return report, nil
}

// Lines renders the robots section.
func (r RobotsReport) Lines() []string {
	var lines []string

	if !r.Robots.Found {
		lines = append(lines, "robots.txt: not found")
	} else {
		lines = append(lines, fmt.Sprintf("robots.txt: found, %d Disallow rule(s)", len(r.Robots.Disallow)))
		paths := r.Robots.Disallow
		if len(paths) > robotsPathPreview {
			paths = paths[:robotsPathPreview]
		}
		for _, p := range paths {
			lines = append(lines, "  Disallow: "+p)
		}
		if extra := len(r.Robots.Disallow) - len(paths); extra > 0 {
			lines = append(lines, fmt.Sprintf("  … and %d more", extra))
		}
		for _, s := range r.Robots.Sitemaps {
			lines = append(lines, "Sitemap declared: "+s)
		}
	}

	switch {
	case !r.Sitemap.Found:
		lines = append(lines, "Sitemap: not found")
	case r.Sitemap.Index:
		lines = append(lines, fmt.Sprintf("Sitemap index: %d sitemap(s) (%s)", r.Sitemap.Entries, r.Sitemap.URL))
	default:
		lines = append(lines, fmt.Sprintf("Sitemap: %d URL(s) (%s)", r.Sitemap.Entries, r.Sitemap.URL))
	}
	return lines
}
