package recon

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

//go:embed fingerprints.json
var fingerprintsJSON []byte

// FingerprintRule defines a pattern-matching rule for technology detection.
type FingerprintRule struct {
	Name     string        `json:"name"`
	Category string        `json:"category"`
	Headers  []headerMatch `json:"headers,omitempty"`
	Body     []string      `json:"body,omitempty"`
	Cookies  []string      `json:"cookies,omitempty"`
	Implies  []string      `json:"implies,omitempty"`
}

type headerMatch struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	regex   *regexp.Regexp
}

// Technology is one detected technology.
type Technology struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

var categoryLabels = map[string]string{
	"web-server": "Web server",
	"language":   "Language",
	"framework":  "Framework",
	"cms":        "CMS",
	"cdn-waf":    "CDN/WAF",
	"analytics":  "Analytics",
	"js-library": "JavaScript",
	"ecommerce":  "E-commerce",
	"hosting":    "Hosting",
}

var (
	fingerprintRules []FingerprintRule
	rulesByName      map[string]FingerprintRule
	fingerprintOnce  sync.Once
)

func loadFingerprints() {
	fingerprintOnce.Do(func() {
		if err := json.Unmarshal(fingerprintsJSON, &fingerprintRules); err != nil {
			return
		}
		rulesByName = make(map[string]FingerprintRule, len(fingerprintRules))
		for i := range fingerprintRules {
			for j := range fingerprintRules[i].Headers {
				h := &fingerprintRules[i].Headers[j]
				if h.Pattern != "" {
					h.regex, _ = regexp.Compile("(?i)" + h.Pattern)
				}
			}
			rulesByName[fingerprintRules[i].Name] = fingerprintRules[i]
		}
	})
}

// probeData holds the raw HTTP response data for fingerprinting.
type probeData struct {
	headers map[string]string // lowercase header name → value
	body    string
	cookies []string // cookie names
}

func probeDataFromPage(p *PageFetch) *probeData {
	headers := make(map[string]string, len(p.Header))
	for name, vals := range p.Header {
		if len(vals) > 0 {
			headers[strings.ToLower(name)] = vals[0]
		}
	}
	return &probeData{headers: headers, body: string(p.Body), cookies: p.Cookies}
}

// detectTechnologies applies the fingerprint rules to data, adds implied
// technologies, and returns the result sorted by category then name.
func detectTechnologies(data *probeData) []Technology {
	loadFingerprints()

	found := make(map[string]Technology)
	var add func(rule FingerprintRule)
	add = func(rule FingerprintRule) {
		if _, ok := found[rule.Name]; ok {
			return
		}
		found[rule.Name] = Technology{Name: rule.Name, Category: rule.Category}
		for _, name := range rule.Implies {
			if implied, ok := rulesByName[name]; ok {
				add(implied)
			}
		}
	}

	for _, rule := range fingerprintRules {
		if matchesRule(rule, data) {
			add(rule)
		}
	}

	techs := make([]Technology, 0, len(found))
	for _, t := range found {
		techs = append(techs, t)
	}
	sortTechnologies(techs)
	return techs
}

func sortTechnologies(techs []Technology) {
	sort.Slice(techs, func(i, j int) bool {
		if techs[i].Category != techs[j].Category {
			return techs[i].Category < techs[j].Category
		}
		return techs[i].Name < techs[j].Name
	})
}

func matchesRule(rule FingerprintRule, data *probeData) bool {
	// Check header patterns.
	for _, hm := range rule.Headers {
		headerVal, exists := data.headers[strings.ToLower(hm.Name)]
		if !exists {
			continue
		}
		if hm.regex != nil && hm.regex.MatchString(headerVal) {
			return true
		}
		if hm.Pattern == "" && headerVal != "" {
			return true
		}
	}

	// Check body substrings.
	bodyLower := strings.ToLower(data.body)
	for _, substr := range rule.Body {
		if strings.Contains(bodyLower, strings.ToLower(substr)) {
			return true
		}
	}

	// Check cookie names.
	for _, cookieName := range rule.Cookies {
		for _, c := range data.cookies {
			if strings.EqualFold(c, cookieName) {
				return true
			}
		}
	}

	return false
}

// PageMeta holds document metadata read from the homepage markup.
type PageMeta struct {
	Title     string
	Generator string
}

// ParsePageMeta tokenizes body and extracts the <title> text and the
// <meta name="generator"> content. Parsing stops at </head> or <body>.
func ParsePageMeta(body []byte) PageMeta {
	var meta PageMeta
	z := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return meta
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "title":
				inTitle = meta.Title == ""
			case "meta":
				if meta.Generator == "" && strings.EqualFold(attr(tok, "name"), "generator") {
					meta.Generator = strings.TrimSpace(attr(tok, "content"))
				}
			case "body":
				return meta
			}
		case html.TextToken:
			if inTitle {
				meta.Title = strings.Join(strings.Fields(string(z.Text())), " ")
				inTitle = false
			}
		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == "head" {
				return meta
			}
			if tok.Data == "title" {
				inTitle = false
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// TechnologyLines renders the technologies section for a fetched page.
func TechnologyLines(page *PageFetch) []string {
	meta := ParsePageMeta(page.Body)
	techs := detectTechnologies(probeDataFromPage(page))

	var lines []string
	if meta.Title != "" {
		lines = append(lines, "Title: "+truncate(meta.Title, 80))
	}
	if meta.Generator != "" {
		lines = append(lines, "Generator: "+meta.Generator)
	}
	if len(techs) == 0 {
		return append(lines, "No known technologies detected")
	}
	for _, t := range techs {
		label, ok := categoryLabels[t.Category]
		if !ok {
			label = t.Category
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, t.Name))
	}
	return lines
}
