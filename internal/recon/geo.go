package recon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	geoBaseURL = "http://ip-api.com/json/"
	geoMaxBody = 64 << 10
	notAvail   = "N/A"
)

// GeoInfo is the flat key/value answer from the geolocation service.
type GeoInfo struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	Region      string `json:"regionName"`
	City        string `json:"city"`
	ISP         string `json:"isp"`
	Org         string `json:"org"`
	AS          string `json:"as"`
}

// GeoLocator looks up IP geolocation from ip-api.com.
type GeoLocator struct {
	// BaseURL defaults to http://ip-api.com/json/.
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

// Locate fetches geolocation data for ip.
func (g *GeoLocator) Locate(ctx context.Context, ip string) (*GeoInfo, error) {
	base := g.BaseURL
	if base == "" {
		base = geoBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+ip, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	ua := g.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geolocation lookup for %s: %w", ip, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation lookup for %s: status %d", ip, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, geoMaxBody))
	if err != nil {
		return nil, fmt.Errorf("read geolocation body: %w", err)
	}

	var info GeoInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse geolocation response: %w", err)
	}
	return &info, nil
}

// GeoLines renders the geolocation section. hostname is the reverse DNS
// name of the target, if known.
func GeoLines(info *GeoInfo, hostname string) []string {
	if info.Status == "fail" {
		reason := info.Message
		if reason == "" {
			reason = "unknown reason"
		}
		return []string{"No geolocation data: " + reason}
	}

	country := info.Country
	if country == "" {
		country = CountryName(info.CountryCode)
	}

	code := orNA(info.CountryCode)
	return []string{
		fmt.Sprintf("%s Country: %s (%s)", FlagEmoji(info.CountryCode), orNA(country), code),
		fmt.Sprintf("City: %s, %s", orNA(info.City), orNA(info.Region)),
		"ISP: " + orNA(info.ISP),
		"Organization: " + orNA(info.Org),
		"ASN: " + orNA(info.AS),
		"Reverse DNS: " + orNA(hostname),
	}
}

// FlagEmoji converts an ISO 3166-1 alpha-2 code into its flag emoji, or 🌐
// for anything else.
func FlagEmoji(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "🌐"
	}
	const offset = 0x1F1E6 - 'A'
	return string([]rune{rune(code[0]) + offset, rune(code[1]) + offset})
}

// CountryName returns the English name for a region code, or "" when the
// code is not a known region.
func CountryName(code string) string {
	region, err := language.ParseRegion(strings.TrimSpace(code))
	if err != nil {
		return ""
	}
	return display.English.Regions().Name(region)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvail
	}
	return s
}
