package recon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnverified/hostrecon/internal/engine"
	"github.com/vulnverified/hostrecon/internal/target"
	"github.com/vulnverified/hostrecon/pkg/ports"
)

var (
	ipTarget     = target.Target{Input: "127.0.0.1", Kind: target.KindIP, IP: "127.0.0.1"}
	domainTarget = target.Target{Input: "example.com", Kind: target.KindDomain, IP: "127.0.0.1"}
)

func TestProbes_ImplementInterface(t *testing.T) {
	probes := []engine.Probe{
		&GeoProbe{}, &DNSProbe{}, &BlacklistProbe{}, &HTTPProbe{}, &SecurityProbe{},
		&TechnologiesProbe{}, &RobotsProbe{}, &PortProbe{}, &SubdomainProbe{}, &WhoisProbe{},
	}

	seen := make(map[engine.Section]bool)
	for _, p := range probes {
		assert.False(t, seen[p.Name()], "duplicate section %s", p.Name())
		seen[p.Name()] = true
	}
	for _, s := range engine.CanonicalOrder {
		assert.True(t, seen[s], "no probe for section %s", s)
	}
}

func TestDomainOnlyProbes_SkipIPTargets(t *testing.T) {
	for _, p := range []engine.Probe{&DNSProbe{}, &SubdomainProbe{}, &WhoisProbe{}} {
		pr, err := p.Run(context.Background(), ipTarget)
		require.NoError(t, err, p.Name())
		require.Len(t, pr.Lines, 1)
		assert.True(t, strings.HasPrefix(pr.Lines[0], "skipped: "), pr.Lines[0])
	}
}

func TestDNSProbe_WithZoneTransfer(t *testing.T) {
	zone := &fakeZone{records: map[string][]string{
		"example.com.": {
			"example.com. 300 IN A 93.184.216.34",
			"example.com. 300 IN NS 127.0.0.1.",
		},
	}}
	addr := startDNSServer(t, zone.handler(t))

	probe := &DNSProbe{
		Server:       addr,
		QueryTimeout: time.Second,
		ZoneTransfer: &ZoneTransferChecker{
			Port:        strconv.Itoa(closedPort(t)),
			DialTimeout: 200 * time.Millisecond,
			ReadTimeout: 200 * time.Millisecond,
		},
	}
	pr, err := probe.Run(context.Background(), domainTarget)
	require.NoError(t, err)
	assert.Contains(t, pr.Lines, "A (IPv4): 93.184.216.34")
	assert.Equal(t, "Zone transfer: refused by all 1 nameservers", pr.Lines[len(pr.Lines)-1])
}

func TestDNSProbe_AllQueriesFail(t *testing.T) {
	probe := &DNSProbe{Server: "127.0.0.1:1", QueryTimeout: 200 * time.Millisecond}
	_, err := probe.Run(context.Background(), domainTarget)
	assert.Error(t, err)
}

func TestBlacklistProbe_Run(t *testing.T) {
	addr := startDNSServer(t, (&fakeZone{}).handler(t))

	probe := &BlacklistProbe{Zones: []string{"bl.example"}, Server: addr, QueryTimeout: time.Second}
	pr, err := probe.Run(context.Background(), ipTarget)
	require.NoError(t, err)
	assert.Equal(t, []string{"✅ IP clean — not listed in any of 1 blacklists"}, pr.Lines)
}

func TestPortProbe_Run(t *testing.T) {
	port := listen(t)
	probe := &PortProbe{
		Specs:          []ports.Spec{{Port: port, Service: "HTTP", Advisory: "test", Risk: ports.RiskInfo}},
		PerPortTimeout: time.Second,
		Workers:        2,
	}

	pr, err := probe.Run(context.Background(), ipTarget)
	require.NoError(t, err)
	require.Len(t, pr.Lines, 1)
	assert.Contains(t, pr.Lines[0], "/tcp HTTP")
}

func TestSubdomainProbe_FailureIsDistinct(t *testing.T) {
	finder := crtshServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := (&SubdomainProbe{Finder: finder}).Run(context.Background(), domainTarget)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subdomain search failed")
	assert.Contains(t, engine.Diagnostic(err), "❌")
}

// webTarget addresses a local test server through Host(); the IP is used
// for the certificate dial.
func webTarget(host string) target.Target {
	return target.Target{Input: host, Kind: target.KindDomain, IP: "127.0.0.1"}
}

func closedHost(t *testing.T) string {
	return "127.0.0.1:" + strconv.Itoa(closedPort(t))
}

func TestSecurityProbe_HeadersWithoutCertificate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Strict-Transport-Security", "max-age=63072000")
		w.Header().Set("X-Frame-Options", "DENY")
	}))
	defer srv.Close()

	probe := &SecurityProbe{
		Client:  &WebClient{Timeout: 2 * time.Second},
		TLSPort: strconv.Itoa(closedPort(t)),
	}
	pr, err := probe.Run(context.Background(), webTarget(hostOf(srv)))

	var partial *engine.PartialDataError
	require.True(t, errors.As(err, &partial), "got %v", err)
	assert.Equal(t, "certificate", partial.Missing)
	require.NotEmpty(t, pr.Lines)
	assert.Equal(t, "Security headers: 2/4 (HSTS, X-Frame-Options)", pr.Lines[0])
	assert.Equal(t, "Missing: CSP, X-Content-Type-Options", pr.Lines[1])
}

func TestSecurityProbe_CertificateWithoutHeaders(t *testing.T) {
	tlsSrv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer tlsSrv.Close()
	_, tlsPort, err := net.SplitHostPort(hostOf(tlsSrv))
	require.NoError(t, err)

	probe := &SecurityProbe{
		Client:  &WebClient{Timeout: 2 * time.Second},
		TLSPort: tlsPort,
	}
	pr, err := probe.Run(context.Background(), webTarget(closedHost(t)))

	var partial *engine.PartialDataError
	require.True(t, errors.As(err, &partial), "got %v", err)
	assert.Equal(t, "security headers", partial.Missing)
	require.NotEmpty(t, pr.Lines)
	assert.True(t, strings.HasPrefix(pr.Lines[0], "SSL certificate issued by: "), pr.Lines[0])
}

func TestSecurityProbe_BothFail(t *testing.T) {
	probe := &SecurityProbe{
		Client:  &WebClient{Timeout: 2 * time.Second},
		TLSPort: strconv.Itoa(closedPort(t)),
	}
	pr, err := probe.Run(context.Background(), webTarget(closedHost(t)))

	require.Error(t, err)
	var partial *engine.PartialDataError
	assert.False(t, errors.As(err, &partial), "both sides failing is not partial data")
	assert.Empty(t, pr.Lines)
}

func TestHTTPProbe_Run(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx/1.25.3")
		w.Write([]byte("<html><title>Home</title></html>"))
	}))
	defer srv.Close()

	pr, err := (&HTTPProbe{Client: &WebClient{Timeout: 2 * time.Second}}).Run(context.Background(), webTarget(hostOf(srv)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pr.Lines[0], "Status: 200 OK"), pr.Lines[0])
	assert.Contains(t, pr.Lines, "Server: nginx/1.25.3")
}

func TestHTTPProbe_Unreachable(t *testing.T) {
	_, err := (&HTTPProbe{Client: &WebClient{Timeout: time.Second}}).Run(context.Background(), webTarget(closedHost(t)))
	assert.Error(t, err)
}

func TestTechnologiesProbe_Run(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx")
		w.Write([]byte(`<html><head><title>Shop</title><meta name="generator" content="Hugo 0.120"></head></html>`))
	}))
	defer srv.Close()

	pr, err := (&TechnologiesProbe{Client: &WebClient{Timeout: 2 * time.Second}}).Run(context.Background(), webTarget(hostOf(srv)))
	require.NoError(t, err)
	assert.Equal(t, "Title: Shop", pr.Lines[0])
	assert.Equal(t, "Generator: Hugo 0.120", pr.Lines[1])
	assert.Contains(t, pr.Lines, "Web server: nginx")
}

func TestRobotsProbe_FallsBackToHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.Write([]byte("User-agent: *\nDisallow: /admin\nDisallow: /tmp\n"))
		case "/sitemap.xml":
			w.Write([]byte(`<urlset><url><loc>/a</loc></url><url><loc>/b</loc></url></urlset>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	pr, err := (&RobotsProbe{Client: &WebClient{Timeout: 2 * time.Second}}).Run(context.Background(), webTarget(hostOf(srv)))
	require.NoError(t, err)
	assert.Equal(t, "robots.txt: found, 2 Disallow rule(s)", pr.Lines[0])
	assert.Equal(t, "Sitemap: 2 URL(s) ("+srv.URL+"/sitemap.xml)", pr.Lines[len(pr.Lines)-1])
}

func TestRobotsProbe_Unreachable(t *testing.T) {
	_, err := (&RobotsProbe{Client: &WebClient{Timeout: time.Second}}).Run(context.Background(), webTarget(closedHost(t)))
	assert.Error(t, err)
}

func TestGeoProbe_Run(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","country":"Chile","countryCode":"CL","regionName":"Santiago Metropolitan","city":"Santiago","isp":"Example ISP","org":"Example Org","as":"AS64500 Example"}`))
	}))
	defer srv.Close()

	probe := &GeoProbe{Locator: &GeoLocator{BaseURL: srv.URL + "/json/"}}
	tgt := target.Target{Input: "203.0.113.7", Kind: target.KindIP, IP: "203.0.113.7", Hostname: "host.example.net"}

	pr, err := probe.Run(context.Background(), tgt)
	require.NoError(t, err)
	assert.Equal(t, "🇨🇱 Country: Chile (CL)", pr.Lines[0])
	assert.Equal(t, "Reverse DNS: host.example.net", pr.Lines[len(pr.Lines)-1])
}
