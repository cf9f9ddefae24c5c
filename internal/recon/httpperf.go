package recon

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// pageMaxBody caps how much of a page is read.
	pageMaxBody = 5 << 20

	maxRedirects = 10

	DefaultUserAgent = "hostrecon/1.0"
)

var errTooManyRedirects = errors.New("too many redirects")

var sharedTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
	TLSHandshakeTimeout: 10 * time.Second,
	MaxIdleConns:        20,
	IdleConnTimeout:     30 * time.Second,
}

// PageFetch is one homepage retrieval.
type PageFetch struct {
	URL        string
	Scheme     string
	StatusCode int
	Status     string
	Latency    time.Duration
	Size       int
	Truncated  bool
	Redirects  int
	Server     string
	Encoding   string
	Downgraded bool
	Header     http.Header
	Cookies    []string
	Body       []byte
}

// WebClient fetches a target's homepage and well-known files.
type WebClient struct {
	UserAgent string
	Timeout   time.Duration
}

func (w *WebClient) userAgent() string {
	if w.UserAgent != "" {
		return w.UserAgent
	}
	return DefaultUserAgent
}

// client returns an http.Client that records redirect hops into hops.
func (w *WebClient) client(hops *int) *http.Client {
	return &http.Client{
		Timeout:   w.Timeout,
		Transport: sharedTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return errTooManyRedirects
			}
			*hops = len(via)
			return nil
		},
	}
}

// Fetch retrieves https://<host>/ and, when the HTTPS attempt fails, retries
// over plain HTTP and marks the result as downgraded.
func (w *WebClient) Fetch(ctx context.Context, host string) (*PageFetch, error) {
	page, httpsErr := w.fetchURL(ctx, "https://"+host+"/")
	if httpsErr == nil {
		return page, nil
	}
	if ctx.Err() != nil || errors.Is(httpsErr, errTooManyRedirects) {
		return nil, httpsErr
	}

	page, err := w.fetchURL(ctx, "http://"+host+"/")
	if err != nil {
		return nil, fmt.Errorf("https: %v; http: %w", httpsErr, err)
	}
	page.Downgraded = true
	return page, nil
}

func (w *WebClient) fetchURL(ctx context.Context, rawURL string) (*PageFetch, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent())
	// Set explicitly so the transport leaves Content-Encoding intact.
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	hops := 0
	start := time.Now()
	resp, err := w.client(&hops).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, pageMaxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	latency := time.Since(start)

	page := &PageFetch{
		URL:        resp.Request.URL.String(),
		Scheme:     resp.Request.URL.Scheme,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Latency:    latency,
		Redirects:  hops,
		Server:     resp.Header.Get("Server"),
		Encoding:   resp.Header.Get("Content-Encoding"),
		Header:     resp.Header,
	}
	if len(body) > pageMaxBody {
		body = body[:pageMaxBody]
		page.Truncated = true
	}
	page.Body = body
	page.Size = len(body)

	for _, c := range resp.Cookies() {
		page.Cookies = append(page.Cookies, c.Name)
	}
	return page, nil
}

// Get fetches an auxiliary path on the same origin as a prior page fetch.
// Non-2xx responses return a nil body and no error.
func (w *WebClient) Get(ctx context.Context, rawURL string, limit int64) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent())

	hops := 0
	resp, err := w.client(&hops).Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// Origin returns scheme://host of the fetched page.
func (p *PageFetch) Origin() string {
	u, err := url.Parse(p.URL)
	if err != nil {
		return p.URL
	}
	return u.Scheme + "://" + u.Host
}

// PerformanceLines renders the HTTP performance section.
func (p *PageFetch) PerformanceLines() []string {
	lines := []string{
		fmt.Sprintf("Status: %s (%s)", p.Status, p.URL),
		fmt.Sprintf("Response time: %d ms", p.Latency.Milliseconds()),
	}

	size := "Page size: " + formatBytes(p.Size)
	if p.Truncated {
		size += " (truncated)"
	}
	lines = append(lines, size)
	lines = append(lines, fmt.Sprintf("Redirects: %d", p.Redirects))

	if p.Server != "" {
		lines = append(lines, "Server: "+p.Server)
	} else {
		lines = append(lines, "Server: not disclosed")
	}

	if p.Encoding != "" && !strings.EqualFold(p.Encoding, "identity") {
		lines = append(lines, "Compression: enabled ("+p.Encoding+")")
	} else {
		lines = append(lines, "Compression: disabled")
	}

	if p.Downgraded {
		lines = append(lines, "⚠️ HTTPS unavailable, served over plain HTTP")
	}
	return lines
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
