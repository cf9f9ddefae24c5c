package recon

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"
)

// certExpiryWarnDays flags certificates expiring sooner than this.
const certExpiryWarnDays = 30

// certDateLayout renders expiry dates as DD-MM-YYYY.
const certDateLayout = "02-01-2006"

// securityHeaders are the headers counted by the security section.
var securityHeaders = []struct {
	header, label string
}{
	{"Strict-Transport-Security", "HSTS"},
	{"Content-Security-Policy", "CSP"},
	{"X-Frame-Options", "X-Frame-Options"},
	{"X-Content-Type-Options", "X-Content-Type-Options"},
}

// CheckSecurityHeaders splits the known security headers into present and
// missing labels.
func CheckSecurityHeaders(h http.Header) (present, missing []string) {
	for _, sh := range securityHeaders {
		if strings.TrimSpace(h.Get(sh.header)) != "" {
			present = append(present, sh.label)
		} else {
			missing = append(missing, sh.label)
		}
	}
	return present, missing
}

// CertInfo describes a server's leaf certificate.
type CertInfo struct {
	Subject  string    `json:"subject"`
	Issuer   string    `json:"issuer"`
	NotAfter time.Time `json:"not_after"`
}

// DaysLeft returns whole days until expiry relative to now, rounded down,
// so it is negative as soon as the certificate has expired.
func (c *CertInfo) DaysLeft(now time.Time) int {
	return int(math.Floor(c.NotAfter.Sub(now).Hours() / 24))
}

// InspectCertificate completes a TLS handshake with addr and returns the
// leaf certificate. Verification is skipped so that expired or self-signed
// certificates can still be reported.
func InspectCertificate(ctx context.Context, addr, serverName string, timeout time.Duration) (*CertInfo, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			InsecureSkipVerify: true,
			ServerName:         serverName,
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, fmt.Errorf("tls handshake with %s: no peer certificate", addr)
	}
	return certInfo(certs[0]), nil
}

func certInfo(cert *x509.Certificate) *CertInfo {
	issuer := cert.Issuer.CommonName
	if issuer == "" && len(cert.Issuer.Organization) > 0 {
		issuer = cert.Issuer.Organization[0]
	}
	if issuer == "" {
		issuer = "N/A"
	}
	return &CertInfo{
		Subject:  cert.Subject.CommonName,
		Issuer:   issuer,
		NotAfter: cert.NotAfter,
	}
}

// SecurityReport is the combined header and certificate inspection.
type SecurityReport struct {
	Present []string
	Missing []string
	// HeadersErr is set when the homepage could not be fetched.
	HeadersErr error
	Cert       *CertInfo
	CertErr    error
}

// Lines renders the security section. now anchors the expiry countdown.
func (r SecurityReport) Lines(now time.Time) []string {
	var lines []string

	if r.HeadersErr == nil {
		total := len(r.Present) + len(r.Missing)
		line := fmt.Sprintf("Security headers: %d/%d", len(r.Present), total)
		if len(r.Present) > 0 {
			line += " (" + strings.Join(r.Present, ", ") + ")"
		}
		lines = append(lines, line)
		if len(r.Missing) > 0 {
			lines = append(lines, "Missing: "+strings.Join(r.Missing, ", "))
		}
	}

	if r.Cert != nil {
		lines = append(lines, "SSL certificate issued by: "+r.Cert.Issuer)
		days := r.Cert.DaysLeft(now)
		expiry := r.Cert.NotAfter.Format(certDateLayout)
		switch {
		case days < 0:
			lines = append(lines, fmt.Sprintf("❌ Certificate expired on %s (%d days ago)", expiry, -days))
		case days < certExpiryWarnDays:
			lines = append(lines, fmt.Sprintf("⚠️ Expires on %s (%d days left)", expiry, days))
		default:
			lines = append(lines, fmt.Sprintf("Expires on %s (%d days left)", expiry, days))
		}
	}
	return lines
}
