// Package ports provides the port catalog scanned by hostrecon.
package ports

import (
	"fmt"
	"sort"
)

// Risk is the severity marker attached to an open port.
type Risk string

const (
	RiskInfo     Risk = "info"
	RiskWarning  Risk = "warning"
	RiskCritical Risk = "critical"
)

// Marker returns the display marker for the risk level.
func (r Risk) Marker() string {
	switch r {
	case RiskCritical:
		return "🔴"
	case RiskWarning:
		return "🟡"
	default:
		return "🟢"
	}
}

// Spec describes a catalog port and why it matters when open.
type Spec struct {
	Port     int    `json:"port" yaml:"port"`
	Service  string `json:"service" yaml:"service"`
	Advisory string `json:"advisory" yaml:"advisory"`
	Risk     Risk   `json:"risk" yaml:"risk"`
}

// Catalog is the default set of well-known TCP ports, sorted ascending.
var Catalog = []Spec{
	{21, "FTP", "Cleartext file transfer; credentials travel unencrypted", RiskWarning},
	{22, "SSH", "Remote shell; make sure password auth is disabled", RiskInfo},
	{23, "Telnet", "Cleartext remote shell; should never be exposed", RiskCritical},
	{25, "SMTP", "Mail relay; verify it is not an open relay", RiskInfo},
	{53, "DNS", "Name server; check recursion is restricted", RiskInfo},
	{80, "HTTP", "Web server without TLS", RiskInfo},
	{110, "POP3", "Cleartext mail retrieval", RiskWarning},
	{143, "IMAP", "Cleartext mail retrieval", RiskWarning},
	{443, "HTTPS", "Web server with TLS", RiskInfo},
	{445, "SMB", "Windows file sharing; frequent ransomware entry point", RiskCritical},
	{993, "IMAPS", "Mail retrieval over TLS", RiskInfo},
	{995, "POP3S", "Mail retrieval over TLS", RiskInfo},
	{1433, "MSSQL", "Database reachable from the internet", RiskCritical},
	{3306, "MySQL", "Database reachable from the internet", RiskCritical},
	{3389, "RDP", "Remote desktop; common brute-force target", RiskCritical},
	{5432, "PostgreSQL", "Database reachable from the internet", RiskCritical},
	{6379, "Redis", "In-memory store, often deployed without auth", RiskCritical},
	{8080, "HTTP-Proxy", "Alternate HTTP or proxy; often an admin panel", RiskWarning},
	{8443, "HTTPS-Alt", "Alternate HTTPS; often a management interface", RiskWarning},
}

// Lookup returns the catalog entry for port. Ports outside the catalog get
// a generic informational entry.
func Lookup(port int) Spec {
	for _, s := range Catalog {
		if s.Port == port {
			return s
		}
	}
	return Spec{
		Port:     port,
		Service:  "unknown",
		Advisory: fmt.Sprintf("Port %d is not in the catalog", port),
		Risk:     RiskInfo,
	}
}

// Select builds a deduplicated, ascending spec list for the given port
// numbers, resolving each through Lookup.
func Select(nums []int) []Spec {
	seen := make(map[int]bool, len(nums))
	specs := make([]Spec, 0, len(nums))
	for _, n := range nums {
		if seen[n] {
			continue
		}
		seen[n] = true
		specs = append(specs, Lookup(n))
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Port < specs[j].Port })
	return specs
}
