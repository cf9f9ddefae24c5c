// Package target validates and resolves the host a scan runs against.
package target

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"regexp"
	"strings"
)

// Kind distinguishes IP literals from domain names.
type Kind int

const (
	KindInvalid Kind = iota
	KindIP
	KindDomain
)

func (k Kind) String() string {
	switch k {
	case KindIP:
		return "ip"
	case KindDomain:
		return "domain"
	default:
		return "invalid"
	}
}

// Target is a validated scan target. It is not modified once resolved.
type Target struct {
	Input    string `json:"input"`
	Kind     Kind   `json:"-"`
	IP       string `json:"ip"`
	Hostname string `json:"hostname,omitempty"`
}

// IsDomain reports whether the target was given as a domain name.
func (t Target) IsDomain() bool { return t.Kind == KindDomain }

// Host returns the name used for HTTP and TLS requests: the domain when one
// was given, the IP otherwise.
func (t Target) Host() string {
	if t.Kind == KindDomain {
		return t.Input
	}
	return t.IP
}

// InvalidTargetError is returned when input is neither an IP nor a domain.
type InvalidTargetError struct {
	Input string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target %q: expected a domain name or an IP address", e.Input)
}

// ResolutionError is returned when a domain has no address record.
type ResolutionError struct {
	Domain string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("could not resolve %s: no address records", e.Domain)
	}
	return fmt.Sprintf("could not resolve %s: %s", e.Domain, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver is the subset of *net.Resolver used for target resolution.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)

// Normalize trims whitespace, lowercases and drops a trailing root dot.
func Normalize(input string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(input)), ".")
}

// Classify reports whether input is an IP literal or a plausible domain.
// It performs no network I/O.
func Classify(input string) (Kind, error) {
	s := Normalize(input)
	if s == "" {
		return KindInvalid, &InvalidTargetError{Input: input}
	}
	if _, err := netip.ParseAddr(s); err == nil {
		return KindIP, nil
	}
	if len(s) <= 253 && domainPattern.MatchString(s) {
		return KindDomain, nil
	}
	return KindInvalid, &InvalidTargetError{Input: input}
}

// Resolve classifies input and fills in the address data. Domains are
// resolved forward (IPv4 preferred) and fail with *ResolutionError when no
// address exists. IPs get a best-effort reverse lookup for display only.
func Resolve(ctx context.Context, input string, r Resolver) (Target, error) {
	kind, err := Classify(input)
	if err != nil {
		return Target{}, err
	}
	t := Target{Input: Normalize(input), Kind: kind}

	if kind == KindIP {
		addr, _ := netip.ParseAddr(t.Input)
		t.IP = addr.Unmap().String()
		t.Input = t.IP
		if names, err := r.LookupAddr(ctx, t.IP); err == nil && len(names) > 0 {
			t.Hostname = strings.TrimSuffix(names[0], ".")
		}
		return t, nil
	}

	addrs, err := r.LookupIPAddr(ctx, t.Input)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return Target{}, &ResolutionError{Domain: t.Input}
		}
		return Target{}, &ResolutionError{Domain: t.Input, Err: err}
	}
	ip := pickAddr(addrs)
	if ip == "" {
		return Target{}, &ResolutionError{Domain: t.Input}
	}
	t.IP = ip
	t.Hostname = t.Input
	return t, nil
}

func pickAddr(addrs []net.IPAddr) string {
	var v6 string
	for _, a := range addrs {
		if a.IP == nil {
			continue
		}
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String()
		}
		if v6 == "" {
			v6 = a.IP.String()
		}
	}
	return v6
}
