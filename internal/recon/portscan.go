package recon

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vulnverified/hostrecon/pkg/ports"
)

// PortScanResult is one scanned port. Only open ports are returned by
// PortScan, so Open is always true in its output.
type PortScanResult struct {
	ports.Spec
	Open bool `json:"open"`
}

// PortScan performs TCP connect scanning of ip against specs. Each port gets
// a single attempt bounded by perPortTimeout. At most maxWorkers connects are
// in flight; limiter, when non-nil, paces connect attempts. Closed and
// filtered ports are silently skipped. Results are sorted by port.
func PortScan(ctx context.Context, ip string, specs []ports.Spec, perPortTimeout time.Duration, maxWorkers int, limiter *rate.Limiter) []PortScanResult {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if maxWorkers > len(specs) {
		maxWorkers = len(specs)
	}

	work := make(chan ports.Spec, len(specs))
	for _, s := range specs {
		work <- s
	}
	close(work)

	var (
		mu      sync.Mutex
		results []PortScanResult
	)

	var wg sync.WaitGroup
	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dialer := net.Dialer{Timeout: perPortTimeout}

			for s := range work {
				select {
				case <-ctx.Done():
					return
				default:
				}

				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
				}

				addr := net.JoinHostPort(ip, strconv.Itoa(s.Port))
				conn, err := dialer.DialContext(ctx, "tcp", addr)
				if err != nil {
					continue
				}
				conn.Close()

				mu.Lock()
				results = append(results, PortScanResult{Spec: s, Open: true})
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Port < results[j].Port
	})
	return results
}

// PortLines renders open ports as report lines.
func PortLines(results []PortScanResult) []string {
	if len(results) == 0 {
		return []string{"No common ports open"}
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("%s %d/tcp %s — %s", r.Risk.Marker(), r.Port, r.Service, r.Advisory))
	}
	return lines
}
