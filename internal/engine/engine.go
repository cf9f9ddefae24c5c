package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vulnverified/hostrecon/internal/target"
)

// Config holds the runtime configuration for the orchestrator.
type Config struct {
	// ProbeWorkers bounds concurrently running probes. Zero means one
	// worker per probe.
	ProbeWorkers int
	// DefaultTimeout applies to probes reporting a zero Timeout.
	DefaultTimeout time.Duration
	// Deadline is an advisory scan-wide limit. Probes still running when it
	// passes are reported as timed out; they are not interrupted.
	Deadline time.Duration
	Logger   *slog.Logger
}

const defaultProbeTimeout = 15 * time.Second

// Scan validates and resolves input, then runs every probe against it.
// Classification and resolution errors are returned before any probe runs.
func Scan(ctx context.Context, cfg Config, input string, resolver target.Resolver, probes []Probe, progress ProgressReporter) (*ScanReport, error) {
	tgt, err := target.Resolve(ctx, input, resolver)
	if err != nil {
		return nil, err
	}
	return Run(ctx, cfg, tgt, probes, progress), nil
}

// Run executes all probes under a bounded worker pool and waits for each to
// reach a terminal state. It always returns a report.
func Run(ctx context.Context, cfg Config, tgt target.Target, probes []Probe, progress ProgressReporter) *ScanReport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if progress == nil {
		progress = nopProgress{}
	}

	report := NewReport(uuid.NewString(), tgt, OrderFor(probes))
	report.StartedAt = time.Now()
	logger = logger.With("scan_id", report.ID, "target", tgt.Input)

	report.State = StateRunning
	logger.Debug("scan started", "ip", tgt.IP, "probes", len(probes))

	workers := cfg.ProbeWorkers
	if workers <= 0 || workers > len(probes) {
		workers = len(probes)
	}

	work := make(chan Probe, len(probes))
	for _, p := range probes {
		work <- p
	}
	close(work)

	// Buffered to len(probes) so workers never block after the collector
	// stops early on the advisory deadline.
	results := make(chan PartialReport, len(probes))

	// Closed on the advisory deadline; queued probes are then skipped.
	stopped := make(chan struct{})

	for i := 0; i < workers; i++ {
		go func() {
			for p := range work {
				select {
				case <-stopped:
					continue
				default:
				}
				results <- execute(ctx, cfg, tgt, p, logger)
			}
		}()
	}

	var deadline <-chan time.Time
	if cfg.Deadline > 0 {
		timer := time.NewTimer(cfg.Deadline)
		defer timer.Stop()
		deadline = timer.C
	}

	total := len(probes)
	done := 0
collect:
	for done < total {
		select {
		case pr := <-results:
			report.Partials[pr.Section] = pr
			done++
			progress.Stage(done, total, statusLine(pr))
			if pr.Failed() {
				progress.Warn(fmt.Sprintf("%s: %s", pr.Section, pr.Err))
			}
		case <-deadline:
			close(stopped)
			logger.Warn("scan deadline reached, reporting outstanding probes as timed out", "deadline", cfg.Deadline)
			for _, p := range probes {
				if _, ok := report.Partials[p.Name()]; ok {
					continue
				}
				err := &ProbeTimeoutError{Probe: p.Name(), Timeout: cfg.Deadline}
				report.Partials[p.Name()] = PartialReport{Section: p.Name(), Err: err, Diagnostic: Diagnostic(err)}
			}
			break collect
		}
	}

	report.State = StateCompleted
	report.CompletedAt = time.Now()
	report.DurationSecs = report.CompletedAt.Sub(report.StartedAt).Seconds()
	logger.Debug("scan completed", "duration", report.CompletedAt.Sub(report.StartedAt))
	return report
}

// execute runs a single probe under its own timeout. A probe that overruns
// is abandoned: its result goroutine finishes into a buffered channel.
func execute(ctx context.Context, cfg Config, tgt target.Target, p Probe, logger *slog.Logger) PartialReport {
	section := p.Name()
	timeout := p.Timeout()
	if timeout <= 0 {
		timeout = cfg.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		pr  PartialReport
		err error
	}
	ch := make(chan outcome, 1)
	start := time.Now()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("probe panicked: %v", r)}
			}
		}()
		pr, err := p.Run(pctx, tgt)
		ch <- outcome{pr: pr, err: err}
	}()

	var pr PartialReport
	select {
	case o := <-ch:
		pr = o.pr
		pr.Err = classify(section, timeout, o.err)
	case <-pctx.Done():
		if ctx.Err() != nil {
			pr.Err = &ProbeNetworkError{Probe: section, Err: ctx.Err()}
		} else {
			pr.Err = &ProbeTimeoutError{Probe: section, Timeout: timeout}
		}
	}

	pr.Section = section
	elapsed := time.Since(start)
	pr.ElapsedSecs = elapsed.Seconds()
	if pr.Err != nil {
		pr.Diagnostic = Diagnostic(pr.Err)
		logger.Debug("probe failed", "probe", section, "elapsed", elapsed, "error", pr.Err)
	} else {
		logger.Debug("probe completed", "probe", section, "elapsed", elapsed, "lines", len(pr.Lines))
	}
	return pr
}

type nopProgress struct{}

func (nopProgress) Stage(int, int, string) {}
func (nopProgress) Detail(string)          {}
func (nopProgress) Warn(string)            {}

func statusLine(pr PartialReport) string {
	status := "done"
	if pr.Failed() {
		status = "failed"
	}
	return fmt.Sprintf("%s %s (%.1fs)", pr.Section.Title(), status, pr.ElapsedSecs)
}
