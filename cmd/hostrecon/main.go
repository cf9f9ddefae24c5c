package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/vulnverified/hostrecon/internal/config"
	"github.com/vulnverified/hostrecon/internal/engine"
	"github.com/vulnverified/hostrecon/internal/output"
	"github.com/vulnverified/hostrecon/internal/recon"
	"github.com/vulnverified/hostrecon/internal/target"
	"github.com/vulnverified/hostrecon/pkg/ports"
)

// Set via ldflags at build time.
var version = "dev"

// errReported marks failures already printed to the user.
var errReported = errors.New("reported")

func main() {
	output.Version = version

	var (
		configPath string
		jsonOutput bool
		outPath    string
		portsList  string
		noColor    bool
		silent     bool
		verbose    bool
	)
	def := config.Default()
	flagCfg := *def

	rootCmd := &cobra.Command{
		Use:   "hostrecon <domain|ip>",
		Short: "Reconnaissance report for a single host",
		Long: "Runs a battery of independent network probes against one domain or IP " +
			"(geolocation, DNS, blacklists, HTTP, TLS, technologies, robots, ports, subdomains) " +
			"and prints a single ordered report.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Respect NO_COLOR env var.
			if _, ok := os.LookupEnv("NO_COLOR"); ok {
				noColor = true
			}

			cfg := def
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			applyFlags(cmd, cfg, &flagCfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid settings: %w", err)
			}

			specs := ports.Catalog
			if portsList != "" {
				parsed, err := parsePorts(portsList)
				if err != nil {
					return fmt.Errorf("invalid --ports: %w", err)
				}
				specs = ports.Select(parsed)
			}

			level := slog.LevelWarn
			switch {
			case verbose:
				level = slog.LevelDebug
			case silent:
				level = slog.LevelError
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			// Set up context with signal handling for clean Ctrl+C.
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "\nInterrupted, finishing report...")
				cancel()
			}()

			probes := buildProbes(cfg, specs)

			showProgress := !jsonOutput && !silent
			progress := output.NewProgress(os.Stderr, verbose, !showProgress)
			if showProgress {
				output.WriteHeader(os.Stderr, noColor)
				progress.Begin(args[0], len(probes))
			}

			engineCfg := engine.Config{
				ProbeWorkers:   cfg.ProbeWorkers,
				DefaultTimeout: cfg.Timeout,
				Deadline:       cfg.Deadline,
				Logger:         logger,
			}
			report, err := engine.Scan(ctx, engineCfg, args[0], net.DefaultResolver, probes, progress)
			if err != nil {
				var invalid *target.InvalidTargetError
				var unresolved *target.ResolutionError
				if errors.As(err, &invalid) || errors.As(err, &unresolved) {
					fmt.Fprintln(os.Stdout, "❌ "+err.Error())
					return errReported
				}
				return err
			}

			if showProgress {
				progress.Complete()
			}

			if outPath != "" {
				if err := output.Export(outPath, report); err != nil {
					logger.Error("export failed", "path", outPath, "error", err)
				} else if showProgress {
					fmt.Fprintf(os.Stderr, "Report saved to %s\n", outPath)
				}
			}

			if jsonOutput {
				return output.WriteJSON(os.Stdout, report)
			}

			if noColor {
				fmt.Fprint(os.Stdout, output.Render(report))
			} else {
				fmt.Fprint(os.Stdout, output.RenderStyled(report))
			}

			if showProgress {
				if verbose {
					output.WriteStatusTable(os.Stderr, report, noColor)
				}
				output.WriteSummary(os.Stderr, report, noColor)
			}
			return nil
		},
	}

	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file")
	f.BoolVar(&jsonOutput, "json", false, "Output structured JSON to stdout")
	f.StringVar(&outPath, "out", "", "Also save the report to a .txt or .pdf file")
	f.StringVar(&portsList, "ports", "", "Comma-separated port list (default: built-in catalog)")
	f.BoolVar(&noColor, "no-color", false, "Disable terminal colors")
	f.BoolVar(&silent, "silent", false, "Report only, no progress or logs")
	f.BoolVarP(&verbose, "verbose", "v", false, "Debug logs and per-probe status table")

	f.DurationVar(&flagCfg.Timeout, "timeout", def.Timeout, "Per-probe timeout")
	f.DurationVar(&flagCfg.PortTimeout, "port-timeout", def.PortTimeout, "Per-port connect timeout")
	f.IntVar(&flagCfg.PortWorkers, "port-workers", def.PortWorkers, "Concurrent port connects")
	f.Float64Var(&flagCfg.Rate, "rate", def.Rate, "Max port connects per second (0 = unlimited)")
	f.StringVar(&flagCfg.Resolver, "resolver", def.Resolver, "DNS server for record and blacklist queries (default: system)")
	f.IntVar(&flagCfg.SubdomainLimit, "subdomain-limit", def.SubdomainLimit, "Subdomains listed in the report")
	f.BoolVar(&flagCfg.Whois, "whois", def.Whois, "Add a WHOIS section (domains only)")
	f.BoolVar(&flagCfg.AXFR, "axfr", def.AXFR, "Test nameservers for zone transfers")
	f.DurationVar(&flagCfg.Deadline, "deadline", def.Deadline, "Advisory limit for the whole scan (0 = none)")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("hostrecon {{.Version}}\n")

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// applyFlags copies explicitly set flags from fl over cfg, so file values
// survive unless overridden on the command line.
func applyFlags(cmd *cobra.Command, cfg, fl *config.Config) {
	changed := cmd.Flags().Changed
	if changed("timeout") {
		cfg.Timeout = fl.Timeout
	}
	if changed("port-timeout") {
		cfg.PortTimeout = fl.PortTimeout
	}
	if changed("port-workers") {
		cfg.PortWorkers = fl.PortWorkers
	}
	if changed("rate") {
		cfg.Rate = fl.Rate
	}
	if changed("resolver") {
		cfg.Resolver = fl.Resolver
	}
	if changed("subdomain-limit") {
		cfg.SubdomainLimit = fl.SubdomainLimit
	}
	if changed("whois") {
		cfg.Whois = fl.Whois
	}
	if changed("axfr") {
		cfg.AXFR = fl.AXFR
	}
	if changed("deadline") {
		cfg.Deadline = fl.Deadline
	}
}

// buildProbes assembles the probe battery. WHOIS is added only when
// enabled.
func buildProbes(cfg *config.Config, specs []ports.Spec) []engine.Probe {
	server := dnsServerAddr(cfg.Resolver)
	web := &recon.WebClient{UserAgent: cfg.UserAgent, Timeout: cfg.Timeout}

	var axfr *recon.ZoneTransferChecker
	if cfg.AXFR {
		axfr = &recon.ZoneTransferChecker{}
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	probes := []engine.Probe{
		&recon.GeoProbe{Locator: &recon.GeoLocator{BaseURL: cfg.GeoBaseURL, UserAgent: cfg.UserAgent}},
		&recon.DNSProbe{Server: server, QueryTimeout: cfg.DNSTimeout, ZoneTransfer: axfr},
		&recon.BlacklistProbe{Zones: cfg.BlacklistZones, Server: server, QueryTimeout: cfg.DNSTimeout},
		&recon.HTTPProbe{Client: web},
		&recon.SecurityProbe{Client: web},
		&recon.TechnologiesProbe{Client: web},
		&recon.RobotsProbe{Client: web},
		&recon.PortProbe{
			Specs:          specs,
			PerPortTimeout: cfg.PortTimeout,
			Workers:        cfg.PortWorkers,
			Limiter:        limiter,
			ProbeTimeout:   portBudget(cfg, len(specs)),
		},
		&recon.SubdomainProbe{
			Finder: &recon.SubdomainFinder{BaseURL: cfg.CrtshURL, UserAgent: cfg.UserAgent},
			Limit:  cfg.SubdomainLimit,
		},
	}
	if cfg.Whois {
		probes = append(probes, &recon.WhoisProbe{Lookup: &recon.WhoisLookup{Timeout: cfg.Timeout}})
	}
	return probes
}

// portBudget is the port probe timeout: enough for every batch of
// connects to time out, and never below the per-probe timeout.
func portBudget(cfg *config.Config, n int) time.Duration {
	batches := (n + cfg.PortWorkers - 1) / cfg.PortWorkers
	budget := time.Duration(batches)*cfg.PortTimeout + time.Second
	if cfg.Rate > 0 {
		budget += time.Duration(float64(n) / cfg.Rate * float64(time.Second))
	}
	if budget < cfg.Timeout {
		return cfg.Timeout
	}
	return budget
}

// dnsServerAddr returns the DNS server as host:port, defaulting to the
// system's first nameserver.
func dnsServerAddr(s string) string {
	if s == "" {
		return recon.DefaultDNSServer()
	}
	if _, _, err := net.SplitHostPort(s); err == nil {
		return s
	}
	return net.JoinHostPort(strings.Trim(s, "[]"), "53")
}

// parsePorts parses a comma-separated list of port numbers.
func parsePorts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	var result []int
	seen := make(map[int]bool)

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", p)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("port %d out of range (1-65535)", port)
		}
		if !seen[port] {
			seen[port] = true
			result = append(result, port)
		}
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("no valid ports specified")
	}
	return result, nil
}
