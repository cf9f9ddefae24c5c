// Package config loads hostrecon settings from defaults and an optional
// YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tunable scan settings. Durations are written in YAML as
// Go duration strings ("5s", "500ms").
type Config struct {
	// Per-probe timeout.
	Timeout      time.Duration `yaml:"timeout"`
	ProbeWorkers int           `yaml:"probe_workers"`
	// Advisory scan-wide deadline; zero disables it.
	Deadline time.Duration `yaml:"deadline"`

	PortTimeout time.Duration `yaml:"port_timeout"`
	PortWorkers int           `yaml:"port_workers"`
	// Connect attempts per second; zero means unlimited.
	Rate float64 `yaml:"rate"`

	// DNS server as host:port; empty uses the system's first nameserver.
	Resolver       string        `yaml:"resolver"`
	DNSTimeout     time.Duration `yaml:"dns_timeout"`
	AXFR           bool          `yaml:"axfr"`
	BlacklistZones []string      `yaml:"blacklist_zones"`

	SubdomainLimit int  `yaml:"subdomain_limit"`
	Whois          bool `yaml:"whois"`

	UserAgent  string `yaml:"user_agent"`
	GeoBaseURL string `yaml:"geo_base_url"`
	CrtshURL   string `yaml:"crtsh_url"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Timeout:        15 * time.Second,
		PortTimeout:    1 * time.Second,
		PortWorkers:    10,
		DNSTimeout:     3 * time.Second,
		SubdomainLimit: 15,
		UserAgent:      "hostrecon/1.0",
		GeoBaseURL:     "http://ip-api.com/json/",
		CrtshURL:       "https://crt.sh/",
	}
}

// Load reads path and overlays it on Default. Keys absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the scanner cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if c.PortTimeout <= 0 {
		errs = append(errs, errors.New("port_timeout must be positive"))
	}
	if c.DNSTimeout <= 0 {
		errs = append(errs, errors.New("dns_timeout must be positive"))
	}
	if c.PortWorkers <= 0 {
		errs = append(errs, errors.New("port_workers must be positive"))
	}
	if c.ProbeWorkers < 0 {
		errs = append(errs, errors.New("probe_workers must not be negative"))
	}
	if c.Deadline < 0 {
		errs = append(errs, errors.New("deadline must not be negative"))
	}
	if c.Rate < 0 {
		errs = append(errs, errors.New("rate must not be negative"))
	}
	if c.SubdomainLimit <= 0 {
		errs = append(errs, errors.New("subdomain_limit must be positive"))
	}
	return errors.Join(errs...)
}
