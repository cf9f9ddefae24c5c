package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hostrecon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
timeout: 5s
port_workers: 25
rate: 50
resolver: 1.1.1.1:53
whois: true
blacklist_zones:
  - zen.spamhaus.org
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 25, cfg.PortWorkers)
	assert.InDelta(t, 50.0, cfg.Rate, 0)
	assert.Equal(t, "1.1.1.1:53", cfg.Resolver)
	assert.True(t, cfg.Whois)
	assert.Equal(t, []string{"zen.spamhaus.org"}, cfg.BlacklistZones)

	def := Default()
	assert.Equal(t, def.PortTimeout, cfg.PortTimeout)
	assert.Equal(t, def.SubdomainLimit, cfg.SubdomainLimit)
	assert.Equal(t, def.UserAgent, cfg.UserAgent)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero timeout", "timeout: 0s\n", "timeout must be positive"},
		{"negative workers", "port_workers: -1\n", "port_workers must be positive"},
		{"negative rate", "rate: -3\n", "rate must not be negative"},
		{"zero subdomain limit", "subdomain_limit: 0\n", "subdomain_limit must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "timeout: [not a duration\n"))
	assert.ErrorContains(t, err, "parsing config")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
