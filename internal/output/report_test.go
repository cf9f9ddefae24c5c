package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnverified/hostrecon/internal/engine"
	"github.com/vulnverified/hostrecon/internal/target"
)

// sampleReport has three populated sections and one failed one.
func sampleReport() *engine.ScanReport {
	tgt := target.Target{Input: "example.com", Kind: target.KindDomain, IP: "93.184.216.34"}
	r := engine.NewReport("scan-1", tgt, engine.CanonicalOrder)
	r.State = engine.StateCompleted

	r.Partials[engine.SectionPorts] = engine.PartialReport{
		Section: engine.SectionPorts,
		Lines:   []string{"🟢 80/tcp HTTP — Web server"},
	}
	r.Partials[engine.SectionDNS] = engine.PartialReport{
		Section: engine.SectionDNS,
		Lines:   []string{"A (IPv4): 93.184.216.34"},
	}
	r.Partials[engine.SectionGeolocation] = engine.PartialReport{
		Section: engine.SectionGeolocation,
		Lines:   []string{"🇺🇸 Country: United States (US)"},
	}
	return r
}

func TestRender_AllSectionsInCanonicalOrder(t *testing.T) {
	out := Render(sampleReport())

	var headers []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "--- ") {
			headers = append(headers, line)
		}
	}
	require.Len(t, headers, len(engine.CanonicalOrder))
	for i, s := range engine.CanonicalOrder {
		assert.Contains(t, headers[i], s.Title())
	}

	assert.Equal(t, 6, strings.Count(out, "⚠️ No data (probe did not run)"))
	assert.Contains(t, out, "🟢 80/tcp HTTP — Web server")
	assert.True(t, strings.HasPrefix(out, "🔍 Analysis for *example.com* (93.184.216.34)\n"))
}

func TestRender_Idempotent(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, Render(r), Render(r))
}

func TestRender_FailedAndPartialSections(t *testing.T) {
	r := sampleReport()
	timeout := &engine.ProbeTimeoutError{Probe: engine.SectionHTTP, Timeout: 15 * time.Second}
	r.Partials[engine.SectionHTTP] = engine.PartialReport{
		Section: engine.SectionHTTP, Err: timeout, Diagnostic: engine.Diagnostic(timeout),
	}
	partial := &engine.PartialDataError{Missing: "certificate", Err: errors.New("connection refused")}
	r.Partials[engine.SectionSecurity] = engine.PartialReport{
		Section: engine.SectionSecurity,
		Lines:   []string{"Security headers: 2/4 (HSTS, CSP)"},
		Err:     partial,
	}

	out := Render(r)
	assert.Contains(t, out, "--- ⚡ HTTP Performance ---\n⏱️ Timed out after 15s\n")
	assert.Contains(t, out, "Security headers: 2/4 (HSTS, CSP)\n⚠️ ")
	assert.Equal(t, 4, strings.Count(out, "⚠️ No data (probe did not run)"))
}

func TestRender_OptionalSection(t *testing.T) {
	r := sampleReport()
	r.Order = append(r.Order, engine.SectionWhois)

	out := Render(r)
	assert.True(t, strings.Index(out, "WHOIS") > strings.Index(out, "Subdomains"))
}

func TestRenderStyled_KeepsContent(t *testing.T) {
	out := RenderStyled(sampleReport())
	assert.Contains(t, out, "A (IPv4): 93.184.216.34")
	assert.Contains(t, out, "DNS Records")
}

func TestPlainText_StripsEmphasis(t *testing.T) {
	out := PlainText(sampleReport())
	assert.NotContains(t, out, "*")
	assert.True(t, strings.HasPrefix(out, "🔍 Analysis for example.com (93.184.216.34)\n"))
}

func TestExport_Text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, Export(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, PlainText(sampleReport()), string(data))
}

func TestExport_PDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.PDF")
	require.NoError(t, Export(path, sampleReport()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestExport_UnsupportedFormat(t *testing.T) {
	err := Export(filepath.Join(t.TempDir(), "report.docx"), sampleReport())
	assert.ErrorContains(t, err, "unsupported export format")
}

func TestCP1252Only(t *testing.T) {
	assert.Equal(t, "Country: Chile (CL)", cp1252Only("🇨🇱 Country: Chile (CL)"))
	assert.Equal(t, "--- GeoIP ---", cp1252Only("--- 📍 GeoIP ---"))
	assert.Equal(t, "  Disallow: /admin", cp1252Only("  Disallow: /admin"))
	assert.Equal(t, "Café", cp1252Only("Café"))
	assert.Equal(t, "IP clean — not listed in any of 8 blacklists", cp1252Only("✅ IP clean — not listed in any of 8 blacklists"))
	assert.Equal(t, "  … and 3 more", cp1252Only("  … and 3 more"))
	assert.Equal(t, "Expires on 01-06-2025", cp1252Only("⚠️ Expires on 01-06-2025"))
}

func TestWriteJSON_IncludesPlaceholders(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var decoded struct {
		ID       string `json:"id"`
		Sections []struct {
			Section string   `json:"section"`
			Lines   []string `json:"lines"`
			Error   string   `json:"error"`
		} `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	assert.Equal(t, "scan-1", decoded.ID)
	require.Len(t, decoded.Sections, len(engine.CanonicalOrder))
	assert.Equal(t, "geolocation", decoded.Sections[0].Section)
	assert.Equal(t, "⚠️ No data (probe did not run)", decoded.Sections[2].Error)
}

func TestCountSections(t *testing.T) {
	r := sampleReport()
	r.Partials[engine.SectionHTTP] = engine.PartialReport{
		Section: engine.SectionHTTP, Err: errors.New("refused"), Diagnostic: "❌ refused",
	}

	c := CountSections(r)
	assert.Equal(t, Counts{OK: 3, Failed: 1, NotRun: 5}, c)
}

func TestWriteStatusTable_NoColor(t *testing.T) {
	var buf bytes.Buffer
	WriteStatusTable(&buf, sampleReport(), true)

	out := buf.String()
	assert.Contains(t, out, "Section")
	assert.Contains(t, out, "not run")
	assert.Equal(t, len(engine.CanonicalOrder)+3, strings.Count(out, "\n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "⚠️ Pa...", truncate("⚠️ Partial data", 8))
}
