package recon

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTCPDNSServer runs an in-process TCP DNS server and returns its port.
func startTCPDNSServer(t *testing.T, handler dns.Handler) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{Listener: ln, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	return port
}

func axfrHandler(t *testing.T, allow bool) dns.HandlerFunc {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		if !allow || r.Question[0].Qtype != dns.TypeAXFR {
			m := new(dns.Msg)
			m.SetRcode(r, dns.RcodeRefused)
			_ = w.WriteMsg(m)
			return
		}

		var rrs []dns.RR
		for _, s := range []string{
			"example.com. 300 IN SOA ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 3600",
			"www.example.com. 300 IN A 192.0.2.10",
			"mail.example.com. 300 IN A 192.0.2.20",
			"other.invalid. 300 IN A 192.0.2.30",
			"example.com. 300 IN SOA ns1.example.com. hostmaster.example.com. 1 7200 3600 1209600 3600",
		} {
			rr, err := dns.NewRR(s)
			if err != nil {
				t.Errorf("bad fixture record %q: %v", s, err)
				return
			}
			rrs = append(rrs, rr)
		}

		ch := make(chan *dns.Envelope)
		tr := new(dns.Transfer)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.Out(w, r, ch)
		}()
		ch <- &dns.Envelope{RR: rrs}
		close(ch)
		wg.Wait()
	}
}

func TestZoneTransfer_Allowed(t *testing.T) {
	port := startTCPDNSServer(t, axfrHandler(t, true))
	checker := &ZoneTransferChecker{Port: port, DialTimeout: time.Second, ReadTimeout: 2 * time.Second}

	result := checker.Check(context.Background(), "example.com", []string{"127.0.0.1"})

	require.Len(t, result.Transfers, 1)
	assert.True(t, result.Transfers[0].Allowed)
	assert.ElementsMatch(t, []string{"example.com", "www.example.com", "mail.example.com"}, result.Hostnames)
	assert.True(t, strings.HasPrefix(result.Line(), "⚠️ Zone transfer allowed on 1 of 1 nameservers"))
}

func TestZoneTransfer_Refused(t *testing.T) {
	port := startTCPDNSServer(t, axfrHandler(t, false))
	checker := &ZoneTransferChecker{Port: port, DialTimeout: time.Second, ReadTimeout: 2 * time.Second}

	result := checker.Check(context.Background(), "example.com", []string{"127.0.0.1", "127.0.0.1"})

	assert.Equal(t, 0, result.Allowed())
	assert.Empty(t, result.Hostnames)
	assert.Equal(t, "Zone transfer: refused by all 2 nameservers", result.Line())
}

func TestZoneTransfer_NoNameservers(t *testing.T) {
	result := (&ZoneTransferChecker{}).Check(context.Background(), "example.com", nil)
	assert.Equal(t, "Zone transfer: no nameservers to test", result.Line())
}
