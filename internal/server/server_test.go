package server

import (
	"strconv"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBindsEphemeralPort(t *testing.T) {
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		_ = w.WriteMsg(m)
	})

	s := New(0, handler)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run() }()

	require.Eventually(t, func() bool { return s.Port() != 0 }, 2*time.Second, 10*time.Millisecond)
	assert.NotEqual(t, 0, s.Port())

	require.NoError(t, s.Shutdown())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

func TestRunServesQueries(t *testing.T) {
	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		m.Rcode = dns.RcodeSuccess
		_ = w.WriteMsg(m)
	})

	s := New(0, handler)
	go func() { _ = s.Run() }()
	require.Eventually(t, func() bool { return s.Port() != 0 }, 2*time.Second, 10*time.Millisecond)
	t.Cleanup(func() { _ = s.Shutdown() })

	c := new(dns.Client)
	m := new(dns.Msg)
	m.SetQuestion("example.", dns.TypeA)

	reply, _, err := c.Exchange(m, "127.0.0.1:"+strconv.Itoa(s.Port()))
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeSuccess, reply.Rcode)
}
