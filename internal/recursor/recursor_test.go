package recursor

import (
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneward/zoneward/internal/cache"
)

// fakeUpstream runs a dns.Server on 127.0.0.1:60053 (the resolver's
// fixed upstream port) backed by a caller-supplied handler, the way
// the teacher's own tests stand up a mock DNS endpoint.
type fakeUpstream struct {
	srv *dns.Server
}

func startFakeUpstream(t *testing.T, handler dns.HandlerFunc) *fakeUpstream {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:60053")
	require.NoError(t, err)

	ready := make(chan struct{})
	srv := &dns.Server{
		PacketConn:        pc,
		Handler:           handler,
		NotifyStartedFunc: func() { close(ready) },
	}

	go func() {
		_ = srv.ActivateAndServe()
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("fake upstream did not start")
	}

	t.Cleanup(func() { _ = srv.Shutdown() })

	return &fakeUpstream{srv: srv}
}

func rootIP() string { return "127.0.0.1" }

func TestResolveDirectAnswer(t *testing.T) {
	startFakeUpstream(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		m.Rcode = dns.RcodeSuccess

		rr, _ := dns.NewRR("www.example. 300 IN A 93.184.216.34")
		m.Answer = append(m.Answer, rr)

		_ = w.WriteMsg(m)
	})

	r := New(cache.New(0), rootIP(), time.Second)

	reply, err := r.Resolve(rootIP(), "www.example.", dns.TypeA)
	require.NoError(t, err)
	assert.Equal(t, dns.RcodeSuccess, reply.Rcode)
	if assert.Len(t, reply.Answer, 1) {
		a := reply.Answer[0].(*dns.A)
		assert.Equal(t, "93.184.216.34", a.A.String())
	}
	assert.False(t, reply.Authoritative)
}

func TestResolveTreatsParentNSAsReferral(t *testing.T) {
	var calls int
	startFakeUpstream(t, func(w dns.ResponseWriter, req *dns.Msg) {
		calls++

		m := new(dns.Msg)
		m.SetReply(req)
		m.Rcode = dns.RcodeSuccess

		// Refers to ns1.example. for the parent zone "example.", not
		// for the queried name "www.example.": since this is only a
		// single fake server, every hop lands back here, so the
		// referral loop is bounded by the depth limit rather than a
		// second distinct server breaking it.
		ns, _ := dns.NewRR("example. 300 IN NS ns1.example.")
		glue, _ := dns.NewRR("ns1.example. 300 IN A 127.0.0.1")
		m.Ns = append(m.Ns, ns)
		m.Extra = append(m.Extra, glue)

		_ = w.WriteMsg(m)
	})

	r := New(cache.New(0), rootIP(), time.Second)

	_, err := r.Resolve(rootIP(), "www.example.", dns.TypeNS)
	assert.ErrorIs(t, err, ErrMaxDepth)
	assert.Equal(t, MaxDepth, calls, "one upstream round-trip per depth hop")
}

func TestResolveDropsOutOfBailiwickRecords(t *testing.T) {
	startFakeUpstream(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		m.Rcode = dns.RcodeSuccess

		good, _ := dns.NewRR("www.example. 300 IN A 93.184.216.34")
		poisoned, _ := dns.NewRR("evil.attacker.test. 300 IN A 6.6.6.6")
		m.Answer = append(m.Answer, good, poisoned)

		_ = w.WriteMsg(m)
	})

	r := New(cache.New(0), rootIP(), time.Second)

	reply, err := r.Resolve(rootIP(), "www.example.", dns.TypeA)
	require.NoError(t, err)
	for _, rr := range reply.Answer {
		assert.NotEqual(t, "evil.attacker.test.", rr.Header().Name)
	}
}

func TestResolveChasesCNAME(t *testing.T) {
	startFakeUpstream(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		m.Rcode = dns.RcodeSuccess

		q := req.Question[0]
		if q.Name == "alias.example." {
			rr, _ := dns.NewRR("alias.example. 300 IN CNAME target.example.")
			m.Answer = append(m.Answer, rr)
		} else if q.Name == "target.example." {
			rr, _ := dns.NewRR("target.example. 300 IN A 1.2.3.4")
			m.Answer = append(m.Answer, rr)
		}

		_ = w.WriteMsg(m)
	})

	r := New(cache.New(0), rootIP(), time.Second)

	reply, err := r.Resolve(rootIP(), "alias.example.", dns.TypeA)
	require.NoError(t, err)
	require.Len(t, reply.Answer, 2)
	assert.Equal(t, dns.TypeCNAME, reply.Answer[0].Header().Rrtype)
	assert.Equal(t, dns.TypeA, reply.Answer[1].Header().Rrtype)
}

func TestResolveMaxDepthExceeded(t *testing.T) {
	startFakeUpstream(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		m.Rcode = dns.RcodeSuccess

		// Always refer back to ourselves: an unconditional referral
		// loop that must be stopped by the depth limit.
		ns, _ := dns.NewRR("loop.example. 300 IN NS ns1.loop.example.")
		glue, _ := dns.NewRR("ns1.loop.example. 300 IN A 127.0.0.1")
		m.Ns = append(m.Ns, ns)
		m.Extra = append(m.Extra, glue)

		_ = w.WriteMsg(m)
	})

	r := New(cache.New(0), rootIP(), time.Second)

	_, err := r.Resolve(rootIP(), "loop.example.", dns.TypeA)
	assert.ErrorIs(t, err, ErrMaxDepth)
}
