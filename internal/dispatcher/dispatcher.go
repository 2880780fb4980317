// Package dispatcher implements the fixed request-routing algorithm:
// classify an incoming query, route it to the authoritative responder
// or the recursor, stamp reply flags, and hand the message back to
// miekg/dns for serialization. Grounded on the teacher's ctx package
// (request-scoped writer) and the query-counting idiom of
// middleware/metrics/metrics.go, collapsed from a pluggable middleware
// chain into the single fixed algorithm this spec calls for.
package dispatcher

import (
	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/semihalev/log"

	"github.com/zoneward/zoneward/internal/authority"
	"github.com/zoneward/zoneward/internal/cache"
	"github.com/zoneward/zoneward/internal/names"
	"github.com/zoneward/zoneward/internal/recursor"
)

// Dispatcher routes each inbound question to the authoritative
// responder or the recursor and assembles the final reply.
type Dispatcher struct {
	cache  *cache.Cache
	auth   *authority.Responder
	rec    *recursor.Recursor
	rootIP string

	queries *prometheus.CounterVec
}

// New returns a Dispatcher. rootIP is where recursion starts for
// questions that are neither cached nor in-zone, and for out-of-zone
// CNAME targets.
func New(c *cache.Cache, auth *authority.Responder, rec *recursor.Recursor, rootIP string) *Dispatcher {
	queries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zoneward_queries_total",
			Help: "How many DNS queries this resolver has answered, by qtype and rcode.",
		},
		[]string{"qtype", "rcode"},
	)
	_ = prometheus.Register(queries)

	return &Dispatcher{
		cache:   c,
		auth:    auth,
		rec:     rec,
		rootIP:  rootIP,
		queries: queries,
	}
}

// ServeDNS implements dns.Handler.
func (d *Dispatcher) ServeDNS(w dns.ResponseWriter, req *dns.Msg) {
	if len(req.Question) == 0 {
		return
	}

	d.cache.Sweep()

	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.RecursionAvailable = true
	resp.Truncated = false

	q := req.Question[0]

	if len(d.cache.Get(q.Name, q.Qtype)) > 0 || d.auth.InZone(q.Name) {
		d.answerAuthoritative(resp, q)
	} else {
		d.answerRecursive(resp, q)
	}

	d.queries.With(prometheus.Labels{
		"qtype": dns.TypeToString[q.Qtype],
		"rcode": dns.RcodeToString[resp.Rcode],
	}).Inc()

	if err := w.WriteMsg(resp); err != nil {
		log.Error("Reply write failed", "error", err.Error())
	}
}

func (d *Dispatcher) answerAuthoritative(resp *dns.Msg, q dns.Question) {
	res := d.auth.Answer(q.Name, q.Qtype)

	if res.PendingTarget != "" {
		// The CNAME chain left the served zone; the authoritative
		// responder already assembled every in-zone hop, so the
		// terminal A record has to come from recursion.
		d.chaseCNAME(resp, res.PendingTarget, res)
		return
	}

	resp.Answer = res.Answer
	resp.Ns = res.Ns
	resp.Extra = res.Extra
	resp.Rcode = res.Rcode

	if len(res.Answer) == 0 && len(res.Ns) > 0 {
		// A pure referral: the NS RRs describe a delegated child zone,
		// not an answer this server is authoritative for.
		resp.Authoritative = false
		return
	}

	resp.Authoritative = allInZone(res.Answer, d.auth.Origin())
}

// chaseCNAME recurses on an out-of-zone CNAME target the authoritative
// responder could not continue past, appending the CNAME chain already
// assembled plus whatever the recursor resolves for target.
func (d *Dispatcher) chaseCNAME(resp *dns.Msg, target string, res authority.Result) {
	resp.Answer = res.Answer
	resp.Authoritative = false

	reply, err := d.rec.Resolve(d.rootIP, target, dns.TypeA)
	if err != nil {
		log.Warn("Recursive CNAME chase failed", "target", target, "error", err.Error())
		resp.Rcode = dns.RcodeServerFailure
		return
	}

	resp.Answer = append(resp.Answer, reply.Answer...)
	resp.Rcode = reply.Rcode
}

func (d *Dispatcher) answerRecursive(resp *dns.Msg, q dns.Question) {
	reply, err := d.rec.Resolve(d.rootIP, q.Name, q.Qtype)
	if err != nil {
		log.Warn("Recursive resolution failed", "qname", q.Name, "qtype", dns.TypeToString[q.Qtype], "error", err.Error())
		resp.Rcode = dns.RcodeServerFailure
		resp.Authoritative = false
		return
	}

	resp.Answer = reply.Answer
	resp.Ns = reply.Ns
	resp.Extra = reply.Extra
	resp.Rcode = reply.Rcode
	resp.Authoritative = false
}

// allInZone reports whether every RR's owner lies inside zone; an
// empty slice is vacuously true, which is why an in-zone NXDOMAIN
// still carries AA=1.
func allInZone(rrs []dns.RR, zone string) bool {
	for _, rr := range rrs {
		if !names.InZone(rr.Header().Name, zone) {
			return false
		}
	}
	return true
}
