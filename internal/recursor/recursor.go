// Package recursor implements the recursive resolver: iterative
// upstream queries starting at a configured root, following referrals
// and CNAME chains, with bailiwick filtering on every reply. The
// per-round-trip exchange and referral-walking style is grounded in
// the teacher's flat resolver.go (Resolver.Resolve/Resolver.lookup);
// per the design notes we replace its unbounded recursive referral
// walk with an explicit loop carrying (server, qname, qtype, depth),
// and replace its RTT-sorted, parallel nameserver fan-out with the
// spec's simpler first-match selection.
package recursor

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"
	"github.com/semihalev/log"

	"github.com/zoneward/zoneward/internal/cache"
	"github.com/zoneward/zoneward/internal/names"
)

// UpstreamPort is the fixed port this resolver speaks to upstream
// servers on, matching the constant used by the source implementation
// and its test harness.
const UpstreamPort = 60053

// MaxDepth bounds the recursion/referral walk, per the design notes'
// recommendation that an explicit loop carry an explicit depth limit
// where the source had none.
const MaxDepth = 16

// ErrMaxDepth is returned when a resolution exceeds MaxDepth referral
// or CNAME hops.
var ErrMaxDepth = errors.New("recursor: maximum recursion depth exceeded")

// Recursor drives iterative upstream resolution. It holds no
// per-request state beyond the call stack; the shared cache is its
// only persistent state.
type Recursor struct {
	cache  *cache.Cache
	client *dns.Client
	rootIP string
}

// New returns a Recursor that starts CNAME re-entry at rootIP and
// exchanges with upstream servers using the given per-round-trip
// timeout.
func New(c *cache.Cache, rootIP string, timeout time.Duration) *Recursor {
	return &Recursor{
		cache:  c,
		rootIP: rootIP,
		client: &dns.Client{
			Net:          "udp",
			Timeout:      timeout,
			DialTimeout:  timeout,
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		},
	}
}

// Resolve answers (qname, qtype) by iterative resolution starting at
// serverIP.
func (r *Recursor) Resolve(serverIP, qname string, qtype uint16) (*dns.Msg, error) {
	return r.resolve(serverIP, qname, qtype, MaxDepth)
}

func (r *Recursor) resolve(serverIP, qname string, qtype uint16, depth int) (*dns.Msg, error) {
	qname = names.Canonical(qname)
	server := serverIP

	for {
		if depth <= 0 {
			return nil, ErrMaxDepth
		}

		reply, err := r.exchange(server, qname, qtype)
		if err != nil {
			return nil, err
		}

		reply.Truncated = false

		bailiwick := names.Bailiwick(qname)
		filterBailiwick(reply, bailiwick)

		if qtype == dns.TypeA && !hasOwnerType(reply.Answer, qname, dns.TypeA) {
			if target, ok := cnameTarget(reply.Answer, qname); ok {
				depth--
				sub, err := r.resolve(r.rootIP, target, dns.TypeA, depth)
				if err == nil {
					reply.Answer = append(reply.Answer, sub.Answer...)
				}
			}
		}

		if reply.Rcode == dns.RcodeSuccess {
			for _, rr := range allSections(reply) {
				r.cache.Put(rr)
			}
		}

		if len(reply.Answer) > 0 {
			reply.Authoritative = false
			return reply, nil
		}

		if qtype == dns.TypeNS && hasOwnerType(reply.Ns, qname, dns.TypeNS) {
			reply.Authoritative = false
			return reply, nil
		}

		glueIP, ok := pickReferral(reply)
		if !ok {
			return reply, nil
		}

		depth--
		server = glueIP
	}
}

func (r *Recursor) exchange(server, qname string, qtype uint16) (*dns.Msg, error) {
	req := new(dns.Msg)
	req.SetQuestion(qname, qtype)
	req.RecursionDesired = false

	addr := net.JoinHostPort(server, strconv.Itoa(UpstreamPort))

	log.Debug("Upstream query", "server", addr, "qname", qname, "qtype", dns.TypeToString[qtype])

	reply, _, err := r.client.Exchange(req, addr)
	if err != nil {
		log.Debug("Upstream query failed", "server", addr, "qname", qname, "error", err.Error())
		return nil, err
	}

	return reply, nil
}

func allSections(m *dns.Msg) []dns.RR {
	out := make([]dns.RR, 0, len(m.Answer)+len(m.Ns)+len(m.Extra))
	out = append(out, m.Answer...)
	out = append(out, m.Ns...)
	out = append(out, m.Extra...)
	return out
}

// filterBailiwick drops any RR whose owner does not end in zone, to
// prevent an upstream server from poisoning the cache with records it
// has no authority to supply.
func filterBailiwick(m *dns.Msg, zone string) {
	m.Answer = keepInBailiwick(m.Answer, zone)
	m.Ns = keepInBailiwick(m.Ns, zone)
	m.Extra = keepInBailiwick(m.Extra, zone)
}

func keepInBailiwick(rrs []dns.RR, zone string) []dns.RR {
	kept := rrs[:0]
	for _, rr := range rrs {
		if names.InZone(rr.Header().Name, zone) {
			kept = append(kept, rr)
		}
	}
	return kept
}

func hasOwnerType(rrs []dns.RR, owner string, qtype uint16) bool {
	for _, rr := range rrs {
		if rr.Header().Rrtype == qtype && names.Equal(rr.Header().Name, owner) {
			return true
		}
	}
	return false
}

func cnameTarget(rrs []dns.RR, owner string) (string, bool) {
	for _, rr := range rrs {
		if cname, ok := rr.(*dns.CNAME); ok && names.Equal(cname.Hdr.Name, owner) {
			return cname.Target, true
		}
	}
	return "", false
}

// pickReferral iterates authority in message order and returns the
// first NS record's glue A address found in additional. No
// round-robin, no RTT-based selection.
func pickReferral(m *dns.Msg) (string, bool) {
	for _, rr := range m.Ns {
		ns, ok := rr.(*dns.NS)
		if !ok {
			continue
		}

		for _, extra := range m.Extra {
			a, ok := extra.(*dns.A)
			if !ok {
				continue
			}
			if names.Equal(a.Hdr.Name, ns.Ns) {
				return a.A.String(), true
			}
		}
	}

	return "", false
}
