// Package authority answers questions whose owner lies inside the
// locally served zone, assembling CNAME chains and the authority/
// additional glue sections. Answer-assembly and flag-stamping follow
// the style of the teacher's resolver/handler.go and flat handler.go,
// adapted from "cache-then-upstream" dispatch to "serve straight from
// the authoritative record set".
package authority

import (
	"github.com/miekg/dns"

	"github.com/zoneward/zoneward/internal/cache"
	"github.com/zoneward/zoneward/internal/names"
)

// Responder answers in-zone questions from the shared cache, which is
// seeded from the served zone at startup.
type Responder struct {
	cache  *cache.Cache
	origin string
}

// New returns a Responder for the zone rooted at origin.
func New(c *cache.Cache, origin string) *Responder {
	return &Responder{cache: c, origin: names.Canonical(origin)}
}

// Result carries the three message sections an authoritative answer
// fills in, plus the rcode to stamp on the reply.
type Result struct {
	Answer []dns.RR
	Ns     []dns.RR
	Extra  []dns.RR
	Rcode  int

	// PendingTarget is set when the CNAME chain bottomed out on a
	// target outside the served zone: Answer already holds every CNAME
	// RR in the chain, but resolving the remaining A record is the
	// caller's job, not this responder's.
	PendingTarget string
}

// Answer implements the per-qtype algorithm of this resolver's
// authoritative responder.
func (r *Responder) Answer(qname string, qtype uint16) Result {
	qname = names.Canonical(qname)

	switch qtype {
	case dns.TypeA:
		return r.answerA(qname)
	case dns.TypeCNAME:
		return r.answerSimple(qname, dns.TypeCNAME)
	case dns.TypeMX, dns.TypeTXT:
		return r.answerSimple(qname, qtype)
	case dns.TypeNS:
		return r.answerNS(qname)
	default:
		rrs := r.cache.Get(qname, qtype)
		if len(rrs) == 0 {
			return Result{Rcode: dns.RcodeNameError}
		}
		return Result{Answer: rrs, Ns: r.authorityNS(), Rcode: dns.RcodeSuccess}
	}
}

func (r *Responder) answerA(qname string) Result {
	if cnames := r.cache.Get(qname, dns.TypeCNAME); len(cnames) > 0 {
		answer := append([]dns.RR{}, cnames...)

		for _, rr := range cnames {
			cname, ok := rr.(*dns.CNAME)
			if !ok {
				continue
			}

			target := names.Canonical(cname.Target)
			if !names.InZone(target, r.origin) {
				// The chain leaves the served zone here; the caller
				// must recurse for the rest. Report the chain
				// assembled so far and where it needs to resume.
				return Result{Answer: answer, Rcode: dns.RcodeSuccess, PendingTarget: target}
			}

			sub := r.answerA(target)
			answer = append(answer, sub.Answer...)
			if sub.PendingTarget != "" {
				// A later hop of the chain left the served zone.
				return Result{Answer: answer, Rcode: dns.RcodeSuccess, PendingTarget: sub.PendingTarget}
			}
		}

		return Result{Answer: answer, Ns: r.authorityNS(), Rcode: dns.RcodeSuccess}
	}

	if as := r.cache.Get(qname, dns.TypeA); len(as) > 0 {
		// Matches the source's asymmetry: the pure-A branch does not
		// attach an authority section, unlike the CNAME branch above.
		return Result{Answer: as, Rcode: dns.RcodeSuccess}
	}

	return Result{Rcode: dns.RcodeNameError}
}

func (r *Responder) answerSimple(qname string, qtype uint16) Result {
	rrs := r.cache.Get(qname, qtype)
	if len(rrs) == 0 {
		return Result{Rcode: dns.RcodeNameError}
	}

	return Result{Answer: rrs, Ns: r.authorityNS(), Rcode: dns.RcodeSuccess}
}

func (r *Responder) answerNS(qname string) Result {
	nsrrs := r.cache.Get(qname, dns.TypeNS)
	if len(nsrrs) == 0 {
		return Result{Rcode: dns.RcodeNameError}
	}

	glue := r.glueFor(nsrrs)

	// The zone apex's own NS set is this resolver's answer to "who
	// are the nameservers for my zone"; NS records owned by any other
	// in-zone name are a delegation referral and belong in authority.
	if names.Equal(qname, r.origin) {
		return Result{Answer: nsrrs, Extra: glue, Rcode: dns.RcodeSuccess}
	}

	return Result{Ns: nsrrs, Extra: glue, Rcode: dns.RcodeSuccess}
}

func (r *Responder) glueFor(nsrrs []dns.RR) []dns.RR {
	var glue []dns.RR
	for _, rr := range nsrrs {
		ns, ok := rr.(*dns.NS)
		if !ok {
			continue
		}
		glue = append(glue, r.cache.Get(names.Canonical(ns.Ns), dns.TypeA)...)
	}
	return glue
}

// authorityNS returns the zone's own NS set, appended to non-NS
// authoritative answers per §4.3-auth.
func (r *Responder) authorityNS() []dns.RR {
	return r.cache.Get(r.origin, dns.TypeNS)
}

// InZone reports whether name is served by this zone.
func (r *Responder) InZone(name string) bool {
	return names.InZone(name, r.origin)
}

// Origin returns the zone's origin name.
func (r *Responder) Origin() string {
	return r.origin
}
