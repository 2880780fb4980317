// Package names provides the canonical name comparisons and zone
// predicates the rest of the resolver builds on. It leans on
// github.com/miekg/dns's own label-aware helpers rather than
// reimplementing label splitting and case folding by hand.
package names

import "github.com/miekg/dns"

// Canonical lowercases name and makes sure it carries a trailing dot.
func Canonical(name string) string {
	return dns.CanonicalName(name)
}

// InZone reports whether name is equal to zone or zone is a proper
// suffix of name at a label boundary. Both names are canonicalized
// first, so a missing trailing dot does not matter.
func InZone(name, zone string) bool {
	return dns.IsSubDomain(Canonical(zone), Canonical(name))
}

// ParentZone strips the leftmost label of name. The root's parent is
// itself.
func ParentZone(name string) string {
	name = Canonical(name)
	if name == "." {
		return "."
	}

	labels := dns.SplitDomainName(name)
	if len(labels) <= 1 {
		return "."
	}

	return Canonical(dns.Fqdn(joinLabels(labels[1:])))
}

// Bailiwick computes the bailiwick zone of a query name as its last
// two labels counting the empty root label, i.e. the top-most label
// plus the root ("www.foo." and "deep.sub.domain.foo." both give
// "foo."), per this resolver's deliberately simplified rule (see
// DESIGN.md): it is not "the zone of the server being queried".
func Bailiwick(qname string) string {
	qname = Canonical(qname)

	labels := dns.SplitDomainName(qname)
	if len(labels) <= 1 {
		return qname
	}

	return Canonical(dns.Fqdn(labels[len(labels)-1]))
}

// Equal reports whether two names are the same under DNS's
// case-insensitive, trailing-dot-normalized comparison.
func Equal(a, b string) bool {
	return Canonical(a) == Canonical(b)
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += "."
		}
		out += l
	}
	return out
}
