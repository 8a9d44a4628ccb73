package domain

import (
	"net/url"
	"sort"
)

// CanonicalDomain extracts the single canonical domain this citation
// contributes to the per-query counts. The citation's title is preferred
// because the AI service's short label is usually already domain-like;
// when the title yields nothing usable the host of the resolved URL is
// normalized instead. An empty result means the citation is uncountable.
func (c Citation) CanonicalDomain() string {
	if d := NormalizeDomain(c.Title); d != "" {
		return d
	}
	if c.ResolvedURL == "" {
		return ""
	}
	u, err := url.Parse(c.ResolvedURL)
	if err != nil {
		return ""
	}
	return NormalizeDomain(u.Hostname())
}

// CountDomains converts one query's parsed segments into a domain frequency
// table sorted descending by count. Counts reflect raw mention volume:
// duplicate citations of the same source on different segments each
// increment the count independently. Citations that normalize to an empty
// domain are filtered out.
//
// Domains with equal counts keep their first-appearance order. The
// tie-break is deliberately pinned here (and by tests) rather than left to
// map iteration order.
func CountDomains(segments []Segment) []DomainCount {
	counts := make(map[string]int)
	var order []string

	for _, seg := range segments {
		for _, cit := range seg.Citations {
			d := cit.CanonicalDomain()
			if d == "" {
				continue
			}
			if _, seen := counts[d]; !seen {
				order = append(order, d)
			}
			counts[d]++
		}
	}

	out := make([]DomainCount, 0, len(order))
	for _, d := range order {
		out = append(out, DomainCount{Domain: d, Count: counts[d]})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
