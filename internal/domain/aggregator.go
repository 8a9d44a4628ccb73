package domain

import (
	"math"
	"sort"
)

// AggregateDomainStat is the cross-query view of one domain.
// TotalMentions sums raw citation occurrences across all queries;
// QueryAppearances counts the distinct queries in which the domain occurs
// at least once. The two measures rank domains differently and are exposed
// separately: a domain hammered fifty times in one long answer has high
// mentions but low prevalence.
type AggregateDomainStat struct {
	Domain               string  `json:"domain"`
	TotalMentions        int     `json:"totalMentions"`
	QueryAppearances     int     `json:"queryAppearances"`
	AppearancePercentage float64 `json:"appearancePercentage"`
}

// DomainTypeBreakdown partitions a domain's query appearances by the
// Direct/Generic classification of the citing queries. Appearance semantics
// match AggregateDomainStat: at most one appearance per query.
type DomainTypeBreakdown struct {
	Domain             string  `json:"domain"`
	DirectAppearances  int     `json:"directCount"`
	GenericAppearances int     `json:"genericCount"`
	TotalAppearances   int     `json:"totalCount"`
	DirectPct          float64 `json:"directPct"`
	GenericPct         float64 `json:"genericPct"`
	TotalPct           float64 `json:"totalPct"`
}

// Report holds the three aggregate views over one completed batch.
// TotalMentions is ranked by raw mention volume, Prevalence by appearance
// percentage, and Breakdown by total appearance percentage.
type Report struct {
	TotalQueries  int                   `json:"numOfQueries"`
	TotalMentions []AggregateDomainStat `json:"totalLinkCounts"`
	Prevalence    []AggregateDomainStat `json:"domainPercentages"`
	Breakdown     []DomainTypeBreakdown `json:"domainBreakdown"`
}

type domainTally struct {
	mentions    int
	appearances int
	direct      int
	generic     int
}

// Aggregate folds all per-query domain tables into the cross-query views.
// It recomputes every view from scratch on each call and is commutative in
// query order: ties are broken by domain name ascending, so permuting the
// input yields identical tables. Failed queries (empty DomainCounts)
// contribute nothing to the tallies but still count toward TotalQueries in
// every percentage denominator.
func Aggregate(results []QueryResult) Report {
	total := len(results)
	tallies := make(map[string]*domainTally)

	for _, res := range results {
		for _, dc := range res.DomainCounts {
			t := tallies[dc.Domain]
			if t == nil {
				t = &domainTally{}
				tallies[dc.Domain] = t
			}
			t.mentions += dc.Count
			// DomainCounts holds one entry per distinct domain, so each
			// entry is exactly one query appearance.
			t.appearances++
			if res.Query.Classification == ClassificationDirect {
				t.direct++
			} else {
				t.generic++
			}
		}
	}

	domains := make([]string, 0, len(tallies))
	for d := range tallies {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	report := Report{
		TotalQueries:  total,
		TotalMentions: make([]AggregateDomainStat, 0, len(domains)),
		Prevalence:    make([]AggregateDomainStat, 0, len(domains)),
		Breakdown:     make([]DomainTypeBreakdown, 0, len(domains)),
	}

	for _, d := range domains {
		t := tallies[d]
		stat := AggregateDomainStat{
			Domain:               d,
			TotalMentions:        t.mentions,
			QueryAppearances:     t.appearances,
			AppearancePercentage: percentage(t.appearances, total),
		}
		report.TotalMentions = append(report.TotalMentions, stat)
		report.Prevalence = append(report.Prevalence, stat)
		report.Breakdown = append(report.Breakdown, DomainTypeBreakdown{
			Domain:             d,
			DirectAppearances:  t.direct,
			GenericAppearances: t.generic,
			TotalAppearances:   t.direct + t.generic,
			DirectPct:          percentage(t.direct, total),
			GenericPct:         percentage(t.generic, total),
			TotalPct:           percentage(t.direct+t.generic, total),
		})
	}

	// Stable sorts over the name-ordered slices give deterministic,
	// permutation-independent rankings.
	sort.SliceStable(report.TotalMentions, func(i, j int) bool {
		return report.TotalMentions[i].TotalMentions > report.TotalMentions[j].TotalMentions
	})
	sort.SliceStable(report.Prevalence, func(i, j int) bool {
		return report.Prevalence[i].AppearancePercentage > report.Prevalence[j].AppearancePercentage
	})
	sort.SliceStable(report.Breakdown, func(i, j int) bool {
		return report.Breakdown[i].TotalPct > report.Breakdown[j].TotalPct
	})

	return report
}

// percentage returns 100*part/total rounded to one decimal place,
// or 0 when total is zero.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
